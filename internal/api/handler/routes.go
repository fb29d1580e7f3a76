package handler

import (
	"github.com/labstack/echo/v4"
)

// Handlers はルーティングに登録するハンドラー一式
type Handlers struct {
	Health      *HealthHandler
	Event       *EventHandler
	Participant *ParticipantHandler
	Settings    *SettingsHandler
}

// RegisterRoutes は /health と /api/v1 配下のルートを登録する
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/health", h.Health.Check)

	v1 := e.Group("/api/v1")
	v1.POST("/events", h.Event.Create)
	v1.GET("/events", h.Event.List)
	v1.GET("/events/:id", h.Event.GetByID)
	v1.PATCH("/events/:id", h.Event.Edit)
	v1.POST("/events/:id/cancel", h.Event.Cancel)
	v1.POST("/events/:id/admission/open", h.Event.OpenAdmission)
	v1.POST("/events/:id/draw", h.Event.Draw)
	v1.PUT("/events/:id/message", h.Event.SetMessage)
	v1.GET("/events/:id/audit", h.Event.Audit)

	v1.GET("/events/:id/participants", h.Participant.List)
	v1.POST("/events/:id/participants", h.Participant.Join)
	v1.DELETE("/events/:id/participants/:user_id", h.Participant.Leave)
	v1.PUT("/events/:id/participants/:user_id/admission", h.Participant.SetAdmission)

	v1.GET("/communities/:id/settings", h.Settings.Get)
	v1.PUT("/communities/:id/settings", h.Settings.Update)
}
