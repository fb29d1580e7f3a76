package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-admission/internal/application"
	"github.com/sanosuguru/go-event-admission/internal/domain/settings"
)

type SettingsHandler struct {
	settingsService SettingsServiceInterface
}

func NewSettingsHandler(settingsService SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// UpdateSettingsRequest は指定した項目だけを更新する
type UpdateSettingsRequest struct {
	Timezone               *string `json:"timezone" example:"Europe/Paris"`
	ReminderMinutes        *int    `json:"reminder_minutes" example:"60"`
	AdmissionOffsetMinutes *int    `json:"admission_offset_minutes" example:"30"`
}

type SettingsResponse struct {
	CommunityID            string  `json:"community_id"`
	Timezone               *string `json:"timezone"`
	ReminderMinutes        *int    `json:"reminder_minutes"`
	AdmissionOffsetMinutes *int    `json:"admission_offset_minutes"`
	UpdatedAt              string  `json:"updated_at,omitempty"`
}

func toSettingsResponse(s *settings.Settings) *SettingsResponse {
	resp := &SettingsResponse{
		CommunityID:            s.CommunityID,
		Timezone:               s.Timezone,
		ReminderMinutes:        s.ReminderMinutes,
		AdmissionOffsetMinutes: s.AdmissionOffsetMinutes,
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

// Get godoc
// @Summary コミュニティ設定を取得
// @Tags settings
// @Produce json
// @Param id path string true "コミュニティID"
// @Success 200 {object} SettingsResponse
// @Router /communities/{id}/settings [get]
func (h *SettingsHandler) Get(c echo.Context) error {
	s, err := h.settingsService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSettingsResponse(s))
}

// Update godoc
// @Summary コミュニティ設定を更新
// @Tags settings
// @Accept json
// @Produce json
// @Param id path string true "コミュニティID"
// @Param request body UpdateSettingsRequest true "設定"
// @Success 200 {object} SettingsResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /communities/{id}/settings [put]
func (h *SettingsHandler) Update(c echo.Context) error {
	var req UpdateSettingsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	s, err := h.settingsService.Update(c.Request().Context(), application.UpdateSettingsInput{
		CommunityID:            c.Param("id"),
		Timezone:               req.Timezone,
		ReminderMinutes:        req.ReminderMinutes,
		AdmissionOffsetMinutes: req.AdmissionOffsetMinutes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSettingsResponse(s))
}
