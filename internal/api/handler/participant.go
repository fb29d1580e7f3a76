package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-admission/internal/application"
	"github.com/sanosuguru/go-event-admission/internal/domain/participant"
)

type ParticipantHandler struct {
	participantService ParticipantServiceInterface
}

func NewParticipantHandler(participantService ParticipantServiceInterface) *ParticipantHandler {
	return &ParticipantHandler{participantService: participantService}
}

type JoinRequest struct {
	UserID  string `json:"user_id" validate:"required" example:"user-42"`
	UserTag string `json:"user_tag" example:"player#0042"`
}

type AdmissionRequest struct {
	Admitted *bool `json:"admitted" validate:"required"`
}

type ParticipantResponse struct {
	UserID   string `json:"user_id"`
	UserTag  string `json:"user_tag,omitempty"`
	Position int    `json:"position"`
	Admitted bool   `json:"admitted"`
	JoinedAt string `json:"joined_at"`
}

type JoinResponse struct {
	EventID  string `json:"event_id"`
	UserID   string `json:"user_id"`
	Position int    `json:"position"`
}

type LeaveResponse struct {
	EventID   string `json:"event_id"`
	Remaining int    `json:"remaining"`
}

func toParticipantResponse(p *participant.Participant) *ParticipantResponse {
	return &ParticipantResponse{
		UserID:   p.UserID,
		UserTag:  p.UserTag,
		Position: p.Position,
		Admitted: p.Admitted,
		JoinedAt: p.JoinedAt.Format(time.RFC3339),
	}
}

// List godoc
// @Summary 参加者一覧を取得
// @Description 参加順（位置の昇順）で返します
// @Tags participants
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {array} ParticipantResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id}/participants [get]
func (h *ParticipantHandler) List(c echo.Context) error {
	ps, err := h.participantService.List(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	responses := make([]*ParticipantResponse, len(ps))
	for i, p := range ps {
		responses[i] = toParticipantResponse(p)
	}
	return c.JSON(http.StatusOK, responses)
}

// Join godoc
// @Summary イベントに参加
// @Tags participants
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body JoinRequest true "参加者"
// @Success 201 {object} JoinResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id}/participants [post]
func (h *ParticipantHandler) Join(c echo.Context) error {
	var req JoinRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	eventID := c.Param("id")
	position, err := h.participantService.Join(c.Request().Context(), application.JoinInput{
		EventID: eventID,
		UserID:  req.UserID,
		UserTag: req.UserTag,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, JoinResponse{EventID: eventID, UserID: req.UserID, Position: position})
}

// Leave godoc
// @Summary イベントから離脱
// @Tags participants
// @Produce json
// @Param id path string true "イベントID"
// @Param user_id path string true "ユーザーID"
// @Success 200 {object} LeaveResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id}/participants/{user_id} [delete]
func (h *ParticipantHandler) Leave(c echo.Context) error {
	eventID := c.Param("id")
	remaining, err := h.participantService.Leave(c.Request().Context(), eventID, c.Param("user_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LeaveResponse{EventID: eventID, Remaining: remaining})
}

// SetAdmission godoc
// @Summary 参加者の当選フラグを手動で設定
// @Tags participants
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param user_id path string true "ユーザーID"
// @Param request body AdmissionRequest true "当選フラグ"
// @Success 200 {object} ParticipantResponse
// @Router /events/{id}/participants/{user_id}/admission [put]
func (h *ParticipantHandler) SetAdmission(c echo.Context) error {
	var req AdmissionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := h.participantService.SetAdmission(c.Request().Context(), c.Param("id"), c.Param("user_id"), *req.Admitted)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toParticipantResponse(p))
}
