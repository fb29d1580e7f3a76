package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-admission/internal/application"
	"github.com/sanosuguru/go-event-admission/internal/domain/auditlog"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/pkg/timecalc"
)

// HeaderActorID は操作者のユーザーIDを渡すヘッダー
const HeaderActorID = "X-Actor-ID"

type EventHandler struct {
	eventService EventServiceInterface
}

func NewEventHandler(eventService EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

type CreateEventRequest struct {
	CommunityID            string `json:"community_id" example:"guild-1"`
	Title                  string `json:"title" validate:"required,max=200" example:"金曜レイド"`
	Description            string `json:"description" validate:"max=2000"`
	Link                   string `json:"link" validate:"omitempty,url"`
	Slots                  int    `json:"slots" validate:"required,gt=0" example:"8"`
	StartsAt               string `json:"starts_at" validate:"required" example:"2026-03-06T21:00"`
	Timezone               string `json:"timezone" example:"Europe/Paris"`
	AdmissionOffsetMinutes *int   `json:"admission_offset_minutes" example:"60"`
	ReminderMinutes        *int   `json:"reminder_minutes" example:"30"`
	CreatorID              string `json:"creator_id" validate:"required"`
	CreatorTag             string `json:"creator_tag"`
	ChannelID              string `json:"channel_id"`
}

type EditEventRequest struct {
	Title                  *string `json:"title" validate:"omitempty,max=200"`
	Description            *string `json:"description" validate:"omitempty,max=2000"`
	Link                   *string `json:"link"`
	Slots                  *int    `json:"slots"`
	StartsAt               *string `json:"starts_at"`
	AdmissionOffsetMinutes *int    `json:"admission_offset_minutes"`
	ReminderMinutes        *int    `json:"reminder_minutes"`
}

type DrawRequest struct {
	Winners *int `json:"winners" example:"4"`
}

type MessageReferenceRequest struct {
	ChannelID string `json:"channel_id" validate:"required"`
	MessageID string `json:"message_id" validate:"required"`
}

type EventResponse struct {
	ID                     string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	CommunityID            string `json:"community_id,omitempty"`
	Title                  string `json:"title"`
	Description            string `json:"description,omitempty"`
	Link                   string `json:"link,omitempty"`
	Slots                  int    `json:"slots"`
	StartsAt               string `json:"starts_at" example:"2026-03-06T21:00:00+01:00"`
	Timezone               string `json:"timezone"`
	AdmissionOffsetMinutes int    `json:"admission_offset_minutes"`
	AdmissionOpensAt       string `json:"admission_opens_at"`
	AdmissionOpen          bool   `json:"admission_open"`
	ReminderMinutes        int    `json:"reminder_minutes"`
	Status                 string `json:"status" example:"ACTIVE"`
	CreatorID              string `json:"creator_id"`
	ChannelID              string `json:"channel_id,omitempty"`
	MessageID              string `json:"message_id,omitempty"`
	ParticipantCount       *int   `json:"participant_count,omitempty"`
	CreatedAt              string `json:"created_at"`
	UpdatedAt              string `json:"updated_at"`
}

// toEventResponse は時刻をイベントのタイムゾーンで表す
func toEventResponse(e *event.Event) *EventResponse {
	format := func(t time.Time) string {
		if local, err := timecalc.InZone(t, e.Timezone); err == nil {
			t = local
		}
		return t.Format(time.RFC3339)
	}
	return &EventResponse{
		ID:                     e.ID,
		CommunityID:            e.CommunityID,
		Title:                  e.Title,
		Description:            e.Description,
		Link:                   e.Link,
		Slots:                  e.Slots,
		StartsAt:               format(e.StartsAt),
		Timezone:               e.Timezone,
		AdmissionOffsetMinutes: e.AdmissionOffsetMinutes,
		AdmissionOpensAt:       format(e.AdmissionOpensAt),
		AdmissionOpen:          e.AdmissionOpen,
		ReminderMinutes:        e.ReminderMinutes,
		Status:                 string(e.Status),
		CreatorID:              e.CreatorID,
		ChannelID:              e.ChannelID,
		MessageID:              e.MessageID,
		CreatedAt:              e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:              e.UpdatedAt.Format(time.RFC3339),
	}
}

type DrawResponse struct {
	EventID  string                 `json:"event_id"`
	PoolSize int                    `json:"pool_size"`
	Winners  []*ParticipantResponse `json:"winners"`
}

type AuditEntryResponse struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Message   string         `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func toAuditEntryResponse(e *auditlog.Entry) *AuditEntryResponse {
	return &AuditEntryResponse{
		ID:        e.ID,
		ActorID:   e.ActorID,
		Action:    string(e.Action),
		Message:   e.Message,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	return c.Validate(req)
}

// parseStartsAt はオフセットなしの日時をイベントのタイムゾーンで解釈する
func parseStartsAt(value, timezone string) (time.Time, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	t, err := timecalc.ParseLocal(value, timezone)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "開始時刻の形式が不正です")
	}
	return t, nil
}

func queryLimit(c echo.Context) int {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return limit
}

// Create godoc
// @Summary イベントを作成
// @Description 新しいイベントを作成し、受付開始・リマインダー・自動抽選を登録します
// @Tags events
// @Accept json
// @Produce json
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	var req CreateEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	startsAt, err := parseStartsAt(req.StartsAt, req.Timezone)
	if err != nil {
		return err
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), application.CreateEventInput{
		CommunityID:            req.CommunityID,
		Title:                  req.Title,
		Description:            req.Description,
		Link:                   req.Link,
		Slots:                  req.Slots,
		StartsAt:               startsAt,
		Timezone:               req.Timezone,
		AdmissionOffsetMinutes: req.AdmissionOffsetMinutes,
		ReminderMinutes:        req.ReminderMinutes,
		CreatorID:              req.CreatorID,
		CreatorTag:             req.CreatorTag,
		ChannelID:              req.ChannelID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Description 指定IDのイベントを参加者数付きで取得します
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	summary, err := h.eventService.GetEventSummary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	resp := toEventResponse(summary.Event)
	resp.ParticipantCount = &summary.ParticipantCount
	return c.JSON(http.StatusOK, resp)
}

// List godoc
// @Summary 今後のイベント一覧を取得
// @Tags events
// @Produce json
// @Param community_id query string false "コミュニティID"
// @Param limit query int false "取得件数" default(20)
// @Success 200 {array} EventResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	events, err := h.eventService.ListUpcoming(c.Request().Context(), c.QueryParam("community_id"), queryLimit(c))
	if err != nil {
		return err
	}
	responses := make([]*EventResponse, len(events))
	for i, e := range events {
		responses[i] = toEventResponse(e)
	}
	return c.JSON(http.StatusOK, responses)
}

// Edit godoc
// @Summary イベントを編集
// @Description 指定した項目だけを変更します。開始時刻やオフセットの変更で受付が閉じ直されることがあります
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body EditEventRequest true "変更内容"
// @Success 200 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id} [patch]
func (h *EventHandler) Edit(c echo.Context) error {
	id := c.Param("id")
	var req EditEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	changes := event.Changes{
		Title:                  req.Title,
		Description:            req.Description,
		Link:                   req.Link,
		Slots:                  req.Slots,
		AdmissionOffsetMinutes: req.AdmissionOffsetMinutes,
		ReminderMinutes:        req.ReminderMinutes,
	}
	if req.StartsAt != nil {
		current, err := h.eventService.GetEvent(c.Request().Context(), id)
		if err != nil {
			return err
		}
		startsAt, err := parseStartsAt(*req.StartsAt, current.Timezone)
		if err != nil {
			return err
		}
		changes.StartsAt = &startsAt
	}

	e, err := h.eventService.EditEvent(c.Request().Context(), application.EditEventInput{
		EventID: id,
		ActorID: c.Request().Header.Get(HeaderActorID),
		Changes: changes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Cancel godoc
// @Summary イベントを中止
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id}/cancel [post]
func (h *EventHandler) Cancel(c echo.Context) error {
	e, err := h.eventService.CancelEvent(c.Request().Context(), c.Param("id"), c.Request().Header.Get(HeaderActorID))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// OpenAdmission godoc
// @Summary 受付を強制的に開始
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{id}/admission/open [post]
func (h *EventHandler) OpenAdmission(c echo.Context) error {
	e, err := h.eventService.ForceAdmissionOpen(c.Request().Context(), c.Param("id"), c.Request().Header.Get(HeaderActorID))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Draw godoc
// @Summary 抽選を実行
// @Description 当選者数を省略した場合は定員数で抽選します
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body DrawRequest false "当選者数"
// @Success 200 {object} DrawResponse
// @Failure 409 {object} api.ErrorResponse
// @Failure 422 {object} api.ErrorResponse
// @Router /events/{id}/draw [post]
func (h *EventHandler) Draw(c echo.Context) error {
	// ボディなしは定員数での抽選
	var req DrawRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.eventService.Draw(c.Request().Context(), application.DrawInput{
		EventID: c.Param("id"),
		Winners: req.Winners,
		ActorID: c.Request().Header.Get(HeaderActorID),
	})
	if err != nil {
		return err
	}

	winners := make([]*ParticipantResponse, len(result.Winners))
	for i, p := range result.Winners {
		winners[i] = toParticipantResponse(p)
	}
	return c.JSON(http.StatusOK, DrawResponse{
		EventID:  result.EventID,
		PoolSize: result.PoolSize,
		Winners:  winners,
	})
}

// SetMessage godoc
// @Summary イベント告知メッセージの参照を設定
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body MessageReferenceRequest true "チャンネルとメッセージ"
// @Success 200 {object} EventResponse
// @Router /events/{id}/message [put]
func (h *EventHandler) SetMessage(c echo.Context) error {
	var req MessageReferenceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	e, err := h.eventService.SetMessageReference(c.Request().Context(), c.Param("id"), req.ChannelID, req.MessageID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Audit godoc
// @Summary 監査ログを取得
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Param limit query int false "取得件数" default(20)
// @Success 200 {array} AuditEntryResponse
// @Router /events/{id}/audit [get]
func (h *EventHandler) Audit(c echo.Context) error {
	entries, err := h.eventService.ListAudit(c.Request().Context(), c.Param("id"), queryLimit(c))
	if err != nil {
		return err
	}
	responses := make([]*AuditEntryResponse, len(entries))
	for i, e := range entries {
		responses[i] = toAuditEntryResponse(e)
	}
	return c.JSON(http.StatusOK, responses)
}
