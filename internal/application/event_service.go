package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-admission/internal/domain/auditlog"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/participant"
	"github.com/sanosuguru/go-event-admission/internal/domain/settings"
	"github.com/sanosuguru/go-event-admission/internal/pkg/clock"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
	"github.com/sanosuguru/go-event-admission/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-admission/internal/scheduler"
)

const (
	participantCountTTL = 30 * time.Second
	defaultListLimit    = 20
	maxListLimit        = 100
)

// EventDefaults はイベント作成時に省略された項目の既定値
type EventDefaults struct {
	Timezone               string
	ReminderMinutes        int
	AdmissionOffsetMinutes int
}

// EventServiceDeps は EventService の依存関係
type EventServiceDeps struct {
	Events       event.Repository
	Participants participant.Repository
	Audit        auditlog.Repository
	Settings     settings.Repository
	Locker       EventLocker
	Scheduler    JobScheduler
	Notifier     Notifier
	Counter      ParticipantCounter
	DrawEngine   *DrawEngine
	Clock        clock.Clock
	Defaults     EventDefaults
	Metrics      *metrics.Metrics
}

// EventService はイベントのライフサイクルを管理する。
// イベントに対する変更はすべてイベント単位のロック内で行う
type EventService struct {
	eventRepo       event.Repository
	participantRepo participant.Repository
	settingsRepo    settings.Repository
	locker          EventLocker
	scheduler       JobScheduler
	notifier        Notifier
	counter         ParticipantCounter
	drawEngine      *DrawEngine
	clock           clock.Clock
	defaults        EventDefaults
	metrics         *metrics.Metrics
	audit           auditor
}

func NewEventService(d EventServiceDeps) *EventService {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Notifier == nil {
		d.Notifier = NopNotifier{}
	}
	if d.DrawEngine == nil {
		d.DrawEngine = NewDrawEngine(nil)
	}
	if d.Scheduler == nil {
		d.Scheduler = nopScheduler{}
	}
	return &EventService{
		eventRepo:       d.Events,
		participantRepo: d.Participants,
		settingsRepo:    d.Settings,
		locker:          d.Locker,
		scheduler:       d.Scheduler,
		notifier:        d.Notifier,
		counter:         d.Counter,
		drawEngine:      d.DrawEngine,
		clock:           d.Clock,
		defaults:        d.Defaults,
		metrics:         d.Metrics,
		audit:           auditor{repo: d.Audit, clock: d.Clock},
	}
}

type CreateEventInput struct {
	CommunityID            string
	Title                  string
	Description            string
	Link                   string
	Slots                  int
	StartsAt               time.Time
	Timezone               string
	AdmissionOffsetMinutes *int
	ReminderMinutes        *int
	CreatorID              string
	CreatorTag             string
	ChannelID              string
}

func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (*event.Event, error) {
	params := event.Params{
		ID:          uuid.NewString(),
		CommunityID: input.CommunityID,
		Title:       input.Title,
		Description: input.Description,
		Link:        input.Link,
		Slots:       input.Slots,
		StartsAt:    input.StartsAt,
		CreatorID:   input.CreatorID,
		CreatorTag:  input.CreatorTag,
		ChannelID:   input.ChannelID,
	}
	if err := s.resolveDefaults(ctx, input, &params); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	e := event.NewEvent(params, now)
	if err := e.Validate(now); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}

	s.scheduler.Schedule(e)
	s.audit.record(ctx, e.ID, input.CreatorID, auditlog.ActionCreateEvent, "イベントを作成しました", map[string]any{
		"slots":              e.Slots,
		"starts_at":          e.StartsAt,
		"admission_opens_at": e.AdmissionOpensAt,
		"admission_open":     e.AdmissionOpen,
	})
	logger.ForEvent(e.ID).Info("イベントを作成しました",
		zap.Time("starts_at", e.StartsAt),
		zap.Bool("admission_open", e.AdmissionOpen),
	)
	return e, nil
}

// resolveDefaults は省略された項目をコミュニティ設定、サービス既定値の順で埋める
func (s *EventService) resolveDefaults(ctx context.Context, input CreateEventInput, p *event.Params) error {
	p.Timezone = s.defaults.Timezone
	p.ReminderMinutes = s.defaults.ReminderMinutes
	p.AdmissionOffsetMinutes = s.defaults.AdmissionOffsetMinutes

	if s.settingsRepo != nil && input.CommunityID != "" {
		st, err := s.settingsRepo.Get(ctx, input.CommunityID)
		switch {
		case err == nil:
			if st.Timezone != nil {
				p.Timezone = *st.Timezone
			}
			if st.ReminderMinutes != nil {
				p.ReminderMinutes = *st.ReminderMinutes
			}
			if st.AdmissionOffsetMinutes != nil {
				p.AdmissionOffsetMinutes = *st.AdmissionOffsetMinutes
			}
		case errors.Is(err, settings.ErrSettingsNotFound):
		default:
			return fmt.Errorf("コミュニティ設定の取得に失敗: %w", err)
		}
	}

	if input.Timezone != "" {
		p.Timezone = input.Timezone
	}
	if input.ReminderMinutes != nil {
		p.ReminderMinutes = *input.ReminderMinutes
	}
	if input.AdmissionOffsetMinutes != nil {
		p.AdmissionOffsetMinutes = *input.AdmissionOffsetMinutes
	}
	return nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

// EventSummary はイベントと現在の参加者数
type EventSummary struct {
	Event            *event.Event
	ParticipantCount int
}

// GetEventSummary はイベントと参加者数を返す。参加者数はキャッシュがあれば利用する
func (s *EventService) GetEventSummary(ctx context.Context, id string) (*EventSummary, error) {
	e, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.participantCount(ctx, id)
	if err != nil {
		return nil, err
	}
	return &EventSummary{Event: e, ParticipantCount: count}, nil
}

func (s *EventService) participantCount(ctx context.Context, eventID string) (int, error) {
	if s.counter != nil {
		if n, err := s.counter.GetCount(ctx, eventID); err == nil {
			return n, nil
		}
	}
	n, err := s.participantRepo.Count(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("参加者数の取得に失敗: %w", err)
	}
	if s.counter != nil {
		if err := s.counter.SetCount(ctx, eventID, n, participantCountTTL); err != nil {
			logger.ForEvent(eventID).Warn("参加者数のキャッシュ保存に失敗しました", zap.Error(err))
		}
	}
	return n, nil
}

// ListUpcoming は今後開催される有効なイベントを開始時刻順に返す
func (s *EventService) ListUpcoming(ctx context.Context, communityID string, limit int) ([]*event.Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.eventRepo.ListUpcoming(ctx, communityID, s.clock.Now(), limit)
}

type EditEventInput struct {
	EventID string
	ActorID string
	Changes event.Changes
}

// EditEvent はイベントを編集する。開始時刻かオフセットが変わると受付状態を計算し直すため、
// 受付中のイベントが閉じ直されることがある
func (s *EventService) EditEvent(ctx context.Context, input EditEventInput) (*event.Event, error) {
	unlock, err := s.lock(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	e, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if input.Changes.IsEmpty() {
		return nil, event.ErrNoChanges
	}
	count, err := s.participantRepo.Count(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("参加者数の取得に失敗: %w", err)
	}

	wasOpen := e.AdmissionOpen
	if err := e.Apply(input.Changes, count, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント更新に失敗しました: %w", err)
	}

	s.scheduler.Schedule(e)
	s.audit.record(ctx, e.ID, input.ActorID, auditlog.ActionEditEvent, "イベントを編集しました", changesMetadata(input.Changes))
	if wasOpen && !e.AdmissionOpen {
		logger.ForEvent(e.ID).Info("編集により受付が閉じられました", zap.Time("admission_opens_at", e.AdmissionOpensAt))
	}
	return e, nil
}

func changesMetadata(c event.Changes) map[string]any {
	m := map[string]any{}
	if c.Title != nil {
		m["title"] = *c.Title
	}
	if c.Description != nil {
		m["description"] = *c.Description
	}
	if c.Link != nil {
		m["link"] = *c.Link
	}
	if c.Slots != nil {
		m["slots"] = *c.Slots
	}
	if c.StartsAt != nil {
		m["starts_at"] = *c.StartsAt
	}
	if c.AdmissionOffsetMinutes != nil {
		m["admission_offset"] = *c.AdmissionOffsetMinutes
	}
	if c.ReminderMinutes != nil {
		m["reminder_minutes"] = *c.ReminderMinutes
	}
	return m
}

// ForceAdmissionOpen は受付を即時開始する
func (s *EventService) ForceAdmissionOpen(ctx context.Context, eventID, actorID string) (*event.Event, error) {
	unlock, err := s.lock(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.openAdmission(ctx, e); err != nil {
		return nil, err
	}
	s.audit.record(ctx, e.ID, actorID, auditlog.ActionForceAdmission, "受付を手動で開始しました", nil)
	return e, nil
}

// openAdmission はロック取得済みの状態で受付を開始し、受付開始ジョブを取り消して通知する
func (s *EventService) openAdmission(ctx context.Context, e *event.Event) error {
	now := s.clock.Now()
	if err := e.OpenAdmission(now); err != nil {
		return err
	}
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}
	s.scheduler.CancelJob(e.ID, scheduler.JobAdmission)
	s.notify(ctx, newNotification(NotificationAdmissionOpened, e, now))
	logger.ForEvent(e.ID).Info("受付を開始しました")
	return nil
}

// CancelEvent はイベントを中止し、すべてのジョブを取り消す
func (s *EventService) CancelEvent(ctx context.Context, eventID, actorID string) (*event.Event, error) {
	unlock, err := s.lock(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := e.Cancel(now); err != nil {
		return nil, err
	}
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント更新に失敗しました: %w", err)
	}
	s.scheduler.Cancel(e.ID)
	s.invalidateCount(ctx, e.ID)

	n := newNotification(NotificationEventCancelled, e, now)
	if ps, err := s.participantRepo.ListByEvent(ctx, e.ID); err == nil {
		n.Recipients = participant.UserIDs(ps)
	} else {
		logger.ForEvent(e.ID).Warn("参加者の取得に失敗しました", zap.Error(err))
	}
	s.notify(ctx, n)
	s.audit.record(ctx, e.ID, actorID, auditlog.ActionCancelEvent, "イベントを中止しました", nil)
	logger.ForEvent(e.ID).Info("イベントを中止しました")
	return e, nil
}

// SetMessageReference は表示用メッセージの参照を保存する
func (s *EventService) SetMessageReference(ctx context.Context, eventID, channelID, messageID string) (*event.Event, error) {
	unlock, err := s.lock(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !e.IsActive() {
		return nil, event.ErrEventNotActive
	}
	if channelID != "" {
		e.ChannelID = channelID
	}
	e.MessageID = messageID
	e.UpdatedAt = s.clock.Now()
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント更新に失敗しました: %w", err)
	}
	return e, nil
}

// ListAudit はイベントの監査ログを返す
func (s *EventService) ListAudit(ctx context.Context, eventID string, limit int) ([]*auditlog.Entry, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	if s.audit.repo == nil {
		return []*auditlog.Entry{}, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.audit.repo.ListByEvent(ctx, eventID, limit)
}

// RescheduleAll は起動時に有効なイベントのジョブを再登録する
func (s *EventService) RescheduleAll(ctx context.Context) error {
	events, err := s.eventRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("有効なイベントの取得に失敗: %w", err)
	}
	s.scheduler.RecoverAll(events)
	logger.Info("イベントのジョブを再登録しました", zap.Int("count", len(events)))
	return nil
}

func (s *EventService) lock(ctx context.Context, eventID string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	return unlock, nil
}

func (s *EventService) notify(ctx context.Context, n Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		logger.ForEvent(n.EventID).Warn("通知の送信に失敗しました",
			zap.String("kind", string(n.Kind)),
			zap.Error(err),
		)
	}
}

func (s *EventService) invalidateCount(ctx context.Context, eventID string) {
	if s.counter == nil {
		return
	}
	if err := s.counter.Invalidate(ctx, eventID); err != nil {
		logger.ForEvent(eventID).Warn("参加者数キャッシュの無効化に失敗しました", zap.Error(err))
	}
}

type nopScheduler struct{}

func (nopScheduler) Schedule(*event.Event)               {}
func (nopScheduler) Cancel(string)                       {}
func (nopScheduler) CancelJob(string, scheduler.JobType) {}
func (nopScheduler) RecoverAll([]*event.Event)           {}
