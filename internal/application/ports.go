package application

import (
	"context"
	"time"

	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/scheduler"
)

// EventLocker はイベント単位の排他制御を提供する。返された unlock は必ず呼ぶこと
type EventLocker interface {
	Lock(ctx context.Context, eventID string) (unlock func(), err error)
}

// JobScheduler はイベントのトリガー（受付開始・リマインダー・自動抽選）を管理する
type JobScheduler interface {
	Schedule(ev *event.Event)
	Cancel(eventID string)
	CancelJob(eventID string, job scheduler.JobType)
	RecoverAll(events []*event.Event)
}

// ParticipantCounter は参加者数のキャッシュ
type ParticipantCounter interface {
	GetCount(ctx context.Context, eventID string) (int, error)
	SetCount(ctx context.Context, eventID string, count int, ttl time.Duration) error
	Invalidate(ctx context.Context, eventID string) error
}

// NotificationKind は通知の種類
type NotificationKind string

const (
	NotificationAdmissionOpened NotificationKind = "admission_opened"
	NotificationReminder        NotificationKind = "reminder"
	NotificationDrawResults     NotificationKind = "draw_results"
	NotificationEventCancelled  NotificationKind = "event_cancelled"
)

// Notification は外部へ送る通知
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	EventID     string           `json:"event_id"`
	CommunityID string           `json:"community_id,omitempty"`
	ChannelID   string           `json:"channel_id,omitempty"`
	MessageID   string           `json:"message_id,omitempty"`
	Title       string           `json:"title"`
	StartsAt    time.Time        `json:"starts_at"`
	Timezone    string           `json:"timezone"`
	Recipients  []string         `json:"recipients,omitempty"`
	Winners     []string         `json:"winners,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// Notifier は通知の送信先。配信はベストエフォートで、失敗しても状態は巻き戻さない
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NopNotifier は何もしない Notifier
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }

func newNotification(kind NotificationKind, ev *event.Event, now time.Time) Notification {
	return Notification{
		Kind:        kind,
		EventID:     ev.ID,
		CommunityID: ev.CommunityID,
		ChannelID:   ev.ChannelID,
		MessageID:   ev.MessageID,
		Title:       ev.Title,
		StartsAt:    ev.StartsAt,
		Timezone:    ev.Timezone,
		OccurredAt:  now,
	}
}
