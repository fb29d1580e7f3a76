// Package auditlog はイベント操作の監査ログを扱う
package auditlog

import (
	"context"
	"time"
)

// Action は監査対象の操作
type Action string

const (
	ActionCreateEvent     Action = "CREATE_EVENT"
	ActionEditEvent       Action = "EDIT_EVENT"
	ActionCancelEvent     Action = "CANCEL_EVENT"
	ActionForceAdmission  Action = "FORCE_ADMISSION"
	ActionAdmissionOpened Action = "ADMISSION_OPENED"
	ActionJoinEvent       Action = "JOIN_EVENT"
	ActionLeaveEvent      Action = "LEAVE_EVENT"
	ActionManualDraw      Action = "MANUAL_DRAW"
	ActionAutoDraw        Action = "AUTO_DRAW"
	ActionReminderSent    Action = "REMINDER_SENT"
)

// SystemActor はスケジューラなどシステム起因の操作者ID
const SystemActor = "system"

// Entry は監査ログの1件
type Entry struct {
	ID        string
	EventID   string
	ActorID   string
	Action    Action
	Message   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Repository は監査ログリポジトリのインターフェース
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	ListByEvent(ctx context.Context, eventID string, limit int) ([]*Entry, error)
}
