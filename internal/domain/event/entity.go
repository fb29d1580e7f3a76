package event

import (
	"strings"
	"time"

	"github.com/sanosuguru/go-event-admission/internal/pkg/timecalc"
)

// Status はイベントの状態を表す
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
)

const (
	MaxAdmissionOffsetMinutes = 1440
	MinReminderMinutes        = 5
	MaxReminderMinutes        = 1440
)

// Event はイベントエンティティを表す
type Event struct {
	ID                     string
	CommunityID            string
	Title                  string
	Description            string
	Link                   string
	Slots                  int
	StartsAt               time.Time
	Timezone               string
	AdmissionOffsetMinutes int
	AdmissionOpensAt       time.Time
	AdmissionOpen          bool
	ReminderMinutes        int
	Status                 Status
	CreatorID              string
	CreatorTag             string
	ChannelID              string
	MessageID              string
	CreatedAt              time.Time
	UpdatedAt              time.Time
	Version                int // 楽観的ロック用
}

// Params はイベント作成時の入力
type Params struct {
	ID                     string
	CommunityID            string
	Title                  string
	Description            string
	Link                   string
	Slots                  int
	StartsAt               time.Time
	Timezone               string
	AdmissionOffsetMinutes int
	ReminderMinutes        int
	CreatorID              string
	CreatorTag             string
	ChannelID              string
}

// NewEvent は新しいイベントを作成し、受付状態を now 基準で計算する
func NewEvent(p Params, now time.Time) *Event {
	e := &Event{
		ID:                     p.ID,
		CommunityID:            p.CommunityID,
		Title:                  p.Title,
		Description:            p.Description,
		Link:                   p.Link,
		Slots:                  p.Slots,
		StartsAt:               p.StartsAt,
		Timezone:               p.Timezone,
		AdmissionOffsetMinutes: p.AdmissionOffsetMinutes,
		ReminderMinutes:        p.ReminderMinutes,
		Status:                 StatusActive,
		CreatorID:              p.CreatorID,
		CreatorTag:             p.CreatorTag,
		ChannelID:              p.ChannelID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	e.RecomputeAdmission(now)
	return e
}

// Validate はイベントの検証を行う。開始時刻が now より後であることも確認する
func (e *Event) Validate(now time.Time) error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrTitleRequired
	}
	if e.Slots < 1 {
		return ErrInvalidSlots
	}
	if err := timecalc.EnsureFuture(now, e.StartsAt); err != nil {
		return ErrStartNotInFuture
	}
	return e.validateSettings()
}

func (e *Event) validateSettings() error {
	if e.AdmissionOffsetMinutes < 0 || e.AdmissionOffsetMinutes > MaxAdmissionOffsetMinutes {
		return ErrInvalidAdmissionOffset
	}
	if e.ReminderMinutes < MinReminderMinutes || e.ReminderMinutes > MaxReminderMinutes {
		return ErrInvalidReminder
	}
	if _, err := timecalc.LoadLocation(e.Timezone); err != nil {
		return ErrInvalidTimezone
	}
	if e.Link != "" && !hasHTTPScheme(e.Link) {
		return ErrInvalidLink
	}
	return nil
}

func hasHTTPScheme(link string) bool {
	l := strings.ToLower(link)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// IsActive はイベントが有効かを返す
func (e *Event) IsActive() bool {
	return e.Status == StatusActive
}

// RecomputeAdmission は受付開始時刻と受付状態を一から計算し直す。
// 開始時刻を後ろにずらした場合は受付が閉じ直されることがある
func (e *Event) RecomputeAdmission(now time.Time) {
	e.AdmissionOpensAt = timecalc.AdmissionOpensAt(e.StartsAt, e.AdmissionOffsetMinutes)
	e.AdmissionOpen = timecalc.IsPastOrNow(now, e.AdmissionOpensAt)
}

// OpenAdmission は受付を即時開始する
func (e *Event) OpenAdmission(now time.Time) error {
	if !e.IsActive() {
		return ErrEventNotActive
	}
	if e.AdmissionOpen {
		return ErrAdmissionAlreadyOpen
	}
	e.AdmissionOpen = true
	e.AdmissionOpensAt = now
	e.UpdatedAt = now
	return nil
}

// Cancel はイベントを中止する。中止は終端状態
func (e *Event) Cancel(now time.Time) error {
	if !e.IsActive() {
		return ErrEventNotActive
	}
	e.Status = StatusCancelled
	e.UpdatedAt = now
	return nil
}

// CanJoin は参加受付中かを返す
func (e *Event) CanJoin() error {
	if !e.IsActive() {
		return ErrEventNotActive
	}
	if !e.AdmissionOpen {
		return ErrAdmissionClosed
	}
	return nil
}

// ReminderAt はリマインダー送信時刻を返す
func (e *Event) ReminderAt() time.Time {
	return timecalc.ReminderAt(e.StartsAt, e.ReminderMinutes)
}

// Changes はイベント編集の差分。nil のフィールドは変更しない
type Changes struct {
	Title                  *string
	Description            *string
	Link                   *string
	Slots                  *int
	StartsAt               *time.Time
	AdmissionOffsetMinutes *int
	ReminderMinutes        *int
}

// IsEmpty は変更がないかを返す
func (c Changes) IsEmpty() bool {
	return c.Title == nil && c.Description == nil && c.Link == nil && c.Slots == nil &&
		c.StartsAt == nil && c.AdmissionOffsetMinutes == nil && c.ReminderMinutes == nil
}

// TimingChanged は受付時刻の再計算が必要な変更かを返す
func (c Changes) TimingChanged() bool {
	return c.StartsAt != nil || c.AdmissionOffsetMinutes != nil
}

// Apply は差分を適用する。participants は現在の参加者数
func (e *Event) Apply(c Changes, participants int, now time.Time) error {
	if !e.IsActive() {
		return ErrEventNotActive
	}

	next := *e
	if c.Title != nil {
		next.Title = *c.Title
	}
	if c.Description != nil {
		next.Description = *c.Description
	}
	if c.Link != nil {
		next.Link = *c.Link
	}
	if c.Slots != nil {
		next.Slots = *c.Slots
	}
	if c.StartsAt != nil {
		if err := timecalc.EnsureFuture(now, *c.StartsAt); err != nil {
			return ErrStartNotInFuture
		}
		next.StartsAt = *c.StartsAt
	}
	if c.AdmissionOffsetMinutes != nil {
		next.AdmissionOffsetMinutes = *c.AdmissionOffsetMinutes
	}
	if c.ReminderMinutes != nil {
		next.ReminderMinutes = *c.ReminderMinutes
	}

	if strings.TrimSpace(next.Title) == "" {
		return ErrTitleRequired
	}
	if next.Slots < 1 {
		return ErrInvalidSlots
	}
	if next.Slots < participants {
		return ErrSlotsBelowParticipants
	}
	if err := next.validateSettings(); err != nil {
		return err
	}

	if c.TimingChanged() {
		next.RecomputeAdmission(now)
	}
	next.UpdatedAt = now
	*e = next
	return nil
}
