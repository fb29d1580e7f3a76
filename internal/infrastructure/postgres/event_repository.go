package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-admission/internal/domain/event"
)

const eventColumns = `id, community_id, title, description, link, slots, starts_at, timezone,
	admission_offset_minutes, admission_opens_at, admission_open, reminder_minutes, status,
	creator_id, creator_tag, channel_id, message_id, created_at, updated_at, version`

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID                     string    `db:"id"`
	CommunityID            *string   `db:"community_id"`
	Title                  string    `db:"title"`
	Description            *string   `db:"description"`
	Link                   *string   `db:"link"`
	Slots                  int       `db:"slots"`
	StartsAt               time.Time `db:"starts_at"`
	Timezone               string    `db:"timezone"`
	AdmissionOffsetMinutes int       `db:"admission_offset_minutes"`
	AdmissionOpensAt       time.Time `db:"admission_opens_at"`
	AdmissionOpen          bool      `db:"admission_open"`
	ReminderMinutes        int       `db:"reminder_minutes"`
	Status                 string    `db:"status"`
	CreatorID              string    `db:"creator_id"`
	CreatorTag             *string   `db:"creator_tag"`
	ChannelID              *string   `db:"channel_id"`
	MessageID              *string   `db:"message_id"`
	CreatedAt              time.Time `db:"created_at"`
	UpdatedAt              time.Time `db:"updated_at"`
	Version                int       `db:"version"`
}

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() *event.Event {
	return &event.Event{
		ID:                     r.ID,
		CommunityID:            deref(r.CommunityID),
		Title:                  r.Title,
		Description:            deref(r.Description),
		Link:                   deref(r.Link),
		Slots:                  r.Slots,
		StartsAt:               r.StartsAt,
		Timezone:               r.Timezone,
		AdmissionOffsetMinutes: r.AdmissionOffsetMinutes,
		AdmissionOpensAt:       r.AdmissionOpensAt,
		AdmissionOpen:          r.AdmissionOpen,
		ReminderMinutes:        r.ReminderMinutes,
		Status:                 event.Status(r.Status),
		CreatorID:              r.CreatorID,
		CreatorTag:             deref(r.CreatorTag),
		ChannelID:              deref(r.ChannelID),
		MessageID:              deref(r.MessageID),
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
		Version:                r.Version,
	}
}

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, nullable(e.CommunityID), e.Title, nullable(e.Description), nullable(e.Link), e.Slots,
		e.StartsAt, e.Timezone, e.AdmissionOffsetMinutes, e.AdmissionOpensAt, e.AdmissionOpen,
		e.ReminderMinutes, string(e.Status), e.CreatorID, nullable(e.CreatorTag),
		nullable(e.ChannelID), nullable(e.MessageID), e.CreatedAt, e.UpdatedAt, e.Version,
	)
	if err != nil {
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	var row eventRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// Update はイベントを更新する（楽観的ロック）
func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, link = $3, slots = $4, starts_at = $5,
		    admission_offset_minutes = $6, admission_opens_at = $7, admission_open = $8,
		    reminder_minutes = $9, status = $10, channel_id = $11, message_id = $12,
		    updated_at = $13, version = version + 1
		WHERE id = $14 AND version = $15
	`
	result, err := r.db.ExecContext(ctx, query,
		e.Title, nullable(e.Description), nullable(e.Link), e.Slots, e.StartsAt,
		e.AdmissionOffsetMinutes, e.AdmissionOpensAt, e.AdmissionOpen,
		e.ReminderMinutes, string(e.Status), nullable(e.ChannelID), nullable(e.MessageID),
		e.UpdatedAt, e.ID, e.Version,
	)
	if err != nil {
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, e.ID); err != nil {
			return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
		}
		if !exists {
			return event.ErrEventNotFound
		}
		return event.ErrOptimisticLockConflict
	}

	e.Version++
	return nil
}

// ListActive は有効なイベントを開始時刻順に取得する
func (r *EventRepository) ListActive(ctx context.Context) ([]*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE status = 'ACTIVE' ORDER BY starts_at, id`
	return r.selectEvents(ctx, query)
}

// ListUpcoming は from 以降に開始する有効なイベントを取得する
func (r *EventRepository) ListUpcoming(ctx context.Context, communityID string, from time.Time, limit int) ([]*event.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE status = 'ACTIVE' AND starts_at > $1 AND ($2 = '' OR community_id = $2)
		ORDER BY starts_at, id
		LIMIT $3
	`
	return r.selectEvents(ctx, query, from, communityID, limit)
}

// ListAdmissionDue は受付開始時刻を過ぎても受付が閉じたままの有効なイベントを取得する
func (r *EventRepository) ListAdmissionDue(ctx context.Context, now time.Time) ([]*event.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE status = 'ACTIVE' AND admission_open = FALSE AND admission_opens_at <= $1
		ORDER BY starts_at, id
	`
	return r.selectEvents(ctx, query, now)
}

func (r *EventRepository) selectEvents(ctx context.Context, query string, args ...any) ([]*event.Event, error) {
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}
	events := make([]*event.Event, len(rows))
	for i := range rows {
		events[i] = rows[i].toEntity()
	}
	return events, nil
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
