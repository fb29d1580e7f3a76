package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-admission/internal/domain/settings"
)

type settingsRow struct {
	CommunityID            string    `db:"community_id"`
	Timezone               *string   `db:"timezone"`
	ReminderMinutes        *int      `db:"reminder_minutes"`
	AdmissionOffsetMinutes *int      `db:"admission_offset_minutes"`
	UpdatedAt              time.Time `db:"updated_at"`
}

// SettingsRepository はコミュニティ設定のPostgreSQL実装
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context, communityID string) (*settings.Settings, error) {
	query := `
		SELECT community_id, timezone, reminder_minutes, admission_offset_minutes, updated_at
		FROM community_settings WHERE community_id = $1
	`
	var row settingsRow
	if err := r.db.GetContext(ctx, &row, query, communityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, settings.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("コミュニティ設定の取得に失敗: %w", err)
	}
	return &settings.Settings{
		CommunityID:            row.CommunityID,
		Timezone:               row.Timezone,
		ReminderMinutes:        row.ReminderMinutes,
		AdmissionOffsetMinutes: row.AdmissionOffsetMinutes,
		UpdatedAt:              row.UpdatedAt,
	}, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, s *settings.Settings) error {
	query := `
		INSERT INTO community_settings (community_id, timezone, reminder_minutes, admission_offset_minutes, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (community_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
		    reminder_minutes = EXCLUDED.reminder_minutes,
		    admission_offset_minutes = EXCLUDED.admission_offset_minutes,
		    updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query,
		s.CommunityID, s.Timezone, s.ReminderMinutes, s.AdmissionOffsetMinutes, s.UpdatedAt,
	); err != nil {
		return fmt.Errorf("コミュニティ設定の保存に失敗: %w", err)
	}
	return nil
}

var _ settings.Repository = (*SettingsRepository)(nil)
