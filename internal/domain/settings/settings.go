// Package settings はコミュニティごとの既定値を扱う
package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/sanosuguru/go-event-admission/internal/domain"
	"github.com/sanosuguru/go-event-admission/internal/pkg/timecalc"
)

var (
	ErrSettingsNotFound = fmt.Errorf("%w: コミュニティ設定が見つかりません", domain.ErrNotFound)
	ErrInvalidSettings  = fmt.Errorf("%w: コミュニティ設定が不正です", domain.ErrValidation)
)

// Settings はコミュニティの既定値。nil の項目はサービス全体の既定値を使う
type Settings struct {
	CommunityID            string
	Timezone               *string
	ReminderMinutes        *int
	AdmissionOffsetMinutes *int
	UpdatedAt              time.Time
}

// Validate は設定値の範囲を確認する
func (s *Settings) Validate() error {
	if s.CommunityID == "" {
		return fmt.Errorf("%w: コミュニティIDは必須です", ErrInvalidSettings)
	}
	if s.Timezone != nil {
		if _, err := timecalc.LoadLocation(*s.Timezone); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
	}
	if s.ReminderMinutes != nil && (*s.ReminderMinutes < 5 || *s.ReminderMinutes > 1440) {
		return fmt.Errorf("%w: リマインダーは5〜1440分", ErrInvalidSettings)
	}
	if s.AdmissionOffsetMinutes != nil && (*s.AdmissionOffsetMinutes < 0 || *s.AdmissionOffsetMinutes > 1440) {
		return fmt.Errorf("%w: 受付オフセットは0〜1440分", ErrInvalidSettings)
	}
	return nil
}

// Repository はコミュニティ設定リポジトリのインターフェース
type Repository interface {
	Get(ctx context.Context, communityID string) (*Settings, error)
	Upsert(ctx context.Context, s *Settings) error
}
