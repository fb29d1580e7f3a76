package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/sanosuguru/go-event-admission/internal/domain/settings"
	"github.com/sanosuguru/go-event-admission/internal/pkg/clock"
)

// SettingsService はコミュニティごとの既定値を管理する
type SettingsService struct {
	repo  settings.Repository
	clock clock.Clock
}

func NewSettingsService(repo settings.Repository, clk clock.Clock) *SettingsService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &SettingsService{repo: repo, clock: clk}
}

// Get はコミュニティ設定を返す。未登録の場合は空の設定を返す
func (s *SettingsService) Get(ctx context.Context, communityID string) (*settings.Settings, error) {
	st, err := s.repo.Get(ctx, communityID)
	if err != nil {
		if errors.Is(err, settings.ErrSettingsNotFound) {
			return &settings.Settings{CommunityID: communityID}, nil
		}
		return nil, err
	}
	return st, nil
}

type UpdateSettingsInput struct {
	CommunityID            string
	Timezone               *string
	ReminderMinutes        *int
	AdmissionOffsetMinutes *int
}

// Update はコミュニティ設定を部分更新する。nil の項目は現在の値を維持する
func (s *SettingsService) Update(ctx context.Context, input UpdateSettingsInput) (*settings.Settings, error) {
	st, err := s.Get(ctx, input.CommunityID)
	if err != nil {
		return nil, err
	}
	if input.Timezone != nil {
		st.Timezone = input.Timezone
	}
	if input.ReminderMinutes != nil {
		st.ReminderMinutes = input.ReminderMinutes
	}
	if input.AdmissionOffsetMinutes != nil {
		st.AdmissionOffsetMinutes = input.AdmissionOffsetMinutes
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	st.UpdatedAt = s.clock.Now()
	if err := s.repo.Upsert(ctx, st); err != nil {
		return nil, fmt.Errorf("コミュニティ設定の保存に失敗: %w", err)
	}
	return st, nil
}
