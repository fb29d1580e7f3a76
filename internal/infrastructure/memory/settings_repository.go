package memory

import (
	"context"
	"sync"

	"github.com/sanosuguru/go-event-admission/internal/domain/settings"
)

// SettingsRepository はコミュニティ設定のインメモリ実装
type SettingsRepository struct {
	mu    sync.RWMutex
	items map[string]settings.Settings
}

func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{items: make(map[string]settings.Settings)}
}

func (r *SettingsRepository) Get(_ context.Context, communityID string) (*settings.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[communityID]
	if !ok {
		return nil, settings.ErrSettingsNotFound
	}
	return &s, nil
}

func (r *SettingsRepository) Upsert(_ context.Context, s *settings.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.CommunityID] = *s
	return nil
}
