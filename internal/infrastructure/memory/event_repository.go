// Package memory はプロセス内で完結するリポジトリ実装。STORAGE_DRIVER=memory とテストで使う
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-event-admission/internal/domain/event"
)

// EventRepository はイベントリポジトリのインメモリ実装
type EventRepository struct {
	mu     sync.RWMutex
	events map[string]*event.Event
}

func NewEventRepository() *EventRepository {
	return &EventRepository{events: make(map[string]*event.Event)}
}

func (r *EventRepository) Create(_ context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *e
	r.events[e.ID] = &stored
	return nil
}

func (r *EventRepository) GetByID(_ context.Context, id string) (*event.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

// Update は楽観的ロックで更新する。成功すると e.Version が進む
func (r *EventRepository) Update(_ context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.events[e.ID]
	if !ok {
		return event.ErrEventNotFound
	}
	if stored.Version != e.Version {
		return event.ErrOptimisticLockConflict
	}
	e.Version++
	cp := *e
	r.events[e.ID] = &cp
	return nil
}

func (r *EventRepository) ListActive(_ context.Context) ([]*event.Event, error) {
	return r.filter(func(e *event.Event) bool { return e.IsActive() }, 0), nil
}

func (r *EventRepository) ListUpcoming(_ context.Context, communityID string, from time.Time, limit int) ([]*event.Event, error) {
	return r.filter(func(e *event.Event) bool {
		if !e.IsActive() || !e.StartsAt.After(from) {
			return false
		}
		return communityID == "" || e.CommunityID == communityID
	}, limit), nil
}

func (r *EventRepository) ListAdmissionDue(_ context.Context, now time.Time) ([]*event.Event, error) {
	return r.filter(func(e *event.Event) bool {
		return e.IsActive() && !e.AdmissionOpen && !e.AdmissionOpensAt.After(now)
	}, 0), nil
}

// filter は条件に合うイベントを開始時刻順に返す。limit が0なら全件
func (r *EventRepository) filter(match func(*event.Event) bool, limit int) []*event.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*event.Event, 0)
	for _, e := range r.events {
		if match(e) {
			cp := *e
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartsAt.Equal(result[j].StartsAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartsAt.Before(result[j].StartsAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
