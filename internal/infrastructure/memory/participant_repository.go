package memory

import (
	"context"
	"sync"

	"github.com/sanosuguru/go-event-admission/internal/domain/participant"
)

// ParticipantRepository は参加者リポジトリのインメモリ実装。
// イベントごとに参加順のスライスを持ち、位置は常に 1..N に保たれる
type ParticipantRepository struct {
	mu      sync.RWMutex
	byEvent map[string][]*participant.Participant
}

func NewParticipantRepository() *ParticipantRepository {
	return &ParticipantRepository{byEvent: make(map[string][]*participant.Participant)}
}

func (r *ParticipantRepository) Add(_ context.Context, p *participant.Participant, capacity int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byEvent[p.EventID]
	if len(list) >= capacity {
		return 0, participant.ErrEventFull
	}
	if indexOf(list, p.UserID) >= 0 {
		return 0, participant.ErrAlreadyJoined
	}
	p.Position = len(list) + 1
	cp := *p
	r.byEvent[p.EventID] = append(list, &cp)
	return p.Position, nil
}

func (r *ParticipantRepository) Remove(_ context.Context, eventID, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byEvent[eventID]
	i := indexOf(list, userID)
	if i < 0 {
		return 0, participant.ErrParticipantNotFound
	}
	next := make([]*participant.Participant, 0, len(list)-1)
	next = append(next, list[:i]...)
	next = append(next, list[i+1:]...)
	for pos, p := range next {
		p.Position = pos + 1
	}
	r.byEvent[eventID] = next
	return len(next), nil
}

func (r *ParticipantRepository) Get(_ context.Context, eventID, userID string) (*participant.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byEvent[eventID]
	i := indexOf(list, userID)
	if i < 0 {
		return nil, participant.ErrParticipantNotFound
	}
	cp := *list[i]
	return &cp, nil
}

func (r *ParticipantRepository) ListByEvent(_ context.Context, eventID string) ([]*participant.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byEvent[eventID]
	result := make([]*participant.Participant, len(list))
	for i, p := range list {
		cp := *p
		result[i] = &cp
	}
	return result, nil
}

func (r *ParticipantRepository) Count(_ context.Context, eventID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEvent[eventID]), nil
}

func (r *ParticipantRepository) SetAdmission(_ context.Context, eventID, userID string, admitted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byEvent[eventID]
	i := indexOf(list, userID)
	if i < 0 {
		return participant.ErrParticipantNotFound
	}
	list[i].Admitted = admitted
	return nil
}

func (r *ParticipantRepository) ApplyDrawResult(_ context.Context, eventID string, winnerIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	winners := make(map[string]bool, len(winnerIDs))
	for _, id := range winnerIDs {
		winners[id] = true
	}
	for _, p := range r.byEvent[eventID] {
		p.Admitted = winners[p.UserID]
	}
	return nil
}

func indexOf(list []*participant.Participant, userID string) int {
	for i, p := range list {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}
