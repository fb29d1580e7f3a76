package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/sanosuguru/go-event-admission/internal/domain/auditlog"
)

// AuditRepository は監査ログのインメモリ実装
type AuditRepository struct {
	mu      sync.RWMutex
	entries []*auditlog.Entry
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Append(_ context.Context, entry *auditlog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	cp.Metadata = maps.Clone(entry.Metadata)
	r.entries = append(r.entries, &cp)
	return nil
}

// ListByEvent は新しい順に返す
func (r *AuditRepository) ListByEvent(_ context.Context, eventID string, limit int) ([]*auditlog.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*auditlog.Entry, 0)
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].EventID != eventID {
			continue
		}
		cp := *r.entries[i]
		result = append(result, &cp)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}
