package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-admission/internal/domain/auditlog"
)

type auditRow struct {
	ID        string    `db:"id"`
	EventID   string    `db:"event_id"`
	ActorID   string    `db:"actor_id"`
	Action    string    `db:"action"`
	Message   *string   `db:"message"`
	Metadata  []byte    `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *auditRow) toEntity() (*auditlog.Entry, error) {
	var metadata map[string]any
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("メタデータの復元に失敗: %w", err)
		}
	}
	return &auditlog.Entry{
		ID:        r.ID,
		EventID:   r.EventID,
		ActorID:   r.ActorID,
		Action:    auditlog.Action(r.Action),
		Message:   deref(r.Message),
		Metadata:  metadata,
		CreatedAt: r.CreatedAt,
	}, nil
}

// AuditRepository は監査ログのPostgreSQL実装
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append は監査ログを1件追加する
func (r *AuditRepository) Append(ctx context.Context, entry *auditlog.Entry) error {
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("メタデータの変換に失敗: %w", err)
	}
	query := `
		INSERT INTO audit_logs (id, event_id, actor_id, action, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.EventID, entry.ActorID, string(entry.Action), nullable(entry.Message), raw, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("監査ログの保存に失敗: %w", err)
	}
	return nil
}

// ListByEvent は新しい順に取得する
func (r *AuditRepository) ListByEvent(ctx context.Context, eventID string, limit int) ([]*auditlog.Entry, error) {
	query := `
		SELECT id, event_id, actor_id, action, message, metadata, created_at
		FROM audit_logs WHERE event_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, eventID, limit); err != nil {
		return nil, fmt.Errorf("監査ログの取得に失敗: %w", err)
	}
	entries := make([]*auditlog.Entry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

var _ auditlog.Repository = (*AuditRepository)(nil)
