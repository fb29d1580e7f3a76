package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/participant"
)

type participantRow struct {
	EventID  string    `db:"event_id"`
	UserID   string    `db:"user_id"`
	UserTag  *string   `db:"user_tag"`
	JoinedAt time.Time `db:"joined_at"`
	Position int       `db:"position"`
	Admitted bool      `db:"admitted"`
}

func (r *participantRow) toEntity() *participant.Participant {
	return &participant.Participant{
		EventID:  r.EventID,
		UserID:   r.UserID,
		UserTag:  deref(r.UserTag),
		JoinedAt: r.JoinedAt,
		Position: r.Position,
		Admitted: r.Admitted,
	}
}

// ParticipantRepository は参加者リポジトリのPostgreSQL実装
type ParticipantRepository struct {
	db        *sqlx.DB
	txManager *TxManager
}

// NewParticipantRepository はParticipantRepositoryを作成する
func NewParticipantRepository(db *sqlx.DB, txManager *TxManager) *ParticipantRepository {
	return &ParticipantRepository{db: db, txManager: txManager}
}

// Add はイベント行をロックした上で件数を確認し、末尾に追加する
func (r *ParticipantRepository) Add(ctx context.Context, p *participant.Participant, capacity int) (int, error) {
	var position int
	err := r.txManager.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockEventRow(ctx, tx, p.EventID); err != nil {
			return err
		}

		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM participants WHERE event_id = $1`, p.EventID); err != nil {
			return fmt.Errorf("参加者数の取得に失敗: %w", err)
		}
		if count >= capacity {
			return participant.ErrEventFull
		}

		position = count + 1
		query := `
			INSERT INTO participants (event_id, user_id, user_tag, joined_at, position, admitted)
			VALUES ($1, $2, $3, $4, $5, FALSE)
		`
		if _, err := tx.ExecContext(ctx, query, p.EventID, p.UserID, nullable(p.UserTag), p.JoinedAt, position); err != nil {
			var pgErr *pq.Error
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return participant.ErrAlreadyJoined
			}
			return fmt.Errorf("参加者の登録に失敗: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.Position = position
	return position, nil
}

// Remove はイベント行をロックした上で参加者を削除し、残りの位置を同じトランザクション内で詰め直す
func (r *ParticipantRepository) Remove(ctx context.Context, eventID, userID string) (int, error) {
	var remaining int
	err := r.txManager.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockEventRow(ctx, tx, eventID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE event_id = $1 AND user_id = $2`, eventID, userID)
		if err != nil {
			return fmt.Errorf("参加者の削除に失敗: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
		}
		if rowsAffected == 0 {
			return participant.ErrParticipantNotFound
		}

		renumber := `
			UPDATE participants p
			SET position = r.rn
			FROM (
				SELECT user_id, ROW_NUMBER() OVER (ORDER BY position) AS rn
				FROM participants
				WHERE event_id = $1
			) r
			WHERE p.event_id = $1 AND p.user_id = r.user_id AND p.position <> r.rn
		`
		if _, err := tx.ExecContext(ctx, renumber, eventID); err != nil {
			return fmt.Errorf("位置の振り直しに失敗: %w", err)
		}
		if err := tx.GetContext(ctx, &remaining, `SELECT COUNT(*) FROM participants WHERE event_id = $1`, eventID); err != nil {
			return fmt.Errorf("参加者数の取得に失敗: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// lockEventRow はトランザクション終了までイベント行を排他ロックする。
// 同じイベントへの追加と削除はこのロックで直列化される
func lockEventRow(ctx context.Context, tx *sqlx.Tx, eventID string) error {
	var id string
	if err := tx.GetContext(ctx, &id, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.ErrEventNotFound
		}
		return fmt.Errorf("イベントのロックに失敗: %w", err)
	}
	return nil
}

// Get は参加者を取得する
func (r *ParticipantRepository) Get(ctx context.Context, eventID, userID string) (*participant.Participant, error) {
	query := `
		SELECT event_id, user_id, user_tag, joined_at, position, admitted
		FROM participants WHERE event_id = $1 AND user_id = $2
	`
	var row participantRow
	if err := r.db.GetContext(ctx, &row, query, eventID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, participant.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("参加者の取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// ListByEvent は参加者を位置の昇順で取得する
func (r *ParticipantRepository) ListByEvent(ctx context.Context, eventID string) ([]*participant.Participant, error) {
	query := `
		SELECT event_id, user_id, user_tag, joined_at, position, admitted
		FROM participants WHERE event_id = $1
		ORDER BY position
	`
	var rows []participantRow
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("参加者一覧の取得に失敗: %w", err)
	}
	ps := make([]*participant.Participant, len(rows))
	for i := range rows {
		ps[i] = rows[i].toEntity()
	}
	return ps, nil
}

// Count は参加者数を返す
func (r *ParticipantRepository) Count(ctx context.Context, eventID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM participants WHERE event_id = $1`, eventID); err != nil {
		return 0, fmt.Errorf("参加者数の取得に失敗: %w", err)
	}
	return count, nil
}

// SetAdmission は参加者の当選フラグを設定する
func (r *ParticipantRepository) SetAdmission(ctx context.Context, eventID, userID string, admitted bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE participants SET admitted = $1 WHERE event_id = $2 AND user_id = $3`,
		admitted, eventID, userID,
	)
	if err != nil {
		return fmt.Errorf("当選フラグの更新に失敗: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return participant.ErrParticipantNotFound
	}
	return nil
}

// ApplyDrawResult は1つの UPDATE で全参加者の当選フラグを書き換える
func (r *ParticipantRepository) ApplyDrawResult(ctx context.Context, eventID string, winnerIDs []string) error {
	query := `UPDATE participants SET admitted = (user_id = ANY($2)) WHERE event_id = $1`
	if _, err := r.db.ExecContext(ctx, query, eventID, pq.Array(winnerIDs)); err != nil {
		return fmt.Errorf("抽選結果の保存に失敗: %w", err)
	}
	return nil
}

// インターフェースを満たしているか確認
var _ participant.Repository = (*ParticipantRepository)(nil)
