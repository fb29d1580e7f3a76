package participant

import "context"

// Repository は参加者リポジトリのインターフェース
type Repository interface {
	// Add は参加者数が capacity 未満の場合に限り末尾に追加し、採番した位置を返す。
	// 件数確認と追加は1つのアトミックな操作として行われる
	Add(ctx context.Context, p *Participant, capacity int) (int, error)

	// Remove は参加者を削除し、残りの位置を 1..N に詰め直す。残りの人数を返す
	Remove(ctx context.Context, eventID, userID string) (int, error)

	// Get は参加者を取得する
	Get(ctx context.Context, eventID, userID string) (*Participant, error)

	// ListByEvent は参加者を位置の昇順で取得する
	ListByEvent(ctx context.Context, eventID string) ([]*Participant, error)

	// Count は参加者数を返す
	Count(ctx context.Context, eventID string) (int, error)

	// SetAdmission は参加者の当選フラグを設定する
	SetAdmission(ctx context.Context, eventID, userID string, admitted bool) error

	// ApplyDrawResult は winnerIDs を当選、それ以外を落選としてアトミックに書き換える
	ApplyDrawResult(ctx context.Context, eventID string, winnerIDs []string) error
}
