package event

import (
	"context"
	"time"
)

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id string) (*Event, error)

	// Update はイベントを更新する（楽観的ロック）
	Update(ctx context.Context, event *Event) error

	// ListActive は有効なイベントを開始時刻順に取得する
	ListActive(ctx context.Context) ([]*Event, error)

	// ListUpcoming は from 以降に開始する有効なイベントを取得する。communityID が空なら全件
	ListUpcoming(ctx context.Context, communityID string, from time.Time, limit int) ([]*Event, error)

	// ListAdmissionDue は受付開始時刻を過ぎても受付が閉じたままの有効なイベントを取得する
	ListAdmissionDue(ctx context.Context, now time.Time) ([]*Event, error)
}
