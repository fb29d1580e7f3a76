package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-admission/internal/pkg/keylock"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
	"github.com/sanosuguru/go-event-admission/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// 所有者確認と削除をアトミックに実行する
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// lockKeyPrefix は分散ロックのキー空間
const lockKeyPrefix = "lock:"

// eventLockKey は LockManager に渡すイベントロックのキー
func eventLockKey(eventID string) string {
	return "event:" + eventID
}

// DistributedLock は SET NX で取得した所有者トークン付きのロック
type DistributedLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// LockManager は Redis 上のロックの取得窓口
type LockManager struct {
	client *redis.Client
}

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// AcquireLock は一度だけ取得を試みる。保持者がいれば ErrLockNotAcquired
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	lock := &DistributedLock{
		client: m.client,
		key:    lockKeyPrefix + key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
	ok, err := m.client.SetNX(ctx, lock.key, lock.token, ttl).Result()
	switch {
	case err != nil:
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	case !ok:
		return nil, ErrLockNotAcquired
	}
	return lock, nil
}

// AcquireLockWithRetry は retryDelay 間隔で最大 attempts 回まで取得を試みる
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, attempts int, retryDelay time.Duration) (*DistributedLock, error) {
	ticker := time.NewTicker(retryDelay)
	defer ticker.Stop()

	err := ErrLockNotAcquired
	for range attempts {
		var lock *DistributedLock
		lock, err = m.AcquireLock(ctx, key, ttl)
		if !errors.Is(err, ErrLockNotAcquired) {
			return lock, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, err
}

// Release はロックを解放する
func (l *DistributedLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Extend はロックの有効期限を延長する
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	l.ttl = ttl
	return nil
}

const lockRetryDelay = 25 * time.Millisecond

// EventLocker はプロセス内のキー単位ロックと Redis の分散ロックを組み合わせ、
// 複数インスタンス間でイベント単位の変更を直列化する
type EventLocker struct {
	local   *keylock.Locker
	manager *LockManager
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewEventLocker は EventLocker を作成する。m は nil でもよい
func NewEventLocker(client *redis.Client, ttl time.Duration, m *metrics.Metrics) *EventLocker {
	return &EventLocker{
		local:   keylock.New(),
		manager: NewLockManager(client),
		ttl:     ttl,
		metrics: m,
	}
}

// Lock はイベントのロックを取得する。保持中は ttl の半分ごとに有効期限を延長する。
// 返す解放関数は何度呼んでもよい
func (l *EventLocker) Lock(ctx context.Context, eventID string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, eventID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	maxRetries := int(l.ttl/lockRetryDelay) + 1
	lock, err := l.manager.AcquireLockWithRetry(ctx, eventLockKey(eventID), l.ttl, maxRetries, lockRetryDelay)
	if err != nil {
		l.observe("acquire", "failed", start)
		unlockLocal()
		return nil, fmt.Errorf("イベントのロック取得に失敗: %w", err)
	}
	l.observe("acquire", "success", start)

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(lock, eventID, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			releaseStart := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := lock.Release(ctx); err != nil {
				l.observe("release", "failed", releaseStart)
				logger.ForEvent(eventID).Warn("分散ロックの解放に失敗しました", zap.Error(err))
			} else {
				l.observe("release", "success", releaseStart)
			}
			unlockLocal()
		})
	}, nil
}

func (l *EventLocker) keepAlive(lock *DistributedLock, eventID string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/2)
			err := lock.Extend(ctx, l.ttl)
			cancel()
			if err != nil {
				logger.ForEvent(eventID).Warn("分散ロックの延長に失敗しました", zap.Error(err))
				return
			}
		}
	}
}

func (l *EventLocker) observe(operation, status string, start time.Time) {
	l.metrics.ObserveLock(operation, status, start)
}
