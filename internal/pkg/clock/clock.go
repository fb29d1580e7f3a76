package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を注入するためのインターフェース
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem は time.Now を使う Clock を返す
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Fake はテスト用の手動で進める Clock
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake は指定時刻で止まった Clock を返す
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set は現在時刻を変更する
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance は現在時刻を d だけ進める
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
