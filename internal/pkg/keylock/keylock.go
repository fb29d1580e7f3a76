// Package keylock はキー単位の排他制御を提供する
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{}
	refs int
}

// Locker はキーごとに独立したミューテックス。使われていないキーのエントリは解放される
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New は新しい Locker を作成する
func New() *Locker {
	return &Locker{entries: make(map[string]*entry)}
}

// Lock は key のロックを取得し、解放関数を返す。
// ctx がキャンセルされた場合は待機をやめてエラーを返す
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *Locker) release(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// Len は現在保持しているキー数を返す
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
