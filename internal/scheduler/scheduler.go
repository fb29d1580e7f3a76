// Package scheduler はイベントごとのワンショットタイマー（受付開始・リマインダー・自動抽選）を管理する
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/pkg/clock"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
	"github.com/sanosuguru/go-event-admission/internal/pkg/metrics"
)

// JobType はトリガーの種類
type JobType string

const (
	JobAdmission JobType = "admission"
	JobReminder  JobType = "reminder"
	JobAutoDraw  JobType = "auto_draw"
)

var jobTypes = []JobType{JobAdmission, JobReminder, JobAutoDraw}

// Handlers はトリガー発火時に呼ばれるコールバック
type Handlers interface {
	OnAdmissionOpen(ctx context.Context, eventID string) error
	OnReminder(ctx context.Context, eventID string) error
	OnAutoDraw(ctx context.Context, eventID string) error
}

type jobKey struct {
	eventID string
	job     JobType
}

type job struct {
	gen   uint64
	at    time.Time
	timer *time.Timer
}

// Scheduler はジョブを (eventID, JobType) 単位で保持する。
// 各ジョブは世代番号を持ち、取消や再登録に負けた発火は何もしない
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[jobKey]*job
	nextGen  uint64
	handlers Handlers
	closed   bool

	clock   clock.Clock
	metrics *metrics.Metrics
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// New は Scheduler を作成する。m は nil でもよい
func New(clk clock.Clock, m *metrics.Metrics) *Scheduler {
	if clk == nil {
		clk = clock.NewSystem()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:    make(map[jobKey]*job),
		clock:   clk,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// BindHandlers はコールバックを登録する
func (s *Scheduler) BindHandlers(h Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = h
}

// Schedule はイベントの既存ジョブを取り消してから、必要なジョブを登録し直す。
// 発火時刻が現在以前のジョブは即座に（別のゴルーチンで）発火する
func (s *Scheduler) Schedule(ev *event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(ev.ID)
	if s.closed || !ev.IsActive() {
		return
	}

	if !ev.AdmissionOpen {
		s.armLocked(jobKey{ev.ID, JobAdmission}, ev.AdmissionOpensAt)
	}
	s.armLocked(jobKey{ev.ID, JobReminder}, ev.ReminderAt())
	s.armLocked(jobKey{ev.ID, JobAutoDraw}, ev.StartsAt)
}

// RecoverAll は起動時に有効なイベントのジョブを再登録する
func (s *Scheduler) RecoverAll(events []*event.Event) {
	recovered := 0
	for _, ev := range events {
		if !ev.IsActive() {
			continue
		}
		s.Schedule(ev)
		recovered++
	}
	logger.Info("スケジュールを復元しました", zap.Int("events", recovered))
}

// Cancel はイベントのすべてのジョブを取り消す。ジョブがなくても成功する
func (s *Scheduler) Cancel(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(eventID)
}

// CancelJob は指定したジョブのみ取り消す
func (s *Scheduler) CancelJob(eventID string, jt JobType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(jobKey{eventID, jt})
}

// Scheduled は登録済みジョブの発火予定時刻を返す
func (s *Scheduler) Scheduled(eventID string, jt JobType) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobKey{eventID, jt}]
	if !ok {
		return time.Time{}, false
	}
	return j.at, true
}

// Len は待機中のジョブ数を返す
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Shutdown は新しい発火を止め、実行中のコールバックの完了を待つ
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for key := range s.jobs {
		s.removeLocked(key)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	defer s.cancel()
	select {
	case <-done:
		logger.Info("スケジューラを停止しました")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("実行中のトリガーの完了待ちがタイムアウトしました: %w", ctx.Err())
	}
}

func (s *Scheduler) armLocked(key jobKey, at time.Time) {
	s.nextGen++
	gen := s.nextGen
	delay := at.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.jobs[key] = &job{
		gen:   gen,
		at:    at,
		timer: time.AfterFunc(delay, func() { s.fire(key, gen) }),
	}
	s.gauge(key.job, 1)
}

func (s *Scheduler) cancelLocked(eventID string) {
	for _, jt := range jobTypes {
		s.removeLocked(jobKey{eventID, jt})
	}
}

func (s *Scheduler) removeLocked(key jobKey) {
	j, ok := s.jobs[key]
	if !ok {
		return
	}
	j.timer.Stop()
	delete(s.jobs, key)
	s.gauge(key.job, -1)
}

func (s *Scheduler) fire(key jobKey, gen uint64) {
	s.mu.Lock()
	j, ok := s.jobs[key]
	if !ok || j.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, key)
	s.gauge(key.job, -1)
	h := s.handlers
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.run(h, key)
}

// run はコールバックを実行する。エラーとパニックはここで止めて記録する
func (s *Scheduler) run(h Handlers, key jobKey) {
	log := logger.ForEvent(key.eventID).With(zap.String("job", string(key.job)))
	status := "success"
	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			log.Error("トリガーの実行中にパニックが発生しました", zap.Any("panic", r))
		}
		s.count(key.job, status)
	}()

	if h == nil {
		status = "unbound"
		log.Warn("トリガーのハンドラが登録されていません")
		return
	}

	var err error
	switch key.job {
	case JobAdmission:
		err = h.OnAdmissionOpen(s.ctx, key.eventID)
	case JobReminder:
		err = h.OnReminder(s.ctx, key.eventID)
	case JobAutoDraw:
		err = h.OnAutoDraw(s.ctx, key.eventID)
	}
	if err != nil {
		status = "error"
		log.Error("トリガーの実行に失敗しました", zap.Error(err))
		return
	}
	log.Debug("トリガーを実行しました")
}

func (s *Scheduler) gauge(jt JobType, delta float64) {
	s.metrics.AddScheduledJobs(string(jt), delta)
}

func (s *Scheduler) count(jt JobType, status string) {
	s.metrics.ObserveTrigger(string(jt), status)
}
