package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
)

// AdmissionOpener は受付開始時刻を過ぎたイベントの受付を開始するインターフェース
type AdmissionOpener interface {
	OpenDueAdmissions(ctx context.Context) (int, error)
}

// AdmissionSweeper は受付開始の取りこぼしを定期的に補うワーカー
type AdmissionSweeper struct {
	opener   AdmissionOpener
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewAdmissionSweeper は新しいスイーパーを作成
func NewAdmissionSweeper(opener AdmissionOpener, interval time.Duration) *AdmissionSweeper {
	return &AdmissionSweeper{
		opener:   opener,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はスイーパーを開始する。ctx のキャンセルか Stop で戻る
func (w *AdmissionSweeper) Start(ctx context.Context) {
	logger.Info("受付開始スイーパー開始", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("受付開始スイーパー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("受付開始スイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止し、終了を待つ
func (w *AdmissionSweeper) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *AdmissionSweeper) sweep(ctx context.Context) {
	log := logger.Get()

	count, err := w.opener.OpenDueAdmissions(ctx)
	if err != nil {
		log.Error("受付開始の補完に失敗", zap.Error(err))
		return
	}
	if count > 0 {
		log.Info("受付開始を補完", zap.Int("count", count))
	}
}
