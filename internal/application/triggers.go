package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-admission/internal/domain/auditlog"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/participant"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
	"github.com/sanosuguru/go-event-admission/internal/scheduler"
)

var _ scheduler.Handlers = (*EventService)(nil)

// loadForTrigger はトリガー用にイベントを取得する。存在しない場合は nil を返す
func (s *EventService) loadForTrigger(ctx context.Context, eventID string) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, eventID)
	if errors.Is(err, event.ErrEventNotFound) {
		logger.ForEvent(eventID).Debug("トリガー対象のイベントが存在しません")
		return nil, nil
	}
	return e, err
}

// OnAdmissionOpen は受付開始時刻に呼ばれる。有効かつ受付前のイベントのみ受付を開始する
func (s *EventService) OnAdmissionOpen(ctx context.Context, eventID string) error {
	unlock, err := s.lock(ctx, eventID)
	if err != nil {
		return err
	}
	defer unlock()

	e, err := s.loadForTrigger(ctx, eventID)
	if err != nil || e == nil {
		return err
	}
	if !e.IsActive() || e.AdmissionOpen {
		return nil
	}
	if err := s.openAdmission(ctx, e); err != nil {
		return err
	}
	s.audit.record(ctx, e.ID, auditlog.SystemActor, auditlog.ActionAdmissionOpened, "受付が開始されました", nil)
	return nil
}

// OnReminder はリマインダー時刻に呼ばれる。状態は変更しない
func (s *EventService) OnReminder(ctx context.Context, eventID string) error {
	unlock, err := s.lock(ctx, eventID)
	if err != nil {
		return err
	}
	defer unlock()

	e, err := s.loadForTrigger(ctx, eventID)
	if err != nil || e == nil {
		return err
	}
	if !e.IsActive() {
		return nil
	}
	ps, err := s.participantRepo.ListByEvent(ctx, e.ID)
	if err != nil {
		return err
	}
	if len(ps) == 0 {
		return nil
	}

	n := newNotification(NotificationReminder, e, s.clock.Now())
	n.Recipients = participant.UserIDs(ps)
	s.notify(ctx, n)
	s.audit.record(ctx, e.ID, auditlog.SystemActor, auditlog.ActionReminderSent, "リマインダーを送信しました", map[string]any{
		"recipients": len(ps),
	})
	return nil
}

// OnAutoDraw は開始時刻に呼ばれ、定員数で抽選する。抽選の失敗はログに残してエラーにしない
func (s *EventService) OnAutoDraw(ctx context.Context, eventID string) error {
	unlock, err := s.lock(ctx, eventID)
	if err != nil {
		return err
	}
	defer unlock()

	e, err := s.loadForTrigger(ctx, eventID)
	if err != nil || e == nil {
		return err
	}
	if !e.IsActive() {
		return nil
	}
	if _, err := s.draw(ctx, e, e.Slots, drawModeAuto, auditlog.SystemActor); err != nil {
		logger.ForEvent(e.ID).Warn("自動抽選を実行できませんでした", zap.Error(err))
	}
	return nil
}

// OpenDueAdmissions は受付開始時刻を過ぎても閉じたままのイベントの受付を開始し、処理件数を返す。
// タイマーの遅延や取りこぼしを補うために定期実行する
func (s *EventService) OpenDueAdmissions(ctx context.Context) (int, error) {
	due, err := s.eventRepo.ListAdmissionDue(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	opened := 0
	for _, e := range due {
		if err := s.OnAdmissionOpen(ctx, e.ID); err != nil {
			logger.ForEvent(e.ID).Warn("受付開始の補完に失敗しました", zap.Error(err))
			continue
		}
		opened++
	}
	return opened, nil
}
