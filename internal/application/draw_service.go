package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-admission/internal/domain"
	"github.com/sanosuguru/go-event-admission/internal/domain/auditlog"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/participant"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
)

const (
	drawModeManual = "manual"
	drawModeAuto   = "auto"
)

type DrawInput struct {
	EventID string
	// nil の場合は定員数を当選者数とする
	Winners *int
	ActorID string
}

// DrawResult は抽選結果
type DrawResult struct {
	EventID  string
	Winners  []*participant.Participant
	PoolSize int
}

// Draw は参加者から当選者を抽選し、結果を保存する。再抽選は前回の結果を完全に置き換える。
// 検査順はイベントの存在、状態、参加者の有無、当選者数
func (s *EventService) Draw(ctx context.Context, input DrawInput) (*DrawResult, error) {
	unlock, err := s.lock(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	e, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if !e.IsActive() {
		return nil, event.ErrEventNotActive
	}
	requested := e.Slots
	if input.Winners != nil {
		requested = *input.Winners
	}
	return s.draw(ctx, e, requested, drawModeManual, input.ActorID)
}

// draw はロック取得済みの状態で抽選を行う
func (s *EventService) draw(ctx context.Context, e *event.Event, requested int, mode, actorID string) (*DrawResult, error) {
	pool, err := s.participantRepo.ListByEvent(ctx, e.ID)
	if err != nil {
		s.observeDraw(mode, "error")
		return nil, fmt.Errorf("参加者の取得に失敗: %w", err)
	}

	winners, err := s.drawEngine.Select(pool, requested)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPool) {
			s.observeDraw(mode, "empty")
		} else {
			s.observeDraw(mode, "error")
		}
		return nil, err
	}

	winnerIDs := participant.UserIDs(winners)
	if err := s.participantRepo.ApplyDrawResult(ctx, e.ID, winnerIDs); err != nil {
		s.observeDraw(mode, "error")
		return nil, fmt.Errorf("抽選結果の保存に失敗: %w", err)
	}
	for _, p := range pool {
		p.Admitted = false
	}
	for _, w := range winners {
		w.Admitted = true
	}
	s.observeDraw(mode, "success")

	n := newNotification(NotificationDrawResults, e, s.clock.Now())
	n.Recipients = participant.UserIDs(pool)
	n.Winners = winnerIDs
	s.notify(ctx, n)

	action := auditlog.ActionManualDraw
	if mode == drawModeAuto {
		action = auditlog.ActionAutoDraw
	}
	s.audit.record(ctx, e.ID, actorID, action, fmt.Sprintf("%d人の当選者を抽選しました", len(winners)), map[string]any{
		"winners": winnerIDs,
	})
	logger.ForEvent(e.ID).Info("抽選を実行しました",
		zap.String("mode", mode),
		zap.Int("pool", len(pool)),
		zap.Int("winners", len(winners)),
	)

	return &DrawResult{EventID: e.ID, Winners: winners, PoolSize: len(pool)}, nil
}

func (s *EventService) observeDraw(mode, status string) {
	s.metrics.ObserveDraw(mode, status)
}
