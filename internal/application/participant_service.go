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
	"github.com/sanosuguru/go-event-admission/internal/pkg/clock"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
	"github.com/sanosuguru/go-event-admission/internal/pkg/metrics"
)

// ParticipantService はイベントの参加者を管理する
type ParticipantService struct {
	eventRepo       event.Repository
	participantRepo participant.Repository
	locker          EventLocker
	counter         ParticipantCounter
	clock           clock.Clock
	metrics         *metrics.Metrics
	audit           auditor
}

func NewParticipantService(er event.Repository, pr participant.Repository, ar auditlog.Repository, locker EventLocker, counter ParticipantCounter, clk clock.Clock, m *metrics.Metrics) *ParticipantService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &ParticipantService{
		eventRepo:       er,
		participantRepo: pr,
		locker:          locker,
		counter:         counter,
		clock:           clk,
		metrics:         m,
		audit:           auditor{repo: ar, clock: clk},
	}
}

type JoinInput struct {
	EventID string
	UserID  string
	UserTag string
}

// Join はイベントに参加し、採番された位置（1始まり）を返す
func (s *ParticipantService) Join(ctx context.Context, input JoinInput) (int, error) {
	p := participant.NewParticipant(input.EventID, input.UserID, input.UserTag, s.clock.Now())
	if err := p.Validate(); err != nil {
		return 0, err
	}

	unlock, err := s.locker.Lock(ctx, input.EventID)
	if err != nil {
		return 0, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	defer unlock()

	ev, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		s.observe("join", err)
		return 0, err
	}
	if err := ev.CanJoin(); err != nil {
		s.observe("join", err)
		return 0, err
	}

	position, err := s.participantRepo.Add(ctx, p, ev.Slots)
	if err != nil {
		s.observe("join", err)
		if domain.KindOf(err) != nil {
			return 0, err
		}
		return 0, fmt.Errorf("参加登録に失敗: %w", err)
	}
	s.observe("join", nil)
	s.invalidateCount(ctx, ev.ID)

	s.audit.record(ctx, ev.ID, input.UserID, auditlog.ActionJoinEvent, fmt.Sprintf("%s が参加しました", displayName(input.UserTag, input.UserID)), map[string]any{
		"count": position,
	})
	return position, nil
}

// Leave はイベントから退出し、残りの参加者数を返す。残りの参加者の位置は詰め直される
func (s *ParticipantService) Leave(ctx context.Context, eventID, userID string) (int, error) {
	unlock, err := s.locker.Lock(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	defer unlock()

	ev, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		s.observe("leave", err)
		return 0, err
	}
	if !ev.IsActive() {
		s.observe("leave", event.ErrEventNotActive)
		return 0, event.ErrEventNotActive
	}

	remaining, err := s.participantRepo.Remove(ctx, eventID, userID)
	if err != nil {
		s.observe("leave", err)
		if domain.KindOf(err) != nil {
			return 0, err
		}
		return 0, fmt.Errorf("参加取消に失敗: %w", err)
	}
	s.observe("leave", nil)
	s.invalidateCount(ctx, eventID)

	s.audit.record(ctx, eventID, userID, auditlog.ActionLeaveEvent, "参加を取り消しました", map[string]any{
		"count": remaining,
	})
	return remaining, nil
}

// List は参加者を位置の昇順で返す
func (s *ParticipantService) List(ctx context.Context, eventID string) ([]*participant.Participant, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.participantRepo.ListByEvent(ctx, eventID)
}

// SetAdmission は参加者の当選フラグを設定する。同じ値の再設定は成功する
func (s *ParticipantService) SetAdmission(ctx context.Context, eventID, userID string, admitted bool) (*participant.Participant, error) {
	unlock, err := s.locker.Lock(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	defer unlock()

	ev, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.IsActive() {
		return nil, event.ErrEventNotActive
	}
	if err := s.participantRepo.SetAdmission(ctx, eventID, userID, admitted); err != nil {
		return nil, err
	}
	return s.participantRepo.Get(ctx, eventID, userID)
}

func (s *ParticipantService) invalidateCount(ctx context.Context, eventID string) {
	if s.counter == nil {
		return
	}
	if err := s.counter.Invalidate(ctx, eventID); err != nil {
		logger.ForEvent(eventID).Warn("参加者数キャッシュの無効化に失敗しました", zap.Error(err))
	}
}

func (s *ParticipantService) observe(operation string, err error) {
	s.metrics.ObserveEnrollment(operation, enrollmentStatus(err))
}

func enrollmentStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrCapacity):
		return "full"
	case errors.Is(err, domain.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, domain.ErrState):
		return "closed"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func displayName(tag, id string) string {
	if tag != "" {
		return tag
	}
	return id
}
