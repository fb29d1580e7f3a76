package application

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-admission/internal/domain/auditlog"
	"github.com/sanosuguru/go-event-admission/internal/pkg/clock"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
)

// auditor は監査ログを記録する。記録に失敗しても呼び出し元の処理は失敗させない
type auditor struct {
	repo  auditlog.Repository
	clock clock.Clock
}

func (a auditor) record(ctx context.Context, eventID, actorID string, action auditlog.Action, message string, metadata map[string]any) {
	if a.repo == nil {
		return
	}
	if actorID == "" {
		actorID = auditlog.SystemActor
	}
	entry := &auditlog.Entry{
		ID:        uuid.NewString(),
		EventID:   eventID,
		ActorID:   actorID,
		Action:    action,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: a.clock.Now(),
	}
	if err := a.repo.Append(ctx, entry); err != nil {
		logger.ForEvent(eventID).Warn("監査ログの記録に失敗しました",
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}
