package handler

import (
	"context"

	"github.com/sanosuguru/go-event-admission/internal/application"
	"github.com/sanosuguru/go-event-admission/internal/domain/auditlog"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/participant"
	"github.com/sanosuguru/go-event-admission/internal/domain/settings"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error)
	GetEvent(ctx context.Context, id string) (*event.Event, error)
	GetEventSummary(ctx context.Context, id string) (*application.EventSummary, error)
	ListUpcoming(ctx context.Context, communityID string, limit int) ([]*event.Event, error)
	EditEvent(ctx context.Context, input application.EditEventInput) (*event.Event, error)
	CancelEvent(ctx context.Context, eventID, actorID string) (*event.Event, error)
	ForceAdmissionOpen(ctx context.Context, eventID, actorID string) (*event.Event, error)
	Draw(ctx context.Context, input application.DrawInput) (*application.DrawResult, error)
	SetMessageReference(ctx context.Context, eventID, channelID, messageID string) (*event.Event, error)
	ListAudit(ctx context.Context, eventID string, limit int) ([]*auditlog.Entry, error)
}

// ParticipantServiceInterface は参加者サービスのインターフェース
type ParticipantServiceInterface interface {
	Join(ctx context.Context, input application.JoinInput) (int, error)
	Leave(ctx context.Context, eventID, userID string) (int, error)
	List(ctx context.Context, eventID string) ([]*participant.Participant, error)
	SetAdmission(ctx context.Context, eventID, userID string, admitted bool) (*participant.Participant, error)
}

// SettingsServiceInterface はコミュニティ設定サービスのインターフェース
type SettingsServiceInterface interface {
	Get(ctx context.Context, communityID string) (*settings.Settings, error)
	Update(ctx context.Context, input application.UpdateSettingsInput) (*settings.Settings, error)
}
