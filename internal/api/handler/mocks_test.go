package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-event-admission/internal/application"
	"github.com/sanosuguru/go-event-admission/internal/domain/auditlog"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/participant"
	"github.com/sanosuguru/go-event-admission/internal/domain/settings"
)

// MockEventService はEventServiceInterfaceのモック
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) eventResult(args mock.Arguments) (*event.Event, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error) {
	return m.eventResult(m.Called(ctx, input))
}

func (m *MockEventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return m.eventResult(m.Called(ctx, id))
}

func (m *MockEventService) GetEventSummary(ctx context.Context, id string) (*application.EventSummary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.EventSummary), args.Error(1)
}

func (m *MockEventService) ListUpcoming(ctx context.Context, communityID string, limit int) ([]*event.Event, error) {
	args := m.Called(ctx, communityID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventService) EditEvent(ctx context.Context, input application.EditEventInput) (*event.Event, error) {
	return m.eventResult(m.Called(ctx, input))
}

func (m *MockEventService) CancelEvent(ctx context.Context, eventID, actorID string) (*event.Event, error) {
	return m.eventResult(m.Called(ctx, eventID, actorID))
}

func (m *MockEventService) ForceAdmissionOpen(ctx context.Context, eventID, actorID string) (*event.Event, error) {
	return m.eventResult(m.Called(ctx, eventID, actorID))
}

func (m *MockEventService) Draw(ctx context.Context, input application.DrawInput) (*application.DrawResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.DrawResult), args.Error(1)
}

func (m *MockEventService) SetMessageReference(ctx context.Context, eventID, channelID, messageID string) (*event.Event, error) {
	return m.eventResult(m.Called(ctx, eventID, channelID, messageID))
}

func (m *MockEventService) ListAudit(ctx context.Context, eventID string, limit int) ([]*auditlog.Entry, error) {
	args := m.Called(ctx, eventID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auditlog.Entry), args.Error(1)
}

// MockParticipantService はParticipantServiceInterfaceのモック
type MockParticipantService struct {
	mock.Mock
}

func (m *MockParticipantService) Join(ctx context.Context, input application.JoinInput) (int, error) {
	args := m.Called(ctx, input)
	return args.Int(0), args.Error(1)
}

func (m *MockParticipantService) Leave(ctx context.Context, eventID, userID string) (int, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockParticipantService) List(ctx context.Context, eventID string) ([]*participant.Participant, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*participant.Participant), args.Error(1)
}

func (m *MockParticipantService) SetAdmission(ctx context.Context, eventID, userID string, admitted bool) (*participant.Participant, error) {
	args := m.Called(ctx, eventID, userID, admitted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*participant.Participant), args.Error(1)
}

// MockSettingsService はSettingsServiceInterfaceのモック
type MockSettingsService struct {
	mock.Mock
}

func (m *MockSettingsService) Get(ctx context.Context, communityID string) (*settings.Settings, error) {
	args := m.Called(ctx, communityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settings.Settings), args.Error(1)
}

func (m *MockSettingsService) Update(ctx context.Context, input application.UpdateSettingsInput) (*settings.Settings, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settings.Settings), args.Error(1)
}
