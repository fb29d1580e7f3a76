package application

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/infrastructure/memory"
	"github.com/sanosuguru/go-event-admission/internal/pkg/clock"
	"github.com/sanosuguru/go-event-admission/internal/pkg/keylock"
	"github.com/sanosuguru/go-event-admission/internal/scheduler"
)

var baseNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type jobCall struct {
	eventID string
	job     scheduler.JobType
}

// fakeScheduler は登録・取消の呼び出しを記録する
type fakeScheduler struct {
	mu            sync.Mutex
	scheduled     map[string]event.Event
	cancelled     []string
	cancelledJobs []jobCall
	recovered     []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: map[string]event.Event{}}
}

func (f *fakeScheduler) Schedule(ev *event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[ev.ID] = *ev
}

func (f *fakeScheduler) Cancel(eventID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, eventID)
	delete(f.scheduled, eventID)
}

func (f *fakeScheduler) CancelJob(eventID string, job scheduler.JobType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelledJobs = append(f.cancelledJobs, jobCall{eventID, job})
}

func (f *fakeScheduler) RecoverAll(events []*event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range events {
		f.recovered = append(f.recovered, ev.ID)
	}
}

func (f *fakeScheduler) last(eventID string) (event.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.scheduled[eventID]
	return ev, ok
}

// recordingNotifier は送信された通知を記録する
type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, notification)
	return n.err
}

func (n *recordingNotifier) byKind(kind NotificationKind) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notification
	for _, item := range n.items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

type testEnv struct {
	clock        *clock.Fake
	events       *memory.EventRepository
	participants *memory.ParticipantRepository
	audit        *memory.AuditRepository
	settings     *memory.SettingsRepository
	scheduler    *fakeScheduler
	notifier     *recordingNotifier
	eventSvc     *EventService
	participant  *ParticipantService
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:        clock.NewFake(baseNow),
		events:       memory.NewEventRepository(),
		participants: memory.NewParticipantRepository(),
		audit:        memory.NewAuditRepository(),
		settings:     memory.NewSettingsRepository(),
		scheduler:    newFakeScheduler(),
		notifier:     &recordingNotifier{},
	}
	locker := keylock.New()
	env.eventSvc = NewEventService(EventServiceDeps{
		Events:       env.events,
		Participants: env.participants,
		Audit:        env.audit,
		Settings:     env.settings,
		Locker:       locker,
		Scheduler:    env.scheduler,
		Notifier:     env.notifier,
		DrawEngine:   NewDrawEngine(rand.New(rand.NewPCG(1, 2))),
		Clock:        env.clock,
		Defaults:     EventDefaults{Timezone: "Europe/Paris", ReminderMinutes: 60},
	})
	env.participant = NewParticipantService(env.events, env.participants, env.audit, locker, nil, env.clock, nil)
	return env
}

func intPtr(v int) *int { return &v }

func (env *testEnv) createEvent(t testing.TB, modify func(in *CreateEventInput)) *event.Event {
	t.Helper()
	in := CreateEventInput{
		CommunityID:            "community-1",
		Title:                  "テスト大会",
		Slots:                  10,
		StartsAt:               baseNow.Add(24 * time.Hour),
		AdmissionOffsetMinutes: intPtr(60),
		CreatorID:              "admin",
	}
	if modify != nil {
		modify(&in)
	}
	ev, err := env.eventSvc.CreateEvent(context.Background(), in)
	require.NoError(t, err)
	return ev
}

// createOpenEvent は受付中のイベントを作成する
func (env *testEnv) createOpenEvent(t testing.TB, slots int) *event.Event {
	t.Helper()
	return env.createEvent(t, func(in *CreateEventInput) {
		in.Slots = slots
		in.AdmissionOffsetMinutes = intPtr(1440)
	})
}

func (env *testEnv) join(t *testing.T, eventID string, users ...string) {
	t.Helper()
	for _, u := range users {
		_, err := env.participant.Join(context.Background(), JoinInput{EventID: eventID, UserID: u, UserTag: u + "#0001"})
		require.NoError(t, err)
	}
}
