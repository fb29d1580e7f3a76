package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-admission/internal/domain"
	"github.com/sanosuguru/go-event-admission/internal/domain/auditlog"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/participant"
	"github.com/sanosuguru/go-event-admission/internal/domain/settings"
	"github.com/sanosuguru/go-event-admission/internal/infrastructure/memory"
	"github.com/sanosuguru/go-event-admission/internal/pkg/keylock"
	"github.com/sanosuguru/go-event-admission/internal/scheduler"
)

func strPtr(v string) *string { return &v }

func TestEventService_CreateEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("既定値で作成しジョブを登録する", func(t *testing.T) {
		env := newTestEnv(t)

		ev, err := env.eventSvc.CreateEvent(ctx, CreateEventInput{
			Title:    "テスト大会",
			Slots:    5,
			StartsAt: baseNow.Add(24 * time.Hour),
		})

		require.NoError(t, err)
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, "Europe/Paris", ev.Timezone)
		assert.Equal(t, 60, ev.ReminderMinutes)
		assert.Equal(t, 0, ev.AdmissionOffsetMinutes)
		assert.Equal(t, ev.StartsAt, ev.AdmissionOpensAt)
		assert.False(t, ev.AdmissionOpen)
		assert.Equal(t, event.StatusActive, ev.Status)

		_, ok := env.scheduler.last(ev.ID)
		assert.True(t, ok)
		stored, err := env.events.GetByID(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, ev.Title, stored.Title)

		entries, _ := env.audit.ListByEvent(ctx, ev.ID, 10)
		require.Len(t, entries, 1)
		assert.Equal(t, auditlog.ActionCreateEvent, entries[0].Action)
	})

	t.Run("受付開始時刻は開始時刻からオフセット分前", func(t *testing.T) {
		env := newTestEnv(t)

		ev := env.createEvent(t, func(in *CreateEventInput) { in.AdmissionOffsetMinutes = intPtr(90) })

		assert.Equal(t, ev.StartsAt.Add(-90*time.Minute), ev.AdmissionOpensAt)
	})

	t.Run("受付開始時刻が過去なら即座に受付中", func(t *testing.T) {
		env := newTestEnv(t)

		ev := env.createEvent(t, func(in *CreateEventInput) {
			in.StartsAt = baseNow.Add(30 * time.Minute)
			in.AdmissionOffsetMinutes = intPtr(60)
		})

		assert.True(t, ev.AdmissionOpen)
	})

	t.Run("コミュニティ設定が既定値より優先される", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.settings.Upsert(ctx, &settings.Settings{
			CommunityID:            "community-1",
			Timezone:               strPtr("Asia/Tokyo"),
			ReminderMinutes:        intPtr(15),
			AdmissionOffsetMinutes: intPtr(120),
		}))

		ev, err := env.eventSvc.CreateEvent(ctx, CreateEventInput{
			CommunityID: "community-1",
			Title:       "設定テスト",
			Slots:       3,
			StartsAt:    baseNow.Add(24 * time.Hour),
		})

		require.NoError(t, err)
		assert.Equal(t, "Asia/Tokyo", ev.Timezone)
		assert.Equal(t, 15, ev.ReminderMinutes)
		assert.Equal(t, 120, ev.AdmissionOffsetMinutes)
	})

	t.Run("入力値がコミュニティ設定より優先される", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.settings.Upsert(ctx, &settings.Settings{
			CommunityID:     "community-1",
			ReminderMinutes: intPtr(15),
		}))

		ev := env.createEvent(t, func(in *CreateEventInput) {
			in.ReminderMinutes = intPtr(45)
			in.Timezone = "America/New_York"
		})

		assert.Equal(t, 45, ev.ReminderMinutes)
		assert.Equal(t, "America/New_York", ev.Timezone)
	})

	tests := []struct {
		name        string
		modify      func(in *CreateEventInput)
		expectedErr error
	}{
		{"開始時刻が過去", func(in *CreateEventInput) { in.StartsAt = baseNow.Add(-time.Minute) }, event.ErrStartNotInFuture},
		{"開始時刻が現在", func(in *CreateEventInput) { in.StartsAt = baseNow }, event.ErrStartNotInFuture},
		{"定員0", func(in *CreateEventInput) { in.Slots = 0 }, event.ErrInvalidSlots},
		{"オフセット範囲外", func(in *CreateEventInput) { in.AdmissionOffsetMinutes = intPtr(2000) }, event.ErrInvalidAdmissionOffset},
		{"リマインダー範囲外", func(in *CreateEventInput) { in.ReminderMinutes = intPtr(1) }, event.ErrInvalidReminder},
		{"タイムゾーン不正", func(in *CreateEventInput) { in.Timezone = "Invalid/Zone" }, event.ErrInvalidTimezone},
	}
	for _, tt := range tests {
		t.Run("バリデーションエラー: "+tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			in := CreateEventInput{Title: "x", Slots: 1, StartsAt: baseNow.Add(time.Hour)}
			tt.modify(&in)

			_, err := env.eventSvc.CreateEvent(ctx, in)

			assert.ErrorIs(t, err, tt.expectedErr)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Empty(t, env.scheduler.scheduled)
		})
	}

	t.Run("保存に失敗した場合はジョブを登録しない", func(t *testing.T) {
		mockRepo := new(MockEventRepository)
		sched := newFakeScheduler()
		svc := NewEventService(EventServiceDeps{
			Events:    mockRepo,
			Locker:    keylock.New(),
			Scheduler: sched,
			Defaults:  EventDefaults{Timezone: "UTC", ReminderMinutes: 60},
		})
		mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*event.Event")).Return(errors.New("DB接続エラー"))

		_, err := svc.CreateEvent(ctx, CreateEventInput{Title: "x", Slots: 1, StartsAt: time.Now().Add(time.Hour)})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "イベント作成に失敗しました")
		assert.Empty(t, sched.scheduled)
		mockRepo.AssertExpectations(t)
	})
}

func TestEventService_EditEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("開始時刻を遅らせると受付が閉じ直される", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createEvent(t, func(in *CreateEventInput) {
			in.StartsAt = baseNow.Add(30 * time.Minute)
			in.AdmissionOffsetMinutes = intPtr(60)
		})
		require.True(t, ev.AdmissionOpen)

		newStart := baseNow.Add(48 * time.Hour)
		edited, err := env.eventSvc.EditEvent(ctx, EditEventInput{
			EventID: ev.ID,
			ActorID: "admin",
			Changes: event.Changes{StartsAt: &newStart},
		})

		require.NoError(t, err)
		assert.False(t, edited.AdmissionOpen)
		assert.Equal(t, newStart.Add(-60*time.Minute), edited.AdmissionOpensAt)
		assert.True(t, edited.AdmissionOpensAt.After(baseNow))

		scheduled, ok := env.scheduler.last(ev.ID)
		require.True(t, ok)
		assert.Equal(t, newStart, scheduled.StartsAt)

		_, err = env.participant.Join(ctx, JoinInput{EventID: ev.ID, UserID: "A"})
		assert.ErrorIs(t, err, event.ErrAdmissionClosed)
	})

	t.Run("定員を参加者数未満にはできない", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 5)
		env.join(t, ev.ID, "A", "B", "C")

		_, err := env.eventSvc.EditEvent(ctx, EditEventInput{EventID: ev.ID, Changes: event.Changes{Slots: intPtr(2)}})

		assert.ErrorIs(t, err, event.ErrSlotsBelowParticipants)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("定員を参加者数ちょうどにはできる", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 5)
		env.join(t, ev.ID, "A", "B", "C")

		edited, err := env.eventSvc.EditEvent(ctx, EditEventInput{EventID: ev.ID, Changes: event.Changes{Slots: intPtr(3)}})

		require.NoError(t, err)
		assert.Equal(t, 3, edited.Slots)
		assert.True(t, edited.AdmissionOpen)
	})

	t.Run("変更なしは検証エラー", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createEvent(t, nil)

		_, err := env.eventSvc.EditEvent(ctx, EditEventInput{EventID: ev.ID})

		assert.ErrorIs(t, err, event.ErrNoChanges)
	})

	t.Run("中止済みイベントは編集できない", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createEvent(t, nil)
		_, err := env.eventSvc.CancelEvent(ctx, ev.ID, "admin")
		require.NoError(t, err)

		_, err = env.eventSvc.EditEvent(ctx, EditEventInput{EventID: ev.ID, Changes: event.Changes{Title: strPtr("x")}})

		assert.ErrorIs(t, err, domain.ErrState)
	})

	t.Run("存在しないイベント", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.eventSvc.EditEvent(ctx, EditEventInput{EventID: "missing", Changes: event.Changes{Title: strPtr("x")}})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("存在しないイベントへの空の編集は NotFound", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.eventSvc.EditEvent(ctx, EditEventInput{EventID: "missing"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEventService_ForceAdmissionOpen(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ev := env.createEvent(t, nil)
	require.False(t, ev.AdmissionOpen)

	_, err := env.participant.Join(ctx, JoinInput{EventID: ev.ID, UserID: "A"})
	require.ErrorIs(t, err, domain.ErrState)

	env.clock.Advance(time.Hour)
	opened, err := env.eventSvc.ForceAdmissionOpen(ctx, ev.ID, "admin")
	require.NoError(t, err)
	assert.True(t, opened.AdmissionOpen)
	assert.Equal(t, baseNow.Add(time.Hour), opened.AdmissionOpensAt)
	assert.Contains(t, env.scheduler.cancelledJobs, jobCall{ev.ID, scheduler.JobAdmission})
	assert.Empty(t, env.scheduler.cancelled)
	assert.Len(t, env.notifier.byKind(NotificationAdmissionOpened), 1)

	pos, err := env.participant.Join(ctx, JoinInput{EventID: ev.ID, UserID: "A"})
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	_, err = env.eventSvc.ForceAdmissionOpen(ctx, ev.ID, "admin")
	assert.ErrorIs(t, err, event.ErrAdmissionAlreadyOpen)
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestEventService_CancelEvent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ev := env.createOpenEvent(t, 5)
	env.join(t, ev.ID, "A", "B")

	cancelled, err := env.eventSvc.CancelEvent(ctx, ev.ID, "admin")

	require.NoError(t, err)
	assert.Equal(t, event.StatusCancelled, cancelled.Status)
	assert.Equal(t, []string{ev.ID}, env.scheduler.cancelled)
	notes := env.notifier.byKind(NotificationEventCancelled)
	require.Len(t, notes, 1)
	assert.Equal(t, []string{"A", "B"}, notes[0].Recipients)

	_, err = env.participant.Join(ctx, JoinInput{EventID: ev.ID, UserID: "C"})
	assert.ErrorIs(t, err, domain.ErrState)

	_, err = env.eventSvc.CancelEvent(ctx, ev.ID, "admin")
	assert.ErrorIs(t, err, event.ErrEventNotActive)
}

func TestEventService_Draw(t *testing.T) {
	ctx := context.Background()

	t.Run("要求数が参加者数を超えると全員当選", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 10)
		env.join(t, ev.ID, "A", "B", "C", "D")

		result, err := env.eventSvc.Draw(ctx, DrawInput{EventID: ev.ID, Winners: intPtr(10), ActorID: "admin"})

		require.NoError(t, err)
		assert.Len(t, result.Winners, 4)
		assert.Equal(t, 4, result.PoolSize)
		list, _ := env.participants.ListByEvent(ctx, ev.ID)
		for _, p := range list {
			assert.True(t, p.Admitted, p.UserID)
		}
		notes := env.notifier.byKind(NotificationDrawResults)
		require.Len(t, notes, 1)
		assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, notes[0].Winners)
	})

	t.Run("当選者数を省略すると定員数", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 5)
		env.join(t, ev.ID, "A", "B", "C", "D", "E")
		_, err := env.participant.Leave(ctx, ev.ID, "E")
		require.NoError(t, err)
		_, err = env.eventSvc.EditEvent(ctx, EditEventInput{EventID: ev.ID, Changes: event.Changes{Slots: intPtr(4)}})
		require.NoError(t, err)

		result, err := env.eventSvc.Draw(ctx, DrawInput{EventID: ev.ID})

		require.NoError(t, err)
		assert.Len(t, result.Winners, 4)
		assert.Equal(t, 4, result.PoolSize)
	})

	t.Run("再抽選は前回の結果を置き換える", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 10)
		env.join(t, ev.ID, "A", "B", "C", "D", "E")

		for i := 0; i < 5; i++ {
			result, err := env.eventSvc.Draw(ctx, DrawInput{EventID: ev.ID, Winners: intPtr(2)})
			require.NoError(t, err)

			winners := map[string]bool{}
			for _, w := range result.Winners {
				winners[w.UserID] = true
			}
			list, _ := env.participants.ListByEvent(ctx, ev.ID)
			admitted := 0
			for _, p := range list {
				assert.Equal(t, winners[p.UserID], p.Admitted)
				if p.Admitted {
					admitted++
				}
			}
			assert.Equal(t, 2, admitted)
		}
	})

	t.Run("参加者がいない場合は EmptyPool", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 5)

		_, err := env.eventSvc.Draw(ctx, DrawInput{EventID: ev.ID})

		assert.ErrorIs(t, err, participant.ErrEmptyPool)
		assert.Equal(t, domain.ErrEmptyPool, domain.KindOf(err))
	})

	t.Run("当選者数0は検証エラー", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 5)
		env.join(t, ev.ID, "A")

		_, err := env.eventSvc.Draw(ctx, DrawInput{EventID: ev.ID, Winners: intPtr(0)})

		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("中止済みイベントは抽選できない", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 5)
		env.join(t, ev.ID, "A")
		_, err := env.eventSvc.CancelEvent(ctx, ev.ID, "admin")
		require.NoError(t, err)

		_, err = env.eventSvc.Draw(ctx, DrawInput{EventID: ev.ID})

		assert.ErrorIs(t, err, domain.ErrState)
	})

	// 当選者数の検証はイベント・状態・参加者の検査より後
	t.Run("当選者数0でも先に検出されるエラーが優先される", func(t *testing.T) {
		tests := []struct {
			name    string
			prepare func(t *testing.T, env *testEnv) string
			want    error
		}{
			{
				name: "参加者がいなければ EmptyPool",
				prepare: func(t *testing.T, env *testEnv) string {
					return env.createOpenEvent(t, 5).ID
				},
				want: domain.ErrEmptyPool,
			},
			{
				name: "中止済みなら StateError",
				prepare: func(t *testing.T, env *testEnv) string {
					ev := env.createOpenEvent(t, 5)
					env.join(t, ev.ID, "A")
					_, err := env.eventSvc.CancelEvent(ctx, ev.ID, "admin")
					require.NoError(t, err)
					return ev.ID
				},
				want: domain.ErrState,
			},
			{
				name: "存在しなければ NotFound",
				prepare: func(t *testing.T, env *testEnv) string {
					return "missing"
				},
				want: domain.ErrNotFound,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				env := newTestEnv(t)
				eventID := tt.prepare(t, env)

				_, err := env.eventSvc.Draw(ctx, DrawInput{EventID: eventID, Winners: intPtr(0)})

				assert.Equal(t, tt.want, domain.KindOf(err))
			})
		}
	})

	t.Run("当選者数が負なら検証エラー", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 5)
		env.join(t, ev.ID, "A")

		_, err := env.eventSvc.Draw(ctx, DrawInput{EventID: ev.ID, Winners: intPtr(-1)})

		assert.ErrorIs(t, err, participant.ErrInvalidWinnerCount)
	})
}

func TestEventService_Triggers(t *testing.T) {
	ctx := context.Background()

	t.Run("受付開始トリガーは一度だけ状態を変える", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createEvent(t, nil)
		env.clock.Set(ev.AdmissionOpensAt)

		require.NoError(t, env.eventSvc.OnAdmissionOpen(ctx, ev.ID))
		require.NoError(t, env.eventSvc.OnAdmissionOpen(ctx, ev.ID))

		stored, _ := env.events.GetByID(ctx, ev.ID)
		assert.True(t, stored.AdmissionOpen)
		assert.Len(t, env.notifier.byKind(NotificationAdmissionOpened), 1)
		entries, _ := env.audit.ListByEvent(ctx, ev.ID, 10)
		assert.Equal(t, auditlog.ActionAdmissionOpened, entries[0].Action)
		assert.Equal(t, auditlog.SystemActor, entries[0].ActorID)
	})

	t.Run("中止済みイベントでは受付開始トリガーは何もしない", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createEvent(t, nil)
		_, err := env.eventSvc.CancelEvent(ctx, ev.ID, "admin")
		require.NoError(t, err)

		require.NoError(t, env.eventSvc.OnAdmissionOpen(ctx, ev.ID))

		stored, _ := env.events.GetByID(ctx, ev.ID)
		assert.False(t, stored.AdmissionOpen)
	})

	t.Run("存在しないイベントのトリガーはエラーにしない", func(t *testing.T) {
		env := newTestEnv(t)

		assert.NoError(t, env.eventSvc.OnAdmissionOpen(ctx, "missing"))
		assert.NoError(t, env.eventSvc.OnReminder(ctx, "missing"))
		assert.NoError(t, env.eventSvc.OnAutoDraw(ctx, "missing"))
	})

	t.Run("リマインダーは参加者がいる場合のみ送信", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 5)

		require.NoError(t, env.eventSvc.OnReminder(ctx, ev.ID))
		assert.Empty(t, env.notifier.byKind(NotificationReminder))

		env.join(t, ev.ID, "A", "B")
		require.NoError(t, env.eventSvc.OnReminder(ctx, ev.ID))
		notes := env.notifier.byKind(NotificationReminder)
		require.Len(t, notes, 1)
		assert.Equal(t, []string{"A", "B"}, notes[0].Recipients)
	})

	t.Run("自動抽選は定員数で抽選する", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 2)
		env.join(t, ev.ID, "A", "B")

		require.NoError(t, env.eventSvc.OnAutoDraw(ctx, ev.ID))

		list, _ := env.participants.ListByEvent(ctx, ev.ID)
		for _, p := range list {
			assert.True(t, p.Admitted)
		}
		entries, _ := env.audit.ListByEvent(ctx, ev.ID, 1)
		assert.Equal(t, auditlog.ActionAutoDraw, entries[0].Action)
	})

	t.Run("自動抽選の失敗はエラーにしない", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 2)

		assert.NoError(t, env.eventSvc.OnAutoDraw(ctx, ev.ID))
		assert.Empty(t, env.notifier.byKind(NotificationDrawResults))
	})

	t.Run("通知の失敗は状態変更を巻き戻さない", func(t *testing.T) {
		env := newTestEnv(t)
		env.notifier.err = errors.New("配信失敗")
		ev := env.createEvent(t, nil)

		_, err := env.eventSvc.ForceAdmissionOpen(ctx, ev.ID, "admin")

		require.NoError(t, err)
		stored, _ := env.events.GetByID(ctx, ev.ID)
		assert.True(t, stored.AdmissionOpen)
	})
}

func TestEventService_RescheduleAll(t *testing.T) {
	ctx := context.Background()

	t.Run("有効なイベントを再登録する", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.createEvent(t, nil)
		b := env.createEvent(t, nil)
		_, err := env.eventSvc.CancelEvent(ctx, b.ID, "admin")
		require.NoError(t, err)

		require.NoError(t, env.eventSvc.RescheduleAll(ctx))

		assert.Equal(t, []string{a.ID}, env.scheduler.recovered)
	})

	t.Run("取得に失敗した場合はエラー", func(t *testing.T) {
		mockRepo := new(MockEventRepository)
		svc := NewEventService(EventServiceDeps{Events: mockRepo, Locker: keylock.New()})
		mockRepo.On("ListActive", mock.Anything).Return(nil, errors.New("DB接続エラー"))

		err := svc.RescheduleAll(ctx)

		assert.Error(t, err)
		mockRepo.AssertExpectations(t)
	})
}

func TestEventService_GetEventSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("キャッシュミス時は数えてキャッシュする", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 5)
		env.join(t, ev.ID, "A", "B")
		counter := new(MockParticipantCounter)
		svc := NewEventService(EventServiceDeps{
			Events:       env.events,
			Participants: env.participants,
			Locker:       keylock.New(),
			Counter:      counter,
		})
		counter.On("GetCount", mock.Anything, ev.ID).Return(0, errors.New("キャッシュが見つかりません"))
		counter.On("SetCount", mock.Anything, ev.ID, 2, participantCountTTL).Return(nil)

		summary, err := svc.GetEventSummary(ctx, ev.ID)

		require.NoError(t, err)
		assert.Equal(t, 2, summary.ParticipantCount)
		counter.AssertExpectations(t)
	})

	t.Run("キャッシュヒット時はキャッシュの値", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createOpenEvent(t, 5)
		counter := new(MockParticipantCounter)
		svc := NewEventService(EventServiceDeps{
			Events:       env.events,
			Participants: env.participants,
			Locker:       keylock.New(),
			Counter:      counter,
		})
		counter.On("GetCount", mock.Anything, ev.ID).Return(4, nil)

		summary, err := svc.GetEventSummary(ctx, ev.ID)

		require.NoError(t, err)
		assert.Equal(t, 4, summary.ParticipantCount)
		counter.AssertNotCalled(t, "SetCount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestEventService_ListUpcoming(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	later := env.createEvent(t, func(in *CreateEventInput) { in.StartsAt = baseNow.Add(48 * time.Hour) })
	sooner := env.createEvent(t, func(in *CreateEventInput) { in.StartsAt = baseNow.Add(2 * time.Hour) })
	env.createEvent(t, func(in *CreateEventInput) { in.CommunityID = "other" })

	events, err := env.eventSvc.ListUpcoming(ctx, "community-1", 0)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, sooner.ID, events[0].ID)
	assert.Equal(t, later.ID, events[1].ID)
}

func TestEventService_SetMessageReference(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ev := env.createEvent(t, nil)

	updated, err := env.eventSvc.SetMessageReference(ctx, ev.ID, "channel-1", "message-1")

	require.NoError(t, err)
	assert.Equal(t, "channel-1", updated.ChannelID)
	assert.Equal(t, "message-1", updated.MessageID)
	stored, _ := env.events.GetByID(ctx, ev.ID)
	assert.Equal(t, "message-1", stored.MessageID)

	t.Run("中止済みイベントには保存できない", func(t *testing.T) {
		cancelled := env.createEvent(t, nil)
		_, err := env.eventSvc.SetMessageReference(ctx, cancelled.ID, "channel-1", "message-1")
		require.NoError(t, err)
		_, err = env.eventSvc.CancelEvent(ctx, cancelled.ID, "admin")
		require.NoError(t, err)

		_, err = env.eventSvc.SetMessageReference(ctx, cancelled.ID, "channel-2", "message-2")

		assert.ErrorIs(t, err, event.ErrEventNotActive)
		stored, _ := env.events.GetByID(ctx, cancelled.ID)
		assert.Equal(t, "message-1", stored.MessageID)
		assert.Equal(t, "channel-1", stored.ChannelID)
	})
}

func TestEventService_ListAudit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ev := env.createOpenEvent(t, 5)
	env.join(t, ev.ID, "A")

	entries, err := env.eventSvc.ListAudit(ctx, ev.ID, 0)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, auditlog.ActionJoinEvent, entries[0].Action)
	assert.Equal(t, auditlog.ActionCreateEvent, entries[1].Action)

	_, err = env.eventSvc.ListAudit(ctx, "missing", 0)
	assert.ErrorIs(t, err, event.ErrEventNotFound)
}

func TestEventService_WithoutAuditRepository(t *testing.T) {
	svc := NewEventService(EventServiceDeps{
		Events:       memory.NewEventRepository(),
		Participants: memory.NewParticipantRepository(),
		Locker:       keylock.New(),
		Defaults:     EventDefaults{Timezone: "UTC", ReminderMinutes: 60},
	})

	ev, err := svc.CreateEvent(context.Background(), CreateEventInput{Title: "x", Slots: 1, StartsAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	entries, err := svc.ListAudit(context.Background(), ev.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEventService_OpenDueAdmissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	due := env.createEvent(t, nil)
	later := env.createEvent(t, func(in *CreateEventInput) {
		in.StartsAt = baseNow.Add(72 * time.Hour)
	})
	cancelled := env.createEvent(t, nil)
	_, err := env.eventSvc.CancelEvent(ctx, cancelled.ID, "admin")
	require.NoError(t, err)

	// 受付開始時刻（開始1時間前）を過ぎるまで進める
	env.clock.Advance(23*time.Hour + time.Minute)

	opened, err := env.eventSvc.OpenDueAdmissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, opened)

	got, err := env.eventSvc.GetEvent(ctx, due.ID)
	require.NoError(t, err)
	assert.True(t, got.AdmissionOpen)
	got, err = env.eventSvc.GetEvent(ctx, later.ID)
	require.NoError(t, err)
	assert.False(t, got.AdmissionOpen)
	assert.Len(t, env.notifier.byKind(NotificationAdmissionOpened), 1)

	t.Run("2回目は対象がない", func(t *testing.T) {
		opened, err := env.eventSvc.OpenDueAdmissions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, opened)
	})
}
