package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-admission/internal/api"
	"github.com/sanosuguru/go-event-admission/internal/api/handler"
	"github.com/sanosuguru/go-event-admission/internal/api/middleware"
	"github.com/sanosuguru/go-event-admission/internal/application"
	"github.com/sanosuguru/go-event-admission/internal/infrastructure/memory"
	"github.com/sanosuguru/go-event-admission/internal/infrastructure/messaging"
	"github.com/sanosuguru/go-event-admission/internal/pkg/clock"
	"github.com/sanosuguru/go-event-admission/internal/pkg/keylock"
	"github.com/sanosuguru/go-event-admission/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-admission/internal/scheduler"
)

const topicPrefix = "events."

// TestServer はE2Eテスト用のサーバー。ストレージはインメモリ、通知は gochannel に流す
type TestServer struct {
	Echo      *echo.Echo
	Events    *application.EventService
	Scheduler *scheduler.Scheduler
	pubsub    *gochannel.GoChannel
}

// NewTestServer はテスト用サーバーを作成する。終了処理は t.Cleanup で登録される
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	clk := clock.NewSystem()
	locker := keylock.New()

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	notifier := messaging.NewPublisherNotifier(pubsub, topicPrefix)

	events := memory.NewEventRepository()
	participants := memory.NewParticipantRepository()
	audit := memory.NewAuditRepository()
	settingsRepo := memory.NewSettingsRepository()

	sched := scheduler.New(clk, m)
	eventService := application.NewEventService(application.EventServiceDeps{
		Events:       events,
		Participants: participants,
		Audit:        audit,
		Settings:     settingsRepo,
		Locker:       locker,
		Scheduler:    sched,
		Notifier:     notifier,
		Clock:        clk,
		Defaults: application.EventDefaults{
			Timezone:        "Europe/Paris",
			ReminderMinutes: 60,
		},
		Metrics: m,
	})
	sched.BindHandlers(eventService)

	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e, m)
	handler.RegisterRoutes(e, handler.Handlers{
		Health:      handler.NewHealthHandler(nil),
		Event:       handler.NewEventHandler(eventService),
		Participant: handler.NewParticipantHandler(application.NewParticipantService(events, participants, audit, locker, nil, clk, m)),
		Settings:    handler.NewSettingsHandler(application.NewSettingsService(settingsRepo, clk)),
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sched.Shutdown(ctx)
		_ = notifier.Close()
	})

	return &TestServer{Echo: e, Events: eventService, Scheduler: sched, pubsub: pubsub}
}

// Request はHTTPリクエストを実行する
func (s *TestServer) Request(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

// Subscribe は通知の種類ごとのトピックを購読する。イベント作成より前に呼ぶこと
func (s *TestServer) Subscribe(t *testing.T, kind application.NotificationKind) <-chan *message.Message {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, err := s.pubsub.Subscribe(ctx, topicPrefix+string(kind))
	require.NoError(t, err)
	return ch
}

// decode はレスポンスボディを map に展開する
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}
