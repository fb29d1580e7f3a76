package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sanosuguru/go-event-admission/internal/api"
	"github.com/sanosuguru/go-event-admission/internal/api/handler"
	"github.com/sanosuguru/go-event-admission/internal/api/middleware"
	"github.com/sanosuguru/go-event-admission/internal/application"
	"github.com/sanosuguru/go-event-admission/internal/config"
	"github.com/sanosuguru/go-event-admission/internal/domain/auditlog"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/participant"
	"github.com/sanosuguru/go-event-admission/internal/domain/settings"
	"github.com/sanosuguru/go-event-admission/internal/infrastructure/memory"
	"github.com/sanosuguru/go-event-admission/internal/infrastructure/messaging"
	"github.com/sanosuguru/go-event-admission/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-event-admission/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-admission/internal/pkg/clock"
	"github.com/sanosuguru/go-event-admission/internal/pkg/keylock"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
	"github.com/sanosuguru/go-event-admission/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-admission/internal/scheduler"
	"github.com/sanosuguru/go-event-admission/internal/worker"
)

// repositories はストレージドライバーごとのリポジトリ一式
type repositories struct {
	events       event.Repository
	participants participant.Repository
	audit        auditlog.Repository
	settings     settings.Repository
}

func main() {
	cfg := config.Load()

	logger.Set(logger.NewLogger(cfg.App.Env))
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Fatal("アプリケーションが異常終了しました", zap.Error(err))
	}
	logger.Info("サーバーが正常にシャットダウンしました")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.Init()
	clk := clock.NewSystem()
	checks := map[string]handler.Pinger{}

	// ストレージ
	var repos repositories
	if cfg.App.UsesMemoryStorage() {
		logger.Warn("インメモリストレージで起動します。再起動でデータは失われます")
		repos = repositories{
			events:       memory.NewEventRepository(),
			participants: memory.NewParticipantRepository(),
			audit:        memory.NewAuditRepository(),
			settings:     memory.NewSettingsRepository(),
		}
	} else {
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.RunMigrations(db.DB, cfg.App.MigrationsPath); err != nil {
			return err
		}
		repos = postgresRepositories(db)
		checks["postgres"] = func(ctx context.Context) error { return postgres.Ping(ctx, db) }
	}

	// 排他制御・参加者数キャッシュ・通知
	var (
		locker   application.EventLocker = keylock.New()
		counter  application.ParticipantCounter
		notifier application.Notifier = messaging.LogNotifier{}
	)
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		locker = redis.NewEventLocker(client, cfg.Scheduler.LockTTL, m)
		counter = redis.NewParticipantCountCache(client)
		checks["redis"] = func(ctx context.Context) error { return redis.Ping(ctx, client) }

		if cfg.Messaging.StreamEnabled {
			publisher, err := newStreamPublisher(client)
			if err != nil {
				return err
			}
			pn := messaging.NewPublisherNotifier(publisher, cfg.Messaging.TopicPrefix)
			defer pn.Close()
			notifier = pn
		}
	} else {
		logger.Info("Redisは無効です。ロックはプロセス内のみで行います")
	}

	// サービスとスケジューラ
	sched := scheduler.New(clk, m)
	eventService := application.NewEventService(application.EventServiceDeps{
		Events:       repos.events,
		Participants: repos.participants,
		Audit:        repos.audit,
		Settings:     repos.settings,
		Locker:       locker,
		Scheduler:    sched,
		Notifier:     notifier,
		Counter:      counter,
		DrawEngine:   application.NewDrawEngine(nil),
		Clock:        clk,
		Defaults: application.EventDefaults{
			Timezone:               cfg.Event.DefaultTimezone,
			ReminderMinutes:        cfg.Event.DefaultReminderMinutes,
			AdmissionOffsetMinutes: cfg.Event.DefaultAdmissionOffset,
		},
		Metrics: m,
	})
	sched.BindHandlers(eventService)
	participantService := application.NewParticipantService(repos.events, repos.participants, repos.audit, locker, counter, clk, m)
	settingsService := application.NewSettingsService(repos.settings, clk)

	if err := eventService.RescheduleAll(ctx); err != nil {
		return err
	}

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e, m)

	handler.RegisterRoutes(e, handler.Handlers{
		Health:      handler.NewHealthHandler(checks),
		Event:       handler.NewEventHandler(eventService),
		Participant: handler.NewParticipantHandler(participantService),
		Settings:    handler.NewSettingsHandler(settingsService),
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(middleware.LoadMetricsConfig()))

	sweeper := worker.NewAdmissionSweeper(eventService, cfg.Scheduler.AdmissionSweepInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("サーバーを起動します",
			zap.String("port", cfg.Server.Port),
			zap.String("env", cfg.App.Env),
			zap.String("storage", cfg.App.StorageDriver),
		)
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバー起動エラー: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sweeper.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("サーバーをシャットダウンしています...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := e.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("サーバーシャットダウンエラー: %w", err))
		}
		if err := sched.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("スケジューラ停止エラー: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func postgresRepositories(db *sqlx.DB) repositories {
	return repositories{
		events:       postgres.NewEventRepository(db),
		participants: postgres.NewParticipantRepository(db, postgres.NewTxManager(db)),
		audit:        postgres.NewAuditRepository(db),
		settings:     postgres.NewSettingsRepository(db),
	}
}

func newStreamPublisher(client *goredis.Client) (message.Publisher, error) {
	publisher, err := messaging.NewRedisStreamPublisher(client, messaging.NewLoggerAdapter(logger.Get()))
	if err != nil {
		return nil, fmt.Errorf("通知ストリームの初期化に失敗: %w", err)
	}
	logger.Info("通知をRedis Streamへ配信します")
	return publisher, nil
}
