// Package metrics は Prometheus メトリクスの定義と記録を行う。
// 記録メソッドは nil レシーバーでも安全に呼べる
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace は全メトリクス名の接頭辞
const Namespace = "event_admission"

// Metrics はアプリケーションのメトリクス一式
type Metrics struct {
	// method, route, status_code
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// operation: join/leave, status: success/full/duplicate/closed/not_found/error
	EnrollmentsTotal *prometheus.CounterVec

	// mode: manual/auto, status: success/empty/error
	DrawsTotal *prometheus.CounterVec

	// job: admission/reminder/auto_draw, status: success/error/panic
	TriggersTotal *prometheus.CounterVec
	ScheduledJobs *prometheus.GaugeVec

	// operation: acquire/release, status: success/failed
	DistributedLockDuration *prometheus.HistogramVec
}

// New はデフォルトレジストリに登録した Metrics を返す
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は reg に登録した Metrics を返す。テストでは専用レジストリを渡す
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		EnrollmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "enrollments_total",
			Help:      "Join and leave attempts by outcome.",
		}, []string{"operation", "status"}),
		DrawsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "draws_total",
			Help:      "Winner draws by mode and outcome.",
		}, []string{"mode", "status"}),
		TriggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "triggers_total",
			Help:      "Fired scheduler triggers by job and outcome.",
		}, []string{"job", "status"}),
		ScheduledJobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "pending_jobs",
			Help:      "Armed scheduler jobs waiting to fire.",
		}, []string{"job"}),
		DistributedLockDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "lock",
			Name:      "duration_seconds",
			Help:      "Time spent on distributed event lock operations.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation", "status"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EnrollmentsTotal,
		m.DrawsTotal,
		m.TriggersTotal,
		m.ScheduledJobs,
		m.DistributedLockDuration,
	)
	return m
}

// ObserveHTTP は1リクエスト分の件数とレイテンシを記録する
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveEnrollment は参加・離脱の結果を数える
func (m *Metrics) ObserveEnrollment(operation, status string) {
	if m == nil {
		return
	}
	m.EnrollmentsTotal.WithLabelValues(operation, status).Inc()
}

// ObserveDraw は抽選の結果を数える
func (m *Metrics) ObserveDraw(mode, status string) {
	if m == nil {
		return
	}
	m.DrawsTotal.WithLabelValues(mode, status).Inc()
}

// ObserveTrigger はトリガー実行の結果を数える
func (m *Metrics) ObserveTrigger(job, status string) {
	if m == nil {
		return
	}
	m.TriggersTotal.WithLabelValues(job, status).Inc()
}

// AddScheduledJobs は待機中ジョブ数を delta だけ増減する
func (m *Metrics) AddScheduledJobs(job string, delta float64) {
	if m == nil {
		return
	}
	m.ScheduledJobs.WithLabelValues(job).Add(delta)
}

// ObserveLock は start からの経過時間をロック操作時間として記録する
func (m *Metrics) ObserveLock(operation, status string, start time.Time) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

var defaultMetrics *Metrics

// Init はデフォルトレジストリに登録したインスタンスをプロセス共通として保持する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get は Init で作成したインスタンスを返す。未初期化なら nil
func Get() *Metrics {
	return defaultMetrics
}
