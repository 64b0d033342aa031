package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// ウェイティングリスト参加の総数（result: offered, waiting, duplicate, error）
	WaitlistJoinsTotal *prometheus.CounterVec

	// 発行されたオファーの総数（source: join, sweep）
	OffersIssuedTotal *prometheus.CounterVec

	// 期限切れ・解放されたオファーの総数（reason: timeout, released, event_cancelled）
	OffersExpiredTotal *prometheus.CounterVec

	// アドミッションスイープの実行回数（result: noop, offered, error）
	AdmissionSweepsTotal *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// イベントごとのアクティブオファー数
	ActiveOffers *prometheus.GaugeVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		WaitlistJoinsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_joins_total",
				Help: "Total number of waiting list join attempts",
			},
			[]string{"result"},
		),
		OffersIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_offers_issued_total",
				Help: "Total number of purchase offers issued",
			},
			[]string{"source"},
		),
		OffersExpiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_offers_expired_total",
				Help: "Total number of purchase offers reclaimed",
			},
			[]string{"reason"},
		),
		AdmissionSweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_admission_sweeps_total",
				Help: "Total number of admission sweep executions",
			},
			[]string{"result"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		ActiveOffers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "waitlist_active_offers",
				Help: "Current number of unexpired purchase offers",
			},
			[]string{"event_id"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WaitlistJoinsTotal,
		m.OffersIssuedTotal,
		m.OffersExpiredTotal,
		m.AdmissionSweepsTotal,
		m.DistributedLockDuration,
		m.ActiveOffers,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
// Init 前は nil を返すため、呼び出し側で nil チェックすること
func Get() *Metrics {
	return defaultMetrics
}
