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

	// 予約操作の総数（operation: create/cancel, result: success/capacity_exceeded/not_bookable/lock_failed/error など）
	BookingsTotal *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// 定期タスクの実行時間（sweep: status/reminder）
	SweepDuration *prometheus.HistogramVec

	// 定期タスクで処理した件数（sweep, result: advanced/created/skipped/failed）
	SweepItemsTotal *prometheus.CounterVec

	// 通知配送の結果（kind, result: delivered/retry/failed/suppressed）
	NotificationDeliveriesTotal *prometheus.CounterVec
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
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking operations by outcome",
			},
			[]string{"operation", "result"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sweep_duration_seconds",
				Help:    "Duration of scheduled sweeps",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"sweep"},
		),
		SweepItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_items_total",
				Help: "Items processed by scheduled sweeps",
			},
			[]string{"sweep", "result"},
		),
		NotificationDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_deliveries_total",
				Help: "Notification delivery attempts by kind and outcome",
			},
			[]string{"kind", "result"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.DistributedLockDuration,
		m.SweepDuration,
		m.SweepItemsTotal,
		m.NotificationDeliveriesTotal,
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
func Get() *Metrics {
	return defaultMetrics
}

// RecordBooking は予約操作の結果を記録する（未初期化なら何もしない）
func RecordBooking(operation, result string) {
	if m := Get(); m != nil {
		m.BookingsTotal.WithLabelValues(operation, result).Inc()
	}
}

// RecordLock は分散ロックの操作時間を記録する
func RecordLock(operation, status string, seconds float64) {
	if m := Get(); m != nil {
		m.DistributedLockDuration.WithLabelValues(operation, status).Observe(seconds)
	}
}

// RecordSweep は定期タスクの実行時間を記録する
func RecordSweep(sweep string, seconds float64) {
	if m := Get(); m != nil {
		m.SweepDuration.WithLabelValues(sweep).Observe(seconds)
	}
}

// RecordSweepItems は定期タスクの処理件数を記録する
func RecordSweepItems(sweep, result string, n int) {
	if m := Get(); m != nil && n > 0 {
		m.SweepItemsTotal.WithLabelValues(sweep, result).Add(float64(n))
	}
}

// RecordDelivery は通知配送の結果を記録する
func RecordDelivery(kind, result string) {
	if m := Get(); m != nil {
		m.NotificationDeliveriesTotal.WithLabelValues(kind, result).Inc()
	}
}
