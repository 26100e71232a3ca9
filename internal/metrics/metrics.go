// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・スイーパー・HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordRegistration()
	RecordBlink()
	RecordTokenIssued()
	RecordTokenExpired()
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations   prometheus.Counter
	blinks          prometheus.Counter
	tokensIssued    prometheus.Counter
	tokensExpired   prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blinkd_registrations_total",
			Help: "ユーザー登録の合計数",
		}),
		blinks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blinkd_blinks_total",
			Help: "記録されたブリンクイベントの合計数",
		}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blinkd_export_tokens_issued_total",
			Help: "発行されたエクスポートトークンの合計数",
		}),
		tokensExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blinkd_export_tokens_expired_total",
			Help: "期限切れでpurgeされたエクスポートトークンの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blinkd_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blinkd_request_duration_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.blinks,
		c.tokensIssued,
		c.tokensExpired,
		c.httpStatus,
		c.requestDuration,
	)

	return c
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordBlink はブリンクイベントを記録する。
func (c *Collector) RecordBlink() {
	c.blinks.Inc()
}

// RecordTokenIssued はエクスポートトークン発行を記録する。
func (c *Collector) RecordTokenIssued() {
	c.tokensIssued.Inc()
}

// RecordTokenExpired はエクスポートトークンの期限切れpurgeを記録する。
func (c *Collector) RecordTokenExpired() {
	c.tokensExpired.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
