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
// 検索サービス、ミドルウェア、キャッシュ掃除ジョブから利用する。
type MetricsCollector interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheEvictions(count int)
	RecordUpstream(service, outcome string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordAuthFailure(reason string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheLookups     *prometheus.CounterVec
	cacheEvictions   prometheus.Counter
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	httpStatus       *prometheus.CounterVec
	authFailures     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sproutly_search_cache_lookups_total",
			Help: "植物種検索キャッシュの参照数（hit/miss別）",
		}, []string{"result"}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sproutly_search_cache_evictions_total",
			Help: "定期掃除で削除された期限切れエントリの合計数",
		}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sproutly_upstream_requests_total",
			Help: "外部API呼び出しの結果別の合計数",
		}, []string{"service", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sproutly_upstream_latency_seconds",
			Help:    "外部API呼び出しのレイテンシ（秒）",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5},
		}, []string{"service"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sproutly_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sproutly_auth_failures_total",
			Help: "認証失敗の種類別の合計数",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.cacheLookups,
		c.cacheEvictions,
		c.upstreamRequests,
		c.upstreamLatency,
		c.httpStatus,
		c.authFailures,
	)

	return c
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordCacheEvictions は定期掃除で削除したエントリ数を記録する。
func (c *Collector) RecordCacheEvictions(count int) {
	c.cacheEvictions.Add(float64(count))
}

// RecordUpstream は外部API呼び出しの結果とレイテンシを記録する。
// upstream.Recorderを実装する。
func (c *Collector) RecordUpstream(service, outcome string, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(service, outcome).Inc()
	c.upstreamLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAuthFailure は認証失敗を種類別に記録する。
func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
