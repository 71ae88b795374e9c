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
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(success bool)
	RecordTokenRefresh(success bool)
	RecordTokenReuseDetected()
	RecordSolve(success bool)
	RecordSolveLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordTokensCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginTotal         *prometheus.CounterVec
	refreshTotal       *prometheus.CounterVec
	tokenReuseTotal    prometheus.Counter
	solveTotal         *prometheus.CounterVec
	solveLatency       prometheus.Histogram
	httpStatus         *prometheus.CounterVec
	tokensCleanedTotal prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wasteman_login_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"result"}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wasteman_token_refresh_total",
			Help: "トークンリフレッシュの結果別合計数",
		}, []string{"result"}),
		tokenReuseTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wasteman_token_reuse_detected_total",
			Help: "失効済みリフレッシュトークンの再利用検出数",
		}),
		solveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wasteman_solve_total",
			Help: "経路計算実行の結果別合計数",
		}, []string{"result"}),
		solveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wasteman_solve_latency_seconds",
			Help:    "経路計算のレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wasteman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		tokensCleanedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wasteman_refresh_tokens_cleaned_total",
			Help: "クリーンアップで削除された期限切れトークンの合計数",
		}),
	}

	reg.MustRegister(
		c.loginTotal,
		c.refreshTotal,
		c.tokenReuseTotal,
		c.solveTotal,
		c.solveLatency,
		c.httpStatus,
		c.tokensCleanedTotal,
	)

	return c
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	c.loginTotal.WithLabelValues(resultLabel(success)).Inc()
}

// RecordTokenRefresh はトークンリフレッシュの結果を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	c.refreshTotal.WithLabelValues(resultLabel(success)).Inc()
}

// RecordTokenReuseDetected はトークン再利用の検出を記録する。
func (c *Collector) RecordTokenReuseDetected() {
	c.tokenReuseTotal.Inc()
}

// RecordSolve は経路計算実行の結果を記録する。
func (c *Collector) RecordSolve(success bool) {
	c.solveTotal.WithLabelValues(resultLabel(success)).Inc()
}

// RecordSolveLatency は経路計算のレイテンシを記録する。
func (c *Collector) RecordSolveLatency(duration time.Duration) {
	c.solveLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordTokensCleaned はクリーンアップで削除されたトークン数を記録する。
func (c *Collector) RecordTokensCleaned(count int64) {
	c.tokensCleanedTotal.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
