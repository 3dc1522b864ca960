package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 服务商调用指标
	ProviderRequestsTotal *prometheus.CounterVec
	ProvidersUnavailable  prometheus.Gauge

	// 邮箱指标
	MailboxesProvisioned *prometheus.CounterVec
	MailboxesDeleted     prometheus.Counter
	MailboxesExpired     prometheus.Counter

	// 验证码指标
	CodesExtracted prometheus.Counter
	CodesMissed    prometheus.Counter

	// 错误与限流指标
	ErrorsTotal     *prometheus.CounterVec
	PanicsTotal     prometheus.Counter
	RateLimitBlocks prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		ProviderRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailbridge_provider_requests_total",
				Help: "Upstream provider calls by provider, operation and outcome",
			},
			[]string{"provider", "op", "outcome"},
		),

		ProvidersUnavailable: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailbridge_providers_unavailable",
				Help: "Number of providers marked unavailable",
			},
		),

		MailboxesProvisioned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailbridge_mailboxes_provisioned_total",
				Help: "Mailboxes provisioned by provider",
			},
			[]string{"provider"},
		),

		MailboxesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailbridge_mailboxes_deleted_total",
				Help: "Mailboxes deleted",
			},
		),

		MailboxesExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailbridge_mailboxes_expired_total",
				Help: "Mailboxes removed by the TTL sweep",
			},
		),

		CodesExtracted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailbridge_codes_extracted_total",
				Help: "Verification codes successfully extracted",
			},
		),

		CodesMissed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailbridge_codes_missed_total",
				Help: "Message bodies scanned without finding a code",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailbridge_errors_total",
				Help: "Errors by type and component",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailbridge_panics_total",
				Help: "Recovered panics",
			},
		),

		RateLimitBlocks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailbridge_rate_limit_blocks_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
	}
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordProviderRequest 记录一次服务商调用
func (m *Metrics) RecordProviderRequest(provider, op, outcome string) {
	m.ProviderRequestsTotal.WithLabelValues(provider, op, outcome).Inc()
}

// RecordMailboxProvisioned 记录邮箱申请成功
func (m *Metrics) RecordMailboxProvisioned(provider string) {
	m.MailboxesProvisioned.WithLabelValues(provider).Inc()
}

// RecordMailboxDeleted 记录邮箱删除
func (m *Metrics) RecordMailboxDeleted() {
	m.MailboxesDeleted.Inc()
}

// RecordMailboxesExpired 记录 TTL 清理数量
func (m *Metrics) RecordMailboxesExpired(n int) {
	m.MailboxesExpired.Add(float64(n))
}

// RecordCodeExtracted 记录验证码提取成功
func (m *Metrics) RecordCodeExtracted() {
	m.CodesExtracted.Inc()
}

// RecordCodeMissed 记录正文扫描无验证码
func (m *Metrics) RecordCodeMissed() {
	m.CodesMissed.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流拒绝
func (m *Metrics) RecordRateLimitBlock() {
	m.RateLimitBlocks.Inc()
}

// SetProvidersUnavailable 更新不可用服务商数量
func (m *Metrics) SetProvidersUnavailable(n int) {
	m.ProvidersUnavailable.Set(float64(n))
}

// HTTPHandler 返回 /metrics 的处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
