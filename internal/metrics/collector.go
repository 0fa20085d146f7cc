package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec

	// 辩论指标
	turnsTotal         *prometheus.CounterVec
	upstreamFailures   *prometheus.CounterVec
	conclusionsTotal   *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	streamSubscribers  prometheus.Gauge
	streamDroppedTotal prometheus.Counter

	// 归档指标
	archiveOpsTotal    *prometheus.CounterVec
	archiveOpsDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// LLM 指标
	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "llm_circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"provider"},
	)

	// 辩论指标
	c.turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debate_turns_total",
			Help:      "Total number of committed debate turns",
		},
		[]string{"speaker", "synthesized"},
	)

	c.upstreamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debate_upstream_failures_total",
			Help:      "Turns that could not be generated",
		},
		[]string{"speaker"},
	)

	c.conclusionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debate_conclusions_total",
			Help:      "Finalized debates by outcome",
		},
		[]string{"outcome"},
	)

	c.activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "debate_active_sessions",
			Help:      "Number of debate sessions currently held in memory",
		},
	)

	c.streamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "debate_stream_subscribers",
			Help:      "Number of connected live feed clients",
		},
	)

	c.streamDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debate_stream_dropped_total",
			Help:      "Live feed clients dropped for being too slow",
		},
	)

	// 归档指标
	c.archiveOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_operations_total",
			Help:      "Total number of transcript archive operations",
		},
		[]string{"driver", "operation", "status"},
	)

	c.archiveOpsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "archive_operation_duration_seconds",
			Help:      "Transcript archive operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"driver", "operation"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🤖 LLM 指标记录
// =============================================================================

// RecordLLMRequest 记录 LLM 请求
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// SetBreakerState 记录熔断器状态
func (c *Collector) SetBreakerState(provider string, state int) {
	c.breakerState.WithLabelValues(provider).Set(float64(state))
}

// =============================================================================
// 🎭 辩论指标记录
// =============================================================================

// RecordTurn 记录一条已提交的回合
func (c *Collector) RecordTurn(speaker string, synthesized bool) {
	label := "false"
	if synthesized {
		label = "true"
	}
	c.turnsTotal.WithLabelValues(speaker, label).Inc()
}

// RecordUpstreamFailure 记录一次生成失败
func (c *Collector) RecordUpstreamFailure(speaker string) {
	c.upstreamFailures.WithLabelValues(speaker).Inc()
}

// RecordConclusion 记录一次收尾（natural / forced）
func (c *Collector) RecordConclusion(outcome string) {
	c.conclusionsTotal.WithLabelValues(outcome).Inc()
}

// SetActiveSessions 设置当前内存中的会话数
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

// StreamSubscribed / StreamUnsubscribed 维护实时推送订阅数
func (c *Collector) StreamSubscribed()   { c.streamSubscribers.Inc() }
func (c *Collector) StreamUnsubscribed() { c.streamSubscribers.Dec() }

// RecordStreamDropped 记录因过慢被断开的订阅者
func (c *Collector) RecordStreamDropped() { c.streamDroppedTotal.Inc() }

// =============================================================================
// 🗄️ 归档指标记录
// =============================================================================

// RecordArchiveOp 记录归档操作
func (c *Collector) RecordArchiveOp(driver, operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.archiveOpsTotal.WithLabelValues(driver, operation, status).Inc()
	c.archiveOpsDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
