package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// 就绪组件状态
const (
	ComponentReady        = "ready"
	ComponentDisabled     = "disabled"
	ComponentUnconfigured = "unconfigured"
	ComponentDown         = "down"
)

// ArchivePinger 就绪检查用到的归档存储视图（archive.Store 满足）
type ArchivePinger interface {
	Driver() string
	Ping(ctx context.Context) error
}

// HealthHandler 存活与就绪检查。
//
// 就绪意味着可以开一场辩论：LLM 密钥已配置，且启用的归档存储可达。
// 这里不调用上游模型，真实连通性由 /api/v1/llm/health 负责。
type HealthHandler struct {
	logger  *zap.Logger
	started time.Time
	archive ArchivePinger
	llm     LLMReadiness
	timeout time.Duration
}

// LLMReadiness 上游配置快照
type LLMReadiness struct {
	Provider      string
	Model         string
	KeyConfigured bool
}

// ComponentStatus 单个依赖的就绪状态
type ComponentStatus struct {
	Status    string `json:"status"`
	Driver    string `json:"driver,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

// ServiceHealthResponse 健康状态响应
type ServiceHealthResponse struct {
	Status    string           `json:"status"` // "healthy", "unhealthy"
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime,omitempty"`
	Archive   *ComponentStatus `json:"archive,omitempty"`
	LLM       *ComponentStatus `json:"llm,omitempty"`
}

// HealthOption HealthHandler 可选项
type HealthOption func(*HealthHandler)

// WithArchiveReadiness 就绪检查包含归档存储；driver 为 none 时视为关闭
func WithArchiveReadiness(store ArchivePinger) HealthOption {
	return func(h *HealthHandler) { h.archive = store }
}

// WithLLMReadiness 就绪检查包含上游配置
func WithLLMReadiness(r LLMReadiness) HealthOption {
	return func(h *HealthHandler) { h.llm = r }
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger, opts ...HealthOption) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HealthHandler{
		logger:  logger.With(zap.String("component", "health")),
		started: time.Now(),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /health 与 /healthz（只看进程是否在跑）
// @Summary 存活检查
// @Tags 健康
// @Produce json
// @Success 200 {object} ServiceHealthResponse "服务正常"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, ServiceHealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
	})
}

// HandleReady 处理 /ready 与 /readyz
// @Summary 就绪检查
// @Tags 健康
// @Produce json
// @Success 200 {object} ServiceHealthResponse "可以开始辩论"
// @Failure 503 {object} ServiceHealthResponse "归档不可达或缺少 LLM 密钥"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := ServiceHealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Archive:   h.archiveStatus(ctx),
		LLM:       h.llmStatus(),
	}

	if resp.Archive.Status == ComponentDown || resp.LLM.Status == ComponentUnconfigured {
		resp.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) archiveStatus(ctx context.Context) *ComponentStatus {
	if h.archive == nil || h.archive.Driver() == "none" {
		return &ComponentStatus{Status: ComponentDisabled, Driver: "none"}
	}

	st := &ComponentStatus{Status: ComponentReady, Driver: h.archive.Driver()}
	start := time.Now()
	err := h.archive.Ping(ctx)
	st.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		st.Status = ComponentDown
		st.Message = err.Error()
		h.logger.Warn("archive not ready",
			zap.String("driver", st.Driver),
			zap.Error(err),
		)
	}
	return st
}

func (h *HealthHandler) llmStatus() *ComponentStatus {
	st := &ComponentStatus{Status: ComponentReady, Provider: h.llm.Provider, Model: h.llm.Model}
	if !h.llm.KeyConfigured {
		st.Status = ComponentUnconfigured
		st.Message = "API key not set"
	}
	return st
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} map[string]string "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}
