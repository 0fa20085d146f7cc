package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/api"
	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/internal/archive"
	"github.com/BaSui01/debateflow/llm"
	"github.com/BaSui01/debateflow/types"
)

// =============================================================================
// 🗄️ 归档接口
// =============================================================================

// HandleArchiveCurrent 处理 POST /api/v1/debate/archive，保存当前辩论的详细文本
// @Summary 归档当前辩论
// @Tags 归档
// @Produce json
// @Success 201 {object} Response "归档摘要"
// @Failure 501 {object} Response "未配置归档"
// @Router /api/v1/debate/archive [post]
func (h *DebateHandler) HandleArchiveCurrent(w http.ResponseWriter, r *http.Request) {
	sess, _, err := h.current()
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	st := sess.State()
	if len(st.Turns) == 0 {
		WriteErrorMessage(w, http.StatusConflict, types.ErrInvalidRequest, "nothing to archive yet", h.logger)
		return
	}

	now := h.now()
	rec := archive.NewRecord(st, debate.DetailedTranscript(st, now), now)
	if err := h.archive.Save(r.Context(), rec); err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccessStatus(w, http.StatusCreated, summarize(*rec))
}

// HandleListArchive 处理 GET /api/v1/archive?limit=N
// @Summary 归档列表
// @Tags 归档
// @Produce json
// @Param limit query int false "返回条数"
// @Success 200 {object} Response "归档摘要列表"
// @Router /api/v1/archive [get]
func (h *DebateHandler) HandleListArchive(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be a non-negative integer", h.logger)
			return
		}
		limit = n
	}

	recs, err := h.archive.List(r.Context(), limit)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	out := make([]api.ArchiveSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, summarize(rec))
	}
	WriteSuccess(w, out)
}

// HandleGetArchive 处理 GET /api/v1/archive/{id}；?format=text 以附件形式返回正文
// @Summary 读取归档
// @Tags 归档
// @Produce json
// @Param id path string true "归档 ID"
// @Success 200 {object} Response "完整记录"
// @Failure 404 {object} Response "不存在"
// @Router /api/v1/archive/{id} [get]
func (h *DebateHandler) HandleGetArchive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "archive id is required", h.logger)
		return
	}

	rec, err := h.archive.Get(r.Context(), id)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		writeAttachment(w, debate.TranscriptFilename(rec.CreatedAt), rec.Transcript)
		return
	}
	WriteSuccess(w, rec)
}

func summarize(rec archive.Record) api.ArchiveSummary {
	return api.ArchiveSummary{
		ID:        rec.ID,
		Topic:     rec.Topic,
		Outcome:   rec.Outcome,
		TurnCount: rec.TurnCount,
		CreatedAt: rec.CreatedAt,
	}
}

// =============================================================================
// 🔌 上游连通性
// =============================================================================

// HealthProber 可探测上游的对象（llm.Provider 或 agent.LLMGenerator）
type HealthProber interface {
	HealthCheck(ctx context.Context) (*llm.HealthStatus, error)
}

// LLMHandler 看板的 "Test API Connection"
type LLMHandler struct {
	prober   HealthProber
	provider string
	logger   *zap.Logger
}

// NewLLMHandler 创建上游探测处理器
func NewLLMHandler(prober HealthProber, provider string, logger *zap.Logger) *LLMHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMHandler{prober: prober, provider: provider, logger: logger}
}

// HandleHealth 处理 GET /api/v1/llm/health
// @Summary 测试上游连接
// @Tags LLM
// @Produce json
// @Success 200 {object} Response "上游正常"
// @Failure 503 {object} Response "上游不可用"
// @Router /api/v1/llm/health [get]
func (h *LLMHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	start := time.Now()
	status, err := h.prober.HealthCheck(ctx)
	if err != nil {
		WriteError(w, types.Errorf(types.ErrUpstreamUnavailable, "%s health check failed", h.provider).
			WithCause(err).
			WithRetryable(true), h.logger)
		return
	}

	resp := api.LLMHealthResponse{
		Provider:  h.provider,
		Healthy:   status.Healthy,
		LatencyMS: status.Latency.Milliseconds(),
		Message:   status.Message,
	}
	if resp.LatencyMS == 0 {
		resp.LatencyMS = time.Since(start).Milliseconds()
	}
	if !status.Healthy {
		WriteJSON(w, http.StatusServiceUnavailable, Response{Success: false, Data: resp, Timestamp: time.Now()})
		return
	}
	WriteSuccess(w, resp)
}
