package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/api"
	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/internal/archive"
	"github.com/BaSui01/debateflow/internal/metrics"
	"github.com/BaSui01/debateflow/types"
)

// =============================================================================
// 🎭 辩论 Handler
// =============================================================================

// DebateHandlerConfig 创建会话时使用的默认值
type DebateHandlerConfig struct {
	Defaults     debate.Config
	DefaultTopic string
	// Participants 按辩题生成发言人；为 nil 时使用 debate.DefaultParticipants
	Participants func(topic string) []debate.Participant
	// Generator 按辩题生成生成器，必填
	Generator   func(topic string) debate.Generator
	TypingDelay time.Duration
}

// DebateHandler 持有唯一的活动会话。替换会话由 mu 串行化，
// 会话内部的推进由 debate.Session 自己保证单写者。
type DebateHandler struct {
	cfg     DebateHandlerConfig
	hub     *StreamHub
	archive archive.Store
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	session *debate.Session
	gen     debate.Generator
}

// DebateOption DebateHandler 选项
type DebateOption func(*DebateHandler)

// WithStreamHub 每条发言推送到 hub
func WithStreamHub(hub *StreamHub) DebateOption {
	return func(h *DebateHandler) { h.hub = hub }
}

// WithArchiveStore 启用归档接口
func WithArchiveStore(store archive.Store) DebateOption {
	return func(h *DebateHandler) { h.archive = store }
}

// WithDebateMetrics 记录回合、收尾与上游失败指标
func WithDebateMetrics(c *metrics.Collector) DebateOption {
	return func(h *DebateHandler) { h.metrics = c }
}

// WithHandlerClock 替换时间源（导出文件名、归档时间）
func WithHandlerClock(now func() time.Time) DebateOption {
	return func(h *DebateHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewDebateHandler 创建辩论处理器
func NewDebateHandler(cfg DebateHandlerConfig, logger *zap.Logger, opts ...DebateOption) (*DebateHandler, error) {
	if cfg.Generator == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "debate handler requires a generator factory")
	}
	if cfg.Participants == nil {
		cfg.Participants = debate.DefaultParticipants
	}
	if cfg.Defaults.TurnBudget == 0 {
		cfg.Defaults = debate.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &DebateHandler{
		cfg:     cfg,
		archive: archive.NopStore{},
		logger:  logger.With(zap.String("component", "debate_handler")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleStart 处理 POST /api/v1/debate，开始新辩论并替换旧会话
// @Summary 开始辩论
// @Tags 辩论
// @Accept json
// @Produce json
// @Param request body api.StartDebateRequest false "辩论参数"
// @Success 201 {object} Response "新会话状态"
// @Failure 400 {object} Response "无效请求"
// @Router /api/v1/debate [post]
func (h *DebateHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req api.StartDebateRequest
	if err := DecodeOptionalJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.TurnBudget < 0 || req.ContextWindow < 0 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"turn_budget and context_window must not be negative", h.logger)
		return
	}

	sess, gen, err := h.newSession(req)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	h.mu.Lock()
	h.session, h.gen = sess, gen
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetActiveSessions(1)
	}
	h.publish(api.TurnEvent{
		Type:        api.EventStarted,
		SessionID:   sess.ID,
		NextSpeaker: sess.NextSpeaker().Name,
		Status:      string(sess.Status()),
	})
	h.logger.Info("debate started",
		zap.String("session_id", sess.ID),
		zap.String("topic", sess.Topic),
		zap.Int("turn_budget", sess.Config().TurnBudget))

	WriteSuccessStatus(w, http.StatusCreated, h.state(sess))
}

// HandleState 处理 GET /api/v1/debate
// @Summary 当前辩论状态
// @Tags 辩论
// @Produce json
// @Success 200 {object} Response "会话状态"
// @Failure 404 {object} Response "没有活动会话"
// @Router /api/v1/debate [get]
func (h *DebateHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	sess, _, err := h.current()
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, h.state(sess))
}

// HandleStep 处理 POST /api/v1/debate/step，推进一个回合
// @Summary 推进一个回合
// @Tags 辩论
// @Produce json
// @Success 200 {object} Response "新发言与会话状态"
// @Failure 409 {object} Response "预算已用完或会话忙"
// @Failure 503 {object} Response "上游不可用，辩论暂停"
// @Router /api/v1/debate/step [post]
func (h *DebateHandler) HandleStep(w http.ResponseWriter, r *http.Request) {
	sess, gen, err := h.current()
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	turn, err := sess.Step(r.Context(), gen)
	if err != nil {
		h.recordFailure(sess, err)
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.StepResponse{Turn: turn, State: h.state(sess)})
}

// HandleRun 处理 POST /api/v1/debate/run，跑满预算后收尾
// @Summary 运行到结束
// @Tags 辩论
// @Produce json
// @Success 200 {object} Response "收尾结果"
// @Failure 503 {object} Response "上游不可用，辩论暂停"
// @Router /api/v1/debate/run [post]
func (h *DebateHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	sess, gen, err := h.current()
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	if err := sess.Run(r.Context(), gen); err != nil {
		h.recordFailure(sess, err)
		WriteAnyError(w, err, h.logger)
		return
	}
	h.finalize(w, sess, nil)
}

// HandleFinalize 处理 POST /api/v1/debate/finalize；可选 {"winner": "..."} 指定胜者
// @Summary 收尾
// @Tags 辩论
// @Accept json
// @Produce json
// @Param request body api.FinalizeRequest false "收尾参数"
// @Success 200 {object} Response "收尾结果"
// @Failure 409 {object} Response "预算未用完"
// @Router /api/v1/debate/finalize [post]
func (h *DebateHandler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	sess, _, err := h.current()
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	var req api.FinalizeRequest
	if err := DecodeOptionalJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	var strategy debate.ConclusionStrategy
	if winner := strings.TrimSpace(req.Winner); winner != "" {
		if !isDebater(sess, winner) {
			WriteError(w, types.Errorf(types.ErrInvalidParticipant, "%q is not a debater in this session", winner), h.logger)
			return
		}
		strategy = debate.FixedWinnerStrategy{Winner: winner}
	}
	h.finalize(w, sess, strategy)
}

// HandleComment 处理 POST /api/v1/debate/comment，辩论收尾后追加观众留言
// @Summary 观众留言
// @Tags 辩论
// @Accept json
// @Produce json
// @Param request body api.CommentRequest true "留言"
// @Success 201 {object} Response "已记录的留言"
// @Failure 409 {object} Response "辩论尚未收尾"
// @Router /api/v1/debate/comment [post]
func (h *DebateHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	sess, _, err := h.current()
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	var req api.CommentRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	c, err := sess.AddComment(req.Author, req.Content)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	h.publish(api.TurnEvent{
		Type:      api.EventComment,
		SessionID: sess.ID,
		Comment:   &c,
		Status:    string(sess.Status()),
	})
	WriteSuccessStatus(w, http.StatusCreated, c)
}

// HandleTranscript 处理 GET /api/v1/debate/transcript?format=plain|detailed
// @Summary 导出辩论文本
// @Tags 辩论
// @Produce plain
// @Param format query string false "plain 或 detailed"
// @Success 200 {string} string "文本附件"
// @Router /api/v1/debate/transcript [get]
func (h *DebateHandler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	sess, _, err := h.current()
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	now := h.now()
	var body string
	switch format := r.URL.Query().Get("format"); format {
	case "", "plain":
		body = debate.PlainTranscript(sess.Turns())
	case "detailed":
		body = debate.DetailedTranscript(sess.State(), now)
	default:
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			fmt.Sprintf("unknown transcript format %q", format), h.logger)
		return
	}
	writeAttachment(w, debate.TranscriptFilename(now), body)
}

// HandleReset 处理 DELETE /api/v1/debate
// @Summary 清除当前辩论
// @Tags 辩论
// @Produce json
// @Success 200 {object} Response "已清除"
// @Router /api/v1/debate [delete]
func (h *DebateHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	prev := h.session
	h.session, h.gen = nil, nil
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetActiveSessions(0)
	}
	resp := map[string]any{"reset": prev != nil}
	if prev != nil {
		h.publish(api.TurnEvent{Type: api.EventReset, SessionID: prev.ID})
		resp["session_id"] = prev.ID
		h.logger.Info("debate reset", zap.String("session_id", prev.ID))
	}
	WriteSuccess(w, resp)
}

// =============================================================================
// 🔧 内部方法
// =============================================================================

func (h *DebateHandler) newSession(req api.StartDebateRequest) (*debate.Session, debate.Generator, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = h.cfg.DefaultTopic
	}

	cfg := h.cfg.Defaults
	cfg.ClosingMarkers = append([]string(nil), cfg.ClosingMarkers...)
	if req.TurnBudget > 0 {
		cfg.TurnBudget = req.TurnBudget
	}
	if req.ContextWindow > 0 {
		cfg.ContextWindow = req.ContextWindow
	}
	if req.AnnounceRounds {
		cfg.AnnounceRounds = true
	}

	var sess *debate.Session
	roles := make(map[string]debate.Role)
	participants := h.cfg.Participants(topic)
	for _, p := range participants {
		roles[p.Name] = p.Role
	}

	sess, err := debate.NewSession(topic, participants,
		debate.WithConfig(cfg),
		debate.WithLogger(h.logger),
		debate.WithTurnObserver(func(t debate.Turn) { h.onTurn(sess, roles, t) }),
	)
	if err != nil {
		return nil, nil, err
	}
	return sess, h.cfg.Generator(topic), nil
}

func (h *DebateHandler) onTurn(sess *debate.Session, roles map[string]debate.Role, t debate.Turn) {
	if h.metrics != nil {
		h.metrics.RecordTurn(t.Speaker, t.Synthesized)
	}
	ev := api.TurnEvent{
		Type:          api.EventTurn,
		SessionID:     sess.ID,
		Turn:          &t,
		Role:          roles[t.Speaker],
		Round:         sess.RoundNumber(),
		Status:        string(sess.Status()),
		TypingDelayMS: h.cfg.TypingDelay.Milliseconds(),
	}
	if !sess.IsComplete() {
		ev.NextSpeaker = sess.NextSpeaker().Name
	}
	h.publish(ev)
}

func (h *DebateHandler) publish(ev api.TurnEvent) {
	if h.hub == nil {
		return
	}
	ev.Timestamp = h.now()
	h.hub.Publish(ev)
}

func (h *DebateHandler) current() (*debate.Session, debate.Generator, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return nil, nil, types.NewError(types.ErrNoActiveSession, "no debate has been started")
	}
	return h.session, h.gen, nil
}

func (h *DebateHandler) state(sess *debate.Session) api.DebateState {
	return api.DebateState{
		State:         sess.State(),
		TypingDelayMS: h.cfg.TypingDelay.Milliseconds(),
	}
}

func (h *DebateHandler) finalize(w http.ResponseWriter, sess *debate.Session, strategy debate.ConclusionStrategy) {
	already := sess.Status().Concluded()
	outcome, err := sess.FinalizeWith(strategy)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	if !already && h.metrics != nil {
		h.metrics.RecordConclusion(string(outcome))
	}
	WriteSuccess(w, api.FinalizeResponse{Outcome: outcome, State: h.state(sess)})
}

func (h *DebateHandler) recordFailure(sess *debate.Session, err error) {
	if h.metrics != nil && types.IsErrorCode(err, types.ErrUpstreamUnavailable) {
		h.metrics.RecordUpstreamFailure(sess.NextSpeaker().Name)
	}
}

func isDebater(sess *debate.Session, name string) bool {
	for _, p := range sess.Participants() {
		if p.Name == name && p.Role != debate.RoleModerator {
			return true
		}
	}
	return false
}

func writeAttachment(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
