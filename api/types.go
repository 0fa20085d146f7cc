package api

import (
	"time"

	"github.com/BaSui01/debateflow/debate"
)

// =============================================================================
// 辩论请求类型
// =============================================================================

// StartDebateRequest 开始一场新辩论，会替换当前会话。
// @Description 开始辩论请求结构
type StartDebateRequest struct {
	// 辩题，为空时使用服务端默认辩题
	Topic string `json:"topic,omitempty" example:"Should AI be regulated by the government?"`
	// 回合预算，0 表示使用默认值
	TurnBudget int `json:"turn_budget,omitempty" example:"10"`
	// 发给生成器的最近发言条数，0 表示使用默认值
	ContextWindow int `json:"context_window,omitempty" example:"6"`
	// 是否在提示词前加入回合号
	AnnounceRounds bool `json:"announce_rounds,omitempty"`
}

// FinalizeRequest 收尾请求
// @Description 收尾请求结构
type FinalizeRequest struct {
	// 指定胜者；为空时使用配置的收尾策略
	Winner string `json:"winner,omitempty" example:"John"`
}

// CommentRequest 辩论结束后观众留言
// @Description 观众留言请求结构
type CommentRequest struct {
	// 署名，为空时为 "You"
	Author string `json:"author,omitempty" example:"You"`
	// 留言内容
	Content string `json:"content" example:"John made the stronger case."`
}

// =============================================================================
// 辩论响应类型
// =============================================================================

// DebateState 会话快照加上展示层需要的提示
// @Description 辩论状态
type DebateState struct {
	debate.State
	// 客户端 "X is typing..." 动画的建议时长（毫秒）
	TypingDelayMS int64 `json:"typing_delay_ms"`
}

// StepResponse 单步推进的结果
// @Description 单步结果
type StepResponse struct {
	Turn  debate.Turn `json:"turn"`
	State DebateState `json:"state"`
}

// FinalizeResponse 收尾结果
// @Description 收尾结果
type FinalizeResponse struct {
	Outcome debate.Outcome `json:"outcome"`
	State   DebateState    `json:"state"`
}

// =============================================================================
// 实时推送类型
// =============================================================================

// TurnEvent 通过 websocket 推送给看板的事件
// @Description 发言事件
type TurnEvent struct {
	Type string `json:"type" example:"turn"`
	// 会话 ID
	SessionID string          `json:"session_id"`
	Turn      *debate.Turn    `json:"turn,omitempty"`
	Comment   *debate.Comment `json:"comment,omitempty"`
	Role      debate.Role     `json:"role,omitempty"`
	Round     int             `json:"round,omitempty"`
	// 下一位发言人，收尾后为空
	NextSpeaker   string    `json:"next_speaker,omitempty"`
	Status        string    `json:"status,omitempty"`
	TypingDelayMS int64     `json:"typing_delay_ms,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// 事件类型
const (
	EventTurn    = "turn"
	EventComment = "comment"
	EventStarted = "started"
	EventReset   = "reset"
)

// =============================================================================
// 归档类型
// =============================================================================

// ArchiveSummary 归档列表项
// @Description 归档摘要
type ArchiveSummary struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Outcome   string    `json:"outcome,omitempty"`
	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
}

// LLMHealthResponse 上游连通性检查结果（看板 "Test API Connection"）
// @Description LLM 健康状态
type LLMHealthResponse struct {
	Provider  string `json:"provider"`
	Healthy   bool   `json:"healthy"`
	LatencyMS int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}
