package archive

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/types"
)

// =============================================================================
// 🗄️ 归档记录与存储接口
// =============================================================================

// DefaultListLimit List 未指定数量时返回的条数
const DefaultListLimit = 50

// Record 一份已导出的辩论记录，写入后不再修改
type Record struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Topic      string    `gorm:"size:512;not null" json:"topic"`
	Outcome    string    `gorm:"size:32" json:"outcome,omitempty"`
	TurnCount  int       `gorm:"not null" json:"turn_count"`
	Transcript string    `gorm:"type:text" json:"transcript,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName GORM 表名
func (Record) TableName() string {
	return "debate_transcripts"
}

// NewRecord 从会话快照与已渲染的文本构造记录
func NewRecord(st debate.State, transcript string, now time.Time) *Record {
	return &Record{
		ID:         uuid.NewString(),
		Topic:      st.Topic,
		Outcome:    string(st.Outcome),
		TurnCount:  len(st.Turns),
		Transcript: transcript,
		CreatedAt:  now.UTC(),
	}
}

// Store 归档存储
type Store interface {
	// Save 写入一条新记录；ID 已存在时报错
	Save(ctx context.Context, rec *Record) error
	// Get 按 ID 读取完整记录
	Get(ctx context.Context, id string) (*Record, error)
	// List 按创建时间倒序列出记录，不含 Transcript 正文
	List(ctx context.Context, limit int) ([]Record, error)
	// Ping 检查后端连通性，用于就绪探针
	Ping(ctx context.Context) error
	// Driver 驱动名称
	Driver() string
	// Close 释放连接
	Close() error
}

func validateRecord(rec *Record) error {
	if rec == nil {
		return types.NewError(types.ErrInvalidRequest, "record is required")
	}
	if strings.TrimSpace(rec.ID) == "" {
		return types.NewError(types.ErrInvalidRequest, "record id is required")
	}
	if strings.TrimSpace(rec.Topic) == "" {
		return types.NewError(types.ErrInvalidRequest, "record topic is required")
	}
	return nil
}

func errStoreClosed() error {
	return types.NewError(types.ErrInternalError, "archive store is closed")
}

func notFound(id string) error {
	return types.Errorf(types.ErrNotFound, "archived transcript %q not found", id).WithHTTPStatus(404)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
