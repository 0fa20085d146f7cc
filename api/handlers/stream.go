package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/api"
	"github.com/BaSui01/debateflow/internal/metrics"
)

// =============================================================================
// 📡 实时推送 Hub
// =============================================================================

// DefaultSubscriberBuffer 每个订阅者的待发送事件数
const DefaultSubscriberBuffer = 16

const streamWriteTimeout = 5 * time.Second

// StreamHub 把发言事件扇出给所有 websocket 订阅者。
// Publish 从不阻塞：缓冲区满的订阅者会被断开。
type StreamHub struct {
	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	buffer  int
	origins []string
	logger  *zap.Logger
	metrics *metrics.Collector
}

type subscriber struct {
	msgs      chan []byte
	closeSlow func()
}

// StreamOption StreamHub 选项
type StreamOption func(*StreamHub)

// WithSubscriberBuffer 设置订阅者缓冲区大小
func WithSubscriberBuffer(n int) StreamOption {
	return func(h *StreamHub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithOriginPatterns 允许的跨域来源（websocket.AcceptOptions.OriginPatterns）
func WithOriginPatterns(patterns ...string) StreamOption {
	return func(h *StreamHub) { h.origins = patterns }
}

// WithStreamMetrics 记录订阅数与丢弃数
func WithStreamMetrics(c *metrics.Collector) StreamOption {
	return func(h *StreamHub) { h.metrics = c }
}

// NewStreamHub 创建 Hub
func NewStreamHub(logger *zap.Logger, opts ...StreamOption) *StreamHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &StreamHub{
		subs:   make(map[*subscriber]struct{}),
		buffer: DefaultSubscriberBuffer,
		logger: logger.With(zap.String("component", "stream")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish 广播事件
func (h *StreamHub) Publish(ev api.TurnEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal turn event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		select {
		case s.msgs <- data:
		default:
			delete(h.subs, s)
			go s.closeSlow()
			if h.metrics != nil {
				h.metrics.RecordStreamDropped()
				h.metrics.StreamUnsubscribed()
			}
			h.logger.Warn("dropped slow stream subscriber")
		}
	}
}

// Subscribers 当前订阅者数量
func (h *StreamHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *StreamHub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.StreamSubscribed()
	}
}

func (h *StreamHub) remove(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	h.mu.Unlock()
	if ok && h.metrics != nil {
		h.metrics.StreamUnsubscribed()
	}
}

// HandleStream 处理 GET /api/v1/debate/stream：升级为 websocket 并持续推送事件
// @Summary 实时发言流
// @Tags 辩论
// @Router /api/v1/debate/stream [get]
func (h *StreamHub) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	s := &subscriber{
		msgs: make(chan []byte, h.buffer),
		closeSlow: func() {
			conn.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with debate events")
		},
	}
	h.add(s)
	defer h.remove(s)

	// 只写不读；CloseRead 负责处理对端关闭
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case msg := <-s.msgs:
			if err := writeTimeout(ctx, conn, msg); err != nil {
				return
			}
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func writeTimeout(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}
