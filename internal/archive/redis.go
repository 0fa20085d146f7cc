package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/internal/tlsutil"
	"github.com/BaSui01/debateflow/types"
)

// RedisStore 基于 Redis 的归档存储：每条记录一个 JSON 键，另有按时间排序的有序集合索引
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// RedisOptions RedisStore 配置
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TLS 启用加密连接
	TLS bool
	// TTL 为 0 表示永久保留
	TTL time.Duration
}

// NewRedisStore 连接 Redis 并校验连通性
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisStore, error) {
	ropts := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.TLS {
		host, _, err := net.SplitHostPort(opts.Addr)
		if err != nil {
			host = opts.Addr
		}
		ropts.TLSConfig = tlsutil.ClientConfig(host)
	}
	client := redis.NewClient(ropts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisStore(client, opts.KeyPrefix, opts.TTL, logger), nil
}

func newRedisStore(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "archive"), zap.String("driver", "redis")),
	}
}

func (s *RedisStore) recordKey(id string) string { return s.prefix + "transcript:" + id }
func (s *RedisStore) indexKey() string           { return s.prefix + "transcripts" }

// 记录与索引在同一脚本内写入，索引项不会与记录脱节
var saveScript = redis.NewScript(`
	local ok
	if tonumber(ARGV[2]) > 0 then
		ok = redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2], 'NX')
	else
		ok = redis.call('SET', KEYS[1], ARGV[1], 'NX')
	end
	if not ok then
		return 0
	end
	local added = redis.pcall('ZADD', KEYS[2], ARGV[3], ARGV[4])
	if type(added) == 'table' and added.err then
		redis.call('DEL', KEYS[1])
		return redis.error_reply(added.err)
	end
	return 1
`)

// Save 实现 Store.Save，相同 ID 只能写入一次
func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if err := s.open(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	keys := []string{s.recordKey(rec.ID), s.indexKey()}
	saved, err := saveScript.Run(ctx, s.client, keys,
		data, s.ttl.Milliseconds(), rec.CreatedAt.UnixMilli(), rec.ID).Int()
	if err != nil {
		s.logger.Error("archive save failed", zap.String("id", rec.ID), zap.Error(err))
		return fmt.Errorf("archive save failed: %w", err)
	}
	if saved == 0 {
		return types.Errorf(types.ErrInvalidRequest, "transcript %q already archived", rec.ID).WithHTTPStatus(409)
	}

	s.logger.Info("transcript archived", zap.String("id", rec.ID), zap.Int("turns", rec.TurnCount))
	return nil
}

// Get 实现 Store.Get
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := s.open(); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, s.recordKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("archive get failed: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// List 实现 Store.List；过期记录留下的索引项会被顺带清理
func (s *RedisStore) List(ctx context.Context, limit int) ([]Record, error) {
	if err := s.open(); err != nil {
		return nil, err
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, int64(normalizeLimit(limit)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("archive list failed: %w", err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("archive list failed: %w", err)
	}

	out := make([]Record, 0, len(vals))
	var stale []any
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			s.logger.Warn("skipping corrupt archive entry", zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		rec.Transcript = ""
		out = append(out, rec)
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			s.logger.Warn("failed to prune expired archive index entries", zap.Error(err))
		}
	}
	return out, nil
}

// Driver 实现 Store.Driver
func (s *RedisStore) Driver() string {
	return "redis"
}

// Ping 实现 Store.Ping
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.open(); err != nil {
		return err
	}
	return s.client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

func (s *RedisStore) open() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errStoreClosed()
	}
	return nil
}
