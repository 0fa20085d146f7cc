package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/debateflow/config"
	"github.com/BaSui01/debateflow/internal/database"
	"github.com/BaSui01/debateflow/internal/metrics"
	"github.com/BaSui01/debateflow/types"
)

// =============================================================================
// 🏭 存储工厂
// =============================================================================

// DefaultSQLitePath sqlite 未指定 DSN 时使用的文件
const DefaultSQLitePath = "debateflow.db"

// NewStore 按配置创建归档存储；collector 可为 nil
func NewStore(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger, collector *metrics.Collector) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case "", "none":
		return NopStore{}, nil
	case "sqlite", "postgres", "mysql":
		store, err = openGorm(ctx, cfg, logger)
	case "redis":
		store, err = NewRedisStore(ctx, RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL,
			TLS:       cfg.RedisTLS,
		}, logger)
	default:
		return nil, types.Errorf(types.ErrInvalidConfig, "unknown archive driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("archive store initialized", zap.String("driver", cfg.Driver))
	if collector == nil {
		return store, nil
	}
	return &instrumentedStore{Store: store, metrics: collector}, nil
}

func openGorm(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (*GormStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s archive: %w", cfg.Driver, err)
	}

	pool := database.SingleConnConfig()
	if cfg.Driver != "sqlite" {
		pool = database.DefaultPoolConfig()
		if cfg.MaxOpenConns > 0 {
			pool.MaxOpenConns = cfg.MaxOpenConns
		}
		if cfg.MaxIdleConns > 0 {
			pool.MaxIdleConns = cfg.MaxIdleConns
		}
		if cfg.ConnMaxLifetime > 0 {
			pool.ConnMaxLifetime = cfg.ConnMaxLifetime
		}
	}

	store, err := NewGormStore(db, cfg.Driver, pool, logger)
	if err != nil {
		return nil, err
	}
	store.WithSaveAttempts(cfg.SaveAttempts)
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// =============================================================================
// 📊 指标装饰器
// =============================================================================

type instrumentedStore struct {
	Store
	metrics *metrics.Collector
}

func (s *instrumentedStore) Save(ctx context.Context, rec *Record) error {
	start := time.Now()
	err := s.Store.Save(ctx, rec)
	s.metrics.RecordArchiveOp(s.Driver(), "save", err, time.Since(start))
	return err
}

func (s *instrumentedStore) Get(ctx context.Context, id string) (*Record, error) {
	start := time.Now()
	rec, err := s.Store.Get(ctx, id)
	s.metrics.RecordArchiveOp(s.Driver(), "get", err, time.Since(start))
	return rec, err
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.Store.Ping(ctx)
	s.metrics.RecordArchiveOp(s.Driver(), "ping", err, time.Since(start))
	return err
}

func (s *instrumentedStore) List(ctx context.Context, limit int) ([]Record, error) {
	start := time.Now()
	recs, err := s.Store.List(ctx, limit)
	s.metrics.RecordArchiveOp(s.Driver(), "list", err, time.Since(start))
	return recs, err
}

// =============================================================================
// 🚫 空实现
// =============================================================================

// NopStore 未配置归档时使用，所有操作返回 INVALID_CONFIG
type NopStore struct{}

func errArchiveDisabled() error {
	return types.NewError(types.ErrInvalidConfig, "transcript archive is not configured").WithHTTPStatus(501)
}

// Save 实现 Store.Save
func (NopStore) Save(context.Context, *Record) error { return errArchiveDisabled() }

// Get 实现 Store.Get
func (NopStore) Get(context.Context, string) (*Record, error) { return nil, errArchiveDisabled() }

// List 实现 Store.List
func (NopStore) List(context.Context, int) ([]Record, error) { return nil, errArchiveDisabled() }

// Ping 实现 Store.Ping
func (NopStore) Ping(context.Context) error { return nil }

// Driver 实现 Store.Driver
func (NopStore) Driver() string { return "none" }

// Close 实现 Store.Close
func (NopStore) Close() error { return nil }
