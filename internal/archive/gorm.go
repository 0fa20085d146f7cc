package archive

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/debateflow/internal/database"
)

// GormStore 基于 GORM 的归档存储（sqlite / postgres / mysql）
type GormStore struct {
	pool         *database.PoolManager
	driver       string
	saveAttempts int
	logger       *zap.Logger
}

// NewGormStore 包装已打开的 GORM 连接，不执行迁移
func NewGormStore(db *gorm.DB, driver string, pool database.PoolConfig, logger *zap.Logger) (*GormStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "archive"), zap.String("driver", driver))

	pm, err := database.NewPoolManager(db, pool, logger)
	if err != nil {
		return nil, err
	}
	return &GormStore{
		pool:         pm,
		driver:       driver,
		saveAttempts: 1,
		logger:       logger,
	}, nil
}

// WithSaveAttempts 设置写入的最大尝试次数
func (s *GormStore) WithSaveAttempts(n int) *GormStore {
	if n > 0 {
		s.saveAttempts = n
	}
	return s
}

// Migrate 创建或更新归档表
func (s *GormStore) Migrate(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("migrate archive table: %w", err)
	}
	return nil
}

// Save 实现 Store.Save
func (s *GormStore) Save(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	err := s.pool.WithTransactionRetry(ctx, s.saveAttempts, func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if errors.Is(err, database.ErrPoolClosed) {
		return errStoreClosed()
	}
	if err != nil {
		s.logger.Error("archive save failed", zap.String("id", rec.ID), zap.Error(err))
		return fmt.Errorf("archive save failed: %w", err)
	}
	s.logger.Info("transcript archived", zap.String("id", rec.ID), zap.Int("turns", rec.TurnCount))
	return nil
}

// Get 实现 Store.Get
func (s *GormStore) Get(ctx context.Context, id string) (*Record, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rec Record
	err = db.Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("archive get failed: %w", err)
	}
	return &rec, nil
}

// List 实现 Store.List
func (s *GormStore) List(ctx context.Context, limit int) ([]Record, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var recs []Record
	err = db.Select("id", "topic", "outcome", "turn_count", "created_at").
		Order("created_at DESC").
		Limit(normalizeLimit(limit)).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("archive list failed: %w", err)
	}
	return recs, nil
}

// Ping 实现 Store.Ping
func (s *GormStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		if errors.Is(err, database.ErrPoolClosed) {
			return errStoreClosed()
		}
		return fmt.Errorf("archive ping failed: %w", err)
	}
	return nil
}

// Driver 实现 Store.Driver
func (s *GormStore) Driver() string {
	return s.driver
}

// Close 关闭底层连接池
func (s *GormStore) Close() error {
	return s.pool.Close()
}

func (s *GormStore) conn(ctx context.Context) (*gorm.DB, error) {
	db, err := s.pool.DB(ctx)
	if err != nil {
		return nil, errStoreClosed()
	}
	return db, nil
}
