// Package tiered 把内存热层和 Redis 持久层组合成一个
// 读穿透的两级存储。
package tiered

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/storage"
	"mailbridge/backend/internal/storage/memory"
)

// Mirror 持久层需要实现的最小接口，由 redis.Mirror 提供。
type Mirror interface {
	Save(ctx context.Context, rec *domain.MailboxRecord) error
	Get(ctx context.Context, address string) (*domain.MailboxRecord, error)
	List(ctx context.Context) ([]*domain.MailboxRecord, error)
	Delete(ctx context.Context, address string) (bool, error)
	Clear(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// mirrorTimeout 异步镜像写的独立超时，不依赖请求 ctx。
const mirrorTimeout = 5 * time.Second

// Store 两级存储。
//
// 读：先内存，未命中查持久层并回填内存。
// 写：内存同步，持久层异步尽力而为，失败只记日志不向上冒泡，
// 持久层故障绝不能拖垮申请邮箱的主流程。
type Store struct {
	hot    *memory.Store
	mirror Mirror
	logger *zap.Logger
}

// NewStore 组合两级存储。
func NewStore(hot *memory.Store, mirror Mirror, logger *zap.Logger) *Store {
	return &Store{hot: hot, mirror: mirror, logger: logger}
}

// Save 同步写内存，异步写持久层。
func (s *Store) Save(ctx context.Context, rec *domain.MailboxRecord) error {
	if err := s.hot.Save(ctx, rec); err != nil {
		return err
	}
	go func() {
		mctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := s.mirror.Save(mctx, rec); err != nil {
			s.logger.Warn("写入持久层失败",
				zap.String("address", rec.Address),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Get 读穿透：内存未命中时查持久层并回填。
func (s *Store) Get(ctx context.Context, address string) (*domain.MailboxRecord, error) {
	rec, err := s.hot.Get(ctx, address)
	if err == nil {
		return rec, nil
	}
	if err != storage.ErrRecordNotFound {
		return nil, err
	}

	rec, err = s.mirror.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := s.hot.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// List 合并两层记录，按地址去重，内存中的版本优先。
// 持久层故障时退化为只返回内存层。
func (s *Store) List(ctx context.Context) ([]*domain.MailboxRecord, error) {
	hot, err := s.hot.List(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(hot))
	for _, rec := range hot {
		seen[rec.Address] = true
	}

	mirrored, err := s.mirror.List(ctx)
	if err != nil {
		s.logger.Warn("读取持久层列表失败", zap.Error(err))
		return hot, nil
	}
	for _, rec := range mirrored {
		if !seen[rec.Address] {
			hot = append(hot, rec)
		}
	}
	return hot, nil
}

// Delete 从两层删除，任一层此前存在即返回 true。
func (s *Store) Delete(ctx context.Context, address string) (bool, error) {
	existedHot, err := s.hot.Delete(ctx, address)
	if err != nil {
		return false, err
	}
	existedMirror, err := s.mirror.Delete(ctx, address)
	if err != nil {
		s.logger.Warn("从持久层删除失败",
			zap.String("address", address),
			zap.Error(err),
		)
		return existedHot, nil
	}
	return existedHot || existedMirror, nil
}

// Clear 清空两层，返回两层中较大的记录数。
func (s *Store) Clear(ctx context.Context) (int, error) {
	n, err := s.hot.Clear(ctx)
	if err != nil {
		return 0, err
	}
	m, err := s.mirror.Clear(ctx)
	if err != nil {
		s.logger.Warn("清空持久层失败", zap.Error(err))
		return n, nil
	}
	if m > n {
		n = m
	}
	return n, nil
}

// DeleteExpired 过期清理只作用于内存层；持久层保留全量
// 历史，由 List 合并时可见。
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	return s.hot.DeleteExpired(ctx)
}

// Health 两层都健康才算健康。
func (s *Store) Health(ctx context.Context) error {
	if err := s.hot.Health(ctx); err != nil {
		return err
	}
	return s.mirror.Ping(ctx)
}
