// Package memory 提供进程内的邮箱记录存储，是两级存储的热层，
// 也可以单独作为无 Redis 部署时的唯一存储。
package memory

import (
	"context"
	"sync"
	"time"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/storage"
)

// Store 使用内存 map 保存邮箱记录。
//
// 锁只覆盖 map 的点读点写，绝不在持锁期间做网络调用。
type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.MailboxRecord // address -> record
	ttl     time.Duration                    // 0 表示不过期
}

// NewStore 创建内存存储。ttl 为 0 时记录永不过期。
func NewStore(ttl time.Duration) *Store {
	return &Store{
		records: make(map[string]*domain.MailboxRecord),
		ttl:     ttl,
	}
}

// Save 写入或覆盖记录。
func (s *Store) Save(ctx context.Context, rec *domain.MailboxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Address] = rec
	return nil
}

// Get 按地址读取记录。
func (s *Store) Get(ctx context.Context, address string) (*domain.MailboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[address]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return rec, nil
}

// List 返回全部记录的快照。
func (s *Store) List(ctx context.Context) ([]*domain.MailboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*domain.MailboxRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	return records, nil
}

// Delete 删除记录，返回删除前是否存在。
func (s *Store) Delete(ctx context.Context, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.records[address]
	delete(s.records, address)
	return existed, nil
}

// Clear 删除全部记录。
func (s *Store) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = make(map[string]*domain.MailboxRecord)
	return n, nil
}

// DeleteExpired 删除超过 TTL 的记录。
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for address, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.records, address)
			n++
		}
	}
	return n, nil
}

// Health 内存存储恒可用。
func (s *Store) Health(ctx context.Context) error {
	return nil
}
