// Package redis 提供邮箱记录的 Redis 持久层。
//
// 记录整体序列化为 JSON，存放在单个 hash 里以地址为 field，
// 进程重启后由两级存储按需回填内存。
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/storage"
)

// recordsKey 所有邮箱记录所在的 hash 键。
const recordsKey = "mailbridge:records"

// Mirror 持久层实现。
type Mirror struct {
	client *goredis.Client
}

// NewMirror 连接 Redis 并验证连通性。
func NewMirror(ctx context.Context, addr, password string, db int) (*Mirror, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &Mirror{client: client}, nil
}

// Save 写入一条记录。
func (m *Mirror) Save(ctx context.Context, rec *domain.MailboxRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化邮箱记录失败: %w", err)
	}
	return m.client.HSet(ctx, recordsKey, rec.Address, data).Err()
}

// Get 按地址读取记录，未命中返回 storage.ErrRecordNotFound。
func (m *Mirror) Get(ctx context.Context, address string) (*domain.MailboxRecord, error) {
	data, err := m.client.HGet(ctx, recordsKey, address).Result()
	if err == goredis.Nil {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec domain.MailboxRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("解析邮箱记录失败: %w", err)
	}
	return &rec, nil
}

// List 返回全部记录；个别损坏的条目跳过。
func (m *Mirror) List(ctx context.Context) ([]*domain.MailboxRecord, error) {
	all, err := m.client.HGetAll(ctx, recordsKey).Result()
	if err != nil {
		return nil, err
	}
	records := make([]*domain.MailboxRecord, 0, len(all))
	for _, data := range all {
		var rec domain.MailboxRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// Delete 删除记录，返回删除前是否存在。
func (m *Mirror) Delete(ctx context.Context, address string) (bool, error) {
	n, err := m.client.HDel(ctx, recordsKey, address).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear 删除整个 hash，返回删除的记录数。
func (m *Mirror) Clear(ctx context.Context) (int, error) {
	n, err := m.client.HLen(ctx, recordsKey).Result()
	if err != nil {
		return 0, err
	}
	if err := m.client.Del(ctx, recordsKey).Err(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Ping 健康检查。
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close 关闭连接。
func (m *Mirror) Close() error {
	return m.client.Close()
}
