// Package storage 定义邮箱记录的存储接口。
package storage

import (
	"context"
	"errors"

	"mailbridge/backend/internal/domain"
)

// ErrRecordNotFound 邮箱记录不存在。
var ErrRecordNotFound = errors.New("mailbox record not found")

// MailboxStore 邮箱记录存储。
//
// Get 未命中必须返回 ErrRecordNotFound；Delete 返回记录此前
// 是否存在，重复删除不报错。实现必须支持并发读写。
type MailboxStore interface {
	// Save 写入或覆盖一条记录，以地址为键。
	Save(ctx context.Context, rec *domain.MailboxRecord) error

	// Get 按地址读取记录。
	Get(ctx context.Context, address string) (*domain.MailboxRecord, error)

	// List 返回全部记录，顺序不保证。
	List(ctx context.Context) ([]*domain.MailboxRecord, error)

	// Delete 删除记录，返回删除前是否存在。
	Delete(ctx context.Context, address string) (bool, error)

	// Clear 删除全部记录，返回删除数量。
	Clear(ctx context.Context) (int, error)

	// DeleteExpired 删除创建时间早于 TTL 的记录，返回删除数量。
	DeleteExpired(ctx context.Context) (int, error)

	// Health 检查存储是否可用。
	Health(ctx context.Context) error
}
