package tiered

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/storage"
	"mailbridge/backend/internal/storage/memory"
)

// fakeMirror 内存版持久层，saved 通道用于等待异步写完成。
type fakeMirror struct {
	mu      sync.Mutex
	records map[string]*domain.MailboxRecord
	saved   chan string
	fail    bool
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{
		records: make(map[string]*domain.MailboxRecord),
		saved:   make(chan string, 16),
	}
}

func (f *fakeMirror) Save(ctx context.Context, rec *domain.MailboxRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("mirror down")
	}
	f.records[rec.Address] = rec
	select {
	case f.saved <- rec.Address:
	default:
	}
	return nil
}

func (f *fakeMirror) Get(ctx context.Context, address string) (*domain.MailboxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("mirror down")
	}
	rec, ok := f.records[address]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeMirror) List(ctx context.Context) ([]*domain.MailboxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("mirror down")
	}
	records := make([]*domain.MailboxRecord, 0, len(f.records))
	for _, rec := range f.records {
		records = append(records, rec)
	}
	return records, nil
}

func (f *fakeMirror) Delete(ctx context.Context, address string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false, errors.New("mirror down")
	}
	_, existed := f.records[address]
	delete(f.records, address)
	return existed, nil
}

func (f *fakeMirror) Clear(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.records)
	f.records = make(map[string]*domain.MailboxRecord)
	return n, nil
}

func (f *fakeMirror) Ping(ctx context.Context) error { return nil }

func record(address string) *domain.MailboxRecord {
	return &domain.MailboxRecord{
		Address:   address,
		Provider:  domain.ProviderGuerrilla,
		CreatedAt: time.Now(),
	}
}

func waitSaved(t *testing.T, f *fakeMirror, address string) {
	t.Helper()
	select {
	case addr := <-f.saved:
		assert.Equal(t, address, addr)
	case <-time.After(2 * time.Second):
		t.Fatal("等待异步镜像写超时")
	}
}

func TestTieredStore(t *testing.T) {
	ctx := context.Background()

	t.Run("写入同步落内存异步落镜像", func(t *testing.T) {
		mirror := newFakeMirror()
		s := NewStore(memory.NewStore(0), mirror, zap.NewNop())

		assert.NoError(t, s.Save(ctx, record("a@x.com")))

		got, err := s.Get(ctx, "a@x.com")
		assert.NoError(t, err)
		assert.Equal(t, "a@x.com", got.Address)

		waitSaved(t, mirror, "a@x.com")
	})

	t.Run("镜像故障不影响写入", func(t *testing.T) {
		mirror := newFakeMirror()
		mirror.fail = true
		s := NewStore(memory.NewStore(0), mirror, zap.NewNop())

		assert.NoError(t, s.Save(ctx, record("a@x.com")))
		_, err := s.Get(ctx, "a@x.com")
		assert.NoError(t, err)
	})

	t.Run("内存未命中时从镜像回填", func(t *testing.T) {
		mirror := newFakeMirror()
		rec := record("cold@x.com")
		mirror.records["cold@x.com"] = rec

		hot := memory.NewStore(0)
		s := NewStore(hot, mirror, zap.NewNop())

		got, err := s.Get(ctx, "cold@x.com")
		assert.NoError(t, err)
		assert.Equal(t, rec, got)

		// 回填后直接命中内存
		got, err = hot.Get(ctx, "cold@x.com")
		assert.NoError(t, err)
		assert.Equal(t, rec, got)
	})

	t.Run("两层都未命中返回 ErrRecordNotFound", func(t *testing.T) {
		s := NewStore(memory.NewStore(0), newFakeMirror(), zap.NewNop())
		_, err := s.Get(ctx, "missing@x.com")
		assert.ErrorIs(t, err, storage.ErrRecordNotFound)
	})

	t.Run("列表合并两层并去重", func(t *testing.T) {
		mirror := newFakeMirror()
		mirror.records["cold@x.com"] = record("cold@x.com")
		mirror.records["both@x.com"] = record("both@x.com")

		hot := memory.NewStore(0)
		assert.NoError(t, hot.Save(ctx, record("hot@x.com")))
		assert.NoError(t, hot.Save(ctx, record("both@x.com")))

		s := NewStore(hot, mirror, zap.NewNop())
		records, err := s.List(ctx)
		assert.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("删除报告任一层的存在性", func(t *testing.T) {
		mirror := newFakeMirror()
		mirror.records["cold@x.com"] = record("cold@x.com")
		s := NewStore(memory.NewStore(0), mirror, zap.NewNop())

		existed, err := s.Delete(ctx, "cold@x.com")
		assert.NoError(t, err)
		assert.True(t, existed)

		existed, err = s.Delete(ctx, "cold@x.com")
		assert.NoError(t, err)
		assert.False(t, existed)
	})
}
