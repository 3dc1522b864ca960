package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
)

// stubAdapter 计数每次调用，便于断言回退是否重复调用。
type stubAdapter struct {
	name    domain.ProviderName
	fail    bool
	calls   int
	address string
}

func (s *stubAdapter) Name() domain.ProviderName { return s.name }

func (s *stubAdapter) Describe() Info {
	return Info{Name: s.name, DisplayName: string(s.name)}
}

func (s *stubAdapter) GenerateEmail(ctx context.Context) (*GenerateResult, error) {
	s.calls++
	if s.fail {
		return nil, &Error{Provider: s.name, Op: "generate", Err: errors.New("upstream down")}
	}
	return &GenerateResult{Address: s.address}, nil
}

func (s *stubAdapter) ListMessages(ctx context.Context, rec *domain.MailboxRecord) ([]domain.NormalizedMessage, error) {
	return []domain.NormalizedMessage{}, nil
}

func (s *stubAdapter) GetMessageBody(ctx context.Context, rec *domain.MailboxRecord, messageID string) (*domain.NormalizedMessageBody, error) {
	return nil, &Error{Provider: s.name, Op: "body", Err: errors.New("not implemented")}
}

func TestRegistrySelectAndGenerate(t *testing.T) {
	t.Run("顺序回退并标记失败的服务商", func(t *testing.T) {
		a := &stubAdapter{name: "a", fail: true}
		b := &stubAdapter{name: "b", fail: true}
		c := &stubAdapter{name: "c", address: "x@c.test"}
		reg := NewRegistry(zap.NewNop(), a, b, c)

		adapter, result, err := reg.SelectAndGenerate(context.Background(), "")
		assert.NoError(t, err)
		assert.Equal(t, domain.ProviderName("c"), adapter.Name())
		assert.Equal(t, "x@c.test", result.Address)
		assert.False(t, reg.Available("a"))
		assert.False(t, reg.Available("b"))
		assert.True(t, reg.Available("c"))

		// 第二次调用直接跳过 a、b，不再触发它们的请求
		_, _, err = reg.SelectAndGenerate(context.Background(), "")
		assert.NoError(t, err)
		assert.Equal(t, 1, a.calls)
		assert.Equal(t, 1, b.calls)
		assert.Equal(t, 2, c.calls)
	})

	t.Run("全部失败返回整体不可用", func(t *testing.T) {
		a := &stubAdapter{name: "a", fail: true}
		reg := NewRegistry(zap.NewNop(), a)

		_, _, err := reg.SelectAndGenerate(context.Background(), "")
		assert.ErrorIs(t, err, ErrAllProvidersUnavailable)
	})

	t.Run("指定服务商不可用时不回退", func(t *testing.T) {
		a := &stubAdapter{name: "a", fail: true}
		b := &stubAdapter{name: "b", address: "x@b.test"}
		reg := NewRegistry(zap.NewNop(), a, b)

		// 先触发 a 被标记
		_, _, err := reg.SelectAndGenerate(context.Background(), "")
		assert.NoError(t, err)

		_, _, err = reg.SelectAndGenerate(context.Background(), "a")
		assert.ErrorIs(t, err, ErrServiceUnavailable)
		assert.Equal(t, 1, a.calls)
	})

	t.Run("指定服务商失败时不标记为不可用", func(t *testing.T) {
		a := &stubAdapter{name: "a", fail: true}
		reg := NewRegistry(zap.NewNop(), a)

		_, _, err := reg.SelectAndGenerate(context.Background(), "a")
		assert.Error(t, err)
		assert.True(t, reg.Available("a"))
	})

	t.Run("未注册的服务商名", func(t *testing.T) {
		reg := NewRegistry(zap.NewNop())
		_, _, err := reg.SelectAndGenerate(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})
}

func TestRegistryList(t *testing.T) {
	t.Run("描述信息携带可用性", func(t *testing.T) {
		a := &stubAdapter{name: "a", fail: true}
		b := &stubAdapter{name: "b", address: "x@b.test"}
		reg := NewRegistry(zap.NewNop(), a, b)

		_, _, err := reg.SelectAndGenerate(context.Background(), "")
		assert.NoError(t, err)

		infos := reg.List()
		assert.Len(t, infos, 2)
		assert.False(t, infos[0].Available)
		assert.True(t, infos[1].Available)
		assert.True(t, reg.AnyAvailable())
	})
}
