package provider

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
)

// Registry 持有全部适配器并负责申请邮箱时的服务商选择。
//
// 可用性状态是进程级、单向的：某个适配器申请失败一次即被
// 标记为不可用，之后跳过不再尝试，直到进程重启。读取操作
// （列表、正文）不受该状态影响，已有邮箱照常可查。
type Registry struct {
	mu          sync.Mutex
	adapters    []Adapter // 注册顺序即回退优先级
	byName      map[domain.ProviderName]Adapter
	unavailable map[domain.ProviderName]bool
	logger      *zap.Logger
}

// NewRegistry 按优先级顺序注册适配器。
func NewRegistry(logger *zap.Logger, adapters ...Adapter) *Registry {
	byName := make(map[domain.ProviderName]Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &Registry{
		adapters:    adapters,
		byName:      byName,
		unavailable: make(map[domain.ProviderName]bool),
		logger:      logger,
	}
}

// Get 按名称取适配器，读取操作的派发入口。
func (r *Registry) Get(name domain.ProviderName) (Adapter, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// List 返回全部服务商的描述，附带当前可用性。
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.adapters))
	for _, a := range r.adapters {
		info := a.Describe()
		info.Available = !r.unavailable[a.Name()]
		infos = append(infos, info)
	}
	return infos
}

// Available 报告服务商当前是否可用；至少一个可用时整体健康。
func (r *Registry) Available(name domain.ProviderName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.unavailable[name]
}

// AnyAvailable 报告是否还有可用的服务商，健康检查用。
func (r *Registry) AnyAvailable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.adapters {
		if !r.unavailable[a.Name()] {
			return true
		}
	}
	return false
}

// markUnavailable 单向标记，没有恢复路径。
func (r *Registry) markUnavailable(name domain.ProviderName) {
	r.mu.Lock()
	r.unavailable[name] = true
	r.mu.Unlock()
	r.logger.Warn("邮箱服务已标记为不可用", zap.String("provider", string(name)))
}

// SelectAndGenerate 选择服务商并申请邮箱。
//
// 指定 explicit 时只用该服务商，不可用或失败都不回退；
// 未指定时按注册顺序逐个尝试，每个至多调用一次，失败的
// 标记为不可用后继续下一个。适配器内部不重试，同一适配器
// 在一次调用里也绝不会被调用两次。
func (r *Registry) SelectAndGenerate(ctx context.Context, explicit domain.ProviderName) (Adapter, *GenerateResult, error) {
	if explicit != "" {
		adapter, ok := r.byName[explicit]
		if !ok {
			return nil, nil, ErrUnknownProvider
		}
		if !r.Available(explicit) {
			return nil, nil, ErrServiceUnavailable
		}
		result, err := adapter.GenerateEmail(ctx)
		if err != nil {
			return nil, nil, err
		}
		return adapter, result, nil
	}

	for _, adapter := range r.adapters {
		name := adapter.Name()
		if !r.Available(name) {
			continue
		}

		r.logger.Info("尝试申请邮箱", zap.String("provider", string(name)))
		result, err := adapter.GenerateEmail(ctx)
		if err != nil {
			r.logger.Warn("申请邮箱失败",
				zap.String("provider", string(name)),
				zap.Error(err),
			)
			r.markUnavailable(name)
			continue
		}
		return adapter, result, nil
	}

	return nil, nil, ErrAllProvidersUnavailable
}
