// Package health 基于 heptiolabs/healthcheck 暴露存活与就绪探针。
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"

	"mailbridge/backend/internal/provider"
	"mailbridge/backend/internal/storage"
)

// Checker 健康检查器。
type Checker struct {
	handler healthcheck.Handler
}

// NewChecker 注册检查项。
//
// 存活：goroutine 数量阈值。就绪：存储可用且至少一个服务商可用。
// 服务商全灭意味着无法再申请新邮箱，应停止向该实例调度新任务。
func NewChecker(store storage.MailboxStore, registry *provider.Registry) *Checker {
	h := healthcheck.NewHandler()

	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(500))

	h.AddReadinessCheck("store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return store.Health(ctx)
	})

	h.AddReadinessCheck("providers", func() error {
		if !registry.AnyAvailable() {
			return errors.New("没有可用的邮箱服务商")
		}
		return nil
	})

	return &Checker{handler: h}
}

// LiveEndpoint /health/live 处理函数。
func (c *Checker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	c.handler.LiveEndpoint(w, r)
}

// ReadyEndpoint /health/ready 处理函数。
func (c *Checker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	c.handler.ReadyEndpoint(w, r)
}
