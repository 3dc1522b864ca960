package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mailbridge/backend/internal/monitoring"
)

// IPRateLimiter 按客户端 IP 限流。
//
// 额度换算为令牌桶：窗口内 max 次请求等价于速率 max/window、
// 突发上限 max。闲置的条目由后台例程定期回收。
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	metrics  *monitoring.Metrics // 可为 nil
	logger   *zap.Logger
	stop     chan struct{}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter 创建限流器并启动清理例程。
func NewIPRateLimiter(maxRequests int, window time.Duration, metrics *monitoring.Metrics, logger *zap.Logger) *IPRateLimiter {
	rl := &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(maxRequests)),
		burst:    maxRequests,
		metrics:  metrics,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	go rl.cleanupLoop(window)
	return rl
}

// Middleware 返回 gin 中间件。超额返回 429。
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.allow(ip) {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitBlock()
			}
			rl.logger.Warn("请求被限流", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "请求过于频繁，请稍后重试",
			})
			return
		}
		c.Next()
	}
}

func (rl *IPRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()
	return v.limiter.Allow()
}

// cleanupLoop 回收长时间没有请求的 IP 条目。
func (rl *IPRateLimiter) cleanupLoop(window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * window)
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if v.lastSeen.Before(cutoff) {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop 停止清理例程。
func (rl *IPRateLimiter) Stop() {
	close(rl.stop)
}
