package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailbridge/backend/internal/config"
	"mailbridge/backend/internal/health"
	"mailbridge/backend/internal/middleware"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config       *config.Config
	EmailService *service.EmailService
	Metrics      *monitoring.Metrics // 可为 nil（测试场景）
	Health       *health.Checker     // 可为 nil（测试场景）
	RateLimiter  *middleware.IPRateLimiter
	Logger       *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 * 1024 * 1024))
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := NewHandler(deps.EmailService, deps.Logger)

	// 健康与指标端点不做鉴权
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// 业务 API：先限流再鉴权
	api := router.Group("/api")
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.Middleware())
	}
	api.Use(middleware.APIKeyAuth(deps.Config.Security.APIKey))
	{
		api.POST("/generate-email", handler.GenerateEmail)
		api.GET("/get-messages/:email", handler.GetMessages)
		api.GET("/get-message/:email/:messageId", handler.GetMessage)
		api.GET("/wait-for-code/:email", handler.WaitForCode)
		api.GET("/services", handler.Services)
		api.GET("/emails", handler.ListEmails)
		api.DELETE("/delete-email/:email", handler.DeleteEmail)
		api.POST("/delete-emails", handler.DeleteEmails)
		api.DELETE("/clear-all", handler.ClearAll)
	}

	return router
}
