package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailbridge/backend/internal/config"
	"mailbridge/backend/internal/health"
	"mailbridge/backend/internal/logger"
	"mailbridge/backend/internal/middleware"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/provider"
	"mailbridge/backend/internal/service"
	"mailbridge/backend/internal/storage"
	"mailbridge/backend/internal/storage/memory"
	redisstore "mailbridge/backend/internal/storage/redis"
	"mailbridge/backend/internal/storage/tiered"
	httptransport "mailbridge/backend/internal/transport/http"
)

// main 启动邮箱申请与验证码提取服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting mailbridge server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Strings("providers", cfg.Providers.Order),
	)

	// 初始化存储层：配置了 Redis 时用内存 + Redis 两级存储
	hot := memory.NewStore(cfg.Store.TTL)
	var store storage.MailboxStore = hot
	if cfg.Redis.Address != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		mirror, err := redisstore.NewMirror(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			panic(fmt.Sprintf("failed to initialize redis: %v", err))
		}
		defer mirror.Close()
		store = tiered.NewStore(hot, mirror, log)
		log.Info("using tiered storage", zap.String("redis", cfg.Redis.Address))
	} else {
		log.Info("using memory storage", zap.Duration("ttl", cfg.Store.TTL))
	}

	// 初始化服务商注册表，按配置顺序决定回退优先级
	registry := provider.NewRegistry(log, buildAdapters(cfg, log)...)

	metrics := monitoring.NewMetrics()
	healthChecker := health.NewChecker(store, registry)

	emailService := service.NewEmailService(
		registry,
		store,
		metrics,
		log,
		cfg.Providers.PollInterval,
		cfg.Providers.PollAttempts,
	)

	rateLimiter := middleware.NewIPRateLimiter(
		cfg.Security.RateLimitMax,
		cfg.Security.RateLimitWindow,
		metrics,
		log,
	)
	defer rateLimiter.Stop()

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		EmailService: emailService,
		Metrics:      metrics,
		Health:       healthChecker,
		RateLimiter:  rateLimiter,
		Logger:       log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// wait-for-code 最长阻塞 poll_interval × poll_attempts
		WriteTimeout: cfg.Providers.PollInterval*time.Duration(cfg.Providers.PollAttempts) + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理过期邮箱记录
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Store.SweepInterval)
		defer ticker.Stop()

		log.Info("starting expired record cleanup task", zap.Duration("interval", cfg.Store.SweepInterval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("cleanup task stopped")
				return nil
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				count, err := store.DeleteExpired(sweepCtx)
				cancel()
				if err != nil {
					log.Error("failed to cleanup expired records", zap.Error(err))
				} else if count > 0 {
					metrics.RecordMailboxesExpired(count)
					log.Info("expired records cleaned up", zap.Int("count", count))
				}
			}
		}
	})

	// 等待退出信号后优雅关闭
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Error("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}

// buildAdapters 按配置顺序构造服务商适配器，未知名称跳过并告警。
func buildAdapters(cfg *config.Config, log *zap.Logger) []provider.Adapter {
	client := provider.NewHTTPClient(cfg.Providers.HTTPTimeout)

	adapters := make([]provider.Adapter, 0, len(cfg.Providers.Order))
	for _, name := range cfg.Providers.Order {
		switch name {
		case "nimail":
			adapters = append(adapters, provider.NewNiMail(client, cfg.Providers.NiMailURL))
		case "guerrillamail":
			adapters = append(adapters, provider.NewGuerrilla(client, cfg.Providers.GuerrillaURL))
		case "mailtm":
			adapters = append(adapters, provider.NewMailTm(client, cfg.Providers.MailTmURL))
		case "maildrop":
			adapters = append(adapters, provider.NewMaildrop(client, cfg.Providers.MaildropURL))
		case "mailcatcher":
			adapters = append(adapters, provider.NewMailCatcher(client, cfg.Providers.MailCatcherURL, ""))
		default:
			log.Warn("unknown provider in providers.order, skipping", zap.String("provider", name))
		}
	}
	return adapters
}
