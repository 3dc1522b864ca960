package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// SecurityConfig 定义对外 API 的访问控制配置
type SecurityConfig struct {
	APIKey          string        // X-API-Key 校验值，必须显式配置
	RateLimitWindow time.Duration // 限流窗口，默认 15 分钟
	RateLimitMax    int           // 窗口内单 IP 最大请求数，默认 100
}

// ProvidersConfig 定义邮箱服务商的接入配置
type ProvidersConfig struct {
	Order          []string      // 回退优先级，逗号分隔的服务商名
	HTTPTimeout    time.Duration // 单次服务商调用超时，默认 10s
	PollInterval   time.Duration // wait-for-code 轮询间隔，默认 2s
	PollAttempts   int           // wait-for-code 轮询次数，默认 30
	NiMailURL      string        // 各服务商 API 基址，留空用官方地址
	GuerrillaURL   string
	MailTmURL      string
	MaildropURL    string
	MailCatcherURL string // 本地 MailCatcher HTTP 地址，默认 http://localhost:1080
}

// StoreConfig 定义邮箱记录存储配置
type StoreConfig struct {
	TTL           time.Duration // 记录生存时间，0 表示不过期
	SweepInterval time.Duration // 过期清理周期，默认 1h
}

// RedisConfig 定义 Redis 持久层配置；Address 留空则只用内存存储
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// Config 是系统核心配置的根结构体
type Config struct {
	Server    ServerConfig
	Security  SecurityConfig
	Providers ProvidersConfig
	Store     StoreConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 优先级（从高到低）：系统环境变量 > .env 文件 > 默认值。
// 环境变量前缀 MAILBRIDGE_，如 MAILBRIDGE_SECURITY_API_KEY。
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("mailbridge")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("security.api_key", "")
	viper.SetDefault("security.rate_limit_window", "15m")
	viper.SetDefault("security.rate_limit_max", 100)
	viper.SetDefault("providers.order", "nimail,guerrillamail,mailtm,maildrop")
	viper.SetDefault("providers.http_timeout", "10s")
	viper.SetDefault("providers.poll_interval", "2s")
	viper.SetDefault("providers.poll_attempts", 30)
	viper.SetDefault("providers.nimail_url", "")
	viper.SetDefault("providers.guerrilla_url", "")
	viper.SetDefault("providers.mailtm_url", "")
	viper.SetDefault("providers.maildrop_url", "")
	viper.SetDefault("providers.mailcatcher_url", "")
	viper.SetDefault("store.ttl", "24h")
	viper.SetDefault("store.sweep_interval", "1h")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)

	apiKey := viper.GetString("security.api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("SECURITY ERROR: API key is required. Please set MAILBRIDGE_SECURITY_API_KEY environment variable")
	}

	rateLimitWindow, err := time.ParseDuration(viper.GetString("security.rate_limit_window"))
	if err != nil {
		return nil, fmt.Errorf("invalid security.rate_limit_window: %w", err)
	}
	rateLimitMax := viper.GetInt("security.rate_limit_max")
	if rateLimitMax <= 0 {
		rateLimitMax = 100
	}

	httpTimeout, err := time.ParseDuration(viper.GetString("providers.http_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid providers.http_timeout: %w", err)
	}
	pollInterval, err := time.ParseDuration(viper.GetString("providers.poll_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid providers.poll_interval: %w", err)
	}
	pollAttempts := viper.GetInt("providers.poll_attempts")
	if pollAttempts <= 0 {
		pollAttempts = 30
	}

	order := parseList(strings.ToLower(viper.GetString("providers.order")))
	if len(order) == 0 {
		return nil, fmt.Errorf("providers.order must not be empty")
	}

	ttl, err := time.ParseDuration(viper.GetString("store.ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid store.ttl: %w", err)
	}
	sweepInterval, err := time.ParseDuration(viper.GetString("store.sweep_interval"))
	if err != nil {
		sweepInterval = time.Hour
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Security: SecurityConfig{
			APIKey:          apiKey,
			RateLimitWindow: rateLimitWindow,
			RateLimitMax:    rateLimitMax,
		},
		Providers: ProvidersConfig{
			Order:          order,
			HTTPTimeout:    httpTimeout,
			PollInterval:   pollInterval,
			PollAttempts:   pollAttempts,
			NiMailURL:      viper.GetString("providers.nimail_url"),
			GuerrillaURL:   viper.GetString("providers.guerrilla_url"),
			MailTmURL:      viper.GetString("providers.mailtm_url"),
			MaildropURL:    viper.GetString("providers.maildrop_url"),
			MailCatcherURL: viper.GetString("providers.mailcatcher_url"),
		},
		Store: StoreConfig{
			TTL:           ttl,
			SweepInterval: sweepInterval,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片，去除空白项
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 先找当前目录，再找父目录（从 backend/ 子目录运行时）。
// 文件不存在时静默跳过，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
