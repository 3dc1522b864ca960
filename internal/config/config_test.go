package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Run("缺少 API key 时拒绝启动", func(t *testing.T) {
		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "API key")
	})

	t.Run("默认值", func(t *testing.T) {
		t.Setenv("MAILBRIDGE_SECURITY_API_KEY", "test-key")

		cfg, err := Load()
		assert.NoError(t, err)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 15*time.Minute, cfg.Security.RateLimitWindow)
		assert.Equal(t, 100, cfg.Security.RateLimitMax)
		assert.Equal(t, []string{"nimail", "guerrillamail", "mailtm", "maildrop"}, cfg.Providers.Order)
		assert.Equal(t, 10*time.Second, cfg.Providers.HTTPTimeout)
		assert.Equal(t, 2*time.Second, cfg.Providers.PollInterval)
		assert.Equal(t, 30, cfg.Providers.PollAttempts)
		assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
		assert.Empty(t, cfg.Redis.Address)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	})

	t.Run("环境变量覆盖默认值", func(t *testing.T) {
		t.Setenv("MAILBRIDGE_SECURITY_API_KEY", "test-key")
		t.Setenv("MAILBRIDGE_SERVER_PORT", "9090")
		t.Setenv("MAILBRIDGE_PROVIDERS_ORDER", "MailTm, nimail")
		t.Setenv("MAILBRIDGE_PROVIDERS_HTTP_TIMEOUT", "5s")
		t.Setenv("MAILBRIDGE_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

		cfg, err := Load()
		assert.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, []string{"mailtm", "nimail"}, cfg.Providers.Order)
		assert.Equal(t, 5*time.Second, cfg.Providers.HTTPTimeout)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	})

	t.Run("非法的超时配置报错", func(t *testing.T) {
		t.Setenv("MAILBRIDGE_SECURITY_API_KEY", "test-key")
		t.Setenv("MAILBRIDGE_PROVIDERS_HTTP_TIMEOUT", "not-a-duration")

		_, err := Load()
		assert.Error(t, err)
	})
}
