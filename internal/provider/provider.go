package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"mailbridge/backend/internal/domain"
)

// ========== 适配器接口 ==========

// Adapter 是单个临时邮箱服务商的集成接口。
//
// 三个方法都是单次调用：失败不重试、不 panic，统一包装为 *Error
// 返回；跨服务商的回退由 Registry 负责。所有网络调用受调用方
// 传入的 ctx 约束，底层 http.Client 另带兜底超时。
type Adapter interface {
	// Name 返回服务商枚举名。
	Name() domain.ProviderName

	// Describe 返回服务商的静态描述信息（不含可用性）。
	Describe() Info

	// GenerateEmail 向服务商申请一个新邮箱。
	GenerateEmail(ctx context.Context) (*GenerateResult, error)

	// ListMessages 拉取邮箱的邮件列表并归一化。
	// 空收件箱返回空切片而不是错误。
	ListMessages(ctx context.Context, rec *domain.MailboxRecord) ([]domain.NormalizedMessage, error)

	// GetMessageBody 拉取单封邮件的正文。
	// 不支持正文 API 的服务商返回 *NotSupportedError。
	GetMessageBody(ctx context.Context, rec *domain.MailboxRecord, messageID string) (*domain.NormalizedMessageBody, error)
}

// Info 服务商静态描述，/api/services 对外展示用。
type Info struct {
	Name        domain.ProviderName `json:"name"`
	DisplayName string              `json:"displayName"`
	Domain      string              `json:"domain"`
	Description string              `json:"description"`
	Available   bool                `json:"available"`
	Recommended bool                `json:"recommended"`
}

// GenerateResult 申请邮箱的结果。
//
// Credentials 由适配器填写、由同一适配器在后续调用中读取，
// 其余组件只负责透传。
type GenerateResult struct {
	Address     string
	Credentials domain.Credentials
	WebViewURL  string // 需要网页查收时的收件箱地址
	Info        string // 给用户的提示语，可为空
}

// ========== 错误 ==========

var (
	// ErrServiceUnavailable 指定的服务商已被标记为不可用。
	ErrServiceUnavailable = errors.New("指定的邮箱服务当前不可用")

	// ErrAllProvidersUnavailable 所有服务商都申请失败。
	ErrAllProvidersUnavailable = errors.New("所有邮箱服务都不可用")

	// ErrUnknownProvider 服务商名称未注册。
	ErrUnknownProvider = errors.New("未知的邮箱服务")
)

// Error 包装一次服务商调用的失败，携带服务商名和操作名。
type Error struct {
	Provider domain.ProviderName
	Op       string // generate / list / body
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotSupportedError 表示服务商没有对应的读取 API，
// 调用方应引导用户通过 WebViewURL 在网页上查看。
type NotSupportedError struct {
	Provider   domain.ProviderName
	WebViewURL string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("provider %s: 不支持通过 API 读取邮件正文", e.Provider)
}

// ========== 公共工具 ==========

// defaultTimeout 单次服务商调用的兜底超时。
const defaultTimeout = 10 * time.Second

// NewHTTPClient 构造适配器共享的出站 HTTP 客户端。
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// randomLocalPart 生成指定长度的随机邮箱前缀。
//
// 取 UUID 去掉连字符后的前 n 位，保证只含小写十六进制字符，
// 对所有服务商都是合法的本地部分。
func randomLocalPart(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

// looseString 兼容服务商把同一字段有时给数字、有时给字符串的情况，
// 统一按字符串落地（例如 NiMail 的邮件 id、GuerrillaMail 的时间戳）。
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "" || raw == "null" {
		*s = ""
		return nil
	}
	if raw[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	*s = looseString(raw)
	return nil
}

func (s looseString) String() string {
	return string(s)
}
