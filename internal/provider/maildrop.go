package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"mailbridge/backend/internal/domain"
)

// Maildrop 适配器。邮箱无需注册即可使用，有列表 API
// 但没有正文 API，详情只能通过网页收件箱查看。
type Maildrop struct {
	client  *http.Client
	baseURL string // 默认 https://maildrop.cc
}

// NewMaildrop 创建 Maildrop 适配器。
func NewMaildrop(client *http.Client, baseURL string) *Maildrop {
	if baseURL == "" {
		baseURL = "https://maildrop.cc"
	}
	return &Maildrop{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (d *Maildrop) Name() domain.ProviderName {
	return domain.ProviderMaildrop
}

func (d *Maildrop) Describe() Info {
	return Info{
		Name:        domain.ProviderMaildrop,
		DisplayName: "Maildrop",
		Domain:      "@maildrop.cc",
		Description: "免注册公开邮箱，正文需网页查看",
		Recommended: false,
	}
}

// GenerateEmail 生成邮箱。Maildrop 接收任意前缀的来信，
// 不需要远程申请，本地生成即生效。
func (d *Maildrop) GenerateEmail(ctx context.Context) (*GenerateResult, error) {
	local := randomLocalPart(12)
	return &GenerateResult{
		Address:     local + "@maildrop.cc",
		Credentials: domain.Credentials{Username: local},
		WebViewURL:  d.baseURL + "/inbox/" + local,
		Info:        "请访问网页查看邮件（完全公开）",
	}, nil
}

// ListMessages 拉取邮件列表。
func (d *Maildrop) ListMessages(ctx context.Context, rec *domain.MailboxRecord) ([]domain.NormalizedMessage, error) {
	local := rec.Credentials.Username
	if local == "" {
		// 兼容旧记录，退回从地址推导
		local = strings.SplitN(rec.Address, "@", 2)[0]
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/inbox/"+local, nil)
	if err != nil {
		return nil, &Error{Provider: domain.ProviderMaildrop, Op: "list", Err: err}
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &Error{Provider: domain.ProviderMaildrop, Op: "list", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Provider: domain.ProviderMaildrop, Op: "list", Err: fmt.Errorf("意外的状态码 %d", resp.StatusCode)}
	}

	var items []struct {
		ID      looseString `json:"id"`
		From    string      `json:"from"`
		Subject string      `json:"subject"`
		Date    string      `json:"date"`
		Excerpt string      `json:"excerpt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, &Error{Provider: domain.ProviderMaildrop, Op: "list", Err: fmt.Errorf("解析响应失败: %w", err)}
	}

	messages := make([]domain.NormalizedMessage, 0, len(items))
	for _, item := range items {
		messages = append(messages, domain.NormalizedMessage{
			ID:      item.ID.String(),
			From:    item.From,
			Subject: item.Subject,
			Date:    item.Date,
			Excerpt: item.Excerpt,
		})
	}
	return messages, nil
}

// GetMessageBody 不受支持，返回携带网页收件箱地址的错误，
// 由调用方引导用户去网页查看。
func (d *Maildrop) GetMessageBody(ctx context.Context, rec *domain.MailboxRecord, messageID string) (*domain.NormalizedMessageBody, error) {
	webURL := rec.WebViewURL
	if webURL == "" && rec.Credentials.Username != "" {
		webURL = d.baseURL + "/inbox/" + rec.Credentials.Username
	}
	return nil, &NotSupportedError{Provider: domain.ProviderMaildrop, WebViewURL: webURL}
}
