package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/extractor"
)

// MailCatcher 本地开发适配器。对接本机 MailCatcher
// （SMTP :1025 / HTTP :1080），任意收件人的来信都会落到
// 同一个收件箱，列表按收件人过滤。
type MailCatcher struct {
	client     *http.Client
	baseURL    string // 默认 http://localhost:1080
	mailDomain string
}

// NewMailCatcher 创建 MailCatcher 适配器。
func NewMailCatcher(client *http.Client, baseURL, mailDomain string) *MailCatcher {
	if baseURL == "" {
		baseURL = "http://localhost:1080"
	}
	if mailDomain == "" {
		mailDomain = "mailcatcher.local"
	}
	return &MailCatcher{
		client:     client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		mailDomain: mailDomain,
	}
}

func (mc *MailCatcher) Name() domain.ProviderName {
	return domain.ProviderMailCatcher
}

func (mc *MailCatcher) Describe() Info {
	return Info{
		Name:        domain.ProviderMailCatcher,
		DisplayName: "MailCatcher (本地)",
		Domain:      "@" + mc.mailDomain,
		Description: "本地开发环境邮箱，需要 MailCatcher 在本机运行",
		Recommended: false,
	}
}

// GenerateEmail 生成邮箱。地址本地生成即生效，但先探测
// /messages 确认 MailCatcher 在运行，未运行时报错以便
// 选择器把本适配器标记为不可用。
func (mc *MailCatcher) GenerateEmail(ctx context.Context) (*GenerateResult, error) {
	if err := mc.ping(ctx); err != nil {
		return nil, &Error{Provider: domain.ProviderMailCatcher, Op: "generate", Err: fmt.Errorf("MailCatcher 未运行或无法访问: %w", err)}
	}

	local := randomLocalPart(10)
	return &GenerateResult{
		Address:     local + "@" + mc.mailDomain,
		Credentials: domain.Credentials{Username: local},
		WebViewURL:  mc.baseURL,
		Info:        "本地开发邮箱，SMTP 投递到 localhost:1025",
	}, nil
}

type mailcatcherMessage struct {
	ID         looseString `json:"id"`
	Sender     string      `json:"sender"`
	Recipients []string    `json:"recipients"`
	Subject    string      `json:"subject"`
	CreatedAt  string      `json:"created_at"`
}

// ListMessages 拉取邮件列表，只保留收件人包含本邮箱地址的条目。
func (mc *MailCatcher) ListMessages(ctx context.Context, rec *domain.MailboxRecord) ([]domain.NormalizedMessage, error) {
	var items []mailcatcherMessage
	if err := mc.getJSON(ctx, "/messages", &items); err != nil {
		return nil, &Error{Provider: domain.ProviderMailCatcher, Op: "list", Err: err}
	}

	messages := make([]domain.NormalizedMessage, 0, len(items))
	for _, item := range items {
		if !recipientMatch(item.Recipients, rec.Address) {
			continue
		}
		messages = append(messages, domain.NormalizedMessage{
			ID:      item.ID.String(),
			From:    item.Sender,
			Subject: item.Subject,
			Date:    item.CreatedAt,
		})
	}
	return messages, nil
}

// GetMessageBody 拉取邮件详情。元数据来自 .json 接口，
// 纯文本和 HTML 正文分别来自 .plain / .html，两者都是
// 尽力而为，缺失不视为失败。
func (mc *MailCatcher) GetMessageBody(ctx context.Context, rec *domain.MailboxRecord, messageID string) (*domain.NormalizedMessageBody, error) {
	var meta mailcatcherMessage
	if err := mc.getJSON(ctx, "/messages/"+messageID+".json", &meta); err != nil {
		return nil, &Error{Provider: domain.ProviderMailCatcher, Op: "body", Err: err}
	}

	textBody, _ := mc.getText(ctx, "/messages/"+messageID+".plain")
	htmlBody, _ := mc.getText(ctx, "/messages/"+messageID+".html")

	body := htmlBody
	if body == "" {
		body = textBody
	}
	if textBody == "" {
		textBody = extractor.StripTags(htmlBody)
	}

	return &domain.NormalizedMessageBody{
		NormalizedMessage: domain.NormalizedMessage{
			ID:      meta.ID.String(),
			From:    meta.Sender,
			Subject: meta.Subject,
			Date:    meta.CreatedAt,
		},
		Body:     body,
		TextBody: textBody,
	}, nil
}

func (mc *MailCatcher) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mc.baseURL+"/messages", nil)
	if err != nil {
		return err
	}
	resp, err := mc.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("意外的状态码 %d", resp.StatusCode)
	}
	return nil
}

func (mc *MailCatcher) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mc.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := mc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("意外的状态码 %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

func (mc *MailCatcher) getText(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mc.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := mc.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("意外的状态码 %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// recipientMatch 判断收件人列表是否包含目标地址。
// MailCatcher 的收件人带尖括号（如 <a@b.c>），用包含匹配。
func recipientMatch(recipients []string, address string) bool {
	for _, r := range recipients {
		if strings.Contains(r, address) {
			return true
		}
	}
	return false
}
