package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/extractor"
)

// MailTm Mail.tm 适配器。申请流程为三步：查询可用域名、
// 注册账号、换取 Bearer 令牌；之后的读取都带令牌。
// 响应是 Hydra 格式，集合在 hydra:member 字段里。
type MailTm struct {
	client  *http.Client
	baseURL string // 默认 https://api.mail.tm
}

// NewMailTm 创建 Mail.tm 适配器。
func NewMailTm(client *http.Client, baseURL string) *MailTm {
	if baseURL == "" {
		baseURL = "https://api.mail.tm"
	}
	return &MailTm{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *MailTm) Name() domain.ProviderName {
	return domain.ProviderMailTm
}

func (m *MailTm) Describe() Info {
	return Info{
		Name:        domain.ProviderMailTm,
		DisplayName: "Mail.tm",
		Domain:      "@mail.tm",
		Description: "国际服务，域名由服务端分配，支持完整读取 API",
		Recommended: false,
	}
}

// GenerateEmail 申请邮箱：取第一个可用域名，注册账号并换取令牌。
func (m *MailTm) GenerateEmail(ctx context.Context) (*GenerateResult, error) {
	wrap := func(err error) error {
		return &Error{Provider: domain.ProviderMailTm, Op: "generate", Err: err}
	}

	var domains struct {
		Members []struct {
			Domain string `json:"domain"`
		} `json:"hydra:member"`
	}
	if err := m.get(ctx, "/domains", "", &domains); err != nil {
		return nil, wrap(err)
	}
	if len(domains.Members) == 0 {
		return nil, wrap(fmt.Errorf("没有可用域名"))
	}

	username := randomLocalPart(10)
	password := randomLocalPart(16)
	address := username + "@" + domains.Members[0].Domain

	account := map[string]string{"address": address, "password": password}
	if err := m.post(ctx, "/accounts", account, nil); err != nil {
		return nil, wrap(fmt.Errorf("创建账号失败: %w", err))
	}

	var token struct {
		Token string `json:"token"`
	}
	if err := m.post(ctx, "/token", account, &token); err != nil {
		return nil, wrap(fmt.Errorf("获取令牌失败: %w", err))
	}
	if token.Token == "" {
		return nil, wrap(fmt.Errorf("响应缺少令牌"))
	}

	return &GenerateResult{
		Address: address,
		Credentials: domain.Credentials{
			Password:    password,
			BearerToken: token.Token,
		},
	}, nil
}

// ListMessages 拉取邮件列表。
func (m *MailTm) ListMessages(ctx context.Context, rec *domain.MailboxRecord) ([]domain.NormalizedMessage, error) {
	if rec.Credentials.BearerToken == "" {
		return nil, &Error{Provider: domain.ProviderMailTm, Op: "list", Err: fmt.Errorf("缺少访问令牌")}
	}

	var out struct {
		Members []struct {
			ID   string `json:"id"`
			From struct {
				Address string `json:"address"`
			} `json:"from"`
			Subject   string `json:"subject"`
			CreatedAt string `json:"createdAt"`
			Intro     string `json:"intro"`
		} `json:"hydra:member"`
	}
	if err := m.get(ctx, "/messages", rec.Credentials.BearerToken, &out); err != nil {
		return nil, &Error{Provider: domain.ProviderMailTm, Op: "list", Err: err}
	}

	messages := make([]domain.NormalizedMessage, 0, len(out.Members))
	for _, item := range out.Members {
		messages = append(messages, domain.NormalizedMessage{
			ID:      item.ID,
			From:    item.From.Address,
			Subject: item.Subject,
			Date:    item.CreatedAt,
			Excerpt: item.Intro,
		})
	}
	return messages, nil
}

// GetMessageBody 拉取单封邮件正文。html 字段是片段数组，拼接后
// 作为 Body；纯文本优先用服务端的 text 字段。
func (m *MailTm) GetMessageBody(ctx context.Context, rec *domain.MailboxRecord, messageID string) (*domain.NormalizedMessageBody, error) {
	if rec.Credentials.BearerToken == "" {
		return nil, &Error{Provider: domain.ProviderMailTm, Op: "body", Err: fmt.Errorf("缺少访问令牌")}
	}

	var out struct {
		ID   string `json:"id"`
		From struct {
			Address string `json:"address"`
		} `json:"from"`
		Subject   string   `json:"subject"`
		CreatedAt string   `json:"createdAt"`
		HTML      []string `json:"html"`
		Text      string   `json:"text"`
	}
	if err := m.get(ctx, "/messages/"+messageID, rec.Credentials.BearerToken, &out); err != nil {
		return nil, &Error{Provider: domain.ProviderMailTm, Op: "body", Err: err}
	}
	if out.ID == "" {
		return nil, &Error{Provider: domain.ProviderMailTm, Op: "body", Err: fmt.Errorf("邮件不存在: %s", messageID)}
	}

	body := strings.Join(out.HTML, "")
	if body == "" {
		body = out.Text
	}
	textBody := out.Text
	if textBody == "" {
		textBody = extractor.StripTags(body)
	}

	return &domain.NormalizedMessageBody{
		NormalizedMessage: domain.NormalizedMessage{
			ID:      out.ID,
			From:    out.From.Address,
			Subject: out.Subject,
			Date:    out.CreatedAt,
		},
		Body:     body,
		TextBody: textBody,
	}, nil
}

func (m *MailTm) get(ctx context.Context, path, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path, nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return m.do(req, out)
}

func (m *MailTm) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return m.do(req, out)
}

func (m *MailTm) do(req *http.Request, out any) error {
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("意外的状态码 %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
