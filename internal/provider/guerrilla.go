package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/extractor"
)

// Guerrilla GuerrillaMail 适配器。所有操作走同一个 ajax.php
// 入口，用 f 参数区分；会话靠申请时下发的 sid_token 维持，
// 令牌只签发一次，之后绝不重新推导。
type Guerrilla struct {
	client  *http.Client
	baseURL string // 默认 https://api.guerrillamail.com
}

// NewGuerrilla 创建 GuerrillaMail 适配器。
func NewGuerrilla(client *http.Client, baseURL string) *Guerrilla {
	if baseURL == "" {
		baseURL = "https://api.guerrillamail.com"
	}
	return &Guerrilla{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (g *Guerrilla) Name() domain.ProviderName {
	return domain.ProviderGuerrilla
}

func (g *Guerrilla) Describe() Info {
	return Info{
		Name:        domain.ProviderGuerrilla,
		DisplayName: "GuerrillaMail",
		Domain:      "@guerrillamail.com",
		Description: "老牌临时邮箱，地址由服务端分配",
		Recommended: false,
	}
}

// GenerateEmail 申请邮箱。地址由服务端分配，响应同时下发 sid_token。
func (g *Guerrilla) GenerateEmail(ctx context.Context) (*GenerateResult, error) {
	var out struct {
		EmailAddr string `json:"email_addr"`
		SIDToken  string `json:"sid_token"`
	}
	params := url.Values{
		"f":     {"get_email_address"},
		"ip":    {"127.0.0.1"},
		"agent": {"Mozilla/5.0"},
	}
	if err := g.call(ctx, params, &out); err != nil {
		return nil, &Error{Provider: domain.ProviderGuerrilla, Op: "generate", Err: err}
	}
	if out.EmailAddr == "" {
		return nil, &Error{Provider: domain.ProviderGuerrilla, Op: "generate", Err: fmt.Errorf("响应缺少邮箱地址")}
	}

	return &GenerateResult{
		Address:     out.EmailAddr,
		Credentials: domain.Credentials{SIDToken: out.SIDToken},
	}, nil
}

type guerrillaListItem struct {
	MailID      looseString `json:"mail_id"`
	MailFrom    string      `json:"mail_from"`
	MailSubject string      `json:"mail_subject"`
	MailTS      looseString `json:"mail_timestamp"`
	MailExcerpt string      `json:"mail_excerpt"`
}

// ListMessages 拉取邮件列表。时间戳为 Unix 秒，归一化为 ISO-8601。
func (g *Guerrilla) ListMessages(ctx context.Context, rec *domain.MailboxRecord) ([]domain.NormalizedMessage, error) {
	if rec.Credentials.SIDToken == "" {
		return nil, &Error{Provider: domain.ProviderGuerrilla, Op: "list", Err: fmt.Errorf("缺少会话令牌")}
	}

	var out struct {
		List []guerrillaListItem `json:"list"`
	}
	params := url.Values{
		"f":         {"get_email_list"},
		"offset":    {"0"},
		"sid_token": {rec.Credentials.SIDToken},
	}
	if err := g.call(ctx, params, &out); err != nil {
		return nil, &Error{Provider: domain.ProviderGuerrilla, Op: "list", Err: err}
	}

	messages := make([]domain.NormalizedMessage, 0, len(out.List))
	for _, item := range out.List {
		messages = append(messages, domain.NormalizedMessage{
			ID:      item.MailID.String(),
			From:    item.MailFrom,
			Subject: item.MailSubject,
			Date:    unixToISO(item.MailTS.String()),
			Excerpt: item.MailExcerpt,
		})
	}
	return messages, nil
}

// GetMessageBody 拉取单封邮件正文。
func (g *Guerrilla) GetMessageBody(ctx context.Context, rec *domain.MailboxRecord, messageID string) (*domain.NormalizedMessageBody, error) {
	if rec.Credentials.SIDToken == "" {
		return nil, &Error{Provider: domain.ProviderGuerrilla, Op: "body", Err: fmt.Errorf("缺少会话令牌")}
	}

	var out struct {
		MailID      looseString `json:"mail_id"`
		MailFrom    string      `json:"mail_from"`
		MailSubject string      `json:"mail_subject"`
		MailBody    string      `json:"mail_body"`
		MailTS      looseString `json:"mail_timestamp"`
	}
	params := url.Values{
		"f":         {"fetch_email"},
		"email_id":  {messageID},
		"sid_token": {rec.Credentials.SIDToken},
	}
	if err := g.call(ctx, params, &out); err != nil {
		return nil, &Error{Provider: domain.ProviderGuerrilla, Op: "body", Err: err}
	}
	if out.MailID.String() == "" {
		return nil, &Error{Provider: domain.ProviderGuerrilla, Op: "body", Err: fmt.Errorf("邮件不存在: %s", messageID)}
	}

	return &domain.NormalizedMessageBody{
		NormalizedMessage: domain.NormalizedMessage{
			ID:      out.MailID.String(),
			From:    out.MailFrom,
			Subject: out.MailSubject,
			Date:    unixToISO(out.MailTS.String()),
		},
		Body:     out.MailBody,
		TextBody: extractor.StripTags(out.MailBody),
	}, nil
}

func (g *Guerrilla) call(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/ajax.php?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
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

// unixToISO 把 Unix 秒时间戳转为 ISO-8601，解析失败时原样返回。
func unixToISO(ts string) string {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ts
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
