package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/extractor"
)

// NiMail 适配器。表单 POST 接口，邮件列表即携带正文，
// 没有独立的详情接口。
type NiMail struct {
	client  *http.Client
	baseURL string // 默认 https://www.nimail.cn
}

// NewNiMail 创建 NiMail 适配器。
func NewNiMail(client *http.Client, baseURL string) *NiMail {
	if baseURL == "" {
		baseURL = "https://www.nimail.cn"
	}
	return &NiMail{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (n *NiMail) Name() domain.ProviderName {
	return domain.ProviderNiMail
}

func (n *NiMail) Describe() Info {
	return Info{
		Name:        domain.ProviderNiMail,
		DisplayName: "NiMail (推荐)",
		Domain:      "@nimail.cn",
		Description: "中文服务，稳定快速，能接收验证码",
		Recommended: true,
	}
}

// GenerateEmail 申请邮箱：本地生成 8 位随机前缀，POST 到 applymail 登记。
func (n *NiMail) GenerateEmail(ctx context.Context) (*GenerateResult, error) {
	local := randomLocalPart(8)
	address := local + "@nimail.cn"

	form := url.Values{"mail": {address}}
	if err := n.postForm(ctx, "/api/applymail", form, nil); err != nil {
		return nil, &Error{Provider: domain.ProviderNiMail, Op: "generate", Err: err}
	}

	return &GenerateResult{
		Address:     address,
		Credentials: domain.Credentials{Username: local},
	}, nil
}

// nimailMessage 是 NiMail 列表项的原始形态。
//
// 同一属性在不同邮件里字段名不固定，按以下优先级取第一个非空值：
//
//	id:      id > mailId > mid
//	from:    from > sender > fromAddress
//	subject: subject > title > mailSubject
//	date:    date > time > mailDate
//	content: content > body > mailContent > text
type nimailMessage struct {
	ID          looseString `json:"id"`
	MailID      looseString `json:"mailId"`
	MID         looseString `json:"mid"`
	From        string      `json:"from"`
	Sender      string      `json:"sender"`
	FromAddress string      `json:"fromAddress"`
	Subject     string      `json:"subject"`
	Title       string      `json:"title"`
	MailSubject string      `json:"mailSubject"`
	Date        looseString `json:"date"`
	Time        looseString `json:"time"`
	MailDate    looseString `json:"mailDate"`
	Content     string      `json:"content"`
	Body        string      `json:"body"`
	MailContent string      `json:"mailContent"`
	Text        string      `json:"text"`
}

// normalize 按文档化的字段优先级把原始列表项压成统一结构。
func (m *nimailMessage) normalize() (domain.NormalizedMessage, string) {
	body := firstNonEmpty(m.Content, m.Body, m.MailContent, m.Text)
	excerpt := body
	if runes := []rune(excerpt); len(runes) > 100 {
		excerpt = string(runes[:100])
	}
	return domain.NormalizedMessage{
		ID:      firstNonEmpty(m.ID.String(), m.MailID.String(), m.MID.String()),
		From:    firstNonEmpty(m.From, m.Sender, m.FromAddress),
		Subject: firstNonEmpty(m.Subject, m.Title, m.MailSubject),
		Date:    firstNonEmpty(m.Date.String(), m.Time.String(), m.MailDate.String()),
		Excerpt: excerpt,
	}, body
}

type nimailInbox struct {
	Mail []nimailMessage `json:"mail"`
}

// ListMessages 拉取邮件列表。响应里 mail 为 null 或缺失按空收件箱处理。
func (n *NiMail) ListMessages(ctx context.Context, rec *domain.MailboxRecord) ([]domain.NormalizedMessage, error) {
	inbox, err := n.fetchInbox(ctx, rec.Address)
	if err != nil {
		return nil, &Error{Provider: domain.ProviderNiMail, Op: "list", Err: err}
	}

	messages := make([]domain.NormalizedMessage, 0, len(inbox.Mail))
	for i := range inbox.Mail {
		msg, _ := inbox.Mail[i].normalize()
		messages = append(messages, msg)
	}
	return messages, nil
}

// GetMessageBody 返回邮件正文。正文随列表一起下发，
// 因此重新拉一次列表并按 id 查找。
func (n *NiMail) GetMessageBody(ctx context.Context, rec *domain.MailboxRecord, messageID string) (*domain.NormalizedMessageBody, error) {
	inbox, err := n.fetchInbox(ctx, rec.Address)
	if err != nil {
		return nil, &Error{Provider: domain.ProviderNiMail, Op: "body", Err: err}
	}

	for i := range inbox.Mail {
		msg, body := inbox.Mail[i].normalize()
		if msg.ID == messageID {
			return &domain.NormalizedMessageBody{
				NormalizedMessage: msg,
				Body:              body,
				TextBody:          extractor.StripTags(body),
			}, nil
		}
	}
	return nil, &Error{Provider: domain.ProviderNiMail, Op: "body", Err: fmt.Errorf("邮件不存在: %s", messageID)}
}

func (n *NiMail) fetchInbox(ctx context.Context, address string) (*nimailInbox, error) {
	form := url.Values{
		"mail": {address},
		"time": {"0"},
		"_":    {fmt.Sprintf("%d", time.Now().UnixMilli())},
	}
	var inbox nimailInbox
	if err := n.postForm(ctx, "/api/getmails", form, &inbox); err != nil {
		return nil, err
	}
	return &inbox, nil
}

// postForm 发送表单请求，out 非 nil 时解析 JSON 响应。
func (n *NiMail) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "zh-CN,zh")
	req.Header.Set("Origin", n.baseURL)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
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

// firstNonEmpty 返回第一个非空字符串。
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
