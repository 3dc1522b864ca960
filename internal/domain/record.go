package domain

import (
	"time"
)

// ProviderName 标识一个临时邮箱服务商。
//
// 派发始终基于该枚举值，注册时解析一次，调用点不做字符串比较。
type ProviderName string

const (
	ProviderNiMail      ProviderName = "nimail"
	ProviderGuerrilla   ProviderName = "guerrillamail"
	ProviderMailTm      ProviderName = "mailtm"
	ProviderMaildrop    ProviderName = "maildrop"
	ProviderMailCatcher ProviderName = "mailcatcher"
)

// Credentials 保存服务商在申请邮箱时下发的会话凭据。
//
// 内容因服务商而异，只有所属的适配器允许读取其中字段；
// 其他组件一律把它当作不透明数据整体存取。
type Credentials struct {
	Username    string `json:"username,omitempty"`    // 邮箱前缀（NiMail / Maildrop / MailCatcher）
	Password    string `json:"password,omitempty"`    // 账号密码（Mail.tm）
	SIDToken    string `json:"sidToken,omitempty"`    // 会话令牌（GuerrillaMail）
	BearerToken string `json:"bearerToken,omitempty"` // Bearer 令牌（Mail.tm）
}

// MailboxRecord 表示一个已申请的临时邮箱。
//
// 创建后不可变：会话凭据在签发时即固定，不会重新推导。
type MailboxRecord struct {
	Address     string       `json:"address"`
	Provider    ProviderName `json:"provider"`
	Credentials Credentials  `json:"credentials"`
	CreatedAt   time.Time    `json:"createdAt"`
	WebViewURL  string       `json:"webViewUrl,omitempty"` // 无读取 API 的服务商提供的网页收件箱地址
}

// NormalizedMessage 是服务商无关的邮件列表项。
//
// 除 ID 外所有字段尽力而为，允许为空；排序沿用服务商返回顺序。
type NormalizedMessage struct {
	ID      string `json:"id"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject,omitempty"`
	Date    string `json:"date,omitempty"` // 时间戳或 ISO-8601，按服务商原样透传
	Excerpt string `json:"excerpt,omitempty"`
}

// NormalizedMessageBody 是邮件详情，在列表项之上补充正文。
//
// TextBody 由正则去标签得到，刻意不引入完整 HTML 解析器，
// 保证提取结果与既有行为完全一致。
type NormalizedMessageBody struct {
	NormalizedMessage
	Body     string `json:"body"`
	TextBody string `json:"textBody"`
}
