package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	t.Run("带标签的模式优先于裸数字", func(t *testing.T) {
		code := Extract("验证码：9999 感谢注册，订单号 654321")
		assert.Equal(t, "9999", code)
	})

	t.Run("英文标签", func(t *testing.T) {
		assert.Equal(t, "4821", Extract("code: 4821"))
		assert.Equal(t, "832914", Extract("Your verification code: 832914"))
	})

	t.Run("裸 6 位优先于裸 4 位", func(t *testing.T) {
		code := Extract("您的取件号 654321 柜号 4821")
		assert.Equal(t, "654321", code)
	})

	t.Run("支持字母数字混合验证码", func(t *testing.T) {
		assert.Equal(t, "A8C2F1", Extract("确认信息 A8C2F1 请在页面输入"))
	})

	t.Run("HTML 正文先去标签再匹配", func(t *testing.T) {
		html := `<html><body><p>Your verification code:</p><b>772захват</b><h1>code: 5566</h1></body></html>`
		assert.Equal(t, "5566", Extract(html))
	})

	t.Run("无命中返回空串", func(t *testing.T) {
		assert.Equal(t, "", Extract("hello world no numbers here"))
		assert.Equal(t, "", Extract(""))
	})

	t.Run("对已去标签文本幂等", func(t *testing.T) {
		raw := `<div>验证码：<span>7410</span></div>`
		assert.Equal(t, Extract(StripTags(raw)), Extract(raw))
	})
}

func TestStripTags(t *testing.T) {
	t.Run("标签替换为空格并折叠空白", func(t *testing.T) {
		out := StripTags("<p>hello</p>\n\n<br/>world")
		assert.Equal(t, "hello world", out)
	})

	t.Run("纯文本原样返回", func(t *testing.T) {
		assert.Equal(t, "plain text", StripTags("plain text"))
	})
}
