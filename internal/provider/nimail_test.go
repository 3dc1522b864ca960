package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/extractor"
)

func TestNiMailGenerateEmail(t *testing.T) {
	t.Run("申请成功返回合法地址", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/applymail", r.URL.Path)
			assert.NoError(t, r.ParseForm())
			assert.Contains(t, r.PostForm.Get("mail"), "@nimail.cn")
			w.Write([]byte(`{"success":"true"}`))
		}))
		defer srv.Close()

		n := NewNiMail(srv.Client(), srv.URL)
		result, err := n.GenerateEmail(context.Background())
		assert.NoError(t, err)

		parts := strings.Split(result.Address, "@")
		assert.Len(t, parts, 2)
		assert.NotEmpty(t, parts[0])
		assert.Equal(t, result.Credentials.Username, parts[0])
	})

	t.Run("上游报错包装为服务商错误", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		n := NewNiMail(srv.Client(), srv.URL)
		_, err := n.GenerateEmail(context.Background())
		var perr *Error
		assert.ErrorAs(t, err, &perr)
		assert.Equal(t, domain.ProviderNiMail, perr.Provider)
	})
}

func TestNiMailNormalization(t *testing.T) {
	rec := &domain.MailboxRecord{
		Address:  "abc@nimail.cn",
		Provider: domain.ProviderNiMail,
	}

	t.Run("数字 id 与首选字段名", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/getmails", r.URL.Path)
			w.Write([]byte(`{"to":"abc@nimail.cn","mail":[{"id":1,"from":"a@b.com","subject":"code: 4821","content":"hello"}],"success":"true"}`))
		}))
		defer srv.Close()

		n := NewNiMail(srv.Client(), srv.URL)
		messages, err := n.ListMessages(context.Background(), rec)
		assert.NoError(t, err)
		assert.Len(t, messages, 1)
		assert.Equal(t, "1", messages[0].ID)
		assert.Equal(t, "a@b.com", messages[0].From)
		assert.Equal(t, "code: 4821", messages[0].Subject)

		body, err := n.GetMessageBody(context.Background(), rec, "1")
		assert.NoError(t, err)
		assert.Equal(t, "hello", body.Body)
		assert.Equal(t, "4821", extractor.Extract(body.Subject))
	})

	t.Run("备选字段名按优先级取值", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"mail":[{"mid":"m-7","sender":"s@x.com","title":"hi","time":1700000000,"mailContent":"<b>验证码：7410</b>"}]}`))
		}))
		defer srv.Close()

		n := NewNiMail(srv.Client(), srv.URL)
		messages, err := n.ListMessages(context.Background(), rec)
		assert.NoError(t, err)
		assert.Len(t, messages, 1)
		assert.Equal(t, "m-7", messages[0].ID)
		assert.Equal(t, "s@x.com", messages[0].From)
		assert.Equal(t, "hi", messages[0].Subject)
		assert.Equal(t, "1700000000", messages[0].Date)

		body, err := n.GetMessageBody(context.Background(), rec, "m-7")
		assert.NoError(t, err)
		assert.Equal(t, "<b>验证码：7410</b>", body.Body)
		assert.NotContains(t, body.TextBody, "<")
		assert.Equal(t, "7410", extractor.Extract(body.Body))
	})

	t.Run("mail 为 null 视为空收件箱", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"to":"abc@nimail.cn","mail":null,"success":"true"}`))
		}))
		defer srv.Close()

		n := NewNiMail(srv.Client(), srv.URL)
		messages, err := n.ListMessages(context.Background(), rec)
		assert.NoError(t, err)
		assert.Empty(t, messages)
		assert.NotNil(t, messages)
	})

	t.Run("正文不存在时报错", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"mail":[]}`))
		}))
		defer srv.Close()

		n := NewNiMail(srv.Client(), srv.URL)
		_, err := n.GetMessageBody(context.Background(), rec, "42")
		assert.Error(t, err)
	})
}
