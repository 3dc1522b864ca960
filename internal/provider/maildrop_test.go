package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"mailbridge/backend/internal/domain"
)

func TestMaildrop(t *testing.T) {
	t.Run("生成邮箱无需远程调用并携带网页地址", func(t *testing.T) {
		d := NewMaildrop(http.DefaultClient, "")
		result, err := d.GenerateEmail(context.Background())
		assert.NoError(t, err)
		assert.Contains(t, result.Address, "@maildrop.cc")
		assert.Equal(t, "https://maildrop.cc/inbox/"+result.Credentials.Username, result.WebViewURL)
	})

	t.Run("列表走 inbox API", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/inbox/abc", r.URL.Path)
			w.Write([]byte(`[{"id":"md-1","from":"a@b.com","subject":"hi","date":"Jan 1 2024","excerpt":"..."}]`))
		}))
		defer srv.Close()

		d := NewMaildrop(srv.Client(), srv.URL)
		rec := &domain.MailboxRecord{
			Address:     "abc@maildrop.cc",
			Credentials: domain.Credentials{Username: "abc"},
		}
		messages, err := d.ListMessages(context.Background(), rec)
		assert.NoError(t, err)
		assert.Len(t, messages, 1)
		assert.Equal(t, "md-1", messages[0].ID)
	})

	t.Run("正文不支持返回网页回退", func(t *testing.T) {
		d := NewMaildrop(http.DefaultClient, "")
		rec := &domain.MailboxRecord{
			Address:     "abc@maildrop.cc",
			Credentials: domain.Credentials{Username: "abc"},
			WebViewURL:  "https://maildrop.cc/inbox/abc",
		}
		_, err := d.GetMessageBody(context.Background(), rec, "md-1")
		var nse *NotSupportedError
		assert.ErrorAs(t, err, &nse)
		assert.Equal(t, "https://maildrop.cc/inbox/abc", nse.WebViewURL)
	})
}
