package httptransport

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/provider"
	"mailbridge/backend/internal/service"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	emails *service.EmailService
	logger *zap.Logger
}

// NewHandler 创建处理器。
func NewHandler(emails *service.EmailService, logger *zap.Logger) *Handler {
	return &Handler{emails: emails, logger: logger}
}

// GenerateEmail 申请新邮箱。
//
// POST /api/generate-email，请求体可选 {"service":"nimail"}。
func (h *Handler) GenerateEmail(c *gin.Context) {
	var req struct {
		Service string `json:"service"`
	}
	// 请求体允许为空
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		Fail(c, http.StatusBadRequest, "请求格式错误")
		return
	}

	result, err := h.emails.GenerateEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Service)))
	if err != nil {
		writeError(c, err)
		return
	}

	payload := gin.H{
		"email":   result.Address,
		"service": string(result.Provider),
	}
	if result.WebViewURL != "" {
		payload["webUrl"] = result.WebViewURL
	}
	if result.Info != "" {
		payload["info"] = result.Info
	}
	Success(c, payload)
}

// GetMessages 拉取邮件列表。
//
// GET /api/get-messages/:email
func (h *Handler) GetMessages(c *gin.Context) {
	address := c.Param("email")

	messages, err := h.emails.GetMessages(c.Request.Context(), address)
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// GetMessage 拉取单封邮件正文并附带验证码提取结果。
//
// GET /api/get-message/:email/:messageId
func (h *Handler) GetMessage(c *gin.Context) {
	address := c.Param("email")
	messageID := c.Param("messageId")

	body, err := h.emails.GetMessageBody(c.Request.Context(), address, messageID)
	if err != nil {
		var nse *provider.NotSupportedError
		if errors.As(err, &nse) {
			// 无正文 API 的服务商：引导调用方去网页查看
			FailWith(c, http.StatusOK, "该服务需要通过网页查看邮件详情", gin.H{
				"webUrl": nse.WebViewURL,
			})
			return
		}
		writeError(c, err)
		return
	}

	var verificationCode any
	if code := h.emails.ExtractCode(body); code != "" {
		verificationCode = code
	}
	Success(c, gin.H{
		"message":          body,
		"verificationCode": verificationCode,
	})
}

// WaitForCode 服务端轮询直到收到验证码或超时。
//
// GET /api/wait-for-code/:email。超时返回 200 且 success=false，
// 由调用方决定是否换邮箱重来。
func (h *Handler) WaitForCode(c *gin.Context) {
	address := c.Param("email")

	code, body, err := h.emails.WaitForCode(c.Request.Context(), address)
	if err != nil {
		if errors.Is(err, service.ErrWaitTimeout) {
			Fail(c, http.StatusOK, "超时未收到验证码")
			return
		}
		writeError(c, err)
		return
	}
	Success(c, gin.H{
		"code":    code,
		"message": body,
	})
}

// Services 返回服务商列表及可用性。
//
// GET /api/services
func (h *Handler) Services(c *gin.Context) {
	Success(c, gin.H{
		"services": h.emails.Services(),
	})
}

// emailListItem /api/emails 的列表项。
type emailListItem struct {
	Email        string `json:"email"`
	Service      string `json:"service"`
	CreatedAt    string `json:"createdAt"`
	MessageCount int    `json:"messageCount"`
	WebURL       string `json:"webUrl,omitempty"`
}

// ListEmails 管理接口：分页列出全部邮箱。
//
// GET /api/emails?page=1&pageSize=20&search=xxx，按创建时间
// 倒序；邮件数量对当前页逐个拉取，失败按 0 处理不阻塞列表。
func (h *Handler) ListEmails(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))

	records, err := h.emails.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	if search != "" {
		filtered := records[:0]
		for _, rec := range records {
			if strings.Contains(strings.ToLower(rec.Address), search) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	total := len(records)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	pageRecords := records[start:end]

	items := make([]emailListItem, 0, len(pageRecords))
	for _, rec := range pageRecords {
		items = append(items, emailListItem{
			Email:        rec.Address,
			Service:      string(rec.Provider),
			CreatedAt:    rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			MessageCount: h.messageCount(c, rec),
			WebURL:       rec.WebViewURL,
		})
	}

	Success(c, gin.H{
		"emails": items,
		"pagination": gin.H{
			"page":       page,
			"pageSize":   pageSize,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

// messageCount 当前页的邮件数统计，尽力而为。
func (h *Handler) messageCount(c *gin.Context, rec *domain.MailboxRecord) int {
	messages, err := h.emails.GetMessages(c.Request.Context(), rec.Address)
	if err != nil {
		return 0
	}
	return len(messages)
}

// DeleteEmail 删除单个邮箱。
//
// DELETE /api/delete-email/:email，不存在返回 404。
func (h *Handler) DeleteEmail(c *gin.Context) {
	address := c.Param("email")

	existed, err := h.emails.Delete(c.Request.Context(), address)
	if err != nil {
		writeError(c, err)
		return
	}
	if !existed {
		Fail(c, http.StatusNotFound, "邮箱不存在")
		return
	}
	Success(c, gin.H{"message": "邮箱已删除"})
}

// DeleteEmails 批量删除邮箱。
//
// POST /api/delete-emails，请求体 {"emails":["a@x.com",...]}。
func (h *Handler) DeleteEmails(c *gin.Context) {
	var req struct {
		Emails []string `json:"emails"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Emails) == 0 {
		Fail(c, http.StatusBadRequest, "请求格式错误：缺少 emails 列表")
		return
	}

	deleted := 0
	for _, address := range req.Emails {
		existed, err := h.emails.Delete(c.Request.Context(), address)
		if err != nil {
			h.logger.Warn("批量删除失败", zap.String("address", address), zap.Error(err))
			continue
		}
		if existed {
			deleted++
		}
	}
	Success(c, gin.H{
		"message":      "批量删除完成",
		"deletedCount": deleted,
	})
}

// ClearAll 清空全部邮箱。
//
// DELETE /api/clear-all
func (h *Handler) ClearAll(c *gin.Context) {
	count, err := h.emails.ClearAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{
		"message": "已清空全部邮箱",
		"count":   count,
	})
}
