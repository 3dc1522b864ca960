package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mailbridge/backend/internal/provider"
	"mailbridge/backend/internal/service"
)

// writeError 把业务错误映射为对外响应。
//
// 服务商调用失败统一 500；选择器级的不可用用 503 区分，
// 网页回退（NotSupportedError）在各 handler 单独处理以携带 webUrl。
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAddressNotFound):
		Fail(c, http.StatusNotFound, "邮箱不存在")
	case errors.Is(err, provider.ErrUnknownProvider):
		Fail(c, http.StatusBadRequest, "未知的邮箱服务")
	case errors.Is(err, provider.ErrServiceUnavailable):
		Fail(c, http.StatusServiceUnavailable, "指定的邮箱服务当前不可用")
	case errors.Is(err, provider.ErrAllProvidersUnavailable):
		Fail(c, http.StatusServiceUnavailable, "所有邮箱服务都不可用")
	default:
		var perr *provider.Error
		if errors.As(err, &perr) {
			Fail(c, http.StatusInternalServerError, providerOpMessage(perr.Op))
			return
		}
		Fail(c, http.StatusInternalServerError, "服务器内部错误")
	}
}

// providerOpMessage 服务商操作到提示语的映射。
func providerOpMessage(op string) string {
	switch op {
	case "generate":
		return "生成邮箱失败"
	case "list":
		return "获取邮件失败"
	case "body":
		return "获取邮件内容失败"
	default:
		return "邮箱服务调用失败"
	}
}
