package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 对外 API 的统一响应格式：success 布尔字段是权威判定位，
// 除鉴权（401）、限流（429）和资源不存在（404）外，HTTP 状态码
// 只作参考，调用方一律检查 success。

// Success 写出成功响应，payload 不含 success 时自动补上。
func Success(c *gin.Context, payload gin.H) {
	if payload == nil {
		payload = gin.H{}
	}
	payload["success"] = true
	c.JSON(http.StatusOK, payload)
}

// Fail 写出失败响应。
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// FailWith 写出附带额外字段的失败响应（如网页回退地址）。
func FailWith(c *gin.Context, status int, message string, extra gin.H) {
	payload := gin.H{
		"success": false,
		"error":   message,
	}
	for k, v := range extra {
		payload[k] = v
	}
	c.JSON(status, payload)
}
