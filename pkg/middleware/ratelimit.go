package middleware

import (
	"net/http"

	"anchorex.com/pkg/common"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/ratelimit"
	"anchorex.com/pkg/xerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit 按 客户端IP + 路由模板 限流，/api/deposits/:id 所有 id 共用一个桶
func RateLimit(store *ratelimit.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			// 未匹配的路由统一归到一个桶，避免随便扫路径撑大 store
			route = "unmatched"
		}
		if store.Allow(c.ClientIP() + " " + c.Request.Method + " " + route) {
			c.Next()
			return
		}
		logger.Warn(c.Request.Context(), "http rate limited",
			zap.String("ip", c.ClientIP()),
			zap.String("route", route),
		)
		c.Header("Retry-After", "1")
		common.Fail(c, http.StatusTooManyRequests, xerr.ResourceBusy, "请求过于频繁")
		c.Abort()
	}
}
