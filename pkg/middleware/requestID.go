package middleware

import (
	"context"

	"anchorex.com/pkg/common"
	"anchorex.com/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ReqId 回写 X-Request-Id；没有 otel span 时日志靠它串起来
func ReqId() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := common.AcceptRequestID(c.GetHeader(common.HeaderRequestID))
		c.Set(common.CtxKeyRequestID, rid)
		c.Header(common.HeaderRequestID, rid)

		ctx := context.WithValue(c.Request.Context(), logger.TraceIdKey, rid)
		if id := c.Param("id"); id != "" {
			ctx = logger.WithDeposit(ctx, id)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
