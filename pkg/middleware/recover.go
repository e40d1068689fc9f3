package middleware

import (
	"fmt"

	"anchorex.com/pkg/common"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/xerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recover handler 里的 panic 转成 500，响应体不带堆栈
func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error(c.Request.Context(), "🚨 http panic",
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			common.FailErr(c, xerr.Wrap(fmt.Errorf("panic: %v", r), xerr.ServerCommonError, "handler panic"))
			c.Abort()
		}()
		c.Next()
	}
}
