package common

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-Id"
	CtxKeyRequestID = "request_id"

	maxRequestIDLen = 64
)

func NewRequestID() string { return uuid.NewString() }

// AcceptRequestID 上游带来的 id 过长或含不可见字符时换成新的，防止日志被注入
func AcceptRequestID(raw string) string {
	if raw == "" || len(raw) > maxRequestIDLen {
		return NewRequestID()
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < 0x21 || raw[i] > 0x7e {
			return NewRequestID()
		}
	}
	return raw
}

func RequestIDFromGin(c *gin.Context) string {
	return c.GetString(CtxKeyRequestID)
}
