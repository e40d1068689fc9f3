package middleware

import (
	"net/http"
	"strings"

	"anchorex.com/pkg/common"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const CtxKeySubject = "auth_subject"

// BearerJWT 校验 HS256 签名的 Bearer token，subject 写入 gin ctx
func BearerJWT(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			common.Fail(c, http.StatusUnauthorized, http.StatusUnauthorized, "未登录")
			c.Abort()
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, http.StatusUnauthorized, "未登录")
			c.Abort()
			return
		}
		c.Set(CtxKeySubject, claims.Subject)
		c.Next()
	}
}
