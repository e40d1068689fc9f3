package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"anchorex.com/pkg/common"
	"anchorex.com/pkg/ratelimit"
	"anchorex.com/pkg/xerr"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReqId_KeepsCleanHeaderReplacesDirtyOne(t *testing.T) {
	r := gin.New()
	r.Use(ReqId())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, common.RequestIDFromGin(c)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(common.HeaderRequestID, "ops-42")
	w := serve(r, req)
	assert.Equal(t, "ops-42", w.Header().Get(common.HeaderRequestID))
	assert.Equal(t, "ops-42", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(common.HeaderRequestID, "a\nb")
	w = serve(r, req)
	assert.NotEqual(t, "a\nb", w.Header().Get(common.HeaderRequestID))
	assert.Len(t, w.Header().Get(common.HeaderRequestID), 36)

	assert.Len(t, common.AcceptRequestID(strings.Repeat("x", 65)), 36)
}

func TestRecover_Returns500(t *testing.T) {
	r := gin.New()
	r.Use(ReqId(), Recover())
	r.GET("/boom", func(c *gin.Context) { panic("nil map") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "nil map")
}

func TestRateLimit_SharedBucketPerRoute(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(ratelimit.NewStore(0.001, 1, time.Minute)))
	r.GET("/api/deposits/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/api/deposits/a", nil)).Code)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/deposits/b", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, xerr.ResourceBusy, resp.Code)
}

func TestBearerJWT(t *testing.T) {
	secret := []byte("s3cret")
	r := gin.New()
	r.GET("/p", BearerJWT(secret), func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxKeySubject)) })

	sign := func(key []byte, m jwt.SigningMethod, exp time.Time) string {
		tok, err := jwt.NewWithClaims(m, jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(exp),
		}).SignedString(key)
		require.NoError(t, err)
		return tok
	}

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"ok", "Bearer " + sign(secret, jwt.SigningMethodHS256, time.Now().Add(time.Hour)), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong key", "Bearer " + sign([]byte("other"), jwt.SigningMethodHS256, time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(secret, jwt.SigningMethodHS256, time.Now().Add(-time.Minute)), http.StatusUnauthorized},
		{"other alg", "Bearer " + sign(secret, jwt.SigningMethodHS512, time.Now().Add(time.Hour)), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := serve(r, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "ops", w.Body.String())
			}
		})
	}
}
