package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/internal/deposit/repo"
	"anchorex.com/pkg/orm"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("ops-secret")

type harness struct {
	r       *gin.Engine
	repo    *repo.Repo
	channel *keypair.Full
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := orm.New(&orm.Config{Type: "sqlite", DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())})
	require.NoError(t, err)
	rp := repo.New(db)
	require.NoError(t, rp.Migrate(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := &harness{r: NewRouter(ctx, Config{JWTSecret: string(secret)}, rp), repo: rp, channel: keypair.MustRandom()}
	require.NoError(t, rp.Create(context.Background(), &domain.Deposit{
		ID:                "d1",
		Kind:              domain.KindDeposit,
		Status:            domain.StatusPendingAnchor,
		AssetCode:         "USD",
		StellarAccount:    keypair.MustRandom().Address(),
		PendingSignatures: true,
		EnvelopeXDR:       "partial",
		ChannelAccount:    h.channel.Address(),
		ChannelSeed:       h.channel.Seed(),
	}))
	return h
}

func (h *harness) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops@anchor",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)
	return tok
}

func envelope(t *testing.T, source *keypair.Full) string {
	account := txnbuild.NewSimpleAccount(source.Address(), 10)
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{&txnbuild.Payment{
			Destination: keypair.MustRandom().Address(),
			Amount:      "1",
			Asset:       txnbuild.NativeAsset{},
		}},
		BaseFee:       txnbuild.MinBaseFee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	})
	require.NoError(t, err)
	tx, err = tx.Sign(network.TestNetworkPassphrase, source)
	require.NoError(t, err)
	b64, err := tx.Base64()
	require.NoError(t, err)
	return b64
}

func body(env string) string {
	raw, _ := json.Marshal(map[string]string{"envelope_xdr": env})
	return string(raw)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestGetDeposit(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/deposits/d1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending_anchor"`)
	assert.NotContains(t, w.Body.String(), h.channel.Seed())

	w = h.do(http.MethodGet, "/api/deposits/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutEnvelope_RequiresToken(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPut, "/api/deposits/d1/envelope", "", body(envelope(t, h.channel)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString(secret)
	require.NoError(t, err)
	w = h.do(http.MethodPut, "/api/deposits/d1/envelope", expired, body(envelope(t, h.channel)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPutEnvelope_StoresAndClearsFlag(t *testing.T) {
	h := newHarness(t)
	env := envelope(t, h.channel)

	w := h.do(http.MethodPut, "/api/deposits/d1/envelope", token(t), body(env))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	d, err := h.repo.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, env, d.EnvelopeXDR)
	assert.False(t, d.PendingSignatures)
	assert.Equal(t, domain.StatusPendingAnchor, d.Status)

	co, err := h.repo.ListCoSigned(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, co, 1)

	// 已经不在等签名了
	w = h.do(http.MethodPut, "/api/deposits/d1/envelope", token(t), body(env))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPutEnvelope_RejectsBadEnvelopes(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPut, "/api/deposits/d1/envelope", token(t), body("not base64!"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPut, "/api/deposits/d1/envelope", token(t), body("aGVsbG8="))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPut, "/api/deposits/d1/envelope", token(t), body(envelope(t, keypair.MustRandom())))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	d, err := h.repo.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, d.PendingSignatures)
	assert.Equal(t, "partial", d.EnvelopeXDR)
}
