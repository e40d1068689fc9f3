package server

import (
	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/common"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/middleware"
	"anchorex.com/pkg/xerr"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stellar/go/txnbuild"
	"go.uber.org/zap"
)

var validate = validator.New()

type Deposit struct {
	repo domain.DepositRepo
}

type putEnvelopeReq struct {
	EnvelopeXDR string `json:"envelope_xdr" validate:"required,base64"`
}

func (h *Deposit) Get(c *gin.Context) {
	d, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.Success(c, d)
}

// PutEnvelope 线下补齐签名后回传信封：只接受 pending_anchor 且在等签名的记录，
// 写回后清掉 pending_signatures，下一轮驱动会提交它。
func (h *Deposit) PutEnvelope(c *gin.Context) {
	var req putEnvelopeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailErr(c, xerr.Wrap(err, xerr.RequestParamsError, "bad body"))
		return
	}
	if err := validate.Struct(req); err != nil {
		common.FailErr(c, xerr.Wrap(err, xerr.ValidationError, "bad envelope"))
		return
	}
	gtx, err := txnbuild.TransactionFromXDR(req.EnvelopeXDR)
	if err != nil {
		common.FailErr(c, xerr.Wrap(err, xerr.ValidationError, "envelope is not a transaction"))
		return
	}
	tx, ok := gtx.Transaction()
	if !ok {
		common.FailErr(c, xerr.New(xerr.ValidationError, "fee bump envelopes are not accepted"))
		return
	}

	ctx := logger.WithDeposit(c.Request.Context(), c.Param("id"))
	d, err := h.repo.Get(ctx, c.Param("id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	if d.Status != domain.StatusPendingAnchor || !d.PendingSignatures {
		common.FailErr(c, xerr.Newf(xerr.StatusConflict, "deposit %s is not awaiting signatures", d.ID))
		return
	}
	if d.ChannelAccount != "" && tx.SourceAccount().AccountID != d.ChannelAccount {
		common.FailErr(c, xerr.New(xerr.ValidationError, "envelope source is not the deposit channel account"))
		return
	}

	d.EnvelopeXDR = req.EnvelopeXDR
	d.PendingSignatures = false
	if err := h.repo.CompareAndSwap(ctx, d, domain.StatusPendingAnchor); err != nil {
		common.FailErr(c, err)
		return
	}
	logger.Info(ctx, "co-signed envelope stored",
		zap.String("subject", c.GetString(middleware.CtxKeySubject)),
		zap.Int("signatures", len(tx.Signatures())),
	)
	common.Success(c, d)
}
