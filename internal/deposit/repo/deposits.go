package repo

import (
	"context"
	"errors"
	"time"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/xerr"
	"gorm.io/gorm"
)

func (r *Repo) Create(ctx context.Context, d *domain.Deposit) error {
	if err := r.getDb(ctx).Create(d).Error; err != nil {
		return xerr.Wrap(err, xerr.DbError, "create deposit")
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*domain.Deposit, error) {
	var d domain.Deposit
	err := r.getDb(ctx).Where("id = ?", id).Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerr.NewErrCode(xerr.RecordNotFound)
	}
	if err != nil {
		return nil, xerr.Wrap(err, xerr.DbError, "get deposit")
	}
	return &d, nil
}

func (r *Repo) ListByStatus(ctx context.Context, kind domain.Kind, statuses []domain.Status, limit int) ([]*domain.Deposit, error) {
	var rows []*domain.Deposit
	q := r.getDb(ctx).
		Where("kind = ? AND status IN ?", kind, statuses).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, xerr.Wrap(err, xerr.DbError, "list deposits")
	}
	return rows, nil
}

func (r *Repo) ListCoSigned(ctx context.Context, limit int) ([]*domain.Deposit, error) {
	var rows []*domain.Deposit
	q := r.getDb(ctx).
		Where("kind = ? AND status = ? AND pending_signatures = ?", domain.KindDeposit, domain.StatusPendingAnchor, false).
		Where("envelope_xdr IS NOT NULL AND envelope_xdr <> ''").
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, xerr.Wrap(err, xerr.DbError, "list co-signed deposits")
	}
	return rows, nil
}

// CompareAndSwap 状态机的每一步都走这里：WHERE status IN from 保证并发 runner 之间不会重复推进
func (r *Repo) CompareAndSwap(ctx context.Context, d *domain.Deposit, from ...domain.Status) error {
	if len(from) == 0 {
		return xerr.New(xerr.ValidationError, "compare-and-swap without expected status")
	}
	d.UpdatedAt = time.Now().UTC()
	res := r.getDb(ctx).Model(&domain.Deposit{}).
		Where("id = ? AND status IN ?", d.ID, from).
		Updates(mutableColumns(d))
	if res.Error != nil {
		return xerr.Wrap(res.Error, xerr.DbError, "update deposit")
	}
	if res.RowsAffected == 0 {
		return xerr.Newf(xerr.StatusConflict, "deposit %s is no longer in %v", d.ID, from)
	}
	return nil
}

// 显式列出可变列，零值（false / 空串 / NULL）也要写回
func mutableColumns(d *domain.Deposit) map[string]any {
	return map[string]any{
		"status":                 d.Status,
		"status_message":         d.StatusMessage,
		"status_eta":             d.StatusEta,
		"amount_in":              d.AmountIn,
		"amount_fee":             d.AmountFee,
		"amount_out":             d.AmountOut,
		"envelope_xdr":           d.EnvelopeXDR,
		"paging_token":           d.PagingToken,
		"stellar_transaction_id": d.StellarTransactionID,
		"claimable_balance_id":   d.ClaimableBalanceID,
		"pending_signatures":     d.PendingSignatures,
		"channel_account":        d.ChannelAccount,
		"channel_seed":           d.ChannelSeed,
		"completed_at":           d.CompletedAt,
		"updated_at":             d.UpdatedAt,
	}
}
