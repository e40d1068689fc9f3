// Package ledgertest 提供一个内存账本，测试里代替 Horizon。
package ledgertest

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"anchorex.com/internal/deposit/domain"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

var ErrBadSeq = errors.New("tx_bad_seq")

// Ledger 按 envelope 里的操作推进内存状态：CreateAccount 会真的建账户，序列号严格校验
type Ledger struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	fee      int64
	seq      int

	Submitted []string
	GetCalls  map[string]int

	// 注入故障
	GetErrors    map[string]error
	SubmitErr    error
	Unsuccessful bool
}

var _ domain.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{
		accounts:  map[string]*domain.Account{},
		fee:       100,
		GetCalls:  map[string]int{},
		GetErrors: map[string]error{},
	}
}

func (l *Ledger) SetBaseFee(fee int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fee = fee
}

func (l *Ledger) Put(acc *domain.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[acc.ID] = clone(acc)
}

// Trust 给账户加一条 trustline
func (l *Ledger) Trust(address, code, issuer string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accounts[address]
	acc.Balances = append(acc.Balances, domain.Balance{
		AssetType:   "credit_alphanum4",
		AssetCode:   code,
		AssetIssuer: issuer,
		Balance:     "0",
	})
}

func (l *Ledger) Account(address string) (*domain.Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[address]
	if !ok {
		return nil, false
	}
	return clone(acc), true
}

func (l *Ledger) GetAccount(_ context.Context, address string) (*domain.Account, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.GetCalls[address]++
	if err := l.GetErrors[address]; err != nil {
		return nil, false, err
	}
	acc, ok := l.accounts[address]
	if !ok {
		return nil, false, nil
	}
	return clone(acc), true, nil
}

func (l *Ledger) BaseFee(context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fee, nil
}

func (l *Ledger) Submit(_ context.Context, envelope string) (*domain.SubmitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Submitted = append(l.Submitted, envelope)
	if l.SubmitErr != nil {
		return nil, l.SubmitErr
	}

	gtx, err := txnbuild.TransactionFromXDR(envelope)
	if err != nil {
		return nil, err
	}
	tx, ok := gtx.Transaction()
	if !ok {
		return nil, errors.New("fee bump not supported")
	}
	l.seq++
	id := fmt.Sprintf("tx-%d", l.seq)

	if l.Unsuccessful {
		return &domain.SubmitResult{Successful: false, EnvelopeXDR: envelope, ID: id, PagingToken: fmt.Sprint(l.seq)}, nil
	}

	src := tx.SourceAccount()
	acc, ok := l.accounts[src.AccountID]
	if !ok {
		return nil, fmt.Errorf("tx_no_source_account: %s", src.AccountID)
	}
	if src.Sequence != acc.Sequence+1 {
		return nil, fmt.Errorf("%w: have %d want %d", ErrBadSeq, src.Sequence, acc.Sequence+1)
	}
	acc.Sequence = src.Sequence

	results := make([]xdr.OperationResult, 0, len(tx.Operations()))
	for i, op := range tx.Operations() {
		switch o := op.(type) {
		case *txnbuild.CreateAccount:
			l.accounts[o.Destination] = &domain.Account{
				ID:       o.Destination,
				Sequence: int64(l.seq) << 32,
				Balances: []domain.Balance{{AssetType: domain.AssetTypeNative, Balance: o.Amount}},
				Signers:  []domain.Signer{{Key: o.Destination, Weight: 1}},
			}
			results = append(results, xdr.OperationResult{
				Code: xdr.OperationResultCodeOpInner,
				Tr: &xdr.OperationResultTr{
					Type:                xdr.OperationTypeCreateAccount,
					CreateAccountResult: &xdr.CreateAccountResult{Code: xdr.CreateAccountResultCodeCreateAccountSuccess},
				},
			})
		case *txnbuild.CreateClaimableBalance:
			hash := xdr.Hash(sha256.Sum256([]byte(fmt.Sprintf("%s/%d", id, i))))
			results = append(results, xdr.OperationResult{
				Code: xdr.OperationResultCodeOpInner,
				Tr: &xdr.OperationResultTr{
					Type: xdr.OperationTypeCreateClaimableBalance,
					CreateClaimableBalanceResult: &xdr.CreateClaimableBalanceResult{
						Code: xdr.CreateClaimableBalanceResultCodeCreateClaimableBalanceSuccess,
						BalanceId: &xdr.ClaimableBalanceId{
							Type: xdr.ClaimableBalanceIdTypeClaimableBalanceIdTypeV0,
							V0:   &hash,
						},
					},
				},
			})
		default:
			results = append(results, xdr.OperationResult{
				Code: xdr.OperationResultCodeOpInner,
				Tr: &xdr.OperationResultTr{
					Type:          xdr.OperationTypePayment,
					PaymentResult: &xdr.PaymentResult{Code: xdr.PaymentResultCodePaymentSuccess},
				},
			})
		}
	}

	resultXDR, err := xdr.MarshalBase64(xdr.TransactionResult{
		FeeCharged: xdr.Int64(tx.BaseFee()),
		Result: xdr.TransactionResultResult{
			Code:    xdr.TransactionResultCodeTxSuccess,
			Results: &results,
		},
	})
	if err != nil {
		return nil, err
	}
	return &domain.SubmitResult{
		Successful:  true,
		ResultXDR:   resultXDR,
		EnvelopeXDR: envelope,
		ID:          id,
		PagingToken: fmt.Sprint(l.seq),
	}, nil
}

func clone(a *domain.Account) *domain.Account {
	c := *a
	c.Balances = append([]domain.Balance(nil), a.Balances...)
	c.Signers = append([]domain.Signer(nil), a.Signers...)
	return &c
}
