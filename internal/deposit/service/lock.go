package service

import (
	"context"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/xerr"
)

func lockAccount(ctx context.Context, locker domain.AccountLocker, account string) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	unlock, err := locker.Lock(ctx, account)
	if err != nil {
		return nil, xerr.Wrap(err, xerr.ResourceBusy, "source account "+account+" is busy")
	}
	return unlock, nil
}
