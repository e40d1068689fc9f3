package repo

import (
	"context"

	"anchorex.com/internal/deposit/domain"
	"gorm.io/gorm"
)

type txKey struct{}

type Repo struct {
	db *gorm.DB
}

var _ domain.DepositRepo = (*Repo)(nil)

func New(db *gorm.DB) *Repo { return &Repo{db: db} }

// Migrate 只建 deposits 表，开发 / 测试环境用
func (r *Repo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&domain.Deposit{})
}

func (r *Repo) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (r *Repo) getDb(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}
