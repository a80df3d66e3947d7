package repository

import (
	"context"

	"coinmarket/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.AccountTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID int64, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	var transactions []*model.AccountTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.AccountTransaction{}).Where("account_id = ?", accountID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// SumByAccount 流水金额合计，用于与账户余额对账
func (r *TransactionRepository) SumByAccount(ctx context.Context, accountID int64) (int64, error) {
	var sum struct{ Total int64 }
	err := r.db.WithContext(ctx).
		Model(&model.AccountTransaction{}).
		Select("coalesce(sum(amount), 0) AS total").
		Where("account_id = ?", accountID).
		Scan(&sum).Error
	return sum.Total, err
}
