package repository

import (
	"context"
	"errors"
	"time"

	"coinmarket/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *AccountRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*model.Account, error) {
	var account model.Account
	err := r.conn(tx).WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByUserIDForUpdate 加行锁读取账户，必须在事务中调用
func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID string) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Ensure 不存在则插入账户，依赖 user_id 唯一索引，并发首次访问时只会有一条生效
func (r *AccountRepository) Ensure(ctx context.Context, tx *gorm.DB, userID string, startingBalance int64) error {
	account := &model.Account{
		UserID:  userID,
		Balance: startingBalance,
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(account).Error
}

func (r *AccountRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, userID string, startingBalance int64) (*model.Account, error) {
	account, err := r.GetByUserID(ctx, tx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}
	if err := r.Ensure(ctx, tx, userID, startingBalance); err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, tx, userID)
}

// Deduct 扣减余额，条件更新保证余额不会变为负数
func (r *AccountRepository) Deduct(ctx context.Context, tx *gorm.DB, accountID int64, amount int64) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND balance >= ?", accountID, amount).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBalanceNotEnough
	}
	return nil
}

func (r *AccountRepository) Increase(ctx context.Context, tx *gorm.DB, accountID int64, amount int64) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// MarkGranted 记录每日收入的领取时间
func (r *AccountRepository) MarkGranted(ctx context.Context, tx *gorm.DB, accountID int64, at time.Time) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", accountID).
		Update("last_grant_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// TopByBalance 余额排行榜
func (r *AccountRepository) TopByBalance(ctx context.Context, limit int) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Order("balance DESC").
		Order("id ASC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}
