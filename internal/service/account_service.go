package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"coinmarket/internal/config"
	"coinmarket/internal/model"
	"coinmarket/internal/repository"
	"coinmarket/pkg/idgen"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// LedgerRef 余额变动的业务来源，写入流水
type LedgerRef struct {
	Type    string
	OrderNo string
	Remark  string
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	Balance       int64  `json:"balance"`
	EquippedBadge string `json:"equipped_badge,omitempty"`
}

// AccountService 余额服务，是 account.balance 唯一的写入方
type AccountService struct {
	db              *gorm.DB
	cfg             config.BusinessConfig
	locker          Locker
	views           ViewCache
	log             *zap.Logger
	now             func() time.Time
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewAccountService(d Deps) *AccountService {
	d = d.withDefaults()
	return &AccountService{
		db:              d.DB,
		cfg:             d.Business,
		locker:          d.Locker,
		views:           d.Views,
		log:             d.Logger,
		now:             d.Now,
		accountRepo:     repository.NewAccountRepository(d.DB),
		transactionRepo: repository.NewTransactionRepository(d.DB),
	}
}

// Provision 读取账户，首次访问时按初始余额创建
func (s *AccountService) Provision(ctx context.Context, userID string) (*model.Account, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	account, err := s.accountRepo.GetOrCreate(ctx, nil, userID, s.cfg.StartingBalance)
	if err != nil {
		return nil, storeError("加载账户", err)
	}
	return account, nil
}

func (s *AccountService) GetBalance(ctx context.Context, userID string) (int64, error) {
	account, err := s.Provision(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// lookup 只读查询，不创建账户
func (s *AccountService) lookup(ctx context.Context, userID string) (*model.Account, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	account, err := s.accountRepo.GetByUserID(ctx, nil, userID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, storeError("查询账户", err)
	}
	return account, nil
}

// Debit 扣款，调用方必须在事务中且已持有该账户的行锁
func (s *AccountService) Debit(ctx context.Context, tx *gorm.DB, account *model.Account, amount int64, ref LedgerRef) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	if amount > account.Balance {
		return ErrInsufficientFunds
	}

	before := account.Balance
	if err := s.accountRepo.Deduct(ctx, tx, account.ID, amount); err != nil {
		if errors.Is(err, repository.ErrBalanceNotEnough) {
			return ErrInsufficientFunds
		}
		return storeError("扣减余额", err)
	}
	account.Balance = before - amount

	if ref.Type == "" {
		ref.Type = model.TransactionTypePurchase
	}
	return s.journal(ctx, tx, account, -amount, before, ref)
}

// Credit 入账，没有上限
func (s *AccountService) Credit(ctx context.Context, tx *gorm.DB, account *model.Account, amount int64, ref LedgerRef) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}

	before := account.Balance
	if err := s.accountRepo.Increase(ctx, tx, account.ID, amount); err != nil {
		return storeError("增加余额", err)
	}
	account.Balance = before + amount

	if ref.Type == "" {
		ref.Type = model.TransactionTypeGrant
	}
	return s.journal(ctx, tx, account, amount, before, ref)
}

func (s *AccountService) journal(ctx context.Context, tx *gorm.DB, account *model.Account, amount, before int64, ref LedgerRef) error {
	trans := &model.AccountTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		AccountID:     account.ID,
		OrderNo:       ref.OrderNo,
		Amount:        amount,
		Type:          ref.Type,
		BalanceBefore: before,
		BalanceAfter:  account.Balance,
		Remark:        ref.Remark,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return storeError("记录流水", err)
	}
	return nil
}

// withLockedAccount 先取用户级分布式锁，再在同一事务中对账户行加锁后执行 fn。
// fn 返回错误时事务回滚；fn 成功但提交失败时返回 ErrTransientStore。
func (s *AccountService) withLockedAccount(ctx context.Context, userID string, fn func(tx *gorm.DB, account *model.Account) error) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnauthenticated
	}

	release, err := s.locker.Acquire(ctx, userID)
	if err != nil {
		return storeError("获取账户锁", err)
	}
	defer release()

	if err := s.accountRepo.Ensure(ctx, nil, userID, s.cfg.StartingBalance); err != nil {
		return storeError("初始化账户", err)
	}

	var fnErr error
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accountRepo.GetByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				fnErr = ErrAccountNotFound
			} else {
				fnErr = storeError("锁定账户", err)
			}
			return fnErr
		}
		fnErr = fn(tx, account)
		return fnErr
	})
	if err != nil {
		if fnErr != nil {
			return fnErr
		}
		return storeError("提交事务", err)
	}
	return nil
}

// invalidate 提交后失效用户的缓存视图，失败只记录日志
func (s *AccountService) invalidate(ctx context.Context, userID string) {
	if err := s.views.Invalidate(ctx, userID); err != nil {
		s.log.Warn("失效视图缓存失败", zap.String("user_id", userID), zap.Error(err))
	}
}

// CreditNow 自行开启事务的入账
func (s *AccountService) CreditNow(ctx context.Context, userID string, amount int64, ref LedgerRef) (int64, error) {
	var balance int64
	err := s.withLockedAccount(ctx, userID, func(tx *gorm.DB, account *model.Account) error {
		if err := s.Credit(ctx, tx, account, amount, ref); err != nil {
			return err
		}
		balance = account.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return balance, nil
}

// DebitNow 自行开启事务的扣款
func (s *AccountService) DebitNow(ctx context.Context, userID string, amount int64, ref LedgerRef) (int64, error) {
	var balance int64
	err := s.withLockedAccount(ctx, userID, func(tx *gorm.DB, account *model.Account) error {
		if err := s.Debit(ctx, tx, account, amount, ref); err != nil {
			return err
		}
		balance = account.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return balance, nil
}

// Leaderboard 余额排行
func (s *AccountService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}

	accounts, err := s.accountRepo.TopByBalance(ctx, limit)
	if err != nil {
		return nil, storeError("查询排行榜", err)
	}

	entries := make([]LeaderboardEntry, 0, len(accounts))
	for i, a := range accounts {
		entries = append(entries, LeaderboardEntry{
			Rank:          i + 1,
			UserID:        a.UserID,
			Balance:       a.Balance,
			EquippedBadge: a.EquippedBadge,
		})
	}
	return entries, nil
}
