package service

import (
	"context"
	"fmt"
	"time"

	"coinmarket/internal/config"
	"coinmarket/internal/model"
	"coinmarket/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IncomeStatus 每日收入的领取状态
type IncomeStatus struct {
	Ready       bool          `json:"ready"`
	Amount      int64         `json:"amount"`
	Remaining   time.Duration `json:"remaining"`
	NextClaimAt *time.Time    `json:"next_claim_at,omitempty"`
}

// ClaimResult 冷却中不是错误，Granted=false 并给出剩余时间
type ClaimResult struct {
	Granted     bool          `json:"granted"`
	Amount      int64         `json:"amount"`
	Balance     int64         `json:"balance"`
	Remaining   time.Duration `json:"remaining"`
	NextClaimAt *time.Time    `json:"next_claim_at,omitempty"`
}

type IncomeService struct {
	cfg         config.BusinessConfig
	log         *zap.Logger
	now         func() time.Time
	accounts    *AccountService
	accountRepo *repository.AccountRepository
	outboxRepo  *repository.OutboxRepository
}

func NewIncomeService(d Deps, accounts *AccountService) *IncomeService {
	d = d.withDefaults()
	return &IncomeService{
		cfg:         d.Business,
		log:         d.Logger,
		now:         d.Now,
		accounts:    accounts,
		accountRepo: repository.NewAccountRepository(d.DB),
		outboxRepo:  repository.NewOutboxRepository(d.DB),
	}
}

// evaluateIncome 只依赖上次领取时间、当前时间和冷却时长
func evaluateIncome(last *time.Time, now time.Time, cooldown time.Duration, amount int64) IncomeStatus {
	status := IncomeStatus{Amount: amount}
	if last == nil {
		status.Ready = true
		return status
	}

	elapsed := now.Sub(*last)
	if elapsed >= cooldown {
		status.Ready = true
		return status
	}

	remaining := cooldown - elapsed
	// 上次领取时间晚于当前时间（时钟回拨）时最多等待一个完整冷却期
	if remaining > cooldown {
		remaining = cooldown
	}
	next := now.Add(remaining)
	status.Remaining = remaining
	status.NextClaimAt = &next
	return status
}

func (s *IncomeService) Status(ctx context.Context, userID string) (*IncomeStatus, error) {
	account, err := s.accounts.Provision(ctx, userID)
	if err != nil {
		return nil, err
	}
	status := evaluateIncome(account.LastGrantAt, s.now(), s.cfg.GrantCooldown, s.cfg.GrantAmount)
	return &status, nil
}

// Claim 在账户行锁内重新判断冷却，并发领取只会有一次成功
func (s *IncomeService) Claim(ctx context.Context, userID string) (*ClaimResult, error) {
	var result ClaimResult
	err := s.accounts.withLockedAccount(ctx, userID, func(tx *gorm.DB, account *model.Account) error {
		now := s.now()
		status := evaluateIncome(account.LastGrantAt, now, s.cfg.GrantCooldown, s.cfg.GrantAmount)
		if !status.Ready {
			result = ClaimResult{
				Granted:     false,
				Balance:     account.Balance,
				Remaining:   status.Remaining,
				NextClaimAt: status.NextClaimAt,
			}
			return nil
		}

		ref := LedgerRef{Type: model.TransactionTypeGrant, Remark: "每日收入"}
		if err := s.accounts.Credit(ctx, tx, account, s.cfg.GrantAmount, ref); err != nil {
			return err
		}
		if err := s.accountRepo.MarkGranted(ctx, tx, account.ID, now); err != nil {
			return storeError("记录领取时间", err)
		}

		event := IncomeGrantedEvent{
			UserID:    userID,
			Amount:    s.cfg.GrantAmount,
			Balance:   account.Balance,
			GrantedAt: now,
		}
		if err := s.outboxRepo.Append(ctx, tx, model.EventIncomeGranted, userID, event); err != nil {
			return storeError("写入消息", err)
		}

		next := now.Add(s.cfg.GrantCooldown)
		result = ClaimResult{
			Granted:     true,
			Amount:      s.cfg.GrantAmount,
			Balance:     account.Balance,
			NextClaimAt: &next,
		}
		return nil
	})
	if err != nil {
		s.log.Error("领取每日收入失败", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("领取每日收入: %w", err)
	}

	if !result.Granted {
		s.log.Debug("每日收入冷却中", zap.String("user_id", userID), zap.Duration("remaining", result.Remaining))
		return &result, nil
	}

	s.accounts.invalidate(ctx, userID)
	s.log.Info("每日收入已发放",
		zap.String("user_id", userID),
		zap.Int64("amount", result.Amount),
		zap.Int64("balance", result.Balance),
	)
	return &result, nil
}
