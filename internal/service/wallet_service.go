package service

import (
	"context"
	"fmt"
	"log"

	"kobpay/internal/config"
	"kobpay/internal/model"
	"kobpay/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletService 钱包查询与充提服务
// 充值和提现只涉及单个账户，但余额变动和流水落库仍在同一事务内
type WalletService struct {
	db          TxManager
	balanceRepo BalanceStore
	ledgerRepo  LedgerStore
	cfg         *config.Config
}

func NewWalletService(db TxManager, balanceRepo BalanceStore, ledgerRepo LedgerStore, cfg *config.Config) *WalletService {
	return &WalletService{
		db:          db,
		balanceRepo: balanceRepo,
		ledgerRepo:  ledgerRepo,
		cfg:         cfg,
	}
}

// GetBalance 查询余额，余额行不存在返回 ErrBalanceNotFound
// 注册流程保证每个用户有且仅有一行余额，查不到说明上游出了问题，
// 这里不做兜底创建，直接把异常暴露出去
func (s *WalletService) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	return s.balanceRepo.GetByUserID(ctx, userID)
}

// ListTransactions 查询用户相关流水，按时间倒序
func (s *WalletService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	return s.ledgerRepo.ListByUserID(ctx, userID, page, pageSize)
}

// validateAmount 充提公共校验：金额为正、币种匹配（空串取默认币种）
func (s *WalletService) validateAmount(amount decimal.Decimal, currency string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if currency != "" && currency != s.cfg.Business.Currency {
		return ErrCurrencyNotSupported
	}
	return nil
}

// Deposit 充值入账
// 入账是原子自增不会丢更新，无需行锁，但流水必须同事务落库
func (s *WalletService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal, source, currency string) (*model.Transaction, error) {
	if err := s.validateAmount(amount, currency); err != nil {
		return nil, err
	}
	if source == "" {
		source = model.TransactionSourceApp
	}

	txn := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        userID,
		Type:          model.TransactionTypeDeposit,
		Amount:        amount,
		Currency:      s.cfg.Business.Currency,
		Source:        source,
		Status:        model.TransactionStatusCompleted,
		Description:   "充值",
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.balanceRepo.Adjust(ctx, tx, userID, amount); err != nil {
			return err
		}
		if err := s.ledgerRepo.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("记录充值流水失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("充值成功: transactionNo=%s, userID=%d, amount=%s", txn.TransactionNo, userID, amount.String())
	return txn, nil
}

// Withdraw 提现出账
//
// 【关键点】充足性校验必须在行锁内、扣款前做，锁外读到的余额不作数
func (s *WalletService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, source, currency string) (*model.Transaction, error) {
	if err := s.validateAmount(amount, currency); err != nil {
		return nil, err
	}
	if source == "" {
		source = model.TransactionSourceApp
	}

	txn := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        userID,
		Type:          model.TransactionTypeWithdraw,
		Amount:        amount,
		Currency:      s.cfg.Business.Currency,
		Source:        source,
		Status:        model.TransactionStatusCompleted,
		Description:   "提现",
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		balance, err := s.balanceRepo.GetByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if balance.Amount.LessThan(amount) {
			return ErrInsufficientFunds
		}

		if err := s.balanceRepo.Adjust(ctx, tx, userID, amount.Neg()); err != nil {
			return err
		}
		if err := s.ledgerRepo.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("记录提现流水失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("提现成功: transactionNo=%s, userID=%d, amount=%s", txn.TransactionNo, userID, amount.String())
	return txn, nil
}
