package repository

import (
	"context"
	"errors"
	"time"

	"kobpay/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("交易不存在")
	ErrStatusInvalid       = errors.New("交易状态转换不合法")
	ErrStatusConflict      = errors.New("交易状态已被并发修改")
)

// TransactionRepository 交易流水仓储
// 只追加 + 条件状态推进，金额字段落库后没有任何修改入口
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// AdvanceStatus 条件式状态推进
//
// 【关键点】WHERE 条件带上期望的当前状态，两个并发的 accept/cancel
// 只会有一个改成功，另一个拿到 ErrStatusConflict —— 这是终态不变量
// （COMPLETED/CANCELLED 之后不再变化）的最后一道防线
func (r *TransactionRepository) AdvanceStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if !model.TransactionCanTransitionTo(fromStatus, toStatus) {
		return ErrStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}

	return nil
}

// SumAmountSince 统计某用户某类型已完成交易在 since 之后的金额合计
// 周限额校验用，必须传入当前事务的 tx，保证和扣款读到同一快照
func (r *TransactionRepository) SumAmountSince(ctx context.Context, tx *gorm.DB, userID int64, txType string, since time.Time) (decimal.Decimal, error) {
	if tx == nil {
		tx = r.db
	}

	var total decimal.Decimal
	err := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND status = ? AND created_at >= ?",
			userID, txType, model.TransactionStatusCompleted, since).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("user_id = ? OR recipient_id = ?", userID, userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}
