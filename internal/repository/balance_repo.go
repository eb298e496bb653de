package repository

import (
	"context"
	"errors"

	"kobpay/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBalanceNotFound = errors.New("余额账户不存在")
)

// BalanceRepository 余额仓储
//
// 【重要】这是系统里唯一允许修改余额的入口，而且它只提供最原始的
// 加减操作（Adjust），不做任何余额充足性判断 —— 手续费、周限额这些
// 业务规则由上层编排服务在同一事务内校验，仓储保持原语化
type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

func (r *BalanceRepository) GetByUserID(ctx context.Context, userID int64) (*model.Balance, error) {
	var balance model.Balance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// GetByUserIDForUpdate 加行锁读取余额，锁持有到包裹它的事务提交或回滚
//
// 【关键点】所有"先查后扣"的操作必须走这个方法拿锁，否则两个并发
// 请求会各自读到同一份旧余额，双双通过校验后超扣
func (r *BalanceRepository) GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.Balance, error) {
	var balance model.Balance
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// Adjust 余额增减，delta 可为负数
// 使用 amount = amount + ? 的原子更新，入账方即使不加行锁也不会丢更新
func (r *BalanceRepository) Adjust(ctx context.Context, tx *gorm.DB, userID int64, delta decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Balance{}).
		Where("user_id = ?", userID).
		Update("amount", gorm.Expr("amount + ?", delta))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrBalanceNotFound
	}

	return nil
}
