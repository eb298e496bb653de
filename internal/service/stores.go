package service

import (
	"context"
	"database/sql"
	"time"

	"kobpay/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// 服务层依赖接口
// 仓储按接口注入，单测用内存假实现替换，不依赖数据库
// ============================================================

// TxManager 事务管理器，*gorm.DB 直接满足该接口
type TxManager interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// BalanceStore 余额存取原语
type BalanceStore interface {
	GetByUserID(ctx context.Context, userID int64) (*model.Balance, error)
	GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.Balance, error)
	Adjust(ctx context.Context, tx *gorm.DB, userID int64, delta decimal.Decimal) error
}

// LedgerStore 流水存取原语
type LedgerStore interface {
	Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
	AdvanceStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error
	SumAmountSince(ctx context.Context, tx *gorm.DB, userID int64, txType string, since time.Time) (decimal.Decimal, error)
	ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Transaction, int64, error)
}

// MemberStore 封闭网络成员目录（只读）
type MemberStore interface {
	GetByUsername(ctx context.Context, username string) (*model.Member, error)
	GetByUserID(ctx context.Context, userID int64) (*model.Member, error)
}

// OutboxStore 通知事件发件箱
type OutboxStore interface {
	Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error
}

// Locker 分布式锁，infrastructure/lock.DistributedLock 满足该接口
type Locker interface {
	Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error
	Unlock(ctx context.Context) error
}

// LockFactory 按 key/value 创建分布式锁
type LockFactory func(key, value string) Locker
