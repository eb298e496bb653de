package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance 用户余额表
// 每个用户注册时创建一条余额记录，是整个转账系统的核心数据
//
// 【重要】余额表设计原则：
// 1. 余额只能由 BalanceRepository 在事务内修改，禁止任何旁路更新
// 2. 每次余额变动必须在同一事务内写入一条流水（Transaction）
// 3. 余额记录永不删除
type Balance struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64           `gorm:"uniqueIndex;not null" json:"user_id"`                        // 用户ID，业务方传入
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`        // 可用余额（古德）
	Currency  string          `gorm:"type:varchar(8);not null;default:HTG" json:"currency"`       // 币种，单一币种 HTG
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Balance) TableName() string {
	return "balance"
}
