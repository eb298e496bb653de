package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeDeposit          = "DEPOSIT"           // 充值入账
	TransactionTypeWithdraw         = "WITHDRAW"          // 提现出账
	TransactionTypeTransfer         = "TRANSFER"          // 会员间转账
	TransactionTypeFee              = "FEE"               // 转账手续费
	TransactionTypeRequest          = "REQUEST"           // 收款请求
	TransactionTypeMembershipCharge = "MEMBERSHIP_CHARGE" // 会员卡月费
)

// ============================================================================
// 交易状态常量与状态机
// ============================================================================

const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusCancelled = "CANCELLED"
)

// ValidTransactionTransitions 交易状态转换表
// COMPLETED 和 CANCELLED 是终态，不在表中，任何转出都会被拒绝
var ValidTransactionTransitions = map[string][]string{
	TransactionStatusPending: {TransactionStatusCompleted, TransactionStatusCancelled},
}

// TransactionCanTransitionTo 判断交易状态能否从 currentStatus 转换到 targetStatus
func TransactionCanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidTransactionTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// ============================================================================
// 资金来源常量
// ============================================================================

const (
	TransactionSourceApp    = "APP"    // 客户端发起
	TransactionSourceManual = "MANUAL" // 人工/后台发起
	TransactionSourceSystem = "SYSTEM" // 系统定时任务发起
)

// ============================================================================
// 交易流水实体
// ============================================================================

// Transaction 交易流水表
// 记录每一笔资金事件，是对账和审计的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，金额字段落库后永不修改 —— 保证审计可追溯
// 2. 唯一可变的字段是 status，且只能按状态转换表推进
// 3. 转账和它的手续费是两条独立流水，各自单一用途，便于对账
type Transaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	UserID        int64           `gorm:"index;not null" json:"user_id"`                               // 主体用户ID（转账为付款方，请求为发起方）
	Type          string          `gorm:"type:varchar(20);index;not null" json:"type"`                 // 交易类型
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`                   // 金额（恒为正数，方向由类型决定）
	Currency      string          `gorm:"type:varchar(8);not null;default:HTG" json:"currency"`        // 币种
	RecipientID   *int64          `gorm:"index" json:"recipient_id,omitempty"`                         // 对方用户ID（可空）
	Source        string          `gorm:"type:varchar(20);not null;default:APP" json:"source"`         // 资金来源渠道
	Status        string          `gorm:"type:varchar(20);index;not null" json:"status"`               // 交易状态
	Description   string          `gorm:"type:varchar(256)" json:"description"`                        // 备注
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}
