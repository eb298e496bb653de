package model

import (
	"time"
)

// ============================================================================
// 会员卡状态常量与状态机
// ============================================================================

const (
	CardStatusInactive = "INACTIVE" // 已发卡，未激活
	CardStatusActive   = "ACTIVE"   // 已激活
	CardStatusBlocked  = "BLOCKED"  // 已冻结
)

// ValidCardTransitions 会员卡状态转换表
// 卡状态由发卡方回调驱动（本系统只消费结果），但落库前仍按转换表校验
var ValidCardTransitions = map[string][]string{
	CardStatusInactive: {CardStatusActive},
	CardStatusActive:   {CardStatusBlocked},
	CardStatusBlocked:  {CardStatusActive},
}

// CardCanTransitionTo 判断卡状态能否从 currentStatus 转换到 targetStatus
func CardCanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidCardTransitions[currentStatus]
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
// 会员卡实体
// ============================================================================

// Card 会员卡表
// 月费定时任务扫描的对象：激活满 48 小时且未收取月费的 ACTIVE 卡
type Card struct {
	ID                   int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID               int64      `gorm:"index;not null" json:"user_id"`                             // 持卡人用户ID
	CardNo               string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"card_no"`      // 卡号（发卡方生成）
	Status               string     `gorm:"type:varchar(20);index;not null" json:"status"`             // 卡状态
	MembershipFeeCharged bool       `gorm:"not null;default:false" json:"membership_fee_charged"`      // 是否已收取月费
	ActivatedAt          *time.Time `json:"activated_at"`                                              // 激活时间
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Card) TableName() string {
	return "card"
}
