package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// ============================================================================
// 通知事件类型常量
// ============================================================================

const (
	OutboxEventTransferCompleted = "TRANSFER_COMPLETED" // 转账完成
	OutboxEventRequestCreated    = "REQUEST_CREATED"    // 收款请求创建
	OutboxEventRequestAccepted   = "REQUEST_ACCEPTED"   // 收款请求已支付
	OutboxEventMembershipCharged = "MEMBERSHIP_CHARGED" // 月费扣款完成
)

// OutboxMessage 通知事件发件箱
// 短信/邮件通知是 fire-and-forget 的旁路效果，但事件本身必须和
// 资金变动在同一事务内落库，之后由 OutboxSender 异步投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	EventType  string    `gorm:"type:varchar(32);not null" json:"event_type"` // 通知事件类型
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
