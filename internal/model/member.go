package model

import (
	"time"
)

// Member 封闭支付网络成员目录
// 收款方解析（用户名 -> 用户ID）和入网资格校验都走这张表
// 注册、实名等流程由上游身份服务维护，本系统只读
type Member struct {
	UserID    int64     `gorm:"primaryKey" json:"user_id"`
	Username  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"` // 对外展示的收款用户名
	IsMember  bool      `gorm:"not null;default:false" json:"is_member"`               // 是否已加入封闭支付网络
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Member) TableName() string {
	return "member"
}
