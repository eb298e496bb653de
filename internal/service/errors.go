package service

import "errors"

// 业务错误定义
// 每个错误对应一个稳定的错误码（见 pkg/response），客户端据此区分
// 可重试（基础设施类）和不可重试（余额不足、限额等策略类）失败
var (
	ErrInvalidAmount        = errors.New("金额必须为正数")
	ErrCurrencyNotSupported = errors.New("不支持的币种")
	ErrSelfTransfer         = errors.New("收付双方不能是同一用户")
	ErrRecipientNotFound    = errors.New("收款用户不存在")
	ErrRecipientNotEligible = errors.New("收款用户未加入支付网络")
	ErrInsufficientFunds    = errors.New("余额不足")
	ErrWeeklyLimitExceeded  = errors.New("超出每周转账限额")
	ErrRequestNotFound      = errors.New("收款请求不存在或已终结")
	ErrNotRequestPayer      = errors.New("只有被请求的付款方才能接受该请求")
	ErrNotRequestOwner      = errors.New("只有请求发起方才能取消该请求")
)
