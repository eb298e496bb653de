package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"kobpay/internal/config"
	"kobpay/internal/model"
	"kobpay/internal/repository"
	"kobpay/pkg/idgen"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequestService 收款请求服务
//
// 一条 REQUEST 流水表示"发起方请求付款方支付 amount"，生命周期：
//
//	PENDING -> COMPLETED（付款方 accept，真正走一次转账）
//	PENDING -> CANCELLED（发起方 cancel，不动钱）
//
// 两个转换都是终态，由状态转换表 + 条件更新双重保证
type RequestService struct {
	db          TxManager
	transfers   *TransferService
	ledgerRepo  LedgerStore
	memberRepo  MemberStore
	outboxRepo  OutboxStore
	newLock     LockFactory
	cfg         *config.Config
}

func NewRequestService(db TxManager, transfers *TransferService, ledgerRepo LedgerStore,
	memberRepo MemberStore, outboxRepo OutboxStore, newLock LockFactory, cfg *config.Config) *RequestService {
	return &RequestService{
		db:         db,
		transfers:  transfers,
		ledgerRepo: ledgerRepo,
		memberRepo: memberRepo,
		outboxRepo: outboxRepo,
		newLock:    newLock,
		cfg:        cfg,
	}
}

// CreateRequest 创建收款请求，不移动任何资金
// 付款方的校验策略和转账一致：必须存在且已入网
func (s *RequestService) CreateRequest(ctx context.Context, requesterID int64, payerUsername string, amount decimal.Decimal) (*model.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	payer, err := s.transfers.resolveRecipient(ctx, payerUsername)
	if err != nil {
		return nil, err
	}
	if payer.UserID == requesterID {
		return nil, ErrSelfTransfer
	}

	payerID := payer.UserID
	requestTxn := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        requesterID,
		Type:          model.TransactionTypeRequest,
		Amount:        amount,
		Currency:      s.cfg.Business.Currency,
		RecipientID:   &payerID,
		Source:        model.TransactionSourceApp,
		Status:        model.TransactionStatusPending,
		Description:   fmt.Sprintf("向 %s 发起收款请求", payer.Username),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.ledgerRepo.Create(ctx, tx, requestTxn); err != nil {
			return fmt.Errorf("记录收款请求失败: %w", err)
		}
		return s.enqueueRequestEvent(ctx, tx, model.OutboxEventRequestCreated, requestTxn)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("收款请求已创建: requestID=%d, requesterID=%d, payerID=%d, amount=%s",
		requestTxn.ID, requesterID, payerID, amount.String())
	return requestTxn, nil
}

// Accept 付款方接受收款请求，执行和转账完全一致的资金移动
//
// 【关键点】三层防重复支付：
// 1. 请求维度的分布式锁，把并发的 accept 在入口处串行化
// 2. 锁内重新加载请求，状态不是 PENDING 直接拒绝
// 3. 事务内条件更新 PENDING -> COMPLETED，数据库层兜底
func (s *RequestService) Accept(ctx context.Context, requestID int64, actingUserID int64) (*TransferResponse, error) {
	request, err := s.loadPendingRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RecipientID == nil || *request.RecipientID != actingUserID {
		return nil, ErrNotRequestPayer
	}

	acceptLock := s.newLock(fmt.Sprintf("request:lock:%d", requestID), uuid.NewString())
	if err := acceptLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer acceptLock.Unlock(ctx)

	// 拿到锁后重新加载，锁外看到的 PENDING 可能已被并发操作改掉
	request, err = s.loadPendingRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var transferTxn *model.Transaction
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 付款方= accept 者，收款方=请求发起方；周限额约束付款方
		txn, err := s.transfers.executeTransferTx(ctx, tx, actingUserID, request.UserID,
			request.Amount, model.TransactionSourceApp,
			fmt.Sprintf("收款请求 #%d 付款", request.ID))
		if err != nil {
			return err
		}
		transferTxn = txn

		if err := s.ledgerRepo.AdvanceStatus(ctx, tx, request.ID,
			model.TransactionStatusPending, model.TransactionStatusCompleted); err != nil {
			return err
		}

		return s.enqueueRequestEvent(ctx, tx, model.OutboxEventRequestAccepted, request)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("收款请求已支付: requestID=%d, payerID=%d, transactionNo=%s",
		request.ID, actingUserID, transferTxn.TransactionNo)

	return &TransferResponse{
		TransactionNo: transferTxn.TransactionNo,
		RecipientID:   request.UserID,
		Amount:        request.Amount,
		Fee:           s.cfg.Business.TransferFeeAmount,
		Status:        transferTxn.Status,
	}, nil
}

// Cancel 发起方取消收款请求，不移动资金
// 并发的 accept/cancel 竞争由条件状态更新裁决，输家拿到状态冲突错误
func (s *RequestService) Cancel(ctx context.Context, requestID int64, actingUserID int64) error {
	request, err := s.loadPendingRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.UserID != actingUserID {
		return ErrNotRequestOwner
	}

	if err := s.ledgerRepo.AdvanceStatus(ctx, nil, request.ID,
		model.TransactionStatusPending, model.TransactionStatusCancelled); err != nil {
		return err
	}

	log.Printf("收款请求已取消: requestID=%d, requesterID=%d", request.ID, actingUserID)
	return nil
}

// loadPendingRequest 加载待处理的收款请求
// 不存在、不是 REQUEST 类型、已终结，对调用方都是同一种"找不到"
func (s *RequestService) loadPendingRequest(ctx context.Context, requestID int64) (*model.Transaction, error) {
	request, err := s.ledgerRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if request.Type != model.TransactionTypeRequest || request.Status != model.TransactionStatusPending {
		return nil, ErrRequestNotFound
	}
	return request, nil
}

func (s *RequestService) enqueueRequestEvent(ctx context.Context, tx *gorm.DB, eventType string, request *model.Transaction) error {
	payload := map[string]interface{}{
		"event_type":   eventType,
		"request_id":   request.ID,
		"requester_id": request.UserID,
		"payer_id":     request.RecipientID,
		"amount":       request.Amount.String(),
		"currency":     request.Currency,
		"occurred_at":  time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	msg := &model.OutboxMessage{
		MessageKey: request.TransactionNo,
		EventType:  eventType,
		Topic:      s.cfg.Kafka.Topic.Notification,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入通知事件失败: %w", err)
	}
	return nil
}
