package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"kobpay/internal/config"
	"kobpay/internal/model"
	"kobpay/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// weeklyWindow 周限额统计的滚动窗口
const weeklyWindow = 7 * 24 * time.Hour

// TransferService 转账编排服务
//
// 【关键点】转账是整个系统最核心的操作，需要保证：
// 1. 原子性：付款方扣款、收款方入账、手续费入账、两条流水，同成同败
// 2. 并发安全：按用户ID升序对双方余额行加行锁，防止丢更新和死锁
// 3. 校验时机：余额充足性和周限额都在锁内、扣款前校验，
//    锁外预检的结果在拿到锁那一刻就可能过期，不能作数
type TransferService struct {
	db          TxManager
	balanceRepo BalanceStore
	ledgerRepo  LedgerStore
	memberRepo  MemberStore
	outboxRepo  OutboxStore
	cfg         *config.Config
}

func NewTransferService(db TxManager, balanceRepo BalanceStore, ledgerRepo LedgerStore,
	memberRepo MemberStore, outboxRepo OutboxStore, cfg *config.Config) *TransferService {
	return &TransferService{
		db:          db,
		balanceRepo: balanceRepo,
		ledgerRepo:  ledgerRepo,
		memberRepo:  memberRepo,
		outboxRepo:  outboxRepo,
		cfg:         cfg,
	}
}

type TransferResponse struct {
	TransactionNo string          `json:"transaction_no"`
	RecipientID   int64           `json:"recipient_id"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Status        string          `json:"status"`
}

// Transfer 给封闭网络内的会员转账，收取固定手续费
func (s *TransferService) Transfer(ctx context.Context, senderID int64, recipientUsername string, amount decimal.Decimal) (*TransferResponse, error) {
	// 参数校验在任何锁之前完成，不产生副作用
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	recipient, err := s.resolveRecipient(ctx, recipientUsername)
	if err != nil {
		return nil, err
	}
	if recipient.UserID == senderID {
		return nil, ErrSelfTransfer
	}

	var transferTxn *model.Transaction
	err = s.db.Transaction(func(tx *gorm.DB) error {
		txn, err := s.executeTransferTx(ctx, tx, senderID, recipient.UserID, amount,
			model.TransactionSourceApp, fmt.Sprintf("转账给 %s", recipient.Username))
		if err != nil {
			return err
		}
		transferTxn = txn

		return s.enqueueTransferEvent(ctx, tx, model.OutboxEventTransferCompleted, txn)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("转账成功: transactionNo=%s, senderID=%d, recipientID=%d, amount=%s",
		transferTxn.TransactionNo, senderID, recipient.UserID, amount.String())

	return &TransferResponse{
		TransactionNo: transferTxn.TransactionNo,
		RecipientID:   recipient.UserID,
		Amount:        amount,
		Fee:           s.cfg.Business.TransferFeeAmount,
		Status:        transferTxn.Status,
	}, nil
}

// resolveRecipient 按用户名解析收款方并校验入网资格
// 封闭网络策略：未入网的用户可以被查到，但不能收款
func (s *TransferService) resolveRecipient(ctx context.Context, username string) (*model.Member, error) {
	if username == "" {
		return nil, ErrRecipientNotFound
	}

	member, err := s.memberRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, ErrRecipientNotFound
	}
	if !member.IsMember {
		return nil, ErrRecipientNotEligible
	}
	return member, nil
}

// executeTransferTx 在调用方事务内执行一次完整的资金移动：
// 付款方扣 amount+fee，收款方入 amount，手续费账户入 fee，
// 写一条 TRANSFER 流水和一条 FEE 流水，全部成功才算成功
//
// 收款请求的 accept 也走这里，保证两条路径的资金语义完全一致
func (s *TransferService) executeTransferTx(ctx context.Context, tx *gorm.DB,
	senderID, recipientID int64, amount decimal.Decimal, source, description string) (*model.Transaction, error) {

	// 按用户ID升序加锁，两个方向相反的并发转账不会互相等待成环
	firstID, secondID := senderID, recipientID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	first, err := s.balanceRepo.GetByUserIDForUpdate(ctx, tx, firstID)
	if err != nil {
		return nil, err
	}
	second, err := s.balanceRepo.GetByUserIDForUpdate(ctx, tx, secondID)
	if err != nil {
		return nil, err
	}

	senderBalance := first
	if second.UserID == senderID {
		senderBalance = second
	}

	// 周限额在锁内重算：两个并发转账各自拿着过期的合计数双双通过，
	// 加起来就会突破上限，所以必须串行化之后再查
	since := time.Now().Add(-weeklyWindow)
	weeklyTotal, err := s.ledgerRepo.SumAmountSince(ctx, tx, senderID, model.TransactionTypeTransfer, since)
	if err != nil {
		return nil, fmt.Errorf("统计周转账额失败: %w", err)
	}
	if weeklyTotal.Add(amount).GreaterThan(s.cfg.Business.WeeklyTransferLimitAmount) {
		return nil, ErrWeeklyLimitExceeded
	}

	fee := s.cfg.Business.TransferFeeAmount
	totalDebit := amount.Add(fee)
	if senderBalance.Amount.LessThan(totalDebit) {
		return nil, ErrInsufficientFunds
	}

	if err := s.balanceRepo.Adjust(ctx, tx, senderID, totalDebit.Neg()); err != nil {
		return nil, fmt.Errorf("付款方扣款失败: %w", err)
	}
	if err := s.balanceRepo.Adjust(ctx, tx, recipientID, amount); err != nil {
		return nil, fmt.Errorf("收款方入账失败: %w", err)
	}
	if err := s.balanceRepo.Adjust(ctx, tx, s.cfg.Business.FeeCollectorUserID, fee); err != nil {
		return nil, fmt.Errorf("手续费入账失败: %w", err)
	}

	transferTxn := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        senderID,
		Type:          model.TransactionTypeTransfer,
		Amount:        amount,
		Currency:      s.cfg.Business.Currency,
		RecipientID:   &recipientID,
		Source:        source,
		Status:        model.TransactionStatusCompleted,
		Description:   description,
	}
	if err := s.ledgerRepo.Create(ctx, tx, transferTxn); err != nil {
		return nil, fmt.Errorf("记录转账流水失败: %w", err)
	}

	collectorID := s.cfg.Business.FeeCollectorUserID
	feeTxn := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        senderID,
		Type:          model.TransactionTypeFee,
		Amount:        fee,
		Currency:      s.cfg.Business.Currency,
		RecipientID:   &collectorID,
		Source:        source,
		Status:        model.TransactionStatusCompleted,
		Description:   fmt.Sprintf("转账手续费-%s", transferTxn.TransactionNo),
	}
	if err := s.ledgerRepo.Create(ctx, tx, feeTxn); err != nil {
		return nil, fmt.Errorf("记录手续费流水失败: %w", err)
	}

	return transferTxn, nil
}

// enqueueTransferEvent 在资金事务内写入通知事件，由 OutboxSender 异步投递
func (s *TransferService) enqueueTransferEvent(ctx context.Context, tx *gorm.DB, eventType string, txn *model.Transaction) error {
	payload := map[string]interface{}{
		"event_type":     eventType,
		"transaction_no": txn.TransactionNo,
		"user_id":        txn.UserID,
		"recipient_id":   txn.RecipientID,
		"amount":         txn.Amount.String(),
		"currency":       txn.Currency,
		"occurred_at":    time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	msg := &model.OutboxMessage{
		MessageKey: txn.TransactionNo,
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
