package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"kobpay/internal/config"
	"kobpay/internal/model"
	"kobpay/internal/repository"
	"kobpay/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// errBalanceBelowFee 余额不足以支付月费，跳过该卡，下轮再试
var errBalanceBelowFee = errors.New("余额不足以支付月费")

// ============================================================
// 定时任务依赖接口（仓储按接口持有，单测注入内存假实现）
// ============================================================

type txManager interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

type cardStore interface {
	GetChargeableCards(ctx context.Context, activatedBefore time.Time, limit int) ([]*model.Card, error)
	MarkFeeCharged(ctx context.Context, tx *gorm.DB, cardID int64) error
}

type balanceStore interface {
	GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.Balance, error)
	Adjust(ctx context.Context, tx *gorm.DB, userID int64, delta decimal.Decimal) error
}

type ledgerStore interface {
	Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error
}

type outboxStore interface {
	Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error
}

// MembershipChargeJob 会员卡月费定时任务
//
// 扫描激活满免收期、尚未收费的 ACTIVE 卡，逐张从持卡人余额扣月费
// 到手续费归集账户，走和转账相同的余额/流水原语（不收转账手续费）
//
// 【关键点】每张卡一个独立事务：一张卡失败只影响它自己，
// 已提交的扣款不回滚，扫描也不中断，失败的卡留到下一轮重试
type MembershipChargeJob struct {
	db          txManager
	cardRepo    cardStore
	balanceRepo balanceStore
	ledgerRepo  ledgerStore
	outboxRepo  outboxStore
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewMembershipChargeJob(db *gorm.DB, cfg *config.Config) *MembershipChargeJob {
	return &MembershipChargeJob{
		db:          db,
		cardRepo:    repository.NewCardRepository(db),
		balanceRepo: repository.NewBalanceRepository(db),
		ledgerRepo:  repository.NewTransactionRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    time.Duration(cfg.Business.MembershipScanMinutes) * time.Minute,
		batchSize:   cfg.Business.MembershipScanBatchSize,
	}
}

func (j *MembershipChargeJob) Start(ctx context.Context) {
	log.Println("[MembershipChargeJob] 月费扣款任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[MembershipChargeJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[MembershipChargeJob] 任务停止")
			return
		case <-ticker.C:
			j.chargeDueCards(ctx)
		}
	}
}

func (j *MembershipChargeJob) Stop() {
	close(j.stopCh)
}

// chargeDueCards 扫描一轮可收费的卡并逐张扣款
func (j *MembershipChargeJob) chargeDueCards(ctx context.Context) {
	gracePeriod := time.Duration(j.cfg.Business.MembershipGraceHours) * time.Hour
	activatedBefore := time.Now().Add(-gracePeriod)

	cards, err := j.cardRepo.GetChargeableCards(ctx, activatedBefore, j.batchSize)
	if err != nil {
		log.Printf("[MembershipChargeJob] 查询待收费卡失败: %v", err)
		return
	}

	if len(cards) == 0 {
		return
	}

	log.Printf("[MembershipChargeJob] 发现 %d 张待收费的卡", len(cards))

	chargedCount := 0
	skippedCount := 0
	for _, card := range cards {
		err := j.chargeCard(ctx, card)
		if err == nil {
			chargedCount++
			continue
		}
		if errors.Is(err, errBalanceBelowFee) {
			skippedCount++
			log.Printf("[MembershipChargeJob] 余额不足，跳过: cardNo=%s, userID=%d", card.CardNo, card.UserID)
			continue
		}
		log.Printf("[MembershipChargeJob] 扣款失败: cardNo=%s, userID=%d, err=%v", card.CardNo, card.UserID, err)
	}

	log.Printf("[MembershipChargeJob] 本轮扣款 %d 张，跳过 %d 张", chargedCount, skippedCount)
}

// chargeCard 对单张卡收取月费，一张卡一个事务
func (j *MembershipChargeJob) chargeCard(ctx context.Context, card *model.Card) error {
	fee := j.cfg.Business.MembershipFeeAmount
	collectorID := j.cfg.Business.FeeCollectorUserID

	return j.db.Transaction(func(tx *gorm.DB) error {
		balance, err := j.balanceRepo.GetByUserIDForUpdate(ctx, tx, card.UserID)
		if err != nil {
			return err
		}
		if balance.Amount.LessThan(fee) {
			return errBalanceBelowFee
		}

		if err := j.balanceRepo.Adjust(ctx, tx, card.UserID, fee.Neg()); err != nil {
			return fmt.Errorf("持卡人扣款失败: %w", err)
		}
		if err := j.balanceRepo.Adjust(ctx, tx, collectorID, fee); err != nil {
			return fmt.Errorf("月费入账失败: %w", err)
		}

		txn := &model.Transaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        card.UserID,
			Type:          model.TransactionTypeMembershipCharge,
			Amount:        fee,
			Currency:      j.cfg.Business.Currency,
			RecipientID:   &collectorID,
			Source:        model.TransactionSourceSystem,
			Status:        model.TransactionStatusCompleted,
			Description:   fmt.Sprintf("会员卡月费-%s", card.CardNo),
		}
		if err := j.ledgerRepo.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("记录月费流水失败: %w", err)
		}

		if err := j.cardRepo.MarkFeeCharged(ctx, tx, card.ID); err != nil {
			return err
		}

		payload := map[string]interface{}{
			"event_type":  model.OutboxEventMembershipCharged,
			"card_no":     card.CardNo,
			"user_id":     card.UserID,
			"amount":      fee.String(),
			"currency":    j.cfg.Business.Currency,
			"occurred_at": time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(payload)

		msg := &model.OutboxMessage{
			MessageKey: txn.TransactionNo,
			EventType:  model.OutboxEventMembershipCharged,
			Topic:      j.cfg.Kafka.Topic.Notification,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := j.outboxRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("写入通知事件失败: %w", err)
		}

		return nil
	})
}
