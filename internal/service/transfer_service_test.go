package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"kobpay/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "金额不符: want=%s got=%s", want, got.String())
}

// 固定测试网络：alice(1)/bob(2) 已入网，mallory(3) 未入网，900 是手续费账户
func setupTransferBank(t *testing.T) (*memBank, *TransferService) {
	t.Helper()

	bank := newMemBank()
	bank.addMember(1, "alice", true)
	bank.addMember(2, "bob", true)
	bank.addMember(3, "mallory", false)
	bank.setBalance(1, "1000")
	bank.setBalance(2, "0")
	bank.setBalance(900, "0")
	return bank, newTestTransferService(bank, newTestConfig(t))
}

func TestTransferMovesFundsAndCollectsFee(t *testing.T) {
	bank, svc := setupTransferBank(t)

	resp, err := svc.Transfer(context.Background(), 1, "bob", d("500"))
	require.NoError(t, err)

	assert.Equal(t, int64(2), resp.RecipientID)
	assert.Equal(t, model.TransactionStatusCompleted, resp.Status)
	assert.NotEmpty(t, resp.TransactionNo)
	assertAmount(t, "0.57", resp.Fee)

	assertAmount(t, "499.43", bank.balance(1))
	assertAmount(t, "500", bank.balance(2))
	assertAmount(t, "0.57", bank.balance(900))

	// 三方余额合计不变
	total := bank.balance(1).Add(bank.balance(2)).Add(bank.balance(900))
	assertAmount(t, "1000", total)

	transfers := bank.ledgerByType(model.TransactionTypeTransfer)
	require.Len(t, transfers, 1)
	assert.Equal(t, int64(1), transfers[0].UserID)
	require.NotNil(t, transfers[0].RecipientID)
	assert.Equal(t, int64(2), *transfers[0].RecipientID)
	assert.Equal(t, model.TransactionStatusCompleted, transfers[0].Status)

	fees := bank.ledgerByType(model.TransactionTypeFee)
	require.Len(t, fees, 1)
	assertAmount(t, "0.57", fees[0].Amount)
	require.NotNil(t, fees[0].RecipientID)
	assert.Equal(t, int64(900), *fees[0].RecipientID)

	assert.Equal(t, []string{model.OutboxEventTransferCompleted}, bank.outboxEventTypes())
}

func TestTransferExactBalanceBoundary(t *testing.T) {
	bank, svc := setupTransferBank(t)
	bank.setBalance(1, "100.57")

	_, err := svc.Transfer(context.Background(), 1, "bob", d("100"))
	require.NoError(t, err)

	assertAmount(t, "0", bank.balance(1))
	assertAmount(t, "100", bank.balance(2))
}

func TestTransferInsufficientFundsLeavesNoTrace(t *testing.T) {
	bank, svc := setupTransferBank(t)
	bank.setBalance(1, "100")

	// 余额正好够本金但不够手续费
	_, err := svc.Transfer(context.Background(), 1, "bob", d("100"))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	assertAmount(t, "100", bank.balance(1))
	assertAmount(t, "0", bank.balance(2))
	assertAmount(t, "0", bank.balance(900))
	assert.Equal(t, 0, bank.ledgerSize())
	assert.Empty(t, bank.outboxEventTypes())
}

func TestTransferValidation(t *testing.T) {
	tests := []struct {
		name      string
		senderID  int64
		recipient string
		amount    decimal.Decimal
		wantErr   error
	}{
		{"金额为零", 1, "bob", d("0"), ErrInvalidAmount},
		{"金额为负", 1, "bob", d("-5"), ErrInvalidAmount},
		{"收款方不存在", 1, "nobody", d("10"), ErrRecipientNotFound},
		{"收款方用户名为空", 1, "", d("10"), ErrRecipientNotFound},
		{"收款方未入网", 1, "mallory", d("10"), ErrRecipientNotEligible},
		{"转给自己", 1, "alice", d("10"), ErrSelfTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank, svc := setupTransferBank(t)

			_, err := svc.Transfer(context.Background(), tt.senderID, tt.recipient, tt.amount)
			require.ErrorIs(t, err, tt.wantErr)

			assertAmount(t, "1000", bank.balance(1))
			assert.Equal(t, 0, bank.ledgerSize())
		})
	}
}

func TestTransferWeeklyLimit(t *testing.T) {
	recipientID := int64(2)

	t.Run("窗口内累计超限被拒绝", func(t *testing.T) {
		bank, svc := setupTransferBank(t)
		bank.setBalance(1, "200000")
		bank.seedTransaction(model.Transaction{
			TransactionNo: "TXN-seed-1",
			UserID:        1,
			Type:          model.TransactionTypeTransfer,
			Amount:        d("99500"),
			Currency:      "HTG",
			RecipientID:   &recipientID,
			Status:        model.TransactionStatusCompleted,
			CreatedAt:     time.Now().Add(-48 * time.Hour),
		})

		_, err := svc.Transfer(context.Background(), 1, "bob", d("501"))
		require.ErrorIs(t, err, ErrWeeklyLimitExceeded)
		assertAmount(t, "200000", bank.balance(1))
	})

	t.Run("恰好打满上限放行", func(t *testing.T) {
		bank, svc := setupTransferBank(t)
		bank.setBalance(1, "200000")
		bank.seedTransaction(model.Transaction{
			TransactionNo: "TXN-seed-2",
			UserID:        1,
			Type:          model.TransactionTypeTransfer,
			Amount:        d("99500"),
			Currency:      "HTG",
			RecipientID:   &recipientID,
			Status:        model.TransactionStatusCompleted,
			CreatedAt:     time.Now().Add(-48 * time.Hour),
		})

		_, err := svc.Transfer(context.Background(), 1, "bob", d("500"))
		require.NoError(t, err)
	})

	t.Run("窗口外的历史转账不计入", func(t *testing.T) {
		bank, svc := setupTransferBank(t)
		bank.setBalance(1, "200000")
		bank.seedTransaction(model.Transaction{
			TransactionNo: "TXN-seed-3",
			UserID:        1,
			Type:          model.TransactionTypeTransfer,
			Amount:        d("99999"),
			Currency:      "HTG",
			RecipientID:   &recipientID,
			Status:        model.TransactionStatusCompleted,
			CreatedAt:     time.Now().Add(-8 * 24 * time.Hour),
		})

		_, err := svc.Transfer(context.Background(), 1, "bob", d("100000"))
		require.NoError(t, err)
	})

	t.Run("对方收款不占用自己的额度", func(t *testing.T) {
		bank, svc := setupTransferBank(t)
		bank.setBalance(1, "200000")
		senderID := int64(1)
		// bob 给 alice 转过大额，占的是 bob 的额度
		bank.seedTransaction(model.Transaction{
			TransactionNo: "TXN-seed-4",
			UserID:        2,
			Type:          model.TransactionTypeTransfer,
			Amount:        d("99999"),
			Currency:      "HTG",
			RecipientID:   &senderID,
			Status:        model.TransactionStatusCompleted,
			CreatedAt:     time.Now().Add(-24 * time.Hour),
		})

		_, err := svc.Transfer(context.Background(), 1, "bob", d("100000"))
		require.NoError(t, err)
	})
}

// 手续费账户缺余额行时整个事务回滚，付款方和收款方都不能有变动
func TestTransferRollsBackOnCollectorFailure(t *testing.T) {
	bank := newMemBank()
	bank.addMember(1, "alice", true)
	bank.addMember(2, "bob", true)
	bank.setBalance(1, "1000")
	bank.setBalance(2, "0")
	svc := newTestTransferService(bank, newTestConfig(t))

	_, err := svc.Transfer(context.Background(), 1, "bob", d("10"))
	require.Error(t, err)

	assertAmount(t, "1000", bank.balance(1))
	assertAmount(t, "0", bank.balance(2))
	assert.Equal(t, 0, bank.ledgerSize())
	assert.Empty(t, bank.outboxEventTypes())
}

// 并发转账串行化后逐笔校验余额：本金+手续费只够过 3 笔，
// 多余的请求必须拿到余额不足错误，余额不能出现负数
func TestTransferConcurrentSufficiencyCheck(t *testing.T) {
	bank, svc := setupTransferBank(t)
	bank.setBalance(1, "350") // 3 * 100.57 = 301.71，第 4 笔差钱

	const attempts = 10
	errCh := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), 1, "bob", d("100"))
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	succeeded, rejected := 0, 0
	for err := range errCh {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrInsufficientFunds)
			rejected++
		}
	}

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 7, rejected)
	assertAmount(t, "48.29", bank.balance(1))
	assertAmount(t, "300", bank.balance(2))
	assertAmount(t, "1.71", bank.balance(900))
	assert.Len(t, bank.ledgerByType(model.TransactionTypeTransfer), 3)
	assert.Len(t, bank.ledgerByType(model.TransactionTypeFee), 3)
	assert.False(t, bank.balance(1).IsNegative())
}
