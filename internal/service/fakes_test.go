package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"kobpay/internal/config"
	"kobpay/internal/model"
	"kobpay/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ============================================================
// 内存版资金存储（单测用）
//
// memBank 持有全部状态并实现 TxManager：
//   - Transaction 期间持有全局锁，模拟行锁带来的串行化
//   - 回调返回错误时恢复快照，模拟事务回滚
// 各 Store 接口由包装类型适配（接口间方法签名有冲突，
// 无法全挂在同一个类型上）。服务层的原子性和并发用例
// 由此可以完全脱离 MySQL 跑
// ============================================================

type memBank struct {
	txMu    sync.Mutex
	stateMu sync.Mutex

	balances map[int64]decimal.Decimal
	ledger   []*model.Transaction
	members  map[string]*model.Member
	outbox   []*model.OutboxMessage
	nextID   int64
}

func newMemBank() *memBank {
	return &memBank{
		balances: make(map[int64]decimal.Decimal),
		members:  make(map[string]*model.Member),
		nextID:   1,
	}
}

func cloneTxn(t *model.Transaction) *model.Transaction {
	c := *t
	if t.RecipientID != nil {
		rid := *t.RecipientID
		c.RecipientID = &rid
	}
	return &c
}

// ---- 测试数据装配 ----

func (b *memBank) addMember(userID int64, username string, isMember bool) {
	b.members[username] = &model.Member{UserID: userID, Username: username, IsMember: isMember}
}

func (b *memBank) setBalance(userID int64, amount string) {
	b.balances[userID] = decimal.RequireFromString(amount)
}

// seedTransaction 直接写入一条历史流水，返回落库后的副本
func (b *memBank) seedTransaction(txn model.Transaction) *model.Transaction {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	c := cloneTxn(&txn)
	c.ID = b.nextID
	b.nextID++
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	b.ledger = append(b.ledger, c)
	return cloneTxn(c)
}

// ---- 测试断言取数 ----

func (b *memBank) balance(userID int64) decimal.Decimal {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.balances[userID]
}

func (b *memBank) ledgerByType(txType string) []*model.Transaction {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	var out []*model.Transaction
	for _, t := range b.ledger {
		if t.Type == txType {
			out = append(out, cloneTxn(t))
		}
	}
	return out
}

func (b *memBank) ledgerSize() int {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return len(b.ledger)
}

func (b *memBank) outboxEventTypes() []string {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	var out []string
	for _, m := range b.outbox {
		out = append(out, m.EventType)
	}
	return out
}

// ---- TxManager ----

func (b *memBank) Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	b.txMu.Lock()
	defer b.txMu.Unlock()

	balancesBak, ledgerBak, outboxBak, nextIDBak := b.snapshot()
	if err := fc(nil); err != nil {
		b.restore(balancesBak, ledgerBak, outboxBak, nextIDBak)
		return err
	}
	return nil
}

func (b *memBank) snapshot() (map[int64]decimal.Decimal, []*model.Transaction, []*model.OutboxMessage, int64) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	balances := make(map[int64]decimal.Decimal, len(b.balances))
	for k, v := range b.balances {
		balances[k] = v
	}
	ledger := make([]*model.Transaction, 0, len(b.ledger))
	for _, t := range b.ledger {
		ledger = append(ledger, cloneTxn(t))
	}
	outbox := make([]*model.OutboxMessage, 0, len(b.outbox))
	for _, m := range b.outbox {
		c := *m
		outbox = append(outbox, &c)
	}
	return balances, ledger, outbox, b.nextID
}

func (b *memBank) restore(balances map[int64]decimal.Decimal, ledger []*model.Transaction,
	outbox []*model.OutboxMessage, nextID int64) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	b.balances = balances
	b.ledger = ledger
	b.outbox = outbox
	b.nextID = nextID
}

// ---- BalanceStore ----

type memBalances struct{ *memBank }

func (s memBalances) GetByUserID(ctx context.Context, userID int64) (*model.Balance, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	amount, ok := s.balances[userID]
	if !ok {
		return nil, repository.ErrBalanceNotFound
	}
	return &model.Balance{UserID: userID, Amount: amount}, nil
}

func (s memBalances) GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.Balance, error) {
	return s.GetByUserID(ctx, userID)
}

func (s memBalances) Adjust(ctx context.Context, tx *gorm.DB, userID int64, delta decimal.Decimal) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	amount, ok := s.balances[userID]
	if !ok {
		return repository.ErrBalanceNotFound
	}
	s.balances[userID] = amount.Add(delta)
	return nil
}

// ---- LedgerStore ----

type memLedger struct{ *memBank }

func (s memLedger) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	c := cloneTxn(trans)
	c.ID = s.nextID
	s.nextID++
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.ledger = append(s.ledger, c)

	trans.ID = c.ID
	trans.CreatedAt = c.CreatedAt
	return nil
}

func (s memLedger) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	for _, t := range s.ledger {
		if t.ID == id {
			return cloneTxn(t), nil
		}
	}
	return nil, repository.ErrTransactionNotFound
}

func (s memLedger) AdvanceStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if !model.TransactionCanTransitionTo(fromStatus, toStatus) {
		return repository.ErrStatusInvalid
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	for _, t := range s.ledger {
		if t.ID != id {
			continue
		}
		if t.Status != fromStatus {
			return repository.ErrStatusConflict
		}
		t.Status = toStatus
		return nil
	}
	return repository.ErrTransactionNotFound
}

func (s memLedger) SumAmountSince(ctx context.Context, tx *gorm.DB, userID int64, txType string, since time.Time) (decimal.Decimal, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	total := decimal.Zero
	for _, t := range s.ledger {
		if t.UserID == userID && t.Type == txType &&
			t.Status == model.TransactionStatusCompleted && !t.CreatedAt.Before(since) {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

func (s memLedger) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	var matched []*model.Transaction
	for _, t := range s.ledger {
		if t.UserID == userID || (t.RecipientID != nil && *t.RecipientID == userID) {
			matched = append(matched, cloneTxn(t))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// ---- MemberStore ----

type memMembers struct{ *memBank }

func (s memMembers) GetByUsername(ctx context.Context, username string) (*model.Member, error) {
	member, ok := s.members[username]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	return member, nil
}

func (s memMembers) GetByUserID(ctx context.Context, userID int64) (*model.Member, error) {
	for _, m := range s.members {
		if m.UserID == userID {
			return m, nil
		}
	}
	return nil, repository.ErrMemberNotFound
}

// ---- OutboxStore ----

type memOutbox struct{ *memBank }

func (s memOutbox) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	c := *msg
	s.outbox = append(s.outbox, &c)
	return nil
}

// ---- 分布式锁 ----

type nopLock struct{}

func (nopLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	return nil
}

func (nopLock) Unlock(ctx context.Context) error { return nil }

func nopLockFactory(key, value string) Locker { return nopLock{} }

// ---- 服务装配 ----

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Business: config.BusinessConfig{
			Currency:                "HTG",
			FeeCollectorUserID:      900,
			TransferFee:             "0.57",
			WeeklyTransferLimit:     "100000",
			MembershipFee:           "25",
			MembershipGraceHours:    48,
			MembershipScanMinutes:   60,
			MembershipScanBatchSize: 100,
			MaxRetryCount:           3,
		},
	}
	cfg.Kafka.Topic.Notification = "kobpay.notification"
	require.NoError(t, cfg.Business.Validate())
	return cfg
}

func newTestTransferService(bank *memBank, cfg *config.Config) *TransferService {
	return NewTransferService(bank, memBalances{bank}, memLedger{bank}, memMembers{bank}, memOutbox{bank}, cfg)
}

func newTestWalletService(bank *memBank, cfg *config.Config) *WalletService {
	return NewWalletService(bank, memBalances{bank}, memLedger{bank}, cfg)
}

func newTestRequestService(bank *memBank, cfg *config.Config) *RequestService {
	transfers := newTestTransferService(bank, cfg)
	return NewRequestService(bank, transfers, memLedger{bank}, memMembers{bank}, memOutbox{bank}, nopLockFactory, cfg)
}
