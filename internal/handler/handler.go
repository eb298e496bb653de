package handler

import (
	"errors"
	"strconv"
	"time"

	"kobpay/internal/config"
	"kobpay/internal/infrastructure/lock"
	"kobpay/internal/repository"
	"kobpay/internal/service"
	"kobpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	walletService   *service.WalletService
	transferService *service.TransferService
	requestService  *service.RequestService
	cardService     *service.CardService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	balanceRepo := repository.NewBalanceRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	lockFactory := func(key, value string) service.Locker {
		return lock.NewRequestLock(rdb, key, value)
	}

	transferService := service.NewTransferService(db, balanceRepo, transactionRepo, memberRepo, outboxRepo, cfg)

	return &Handler{
		walletService:   service.NewWalletService(db, balanceRepo, transactionRepo, cfg),
		transferService: transferService,
		requestService: service.NewRequestService(db, transferService, transactionRepo,
			memberRepo, outboxRepo, lockFactory, cfg),
		cardService: service.NewCardService(db),
	}
}

// writeServiceError 把服务层错误翻译成稳定的错误码和 HTTP 状态
// 错误分类见 pkg/response：校验 400、不存在 404、无权限 403、
// 策略拒绝 400（带业务码）、并发冲突 409、其余一律 500
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrCurrencyNotSupported),
		errors.Is(err, service.ErrSelfTransfer):
		response.ParamError(c, err.Error())
	case errors.Is(err, repository.ErrBalanceNotFound):
		response.NotFound(c, response.CodeBalanceNotFound, err.Error())
	case errors.Is(err, service.ErrRecipientNotFound):
		response.NotFound(c, response.CodeRecipientNotFound, err.Error())
	case errors.Is(err, service.ErrRequestNotFound):
		response.NotFound(c, response.CodeRequestNotFound, err.Error())
	case errors.Is(err, service.ErrRecipientNotEligible):
		response.Forbidden(c, response.CodeRecipientNotEligible, err.Error())
	case errors.Is(err, service.ErrNotRequestPayer),
		errors.Is(err, service.ErrNotRequestOwner):
		response.Forbidden(c, response.CodeRequestForbidden, err.Error())
	case errors.Is(err, service.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, service.ErrWeeklyLimitExceeded):
		response.BusinessError(c, response.CodeWeeklyLimitExceeded, err.Error())
	case errors.Is(err, repository.ErrStatusConflict):
		response.Conflict(c, response.CodeStatusConflict, err.Error())
	case errors.Is(err, repository.ErrCardNotFound):
		response.NotFound(c, response.CodeCardNotFound, err.Error())
	case errors.Is(err, repository.ErrCardStatusInvalid):
		response.BusinessError(c, response.CodeCardStatusInvalid, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 钱包相关接口
// ============================================================

// GetBalance 查询当前用户余额
// GET /api/v1/transactions/balance
func (h *Handler) GetBalance(c *gin.Context) {
	userID := CurrentUserID(c)

	balance, err := h.walletService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"balance":  balance.Amount,
		"currency": balance.Currency,
	})
}

// ListTransactions 查询当前用户流水，按时间倒序
// GET /api/v1/transactions?page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	userID := CurrentUserID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	transactions, total, err := h.walletService.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// AmountRequest 充值/提现请求
type AmountRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Source   string          `json:"source"`
	Currency string          `json:"currency"`
}

// Deposit 充值
// POST /api/v1/transactions/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	txn, err := h.walletService.Deposit(c.Request.Context(), CurrentUserID(c), req.Amount, req.Source, req.Currency)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_no": txn.TransactionNo,
		"amount":         txn.Amount,
		"status":         txn.Status,
	})
}

// Withdraw 提现
// POST /api/v1/transactions/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	txn, err := h.walletService.Withdraw(c.Request.Context(), CurrentUserID(c), req.Amount, req.Source, req.Currency)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_no": txn.TransactionNo,
		"amount":         txn.Amount,
		"status":         txn.Status,
	})
}

// ============================================================
// 转账相关接口
// ============================================================

// TransferRequest 转账请求
type TransferRequest struct {
	RecipientUsername string          `json:"recipient_username" binding:"required"` // 收款方用户名
	Amount            decimal.Decimal `json:"amount" binding:"required"`             // 转账金额
}

// Transfer 转账
// POST /api/v1/transactions/transfer
//
// 【关键点】转账是整个系统最核心的操作，需要保证：
// 1. 原子性：扣款、入账、手续费、流水必须同时成功或同时失败
// 2. 并发安全：双方余额行按用户ID升序加行锁
// 3. 周限额和余额充足性都在锁内校验
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.transferService.Transfer(c.Request.Context(), CurrentUserID(c), req.RecipientUsername, req.Amount)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 收款请求相关接口
// ============================================================

// CreateRequest 发起收款请求
// POST /api/v1/transactions/request
func (h *Handler) CreateRequest(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	requestTxn, err := h.requestService.CreateRequest(c.Request.Context(), CurrentUserID(c), req.RecipientUsername, req.Amount)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"request_id": requestTxn.ID,
		"amount":     requestTxn.Amount,
		"status":     requestTxn.Status,
	})
}

// AcceptRequest 接受收款请求并付款
// POST /api/v1/transactions/accept-request/:id
func (h *Handler) AcceptRequest(c *gin.Context) {
	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "请求ID参数错误")
		return
	}

	result, err := h.requestService.Accept(c.Request.Context(), requestID, CurrentUserID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// CancelRequest 取消收款请求
// POST /api/v1/transactions/cancel-request/:id
func (h *Handler) CancelRequest(c *gin.Context) {
	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "请求ID参数错误")
		return
	}

	if err := h.requestService.Cancel(c.Request.Context(), requestID, CurrentUserID(c)); err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"request_id": requestID,
		"status":     "CANCELLED",
	})
}

// ============================================================
// 会员卡状态同步接口（发卡方回调网关调用，不对终端用户开放）
// ============================================================

// IssueCardRequest 发卡登记请求
type IssueCardRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	CardNo string `json:"card_no" binding:"required"`
}

// IssueCard 登记新卡
// POST /api/v1/cards
func (h *Handler) IssueCard(c *gin.Context) {
	var req IssueCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	card, err := h.cardService.IssueCard(c.Request.Context(), req.UserID, req.CardNo)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, card)
}

// SyncCardStatusRequest 卡状态同步请求
type SyncCardStatusRequest struct {
	CardNo string `json:"card_no" binding:"required"`
	Status string `json:"status" binding:"required"`
}

// SyncCardStatus 同步发卡方推送的卡状态
// POST /api/v1/cards/status
func (h *Handler) SyncCardStatus(c *gin.Context) {
	var req SyncCardStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.cardService.SyncStatus(c.Request.Context(), req.CardNo, req.Status); err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"card_no": req.CardNo,
		"status":  req.Status,
		"time":    time.Now().Format(time.RFC3339),
	})
}
