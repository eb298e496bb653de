package handler

import (
	"kobpay/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())
	r.Use(MetricsMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组，全部要求调用方身份
	api := r.Group("/api/v1")
	api.Use(AuthMiddleware())
	{
		// 交易相关
		transactions := api.Group("/transactions")
		{
			transactions.GET("", h.ListTransactions)
			transactions.GET("/balance", h.GetBalance)
			transactions.POST("/deposit", h.Deposit)
			transactions.POST("/withdraw", h.Withdraw)
			transactions.POST("/transfer", h.Transfer)
			transactions.POST("/request", h.CreateRequest)
			transactions.POST("/accept-request/:id", h.AcceptRequest)
			transactions.POST("/cancel-request/:id", h.CancelRequest)
		}

		// 会员卡状态同步（发卡方回调网关调用）
		cards := api.Group("/cards")
		{
			cards.POST("", h.IssueCard)
			cards.POST("/status", h.SyncCardStatus)
		}
	}

	// 健康检查与指标
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
