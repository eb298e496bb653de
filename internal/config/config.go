package config

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Notification string `mapstructure:"notification"`
}

// BusinessConfig 资金业务配置
//
// 【重要】手续费账户和各项费率必须显式配置并在启动时校验通过，
// 禁止运行时兜底默认值 —— 配错宁可起不来，也不能把手续费打进错误账户
type BusinessConfig struct {
	Currency                string `mapstructure:"currency"`                  // 单一币种，如 HTG
	FeeCollectorUserID      int64  `mapstructure:"fee_collector_user_id"`     // 手续费归集账户的用户ID
	TransferFee             string `mapstructure:"transfer_fee"`              // 每笔转账固定手续费，如 "0.57"
	WeeklyTransferLimit     string `mapstructure:"weekly_transfer_limit"`     // 滚动7天转账上限，如 "100000"
	MembershipFee           string `mapstructure:"membership_fee"`            // 会员卡月费，如 "25"
	MembershipGraceHours    int    `mapstructure:"membership_grace_hours"`    // 激活后的免收期（小时）
	MembershipScanMinutes   int    `mapstructure:"membership_scan_minutes"`   // 月费扫描间隔（分钟）
	MembershipScanBatchSize int    `mapstructure:"membership_scan_batch_size"`// 每轮扫描的卡数量上限
	MaxRetryCount           int    `mapstructure:"max_retry_count"`           // 发件箱消息最大重试次数

	// 解析后的金额，由 Validate 填充
	TransferFeeAmount         decimal.Decimal `mapstructure:"-"`
	WeeklyTransferLimitAmount decimal.Decimal `mapstructure:"-"`
	MembershipFeeAmount       decimal.Decimal `mapstructure:"-"`
}

// Validate 校验并解析资金业务配置，任何一项不合法都返回错误
func (c *BusinessConfig) Validate() error {
	if c.Currency == "" {
		return fmt.Errorf("business.currency 不能为空")
	}
	if c.FeeCollectorUserID <= 0 {
		return fmt.Errorf("business.fee_collector_user_id 必须显式配置为正数，当前值: %d", c.FeeCollectorUserID)
	}

	fee, err := decimal.NewFromString(c.TransferFee)
	if err != nil || fee.IsNegative() {
		return fmt.Errorf("business.transfer_fee 不是合法的非负金额: %q", c.TransferFee)
	}
	c.TransferFeeAmount = fee

	limit, err := decimal.NewFromString(c.WeeklyTransferLimit)
	if err != nil || !limit.IsPositive() {
		return fmt.Errorf("business.weekly_transfer_limit 不是合法的正金额: %q", c.WeeklyTransferLimit)
	}
	c.WeeklyTransferLimitAmount = limit

	membershipFee, err := decimal.NewFromString(c.MembershipFee)
	if err != nil || !membershipFee.IsPositive() {
		return fmt.Errorf("business.membership_fee 不是合法的正金额: %q", c.MembershipFee)
	}
	c.MembershipFeeAmount = membershipFee

	if c.MembershipGraceHours <= 0 {
		return fmt.Errorf("business.membership_grace_hours 必须为正数，当前值: %d", c.MembershipGraceHours)
	}
	if c.MembershipScanMinutes <= 0 {
		return fmt.Errorf("business.membership_scan_minutes 必须为正数，当前值: %d", c.MembershipScanMinutes)
	}
	if c.MembershipScanBatchSize <= 0 {
		return fmt.Errorf("business.membership_scan_batch_size 必须为正数，当前值: %d", c.MembershipScanBatchSize)
	}
	if c.MaxRetryCount <= 0 {
		return fmt.Errorf("business.max_retry_count 必须为正数，当前值: %d", c.MaxRetryCount)
	}
	return nil
}

var GlobalConfig *Config

// LoadConfig 加载配置文件，业务配置校验不通过直接退出
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	if err := config.Business.Validate(); err != nil {
		log.Fatalf("资金业务配置校验失败: %v", err)
	}

	GlobalConfig = config
	return config
}
