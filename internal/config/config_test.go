package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBusinessConfig() BusinessConfig {
	return BusinessConfig{
		Currency:                "HTG",
		FeeCollectorUserID:      1,
		TransferFee:             "0.57",
		WeeklyTransferLimit:     "100000",
		MembershipFee:           "25",
		MembershipGraceHours:    48,
		MembershipScanMinutes:   60,
		MembershipScanBatchSize: 100,
		MaxRetryCount:           5,
	}
}

func TestBusinessConfigValidateParsesAmounts(t *testing.T) {
	cfg := validBusinessConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.57", cfg.TransferFeeAmount.String())
	assert.Equal(t, "100000", cfg.WeeklyTransferLimitAmount.String())
	assert.Equal(t, "25", cfg.MembershipFeeAmount.String())
}

// 资金配置宁缺毋滥：任何一项配错都必须在启动时失败
func TestBusinessConfigValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *BusinessConfig)
	}{
		{"币种为空", func(c *BusinessConfig) { c.Currency = "" }},
		{"手续费账户未配置", func(c *BusinessConfig) { c.FeeCollectorUserID = 0 }},
		{"手续费账户为负", func(c *BusinessConfig) { c.FeeCollectorUserID = -1 }},
		{"手续费不是数字", func(c *BusinessConfig) { c.TransferFee = "abc" }},
		{"手续费为负", func(c *BusinessConfig) { c.TransferFee = "-0.57" }},
		{"周限额为空", func(c *BusinessConfig) { c.WeeklyTransferLimit = "" }},
		{"周限额为零", func(c *BusinessConfig) { c.WeeklyTransferLimit = "0" }},
		{"月费为零", func(c *BusinessConfig) { c.MembershipFee = "0" }},
		{"免收期为零", func(c *BusinessConfig) { c.MembershipGraceHours = 0 }},
		{"扫描间隔为零", func(c *BusinessConfig) { c.MembershipScanMinutes = 0 }},
		{"批大小为零", func(c *BusinessConfig) { c.MembershipScanBatchSize = 0 }},
		{"重试次数为零", func(c *BusinessConfig) { c.MaxRetryCount = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBusinessConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// 手续费可以配成 0（免手续费运营），但必须显式写出来
func TestBusinessConfigAllowsZeroTransferFee(t *testing.T) {
	cfg := validBusinessConfig()
	cfg.TransferFee = "0"
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.TransferFeeAmount.IsZero())
}
