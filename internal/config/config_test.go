package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDefaults(t *testing.T) {
	var conf Config
	conf.Normalize()

	// 安全开关默认关闭，纸钱包模式
	assert.False(t, conf.Trading.Live)
	assert.Equal(t, 60, conf.Trading.IntervalSeconds)
	assert.Equal(t, 0.02, conf.Trading.TargetProfit)
	assert.Equal(t, 0.02, conf.Trading.StopLoss)
	assert.Equal(t, 0.015, conf.Trading.RebuyThreshold)
	assert.Equal(t, 0.001, conf.Trading.FeeRate)
	assert.Equal(t, 1000.0, conf.Trading.PaperWallet.InitialBalance)
	assert.Equal(t, 30, conf.Learner.MinSamples)
	assert.Equal(t, 10, conf.Learner.RetrainThreshold)
	assert.Equal(t, 5, conf.Selector.TopN)
	assert.Equal(t, "USDT", conf.Selector.Quote)
	assert.Equal(t, 60.0, conf.Selector.ScoreThreshold)
	assert.NotEmpty(t, conf.Selector.Fallback)
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	conf := Config{}
	conf.Trading.Live = true
	conf.Trading.IntervalSeconds = 30
	conf.Trading.TargetProfit = 0.05
	conf.Learner.MinSamples = 50
	conf.Normalize()

	assert.True(t, conf.Trading.Live)
	assert.Equal(t, 30, conf.Trading.IntervalSeconds)
	assert.Equal(t, 0.05, conf.Trading.TargetProfit)
	assert.Equal(t, 50, conf.Learner.MinSamples)
}
