package service

import (
	"context"
	"testing"
	"time"

	"github.com/dushixiang/evotrader/internal/models"
	"github.com/dushixiang/evotrader/pkg/exchange"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryService(t *testing.T) *MemoryService {
	t.Helper()
	return NewMemoryService(newTestConfig(), newTestDB(t), testLogger())
}

func entryReceipt(price float64) *exchange.Receipt {
	return &exchange.Receipt{
		Price:      price,
		Quantity:   1.5,
		ExecutedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func exitReceipt(price float64) *exchange.Receipt {
	return &exchange.Receipt{
		Price:      price,
		Quantity:   1.5,
		ExecutedAt: time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC),
	}
}

func testFeatures(t *testing.T) *FeatureVector {
	t.Helper()
	fv, err := NewFeatureService().Extract(declineKlines(100, 100))
	require.NoError(t, err)
	return fv
}

func TestRecordEntryCreatesTradeAndPosition(t *testing.T) {
	s := newMemoryService(t)
	ctx := context.Background()

	trade, err := s.RecordEntry(ctx, "BTCUSDT", entryReceipt(100), testFeatures(t), 0.8, 102, 98)
	require.NoError(t, err)

	assert.NotEmpty(t, trade.ID)
	assert.Equal(t, models.TradeStatusOpen, trade.Status)
	assert.Equal(t, 0.8, trade.Confidence)

	position, err := s.FindPosition(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, position)
	assert.Equal(t, trade.ID, position.TradeID)
	assert.Equal(t, 102.0, position.TargetPrice)
	assert.Equal(t, 98.0, position.StopPrice)
}

func TestRecordEntryRejectsDuplicatePosition(t *testing.T) {
	s := newMemoryService(t)
	ctx := context.Background()

	_, err := s.RecordEntry(ctx, "BTCUSDT", entryReceipt(100), testFeatures(t), 0.8, 102, 98)
	require.NoError(t, err)

	_, err = s.RecordEntry(ctx, "BTCUSDT", entryReceipt(101), testFeatures(t), 0.7, 103, 99)
	assert.ErrorIs(t, err, ErrPositionExists)
}

func TestRecordExitProfitLabel(t *testing.T) {
	s := newMemoryService(t)
	ctx := context.Background()

	opened, err := s.RecordEntry(ctx, "BTCUSDT", entryReceipt(100), testFeatures(t), 0.8, 102, 98)
	require.NoError(t, err)

	trade, err := s.RecordExit(ctx, opened.ID, exitReceipt(102), "target_profit")
	require.NoError(t, err)

	assert.Equal(t, models.TradeStatusClosed, trade.Status)
	assert.Equal(t, models.OutcomeProfit, trade.Outcome)
	assert.InDelta(t, 0.02, trade.ProfitRate, 1e-9)
	assert.Equal(t, "target_profit", trade.ExitReason)
	require.NotNil(t, trade.ExitTime)

	// 持仓已清除
	position, err := s.FindPosition(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, position)
}

func TestRecordExitFeeAdjustedLabel(t *testing.T) {
	s := newMemoryService(t)
	ctx := context.Background()

	// 毛收益0.1%，不足以覆盖双边0.1%手续费，记为亏损
	opened, err := s.RecordEntry(ctx, "BTCUSDT", entryReceipt(100), testFeatures(t), 0.8, 102, 98)
	require.NoError(t, err)

	trade, err := s.RecordExit(ctx, opened.ID, exitReceipt(100.1), "overbought")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeLoss, trade.Outcome)
	assert.Positive(t, trade.ProfitRate)
}

func TestRecordExitLossLabel(t *testing.T) {
	s := newMemoryService(t)
	ctx := context.Background()

	opened, err := s.RecordEntry(ctx, "BTCUSDT", entryReceipt(100), testFeatures(t), 0.8, 102, 98)
	require.NoError(t, err)

	trade, err := s.RecordExit(ctx, opened.ID, exitReceipt(98), "stop_loss")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeLoss, trade.Outcome)
	assert.InDelta(t, -0.02, trade.ProfitRate, 1e-9)
}

func TestRecordExitWithoutOpenTrade(t *testing.T) {
	s := newMemoryService(t)
	ctx := context.Background()

	// 不存在的交易
	_, err := s.RecordExit(ctx, ulid.Make().String(), exitReceipt(100), "stop_loss")
	assert.ErrorIs(t, err, ErrInvalidState)

	// 平仓后再次平仓同样报错
	opened, err := s.RecordEntry(ctx, "BTCUSDT", entryReceipt(100), testFeatures(t), 0.8, 102, 98)
	require.NoError(t, err)
	_, err = s.RecordExit(ctx, opened.ID, exitReceipt(102), "target_profit")
	require.NoError(t, err)
	_, err = s.RecordExit(ctx, opened.ID, exitReceipt(102), "target_profit")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestWinRateAndStatistics(t *testing.T) {
	s := newMemoryService(t)
	ctx := context.Background()

	// 无记录时胜率为0
	winRate, err := s.WinRate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, winRate)

	closeTrade := func(ticker string, exitPrice float64) {
		opened, err := s.RecordEntry(ctx, ticker, entryReceipt(100), testFeatures(t), 0.8, 102, 98)
		require.NoError(t, err)
		_, err = s.RecordExit(ctx, opened.ID, exitReceipt(exitPrice), "test")
		require.NoError(t, err)
	}

	closeTrade("AAAUSDT", 102) // 盈利
	closeTrade("BBBUSDT", 103) // 盈利
	closeTrade("CCCUSDT", 97)  // 亏损

	winRate, err = s.WinRate(ctx, "")
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, winRate, 1e-9)

	// 按交易对统计
	winRate, err = s.WinRate(ctx, "AAAUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1.0, winRate)
	winRate, err = s.WinRate(ctx, "CCCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.0, winRate)
	winRate, err = s.WinRate(ctx, "NONEUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.0, winRate)

	stats, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.ClosedTrades)
	assert.Equal(t, int64(2), stats.ProfitableCount)
	assert.InDelta(t, 0.02, stats.TotalProfitRate, 1e-9)
	assert.InDelta(t, 0.03, stats.MaxProfitRate, 1e-9)
	assert.InDelta(t, -0.03, stats.MinProfitRate, 1e-9)

	count, err := s.ClosedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestTrainingSet(t *testing.T) {
	s := newMemoryService(t)
	ctx := context.Background()

	opened, err := s.RecordEntry(ctx, "BTCUSDT", entryReceipt(100), testFeatures(t), 0.8, 102, 98)
	require.NoError(t, err)
	_, err = s.RecordExit(ctx, opened.ID, exitReceipt(102), "target_profit")
	require.NoError(t, err)

	// 未平仓的交易不进入样本集
	_, err = s.RecordEntry(ctx, "ETHUSDT", entryReceipt(50), testFeatures(t), 0.7, 51, 49)
	require.NoError(t, err)

	samples, err := s.TrainingSet(ctx)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, models.OutcomeProfit, samples[0].Label)
	assert.Len(t, samples[0].Features, FeatureDim())
}
