package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSelectorFixture(t *testing.T) (*SelectorService, *fakeExchange) {
	t.Helper()
	conf := newTestConfig()
	db := newTestDB(t)
	ex := newFakeExchange()
	featureService := NewFeatureService()
	learnerService := NewLearnerService(conf, db, featureService, testLogger())
	memoryService := NewMemoryService(conf, db, testLogger())
	selector := NewSelectorService(conf, ex, featureService, learnerService, memoryService, testLogger())
	// 冷启动阶段没有历史胜率分量，降低评分门槛便于断言
	selector.conf.ScoreThreshold = 50
	return selector, ex
}

func TestRecommendPicksOversoldCandidate(t *testing.T) {
	selector, ex := newSelectorFixture(t)

	ex.symbols = []string{"DOWNUSDT", "UPUSDT"}
	ex.setMarket("DOWNUSDT", declineKlines(100, 100))
	ex.setMarket("UPUSDT", riseKlines(100, 100))

	result, err := selector.Recommend(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scanned)
	assert.False(t, result.Degraded)
	require.Len(t, result.Candidates, 2)

	// 未达标的候选也参与排名，但不会被推荐
	assert.Equal(t, "UPUSDT", result.Candidates[1].Ticker)
	assert.False(t, result.Candidates[1].Recommended)

	candidate := result.Candidates[0]
	assert.Equal(t, "DOWNUSDT", candidate.Ticker)
	assert.True(t, candidate.Recommended)
	assert.GreaterOrEqual(t, candidate.Score, 50.0)
	assert.GreaterOrEqual(t, candidate.AIConfidence, 0.6)
	assert.GreaterOrEqual(t, candidate.IndicatorScore, 20.0)
	assert.InDelta(t, candidate.AIConfidence*40, candidate.AIScore, 1e-9)
	// 无历史交易时胜率分量为0
	assert.Equal(t, 0.0, candidate.WinRateScore)
	assert.LessOrEqual(t, candidate.VolumeVolatility, 10.0)
	assert.False(t, candidate.ComputedAt.IsZero())
	require.NotNil(t, candidate.Features)
	assert.Less(t, candidate.Features.RSI14, 30.0)
}

func TestRecommendSkipsUnknownSymbols(t *testing.T) {
	selector, ex := newSelectorFixture(t)

	// BADUSDT 无行情数据，应被跳过而非中断扫描
	ex.symbols = []string{"BADUSDT", "DOWNUSDT"}
	ex.setMarket("DOWNUSDT", declineKlines(100, 100))

	result, err := selector.Recommend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "DOWNUSDT", result.Candidates[0].Ticker)
}

func TestRecommendDeterministicOrdering(t *testing.T) {
	selector, ex := newSelectorFixture(t)

	// 行情完全相同，排序按名称保证可复现
	ex.symbols = []string{"BBBUSDT", "AAAUSDT"}
	ex.setMarket("AAAUSDT", declineKlines(100, 100))
	ex.setMarket("BBBUSDT", declineKlines(100, 100))

	result, err := selector.Recommend(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "AAAUSDT", result.Candidates[0].Ticker)
	assert.Equal(t, "BBBUSDT", result.Candidates[1].Ticker)
	assert.Equal(t, result.Candidates[0].Score, result.Candidates[1].Score)
}

func TestRecommendFallbackOnMarketFailure(t *testing.T) {
	selector, ex := newSelectorFixture(t)

	ex.listErr = errors.New("exchange unavailable")
	ex.setMarket("BTCUSDT", declineKlines(100, 100))

	// 兜底列表中只有BTCUSDT有行情，其余被跳过
	result, err := selector.Recommend(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, 1, result.Scanned)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "BTCUSDT", result.Candidates[0].Ticker)
}

func TestRecommendRespectsTopN(t *testing.T) {
	selector, ex := newSelectorFixture(t)
	selector.conf.TopN = 2

	symbols := []string{"AUSDT", "BUSDT", "CUSDT", "DUSDT"}
	ex.symbols = symbols
	for _, symbol := range symbols {
		ex.setMarket(symbol, declineKlines(100, 100))
	}

	result, err := selector.Recommend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Scanned)
	assert.Len(t, result.Candidates, 2)
}

func TestSnapshotCachedUntilRefresh(t *testing.T) {
	selector, ex := newSelectorFixture(t)
	ctx := context.Background()

	assert.Nil(t, selector.Snapshot())

	ex.symbols = []string{"DOWNUSDT"}
	ex.setMarket("DOWNUSDT", declineKlines(100, 100))

	first, err := selector.Recommend(ctx)
	require.NoError(t, err)
	require.Len(t, first.Candidates, 1)
	assert.Same(t, first, selector.Snapshot())

	// 行情变化后快照不变，Recommend返回缓存结果
	ex.setMarket("DOWNUSDT", riseKlines(100, 100))
	cached, err := selector.Recommend(ctx)
	require.NoError(t, err)
	assert.Same(t, first, cached)

	// 显式刷新后快照更新，上涨行情不再被推荐
	second, err := selector.Refresh(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	require.Len(t, second.Candidates, 1)
	assert.False(t, second.Candidates[0].Recommended)
	assert.Same(t, second, selector.Snapshot())
}
