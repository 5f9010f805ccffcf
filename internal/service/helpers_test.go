package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dushixiang/evotrader/internal/config"
	"github.com/dushixiang/evotrader/internal/models"
	"github.com/dushixiang/evotrader/pkg/exchange"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		models.Trade{}, models.Position{}, models.ModelArtifact{},
	))
	return db
}

func newTestConfig() *config.Config {
	conf := &config.Config{}
	conf.Normalize()
	conf.Learner.MinSamples = 5
	conf.Selector.CandidateLimit = 10
	return conf
}

// declineKlines 持续下跌的K线，末端超卖
func declineKlines(n int, start float64) []*exchange.Kline {
	return buildKlines(n, start, func(price float64, i int) float64 {
		return price * 0.99
	})
}

// riseKlines 持续上涨的K线
func riseKlines(n int, start float64) []*exchange.Kline {
	return buildKlines(n, start, func(price float64, i int) float64 {
		return price * 1.01
	})
}

// spikeKlines 缓涨后末端跳涨，价格突破布林带上轨
func spikeKlines(n int, start float64) []*exchange.Kline {
	return buildKlines(n, start, func(price float64, i int) float64 {
		if i == n-1 {
			return price * 1.10
		}
		return price * 1.002
	})
}

func buildKlines(n int, start float64, next func(price float64, i int) float64) []*exchange.Kline {
	klines := make([]*exchange.Kline, n)
	price := start
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price = next(price, i)
		openTime := base.Add(time.Duration(i) * time.Hour)
		klines[i] = &exchange.Kline{
			OpenTime:  openTime,
			Open:      price,
			High:      price * 1.005,
			Low:       price * 0.995,
			Close:     price,
			Volume:    1000,
			CloseTime: openTime.Add(time.Hour),
		}
	}
	return klines
}

// fakeExchange 内存交易所，价格和K线可编程
type fakeExchange struct {
	mu      sync.Mutex
	prices  map[string]float64
	klines  map[string][]*exchange.Kline
	symbols []string
	listErr error
	orderID int64
	buys    []*exchange.Receipt
	sells   []*exchange.Receipt

	// 可选阻塞点：GetKlines进入后通知并等待放行，用于构造并发场景
	klinesEntered chan struct{}
	klinesRelease chan struct{}
}

var _ exchange.Exchange = (*fakeExchange)(nil)

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		prices: make(map[string]float64),
		klines: make(map[string][]*exchange.Kline),
	}
}

func (f *fakeExchange) setMarket(ticker string, klines []*exchange.Kline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.klines[ticker] = klines
	f.prices[ticker] = klines[len(klines)-1].Close
}

func (f *fakeExchange) setPrice(ticker string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[ticker] = price
}

func (f *fakeExchange) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*exchange.Kline, error) {
	f.mu.Lock()
	entered, release := f.klinesEntered, f.klinesRelease
	klines, ok := f.klines[symbol]
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if !ok {
		return nil, exchange.ErrUnknownSymbol
	}
	return klines, nil
}

func (f *fakeExchange) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.prices[symbol]
	if !ok {
		return 0, exchange.ErrUnknownSymbol
	}
	return price, nil
}

func (f *fakeExchange) ListSymbols(ctx context.Context, quote string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.symbols, nil
}

func (f *fakeExchange) Balances(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{"USDT": 1000}, nil
}

func (f *fakeExchange) BuyMarket(ctx context.Context, symbol string, notional float64) (*exchange.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.prices[symbol]
	if !ok {
		return nil, exchange.ErrUnknownSymbol
	}
	f.orderID++
	receipt := &exchange.Receipt{
		OrderID:       f.orderID,
		ClientOrderID: fmt.Sprintf("fake-%d", f.orderID),
		Symbol:        symbol,
		Side:          exchange.OrderSideBuy,
		Price:         price,
		Quantity:      notional / price,
		Notional:      notional,
		ExecutedAt:    time.Now(),
	}
	f.buys = append(f.buys, receipt)
	return receipt, nil
}

func (f *fakeExchange) SellMarket(ctx context.Context, symbol string, quantity float64) (*exchange.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.prices[symbol]
	if !ok {
		return nil, exchange.ErrUnknownSymbol
	}
	f.orderID++
	receipt := &exchange.Receipt{
		OrderID:       f.orderID,
		ClientOrderID: fmt.Sprintf("fake-%d", f.orderID),
		Symbol:        symbol,
		Side:          exchange.OrderSideSell,
		Price:         price,
		Quantity:      quantity,
		Notional:      quantity * price,
		ExecutedAt:    time.Now(),
	}
	f.sells = append(f.sells, receipt)
	return receipt, nil
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
