package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubMarket struct {
	prices map[string]float64
}

func (s *stubMarket) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*Kline, error) {
	return nil, nil
}

func (s *stubMarket) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	price, ok := s.prices[symbol]
	if !ok {
		return 0, ErrUnknownSymbol
	}
	return price, nil
}

func (s *stubMarket) ListSymbols(ctx context.Context, quote string, limit int) ([]string, error) {
	return nil, nil
}

func newTestWallet(balance float64) (*PaperWallet, *stubMarket) {
	market := &stubMarket{prices: map[string]float64{"BTCUSDT": 50000}}
	return NewPaperWallet(market, balance, zap.NewNop()), market
}

func TestPaperWalletBuySell(t *testing.T) {
	wallet, market := newTestWallet(1000)
	ctx := context.Background()

	receipt, err := wallet.BuyMarket(ctx, "BTCUSDT", 500)
	require.NoError(t, err)
	assert.Equal(t, OrderSideBuy, receipt.Side)
	assert.Equal(t, 50000.0, receipt.Price)
	assert.InDelta(t, 0.01, receipt.Quantity, 1e-9)
	assert.Equal(t, 500.0, wallet.Balance())
	assert.InDelta(t, 0.01, wallet.Holdings()["BTCUSDT"], 1e-9)

	balances, err := wallet.Balances(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500.0, balances["USDT"])
	assert.InDelta(t, 0.01, balances["BTCUSDT"], 1e-9)

	// 价格上涨后卖出
	market.prices["BTCUSDT"] = 55000
	sellReceipt, err := wallet.SellMarket(ctx, "BTCUSDT", receipt.Quantity)
	require.NoError(t, err)
	assert.Equal(t, OrderSideSell, sellReceipt.Side)
	assert.InDelta(t, 1050.0, wallet.Balance(), 1e-6)
	assert.Empty(t, wallet.Holdings())
	assert.Greater(t, sellReceipt.OrderID, receipt.OrderID)
}

func TestPaperWalletInsufficientBalance(t *testing.T) {
	wallet, _ := newTestWallet(100)

	_, err := wallet.BuyMarket(context.Background(), "BTCUSDT", 500)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, 100.0, wallet.Balance())
}

func TestPaperWalletSellWithoutPosition(t *testing.T) {
	wallet, _ := newTestWallet(1000)

	_, err := wallet.SellMarket(context.Background(), "BTCUSDT", 1)
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestPaperWalletSellClampsToHolding(t *testing.T) {
	wallet, _ := newTestWallet(1000)
	ctx := context.Background()

	receipt, err := wallet.BuyMarket(ctx, "BTCUSDT", 500)
	require.NoError(t, err)

	// 请求数量超过持仓时按实际持仓成交
	sellReceipt, err := wallet.SellMarket(ctx, "BTCUSDT", receipt.Quantity*2)
	require.NoError(t, err)
	assert.InDelta(t, receipt.Quantity, sellReceipt.Quantity, 1e-9)
	assert.Empty(t, wallet.Holdings())
}

func TestPaperWalletReset(t *testing.T) {
	wallet, _ := newTestWallet(1000)
	ctx := context.Background()

	_, err := wallet.BuyMarket(ctx, "BTCUSDT", 500)
	require.NoError(t, err)

	wallet.Reset()
	assert.Equal(t, 1000.0, wallet.Balance())
	assert.Empty(t, wallet.Holdings())
}

func TestPaperWalletUnknownSymbol(t *testing.T) {
	wallet, _ := newTestWallet(1000)

	_, err := wallet.BuyMarket(context.Background(), "NOPEUSDT", 100)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}
