package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MarketData 行情数据来源（纸钱包复用真实行情）
type MarketData interface {
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*Kline, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	ListSymbols(ctx context.Context, quote string, limit int) ([]string, error)
}

// PaperWallet 纸钱包（模拟现货交易）
//
// 行情来自真实数据源，订单在内存中立即以当前价成交。
// 默认部署模式，真实下单需要显式开启配置开关。
type PaperWallet struct {
	market MarketData
	logger *zap.Logger

	balance        float64            // 计价货币余额
	initialBalance float64            // 初始余额
	holdings       map[string]float64 // symbol -> 持仓数量
	orderID        int64              // 模拟订单ID计数器
	mu             sync.RWMutex
}

var _ Exchange = (*PaperWallet)(nil)

// NewPaperWallet 创建纸钱包
func NewPaperWallet(market MarketData, initialBalance float64, logger *zap.Logger) *PaperWallet {
	return &PaperWallet{
		market:         market,
		logger:         logger,
		balance:        initialBalance,
		initialBalance: initialBalance,
		holdings:       make(map[string]float64),
		orderID:        1000000, // 模拟订单ID从1000000开始
	}
}

// GetKlines 获取K线数据（真实行情）
func (p *PaperWallet) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*Kline, error) {
	return p.market.GetKlines(ctx, symbol, interval, limit)
}

// GetCurrentPrice 获取当前价格（真实行情）
func (p *PaperWallet) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return p.market.GetCurrentPrice(ctx, symbol)
}

// ListSymbols 获取候选交易对（真实行情）
func (p *PaperWallet) ListSymbols(ctx context.Context, quote string, limit int) ([]string, error) {
	return p.market.ListSymbols(ctx, quote, limit)
}

// BuyMarket 模拟市价买入
func (p *PaperWallet) BuyMarket(ctx context.Context, symbol string, notional float64) (*Receipt, error) {
	price, err := p.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get current price: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if notional > p.balance {
		return nil, fmt.Errorf("%w: required %.2f, available %.2f", ErrInsufficientBalance, notional, p.balance)
	}

	quantity := notional / price
	p.balance -= notional
	p.holdings[symbol] += quantity
	p.orderID++

	p.logger.Info("paper wallet: buy order filled",
		zap.String("symbol", symbol),
		zap.Float64("price", price),
		zap.Float64("quantity", quantity),
		zap.Float64("notional", notional),
		zap.Int64("order_id", p.orderID))

	return &Receipt{
		OrderID:       p.orderID,
		ClientOrderID: fmt.Sprintf("paper-%d", p.orderID),
		Symbol:        symbol,
		Side:          OrderSideBuy,
		Price:         price,
		Quantity:      quantity,
		Notional:      notional,
		ExecutedAt:    time.Now(),
	}, nil
}

// SellMarket 模拟市价卖出
func (p *PaperWallet) SellMarket(ctx context.Context, symbol string, quantity float64) (*Receipt, error) {
	price, err := p.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get current price: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	held := p.holdings[symbol]
	if held <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}
	if quantity > held {
		quantity = held
	}

	notional := quantity * price
	p.balance += notional
	if quantity >= held {
		delete(p.holdings, symbol)
	} else {
		p.holdings[symbol] = held - quantity
	}
	p.orderID++

	p.logger.Info("paper wallet: sell order filled",
		zap.String("symbol", symbol),
		zap.Float64("price", price),
		zap.Float64("quantity", quantity),
		zap.Float64("notional", notional),
		zap.Int64("order_id", p.orderID))

	return &Receipt{
		OrderID:       p.orderID,
		ClientOrderID: fmt.Sprintf("paper-%d", p.orderID),
		Symbol:        symbol,
		Side:          OrderSideSell,
		Price:         price,
		Quantity:      quantity,
		Notional:      notional,
		ExecutedAt:    time.Now(),
	}, nil
}

// paperQuoteAsset 纸钱包的计价资产名称
const paperQuoteAsset = "USDT"

// Balances 账户余额快照：计价资产余额加各交易对持仓数量
func (p *PaperWallet) Balances(ctx context.Context) (map[string]float64, error) {
	result := p.Holdings()
	result[paperQuoteAsset] = p.Balance()
	return result, nil
}

// Balance 当前计价货币余额
func (p *PaperWallet) Balance() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balance
}

// Holdings 当前持仓快照
func (p *PaperWallet) Holdings() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make(map[string]float64, len(p.holdings))
	for symbol, quantity := range p.holdings {
		result[symbol] = quantity
	}
	return result
}

// Reset 重置纸钱包到初始状态
func (p *PaperWallet) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.balance = p.initialBalance
	p.holdings = make(map[string]float64)

	p.logger.Info("paper wallet reset to initial state",
		zap.Float64("initial_balance", p.initialBalance))
}
