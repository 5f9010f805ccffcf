package exchange

import "context"

// Exchange 交易所接口，核心只依赖这组最小能力
// 现货语义：买入按计价货币金额（notional），卖出按持仓数量
type Exchange interface {
	// 市场数据
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*Kline, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)

	// 候选交易对（按计价货币成交额排序）
	ListSymbols(ctx context.Context, quote string, limit int) ([]string, error)

	// 账户资产余额（资产 -> 数量）
	Balances(ctx context.Context) (map[string]float64, error)

	// 订单操作
	BuyMarket(ctx context.Context, symbol string, notional float64) (*Receipt, error)
	SellMarket(ctx context.Context, symbol string, quantity float64) (*Receipt, error)
}
