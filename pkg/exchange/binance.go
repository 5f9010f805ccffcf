package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
)

const (
	requestTimeout = 10 * time.Second
	maxAttempts    = 3

	// Binance错误码
	codeInvalidSymbol = -1121
)

// BinanceClient Binance现货API客户端
//
// 所有外部调用都带有限定超时与有限次重试（指数退避），
// 下单时使用客户端订单ID作为幂等键，重试不会重复成交。
type BinanceClient struct {
	client *binance.Client
}

// NewBinanceClient 创建Binance客户端
func NewBinanceClient(apiKey, secretKey, proxyURL string, testnet bool) *BinanceClient {
	var client *binance.Client
	if proxyURL != "" {
		client = binance.NewProxiedClient(apiKey, secretKey, proxyURL)
	} else {
		client = binance.NewClient(apiKey, secretKey)
	}

	if testnet {
		binance.UseTestnet = true
	}

	return &BinanceClient{client: client}
}

// retry 带退避的有限次重试，只重试临时性故障
func retry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		err = fn(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		// 交易所明确拒绝的请求重试没有意义
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			return err
		}
		select {
		case <-time.After(b.Duration()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// wrapSymbolErr 将交易所的未知交易对错误映射为可识别的哨兵错误
func wrapSymbolErr(symbol string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeInvalidSymbol {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return err
}

// GetKlines 获取K线数据
func (b *BinanceClient) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*Kline, error) {
	var klines []*binance.Kline
	err := retry(ctx, func(ctx context.Context) error {
		var err error
		klines, err = b.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", wrapSymbolErr(symbol, err))
	}

	result := make([]*Kline, 0, len(klines))
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		result = append(result, &Kline{
			OpenTime:  time.Unix(k.OpenTime/1000, 0),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			CloseTime: time.Unix(k.CloseTime/1000, 0),
		})
	}

	return result, nil
}

// GetCurrentPrice 获取当前价格
func (b *BinanceClient) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	var prices []*binance.SymbolPrice
	err := retry(ctx, func(ctx context.Context) error {
		var err error
		prices, err = b.client.NewListPricesService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get current price: %w", wrapSymbolErr(symbol, err))
	}

	if len(prices) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	price, _ := strconv.ParseFloat(prices[0].Price, 64)
	return price, nil
}

// ListSymbols 按24小时成交额取前 limit 个计价货币为 quote 的交易对
func (b *BinanceClient) ListSymbols(ctx context.Context, quote string, limit int) ([]string, error) {
	var stats []*binance.PriceChangeStats
	err := retry(ctx, func(ctx context.Context) error {
		var err error
		stats, err = b.client.NewListPriceChangeStatsService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}

	type volSymbol struct {
		symbol string
		volume float64
	}
	candidates := make([]volSymbol, 0, limit)
	for _, s := range stats {
		if len(s.Symbol) <= len(quote) || s.Symbol[len(s.Symbol)-len(quote):] != quote {
			continue
		}
		qv, _ := strconv.ParseFloat(s.QuoteVolume, 64)
		candidates = append(candidates, volSymbol{symbol: s.Symbol, volume: qv})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].volume != candidates[j].volume {
			return candidates[i].volume > candidates[j].volume
		}
		return candidates[i].symbol < candidates[j].symbol
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	symbols := make([]string, 0, len(candidates))
	for _, c := range candidates {
		symbols = append(symbols, c.symbol)
	}
	return symbols, nil
}

// Balances 账户各资产余额（free+locked，为零的资产省略）
func (b *BinanceClient) Balances(ctx context.Context) (map[string]float64, error) {
	var account *binance.Account
	err := retry(ctx, func(ctx context.Context) error {
		var err error
		account, err = b.client.NewGetAccountService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	result := make(map[string]float64)
	for _, balance := range account.Balances {
		free, _ := strconv.ParseFloat(balance.Free, 64)
		locked, _ := strconv.ParseFloat(balance.Locked, 64)
		if free+locked > 0 {
			result[balance.Asset] = free + locked
		}
	}
	return result, nil
}

// BuyMarket 市价买入，金额为计价货币
func (b *BinanceClient) BuyMarket(ctx context.Context, symbol string, notional float64) (*Receipt, error) {
	// 幂等键在重试之间保持不变，重复提交会被交易所去重
	clientOrderID := uuid.NewString()
	notionalStr := strconv.FormatFloat(notional, 'f', 8, 64)

	var order *binance.CreateOrderResponse
	err := retry(ctx, func(ctx context.Context) error {
		var err error
		order, err = b.client.NewCreateOrderService().
			Symbol(symbol).
			Side(binance.SideTypeBuy).
			Type(binance.OrderTypeMarket).
			QuoteOrderQty(notionalStr).
			NewClientOrderID(clientOrderID).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderRejected, wrapSymbolErr(symbol, err))
	}

	return buildReceipt(order, clientOrderID, OrderSideBuy), nil
}

// SellMarket 市价卖出，数量为基础货币
func (b *BinanceClient) SellMarket(ctx context.Context, symbol string, quantity float64) (*Receipt, error) {
	clientOrderID := uuid.NewString()
	quantityStr := strconv.FormatFloat(quantity, 'f', 8, 64)

	var order *binance.CreateOrderResponse
	err := retry(ctx, func(ctx context.Context) error {
		var err error
		order, err = b.client.NewCreateOrderService().
			Symbol(symbol).
			Side(binance.SideTypeSell).
			Type(binance.OrderTypeMarket).
			Quantity(quantityStr).
			NewClientOrderID(clientOrderID).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderRejected, wrapSymbolErr(symbol, err))
	}

	return buildReceipt(order, clientOrderID, OrderSideSell), nil
}

func buildReceipt(order *binance.CreateOrderResponse, clientOrderID string, side OrderSide) *Receipt {
	executedQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	quoteQty, _ := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)

	avgPrice := 0.0
	if executedQty > 0 {
		avgPrice = quoteQty / executedQty
	}

	return &Receipt{
		OrderID:       order.OrderID,
		ClientOrderID: clientOrderID,
		Symbol:        order.Symbol,
		Side:          side,
		Price:         avgPrice,
		Quantity:      executedQty,
		Notional:      quoteQty,
		ExecutedAt:    time.Unix(order.TransactTime/1000, 0),
	}
}
