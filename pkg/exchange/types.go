package exchange

import (
	"errors"
	"time"
)

// 通用现货交易类型定义，独立于任何特定交易所

// Kline K线数据
type Kline struct {
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CloseTime time.Time `json:"close_time"`
}

// OrderSide 订单方向
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

func (s OrderSide) String() string {
	return string(s)
}

// Receipt 订单回执
type Receipt struct {
	OrderID       int64     `json:"order_id"`
	ClientOrderID string    `json:"client_order_id"` // 幂等键，重试复用同一个
	Symbol        string    `json:"symbol"`
	Side          OrderSide `json:"side"`
	Price         float64   `json:"price"`    // 成交均价
	Quantity      float64   `json:"quantity"` // 成交数量
	Notional      float64   `json:"notional"` // 成交金额
	ExecutedAt    time.Time `json:"executed_at"`
}

// 错误定义：未知交易对与临时网络故障必须可区分，
// 调用方对两者都按跳过当前周期处理，但日志与统计不同
var (
	ErrUnknownSymbol       = errors.New("exchange: unknown symbol")
	ErrOrderRejected       = errors.New("exchange: order rejected")
	ErrInsufficientBalance = errors.New("exchange: insufficient balance")
	ErrNoPosition          = errors.New("exchange: no position to close")
)
