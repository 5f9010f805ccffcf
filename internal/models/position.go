package models

import (
	"time"
)

// Position 持仓信息
//
// 现货多头持仓，一个交易对同一时刻至多一条记录。
// 进程重启后从数据库恢复，持仓状态不依赖内存。
type Position struct {
	ID          string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Ticker      string    `gorm:"type:varchar(20);not null;uniqueIndex" json:"ticker"` // 交易对
	EntryPrice  float64   `gorm:"type:decimal(20,8);not null" json:"entry_price"`      // 开仓价格
	Quantity    float64   `gorm:"type:decimal(20,8);not null" json:"quantity"`         // 持仓数量
	TargetPrice float64   `gorm:"type:decimal(20,8)" json:"target_price"`              // 止盈价格
	StopPrice   float64   `gorm:"type:decimal(20,8)" json:"stop_price"`                // 止损价格
	TradeID     string    `gorm:"type:varchar(26);index" json:"trade_id"`              // 关联交易记录
	OpenedAt    time.Time `gorm:"not null" json:"opened_at"`                           // 开仓时间
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (*Position) TableName() string {
	return "positions"
}

// ProfitRate 按当前价格计算的收益率
func (p *Position) ProfitRate(currentPrice float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (currentPrice - p.EntryPrice) / p.EntryPrice
}

// Notional 按当前价格计算的市值
func (p *Position) Notional(currentPrice float64) float64 {
	return p.Quantity * currentPrice
}
