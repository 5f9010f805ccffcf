package models

import (
	"time"

	"gorm.io/datatypes"
)

// 交易状态
const (
	TradeStatusOpen   = "open"   // 持仓中
	TradeStatusClosed = "closed" // 已平仓
)

// 交易结果标签
const (
	OutcomeLoss   = 0 // 亏损（扣除手续费后）
	OutcomeProfit = 1 // 盈利（扣除手续费后）
)

// Trade 交易记录（学习样本）
//
// 每笔交易入场时创建，出场时补全退出字段并打上盈亏标签，
// 已平仓的记录构成模型重训练的样本集。
type Trade struct {
	ID         string         `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Ticker     string         `gorm:"type:varchar(20);not null;index" json:"ticker"` // 交易对
	EntryTime  time.Time      `gorm:"not null;index" json:"entry_time"`              // 入场时间
	EntryPrice float64        `gorm:"type:decimal(20,8);not null" json:"entry_price"`
	ExitTime   *time.Time     `json:"exit_time,omitempty"` // 出场时间（持仓中为空）
	ExitPrice  float64        `gorm:"type:decimal(20,8)" json:"exit_price"`
	Quantity   float64        `gorm:"type:decimal(20,8);not null" json:"quantity"`
	Features   datatypes.JSON `gorm:"not null" json:"features"`               // 入场时刻的特征向量
	Confidence float64        `json:"confidence"`                             // 入场时模型置信度
	ProfitRate float64        `gorm:"type:decimal(20,8)" json:"profit_rate"` // 收益率（出场时计算）
	Outcome    int            `gorm:"default:0" json:"outcome"`               // 0=亏损 1=盈利
	ExitReason string         `gorm:"type:varchar(32)" json:"exit_reason"`    // 出场原因
	Status     string         `gorm:"type:varchar(10);not null;index" json:"status"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Trade) TableName() string {
	return "trades"
}

// Closed 是否已平仓
func (t *Trade) Closed() bool {
	return t.Status == TradeStatusClosed
}
