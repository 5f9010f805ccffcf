package repo

import (
	"context"

	"github.com/dushixiang/evotrader/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewTradeRepo(db *gorm.DB) *TradeRepo {
	return &TradeRepo{
		Repository: orz.NewRepository[models.Trade, string](db),
	}
}

type TradeRepo struct {
	orz.Repository[models.Trade, string]
}

// FindOpenByTicker 查找指定交易对的未平仓交易
func (r TradeRepo) FindOpenByTicker(ctx context.Context, ticker string) (models.Trade, error) {
	var trade models.Trade
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("ticker = ? AND status = ?", ticker, models.TradeStatusOpen).
		First(&trade).Error
	return trade, err
}

// FindClosedOrdered 按平仓时间升序获取全部已平仓交易
func (r TradeRepo) FindClosedOrdered(ctx context.Context) ([]models.Trade, error) {
	var trades []models.Trade
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("status = ?", models.TradeStatusClosed).
		Order("exit_time ASC").
		Find(&trades).Error
	return trades, err
}

// CountClosed 已平仓交易总数
func (r TradeRepo) CountClosed(ctx context.Context) (int64, error) {
	var count int64
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("status = ?", models.TradeStatusClosed).
		Count(&count).Error
	return count, err
}

// CountClosedProfitable 已平仓盈利交易数
func (r TradeRepo) CountClosedProfitable(ctx context.Context) (int64, error) {
	var count int64
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("status = ? AND outcome = ?", models.TradeStatusClosed, models.OutcomeProfit).
		Count(&count).Error
	return count, err
}

// CountClosedByTicker 指定交易对的已平仓交易数
func (r TradeRepo) CountClosedByTicker(ctx context.Context, ticker string) (int64, error) {
	var count int64
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("ticker = ? AND status = ?", ticker, models.TradeStatusClosed).
		Count(&count).Error
	return count, err
}

// CountClosedProfitableByTicker 指定交易对的已平仓盈利交易数
func (r TradeRepo) CountClosedProfitableByTicker(ctx context.Context, ticker string) (int64, error) {
	var count int64
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("ticker = ? AND status = ? AND outcome = ?", ticker, models.TradeStatusClosed, models.OutcomeProfit).
		Count(&count).Error
	return count, err
}

// FindRecent 获取最近的交易记录
func (r TradeRepo) FindRecent(ctx context.Context, limit int) ([]models.Trade, error) {
	var trades []models.Trade
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Order("entry_time DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

// MaxClosedProfitRate 已平仓交易的最高收益率
func (r TradeRepo) MaxClosedProfitRate(ctx context.Context) (float64, error) {
	var max float64
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("status = ?", models.TradeStatusClosed).
		Select("COALESCE(MAX(profit_rate), 0)").
		Scan(&max).Error
	return max, err
}

// MinClosedProfitRate 已平仓交易的最低收益率
func (r TradeRepo) MinClosedProfitRate(ctx context.Context) (float64, error) {
	var min float64
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("status = ?", models.TradeStatusClosed).
		Select("COALESCE(MIN(profit_rate), 0)").
		Scan(&min).Error
	return min, err
}

// SumClosedProfitRate 已平仓交易收益率之和
func (r TradeRepo) SumClosedProfitRate(ctx context.Context) (float64, error) {
	var total float64
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("status = ?", models.TradeStatusClosed).
		Select("COALESCE(SUM(profit_rate), 0)").
		Scan(&total).Error
	return total, err
}
