package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dushixiang/evotrader/internal/config"
	"github.com/dushixiang/evotrader/internal/models"
	"github.com/dushixiang/evotrader/internal/repo"
	"github.com/dushixiang/evotrader/pkg/exchange"
	"github.com/go-orz/orz"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrPositionExists = errors.New("position already exists for ticker")
	ErrInvalidState   = errors.New("trade is not in an open state")
)

// TrainingSample 训练样本（已平仓交易的特征与盈亏标签）
type TrainingSample struct {
	Features []float64
	Label    int
}

// TradeStatistics 交易统计
type TradeStatistics struct {
	TotalTrades     int64   `json:"total_trades"`
	ClosedTrades    int64   `json:"closed_trades"`
	ProfitableCount int64   `json:"profitable_count"`
	WinRate         float64 `json:"win_rate"`
	TotalProfitRate float64 `json:"total_profit_rate"`
	AvgProfitRate   float64 `json:"avg_profit_rate"`
	MaxProfitRate   float64 `json:"max_profit_rate"`
	MinProfitRate   float64 `json:"min_profit_rate"`
}

// MemoryService 交易记忆服务
//
// 持久化每笔交易的入场特征与出场结果，
// 平仓时按扣费后收益打标签，为模型重训练提供样本集。
type MemoryService struct {
	logger  *zap.Logger
	feeRate float64

	*orz.Service
	*repo.TradeRepo

	positionRepo *repo.PositionRepo
}

// NewMemoryService 创建交易记忆服务
func NewMemoryService(conf *config.Config, db *gorm.DB, logger *zap.Logger) *MemoryService {
	return &MemoryService{
		logger:       logger,
		feeRate:      conf.Trading.FeeRate,
		Service:      orz.NewService(db),
		TradeRepo:    repo.NewTradeRepo(db),
		positionRepo: repo.NewPositionRepo(db),
	}
}

// RecordEntry 记录入场，创建交易记录和持仓
func (s *MemoryService) RecordEntry(ctx context.Context, ticker string, receipt *exchange.Receipt, features *FeatureVector, confidence float64, targetPrice, stopPrice float64) (*models.Trade, error) {
	exists, err := s.positionRepo.ExistsByTicker(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing position: %w", err)
	}
	if exists {
		return nil, ErrPositionExists
	}

	featureJSON, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal features: %w", err)
	}

	trade := models.Trade{
		ID:         ulid.Make().String(),
		Ticker:     ticker,
		EntryTime:  receipt.ExecutedAt,
		EntryPrice: receipt.Price,
		Quantity:   receipt.Quantity,
		Features:   featureJSON,
		Confidence: confidence,
		Status:     models.TradeStatusOpen,
	}

	position := models.Position{
		ID:          ulid.Make().String(),
		Ticker:      ticker,
		EntryPrice:  receipt.Price,
		Quantity:    receipt.Quantity,
		TargetPrice: targetPrice,
		StopPrice:   stopPrice,
		TradeID:     trade.ID,
		OpenedAt:    receipt.ExecutedAt,
	}

	err = s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.TradeRepo.Create(ctx, &trade); err != nil {
			return err
		}
		return s.positionRepo.Create(ctx, &position)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record entry: %w", err)
	}

	s.logger.Info("trade entry recorded",
		zap.String("trade_id", trade.ID),
		zap.String("ticker", ticker),
		zap.Float64("entry_price", trade.EntryPrice),
		zap.Float64("quantity", trade.Quantity),
		zap.Float64("confidence", confidence))
	return &trade, nil
}

// RecordExit 记录出场，关闭交易并打上盈亏标签
//
// 每笔交易只能平仓一次，重复调用返回 ErrInvalidState。
// 标签规则：扣除双边手续费后收益为正记为盈利。
func (s *MemoryService) RecordExit(ctx context.Context, tradeID string, receipt *exchange.Receipt, reason string) (*models.Trade, error) {
	trade, err := s.TradeRepo.FindById(ctx, tradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to find trade: %w", err)
	}
	if trade.Status != models.TradeStatusOpen {
		return nil, ErrInvalidState
	}

	profitRate := 0.0
	if trade.EntryPrice > 0 {
		profitRate = (receipt.Price - trade.EntryPrice) / trade.EntryPrice
	}

	outcome := models.OutcomeLoss
	if profitRate > 2*s.feeRate {
		outcome = models.OutcomeProfit
	}

	exitTime := receipt.ExecutedAt
	trade.ExitTime = &exitTime
	trade.ExitPrice = receipt.Price
	trade.ProfitRate = profitRate
	trade.Outcome = outcome
	trade.ExitReason = reason
	trade.Status = models.TradeStatusClosed

	err = s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.TradeRepo.Save(ctx, &trade); err != nil {
			return err
		}
		position, err := s.positionRepo.FindByTicker(ctx, trade.Ticker)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		return s.positionRepo.DeleteById(ctx, position.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record exit: %w", err)
	}

	s.logger.Info("trade exit recorded",
		zap.String("trade_id", trade.ID),
		zap.String("ticker", trade.Ticker),
		zap.Float64("exit_price", trade.ExitPrice),
		zap.Float64("profit_rate", profitRate),
		zap.Int("outcome", outcome),
		zap.String("reason", reason))
	return &trade, nil
}

// TrainingSet 已平仓交易构成的训练样本集（按平仓时间升序）
func (s *MemoryService) TrainingSet(ctx context.Context) ([]TrainingSample, error) {
	trades, err := s.TradeRepo.FindClosedOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load closed trades: %w", err)
	}

	samples := make([]TrainingSample, 0, len(trades))
	for _, trade := range trades {
		var fv FeatureVector
		if err := json.Unmarshal(trade.Features, &fv); err != nil {
			s.logger.Warn("skip trade with malformed features",
				zap.String("trade_id", trade.ID), zap.Error(err))
			continue
		}
		samples = append(samples, TrainingSample{
			Features: fv.Values(),
			Label:    trade.Outcome,
		})
	}
	return samples, nil
}

// ClosedCount 已平仓交易数量
func (s *MemoryService) ClosedCount(ctx context.Context) (int64, error) {
	return s.TradeRepo.CountClosed(ctx)
}

// WinRate 指定交易对的历史胜率，无平仓记录时为0
//
// ticker为空时统计全部交易对。
func (s *MemoryService) WinRate(ctx context.Context, ticker string) (float64, error) {
	var closed, profitable int64
	var err error
	if ticker == "" {
		closed, err = s.TradeRepo.CountClosed(ctx)
	} else {
		closed, err = s.TradeRepo.CountClosedByTicker(ctx, ticker)
	}
	if err != nil {
		return 0, err
	}
	if closed == 0 {
		return 0, nil
	}
	if ticker == "" {
		profitable, err = s.TradeRepo.CountClosedProfitable(ctx)
	} else {
		profitable, err = s.TradeRepo.CountClosedProfitableByTicker(ctx, ticker)
	}
	if err != nil {
		return 0, err
	}
	return float64(profitable) / float64(closed), nil
}

// Statistics 交易统计汇总
func (s *MemoryService) Statistics(ctx context.Context) (*TradeStatistics, error) {
	var stats TradeStatistics
	var err error

	if stats.ClosedTrades, err = s.TradeRepo.CountClosed(ctx); err != nil {
		return nil, err
	}
	if stats.ProfitableCount, err = s.TradeRepo.CountClosedProfitable(ctx); err != nil {
		return nil, err
	}
	if stats.TotalProfitRate, err = s.TradeRepo.SumClosedProfitRate(ctx); err != nil {
		return nil, err
	}
	if stats.MaxProfitRate, err = s.TradeRepo.MaxClosedProfitRate(ctx); err != nil {
		return nil, err
	}
	if stats.MinProfitRate, err = s.TradeRepo.MinClosedProfitRate(ctx); err != nil {
		return nil, err
	}
	openTrade, err := s.openCount(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalTrades = stats.ClosedTrades + openTrade

	if stats.ClosedTrades > 0 {
		stats.WinRate = float64(stats.ProfitableCount) / float64(stats.ClosedTrades)
		stats.AvgProfitRate = stats.TotalProfitRate / float64(stats.ClosedTrades)
	}
	return &stats, nil
}

// RecentTrades 最近的交易记录
func (s *MemoryService) RecentTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	return s.TradeRepo.FindRecent(ctx, limit)
}

// OpenPositions 当前全部持仓
func (s *MemoryService) OpenPositions(ctx context.Context) ([]models.Position, error) {
	return s.positionRepo.FindAll(ctx)
}

// FindPosition 查找指定交易对的持仓
func (s *MemoryService) FindPosition(ctx context.Context, ticker string) (*models.Position, error) {
	position, err := s.positionRepo.FindByTicker(ctx, ticker)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

func (s *MemoryService) openCount(ctx context.Context) (int64, error) {
	var count int64
	db := s.TradeRepo.GetDB(ctx)
	err := db.Table(s.TradeRepo.GetTableName()).
		Where("status = ?", models.TradeStatusOpen).
		Count(&count).Error
	return count, err
}
