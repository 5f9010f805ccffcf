package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dushixiang/evotrader/internal/config"
	"github.com/dushixiang/evotrader/pkg/exchange"
	"github.com/dushixiang/evotrader/pkg/ta"
	"go.uber.org/zap"
)

// atrFullScale ATR与价格之比达到该值时波动率分量拿满
const atrFullScale = 0.02

// Candidate 候选交易对及其评分
type Candidate struct {
	Ticker           string         `json:"ticker"`
	Score            float64        `json:"score"`             // 综合评分（0-100）
	AIConfidence     float64        `json:"ai_confidence"`     // 模型盈利概率
	AIScore          float64        `json:"ai_score"`          // 模型分量（0-40，预测非看多时为0）
	IndicatorScore   float64        `json:"indicator_score"`   // 指标分量（0-30）
	WinRateScore     float64        `json:"win_rate_score"`    // 历史胜率分量（0-20）
	VolumeVolatility float64        `json:"volume_volatility"` // 量能与波动分量（0-10）
	Recommended      bool           `json:"recommended"`       // 是否通过置信度与评分阈值
	ComputedAt       time.Time      `json:"computed_at"`
	Features         *FeatureVector `json:"features,omitempty"`
}

// Recommendation 一次选币结果
type Recommendation struct {
	Candidates []Candidate `json:"candidates"`
	Scanned    int         `json:"scanned"`  // 成功评估的交易对数量
	Degraded   bool        `json:"degraded"` // 行情不可用，使用了兜底候选列表
	ComputedAt time.Time   `json:"computed_at"`
}

// SelectorService 选币服务
//
// 按成交量筛选候选池，逐个提取特征并用模型评分，
// 按评分排名返回Top N候选，是否达标由Recommended标记。
// 评分各分量上限固定，总分0-100。
// 最近一次扫描结果作为快照保留，重复刷新是幂等的。
type SelectorService struct {
	logger *zap.Logger
	conf   config.SelectorConf

	exchange       exchange.Exchange
	featureService *FeatureService
	learnerService *LearnerService
	memoryService  *MemoryService

	mu       sync.RWMutex
	snapshot *Recommendation
}

// NewSelectorService 创建选币服务
func NewSelectorService(
	conf *config.Config,
	exchange exchange.Exchange,
	featureService *FeatureService,
	learnerService *LearnerService,
	memoryService *MemoryService,
	logger *zap.Logger,
) *SelectorService {
	return &SelectorService{
		logger:         logger,
		conf:           conf.Selector,
		exchange:       exchange,
		featureService: featureService,
		learnerService: learnerService,
		memoryService:  memoryService,
	}
}

// Refresh 重新扫描候选池并更新快照
func (s *SelectorService) Refresh(ctx context.Context) (*Recommendation, error) {
	result := &Recommendation{
		Candidates: make([]Candidate, 0, s.conf.TopN),
		ComputedAt: time.Now(),
	}

	tickers, err := s.exchange.ListSymbols(ctx, s.conf.Quote, s.conf.CandidateLimit)
	if err != nil {
		s.logger.Warn("failed to list symbols, falling back to configured candidates",
			zap.Error(err))
		tickers = s.conf.Fallback
		result.Degraded = true
	}

	// 所有评估成功的候选都参与排名，是否达标由Recommended标记
	var candidates []Candidate
	for _, ticker := range tickers {
		candidate, err := s.evaluate(ctx, ticker)
		if err != nil {
			s.logger.Debug("skip candidate",
				zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		result.Scanned++
		candidates = append(candidates, *candidate)
	}

	// 评分降序，同分按置信度降序，再按名称升序，保证结果可复现
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].AIConfidence != candidates[j].AIConfidence {
			return candidates[i].AIConfidence > candidates[j].AIConfidence
		}
		return candidates[i].Ticker < candidates[j].Ticker
	})

	if len(candidates) > s.conf.TopN {
		candidates = candidates[:s.conf.TopN]
	}
	result.Candidates = append(result.Candidates, candidates...)

	recommended := 0
	for _, candidate := range result.Candidates {
		if candidate.Recommended {
			recommended++
		}
	}

	s.mu.Lock()
	s.snapshot = result
	s.mu.Unlock()

	s.logger.Info("candidate scan completed",
		zap.Int("scanned", result.Scanned),
		zap.Int("recommended", recommended),
		zap.Bool("degraded", result.Degraded))
	return result, nil
}

// Snapshot 最近一次扫描结果，尚未扫描过时为nil
func (s *SelectorService) Snapshot() *Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Recommend 返回快照，没有快照时扫描一次
func (s *SelectorService) Recommend(ctx context.Context) (*Recommendation, error) {
	if snapshot := s.Snapshot(); snapshot != nil {
		return snapshot, nil
	}
	return s.Refresh(ctx)
}

// evaluate 对单个交易对提取特征并评分
func (s *SelectorService) evaluate(ctx context.Context, ticker string) (*Candidate, error) {
	klines, err := s.exchange.GetKlines(ctx, ticker, "1h", 100)
	if err != nil {
		return nil, err
	}

	fv, err := s.featureService.Extract(klines)
	if err != nil {
		return nil, err
	}

	prediction := s.learnerService.Predict(fv)

	winRate, err := s.memoryService.WinRate(ctx, ticker)
	if err != nil {
		s.logger.Warn("failed to load win rate",
			zap.String("ticker", ticker), zap.Error(err))
		winRate = 0
	}

	candidate := &Candidate{
		Ticker:       ticker,
		AIConfidence: prediction.Confidence,
		WinRateScore: winRate * 20,
		ComputedAt:   time.Now(),
		Features:     fv,
	}

	// 模型分量只在预测看多时计入
	if prediction.Signal {
		candidate.AIScore = prediction.Confidence * 40
	}

	// 指标分量：超卖、贴近下轨、MACD金叉各10分
	if fv.RSI14 < 30 {
		candidate.IndicatorScore += 10
	}
	if fv.BBPosition < 0.2 {
		candidate.IndicatorScore += 10
	}
	if s.macdBullishCrossover(klines) {
		candidate.IndicatorScore += 10
	}

	// 量能分量：量比2倍拿满5分；波动分量：ATR占价格2%拿满5分
	volumeRatio := fv.VolumeRatio
	if volumeRatio > 2 {
		volumeRatio = 2
	}
	atrRatio := fv.ATR14 / atrFullScale
	if atrRatio > 1 {
		atrRatio = 1
	}
	candidate.VolumeVolatility = volumeRatio/2*5 + atrRatio*5

	candidate.Score = candidate.AIScore + candidate.IndicatorScore +
		candidate.WinRateScore + candidate.VolumeVolatility
	candidate.Recommended = prediction.Signal &&
		candidate.AIConfidence > s.conf.ConfidenceThreshold &&
		candidate.Score > s.conf.ScoreThreshold
	return candidate, nil
}

// macdBullishCrossover MACD线是否刚刚上穿信号线
func (s *SelectorService) macdBullishCrossover(klines []*exchange.Kline) bool {
	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}
	macd, signal, _ := ta.MACD(closes, 12, 26, 9)
	return ta.Crossover(macd, signal)
}
