package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dushixiang/evotrader/internal/config"
	"github.com/dushixiang/evotrader/internal/models"
	"github.com/dushixiang/evotrader/pkg/exchange"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// BotState 交易机器人状态
type BotState string

const (
	StateIdle         BotState = "idle"          // 空闲，等待下一轮扫描
	StateScanning     BotState = "scanning"      // 扫描候选并评估入场
	StatePositionOpen BotState = "position_open" // 持仓中，监控出场条件
	StateClosing      BotState = "closing"       // 正在平仓
)

// BotCommand 外部控制指令，在每轮开始时统一消费
type BotCommand string

const (
	CommandRetrain BotCommand = "retrain" // 强制立即重训练
	CommandRefresh BotCommand = "refresh" // 强制刷新选币推荐
)

// 出场原因
const (
	ExitReasonTargetProfit = "target_profit"
	ExitReasonStopLoss     = "stop_loss"
	ExitReasonOverbought   = "overbought"
)

var (
	ErrBotAlreadyRunning = errors.New("trading bot is already running")
	ErrBotNotRunning     = errors.New("trading bot is not running")
)

// BotEvent 机器人事件，供通知渠道消费
type BotEvent struct {
	Type       string    `json:"type"` // entry/exit/retrain/error
	Ticker     string    `json:"ticker,omitempty"`
	Message    string    `json:"message"`
	Price      float64   `json:"price,omitempty"`
	ProfitRate float64   `json:"profit_rate,omitempty"`
	Time       time.Time `json:"time"`
}

// exitRecord 平仓记录，用于同币种的再买入冷却
type exitRecord struct {
	price      float64
	profitable bool
}

// BotStatus 机器人运行状态
type BotStatus struct {
	Running         bool      `json:"running"`
	State           BotState  `json:"state"`
	Ticker          string    `json:"ticker,omitempty"`
	Iteration       int       `json:"iteration"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	Live            bool      `json:"live"`
	IntervalSeconds int       `json:"interval_seconds"`
	Model           ModelInfo `json:"model"`
}

// BotService 交易机器人
//
// 按固定周期轮询：持仓时监控出场条件，空仓时扫描候选评估入场。
// 平仓每累计N笔触发一次重训练，训练与交易在同一轮内串行执行。
type BotService struct {
	logger      *zap.Logger
	tradingConf config.TradingConf
	learnerConf config.LearnerConf

	exchange        exchange.Exchange
	featureService  *FeatureService
	learnerService  *LearnerService
	selectorService *SelectorService
	memoryService   *MemoryService

	// cycleMu 保证同一实例的轮询周期不会并发执行
	cycleMu   sync.Mutex
	mu        sync.Mutex
	running   bool
	state     BotState
	ticker    string
	iteration int
	startedAt time.Time
	lastExit  map[string]exitRecord
	cron      *cron.Cron

	commands chan BotCommand
	events   chan BotEvent
}

// NewBotService 创建交易机器人
func NewBotService(
	conf *config.Config,
	exchange exchange.Exchange,
	featureService *FeatureService,
	learnerService *LearnerService,
	selectorService *SelectorService,
	memoryService *MemoryService,
	logger *zap.Logger,
) *BotService {
	return &BotService{
		logger:          logger,
		tradingConf:     conf.Trading,
		learnerConf:     conf.Learner,
		exchange:        exchange,
		featureService:  featureService,
		learnerService:  learnerService,
		selectorService: selectorService,
		memoryService:   memoryService,
		state:           StateIdle,
		lastExit:        make(map[string]exitRecord),
		commands:        make(chan BotCommand, 16),
		events:          make(chan BotEvent, 64),
	}
}

// Start 启动轮询，已在运行时报错
func (s *BotService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrBotAlreadyRunning
	}
	s.running = true
	s.startedAt = time.Now()
	s.state = StateIdle
	s.mu.Unlock()

	// 重启后从数据库恢复持仓状态
	if err := s.recoverPosition(ctx); err != nil {
		s.logger.Warn("failed to recover position state", zap.Error(err))
	}

	cronExpr := fmt.Sprintf("@every %ds", s.tradingConf.IntervalSeconds)
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := s.cron.AddFunc(cronExpr, func() {
		if err := s.ExecuteCycle(context.Background()); err != nil {
			s.logger.Error("cycle execution failed", zap.Error(err))
		}
	})
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.cron.Start()

	// 启动后立即执行第一轮，不等待第一个定时点
	go func() {
		if err := s.ExecuteCycle(context.Background()); err != nil {
			s.logger.Error("cycle execution failed", zap.Error(err))
		}
	}()

	s.logger.Info("trading bot started",
		zap.Bool("live", s.tradingConf.Live),
		zap.Bool("use_selector", s.tradingConf.UseSelector),
		zap.String("ticker", s.tradingConf.Ticker),
		zap.Int("interval_seconds", s.tradingConf.IntervalSeconds))
	return nil
}

// Stop 停止轮询并等待当前周期结束
func (s *BotService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrBotNotRunning
	}
	s.running = false
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	// 等待启动时立即执行的那一轮结束
	s.cycleMu.Lock()
	s.cycleMu.Unlock()
	s.logger.Info("trading bot stopped")
	return nil
}

// Running 是否正在运行
func (s *BotService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status 运行状态快照
func (s *BotService) Status() BotStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BotStatus{
		Running:         s.running,
		State:           s.state,
		Ticker:          s.ticker,
		Iteration:       s.iteration,
		StartedAt:       s.startedAt,
		Live:            s.tradingConf.Live,
		IntervalSeconds: s.tradingConf.IntervalSeconds,
		Model:           s.learnerService.Info(),
	}
}

// Enqueue 投递控制指令，队列满时丢弃并报错
func (s *BotService) Enqueue(cmd BotCommand) error {
	select {
	case s.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("command queue is full, dropped: %s", cmd)
	}
}

// Events 事件通道，供通知渠道消费
func (s *BotService) Events() <-chan BotEvent {
	return s.events
}

// ExecuteCycle 执行一个轮询周期
//
// 同一实例上的周期互斥，上一轮未结束时本轮直接跳过，
// 避免两轮同时判定空仓后重复下单。
func (s *BotService) ExecuteCycle(ctx context.Context) error {
	if !s.cycleMu.TryLock() {
		s.logger.Debug("previous cycle still running, tick skipped")
		return nil
	}
	defer s.cycleMu.Unlock()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.iteration++
	iteration := s.iteration
	s.mu.Unlock()

	s.logger.Debug("cycle start", zap.Int("iteration", iteration))

	// 先消费积压的控制指令
	s.drainCommands(ctx)

	// 持仓状态以数据库为准
	positions, err := s.memoryService.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load open positions: %w", err)
	}

	if len(positions) > 0 {
		s.setState(StatePositionOpen, positions[0].Ticker)
		return s.managePosition(ctx, &positions[0])
	}

	s.setState(StateScanning, "")
	return s.seekEntry(ctx)
}

// drainCommands 消费全部积压指令
func (s *BotService) drainCommands(ctx context.Context) {
	for {
		select {
		case cmd := <-s.commands:
			s.handleCommand(ctx, cmd)
		default:
			return
		}
	}
}

func (s *BotService) handleCommand(ctx context.Context, cmd BotCommand) {
	switch cmd {
	case CommandRetrain:
		if err := s.retrain(ctx); err != nil {
			s.logger.Warn("forced retrain failed", zap.Error(err))
		}
	case CommandRefresh:
		if _, err := s.selectorService.Refresh(ctx); err != nil {
			s.logger.Warn("forced recommendation refresh failed", zap.Error(err))
		}
	default:
		s.logger.Warn("unknown bot command", zap.String("command", string(cmd)))
	}
}

// managePosition 监控持仓的出场条件
func (s *BotService) managePosition(ctx context.Context, position *models.Position) error {
	price, err := s.exchange.GetCurrentPrice(ctx, position.Ticker)
	if err != nil {
		return fmt.Errorf("failed to get current price for %s: %w", position.Ticker, err)
	}

	profitRate := position.ProfitRate(price)
	reason := ""

	switch {
	case profitRate >= s.tradingConf.TargetProfit:
		reason = ExitReasonTargetProfit
	case profitRate <= -s.tradingConf.StopLoss:
		reason = ExitReasonStopLoss
	default:
		// 超买出场：价格突破布林带上轨附近
		klines, err := s.exchange.GetKlines(ctx, position.Ticker, "1h", 100)
		if err == nil {
			if fv, err := s.featureService.Extract(klines); err == nil && fv.BBPosition > 0.95 {
				reason = ExitReasonOverbought
			}
		}
	}

	if reason == "" {
		s.logger.Debug("holding position",
			zap.String("ticker", position.Ticker),
			zap.Float64("price", price),
			zap.Float64("profit_rate", profitRate))
		return nil
	}

	return s.closePosition(ctx, position, reason)
}

// closePosition 平仓、记账、冷却登记并按需重训练
func (s *BotService) closePosition(ctx context.Context, position *models.Position, reason string) error {
	s.setState(StateClosing, position.Ticker)

	receipt, err := s.exchange.SellMarket(ctx, position.Ticker, position.Quantity)
	if err != nil {
		s.emit(BotEvent{
			Type:    "error",
			Ticker:  position.Ticker,
			Message: fmt.Sprintf("sell order failed: %v", err),
			Time:    time.Now(),
		})
		return fmt.Errorf("failed to sell %s: %w", position.Ticker, err)
	}

	trade, err := s.memoryService.RecordExit(ctx, position.TradeID, receipt, reason)
	if err != nil {
		return fmt.Errorf("failed to record exit: %w", err)
	}

	s.mu.Lock()
	s.lastExit[position.Ticker] = exitRecord{
		price:      receipt.Price,
		profitable: trade.Outcome == models.OutcomeProfit,
	}
	s.mu.Unlock()

	s.emit(BotEvent{
		Type:       "exit",
		Ticker:     position.Ticker,
		Message:    fmt.Sprintf("position closed: %s", reason),
		Price:      receipt.Price,
		ProfitRate: trade.ProfitRate,
		Time:       time.Now(),
	})

	// 每累计N笔平仓触发一次重训练
	closedCount, err := s.memoryService.ClosedCount(ctx)
	if err != nil {
		s.logger.Warn("failed to count closed trades", zap.Error(err))
	} else if closedCount > 0 && closedCount%int64(s.learnerConf.RetrainThreshold) == 0 {
		if err := s.retrain(ctx); err != nil {
			s.logger.Warn("scheduled retrain failed", zap.Error(err))
		}
	}

	s.setState(StateIdle, "")
	return nil
}

// seekEntry 扫描候选并评估入场
func (s *BotService) seekEntry(ctx context.Context) error {
	ticker := s.tradingConf.Ticker

	if s.tradingConf.UseSelector {
		// 每轮扫描都用最新行情重新选币
		recommendation, err := s.selectorService.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("failed to get recommendation: %w", err)
		}
		picked := false
		for _, candidate := range recommendation.Candidates {
			if !candidate.Recommended || s.inCooldown(ctx, candidate.Ticker) {
				continue
			}
			ticker = candidate.Ticker
			picked = true
			break
		}
		if !picked {
			s.setState(StateIdle, "")
			return nil
		}
	} else if s.inCooldown(ctx, ticker) {
		s.setState(StateIdle, "")
		return nil
	}

	klines, err := s.exchange.GetKlines(ctx, ticker, "1h", 100)
	if err != nil {
		return fmt.Errorf("failed to get klines for %s: %w", ticker, err)
	}
	fv, err := s.featureService.Extract(klines)
	if err != nil {
		return fmt.Errorf("failed to extract features for %s: %w", ticker, err)
	}

	prediction := s.learnerService.Predict(fv)

	// 入场条件：模型看多且置信度达标，同时指标确认超卖或贴近下轨
	if !prediction.Signal || prediction.Confidence < s.tradingConf.ConfidenceThreshold {
		s.setState(StateIdle, "")
		return nil
	}
	if fv.RSI14 >= 30 && fv.BBPosition >= 0.2 {
		s.setState(StateIdle, "")
		return nil
	}

	receipt, err := s.exchange.BuyMarket(ctx, ticker, s.tradingConf.TradeAmount)
	if err != nil {
		s.emit(BotEvent{
			Type:    "error",
			Ticker:  ticker,
			Message: fmt.Sprintf("buy order failed: %v", err),
			Time:    time.Now(),
		})
		return fmt.Errorf("failed to buy %s: %w", ticker, err)
	}

	targetPrice := receipt.Price * (1 + s.tradingConf.TargetProfit)
	stopPrice := receipt.Price * (1 - s.tradingConf.StopLoss)

	if _, err := s.memoryService.RecordEntry(ctx, ticker, receipt, fv, prediction.Confidence, targetPrice, stopPrice); err != nil {
		return fmt.Errorf("failed to record entry: %w", err)
	}

	s.setState(StatePositionOpen, ticker)
	s.emit(BotEvent{
		Type:    "entry",
		Ticker:  ticker,
		Message: fmt.Sprintf("position opened, confidence %.2f", prediction.Confidence),
		Price:   receipt.Price,
		Time:    time.Now(),
	})
	return nil
}

// inCooldown 同币种再买入冷却
//
// 盈利平仓后需价格回落、亏损平仓后需价格回升超过阈值才允许再次买入。
func (s *BotService) inCooldown(ctx context.Context, ticker string) bool {
	s.mu.Lock()
	record, ok := s.lastExit[ticker]
	s.mu.Unlock()
	if !ok {
		return false
	}

	price, err := s.exchange.GetCurrentPrice(ctx, ticker)
	if err != nil || record.price == 0 {
		return true
	}

	change := (price - record.price) / record.price
	if record.profitable {
		if change <= -s.tradingConf.RebuyThreshold {
			s.clearCooldown(ticker)
			return false
		}
	} else {
		if change >= s.tradingConf.RebuyThreshold {
			s.clearCooldown(ticker)
			return false
		}
	}
	return true
}

func (s *BotService) clearCooldown(ticker string) {
	s.mu.Lock()
	delete(s.lastExit, ticker)
	s.mu.Unlock()
}

// retrain 重训练并通知结果
func (s *BotService) retrain(ctx context.Context) error {
	samples, err := s.memoryService.TrainingSet(ctx)
	if err != nil {
		return fmt.Errorf("failed to build training set: %w", err)
	}

	artifact, err := s.learnerService.Retrain(ctx, samples)
	if err != nil {
		return err
	}

	s.emit(BotEvent{
		Type: "retrain",
		Message: fmt.Sprintf("model retrained: %d samples, accuracy %.2f",
			artifact.SampleCount, artifact.Accuracy),
		Time: time.Now(),
	})
	return nil
}

// recoverPosition 重启后恢复持仓状态
func (s *BotService) recoverPosition(ctx context.Context) error {
	positions, err := s.memoryService.OpenPositions(ctx)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}

	s.setState(StatePositionOpen, positions[0].Ticker)
	s.logger.Info("recovered open position from database",
		zap.String("ticker", positions[0].Ticker),
		zap.Float64("entry_price", positions[0].EntryPrice),
		zap.Float64("quantity", positions[0].Quantity))
	return nil
}

func (s *BotService) setState(state BotState, ticker string) {
	s.mu.Lock()
	s.state = state
	s.ticker = ticker
	s.mu.Unlock()
}

// emit 投递事件，通道满时丢弃避免阻塞交易周期
func (s *BotService) emit(event BotEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn("event channel full, event dropped",
			zap.String("type", event.Type))
	}
}
