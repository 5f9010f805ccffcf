package handler

import (
	"errors"
	"net/http"

	"github.com/dushixiang/evotrader/internal/service"
	"github.com/dushixiang/evotrader/internal/xe"
	"github.com/dushixiang/evotrader/pkg/exchange"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// TradingHandler 交易系统HTTP处理器
type TradingHandler struct {
	botService      *service.BotService
	memoryService   *service.MemoryService
	learnerService  *service.LearnerService
	selectorService *service.SelectorService
	exchange        exchange.Exchange
	logger          *zap.Logger
}

// NewTradingHandler 创建交易处理器
func NewTradingHandler(
	botService *service.BotService,
	memoryService *service.MemoryService,
	learnerService *service.LearnerService,
	selectorService *service.SelectorService,
	exchange exchange.Exchange,
	logger *zap.Logger,
) *TradingHandler {
	return &TradingHandler{
		botService:      botService,
		memoryService:   memoryService,
		learnerService:  learnerService,
		selectorService: selectorService,
		exchange:        exchange,
		logger:          logger,
	}
}

// GetStatus 获取机器人状态
// GET /api/trading/status
func (h *TradingHandler) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.botService.Status())
}

// GetPositions 获取持仓列表
// GET /api/trading/positions
func (h *TradingHandler) GetPositions(c echo.Context) error {
	ctx := c.Request().Context()

	positions, err := h.memoryService.OpenPositions(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":     len(positions),
		"positions": positions,
	})
}

// GetTrades 获取交易历史
// GET /api/trading/trades?limit=20
func (h *TradingHandler) GetTrades(c echo.Context) error {
	ctx := c.Request().Context()

	limit := cast.ToInt(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 20
	}

	trades, err := h.memoryService.RecentTrades(ctx, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":  len(trades),
		"trades": trades,
	})
}

// GetStats 获取交易统计数据
// GET /api/trading/stats
func (h *TradingHandler) GetStats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.memoryService.Statistics(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// GetModel 获取当前模型信息
// GET /api/trading/model
func (h *TradingHandler) GetModel(c echo.Context) error {
	return c.JSON(http.StatusOK, h.learnerService.Info())
}

// GetModelHistory 获取模型版本历史
// GET /api/trading/model/history?limit=20
func (h *TradingHandler) GetModelHistory(c echo.Context) error {
	ctx := c.Request().Context()

	limit := cast.ToInt(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 20
	}

	history, err := h.learnerService.History(ctx, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":   len(history),
		"history": history,
	})
}

// GetAccount 获取账户资产余额
// GET /api/trading/account
func (h *TradingHandler) GetAccount(c echo.Context) error {
	ctx := c.Request().Context()

	balances, err := h.exchange.Balances(ctx)
	if err != nil {
		return err
	}

	mode := "live"
	if _, ok := h.exchange.(*exchange.PaperWallet); ok {
		mode = "paper"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"mode":     mode,
		"balances": balances,
	})
}

// GetRecommendations 获取最近一次选币结果，尚未扫描过时立即扫描
// GET /api/trading/recommendations
func (h *TradingHandler) GetRecommendations(c echo.Context) error {
	ctx := c.Request().Context()

	recommendation, err := h.selectorService.Recommend(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recommendation)
}

// Start 启动交易机器人
// POST /api/trading/start
func (h *TradingHandler) Start(c echo.Context) error {
	if err := h.botService.Start(c.Request().Context()); err != nil {
		if errors.Is(err, service.ErrBotAlreadyRunning) {
			return xe.ErrBotAlreadyRunning
		}
		return err
	}

	h.logger.Info("trading bot started via API")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "trading bot started",
	})
}

// Stop 停止交易机器人
// POST /api/trading/stop
func (h *TradingHandler) Stop(c echo.Context) error {
	if err := h.botService.Stop(); err != nil {
		if errors.Is(err, service.ErrBotNotRunning) {
			return xe.ErrBotNotRunning
		}
		return err
	}

	h.logger.Info("trading bot stopped via API")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "trading bot stopped",
	})
}

// Retrain 请求立即重训练（在下一个周期开始时执行）
// POST /api/trading/retrain
func (h *TradingHandler) Retrain(c echo.Context) error {
	if err := h.botService.Enqueue(service.CommandRetrain); err != nil {
		return xe.ErrCommandQueueFull
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "retrain scheduled",
	})
}

// RefreshRecommendations 请求刷新选币推荐（在下一个周期开始时执行）
// POST /api/trading/recommendations/refresh
func (h *TradingHandler) RefreshRecommendations(c echo.Context) error {
	if err := h.botService.Enqueue(service.CommandRefresh); err != nil {
		return xe.ErrCommandQueueFull
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "recommendation refresh scheduled",
	})
}

// RegisterRoutes 注册路由
func (h *TradingHandler) RegisterRoutes(g *echo.Group) {
	trading := g.Group("/trading")

	// 查询接口
	trading.GET("/status", h.GetStatus)
	trading.GET("/positions", h.GetPositions)
	trading.GET("/trades", h.GetTrades)
	trading.GET("/stats", h.GetStats)
	trading.GET("/model", h.GetModel)
	trading.GET("/model/history", h.GetModelHistory)
	trading.GET("/account", h.GetAccount)
	trading.GET("/recommendations", h.GetRecommendations)

	// 控制接口
	trading.POST("/start", h.Start)
	trading.POST("/stop", h.Stop)
	trading.POST("/retrain", h.Retrain)
	trading.POST("/recommendations/refresh", h.RefreshRecommendations)
}
