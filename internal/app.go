package internal

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dushixiang/evotrader/internal/config"
	"github.com/dushixiang/evotrader/internal/handler"
	"github.com/dushixiang/evotrader/internal/models"
	"github.com/dushixiang/evotrader/internal/service"
	"github.com/dushixiang/evotrader/internal/telegram"
	"github.com/dushixiang/evotrader/pkg/exchange"
	"github.com/dushixiang/evotrader/pkg/nostd"
	"github.com/go-orz/orz"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func Run(configPath string) error {
	app := NewEvoTraderApp()

	framework, err := orz.NewFramework(
		orz.WithConfig(configPath),
		orz.WithLoggerFromConfig(),
		orz.WithDatabase(),
		orz.WithHTTP(),
		orz.WithApplication(app),
	)
	if err != nil {
		return err
	}

	return framework.Run()
}

func NewEvoTraderApp() orz.Application {
	return &EvoTraderApp{}
}

var _ orz.Application = (*EvoTraderApp)(nil)

type AppComponents struct {
	TradingHandler *handler.TradingHandler

	BotService      *service.BotService
	MemoryService   *service.MemoryService
	LearnerService  *service.LearnerService
	SelectorService *service.SelectorService
	FeatureService  *service.FeatureService

	Exchange exchange.Exchange
	Telegram *telegram.Telegram
}

type EvoTraderApp struct {
	components *AppComponents
	conf       *config.Config
}

// GetComponents 获取应用组件
func (r *EvoTraderApp) GetComponents() *AppComponents {
	return r.components
}

func (r *EvoTraderApp) Configure(app *orz.App) error {
	logger := app.Logger()
	e := app.GetEcho()
	db := app.GetDatabase()

	var conf config.Config
	err := app.GetConfig().App.Unmarshal(&conf)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %v", err)
	}
	conf.Normalize()

	components, err := InitializeApp(logger, db, &conf)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %v", err)
	}
	r.components = components
	r.conf = &conf

	if err := db.AutoMigrate(
		models.Trade{}, models.Position{}, models.ModelArtifact{},
	); err != nil {
		logger.Fatal("database auto migrate failed", zap.Error(err))
	}

	if err := r.Init(logger); err != nil {
		logger.Fatal("app init failed", zap.Error(err))
	}

	e.HidePort = true
	e.HideBanner = true

	e.Use(middleware.Gzip())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		Skipper:      middleware.DefaultSkipper,
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			sugar := logger.Sugar()
			sugar.Error(fmt.Sprintf("[PANIC RECOVER] %v %s\n", err, stack))
			return err
		},
	}))
	e.Use(WithErrorHandler(logger))
	customValidator := nostd.CustomValidator{Validator: validator.New()}
	if err := customValidator.TransInit(); err != nil {
		logger.Sugar().Fatal("failed to init custom validator", zap.Error(err))
	}
	e.Validator = &customValidator

	api := e.Group("/api")
	{
		if r.components.TradingHandler != nil {
			r.components.TradingHandler.RegisterRoutes(api)
		}
	}

	return nil
}

func (r *EvoTraderApp) Init(logger *zap.Logger) error {
	logger.Info("=================================================")
	logger.Info("EvoTrader Self-Evolving Trading System Starting...")
	logger.Info("=================================================")

	components := r.GetComponents()
	if components == nil {
		return fmt.Errorf("components not initialized")
	}

	ctx := context.Background()

	// 恢复上次激活的模型版本
	if err := components.LearnerService.LoadActive(ctx); err != nil {
		logger.Warn("failed to restore active model", zap.Error(err))
	}

	// 没有任何历史模型时用历史K线冷启动训练初始模型
	if components.LearnerService.Info().Heuristic {
		ticker := r.conf.Trading.Ticker
		klines, err := components.Exchange.GetKlines(ctx, ticker, "1h", 500)
		if err != nil {
			logger.Warn("failed to fetch klines for model bootstrap",
				zap.String("ticker", ticker), zap.Error(err))
		} else if _, err := components.LearnerService.BootstrapFromHistory(ctx, klines); err != nil {
			logger.Warn("model bootstrap failed, continuing with heuristic",
				zap.String("ticker", ticker), zap.Error(err))
		}
	}

	// Telegram通知
	if components.Telegram != nil {
		components.Telegram.Start()
		notifier := telegram.NewNotifier(logger, components.Telegram)
		go notifier.Consume(components.BotService.Events())
		logger.Info("telegram notifier started")
	}

	if !r.conf.Trading.Live {
		logger.Info("live trading disabled, running in paper wallet mode")
	}

	if err := components.BotService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start trading bot: %w", err)
	}
	return nil
}
