package internal

import (
	"net/http"
	"time"

	"github.com/dushixiang/evotrader/internal/config"
	"github.com/dushixiang/evotrader/internal/service"
	"github.com/dushixiang/evotrader/internal/telegram"
	"github.com/dushixiang/evotrader/pkg/exchange"
	"go.uber.org/zap"
)

const telegramHTTPTimeout = 10 * time.Second

// provideTelegram provides telegram instance
func provideTelegram(logger *zap.Logger, conf *config.Config, botService *service.BotService) *telegram.Telegram {
	if !conf.Telegram.Enabled {
		return nil
	}

	httpClient := &http.Client{Timeout: telegramHTTPTimeout}

	tg, err := telegram.NewTelegram(logger, telegram.Settings{
		Token:  conf.Telegram.Token,
		ChatID: conf.Telegram.ChatID,
		Client: httpClient,
	}, telegram.WithStatusProvider(func() string {
		return telegram.FormatStatus(botService.Status())
	}))
	if err != nil {
		logger.Error("failed to init telegram", zap.Error(err))
		return nil
	}

	return tg
}

// provideExchange provides the trading venue by safety gate
//
// 默认纸钱包模式，只有显式开启 trading.live 才会真实下单。
func provideExchange(conf *config.Config, logger *zap.Logger) exchange.Exchange {
	client := exchange.NewBinanceClient(
		conf.Binance.APIKey,
		conf.Binance.Secret,
		conf.Binance.ProxyURL,
		conf.Binance.Testnet,
	)

	if conf.Trading.Live {
		if conf.Binance.APIKey == "" || conf.Binance.Secret == "" {
			logger.Warn("live trading enabled without Binance API credentials; orders will fail")
		}
		logger.Info("live trading enabled, orders will be placed on Binance",
			zap.Bool("testnet", conf.Binance.Testnet))
		return client
	}

	logger.Info("paper wallet mode enabled",
		zap.Float64("initial_balance", conf.Trading.PaperWallet.InitialBalance))
	return exchange.NewPaperWallet(client, conf.Trading.PaperWallet.InitialBalance, logger)
}
