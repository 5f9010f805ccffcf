//go:build wireinject
// +build wireinject

package internal

import (
	"github.com/dushixiang/evotrader/internal/config"
	"github.com/dushixiang/evotrader/internal/handler"
	"github.com/dushixiang/evotrader/internal/service"
	"github.com/google/wire"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	handlerSet = wire.NewSet(
		handler.NewTradingHandler,
	)

	tradingSet = wire.NewSet(
		provideExchange,
		service.NewFeatureService,
		service.NewMemoryService,
		service.NewLearnerService,
		service.NewSelectorService,
		service.NewBotService,
	)
)

// InitializeApp 初始化应用
func InitializeApp(logger *zap.Logger, db *gorm.DB, conf *config.Config) (*AppComponents, error) {
	wire.Build(
		handlerSet,
		tradingSet,
		provideTelegram,
		wire.Struct(new(AppComponents), "*"),
	)
	return nil, nil
}
