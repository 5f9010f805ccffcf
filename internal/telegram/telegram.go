package telegram

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/middleware"
)

// StatusProvider 供 /status 命令查询的状态来源
type StatusProvider func() string

type Telegram struct {
	logger   *zap.Logger
	settings Settings
	client   *tele.Bot
	status   StatusProvider
}

type Option func(telegram *Telegram)

// WithStatusProvider 注册 /status 命令的状态来源
func WithStatusProvider(provider StatusProvider) Option {
	return func(t *Telegram) {
		t.status = provider
	}
}

func NewTelegram(logger *zap.Logger, settings Settings, options ...Option) (*Telegram, error) {
	poller := &tele.LongPoller{Timeout: 10 * time.Second}

	client, err := tele.NewBot(tele.Settings{
		ParseMode: tele.ModeMarkdown,
		Token:     settings.Token,
		Poller:    poller,
		Client:    settings.Client,
	})
	if err != nil {
		return nil, err
	}

	client.Use(middleware.AutoRespond())

	err = client.SetCommands([]tele.Command{
		{Text: "/start", Description: "启动机器人，显示主菜单"},
		{Text: "/help", Description: "获取帮助信息"},
		{Text: "/status", Description: "查看交易机器人状态"},
	})
	if err != nil {
		return nil, err
	}

	bot := &Telegram{
		logger:   logger,
		settings: settings,
		client:   client,
	}

	for _, option := range options {
		option(bot)
	}

	client.Handle("/start", func(c tele.Context) error {
		return c.Send("EvoTrader 通知机器人已就绪，使用 /status 查看交易状态。")
	})
	client.Handle("/help", func(c tele.Context) error {
		return c.Send("可用命令：/status 查看交易机器人状态")
	})
	client.Handle("/status", func(c tele.Context) error {
		if bot.status == nil {
			return c.Send("状态信息暂不可用")
		}
		return c.Send(bot.status())
	})

	return bot, nil
}

func (r *Telegram) Start() {
	go r.client.Start()
}

// Notify 发送消息到配置的会话
func (r *Telegram) Notify(msg string) error {
	chatId := cast.ToInt64(r.settings.ChatID)
	if chatId == 0 {
		return fmt.Errorf("telegram chat_id is not configured")
	}
	_, err := r.client.Send(tele.ChatID(chatId), msg, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	return err
}
