package telegram

import (
	"fmt"

	"github.com/dushixiang/evotrader/internal/service"
	"go.uber.org/zap"
)

// Notifier 消费机器人事件并推送到Telegram
type Notifier struct {
	logger   *zap.Logger
	telegram *Telegram
}

// NewNotifier 创建事件通知器
func NewNotifier(logger *zap.Logger, telegram *Telegram) *Notifier {
	return &Notifier{
		logger:   logger,
		telegram: telegram,
	}
}

// Consume 持续消费事件通道直到其关闭（在独立goroutine中运行）
func (n *Notifier) Consume(events <-chan service.BotEvent) {
	for event := range events {
		msg := n.format(event)
		if msg == "" {
			continue
		}
		if err := n.telegram.Notify(msg); err != nil {
			n.logger.Warn("failed to send telegram notification",
				zap.String("type", event.Type), zap.Error(err))
		}
	}
}

// FormatStatus 把机器人运行状态渲染为 /status 命令的回复
func FormatStatus(status service.BotStatus) string {
	mode := "纸钱包"
	if status.Live {
		mode = "实盘"
	}
	if !status.Running {
		return fmt.Sprintf("机器人未运行（%s模式）", mode)
	}

	model := "启发式（冷启动）"
	if !status.Model.Heuristic {
		model = fmt.Sprintf("%s（样本 %d，准确率 %.2f）",
			status.Model.Version, status.Model.SampleCount, status.Model.Accuracy)
	}

	lines := fmt.Sprintf("状态: %s\n模式: %s\n轮次: %d\n模型: %s",
		status.State, mode, status.Iteration, model)
	if status.Ticker != "" {
		lines += fmt.Sprintf("\n交易对: %s", status.Ticker)
	}
	return lines
}

func (n *Notifier) format(event service.BotEvent) string {
	switch event.Type {
	case "entry":
		return fmt.Sprintf("🟢 *买入* %s\n价格: %.6f\n%s",
			escapeMarkdown(event.Ticker), event.Price, escapeMarkdown(event.Message))
	case "exit":
		emoji := "🔴"
		if event.ProfitRate > 0 {
			emoji = "💰"
		}
		return fmt.Sprintf("%s *卖出* %s\n价格: %.6f\n收益率: %.2f%%\n%s",
			emoji, escapeMarkdown(event.Ticker), event.Price,
			event.ProfitRate*100, escapeMarkdown(event.Message))
	case "retrain":
		return fmt.Sprintf("🧠 *模型更新*\n%s", escapeMarkdown(event.Message))
	case "error":
		return fmt.Sprintf("⚠️ *异常* %s\n%s",
			escapeMarkdown(event.Ticker), escapeMarkdown(event.Message))
	default:
		return ""
	}
}
