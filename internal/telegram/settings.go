package telegram

import "net/http"

// Settings 机器人连接配置
type Settings struct {
	Token  string
	ChatID string
	Client *http.Client
}
