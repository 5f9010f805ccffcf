package xe

import "github.com/go-orz/orz"

var (
	ErrInvalidParams = orz.NewError(10400, "参数无效")

	ErrBotAlreadyRunning   = orz.NewError(20001, "交易机器人已在运行")
	ErrBotNotRunning       = orz.NewError(20002, "交易机器人未在运行")
	ErrCommandQueueFull    = orz.NewError(20003, "指令队列已满，请稍后重试")
	ErrPositionExists      = orz.NewError(20004, "该交易对已有持仓")
	ErrTradeNotOpen        = orz.NewError(20005, "交易不在持仓状态")
	ErrInsufficientSamples = orz.NewError(20006, "训练样本不足")
)
