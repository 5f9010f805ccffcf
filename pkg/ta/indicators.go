package ta

import (
	talib "github.com/markcheno/go-talib"
)

// 技术指标计算，统一封装 go-talib
// 所有函数输入为时间升序的价格序列，输出与输入等长

// EMA 指数移动平均
func EMA(closes []float64, period int) []float64 {
	return talib.Ema(closes, period)
}

// SMA 简单移动平均
func SMA(closes []float64, period int) []float64 {
	return talib.Sma(closes, period)
}

// RSI 相对强弱指标
func RSI(closes []float64, period int) []float64 {
	return talib.Rsi(closes, period)
}

// MACD 返回 (macd线, 信号线, 柱状图)
func MACD(closes []float64, fast, slow, signal int) ([]float64, []float64, []float64) {
	return talib.Macd(closes, fast, slow, signal)
}

// ATR 平均真实波幅
func ATR(highs, lows, closes []float64, period int) []float64 {
	return talib.Atr(highs, lows, closes, period)
}

// BBands 布林带，返回 (上轨, 中轨, 下轨)
func BBands(closes []float64, period int, dev float64) ([]float64, []float64, []float64) {
	return talib.BBands(closes, period, dev, dev, talib.SMA)
}

// BBPosition 价格在布林带中的相对位置（0=下轨，1=上轨）
func BBPosition(price, upper, lower float64) float64 {
	if upper == lower {
		return 0.5
	}
	return (price - lower) / (upper - lower)
}
