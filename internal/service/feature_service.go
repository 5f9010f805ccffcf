package service

import (
	"errors"
	"math"
	"time"

	"github.com/dushixiang/evotrader/pkg/exchange"
	"github.com/dushixiang/evotrader/pkg/ta"
)

// MinLookback 特征提取所需的最少K线数量
const MinLookback = 30

var (
	ErrInsufficientData = errors.New("insufficient kline data for feature extraction")
	ErrInvalidData      = errors.New("kline data contains invalid values")
)

// FeatureVector 特征向量
//
// 入场时刻从K线提取，随交易记录持久化，构成学习样本的输入。
// 字段顺序即 Values() 的输出顺序，模型参数与之对齐。
type FeatureVector struct {
	RSI14         float64 `json:"rsi14"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHist      float64 `json:"macd_hist"`
	BBPosition    float64 `json:"bb_position"`    // 价格在布林带中的相对位置
	EMASpread     float64 `json:"ema_spread"`     // (EMA9-EMA21)/价格
	ATR14         float64 `json:"atr14"`          // 归一化为价格的比例
	VolumeRatio   float64 `json:"volume_ratio"`   // 最新成交量/近20根均量
	PriceChange5  float64 `json:"price_change_5"` // 最近5根涨跌幅
	PriceChange15 float64 `json:"price_change_15"`
}

// Values 按固定顺序展开为数值切片
func (f *FeatureVector) Values() []float64 {
	return []float64{
		f.RSI14,
		f.MACD,
		f.MACDSignal,
		f.MACDHist,
		f.BBPosition,
		f.EMASpread,
		f.ATR14,
		f.VolumeRatio,
		f.PriceChange5,
		f.PriceChange15,
	}
}

// FeatureNames 特征名称，与 Values() 顺序一致
func FeatureNames() []string {
	return []string{
		"rsi14", "macd", "macd_signal", "macd_hist", "bb_position",
		"ema_spread", "atr14", "volume_ratio", "price_change_5", "price_change_15",
	}
}

// FeatureDim 特征维度
func FeatureDim() int {
	return len(FeatureNames())
}

// FeatureService 特征提取服务
type FeatureService struct{}

// NewFeatureService 创建特征提取服务
func NewFeatureService() *FeatureService {
	return &FeatureService{}
}

// Extract 从K线序列提取最新时刻的特征向量
func (s *FeatureService) Extract(klines []*exchange.Kline) (*FeatureVector, error) {
	if len(klines) < MinLookback {
		return nil, ErrInsufficientData
	}

	closes := make([]float64, len(klines))
	highs := make([]float64, len(klines))
	lows := make([]float64, len(klines))
	volumes := make([]float64, len(klines))

	var prevOpen time.Time
	for i, k := range klines {
		if k.Close <= 0 || k.High <= 0 || k.Low <= 0 || k.High < k.Low || k.Volume <= 0 {
			return nil, ErrInvalidData
		}
		// K线必须按时间严格递增
		if i > 0 && !k.OpenTime.After(prevOpen) {
			return nil, ErrInvalidData
		}
		prevOpen = k.OpenTime
		closes[i] = k.Close
		highs[i] = k.High
		lows[i] = k.Low
		volumes[i] = k.Volume
	}

	lastIdx := len(closes) - 1
	price := closes[lastIdx]

	rsi14 := ta.RSI(closes, 14)
	macd, signal, hist := ta.MACD(closes, 12, 26, 9)
	upper, _, lower := ta.BBands(closes, 20, 2.0)
	ema9 := ta.EMA(closes, 9)
	ema21 := ta.EMA(closes, 21)
	atr14 := ta.ATR(highs, lows, closes, 14)

	// 近20根均量（不足20根时取全部）
	volWindow := 20
	if len(volumes) < volWindow {
		volWindow = len(volumes)
	}
	avgVolume := ta.Mean(ta.LastValues(volumes, volWindow))

	volumeRatio := 1.0
	if avgVolume > 0 {
		volumeRatio = volumes[lastIdx] / avgVolume
	}

	fv := &FeatureVector{
		RSI14:         ta.Last(rsi14, 0),
		MACD:          ta.Last(macd, 0),
		MACDSignal:    ta.Last(signal, 0),
		MACDHist:      ta.Last(hist, 0),
		BBPosition:    ta.BBPosition(price, ta.Last(upper, 0), ta.Last(lower, 0)),
		EMASpread:     (ta.Last(ema9, 0) - ta.Last(ema21, 0)) / price,
		ATR14:         ta.Last(atr14, 0) / price,
		VolumeRatio:   volumeRatio,
		PriceChange5:  priceChange(closes, 5),
		PriceChange15: priceChange(closes, 15),
	}

	for _, v := range fv.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrInvalidData
		}
	}
	return fv, nil
}

// priceChange 最近N根K线的涨跌幅
func priceChange(closes []float64, n int) float64 {
	if len(closes) <= n {
		return 0
	}
	prev := closes[len(closes)-1-n]
	if prev == 0 {
		return 0
	}
	return (closes[len(closes)-1] - prev) / prev
}
