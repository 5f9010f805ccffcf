package config

type Config struct {
	Telegram TelegramConf `json:"telegram"`
	Binance  BinanceConf  `json:"binance"`
	Trading  TradingConf  `json:"trading"`
	Learner  LearnerConf  `json:"learner"`
	Selector SelectorConf `json:"selector"`
}

type TelegramConf struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  string `json:"chat_id"`
}

type BinanceConf struct {
	APIKey   string `json:"api_key"`
	Secret   string `json:"secret"`
	ProxyURL string `json:"proxy_url"` // 代理地址，例如: http://127.0.0.1:7890
	Testnet  bool   `json:"testnet"`   // 是否使用测试网
}

type TradingConf struct {
	Live                bool            `json:"live"`                 // 是否启用真实交易，false时使用纸钱包模式
	PaperWallet         PaperWalletConf `json:"paper_wallet"`         // 纸钱包配置
	Ticker              string          `json:"ticker"`               // 固定交易对，如 BTCUSDT（启用选币器时作为兜底）
	UseSelector         bool            `json:"use_selector"`         // 是否启用选币器动态选择交易对
	IntervalSeconds     int             `json:"interval_seconds"`     // 轮询周期（秒），默认60
	TradeAmount         float64         `json:"trade_amount"`         // 单笔买入金额（USDT）
	TargetProfit        float64         `json:"target_profit"`        // 止盈收益率，默认0.02
	StopLoss            float64         `json:"stop_loss"`            // 止损收益率，默认0.02
	RebuyThreshold      float64         `json:"rebuy_threshold"`      // 再次买入的价格偏移阈值，默认0.015
	ConfidenceThreshold float64         `json:"confidence_threshold"` // 入场所需最低模型置信度
	FeeRate             float64         `json:"fee_rate"`             // 单边手续费率，默认0.001
}

type PaperWalletConf struct {
	InitialBalance float64 `json:"initial_balance"` // 初始余额（USDT），默认1000
}

type LearnerConf struct {
	MinSamples       int `json:"min_samples"`       // 训练所需最少样本数，默认30
	RetrainThreshold int `json:"retrain_threshold"` // 每累计N笔平仓触发重训练，默认10
}

type SelectorConf struct {
	TopN                int      `json:"top_n"`                // 推荐候选数量，默认5
	Quote               string   `json:"quote"`                // 计价货币，默认USDT
	CandidateLimit      int      `json:"candidate_limit"`      // 按成交量筛选的候选池大小
	ScoreThreshold      float64  `json:"score_threshold"`      // 入选最低综合评分，默认60
	ConfidenceThreshold float64  `json:"confidence_threshold"` // 入选最低模型置信度，默认0.6
	Fallback            []string `json:"fallback"`             // 行情不可用时的兜底候选列表
}

// Normalize 填充未配置项的默认值
func (c *Config) Normalize() {
	if c.Trading.IntervalSeconds <= 0 {
		c.Trading.IntervalSeconds = 60
	}
	if c.Trading.TradeAmount <= 0 {
		c.Trading.TradeAmount = 100
	}
	if c.Trading.TargetProfit <= 0 {
		c.Trading.TargetProfit = 0.02
	}
	if c.Trading.StopLoss <= 0 {
		c.Trading.StopLoss = 0.02
	}
	if c.Trading.RebuyThreshold <= 0 {
		c.Trading.RebuyThreshold = 0.015
	}
	if c.Trading.ConfidenceThreshold <= 0 {
		c.Trading.ConfidenceThreshold = 0.6
	}
	if c.Trading.FeeRate <= 0 {
		c.Trading.FeeRate = 0.001
	}
	if c.Trading.PaperWallet.InitialBalance <= 0 {
		c.Trading.PaperWallet.InitialBalance = 1000
	}
	if c.Trading.Ticker == "" {
		c.Trading.Ticker = "BTCUSDT"
	}
	if c.Learner.MinSamples <= 0 {
		c.Learner.MinSamples = 30
	}
	if c.Learner.RetrainThreshold <= 0 {
		c.Learner.RetrainThreshold = 10
	}
	if c.Selector.TopN <= 0 {
		c.Selector.TopN = 5
	}
	if c.Selector.Quote == "" {
		c.Selector.Quote = "USDT"
	}
	if c.Selector.CandidateLimit <= 0 {
		c.Selector.CandidateLimit = 30
	}
	if c.Selector.ScoreThreshold <= 0 {
		c.Selector.ScoreThreshold = 60
	}
	if c.Selector.ConfidenceThreshold <= 0 {
		c.Selector.ConfidenceThreshold = 0.6
	}
	if len(c.Selector.Fallback) == 0 {
		c.Selector.Fallback = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT"}
	}
}
