package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dushixiang/evotrader/internal/config"
	"github.com/dushixiang/evotrader/internal/models"
	"github.com/dushixiang/evotrader/internal/repo"
	"github.com/dushixiang/evotrader/pkg/exchange"
	"github.com/go-orz/orz"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInsufficientSamples = errors.New("insufficient samples for training")

// 训练超参数
const (
	trainEpochs       = 300
	trainLearningRate = 0.1
	holdoutRatio      = 0.2
)

// modelParams 逻辑回归模型参数（JSON持久化格式）
type modelParams struct {
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Means        []float64 `json:"means"` // 训练集特征均值（标准化用）
	Stds         []float64 `json:"stds"`  // 训练集特征标准差
	FeatureNames []string  `json:"feature_names"`
}

// predict 对单个特征向量输出盈利概率
func (m *modelParams) predict(features []float64) float64 {
	z := m.Bias
	for i, w := range m.Weights {
		if i >= len(features) {
			break
		}
		x := features[i]
		if m.Stds[i] > 0 {
			x = (x - m.Means[i]) / m.Stds[i]
		}
		z += w * x
	}
	return 1.0 / (1.0 + math.Exp(-z))
}

// Prediction 预测结果
type Prediction struct {
	Confidence   float64 `json:"confidence"`    // 盈利概率
	Signal       bool    `json:"signal"`        // 是否给出买入信号
	ModelVersion string  `json:"model_version"` // 使用的模型版本，启发式时为空
	Heuristic    bool    `json:"heuristic"`     // 是否为冷启动启发式预测
}

// ModelInfo 当前模型信息
type ModelInfo struct {
	Version     string    `json:"version"`
	TrainedAt   time.Time `json:"trained_at"`
	SampleCount int       `json:"sample_count"`
	Accuracy    float64   `json:"accuracy"`
	Heuristic   bool      `json:"heuristic"` // 尚无训练模型，使用启发式
}

// LearnerService 模型训练与预测服务
//
// 维护一个激活的逻辑回归模型，训练在调用方goroutine中同步执行，
// 预测只读取激活模型指针，模型替换是唯一的写操作。
type LearnerService struct {
	logger *zap.Logger
	conf   config.LearnerConf

	*orz.Service

	artifactRepo   *repo.ModelArtifactRepo
	featureService *FeatureService

	mu      sync.RWMutex
	active  *modelParams
	version string
	info    ModelInfo
}

// NewLearnerService 创建学习服务
func NewLearnerService(conf *config.Config, db *gorm.DB, featureService *FeatureService, logger *zap.Logger) *LearnerService {
	return &LearnerService{
		logger:         logger,
		conf:           conf.Learner,
		Service:        orz.NewService(db),
		artifactRepo:   repo.NewModelArtifactRepo(db),
		featureService: featureService,
		info:           ModelInfo{Heuristic: true},
	}
}

// LoadActive 从数据库恢复激活的模型版本（启动时调用）
func (s *LearnerService) LoadActive(ctx context.Context) error {
	artifact, err := s.artifactRepo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info("no active model found, starting with heuristic predictor")
			return nil
		}
		return fmt.Errorf("failed to load active model: %w", err)
	}

	var params modelParams
	if err := json.Unmarshal(artifact.Params, &params); err != nil {
		return fmt.Errorf("failed to unmarshal model params: %w", err)
	}

	s.swap(&params, &artifact)
	s.logger.Info("active model restored",
		zap.String("version", artifact.ID),
		zap.Int("sample_count", artifact.SampleCount),
		zap.Float64("accuracy", artifact.Accuracy))
	return nil
}

// Predict 预测买入信号与置信度
//
// 无激活模型时退化为指标启发式，置信度由超卖程度和动量合成。
func (s *LearnerService) Predict(fv *FeatureVector) Prediction {
	s.mu.RLock()
	active := s.active
	version := s.version
	s.mu.RUnlock()

	if active == nil {
		confidence := heuristicConfidence(fv)
		return Prediction{
			Confidence: confidence,
			Signal:     confidence >= 0.5,
			Heuristic:  true,
		}
	}

	confidence := active.predict(fv.Values())
	return Prediction{
		Confidence:   confidence,
		Signal:       confidence >= 0.5,
		ModelVersion: version,
	}
}

// ColdStart 在任何真实交易结束前用历史样本训练初始模型
func (s *LearnerService) ColdStart(ctx context.Context, samples []TrainingSample) (*models.ModelArtifact, error) {
	return s.Retrain(ctx, samples)
}

// Retrain 用全部样本重新训练并切换激活模型
//
// 样本不足或只含单一标签时训练失败，已激活的模型保持不变。
func (s *LearnerService) Retrain(ctx context.Context, samples []TrainingSample) (*models.ModelArtifact, error) {
	if len(samples) < s.conf.MinSamples {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, len(samples), s.conf.MinSamples)
	}
	if singleClass(samples) {
		return nil, fmt.Errorf("%w: all samples share one label", ErrInsufficientSamples)
	}

	start := time.Now()
	params, accuracy := trainLogistic(samples)

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model params: %w", err)
	}

	artifact := models.ModelArtifact{
		ID:          ulid.Make().String(),
		TrainedAt:   time.Now(),
		SampleCount: len(samples),
		Params:      paramsJSON,
		Accuracy:    accuracy,
	}

	err = s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.artifactRepo.Create(ctx, &artifact); err != nil {
			return err
		}
		return s.artifactRepo.Activate(ctx, artifact.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist model artifact: %w", err)
	}
	artifact.Active = true

	s.swap(params, &artifact)
	s.logger.Info("model retrained",
		zap.String("version", artifact.ID),
		zap.Int("sample_count", len(samples)),
		zap.Float64("accuracy", accuracy),
		zap.Duration("elapsed", time.Since(start)))
	return &artifact, nil
}

// BootstrapFromHistory 冷启动：用历史K线构造样本训练初始模型
//
// 在第i根K线提取特征，用下一根K线的涨跌作为标签。
func (s *LearnerService) BootstrapFromHistory(ctx context.Context, klines []*exchange.Kline) (*models.ModelArtifact, error) {
	var samples []TrainingSample
	for i := MinLookback; i < len(klines)-1; i++ {
		fv, err := s.featureService.Extract(klines[:i+1])
		if err != nil {
			continue
		}
		label := models.OutcomeLoss
		if klines[i+1].Close > klines[i].Close {
			label = models.OutcomeProfit
		}
		samples = append(samples, TrainingSample{Features: fv.Values(), Label: label})
	}

	s.logger.Info("bootstrap samples built from kline history",
		zap.Int("klines", len(klines)),
		zap.Int("samples", len(samples)))
	return s.ColdStart(ctx, samples)
}

// Info 当前模型信息
func (s *LearnerService) Info() ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// History 模型版本历史
func (s *LearnerService) History(ctx context.Context, limit int) ([]models.ModelArtifact, error) {
	return s.artifactRepo.FindHistory(ctx, limit)
}

func (s *LearnerService) swap(params *modelParams, artifact *models.ModelArtifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = params
	s.version = artifact.ID
	s.info = ModelInfo{
		Version:     artifact.ID,
		TrainedAt:   artifact.TrainedAt,
		SampleCount: artifact.SampleCount,
		Accuracy:    artifact.Accuracy,
	}
}

// heuristicConfidence 冷启动启发式：超卖与动量的加权合成
func heuristicConfidence(fv *FeatureVector) float64 {
	score := 0.5

	// RSI超卖加分，超买减分
	if fv.RSI14 < 30 {
		score += 0.2
	} else if fv.RSI14 > 70 {
		score -= 0.2
	}

	// 布林带下轨附近加分，上轨附近减分
	if fv.BBPosition < 0.2 {
		score += 0.15
	} else if fv.BBPosition > 0.8 {
		score -= 0.15
	}

	// MACD柱状图方向
	if fv.MACDHist > 0 {
		score += 0.1
	} else {
		score -= 0.05
	}

	// 短期均线在长期均线之上
	if fv.EMASpread > 0 {
		score += 0.05
	}

	return clamp(score, 0, 1)
}

// trainLogistic 训练标准化逻辑回归并返回留出集准确率
//
// 样本按时间先后排列，留出集取末尾20%，梯度下降全程确定性。
func trainLogistic(samples []TrainingSample) (*modelParams, float64) {
	holdout := int(float64(len(samples)) * holdoutRatio)
	if holdout < 1 {
		holdout = 1
	}
	trainSet := samples[:len(samples)-holdout]
	holdoutSet := samples[len(samples)-holdout:]

	dim := len(trainSet[0].Features)
	means := make([]float64, dim)
	stds := make([]float64, dim)

	for _, sample := range trainSet {
		for j, v := range sample.Features {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(len(trainSet))
	}
	for _, sample := range trainSet {
		for j, v := range sample.Features {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / float64(len(trainSet)))
	}

	standardize := func(features []float64) []float64 {
		x := make([]float64, dim)
		for j := 0; j < dim; j++ {
			x[j] = features[j]
			if stds[j] > 0 {
				x[j] = (features[j] - means[j]) / stds[j]
			}
		}
		return x
	}

	weights := make([]float64, dim)
	bias := 0.0
	n := float64(len(trainSet))

	for epoch := 0; epoch < trainEpochs; epoch++ {
		gradW := make([]float64, dim)
		gradB := 0.0
		for _, sample := range trainSet {
			x := standardize(sample.Features)
			z := bias
			for j := 0; j < dim; j++ {
				z += weights[j] * x[j]
			}
			p := 1.0 / (1.0 + math.Exp(-z))
			diff := p - float64(sample.Label)
			for j := 0; j < dim; j++ {
				gradW[j] += diff * x[j]
			}
			gradB += diff
		}
		for j := 0; j < dim; j++ {
			weights[j] -= trainLearningRate * gradW[j] / n
		}
		bias -= trainLearningRate * gradB / n
	}

	params := &modelParams{
		Weights:      weights,
		Bias:         bias,
		Means:        means,
		Stds:         stds,
		FeatureNames: FeatureNames(),
	}

	correct := 0
	for _, sample := range holdoutSet {
		predicted := 0
		if params.predict(sample.Features) >= 0.5 {
			predicted = 1
		}
		if predicted == sample.Label {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(holdoutSet))
	return params, accuracy
}

// singleClass 样本是否只包含一种标签
func singleClass(samples []TrainingSample) bool {
	first := samples[0].Label
	for _, sample := range samples[1:] {
		if sample.Label != first {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
