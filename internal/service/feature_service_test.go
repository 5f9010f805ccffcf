package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractInsufficientData(t *testing.T) {
	s := NewFeatureService()

	_, err := s.Extract(declineKlines(MinLookback-1, 100))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestExtractInvalidData(t *testing.T) {
	s := NewFeatureService()

	klines := declineKlines(60, 100)
	klines[10].Close = 0
	_, err := s.Extract(klines)
	assert.ErrorIs(t, err, ErrInvalidData)

	klines = declineKlines(60, 100)
	klines[20].High = klines[20].Low / 2
	_, err = s.Extract(klines)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestExtractRejectsOutOfOrderTimestamps(t *testing.T) {
	s := NewFeatureService()

	klines := declineKlines(60, 100)
	klines[30].OpenTime = klines[30].OpenTime.Add(-48 * time.Hour)
	_, err := s.Extract(klines)
	assert.ErrorIs(t, err, ErrInvalidData)

	// 时间相同也不允许
	klines = declineKlines(60, 100)
	klines[41].OpenTime = klines[40].OpenTime
	_, err = s.Extract(klines)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestExtractRejectsZeroVolume(t *testing.T) {
	s := NewFeatureService()

	klines := declineKlines(60, 100)
	klines[10].Volume = 0
	_, err := s.Extract(klines)
	assert.ErrorIs(t, err, ErrInvalidData)

	klines = declineKlines(60, 100)
	for _, k := range klines {
		k.Volume = 0
	}
	_, err = s.Extract(klines)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestExtractDeterministic(t *testing.T) {
	s := NewFeatureService()

	first, err := s.Extract(declineKlines(100, 100))
	require.NoError(t, err)
	second, err := s.Extract(declineKlines(100, 100))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtractOversoldDecline(t *testing.T) {
	s := NewFeatureService()

	fv, err := s.Extract(declineKlines(100, 100))
	require.NoError(t, err)

	assert.Less(t, fv.RSI14, 30.0)
	assert.Less(t, fv.BBPosition, 0.5)
	assert.Negative(t, fv.PriceChange5)
	assert.Negative(t, fv.PriceChange15)
	assert.Negative(t, fv.EMASpread)
	assert.Positive(t, fv.ATR14)
	assert.InDelta(t, 1.0, fv.VolumeRatio, 0.01)
}

func TestExtractRisingMarket(t *testing.T) {
	s := NewFeatureService()

	fv, err := s.Extract(riseKlines(100, 100))
	require.NoError(t, err)

	assert.Greater(t, fv.RSI14, 70.0)
	assert.Greater(t, fv.BBPosition, 0.5)
	assert.Positive(t, fv.PriceChange5)
	assert.Positive(t, fv.EMASpread)
}

func TestFeatureVectorShape(t *testing.T) {
	s := NewFeatureService()

	fv, err := s.Extract(declineKlines(100, 100))
	require.NoError(t, err)

	assert.Len(t, fv.Values(), FeatureDim())
	assert.Len(t, FeatureNames(), FeatureDim())
}
