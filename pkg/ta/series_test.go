package ta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLast(t *testing.T) {
	s := []float64{1, 2, 3, 4}
	assert.Equal(t, 4.0, Last(s, 0))
	assert.Equal(t, 3.0, Last(s, 1))
	assert.Equal(t, 1.0, Last(s, 3))
}

func TestCrossover(t *testing.T) {
	macd := []float64{-1, -0.5, 0.2}
	signal := []float64{0, 0, 0}
	assert.True(t, Crossover(macd, signal))
	assert.False(t, Crossunder(macd, signal))
	assert.True(t, Cross(macd, signal))

	// 已经在上方，不算上穿
	above := []float64{0.1, 0.2, 0.3}
	assert.False(t, Crossover(above, signal))
}

func TestCrossunder(t *testing.T) {
	s1 := []float64{1, 0.5, -0.2}
	s2 := []float64{0, 0, 0}
	assert.True(t, Crossunder(s1, s2))
	assert.False(t, Crossover(s1, s2))
}

func TestLastValues(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, []float64{3, 4, 5}, LastValues(s, 3))
	assert.Equal(t, s, LastValues(s, 10))
}

func TestLowestHighest(t *testing.T) {
	s := []float64{5, 1, 9, 3, 7}
	assert.Equal(t, 1.0, Lowest(s, 5))
	assert.Equal(t, 9.0, Highest(s, 5))
	assert.Equal(t, 3.0, Lowest(s, 2))
	assert.Equal(t, 7.0, Highest(s, 2))
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}
