package method

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noisySeries(t *testing.T, n int) Series {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		price += 0.5 + rng.NormFloat64()
		closes[i] = price
	}
	return makeSeries(start, closes)
}

func TestARIMADeterministic(t *testing.T) {
	series := noisySeries(t, 30)

	first, err := NewARIMA(15).Forecast(series, 7)
	require.NoError(t, err)
	second, err := NewARIMA(15).Forecast(series, 7)
	require.NoError(t, err)

	require.Len(t, first.Predictions, 7)
	for i := range first.Predictions {
		assert.Equal(t, first.Predictions[i].Close, second.Predictions[i].Close)
		assert.Equal(t, *first.Predictions[i].Lower, *second.Predictions[i].Lower)
		assert.Equal(t, *first.Predictions[i].Upper, *second.Predictions[i].Upper)
	}
}

func TestARIMABoundsBracketPoint(t *testing.T) {
	series := noisySeries(t, 40)

	result, err := NewARIMA(15).Forecast(series, 7)
	require.NoError(t, err)

	var prevWidth float64
	for _, pred := range result.Predictions {
		require.NotNil(t, pred.Lower)
		require.NotNil(t, pred.Upper)
		assert.Less(t, *pred.Lower, pred.Close)
		assert.Greater(t, *pred.Upper, pred.Close)

		width := *pred.Upper - *pred.Lower
		assert.Greater(t, width, prevWidth, "interval must widen with horizon")
		prevWidth = width
	}
}

func TestARIMAConstantSeriesFailsFit(t *testing.T) {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 75
	}
	series := makeSeries(start, closes)

	_, err := NewARIMA(15).Forecast(series, 7)
	assert.ErrorIs(t, err, ErrModelFit)
}

func TestARIMAInsufficientHistory(t *testing.T) {
	series := noisySeries(t, 10)

	_, err := NewARIMA(15).Forecast(series, 7)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestARIMARejectsNonPositiveHorizon(t *testing.T) {
	series := noisySeries(t, 30)

	_, err := NewARIMA(15).Forecast(series, 0)
	assert.ErrorIs(t, err, ErrComputation)
}
