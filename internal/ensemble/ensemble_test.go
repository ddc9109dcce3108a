package ensemble

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudscore/internal/evaluate"
)

func TestFitRejectsSingleModel(t *testing.T) {
	for _, s := range []Strategy{StrategyWeighted, StrategyRank, StrategyStacked} {
		_, err := Fit(Config{Strategy: s}, [][]float64{{0.1}}, []float64{1})
		assert.ErrorIs(t, err, ErrTooFewModels, s)
	}
	m := &Model{Strategy: StrategyRank}
	_, err := m.Combine([][]float64{{0.1, 0.2}})
	assert.ErrorIs(t, err, ErrTooFewModels)
}

func TestFitRejectsUnknownStrategy(t *testing.T) {
	_, err := Fit(Config{Strategy: "vote"}, [][]float64{{0.1}, {0.2}}, []float64{1})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestFitRejectsRaggedInputs(t *testing.T) {
	_, err := Fit(DefaultConfig(), [][]float64{{0.1, 0.2}, {0.2}}, []float64{1, 0})
	assert.ErrorIs(t, err, evaluate.ErrLengthMismatch)
}

func TestWeightedFixed(t *testing.T) {
	m, err := Fit(Config{Strategy: StrategyWeighted, Weights: []float64{3, 1}}, [][]float64{{0.2}, {0.6}}, []float64{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.75, 0.25}, m.Weights)

	out, err := m.Combine([][]float64{{0.2, 1}, {0.6, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, out[0], 1e-12)
	assert.Equal(t, 1-Epsilon, out[1])

	_, err = Fit(Config{Weights: []float64{1}}, [][]float64{{0.2}, {0.6}}, []float64{1})
	assert.ErrorIs(t, err, ErrWeights)
	_, err = Fit(Config{Weights: []float64{0, 0}}, [][]float64{{0.2}, {0.6}}, []float64{1})
	assert.ErrorIs(t, err, ErrWeights)
	_, err = Fit(Config{Weights: []float64{1, -1}}, [][]float64{{0.2}, {0.6}}, []float64{1})
	assert.ErrorIs(t, err, ErrWeights)
}

func TestWeightedLearnedFromAUC(t *testing.T) {
	labels := []float64{0, 0, 1, 1}
	// AUCs 1, 0.75 and 0
	good := []float64{0.1, 0.2, 0.8, 0.9}
	ok := []float64{0.1, 0.6, 0.5, 0.9}
	bad := []float64{0.9, 0.8, 0.2, 0.1}
	m, err := Fit(DefaultConfig(), [][]float64{good, ok, bad}, labels)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.0 / 3, 1.0 / 3, 0}, m.Weights, 1e-12)

	m, err = Fit(DefaultConfig(), [][]float64{bad, bad}, labels)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, m.Weights)
}

func TestRankAverage(t *testing.T) {
	m, err := Fit(Config{Strategy: StrategyRank}, [][]float64{{0.1}, {0.2}}, []float64{0})
	require.NoError(t, err)
	out, err := m.Combine([][]float64{
		{0.1, 0.5, 0.9},
		{0.3, 0.3, 0.8},
	})
	require.NoError(t, err)
	// model 1 ranks 1,2,3; model 2 ranks 1.5,1.5,3; scaled by 1/4
	assert.InDeltaSlice(t, []float64{1.25 / 4, 1.75 / 4, 3.0 / 4}, out, 1e-12)
}

func TestStackedLearnsInformativeModel(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n := 400
	labels := make([]float64, n)
	informative := make([]float64, n)
	noise := make([]float64, n)
	for i := range labels {
		if rng.Float64() < 0.3 {
			labels[i] = 1
		}
		informative[i] = 0.25 + 0.5*labels[i] + 0.2*(rng.Float64()-0.5)
		noise[i] = rng.Float64()
	}
	informative[0] = math.NaN()

	m, err := Fit(Config{Strategy: StrategyStacked, L2: 1e-3}, [][]float64{informative, noise}, labels)
	require.NoError(t, err)
	assert.Greater(t, m.Weights[0], math.Abs(m.Weights[1]))

	out, err := m.Combine([][]float64{informative[1:], noise[1:]})
	require.NoError(t, err)
	assert.Greater(t, evaluate.AUC(labels[1:], out), 0.99)

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	var back Model
	require.NoError(t, json.Unmarshal(raw, &back))
	again, err := back.Combine([][]float64{informative[1:], noise[1:]})
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestOutputBoundedWithSaturatedInputs(t *testing.T) {
	preds := [][]float64{{0, 1, 0, 1}, {0, 1, 1, 0}}
	labels := []float64{0, 1, 0, 1}
	for _, s := range []Strategy{StrategyWeighted, StrategyRank, StrategyStacked} {
		m, err := Fit(Config{Strategy: s, L2: 0.1}, preds, labels)
		require.NoError(t, err, s)
		out, err := m.Combine(preds)
		require.NoError(t, err, s)
		for _, p := range out {
			assert.GreaterOrEqual(t, p, Epsilon, s)
			assert.LessOrEqual(t, p, 1-Epsilon, s)
		}
	}
}

func TestCombineRejectsNaN(t *testing.T) {
	preds := [][]float64{{0.2, math.NaN(), 0.9}, {0.1, 0.5, 0.7}}
	models := []*Model{
		{Strategy: StrategyWeighted, Weights: []float64{0.5, 0.5}},
		{Strategy: StrategyRank},
		{Strategy: StrategyStacked, Weights: []float64{1, 1}},
	}
	for _, m := range models {
		out, err := m.Combine(preds)
		assert.ErrorIs(t, err, ErrNaNPrediction, m.Strategy)
		assert.Nil(t, out, m.Strategy)
	}
}

func TestRankAverageWithNaNTerminates(t *testing.T) {
	out := rankAverage([][]float64{{0.2, math.NaN(), 0.9}, {0.1, 0.5, 0.7}})
	require.Len(t, out, 3)
	for _, p := range out {
		assert.False(t, math.IsNaN(p))
	}
}

func TestClipNeverReturnsNaN(t *testing.T) {
	assert.Equal(t, 0.5, clip(math.NaN()))
	assert.Equal(t, Epsilon, clip(math.Inf(-1)))
	assert.Equal(t, 1-Epsilon, clip(math.Inf(1)))
	assert.Equal(t, 0.3, clip(0.3))
}
