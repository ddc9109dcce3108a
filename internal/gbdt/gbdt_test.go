package gbdt

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudscore/internal/evaluate"
)

func testParams() Params {
	p := FastParams()
	p.Subsample = 1
	return p
}

func separable(n int, seed int64) (*Matrix, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	noise := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = rng.Float64()
		noise[i] = rng.Float64()
		if x[i] > 0.6 {
			y[i] = 1
		}
	}
	m, _ := NewMatrix([]string{"signal", "noise"}, [][]float64{x, noise})
	return m, y
}

func TestCutPoints(t *testing.T) {
	assert.Nil(t, cutPoints(nil, 10))
	assert.Equal(t, []float64{1, 2}, cutPoints([]float64{3, 1, 2, 2}, 10))
	assert.Empty(t, cutPoints([]float64{5, 5, 5}, 10))

	vals := make([]float64, 1000)
	for i := range vals {
		vals[i] = float64(i)
	}
	cuts := cutPoints(vals, 4)
	assert.Len(t, cuts, 3)
	assert.IsIncreasing(t, cuts)
}

func TestBinnerThresholdConsistency(t *testing.T) {
	cols := [][]float64{{0.5, 1.5, math.NaN(), 2.5, 3.5}}
	b := fitBinner(cols, []int{0, 1, 2, 3, 4}, 255)
	assert.Equal(t, uint16(0), b.bin(0, math.NaN()))
	for bin := 1; bin < b.numBins(0)-1; bin++ {
		th := b.threshold(0, bin)
		assert.LessOrEqual(t, int(b.bin(0, th)), bin)
		assert.Greater(t, int(b.bin(0, math.Nextafter(th, math.Inf(1)))), bin)
	}
}

func TestTrainLearnsSeparableSignal(t *testing.T) {
	m, y := separable(400, 1)
	b, log, err := Train(context.Background(), &Dataset{X: m, Label: y}, nil, testParams())
	require.NoError(t, err)
	assert.Equal(t, 40, log.Rounds)
	assert.Len(t, b.Trees, 40)

	pred, err := b.Predict(m)
	require.NoError(t, err)
	assert.Greater(t, evaluate.AUC(y, pred), 0.99)

	imp := b.Importance()
	assert.Greater(t, imp["signal"], imp["noise"])
}

func TestTrainLearnsMissingDirection(t *testing.T) {
	n := 200
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		if i%2 == 0 {
			x[i] = math.NaN()
			y[i] = 1
		} else {
			x[i] = float64(i)
		}
	}
	m, err := NewMatrix([]string{"x"}, [][]float64{x})
	require.NoError(t, err)
	b, _, err := Train(context.Background(), &Dataset{X: m, Label: y}, nil, testParams())
	require.NoError(t, err)

	probe, err := NewMatrix([]string{"x"}, [][]float64{{math.NaN(), 51}})
	require.NoError(t, err)
	pred, err := b.Predict(probe)
	require.NoError(t, err)
	assert.Greater(t, pred[0], 0.9)
	assert.Less(t, pred[1], 0.1)
}

func TestTrainEarlyStoppingTruncates(t *testing.T) {
	m, y := separable(300, 2)
	rng := rand.New(rand.NewSource(3))
	noisy := make([]float64, len(y))
	for i := range noisy {
		noisy[i] = float64(rng.Intn(2))
	}
	p := testParams()
	p.Rounds = 200
	p.EarlyStoppingRounds = 5

	train := &Dataset{X: m, Label: y, Index: seq(0, 200)}
	valid := &Dataset{X: m, Label: noisy, Index: seq(200, 300)}
	b, log, err := Train(context.Background(), train, valid, p)
	require.NoError(t, err)
	assert.Less(t, log.Rounds, 200)
	assert.Len(t, log.Scores, log.Rounds)
	assert.Len(t, b.Trees, log.BestIteration+1)
	assert.Equal(t, log.Scores[log.BestIteration], log.BestScore)
}

func TestTrainHonorsContext(t *testing.T) {
	m, y := separable(50, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Train(ctx, &Dataset{X: m, Label: y}, nil, testParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainRejectsInvalidInput(t *testing.T) {
	m, y := separable(10, 5)
	p := testParams()
	p.Rounds = 0
	_, _, err := Train(context.Background(), &Dataset{X: m, Label: y}, nil, p)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, _, err = Train(context.Background(), &Dataset{X: m, Label: y, Index: []int{}}, nil, testParams())
	assert.ErrorIs(t, err, ErrEmptyTraining)
}

func TestPredictMatchesColumnsByName(t *testing.T) {
	m, y := separable(200, 6)
	b, _, err := Train(context.Background(), &Dataset{X: m, Label: y}, nil, testParams())
	require.NoError(t, err)
	want, err := b.Predict(m)
	require.NoError(t, err)

	swapped, err := NewMatrix([]string{"noise", "signal", "extra"}, [][]float64{m.Cols[1], m.Cols[0], m.Cols[0]})
	require.NoError(t, err)
	got, err := b.Predict(swapped)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	missing, err := NewMatrix([]string{"signal"}, [][]float64{m.Cols[0]})
	require.NoError(t, err)
	_, err = b.Predict(missing)
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestBoosterJSONRoundTrip(t *testing.T) {
	m, y := separable(200, 7)
	b, _, err := Train(context.Background(), &Dataset{X: m, Label: y}, nil, testParams())
	require.NoError(t, err)

	raw, err := json.Marshal(b)
	require.NoError(t, err)
	var back Booster
	require.NoError(t, json.Unmarshal(raw, &back))

	want, _ := b.Predict(m)
	got, err := back.Predict(m)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestScalePosWeightRaisesScores(t *testing.T) {
	m, y := separable(200, 8)
	plain, _, err := Train(context.Background(), &Dataset{X: m, Label: y}, nil, testParams())
	require.NoError(t, err)
	p := testParams()
	p.ScalePosWeight = 5
	weighted, _, err := Train(context.Background(), &Dataset{X: m, Label: y}, nil, p)
	require.NoError(t, err)
	assert.Greater(t, weighted.BaseScore, plain.BaseScore)
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
