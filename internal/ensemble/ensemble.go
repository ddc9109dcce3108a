// Package ensemble blends the probability vectors of several model families
// into one score. Every strategy clips its output to [Epsilon, 1-Epsilon].
package ensemble

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/mbd888/fraudscore/internal/evaluate"
)

var (
	ErrTooFewModels    = errors.New("ensemble needs at least two prediction vectors")
	ErrUnknownStrategy = errors.New("unknown ensemble strategy")
	ErrWeights         = errors.New("invalid ensemble weights")
	ErrNaNPrediction   = errors.New("prediction is NaN")
)

const Epsilon = 1e-6

type Strategy string

const (
	StrategyWeighted Strategy = "weighted"
	StrategyRank     Strategy = "rank"
	StrategyStacked  Strategy = "stacked"
)

// Config selects a strategy. Weights, when set, fixes the weighted blend;
// otherwise weights are learned from out-of-fold AUC. L2 regularises the
// stacked model.
type Config struct {
	Strategy Strategy  `yaml:"strategy" json:"strategy"`
	Weights  []float64 `yaml:"weights,omitempty" json:"weights,omitempty"`
	L2       float64   `yaml:"l2" json:"l2"`
}

func DefaultConfig() Config {
	return Config{Strategy: StrategyWeighted, L2: 1e-3}
}

// Model is the fitted, serialisable state of a strategy.
type Model struct {
	Strategy  Strategy  `json:"strategy"`
	Weights   []float64 `json:"weights,omitempty"`
	Intercept float64   `json:"intercept,omitempty"`
}

// Fit learns the blend from out-of-fold predictions, one vector per model.
// Rows where any model's prediction is NaN are ignored.
func Fit(cfg Config, oof [][]float64, labels []float64) (*Model, error) {
	if err := check(oof, len(labels)); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case StrategyWeighted, "":
		w, err := weights(cfg.Weights, oof, labels)
		if err != nil {
			return nil, err
		}
		return &Model{Strategy: StrategyWeighted, Weights: w}, nil
	case StrategyRank:
		return &Model{Strategy: StrategyRank}, nil
	case StrategyStacked:
		return fitStacked(oof, labels, cfg.L2)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
}

// Combine blends preds, one vector per model in the order used by Fit.
// Every prediction must be a number.
func (m *Model) Combine(preds [][]float64) ([]float64, error) {
	n := 0
	if len(preds) > 0 {
		n = len(preds[0])
	}
	if err := check(preds, n); err != nil {
		return nil, err
	}
	for f, p := range preds {
		for i, v := range p {
			if math.IsNaN(v) {
				return nil, fmt.Errorf("%w: model %d row %d", ErrNaNPrediction, f, i)
			}
		}
	}
	var out []float64
	switch m.Strategy {
	case StrategyWeighted:
		if len(m.Weights) != len(preds) {
			return nil, fmt.Errorf("%w: %d weights for %d models", ErrWeights, len(m.Weights), len(preds))
		}
		out = weighted(preds, m.Weights)
	case StrategyRank:
		out = rankAverage(preds)
	case StrategyStacked:
		if len(m.Weights) != len(preds) {
			return nil, fmt.Errorf("%w: %d coefficients for %d models", ErrWeights, len(m.Weights), len(preds))
		}
		out = m.stack(preds)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, m.Strategy)
	}
	for i, p := range out {
		out[i] = clip(p)
	}
	return out, nil
}

func check(preds [][]float64, n int) error {
	if len(preds) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewModels, len(preds))
	}
	for i, p := range preds {
		if len(p) != n {
			return fmt.Errorf("%w: model %d has %d rows, want %d", evaluate.ErrLengthMismatch, i, len(p), n)
		}
	}
	return nil
}

// clip bounds p to [Epsilon, 1-Epsilon]. NaN maps to 0.5.
func clip(p float64) float64 {
	if math.IsNaN(p) {
		return 0.5
	}
	return min(max(p, Epsilon), 1-Epsilon)
}

// weights normalises fixed weights, or derives them from each model's
// margin over a random ranking (AUC - 0.5). Models no better than random get
// zero weight; if none is better, weights are equal.
func weights(fixed []float64, oof [][]float64, labels []float64) ([]float64, error) {
	w := make([]float64, len(oof))
	if fixed != nil {
		if len(fixed) != len(oof) {
			return nil, fmt.Errorf("%w: %d weights for %d models", ErrWeights, len(fixed), len(oof))
		}
		copy(w, fixed)
	} else {
		for i, p := range oof {
			if auc := evaluate.AUC(labels, p); auc > 0.5 {
				w[i] = auc - 0.5
			}
		}
	}
	var sum float64
	for _, v := range w {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: %v", ErrWeights, w)
		}
		sum += v
	}
	if sum == 0 {
		if fixed != nil {
			return nil, fmt.Errorf("%w: weights sum to zero", ErrWeights)
		}
		for i := range w {
			w[i] = 1
		}
		sum = float64(len(w))
	}
	for i := range w {
		w[i] /= sum
	}
	return w, nil
}

func weighted(preds [][]float64, w []float64) []float64 {
	out := make([]float64, len(preds[0]))
	for m, p := range preds {
		for i, v := range p {
			out[i] += w[m] * v
		}
	}
	return out
}

// rankAverage replaces each model's scores by rank/(n+1), averaging tied
// ranks, and returns the mean over models.
func rankAverage(preds [][]float64) []float64 {
	n := len(preds[0])
	out := make([]float64, n)
	idx := make([]int, n)
	for _, p := range preds {
		for i := range idx {
			idx[i] = i
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			switch {
			case p[a] < p[b]:
				return -1
			case p[a] > p[b]:
				return 1
			}
			return 0
		})
		for i := 0; i < n; {
			j := i
			for j < n && (j == i || p[idx[j]] == p[idx[i]]) {
				j++
			}
			r := (float64(i+j+1) / 2) / float64(n+1)
			for k := i; k < j; k++ {
				out[idx[k]] += r / float64(len(preds))
			}
			i = j
		}
	}
	return out
}
