// Package gbdt is a histogram gradient-boosted decision tree classifier with
// logistic loss. It supports missing values natively (each split learns the
// direction missing values take), per-row weights, row and column
// subsampling, and early stopping on validation AUC.
package gbdt

import (
	"errors"
	"fmt"
)

var ErrInvalidParams = errors.New("invalid gbdt params")

// Params controls training.
type Params struct {
	Rounds         int     `yaml:"rounds" json:"rounds"`
	LearningRate   float64 `yaml:"learning_rate" json:"learningRate"`
	MaxDepth       int     `yaml:"max_depth" json:"maxDepth"`
	MinChildWeight float64 `yaml:"min_child_weight" json:"minChildWeight"`
	Lambda         float64 `yaml:"lambda" json:"lambda"`
	Gamma          float64 `yaml:"gamma" json:"gamma"`
	MaxBins        int     `yaml:"max_bins" json:"maxBins"`
	Subsample      float64 `yaml:"subsample" json:"subsample"`
	ColSample      float64 `yaml:"colsample" json:"colsample"`
	Seed           int64   `yaml:"seed" json:"seed"`
	// EarlyStoppingRounds stops training after this many rounds without a
	// validation AUC improvement. Zero disables early stopping.
	EarlyStoppingRounds int `yaml:"early_stopping_rounds" json:"earlyStoppingRounds"`
	// ScalePosWeight multiplies the weight of positive rows. Zero means 1.
	ScalePosWeight float64 `yaml:"scale_pos_weight" json:"scalePosWeight"`
}

// DefaultParams are conservative settings for imbalanced tabular data.
func DefaultParams() Params {
	return Params{
		Rounds:              500,
		LearningRate:        0.05,
		MaxDepth:            8,
		MinChildWeight:      1,
		Lambda:              1,
		MaxBins:             255,
		Subsample:           0.8,
		ColSample:           0.5,
		Seed:                42,
		EarlyStoppingRounds: 50,
	}
}

// FastParams is a low-round profile used for feature ranking.
func FastParams() Params {
	p := DefaultParams()
	p.Rounds = 40
	p.LearningRate = 0.2
	p.MaxDepth = 5
	p.EarlyStoppingRounds = 0
	p.ColSample = 1
	return p
}

func (p Params) Validate() error {
	switch {
	case p.Rounds <= 0:
		return fmt.Errorf("%w: rounds must be > 0", ErrInvalidParams)
	case p.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be > 0", ErrInvalidParams)
	case p.MaxDepth <= 0:
		return fmt.Errorf("%w: max_depth must be > 0", ErrInvalidParams)
	case p.MaxBins < 2 || p.MaxBins > 65535:
		return fmt.Errorf("%w: max_bins must be in [2, 65535]", ErrInvalidParams)
	case p.Subsample <= 0 || p.Subsample > 1:
		return fmt.Errorf("%w: subsample must be in (0, 1]", ErrInvalidParams)
	case p.ColSample <= 0 || p.ColSample > 1:
		return fmt.Errorf("%w: colsample must be in (0, 1]", ErrInvalidParams)
	case p.Lambda < 0 || p.MinChildWeight < 0 || p.Gamma < 0:
		return fmt.Errorf("%w: lambda, gamma and min_child_weight must be >= 0", ErrInvalidParams)
	case p.ScalePosWeight < 0:
		return fmt.Errorf("%w: scale_pos_weight must be >= 0", ErrInvalidParams)
	}
	return nil
}
