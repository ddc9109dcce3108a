package selection

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mbd888/fraudscore/internal/frame"
	"github.com/mbd888/fraudscore/internal/gbdt"
)

// Config drives Select.
type Config struct {
	// Exclude lists identifier and raw time columns that never become features.
	Exclude []string `yaml:"exclude" json:"exclude"`
	// TopN keeps the N most important features. Zero keeps all of them.
	TopN int `yaml:"top_n" json:"topN"`
	// Ranking are the GBDT settings of the importance model.
	Ranking gbdt.Params `yaml:"ranking" json:"ranking"`
}

// DefaultTopN is the importance cut of DefaultConfig. Feature sets no wider
// than this skip the ranking model.
const DefaultTopN = 300

// DefaultConfig excludes the row key and the absolute time columns and keeps
// the DefaultTopN most important features.
func DefaultConfig() Config {
	return Config{
		Exclude: []string{"TransactionID", "TransactionDT", "DT_ts", "DT_M", "DT_W", "DT_D"},
		TopN:    DefaultTopN,
		Ranking: gbdt.FastParams(),
	}
}

// Result describes one selection run.
type Result struct {
	Features   []string           `json:"features"`
	Candidates int                `json:"candidates"`
	Duplicates map[string]string  `json:"duplicates,omitempty"`
	Importance map[string]float64 `json:"importance,omitempty"`
}

// Rank orders names by descending gain, ties by input order.
func Rank(names []string, gain map[string]float64) []string {
	out := slices.Clone(names)
	slices.SortStableFunc(out, func(a, b string) int {
		ga, gb := gain[a], gain[b]
		switch {
		case ga > gb:
			return -1
		case ga < gb:
			return 1
		}
		return 0
	})
	return out
}

// Select runs the structural and statistical passes. train must carry the
// label column; score may be nil.
func Select(ctx context.Context, train, score *frame.Table, label string, cfg Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	candidates, err := Structural(train, score, label, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	y, err := train.Numeric(label)
	if err != nil {
		return nil, fmt.Errorf("selection label: %w", err)
	}
	m, err := gbdt.FromTable(train, candidates)
	if err != nil {
		return nil, err
	}
	kept, dropped := DropDuplicates(m.Names, m.Cols)
	res := &Result{Candidates: len(candidates), Duplicates: dropped}
	if cfg.TopN <= 0 || cfg.TopN >= len(kept) {
		res.Features = kept
		logger.Info("feature selection complete", "candidates", len(candidates), "duplicates", len(dropped), "selected", len(kept))
		return res, nil
	}

	km, err := gbdt.FromTable(train, kept)
	if err != nil {
		return nil, err
	}
	booster, _, err := gbdt.Train(ctx, &gbdt.Dataset{X: km, Label: y.Values()}, nil, cfg.Ranking)
	if err != nil {
		return nil, fmt.Errorf("importance model: %w", err)
	}
	res.Importance = booster.Importance()
	res.Features = Rank(kept, res.Importance)[:cfg.TopN]
	logger.Info("feature selection complete",
		"candidates", len(candidates), "duplicates", len(dropped), "selected", len(res.Features))
	return res, nil
}
