package pipeline

import (
	"fmt"

	"github.com/mbd888/fraudscore/internal/features"
	"github.com/mbd888/fraudscore/internal/frame"
)

type deriveStep struct {
	name string
	on   bool
	fn   func(*frame.Table) (*frame.Table, error)
}

// derive applies the row-level feature groups enabled in cfg. It reads no
// population statistics, so train and score rows are derived independently.
func derive(t *frame.Table, cfg Config) (*frame.Table, error) {
	temporal := features.TemporalConfig{Epoch: cfg.Epoch}
	steps := []deriveStep{
		{"temporal", true, func(t *frame.Table) (*frame.Table, error) { return features.DeriveTemporal(t, temporal) }},
		{"amount", cfg.Features.Amount, features.DeriveAmount},
		{"sequence", cfg.Features.Sequence, features.DeriveSequence},
		{"email", cfg.Features.Email, features.DeriveEmail},
		{"device", cfg.Features.Device, features.DeriveDevice},
		{"row_stats", cfg.Features.RowStats, features.DeriveRowStats},
	}
	out := t
	for _, s := range steps {
		if !s.on {
			continue
		}
		next, err := s.fn(out)
		if err != nil {
			return nil, fmt.Errorf("%s features: %w", s.name, err)
		}
		out = next
	}
	return out, nil
}

// pool stacks the columns train and score share, in train order, with the
// label removed. isTrain marks the rows that came from train.
func pool(train, score *frame.Table, label string) (*frame.Table, []bool, error) {
	base := train.Drop(label)
	isTrain := make([]bool, base.NumRows(), base.NumRows()+rows(score))
	for i := range isTrain {
		isTrain[i] = true
	}
	if score == nil {
		return base, isTrain, nil
	}
	var common []string
	for _, n := range base.Names() {
		if score.Has(n) {
			common = append(common, n)
		}
	}
	a, err := base.Select(common...)
	if err != nil {
		return nil, nil, err
	}
	b, err := score.Select(common...)
	if err != nil {
		return nil, nil, err
	}
	pooled, err := frame.Concat(a, b)
	if err != nil {
		return nil, nil, fmt.Errorf("pool train and score: %w", err)
	}
	return pooled, append(isTrain, make([]bool, score.NumRows())...), nil
}

func rows(t *frame.Table) int {
	if t == nil {
		return 0
	}
	return t.NumRows()
}
