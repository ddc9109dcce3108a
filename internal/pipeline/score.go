package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbd888/fraudscore/internal/frame"
	"github.com/mbd888/fraudscore/internal/gbdt"
	"github.com/mbd888/fraudscore/internal/ingest"
	"github.com/mbd888/fraudscore/internal/logging"
	"github.com/mbd888/fraudscore/internal/metrics"
	"github.com/mbd888/fraudscore/internal/traces"
)

var ErrMissingColumns = errors.New("required columns missing")

// Prediction is the fraud probability of one transaction.
type Prediction struct {
	TransactionID int64   `json:"TransactionID"`
	Probability   float64 `json:"isFraud"`
}

// Score replays the artifact's transformations on t and returns one
// prediction per row, in input order. Columns t carries beyond the required
// set are ignored.
func Score(ctx context.Context, art *Artifact, t *frame.Table) (preds []Prediction, err error) {
	start := time.Now()
	logger := logging.L(ctx)
	ctx, span := traces.StartSpan(ctx, "pipeline.Score",
		traces.RunID(art.RunID), traces.Rows(t.NumRows()), traces.Columns(t.NumCols()))
	defer func() { traces.End(span, err) }()

	if err := art.Check(); err != nil {
		return nil, err
	}
	if err := requireColumns(t, art.Required); err != nil {
		return nil, err
	}
	if t.NumRows() == 0 {
		return []Prediction{}, nil
	}

	cfg := art.Config
	if cfg.Downcast {
		t, _ = ingest.Downcast(t, logger)
	}
	stages := []struct {
		name string
		fn   func(*frame.Table) (*frame.Table, error)
	}{
		{"derive", func(t *frame.Table) (*frame.Table, error) { return derive(t, cfg) }},
		{"uid", art.Resolver.Apply},
		{"encode", art.Population.Apply},
	}
	for _, s := range stages {
		if t, err = stage(ctx, s.name, t, s.fn); err != nil {
			return nil, missing(err)
		}
	}

	x, err := gbdt.FromTable(t, art.Features)
	if err != nil {
		return nil, missing(err)
	}
	probs, err := art.predict(x)
	if err != nil {
		return nil, err
	}
	if preds, err = predictions(t, cfg.RowKey, probs); err != nil {
		return nil, err
	}

	metrics.ScoredRowsTotal.Add(float64(len(preds)))
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	logger.Debug("scored", "rows", len(preds), "duration", time.Since(start))
	return preds, nil
}

// requireColumns reports every name t lacks in a single error.
func requireColumns(t *frame.Table, names []string) error {
	var absent []string
	for _, n := range names {
		if !t.Has(n) {
			absent = append(absent, n)
		}
	}
	if len(absent) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingColumns, absent)
	}
	return nil
}

// missing tags absent-column failures of the replayed stages.
func missing(err error) error {
	if errors.Is(err, frame.ErrColumnNotFound) && !errors.Is(err, ErrMissingColumns) {
		return fmt.Errorf("%w: %w", ErrMissingColumns, err)
	}
	return err
}

func predictions(t *frame.Table, rowKey string, probs []float64) ([]Prediction, error) {
	key, err := t.Numeric(rowKey)
	if err != nil {
		return nil, fmt.Errorf("row key: %w", err)
	}
	if len(probs) != t.NumRows() {
		return nil, fmt.Errorf("%d predictions for %d rows", len(probs), t.NumRows())
	}
	out := make([]Prediction, len(probs))
	for i, p := range probs {
		id, ok := key.Float(i)
		if !ok {
			id = 0
		}
		out[i] = Prediction{TransactionID: int64(id), Probability: p}
	}
	return out, nil
}
