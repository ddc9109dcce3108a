// Package pipeline composes ingestion, feature derivation, identity
// resolution, population encoding, feature selection, cross-validated
// training and ensembling into Fit and Score.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mbd888/fraudscore/internal/cv"
	"github.com/mbd888/fraudscore/internal/encode"
	"github.com/mbd888/fraudscore/internal/ensemble"
	"github.com/mbd888/fraudscore/internal/evaluate"
	"github.com/mbd888/fraudscore/internal/frame"
	"github.com/mbd888/fraudscore/internal/gbdt"
	"github.com/mbd888/fraudscore/internal/idgen"
	"github.com/mbd888/fraudscore/internal/ingest"
	"github.com/mbd888/fraudscore/internal/logging"
	"github.com/mbd888/fraudscore/internal/metrics"
	"github.com/mbd888/fraudscore/internal/selection"
	"github.com/mbd888/fraudscore/internal/traces"
	"github.com/mbd888/fraudscore/internal/uid"
)

type options struct {
	cfg    Config
	score  *frame.Table
	logger *slog.Logger
	sink   metrics.Sink
}

// Option configures Fit.
type Option func(*options)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithScoringPopulation pools the unlabeled scoring partition into the
// identity and population statistics, and makes Fit return its predictions.
func WithScoringPopulation(score *frame.Table) Option {
	return func(o *options) { o.score = score }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSink receives the run's summary measurements.
func WithSink(s metrics.Sink) Option {
	return func(o *options) { o.sink = s }
}

// FitReport summarises a training run.
type FitReport struct {
	RunID     string            `json:"runId"`
	Rows      int               `json:"rows"`
	ScoreRows int               `json:"scoreRows"`
	Downcast  *ingest.Report    `json:"downcast,omitempty"`
	UIDClean  []uid.CleanReport `json:"uidClean"`
	Selection *selection.Result `json:"selection"`
	CV        *cv.Result        `json:"cv"`
	OOF       *evaluate.Report  `json:"oof"`
	Duration  time.Duration     `json:"duration"`
	// Predictions scores the pooled scoring partition, when one was given.
	Predictions []Prediction `json:"-"`
}

// Fit trains an artifact on the labeled train table.
func Fit(ctx context.Context, train *frame.Table, opts ...Option) (art *Artifact, rep *FitReport, err error) {
	o := options{cfg: DefaultConfig(), sink: metrics.NopSink{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	cfg := o.cfg
	start := time.Now()
	runID := idgen.RunID()
	ctx = logging.WithRunID(logging.WithLogger(ctx, o.logger), runID)
	logger := logging.L(ctx)

	ctx, span := traces.StartSpan(ctx, "pipeline.Fit", traces.RunID(runID), traces.Rows(train.NumRows()))
	defer func() {
		traces.End(span, err)
		status := "success"
		if err != nil {
			status = "error"
			logger.Error("training failed", "error", err)
		}
		metrics.TrainingRunsTotal.WithLabelValues(status).Inc()
		metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	}()

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	required := cfg.requiredRaw()
	if err := requireColumns(train, append([]string{cfg.Label}, required...)); err != nil {
		return nil, nil, fmt.Errorf("train: %w", err)
	}
	if o.score != nil {
		if err := requireColumns(o.score, required); err != nil {
			return nil, nil, fmt.Errorf("score: %w", err)
		}
	}
	rep = &FitReport{RunID: runID, Rows: train.NumRows(), ScoreRows: rows(o.score)}
	logger.Info("training started", "rows", rep.Rows, "score_rows", rep.ScoreRows, "columns", train.NumCols())

	trainT, scoreT := train, o.score
	if cfg.Downcast {
		trainT, rep.Downcast = ingest.Downcast(trainT, logger)
		if scoreT != nil {
			scoreT, _ = ingest.Downcast(scoreT, logger)
		}
	}

	if trainT, err = stage(ctx, "derive", trainT, func(t *frame.Table) (*frame.Table, error) { return derive(t, cfg) }); err != nil {
		return nil, nil, err
	}
	if scoreT != nil {
		if scoreT, err = stage(ctx, "derive", scoreT, func(t *frame.Table) (*frame.Table, error) { return derive(t, cfg) }); err != nil {
			return nil, nil, err
		}
	}

	pooled, isTrain, err := pool(trainT, scoreT, cfg.Label)
	if err != nil {
		return nil, nil, err
	}
	resolver, err := uid.Fit(pooled, isTrain, cfg.UID)
	if err != nil {
		return nil, nil, err
	}
	rep.UIDClean = resolver.Report
	if pooled, err = resolver.Apply(pooled); err != nil {
		return nil, nil, err
	}

	spec := encode.Plan(cfg.Encode, pooled, cfg.Label)
	if err := spec.Validate(cfg.Label); err != nil {
		return nil, nil, err
	}
	population, err := encode.BuildPopulation(pooled, spec)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("population statistics built", "rows", population.Rows,
		"frequency", len(spec.Frequency), "aggregations", len(spec.Aggregations), "ordinal", len(spec.Ordinal))

	transform := func(t *frame.Table) (*frame.Table, error) {
		u, err := resolver.Apply(t)
		if err != nil {
			return nil, err
		}
		return population.Apply(u)
	}
	if trainT, err = stage(ctx, "encode", trainT, transform); err != nil {
		return nil, nil, err
	}
	if scoreT != nil {
		if scoreT, err = stage(ctx, "encode", scoreT, transform); err != nil {
			return nil, nil, err
		}
	}

	sel, err := selection.Select(ctx, trainT, scoreT, cfg.Label, cfg.Selection, logger)
	if err != nil {
		return nil, nil, err
	}
	rep.Selection = sel

	in, labels, err := trainingInput(trainT, scoreT, sel.Features, cfg)
	if err != nil {
		return nil, nil, err
	}
	cvCtx, cvSpan := traces.StartSpan(ctx, "pipeline.cv", traces.Rows(in.X.Rows), traces.Columns(len(sel.Features)))
	res, err := cv.Train(cvCtx, in, cfg.CV, logger)
	traces.End(cvSpan, err)
	if err != nil {
		return nil, nil, err
	}
	rep.CV = res

	art = &Artifact{
		FormatVersion: FormatVersion,
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
		Config:        cfg,
		Required:      required,
		Resolver:      resolver,
		Population:    population,
		Features:      sel.Features,
	}
	oof := make([][]float64, len(res.Families))
	test := make([][]float64, len(res.Families))
	for i, fr := range res.Families {
		art.Families = append(art.Families, FamilyModel{Name: fr.Name, Models: fr.Models})
		oof[i], test[i] = fr.OOF, fr.Test
		metrics.FamilyOOFAUC.WithLabelValues(fr.Name).Set(float64(fr.OOFAUC))
		o.sink.Log(fr.Name+".oof_auc", float64(fr.OOFAUC))
	}
	if len(oof) > 1 {
		if art.Ensemble, err = ensemble.Fit(cfg.Ensemble, oof, labels); err != nil {
			return nil, nil, err
		}
	}

	refLabels, err := art.reference(oof, labels)
	if err != nil {
		return nil, nil, err
	}
	if rep.OOF, err = evaluate.Evaluate(refLabels, art.Reference, cfg.Threshold); err != nil {
		return nil, nil, err
	}
	art.OOFAUC = rep.OOF.AUC

	if scoreT != nil {
		blended := test[0]
		if art.Ensemble != nil {
			if blended, err = art.Ensemble.Combine(test); err != nil {
				return nil, nil, err
			}
		}
		if rep.Predictions, err = predictions(scoreT, cfg.RowKey, blended); err != nil {
			return nil, nil, err
		}
	}

	rep.Duration = time.Since(start)
	metrics.TrainingRows.Set(float64(rep.Rows))
	o.sink.Log("rows", float64(rep.Rows))
	o.sink.Log("features", float64(len(art.Features)))
	o.sink.Log("oof_auc", float64(art.OOFAUC))
	o.sink.Log("oof_average_precision", float64(rep.OOF.AveragePrecision))
	o.sink.Log("duration_seconds", rep.Duration.Seconds())
	logger.Info("training finished",
		"features", len(art.Features),
		"families", len(art.Families),
		"oof_auc", art.OOFAUC,
		"duration", rep.Duration)
	return art, rep, nil
}

// stage runs one whole-table transformation inside a span.
func stage(ctx context.Context, name string, t *frame.Table, fn func(*frame.Table) (*frame.Table, error)) (*frame.Table, error) {
	_, span := traces.StartSpan(ctx, "pipeline."+name, traces.Rows(t.NumRows()))
	out, err := fn(t)
	if err == nil {
		span.SetAttributes(traces.Columns(out.NumCols()))
	}
	traces.End(span, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	logging.L(ctx).Debug("stage finished", "stage", name, "rows", out.NumRows(), "columns", out.NumCols())
	return out, nil
}

func trainingInput(train, score *frame.Table, names []string, cfg Config) (cv.Input, []float64, error) {
	var in cv.Input
	x, err := gbdt.FromTable(train, names)
	if err != nil {
		return in, nil, err
	}
	label, err := train.Numeric(cfg.Label)
	if err != nil {
		return in, nil, err
	}
	groups, err := train.Numeric(cfg.CV.Folds.GroupColumn)
	if err != nil {
		return in, nil, fmt.Errorf("fold groups: %w", err)
	}
	in = cv.Input{X: x, Label: label.Values(), Groups: groups.Values()}
	if score != nil {
		if in.Test, err = gbdt.FromTable(score, names); err != nil {
			return in, nil, err
		}
	}
	return in, in.Label, nil
}

// reference blends the out-of-fold predictions of the rows every family
// validated and stores them on the artifact. It returns the matching labels.
func (a *Artifact) reference(oof [][]float64, labels []float64) ([]float64, error) {
	var keep []int
	for i := range labels {
		ok := true
		for _, p := range oof {
			if math.IsNaN(p[i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	sub := make([][]float64, len(oof))
	for f, p := range oof {
		sub[f] = make([]float64, len(keep))
		for j, i := range keep {
			sub[f][j] = p[i]
		}
	}
	refLabels := make([]float64, len(keep))
	for j, i := range keep {
		refLabels[j] = labels[i]
	}
	a.Reference = sub[0]
	if a.Ensemble != nil {
		blended, err := a.Ensemble.Combine(sub)
		if err != nil {
			return nil, err
		}
		a.Reference = blended
	}
	return refLabels, nil
}
