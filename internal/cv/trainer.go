package cv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mbd888/fraudscore/internal/evaluate"
	"github.com/mbd888/fraudscore/internal/gbdt"
)

var ErrNoFamilies = errors.New("no model families configured")

// Family is one named GBDT configuration trained on every fold.
type Family struct {
	Name   string      `yaml:"name" json:"name"`
	Params gbdt.Params `yaml:"params" json:"params"`
}

// Config drives Train.
type Config struct {
	Folds    FoldConfig `yaml:"folds" json:"folds"`
	Families []Family   `yaml:"families" json:"families"`
	// Patience overrides every family's early stopping rounds when > 0.
	Patience int `yaml:"patience" json:"patience"`
	// MaxConcurrency bounds the number of (family, fold) fits in flight.
	MaxConcurrency int `yaml:"max_concurrency" json:"maxConcurrency"`
}

// DefaultConfig trains a deep and a shallow family over six month folds.
func DefaultConfig() Config {
	deep := gbdt.DefaultParams()
	shallow := gbdt.DefaultParams()
	shallow.MaxDepth = 4
	shallow.LearningRate = 0.1
	shallow.ColSample = 0.8
	shallow.Seed = 7
	return Config{
		Folds:          DefaultFoldConfig(),
		Families:       []Family{{Name: "gbdt_deep", Params: deep}, {Name: "gbdt_shallow", Params: shallow}},
		Patience:       100,
		MaxConcurrency: 4,
	}
}

// FoldReport summarises one (family, fold) fit.
type FoldReport struct {
	Family        string          `json:"family"`
	Fold          int             `json:"fold"`
	TrainRows     int             `json:"trainRows"`
	ValidRows     int             `json:"validRows"`
	ScalePos      float64         `json:"scalePosWeight"`
	BestIteration int             `json:"bestIteration"`
	AUC           evaluate.Metric `json:"auc"`
	Diverged      bool            `json:"diverged"`
	State         State           `json:"state"`
	Duration      time.Duration   `json:"duration"`
}

// FamilyResult holds one family's fold models and reduced predictions.
type FamilyResult struct {
	Name   string          `json:"name"`
	Models []*gbdt.Booster `json:"-"`
	// OOF is NaN for rows that no fold validated.
	OOF    []float64       `json:"-"`
	Test   []float64       `json:"-"`
	OOFAUC evaluate.Metric `json:"oofAuc"`
	Folds  []FoldReport    `json:"folds"`
}

// Result is the outcome of one cross-validated training run.
type Result struct {
	Folds    []Fold         `json:"folds"`
	Families []FamilyResult `json:"families"`
}

// Input is the training matrix with its labels and time buckets. Test is
// optional; when set every fold model scores it.
type Input struct {
	X      *gbdt.Matrix
	Label  []float64
	Groups []float64
	Test   *gbdt.Matrix
}

type job struct {
	family, fold int
	model        *gbdt.Booster
	oof          []float64
	test         []float64
	report       FoldReport
}

// Train fits every family on every fold. Fits run concurrently; each writes
// only its own slot and predictions are reduced in fold order afterwards.
// Any fit error cancels the run.
func Train(ctx context.Context, in Input, cfg Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Families) == 0 {
		return nil, ErrNoFamilies
	}
	if len(in.Label) != in.X.Rows || len(in.Groups) != in.X.Rows {
		return nil, fmt.Errorf("%w: %d rows, %d labels, %d groups",
			evaluate.ErrLengthMismatch, in.X.Rows, len(in.Label), len(in.Groups))
	}
	folds, err := cfg.Folds.Split(in.Groups)
	if err != nil {
		return nil, err
	}

	jobs := make([]*job, 0, len(cfg.Families)*len(folds))
	for f := range cfg.Families {
		for k := range folds {
			jobs = append(jobs, &job{family: f, fold: k})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MaxConcurrency > 0 {
		g.SetLimit(cfg.MaxConcurrency)
	}
	for _, j := range jobs {
		g.Go(func() error {
			return fitFold(gctx, in, folds[j.fold], cfg.Families[j.family], cfg.Patience, j, logger)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Folds: folds}
	for f, fam := range cfg.Families {
		fr := FamilyResult{Name: fam.Name, OOF: make([]float64, in.X.Rows)}
		for i := range fr.OOF {
			fr.OOF[i] = math.NaN()
		}
		if in.Test != nil {
			fr.Test = make([]float64, in.Test.Rows)
		}
		for _, j := range jobs {
			if j.family != f {
				continue
			}
			fr.Models = append(fr.Models, j.model)
			fr.Folds = append(fr.Folds, j.report)
			for pos, row := range folds[j.fold].Valid {
				fr.OOF[row] = j.oof[pos]
			}
			for i, p := range j.test {
				fr.Test[i] += p / float64(len(folds))
			}
		}
		fr.OOFAUC = evaluate.Metric(evaluate.AUC(in.Label, fr.OOF))
		logger.Info("family trained", "family", fam.Name, "folds", len(folds), "oof_auc", fr.OOFAUC)
		res.Families = append(res.Families, fr)
	}
	for k := range res.Folds {
		res.Folds[k].State = Scored
	}
	return res, nil
}

func fitFold(ctx context.Context, in Input, fold Fold, fam Family, patience int, j *job, logger *slog.Logger) error {
	start := time.Now()
	var state State
	if err := state.Advance(Training); err != nil {
		return err
	}
	p := fam.Params
	if patience > 0 {
		p.EarlyStoppingRounds = patience
	}
	var pos, neg float64
	for _, r := range fold.Train {
		if in.Label[r] > 0.5 {
			pos++
		} else {
			neg++
		}
	}
	p.ScalePosWeight = 1
	if pos > 0 {
		p.ScalePosWeight = neg / pos
	}

	train := &gbdt.Dataset{X: in.X, Label: in.Label, Index: fold.Train}
	valid := &gbdt.Dataset{X: in.X, Label: in.Label, Index: fold.Valid}
	model, tlog, err := gbdt.Train(ctx, train, valid, p)
	if err != nil {
		return fmt.Errorf("family %s fold %d: %w", fam.Name, fold.ID, err)
	}
	if err := state.Advance(Validating); err != nil {
		return err
	}
	all, err := model.Predict(in.X)
	if err != nil {
		return fmt.Errorf("family %s fold %d: %w", fam.Name, fold.ID, err)
	}
	j.oof = make([]float64, len(fold.Valid))
	labels := make([]float64, len(fold.Valid))
	for i, r := range fold.Valid {
		j.oof[i] = all[r]
		labels[i] = in.Label[r]
	}
	if in.Test != nil {
		if j.test, err = model.Predict(in.Test); err != nil {
			return fmt.Errorf("family %s fold %d test: %w", fam.Name, fold.ID, err)
		}
	}
	if err := state.Advance(Scored); err != nil {
		return err
	}

	j.model = model
	j.report = FoldReport{
		Family:        fam.Name,
		Fold:          fold.ID,
		TrainRows:     len(fold.Train),
		ValidRows:     len(fold.Valid),
		ScalePos:      p.ScalePosWeight,
		BestIteration: tlog.BestIteration,
		AUC:           evaluate.Metric(evaluate.AUC(labels, j.oof)),
		Diverged:      tlog.BestIteration == 0 && tlog.Rounds > 1,
		State:         state,
		Duration:      time.Since(start),
	}
	if j.report.Diverged {
		logger.Warn("fold did not improve beyond its first iteration",
			"family", fam.Name, "fold", fold.ID, "best_score", tlog.BestScore)
	}
	logger.Debug("fold trained", "family", fam.Name, "fold", fold.ID,
		"best_iteration", tlog.BestIteration, "auc", j.report.AUC)
	return nil
}
