package gbdt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/mbd888/fraudscore/internal/evaluate"
)

var ErrEmptyTraining = errors.New("training set is empty")

// Dataset is a view of matrix rows with labels. Index selects the rows of X
// that belong to the set; nil means every row. Label and Weight are indexed
// like X's rows. Weight may be nil.
type Dataset struct {
	X      *Matrix
	Label  []float64
	Weight []float64
	Index  []int
}

func (d *Dataset) rows() []int {
	if d.Index != nil {
		return d.Index
	}
	idx := make([]int, d.X.Rows)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Booster is a trained ensemble of trees.
type Booster struct {
	Names     []string `json:"names"`
	BaseScore float64  `json:"baseScore"`
	Trees     []Tree   `json:"trees"`
	// Gain is the total split gain per feature, aligned with Names.
	Gain []float64 `json:"gain"`
}

// TrainLog records the validation curve of one training run.
type TrainLog struct {
	// Scores holds the validation AUC after each round; empty without a
	// validation set. A single-class validation set yields NaN entries.
	Scores        []float64 `json:"scores,omitempty"`
	BestIteration int       `json:"bestIteration"`
	BestScore     float64   `json:"bestScore"`
	Rounds        int       `json:"rounds"`
}

// Train fits a booster on train. When valid is non-nil its AUC is tracked
// every round and, with EarlyStoppingRounds set, the booster is truncated to
// its best round.
func Train(ctx context.Context, train, valid *Dataset, p Params) (*Booster, *TrainLog, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	rows := train.rows()
	if len(rows) == 0 {
		return nil, nil, ErrEmptyTraining
	}
	cols := train.X.Cols
	nf := len(cols)

	posW := p.ScalePosWeight
	if posW == 0 {
		posW = 1
	}
	weight := make([]float64, len(rows))
	label := make([]float64, len(rows))
	var sw, swPos float64
	for pos, r := range rows {
		w := 1.0
		if train.Weight != nil {
			w = train.Weight[r]
		}
		label[pos] = train.Label[r]
		if label[pos] > 0.5 {
			w *= posW
			swPos += w
		}
		weight[pos] = w
		sw += w
	}
	base := 0.0
	if swPos > 0 && swPos < sw {
		prior := swPos / sw
		base = math.Log(prior / (1 - prior))
	}

	bn := fitBinner(cols, rows, p.MaxBins)
	bins := bn.binAll(cols, rows)

	b := &Booster{Names: slices.Clone(train.X.Names), BaseScore: base, Gain: make([]float64, nf)}
	margin := make([]float64, len(rows))
	for i := range margin {
		margin[i] = base
	}

	var (
		validRows   []int
		validMargin []float64
		validLabel  []float64
		validCols   [][]float64
	)
	if valid != nil {
		var err error
		if validCols, err = valid.X.reorder(b.Names); err != nil {
			return nil, nil, err
		}
		validRows = valid.rows()
		validMargin = make([]float64, len(validRows))
		validLabel = make([]float64, len(validRows))
		for pos, r := range validRows {
			validMargin[pos] = base
			validLabel[pos] = valid.Label[r]
		}
	}

	rng := rand.New(rand.NewSource(p.Seed))
	grad := make([]float64, len(rows))
	hess := make([]float64, len(rows))
	allFeatures := make([]int, nf)
	for i := range allFeatures {
		allFeatures[i] = i
	}
	log := &TrainLog{BestScore: math.Inf(-1)}
	validProb := make([]float64, len(validRows))
	sinceBest := 0

	for round := 0; round < p.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for i := range rows {
			pr := sigmoid(margin[i])
			grad[i] = (pr - label[i]) * weight[i]
			hess[i] = math.Max(pr*(1-pr), 1e-16) * weight[i]
		}

		positions := make([]int, 0, len(rows))
		for pos := range rows {
			if p.Subsample >= 1 || rng.Float64() < p.Subsample {
				positions = append(positions, pos)
			}
		}
		if len(positions) == 0 {
			positions = append(positions, rng.Intn(len(rows)))
		}

		features := allFeatures
		if p.ColSample < 1 && nf > 1 {
			k := max(1, int(math.Round(p.ColSample*float64(nf))))
			perm := rng.Perm(nf)[:k]
			slices.Sort(perm)
			features = perm
		}

		g := &grower{p: p, bins: bins, binner: bn, grad: grad, hess: hess, features: features, gain: b.Gain}
		g.grow(positions, 0)
		tree := g.tree
		b.Trees = append(b.Trees, tree)

		for pos, r := range rows {
			margin[pos] += tree.predict(cols, r)
		}
		log.Rounds = round + 1

		if valid == nil {
			continue
		}
		for pos, r := range validRows {
			validMargin[pos] += tree.predict(validCols, r)
			validProb[pos] = sigmoid(validMargin[pos])
		}
		auc := evaluate.AUC(validLabel, validProb)
		log.Scores = append(log.Scores, auc)
		if auc > log.BestScore {
			log.BestScore = auc
			log.BestIteration = round
			sinceBest = 0
		} else {
			sinceBest++
		}
		if p.EarlyStoppingRounds > 0 && sinceBest >= p.EarlyStoppingRounds {
			break
		}
	}

	// Without a usable validation curve every round is kept.
	if valid == nil || math.IsInf(log.BestScore, -1) {
		log.BestIteration = len(b.Trees) - 1
		log.BestScore = 0
		return b, log, nil
	}
	if p.EarlyStoppingRounds > 0 {
		b.Trees = b.Trees[:log.BestIteration+1]
	}
	return b, log, nil
}

// Predict returns the positive-class probability of every row of m. Columns
// are matched by name.
func (b *Booster) Predict(m *Matrix) ([]float64, error) {
	cols, err := m.reorder(b.Names)
	if err != nil {
		return nil, err
	}
	out := make([]float64, m.Rows)
	for i := range out {
		s := b.BaseScore
		for t := range b.Trees {
			s += b.Trees[t].predict(cols, i)
		}
		out[i] = sigmoid(s)
	}
	return out, nil
}

// Importance returns the total split gain per feature name.
func (b *Booster) Importance() map[string]float64 {
	out := make(map[string]float64, len(b.Names))
	for i, n := range b.Names {
		out[n] = b.Gain[i]
	}
	return out
}

func (b *Booster) String() string {
	return fmt.Sprintf("gbdt.Booster{features: %d, trees: %d}", len(b.Names), len(b.Trees))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
