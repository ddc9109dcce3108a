package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/mbd888/fraudscore/internal/encode"
	"github.com/mbd888/fraudscore/internal/ensemble"
	"github.com/mbd888/fraudscore/internal/evaluate"
	"github.com/mbd888/fraudscore/internal/gbdt"
	"github.com/mbd888/fraudscore/internal/uid"
)

// FormatVersion is bumped whenever the artifact layout changes incompatibly.
const FormatVersion = 1

var ErrIncompatibleArtifact = errors.New("incompatible model artifact")

// FamilyModel holds the fold boosters of one model family. Its score is the
// mean of the fold predictions.
type FamilyModel struct {
	Name   string          `json:"name"`
	Models []*gbdt.Booster `json:"models"`
}

// Artifact is everything scoring needs: the configuration, the fitted
// identity resolver and population statistics, the selected features, the
// fold models and the ensemble state.
type Artifact struct {
	FormatVersion int       `json:"formatVersion"`
	RunID         string    `json:"runId"`
	CreatedAt     time.Time `json:"createdAt"`
	Config        Config    `json:"config"`
	// Required lists the raw columns a scoring table must carry.
	Required   []string                     `json:"required"`
	Resolver   *uid.Model                   `json:"resolver"`
	Population *encode.PopulationStatistics `json:"population"`
	Features   []string                     `json:"features"`
	Families   []FamilyModel                `json:"families"`
	// Ensemble is nil when a single family is trained.
	Ensemble *ensemble.Model `json:"ensemble,omitempty"`
	// Reference holds the blended out-of-fold scores of validated rows; drift
	// monitoring compares served scores against it.
	Reference []float64       `json:"reference"`
	OOFAUC    evaluate.Metric `json:"oofAuc"`
}

// Check verifies that a decoded artifact is complete and of a known format.
func (a *Artifact) Check() error {
	switch {
	case a.FormatVersion != FormatVersion:
		return fmt.Errorf("%w: format %d, want %d", ErrIncompatibleArtifact, a.FormatVersion, FormatVersion)
	case a.Resolver == nil || a.Population == nil:
		return fmt.Errorf("%w: missing fitted statistics", ErrIncompatibleArtifact)
	case len(a.Families) == 0 || len(a.Features) == 0:
		return fmt.Errorf("%w: no models", ErrIncompatibleArtifact)
	case len(a.Families) > 1 && a.Ensemble == nil:
		return fmt.Errorf("%w: %d families without an ensemble", ErrIncompatibleArtifact, len(a.Families))
	}
	for _, f := range a.Families {
		if len(f.Models) == 0 {
			return fmt.Errorf("%w: family %s has no models", ErrIncompatibleArtifact, f.Name)
		}
	}
	return nil
}

// predict scores a feature matrix with every family and blends the result.
func (a *Artifact) predict(m *gbdt.Matrix) ([]float64, error) {
	perFamily := make([][]float64, len(a.Families))
	for fi, fam := range a.Families {
		mean := make([]float64, m.Rows)
		for _, b := range fam.Models {
			p, err := b.Predict(m)
			if err != nil {
				return nil, fmt.Errorf("family %s: %w", fam.Name, err)
			}
			for i, v := range p {
				mean[i] += v / float64(len(fam.Models))
			}
		}
		perFamily[fi] = mean
	}
	if a.Ensemble == nil {
		return perFamily[0], nil
	}
	return a.Ensemble.Combine(perFamily)
}
