package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mbd888/fraudscore/internal/cv"
	"github.com/mbd888/fraudscore/internal/encode"
	"github.com/mbd888/fraudscore/internal/ensemble"
	"github.com/mbd888/fraudscore/internal/features"
	"github.com/mbd888/fraudscore/internal/selection"
	"github.com/mbd888/fraudscore/internal/uid"
)

var ErrInvalidConfig = errors.New("invalid pipeline config")

// FeatureSet toggles the optional row-level feature groups. Temporal
// features are always derived.
type FeatureSet struct {
	Amount   bool `yaml:"amount" json:"amount"`
	Sequence bool `yaml:"sequence" json:"sequence"`
	Email    bool `yaml:"email" json:"email"`
	Device   bool `yaml:"device" json:"device"`
	RowStats bool `yaml:"row_stats" json:"rowStats"`
}

// Config is the full training configuration. It is stored in the artifact so
// scoring replays exactly the transformations used in training.
type Config struct {
	Label    string `yaml:"label" json:"label"`
	RowKey   string `yaml:"row_key" json:"rowKey"`
	Downcast bool   `yaml:"downcast" json:"downcast"`
	// Epoch is the instant TransactionDT counts from.
	Epoch     time.Time        `yaml:"epoch" json:"epoch"`
	Features  FeatureSet       `yaml:"features" json:"features"`
	UID       uid.Config       `yaml:"uid" json:"uid"`
	Encode    encode.Spec      `yaml:"encode" json:"encode"`
	Selection selection.Config `yaml:"selection" json:"selection"`
	CV        cv.Config        `yaml:"cv" json:"cv"`
	Ensemble  ensemble.Config  `yaml:"ensemble" json:"ensemble"`
	// Threshold is the decision threshold of the evaluation report.
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// DefaultConfig enables every feature group and trains the default model
// families over month folds.
func DefaultConfig() Config {
	return Config{
		Label:     "isFraud",
		RowKey:    "TransactionID",
		Downcast:  true,
		Epoch:     features.DefaultEpoch,
		Features:  FeatureSet{Amount: true, Sequence: true, Email: true, Device: true, RowStats: true},
		UID:       uid.DefaultConfig(),
		Encode:    encode.DefaultSpec(),
		Selection: selection.DefaultConfig(),
		CV:        cv.DefaultConfig(),
		Ensemble:  ensemble.DefaultConfig(),
		Threshold: 0.5,
	}
}

func (c Config) Validate() error {
	if c.Label == "" || c.RowKey == "" {
		return fmt.Errorf("%w: label and row_key are required", ErrInvalidConfig)
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("%w: threshold must be in (0, 1), got %v", ErrInvalidConfig, c.Threshold)
	}
	if err := c.UID.Validate(); err != nil {
		return fmt.Errorf("%w: uid: %v", ErrInvalidConfig, err)
	}
	if err := c.Encode.Validate(c.Label); err != nil {
		return err
	}
	if len(c.CV.Families) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, cv.ErrNoFamilies)
	}
	seen := make(map[string]bool, len(c.CV.Families))
	for _, f := range c.CV.Families {
		if f.Name == "" || seen[f.Name] {
			return fmt.Errorf("%w: family names must be unique and non-empty", ErrInvalidConfig)
		}
		seen[f.Name] = true
		if err := f.Params.Validate(); err != nil {
			return fmt.Errorf("family %s: %w", f.Name, err)
		}
	}
	switch c.Ensemble.Strategy {
	case ensemble.StrategyWeighted, ensemble.StrategyRank, ensemble.StrategyStacked, "":
	default:
		return fmt.Errorf("%w: %q", ensemble.ErrUnknownStrategy, c.Ensemble.Strategy)
	}
	return nil
}

// LoadConfig reads a YAML file over DefaultConfig. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("load pipeline config: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodeConfig(f)
}

// DecodeConfig parses YAML from r over DefaultConfig. Empty input yields the
// defaults.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// requiredRaw lists the raw input columns scoring cannot do without.
func (c Config) requiredRaw() []string {
	cols := []string{c.RowKey, features.TimeColumn, features.AmountColumn}
	add := func(names ...string) {
		for _, n := range names {
			if !slices.Contains(cols, n) {
				cols = append(cols, n)
			}
		}
	}
	add(c.UID.Ladder[3]...)
	add(c.UID.Clean.Columns...)
	add(c.UID.TimeColumn, c.UID.DayColumn)
	if c.Features.Sequence {
		add(features.CardColumns...)
	}
	return cols
}
