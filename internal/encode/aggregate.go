package encode

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mbd888/fraudscore/internal/frame"
	"github.com/mbd888/fraudscore/internal/uid"
)

// Stat is a per-group statistic of a source column.
type Stat string

const (
	StatMean    Stat = "mean"
	StatStd     Stat = "std"
	StatMin     Stat = "min"
	StatMax     Stat = "max"
	StatCount   Stat = "count"
	StatNUnique Stat = "nunique"
)

func (s Stat) numeric() bool {
	switch s {
	case StatMean, StatStd, StatMin, StatMax:
		return true
	}
	return false
}

func (s Stat) valid() bool {
	return s.numeric() || s == StatCount || s == StatNUnique
}

// ratioOffset keeps the to_mean and to_std ratios finite for zero-mean and
// zero-spread groups.
const ratioOffset = 0.001

// Aggregation summarises Source within each group of a UID level. Output
// columns are named <source>_uid_<level>_<stat>. ToMean adds
// <source>_uid_<level>_to_mean = value / (mean + 0.001) and ToStd adds
// <source>_uid_<level>_to_std = (value - mean) / (std + 0.001).
type Aggregation struct {
	Level  uid.Level `yaml:"level" json:"level"`
	Source string    `yaml:"source" json:"source"`
	Stats  []Stat    `yaml:"stats" json:"stats"`
	ToMean bool      `yaml:"to_mean" json:"toMean,omitempty"`
	ToStd  bool      `yaml:"to_std" json:"toStd,omitempty"`
}

func (a Aggregation) name() string { return a.Source + "_" + a.Level.Column() }

// Columns returns the output column names in emission order.
func (a Aggregation) Columns() []string {
	out := make([]string, 0, len(a.Stats)+2)
	for _, s := range a.Stats {
		out = append(out, a.name()+"_"+string(s))
	}
	if a.ToMean {
		out = append(out, a.name()+"_to_mean")
	}
	if a.ToStd {
		out = append(out, a.name()+"_to_std")
	}
	return out
}

func (a Aggregation) needsNumeric() bool {
	if a.ToMean || a.ToStd {
		return true
	}
	for _, s := range a.Stats {
		if s.numeric() {
			return true
		}
	}
	return false
}

func (a Aggregation) validate() error {
	if a.Level < uid.Level1 || a.Level > uid.Level5 {
		return fmt.Errorf("%w: aggregation of %s has level %d", ErrInvalidSpec, a.Source, a.Level)
	}
	if len(a.Stats) == 0 && !a.ToMean && !a.ToStd {
		return fmt.Errorf("%w: aggregation %s has no stats", ErrInvalidSpec, a.name())
	}
	for _, s := range a.Stats {
		if !s.valid() {
			return fmt.Errorf("%w: aggregation %s has unknown stat %q", ErrInvalidSpec, a.name(), s)
		}
	}
	return nil
}

// GroupStats summarises the non-null source values of one group. Mean, Min
// and Max are zero when Count is zero; Std is zero for groups of fewer than
// two values.
type GroupStats struct {
	Count   int     `json:"n"`
	NUnique int     `json:"u"`
	Mean    float64 `json:"m"`
	Std     float64 `json:"s"`
	Min     float64 `json:"lo"`
	Max     float64 `json:"hi"`
}

func buildGroups(t *frame.Table, a Aggregation) (map[string]GroupStats, error) {
	keyCol, err := t.Column(a.Level.Column())
	if err != nil {
		return nil, err
	}
	src, err := t.Column(a.Source)
	if err != nil {
		return nil, err
	}
	var num *frame.NumericColumn
	if a.needsNumeric() {
		if num, err = t.Numeric(a.Source); err != nil {
			return nil, fmt.Errorf("aggregation %s: %w", a.name(), err)
		}
	}

	type acc struct {
		vals []float64
		seen map[string]struct{}
	}
	groups := make(map[string]*acc)
	for i := 0; i < t.NumRows(); i++ {
		k, ok := keyCol.Key(i)
		if !ok {
			continue
		}
		g := groups[k]
		if g == nil {
			g = &acc{seen: make(map[string]struct{})}
			groups[k] = g
		}
		sv, ok := src.Key(i)
		if !ok {
			continue
		}
		g.seen[sv] = struct{}{}
		if num != nil {
			v, _ := num.Float(i)
			g.vals = append(g.vals, v)
		} else {
			g.vals = append(g.vals, 0)
		}
	}

	out := make(map[string]GroupStats, len(groups))
	for k, g := range groups {
		gs := GroupStats{Count: len(g.vals), NUnique: len(g.seen)}
		if num != nil && len(g.vals) > 0 {
			gs.Min = floats.Min(g.vals)
			gs.Max = floats.Max(g.vals)
			if len(g.vals) > 1 {
				gs.Mean, gs.Std = stat.MeanStdDev(g.vals, nil)
			} else {
				gs.Mean = g.vals[0]
			}
		}
		out[k] = gs
	}
	return out, nil
}

func applyGroups(t *frame.Table, a Aggregation, groups map[string]GroupStats) ([]frame.Column, error) {
	keyCol, err := t.Column(a.Level.Column())
	if err != nil {
		return nil, err
	}
	var num *frame.NumericColumn
	if a.ToMean || a.ToStd {
		if num, err = t.Numeric(a.Source); err != nil {
			return nil, fmt.Errorf("aggregation %s: %w", a.name(), err)
		}
	}
	n := t.NumRows()
	names := a.Columns()
	out := make([][]float64, len(names))
	for i := range out {
		out[i] = make([]float64, n)
	}
	nan := math.NaN()

	for i := 0; i < n; i++ {
		k, ok := keyCol.Key(i)
		if !ok {
			for j := range out {
				out[j][i] = nan
			}
			continue
		}
		gs, seen := groups[k]
		empty := !seen || gs.Count == 0
		for j, s := range a.Stats {
			switch s {
			case StatCount:
				out[j][i] = float64(gs.Count)
			case StatNUnique:
				out[j][i] = float64(gs.NUnique)
			case StatStd:
				out[j][i] = gs.Std
			case StatMean:
				out[j][i] = orNaN(gs.Mean, empty)
			case StatMin:
				out[j][i] = orNaN(gs.Min, empty)
			case StatMax:
				out[j][i] = orNaN(gs.Max, empty)
			}
		}
		j := len(a.Stats)
		if num == nil {
			continue
		}
		v, ok := num.Float(i)
		if a.ToMean {
			if !ok || empty {
				out[j][i] = nan
			} else {
				out[j][i] = v / (gs.Mean + ratioOffset)
			}
			j++
		}
		if a.ToStd {
			if !ok || empty {
				out[j][i] = nan
			} else {
				out[j][i] = (v - gs.Mean) / (gs.Std + ratioOffset)
			}
		}
	}

	cols := make([]frame.Column, len(names))
	for j, name := range names {
		cols[j] = frame.NewNumeric(name, out[j])
	}
	return cols, nil
}

func orNaN(v float64, missing bool) float64 {
	if missing {
		return math.NaN()
	}
	return v
}
