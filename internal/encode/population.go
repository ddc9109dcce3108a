// Package encode turns categorical and identity columns into numeric
// population statistics: value frequencies, per-identity aggregations,
// time-blocked counts and ordinal codes.
//
// Statistics are computed once from the pooled train+score population into an
// immutable PopulationStatistics value. Applying it is a pure function of that
// value and the input table, so the same lookups serve training, validation
// and scoring. Nothing here ever reads the label column.
package encode

import (
	"errors"
	"fmt"

	"github.com/mbd888/fraudscore/internal/frame"
)

var (
	// ErrLabelReference means an encoding reads the label column. Encodings
	// built from the label leak the target into the features.
	ErrLabelReference = errors.New("encoding references the label column")
	ErrInvalidSpec    = errors.New("invalid encoding spec")
)

// Spec lists which encodings to compute.
type Spec struct {
	Frequency    []string      `yaml:"frequency" json:"frequency"`
	Aggregations []Aggregation `yaml:"aggregations" json:"aggregations"`
	TimeBlocked  []TimeBlock   `yaml:"time_blocked" json:"timeBlocked"`
	Ordinal      []string      `yaml:"ordinal" json:"ordinal"`
}

// Validate rejects malformed entries and any entry that reads label.
func (s Spec) Validate(label string) error {
	for _, c := range s.Frequency {
		if c == label {
			return fmt.Errorf("%w: frequency of %s", ErrLabelReference, c)
		}
	}
	for _, a := range s.Aggregations {
		if a.Source == label {
			return fmt.Errorf("%w: aggregation source %s", ErrLabelReference, a.Source)
		}
		if err := a.validate(); err != nil {
			return err
		}
	}
	for _, b := range s.TimeBlocked {
		if b.Column == label || b.Bucket == label {
			return fmt.Errorf("%w: time block %s by %s", ErrLabelReference, b.Column, b.Bucket)
		}
	}
	for _, c := range s.Ordinal {
		if c == label {
			return fmt.Errorf("%w: ordinal of %s", ErrLabelReference, c)
		}
	}
	return nil
}

// Columns lists every column the spec reads.
func (s Spec) Columns() []string {
	var out []string
	out = append(out, s.Frequency...)
	for _, a := range s.Aggregations {
		out = append(out, a.Level.Column(), a.Source)
	}
	for _, b := range s.TimeBlocked {
		out = append(out, b.Column, b.Bucket)
	}
	return append(out, s.Ordinal...)
}

// Restrict returns a copy of the spec without entries whose columns are not
// in t.
func (s Spec) Restrict(t *frame.Table) Spec {
	var out Spec
	for _, c := range s.Frequency {
		if t.Has(c) {
			out.Frequency = append(out.Frequency, c)
		}
	}
	for _, a := range s.Aggregations {
		if t.Has(a.Level.Column()) && t.Has(a.Source) {
			out.Aggregations = append(out.Aggregations, a)
		}
	}
	for _, b := range s.TimeBlocked {
		if t.Has(b.Column) && t.Has(b.Bucket) {
			out.TimeBlocked = append(out.TimeBlocked, b)
		}
	}
	for _, c := range s.Ordinal {
		if t.Has(c) {
			out.Ordinal = append(out.Ordinal, c)
		}
	}
	return out
}

// PopulationStatistics holds every lookup table learned from the pooled
// population. It is never modified after BuildPopulation returns.
type PopulationStatistics struct {
	Spec Spec `json:"spec"`
	Rows int  `json:"rows"`

	// Frequency[column][value] is the pooled count of value.
	Frequency map[string]map[string]int `json:"frequency"`
	// Groups[aggregation name][key] summarises the source within one group.
	Groups map[string]map[string]GroupStats `json:"groups"`
	// Blocks[block name][bucket][value] counts value within a time bucket.
	Blocks map[string]map[string]map[string]int `json:"blocks"`
	// BucketRows[bucket column][bucket] is the number of rows in the bucket.
	BucketRows map[string]map[string]int `json:"bucketRows"`
	// Ordinal[column] lists the pooled values in code order.
	Ordinal map[string][]string `json:"ordinal"`
}

// BuildPopulation computes the statistics named by spec over the pooled
// table.
func BuildPopulation(pooled *frame.Table, spec Spec) (*PopulationStatistics, error) {
	if err := pooled.Require(spec.Columns()...); err != nil {
		return nil, fmt.Errorf("build population: %w", err)
	}
	p := &PopulationStatistics{
		Spec:       spec,
		Rows:       pooled.NumRows(),
		Frequency:  make(map[string]map[string]int, len(spec.Frequency)),
		Groups:     make(map[string]map[string]GroupStats, len(spec.Aggregations)),
		Blocks:     make(map[string]map[string]map[string]int, len(spec.TimeBlocked)),
		BucketRows: make(map[string]map[string]int),
		Ordinal:    make(map[string][]string, len(spec.Ordinal)),
	}
	for _, name := range spec.Frequency {
		c, _ := pooled.Column(name)
		p.Frequency[name] = frame.CountValues(c)
	}
	for _, a := range spec.Aggregations {
		groups, err := buildGroups(pooled, a)
		if err != nil {
			return nil, err
		}
		p.Groups[a.name()] = groups
	}
	for _, b := range spec.TimeBlocked {
		counts, rows := buildBlock(pooled, b)
		p.Blocks[b.name()] = counts
		p.BucketRows[b.Bucket] = rows
	}
	for _, name := range spec.Ordinal {
		c, _ := pooled.Column(name)
		p.Ordinal[name] = buildOrdinal(c)
	}
	return p, nil
}

// Apply appends every encoding to t. Ordinal encodings replace their source
// column in place.
func (p *PopulationStatistics) Apply(t *frame.Table) (*frame.Table, error) {
	if err := t.Require(p.Spec.Columns()...); err != nil {
		return nil, fmt.Errorf("apply population: %w", err)
	}
	var cols []frame.Column
	for _, name := range p.Spec.Frequency {
		c, _ := t.Column(name)
		cols = append(cols, applyFrequency(c, p.Frequency[name], p.Rows)...)
	}
	for _, a := range p.Spec.Aggregations {
		out, err := applyGroups(t, a, p.Groups[a.name()])
		if err != nil {
			return nil, err
		}
		cols = append(cols, out...)
	}
	for _, b := range p.Spec.TimeBlocked {
		cols = append(cols, applyBlock(t, b, p.Blocks[b.name()], p.BucketRows[b.Bucket])...)
	}
	for _, name := range p.Spec.Ordinal {
		c, _ := t.Column(name)
		cols = append(cols, applyOrdinal(c, p.Ordinal[name]))
	}
	return t.With(cols...)
}
