// Package cv trains GBDT model families under temporal cross-validation.
// Rows are grouped into time buckets (calendar month by default) so that no
// bucket is split between a fold's training and validation sides.
package cv

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	ErrTooFewGroups  = errors.New("not enough time buckets for the fold scheme")
	ErrUnknownScheme = errors.New("unknown fold scheme")
)

type Scheme string

const (
	SchemeGroupKFold Scheme = "group_kfold"
	SchemeForward    Scheme = "forward"
)

// missingBucket holds rows whose bucket value is null.
const missingBucket = math.MinInt64

// Fold is one train/validation partition of row indices.
type Fold struct {
	ID      int     `json:"id"`
	Train   []int   `json:"-"`
	Valid   []int   `json:"-"`
	Buckets []int64 `json:"buckets"`
	State   State   `json:"state"`
}

// FoldConfig selects and parameterises a fold scheme.
type FoldConfig struct {
	Scheme Scheme `yaml:"scheme" json:"scheme"`
	// GroupColumn holds the bucket of every row.
	GroupColumn string `yaml:"group_column" json:"groupColumn"`
	K           int    `yaml:"k" json:"k"`
	// Cut, Gap: forward split trains on buckets < Cut, skips Gap buckets,
	// and validates on the next one.
	Cut int64 `yaml:"cut" json:"cut"`
	Gap int   `yaml:"gap" json:"gap"`
}

func DefaultFoldConfig() FoldConfig {
	return FoldConfig{Scheme: SchemeGroupKFold, GroupColumn: "DT_M", K: 6}
}

// Split partitions rows by their bucket values.
func (c FoldConfig) Split(groups []float64) ([]Fold, error) {
	switch c.Scheme {
	case SchemeGroupKFold, "":
		return GroupKFold(groups, c.K)
	case SchemeForward:
		f, err := ForwardSplit(groups, c.Cut, c.Gap)
		if err != nil {
			return nil, err
		}
		return []Fold{f}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, c.Scheme)
}

func bucketOf(v float64) int64 {
	if math.IsNaN(v) {
		return missingBucket
	}
	return int64(math.Floor(v))
}

// GroupKFold assigns whole buckets to k folds. Buckets are placed largest
// first, each onto the fold with the fewest rows so far.
func GroupKFold(groups []float64, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: k must be >= 2, got %d", ErrTooFewGroups, k)
	}
	counts := make(map[int64]int)
	for _, g := range groups {
		counts[bucketOf(g)]++
	}
	if len(counts) < k {
		return nil, fmt.Errorf("%w: %d buckets for %d folds", ErrTooFewGroups, len(counts), k)
	}
	buckets := make([]int64, 0, len(counts))
	for b := range counts {
		buckets = append(buckets, b)
	}
	slices.SortFunc(buckets, func(a, b int64) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	load := make([]int, k)
	assign := make(map[int64]int, len(buckets))
	folds := make([]Fold, k)
	for _, b := range buckets {
		light := 0
		for f := 1; f < k; f++ {
			if load[f] < load[light] {
				light = f
			}
		}
		assign[b] = light
		load[light] += counts[b]
		folds[light].Buckets = append(folds[light].Buckets, b)
	}
	for f := range folds {
		folds[f].ID = f
		slices.Sort(folds[f].Buckets)
	}
	for i, g := range groups {
		owner := assign[bucketOf(g)]
		for f := range folds {
			if f == owner {
				folds[f].Valid = append(folds[f].Valid, i)
			} else {
				folds[f].Train = append(folds[f].Train, i)
			}
		}
	}
	return folds, nil
}

// ForwardSplit trains on buckets below cut and validates on the bucket that
// follows gap skipped buckets at or after cut.
func ForwardSplit(groups []float64, cut int64, gap int) (Fold, error) {
	seen := make(map[int64]bool)
	var later []int64
	for _, g := range groups {
		b := bucketOf(g)
		if b == missingBucket || b < cut || seen[b] {
			continue
		}
		seen[b] = true
		later = append(later, b)
	}
	slices.Sort(later)
	if gap < 0 || gap >= len(later) {
		return Fold{}, fmt.Errorf("%w: no validation bucket at or after %d with gap %d", ErrTooFewGroups, cut, gap)
	}
	target := later[gap]
	f := Fold{Buckets: []int64{target}}
	for i, g := range groups {
		b := bucketOf(g)
		switch {
		case b == target:
			f.Valid = append(f.Valid, i)
		case b != missingBucket && b < cut:
			f.Train = append(f.Train, i)
		}
	}
	if len(f.Train) == 0 {
		return Fold{}, fmt.Errorf("%w: no training bucket before %d", ErrTooFewGroups, cut)
	}
	return f, nil
}
