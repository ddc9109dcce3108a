package frame

import (
	"errors"
	"fmt"
	"math"
)

// ErrDuplicateKey is returned when the right side of a join repeats a key.
var ErrDuplicateKey = errors.New("duplicate join key")

// LeftJoin attaches right's columns to left by an integer key column present
// in both. Every left row is kept; left rows without a match get nulls in the
// right-hand columns. Right rows without a match are discarded.
func LeftJoin(left, right *Table, key string) (*Table, error) {
	lk, err := left.Numeric(key)
	if err != nil {
		return nil, fmt.Errorf("left join: %w", err)
	}
	rk, err := right.Numeric(key)
	if err != nil {
		return nil, fmt.Errorf("left join: %w", err)
	}

	pos := make(map[int64]int, rk.Len())
	for i := 0; i < rk.Len(); i++ {
		v, ok := rk.Float(i)
		if !ok {
			continue
		}
		k := int64(v)
		if _, dup := pos[k]; dup {
			return nil, fmt.Errorf("left join: %w: %d", ErrDuplicateKey, k)
		}
		pos[k] = i
	}

	// match[i] is the right row for left row i, or -1.
	match := make([]int, left.NumRows())
	for i := range match {
		match[i] = -1
		if v, ok := lk.Float(i); ok {
			if j, found := pos[int64(v)]; found {
				match[i] = j
			}
		}
	}

	out := left
	for _, c := range right.Columns() {
		if c.Name() == key {
			continue
		}
		if left.Has(c.Name()) {
			return nil, fmt.Errorf("left join: %w: %s on both sides", ErrDuplicateName, c.Name())
		}
		out, err = out.With(gather(c, match))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// gather picks rows by index, producing nulls where the index is -1.
func gather(c Column, match []int) Column {
	switch col := c.(type) {
	case *NumericColumn:
		vals := make([]float64, len(match))
		for i, j := range match {
			if j < 0 {
				vals[i] = math.NaN()
				continue
			}
			vals[i], _ = col.Float(j)
		}
		return NewNumeric(col.Name(), vals)
	case *CategoricalColumn:
		vals := make([]string, len(match))
		for i, j := range match {
			if j < 0 {
				continue
			}
			vals[i], _ = col.Value(j)
		}
		return NewCategorical(col.Name(), vals)
	}
	return c
}
