package gbdt

import (
	"errors"
	"fmt"

	"github.com/mbd888/fraudscore/internal/frame"
)

var ErrFeatureMismatch = errors.New("feature columns do not match the model")

// Matrix is a column-major dense feature matrix. NaN marks a missing value.
type Matrix struct {
	Names []string
	Cols  [][]float64
	Rows  int
}

// FromTable extracts the named numeric columns of t.
func FromTable(t *frame.Table, names []string) (*Matrix, error) {
	m := &Matrix{Names: append([]string(nil), names...), Cols: make([][]float64, len(names)), Rows: t.NumRows()}
	for i, name := range names {
		c, err := t.Numeric(name)
		if err != nil {
			return nil, fmt.Errorf("feature matrix: %w", err)
		}
		m.Cols[i] = c.Values()
	}
	return m, nil
}

// NewMatrix wraps columns of equal length.
func NewMatrix(names []string, cols [][]float64) (*Matrix, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("%w: %d names for %d columns", ErrFeatureMismatch, len(names), len(cols))
	}
	m := &Matrix{Names: names, Cols: cols}
	for i, c := range cols {
		if i == 0 {
			m.Rows = len(c)
		} else if len(c) != m.Rows {
			return nil, fmt.Errorf("%w: column %s has %d rows, want %d", frame.ErrLengthMismatch, names[i], len(c), m.Rows)
		}
	}
	return m, nil
}

// reorder returns the columns of m in the order of names.
func (m *Matrix) reorder(names []string) ([][]float64, error) {
	pos := make(map[string]int, len(m.Names))
	for i, n := range m.Names {
		pos[n] = i
	}
	out := make([][]float64, len(names))
	for i, n := range names {
		j, ok := pos[n]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrFeatureMismatch, n)
		}
		out[i] = m.Cols[j]
	}
	return out, nil
}
