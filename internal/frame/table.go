// Package frame provides the in-memory columnar table shared by every
// pipeline stage.
//
// Tables are immutable: operations that add, drop or reorder columns return a
// new Table that shares column storage with its source. Columns themselves
// are never modified after construction.
package frame

import (
	"errors"
	"fmt"
)

var (
	ErrColumnNotFound = errors.New("column not found")
	ErrColumnType     = errors.New("unexpected column type")
	ErrLengthMismatch = errors.New("column length mismatch")
	ErrDuplicateName  = errors.New("duplicate column name")
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Table is an ordered set of equal-length columns.
type Table struct {
	cols  []Column
	index map[string]int
	rows  int
}

// New builds a table. All columns must share a length and have unique names.
func New(cols ...Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrLengthMismatch, c.Name(), c.Len(), t.rows)
		}
		if _, dup := t.index[c.Name()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, c.Name())
		}
		t.index[c.Name()] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is New for statically known inputs; it panics on error.
func MustNew(cols ...Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) NumRows() int { return t.rows }
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns column names in definition order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name()
	}
	return names
}

// Columns returns the columns in definition order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.cols))
	copy(out, t.cols)
	return out
}

func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

func (t *Table) Column(name string) (Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return t.cols[i], nil
}

// Numeric returns the named column as numeric.
func (t *Table) Numeric(name string) (*NumericColumn, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	n, ok := c.(*NumericColumn)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want numeric", ErrColumnType, name, c.Kind())
	}
	return n, nil
}

// Categorical returns the named column as categorical.
func (t *Table) Categorical(name string) (*CategoricalColumn, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	s, ok := c.(*CategoricalColumn)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want categorical", ErrColumnType, name, c.Kind())
	}
	return s, nil
}

// Require returns an error wrapping ErrColumnNotFound listing every missing name.
func (t *Table) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if !t.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrColumnNotFound, missing)
	}
	return nil
}

// With returns a new table with cols appended. A column whose name already
// exists replaces the existing one in place.
func (t *Table) With(cols ...Column) (*Table, error) {
	out := &Table{
		cols:  make([]Column, len(t.cols), len(t.cols)+len(cols)),
		index: make(map[string]int, len(t.cols)+len(cols)),
		rows:  t.rows,
	}
	copy(out.cols, t.cols)
	for k, v := range t.index {
		out.index[k] = v
	}
	for _, c := range cols {
		if len(out.cols) == 0 && out.rows == 0 {
			out.rows = c.Len()
		}
		if c.Len() != out.rows {
			return nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrLengthMismatch, c.Name(), c.Len(), out.rows)
		}
		if i, ok := out.index[c.Name()]; ok {
			out.cols[i] = c
			continue
		}
		out.index[c.Name()] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out, nil
}

// Drop returns a new table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	keep := make([]Column, 0, len(t.cols))
	for _, c := range t.cols {
		if !skip[c.Name()] {
			keep = append(keep, c)
		}
	}
	out := MustNew(keep...)
	out.rows = t.rows
	return out
}

// Select returns a new table with exactly the named columns, in that order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = t.rows
	return out, nil
}

// Take returns a new table holding rows idx, in that order.
func (t *Table) Take(idx []int) *Table {
	cols := make([]Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.Take(idx)
	}
	out := MustNew(cols...)
	out.rows = len(idx)
	return out
}

// Concat stacks b under a. Both tables must have the same column names and
// kinds; b's columns are matched by name.
func Concat(a, b *Table) (*Table, error) {
	if a.NumCols() != b.NumCols() {
		return nil, fmt.Errorf("%w: %d vs %d columns", ErrSchemaMismatch, a.NumCols(), b.NumCols())
	}
	cols := make([]Column, 0, a.NumCols())
	for _, ca := range a.cols {
		cb, err := b.Column(ca.Name())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		c, err := concatColumns(ca, cb)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = a.rows + b.rows
	return out, nil
}

func concatColumns(a, b Column) (Column, error) {
	switch ca := a.(type) {
	case *NumericColumn:
		cb, ok := b.(*NumericColumn)
		if !ok {
			return nil, fmt.Errorf("%w: %s is numeric in one table and %s in the other", ErrSchemaMismatch, a.Name(), b.Kind())
		}
		vals := append(ca.Values(), cb.Values()...)
		return NewNumeric(ca.name, vals), nil
	case *CategoricalColumn:
		cb, ok := b.(*CategoricalColumn)
		if !ok {
			return nil, fmt.Errorf("%w: %s is categorical in one table and %s in the other", ErrSchemaMismatch, a.Name(), b.Kind())
		}
		vals := append(ca.Strings(), cb.Strings()...)
		return NewCategorical(ca.name, vals), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrColumnType, a.Name())
}
