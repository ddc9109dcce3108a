package frame

import (
	"math"
	"strconv"
)

// Kind distinguishes numeric from categorical columns.
type Kind uint8

const (
	Numeric Kind = iota + 1
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	}
	return "unknown"
}

// Column is a named, nullable, immutable vector of values.
type Column interface {
	Name() string
	Kind() Kind
	Len() int
	IsNull(i int) bool
	// Key renders row i as a canonical string, used for value counting
	// across column kinds. Null rows return ok=false.
	Key(i int) (key string, ok bool)
	Renamed(name string) Column
	Take(idx []int) Column
}

// NumericColumn stores numbers in a fixed-width Storage with a separate
// null mask. nulls is nil when the column has no nulls.
type NumericColumn struct {
	name  string
	store Storage
	nulls []bool
}

// NewNumeric builds a float64-backed column; NaN marks a null.
func NewNumeric(name string, values []float64) *NumericColumn {
	var nulls []bool
	for i, v := range values {
		if math.IsNaN(v) {
			if nulls == nil {
				nulls = make([]bool, len(values))
			}
			nulls[i] = true
		}
	}
	cp := make([]float64, len(values))
	copy(cp, values)
	return &NumericColumn{name: name, store: float64Storage(cp), nulls: nulls}
}

// NewNumericStorage wraps existing storage. nulls may be nil.
func NewNumericStorage(name string, store Storage, nulls []bool) *NumericColumn {
	return &NumericColumn{name: name, store: store, nulls: compactNulls(nulls)}
}

func (c *NumericColumn) Name() string { return c.name }
func (c *NumericColumn) Kind() Kind   { return Numeric }
func (c *NumericColumn) Len() int     { return c.store.Len() }

// Storage exposes the physical backing.
func (c *NumericColumn) Storage() Storage { return c.store }

// Nulls returns the null mask (nil when there are none). Do not modify.
func (c *NumericColumn) Nulls() []bool { return c.nulls }

func (c *NumericColumn) IsNull(i int) bool {
	return c.nulls != nil && c.nulls[i]
}

// Float returns row i; ok is false for nulls.
func (c *NumericColumn) Float(i int) (float64, bool) {
	if c.IsNull(i) {
		return math.NaN(), false
	}
	return c.store.At(i), true
}

// Values decodes the column to float64 with NaN for nulls.
func (c *NumericColumn) Values() []float64 {
	return Decode(c.store, c.nulls)
}

func (c *NumericColumn) Key(i int) (string, bool) {
	v, ok := c.Float(i)
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(v, 'g', -1, 64), true
}

func (c *NumericColumn) Renamed(name string) Column {
	return &NumericColumn{name: name, store: c.store, nulls: c.nulls}
}

func (c *NumericColumn) Take(idx []int) Column {
	var nulls []bool
	if c.nulls != nil {
		nulls = make([]bool, len(idx))
		for i, j := range idx {
			nulls[i] = c.nulls[j]
		}
	}
	return &NumericColumn{name: c.name, store: takeStorage(c.store, idx), nulls: compactNulls(nulls)}
}

// CategoricalColumn stores string categories with a null mask.
type CategoricalColumn struct {
	name   string
	values []string
	nulls  []bool
}

// NewCategorical builds a categorical column; the empty string marks a null.
func NewCategorical(name string, values []string) *CategoricalColumn {
	var nulls []bool
	cp := make([]string, len(values))
	for i, v := range values {
		if v == "" {
			if nulls == nil {
				nulls = make([]bool, len(values))
			}
			nulls[i] = true
			continue
		}
		cp[i] = v
	}
	return &CategoricalColumn{name: name, values: cp, nulls: nulls}
}

func (c *CategoricalColumn) Name() string { return c.name }
func (c *CategoricalColumn) Kind() Kind   { return Categorical }
func (c *CategoricalColumn) Len() int     { return len(c.values) }

func (c *CategoricalColumn) IsNull(i int) bool {
	return c.nulls != nil && c.nulls[i]
}

// Value returns row i; ok is false for nulls.
func (c *CategoricalColumn) Value(i int) (string, bool) {
	if c.IsNull(i) {
		return "", false
	}
	return c.values[i], true
}

// Strings returns a copy of the values with "" for nulls.
func (c *CategoricalColumn) Strings() []string {
	out := make([]string, len(c.values))
	copy(out, c.values)
	return out
}

func (c *CategoricalColumn) Key(i int) (string, bool) {
	return c.Value(i)
}

func (c *CategoricalColumn) Renamed(name string) Column {
	return &CategoricalColumn{name: name, values: c.values, nulls: c.nulls}
}

func (c *CategoricalColumn) Take(idx []int) Column {
	values := make([]string, len(idx))
	var nulls []bool
	for i, j := range idx {
		values[i] = c.values[j]
		if c.nulls != nil && c.nulls[j] {
			if nulls == nil {
				nulls = make([]bool, len(idx))
			}
			nulls[i] = true
		}
	}
	return &CategoricalColumn{name: c.name, values: values, nulls: nulls}
}

// Distinct counts the distinct non-null values of any column.
func Distinct(c Column) int {
	seen := make(map[string]struct{})
	for i := 0; i < c.Len(); i++ {
		if k, ok := c.Key(i); ok {
			seen[k] = struct{}{}
		}
	}
	return len(seen)
}

// CountValues returns the value counts of a column, ignoring nulls.
func CountValues(c Column) map[string]int {
	counts := make(map[string]int)
	for i := 0; i < c.Len(); i++ {
		if k, ok := c.Key(i); ok {
			counts[k]++
		}
	}
	return counts
}

func compactNulls(nulls []bool) []bool {
	for _, n := range nulls {
		if n {
			return nulls
		}
	}
	return nil
}
