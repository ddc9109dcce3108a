package uid

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/mbd888/fraudscore/internal/frame"
)

// ErrLengthMismatch is returned when the partition mask does not match the table.
var ErrLengthMismatch = errors.New("partition mask length does not match table")

// Config controls identity resolution.
type Config struct {
	Ladder     Ladder      `yaml:"ladder" json:"ladder"`
	Clean      CleanConfig `yaml:"clean" json:"clean"`
	TimeColumn string      `yaml:"time_column" json:"timeColumn"`
	DayColumn  string      `yaml:"day_column" json:"dayColumn"`
	// Tolerance is the widest gap, in days, between registration days that
	// still belong to the same account.
	Tolerance int64 `yaml:"tolerance_days" json:"toleranceDays"`
}

// DefaultConfig resolves on the default ladder with D1 as the
// days-since-registration counter and a one day tolerance.
func DefaultConfig() Config {
	return Config{
		Ladder:     DefaultLadder(),
		Clean:      DefaultCleanConfig(),
		TimeColumn: "TransactionDT",
		DayColumn:  "D1",
		Tolerance:  1,
	}
}

func (c Config) Validate() error {
	if err := c.Ladder.Validate(); err != nil {
		return err
	}
	if err := c.Clean.Validate(); err != nil {
		return err
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance must be >= 0, got %d", c.Tolerance)
	}
	return nil
}

// required lists every column resolution reads.
func (c Config) required() []string {
	cols := append([]string{}, c.Ladder[3]...)
	for _, name := range c.Clean.Columns {
		if !slices.Contains(cols, name) {
			cols = append(cols, name)
		}
	}
	return append(cols, c.TimeColumn, c.DayColumn)
}

// CleanReport records a cleaned column's cardinality before and after cleaning.
type CleanReport struct {
	Column string `json:"column"`
	Before int    `json:"before"`
	After  int    `json:"after"`
}

// Model is a fitted resolver. It is immutable after Fit and safe for
// concurrent use.
type Model struct {
	Config Config `json:"config"`
	// Allowed holds the surviving values of every cleaned column.
	Allowed map[string][]string `json:"allowed"`
	// Clusters maps an encoded Level4 key to its day -> cluster-start table.
	Clusters map[string]map[int64]int64 `json:"clusters"`
	Report   []CleanReport              `json:"report"`

	once       sync.Once
	allowedSet map[string]map[string]bool
	starts     map[string][]int64
}

// Fit learns the cleaning tables and registration-day clusters from the
// pooled population. isTrain[i] marks row i as belonging to the training
// partition.
func Fit(pooled *frame.Table, isTrain []bool, cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(isTrain) != pooled.NumRows() {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(isTrain), pooled.NumRows())
	}
	if err := pooled.Require(cfg.required()...); err != nil {
		return nil, fmt.Errorf("uid fit: %w", err)
	}

	m := &Model{
		Config:   cfg,
		Allowed:  make(map[string][]string, len(cfg.Clean.Columns)),
		Clusters: make(map[string]map[int64]int64),
	}
	for _, name := range cfg.Clean.Columns {
		c, _ := pooled.Column(name)
		allowed := fitAllowed(c, isTrain, cfg.Clean)
		m.Allowed[name] = allowed
		m.Report = append(m.Report, CleanReport{Column: name, Before: frame.Distinct(c), After: len(allowed)})
	}

	r, err := m.newRowReader(pooled)
	if err != nil {
		return nil, err
	}
	days := make(map[string][]int64)
	for i := 0; i < pooled.NumRows(); i++ {
		l4 := r.baseKey(i)
		if d, ok := r.day(i); ok {
			enc := l4.encode()
			days[enc] = append(days[enc], d)
		}
	}
	for enc, ds := range days {
		m.Clusters[enc] = clusterDays(ds, cfg.Tolerance)
	}
	return m, nil
}

func (m *Model) prepare() {
	m.once.Do(func() {
		m.allowedSet = make(map[string]map[string]bool, len(m.Allowed))
		for col, vals := range m.Allowed {
			set := make(map[string]bool, len(vals))
			for _, v := range vals {
				set[v] = true
			}
			m.allowedSet[col] = set
		}
		m.starts = make(map[string][]int64, len(m.Clusters))
		for enc, table := range m.Clusters {
			m.starts[enc] = clusterStarts(table)
		}
	})
}

// Resolve builds the keys of every level for every row of t. The result is
// indexed [level-1][row].
func (m *Model) Resolve(t *frame.Table) ([][]Key, error) {
	if err := t.Require(m.Config.required()...); err != nil {
		return nil, fmt.Errorf("uid resolve: %w", err)
	}
	r, err := m.newRowReader(t)
	if err != nil {
		return nil, err
	}
	n := t.NumRows()
	keys := make([][]Key, len(Levels()))
	for i := range keys {
		keys[i] = make([]Key, n)
	}
	widths := make([]int, 4)
	for l := Level1; l <= Level4; l++ {
		widths[l-1] = len(m.Config.Ladder.Fields(l))
	}

	for i := 0; i < n; i++ {
		l4 := r.baseKey(i)
		for j, w := range widths {
			keys[j][i] = l4.Prefix(w)
		}
		b := keyBuilder{k: l4}
		d, ok := r.day(i)
		if ok {
			d = m.cluster(l4.encode(), d)
			b.add(strconv.FormatInt(d, 10), true)
		} else {
			b.add("", false)
		}
		keys[4][i] = b.k
	}
	return keys, nil
}

// cluster maps a registration day to its cluster start. A day the fitted
// population never saw joins the nearest cluster within tolerance, or starts
// its own.
func (m *Model) cluster(enc string, d int64) int64 {
	if start, found := m.Clusters[enc][d]; found {
		return start
	}
	if start, found := nearestStart(m.starts[enc], d, m.Config.Tolerance); found {
		return start
	}
	return d
}

// Apply returns t with one categorical column per level (uid_L1..uid_L5)
// holding the rendered keys.
func (m *Model) Apply(t *frame.Table) (*frame.Table, error) {
	keys, err := m.Resolve(t)
	if err != nil {
		return nil, err
	}
	cols := make([]frame.Column, len(keys))
	for li, lk := range keys {
		vals := make([]string, len(lk))
		for i, k := range lk {
			vals[i] = k.String()
		}
		cols[li] = frame.NewCategorical(Level(li+1).Column(), vals)
	}
	return t.With(cols...)
}

// rowReader reads cleaned key fields from a table.
type rowReader struct {
	fields []frame.Column
	clean  []map[string]bool // nil when the field is not cleaned
	elapse *frame.NumericColumn
	since  *frame.NumericColumn
}

func (m *Model) newRowReader(t *frame.Table) (*rowReader, error) {
	m.prepare()
	names := m.Config.Ladder[3]
	r := &rowReader{fields: make([]frame.Column, len(names)), clean: make([]map[string]bool, len(names))}
	for i, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		r.fields[i] = c
		r.clean[i] = m.allowedSet[name]
	}
	var err error
	if r.elapse, err = t.Numeric(m.Config.TimeColumn); err != nil {
		return nil, fmt.Errorf("uid: %w", err)
	}
	if r.since, err = t.Numeric(m.Config.DayColumn); err != nil {
		return nil, fmt.Errorf("uid: %w", err)
	}
	return r, nil
}

// baseKey is the cleaned Level4 key of row i.
func (r *rowReader) baseKey(i int) Key {
	var b keyBuilder
	for j, c := range r.fields {
		v, ok := c.Key(i)
		if ok && r.clean[j] != nil && !r.clean[j][v] {
			ok = false
		}
		b.add(v, ok)
	}
	return b.k
}

func (r *rowReader) day(i int) (int64, bool) {
	e, _ := r.elapse.Float(i)
	s, _ := r.since.Float(i)
	return registrationDay(e, s)
}
