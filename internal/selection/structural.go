// Package selection chooses the model's feature columns: a structural pass
// that removes identifiers and non-numeric leftovers, then a statistical pass
// that drops exact duplicates and keeps the top features by GBDT gain.
package selection

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mbd888/fraudscore/internal/frame"
)

var ErrSchemaMismatch = errors.New("feature schema mismatch between train and score")

// Structural returns the numeric columns of train that are eligible as
// features, in definition order. Columns named in exclude and the label are
// skipped. When score is non-nil every candidate must also exist in score as
// a numeric column.
func Structural(train, score *frame.Table, label string, exclude []string) ([]string, error) {
	var out []string
	var missing []string
	for _, c := range train.Columns() {
		name := c.Name()
		if name == label || slices.Contains(exclude, name) || c.Kind() != frame.Numeric {
			continue
		}
		out = append(out, name)
		if score == nil {
			continue
		}
		sc, err := score.Column(name)
		if err != nil || sc.Kind() != frame.Numeric {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, missing)
	}
	return out, nil
}
