package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/mbd888/fraudscore/internal/frame"
)

var ErrFieldType = errors.New("unsupported field type")

// Record is one decoded JSON object. Numbers must be decoded as json.Number
// (json.Decoder.UseNumber) to keep integer identifiers exact.
type Record map[string]any

// FromRecords types JSON records the way ReadCSV types CSV columns. Columns
// are ordered by first appearance, taking each record's keys in sorted
// order. Keys absent from a record are null.
func FromRecords(recs []Record, opts ReadOptions) (*frame.Table, error) {
	var names []string
	index := make(map[string]int)
	for _, rec := range recs {
		for _, k := range slices.Sorted(maps.Keys(rec)) {
			if _, ok := index[k]; !ok {
				index[k] = len(names)
				names = append(names, k)
			}
		}
	}

	raw := make([][]string, len(names))
	for i := range raw {
		raw[i] = make([]string, len(recs))
	}
	for r, rec := range recs {
		for k, v := range rec {
			s, err := field(v)
			if err != nil {
				return nil, fmt.Errorf("record %d field %s: %w", r, k, err)
			}
			raw[index[k]][r] = s
		}
	}

	forced := make(map[string]bool, len(opts.Categorical))
	for _, n := range opts.Categorical {
		forced[n] = true
	}
	return build(names, raw, forced)
}

func field(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		if isNullLiteral(x) {
			return "", nil
		}
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case bool:
		if x {
			return "T", nil
		}
		return "F", nil
	}
	return "", fmt.Errorf("%w: %T", ErrFieldType, v)
}
