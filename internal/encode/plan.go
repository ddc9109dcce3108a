package encode

import (
	"strings"

	"github.com/mbd888/fraudscore/internal/frame"
	"github.com/mbd888/fraudscore/internal/uid"
)

// DefaultSpec is the standard feature-to-level mapping. Entries whose
// columns are absent are dropped by Plan.
func DefaultSpec() Spec {
	s := Spec{
		Frequency: []string{
			"card1", "card2", "card3", "card5", "addr1", "addr2",
			"P_emaildomain", "R_emaildomain", "ProductCD", "DeviceType", "DeviceInfo",
			"id_30", "id_31", "id_33",
		},
		TimeBlocked: []TimeBlock{
			{Column: "card1", Bucket: "DT_M"},
			{Column: "addr1", Bucket: "DT_M"},
			{Column: uid.Level5.Column(), Bucket: "DT_M"},
			// repeats of the same amount on one card
			{Column: "TransactionAmt", Bucket: uid.Level1.Column()},
		},
	}
	for _, l := range uid.Levels() {
		s.Frequency = append(s.Frequency, l.Column())
		s.Aggregations = append(s.Aggregations, Aggregation{
			Level:  l,
			Source: "TransactionAmt",
			Stats:  []Stat{StatMean, StatStd},
			ToMean: true,
			ToStd:  true,
		})
	}
	s.Aggregations = append(s.Aggregations,
		Aggregation{Level: uid.Level1, Source: "D1", Stats: []Stat{StatMean}},
		Aggregation{Level: uid.Level3, Source: "TransactionAmt", Stats: []Stat{StatCount}},
		Aggregation{Level: uid.Level5, Source: "TransactionAmt", Stats: []Stat{StatCount, StatMin, StatMax}},
		Aggregation{Level: uid.Level5, Source: "D4", Stats: []Stat{StatMean, StatStd}},
		Aggregation{Level: uid.Level5, Source: "D10", Stats: []Stat{StatMean, StatStd}},
		Aggregation{Level: uid.Level5, Source: "D15", Stats: []Stat{StatMean, StatStd}},
		Aggregation{Level: uid.Level5, Source: "C1", Stats: []Stat{StatMean}},
		Aggregation{Level: uid.Level5, Source: "C13", Stats: []Stat{StatMean}},
		Aggregation{Level: uid.Level5, Source: "C14", Stats: []Stat{StatMean}},
		Aggregation{Level: uid.Level5, Source: "dist1", Stats: []Stat{StatMean, StatNUnique}},
		Aggregation{Level: uid.Level5, Source: "addr1", Stats: []Stat{StatNUnique}},
		Aggregation{Level: uid.Level5, Source: "P_emaildomain", Stats: []Stat{StatNUnique}},
		Aggregation{Level: uid.Level5, Source: "amt_cents", Stats: []Stat{StatNUnique}},
	)
	return s
}

// Plan restricts base to the columns of t and ordinal-encodes every
// remaining categorical column except the UID keys and label.
func Plan(base Spec, t *frame.Table, label string) Spec {
	s := base.Restrict(t)
	listed := make(map[string]bool, len(s.Ordinal))
	for _, c := range s.Ordinal {
		listed[c] = true
	}
	for _, c := range t.Columns() {
		name := c.Name()
		if c.Kind() != frame.Categorical || listed[name] || name == label || strings.HasPrefix(name, "uid_") {
			continue
		}
		s.Ordinal = append(s.Ordinal, name)
	}
	return s
}
