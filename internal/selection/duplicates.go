package selection

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// canonicalNaN makes every missing value hash and compare equal.
const canonicalNaN = 0x7ff8000000000001

// DropDuplicates removes columns whose values are bitwise identical to an
// earlier column, nulls included. It returns the kept names in input order
// and a map from each dropped column to the column it duplicates.
func DropDuplicates(names []string, cols [][]float64) ([]string, map[string]string) {
	buckets := make(map[uint64][]int)
	kept := make([]string, 0, len(names))
	dropped := make(map[string]string)
	var buf [8]byte
	for i, col := range cols {
		d := xxhash.New()
		for _, v := range col {
			binary.LittleEndian.PutUint64(buf[:], bits(v))
			_, _ = d.Write(buf[:])
		}
		h := d.Sum64()

		dup := -1
		for _, j := range buckets[h] {
			if sameBits(cols[j], col) {
				dup = j
				break
			}
		}
		if dup >= 0 {
			dropped[names[i]] = names[dup]
			continue
		}
		buckets[h] = append(buckets[h], i)
		kept = append(kept, names[i])
	}
	return kept, dropped
}

func bits(v float64) uint64 {
	if math.IsNaN(v) {
		return canonicalNaN
	}
	return math.Float64bits(v)
}

func sameBits(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if bits(a[i]) != bits(b[i]) {
			return false
		}
	}
	return true
}
