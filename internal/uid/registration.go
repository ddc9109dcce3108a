package uid

import (
	"math"
	"slices"
)

const secondsPerDay = 86400

// registrationDay infers the day an account was opened: the transaction day
// minus the days-since-first-use counter. ok is false when either is missing.
func registrationDay(elapsed, daysSince float64) (int64, bool) {
	if math.IsNaN(elapsed) || math.IsNaN(daysSince) {
		return 0, false
	}
	return int64(math.Floor(elapsed/secondsPerDay - daysSince)), true
}

// clusterDays groups sorted distinct days into clusters anchored at their
// first day. A day joins the open cluster while it is at most tolerance days
// after the cluster start, so no two days of a cluster differ by more than
// tolerance. Every day maps to its cluster start.
func clusterDays(days []int64, tolerance int64) map[int64]int64 {
	uniq := slices.Clone(days)
	slices.Sort(uniq)
	uniq = slices.Compact(uniq)

	out := make(map[int64]int64, len(uniq))
	var start int64
	for i, d := range uniq {
		if i == 0 || d-start > tolerance {
			start = d
		}
		out[d] = start
	}
	return out
}

// clusterStarts returns the sorted distinct cluster starts of a day table.
func clusterStarts(table map[int64]int64) []int64 {
	starts := make([]int64, 0, len(table))
	for _, s := range table {
		starts = append(starts, s)
	}
	slices.Sort(starts)
	return slices.Compact(starts)
}

// nearestStart returns the start closest to d that is at most tolerance days
// away, preferring the earlier start on a tie.
func nearestStart(starts []int64, d, tolerance int64) (int64, bool) {
	i, _ := slices.BinarySearch(starts, d)
	best, found := int64(0), false
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(starts) {
			continue
		}
		gap := abs(d - starts[j])
		if gap > tolerance {
			continue
		}
		if !found || gap < abs(d-best) {
			best, found = starts[j], true
		}
	}
	return best, found
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
