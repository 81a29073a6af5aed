package segment

import "sort"

// Merge normalizes an interval list into a sorted, pairwise non-overlapping,
// minimal set. Touching intervals (next.Start <= current.End) are coalesced
// into a single run. Merge is idempotent: Merge(Merge(x)) == Merge(x).
// Invalid intervals are dropped before the sweep.
func Merge(intervals []Interval) []Interval {
	valid := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.IsValid() {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return []Interval{}
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Start < valid[j].Start
	})

	merged := make([]Interval, 0, len(valid))
	current := valid[0]
	for _, iv := range valid[1:] {
		if iv.Start <= current.End {
			if iv.End > current.End {
				current.End = iv.End
			}
			continue
		}
		merged = append(merged, current)
		current = iv
	}
	merged = append(merged, current)

	return merged
}

// Subtract removes every region covered by b from the intervals of a.
// The subtrahend is normalized via Merge first. For each subtractor the
// surviving intervals fall into one of five cases: disjoint (kept), fully
// covered (dropped), strict containment (split in two), head overlap
// (front trimmed) or tail overlap (back trimmed). Results narrower than
// MinWidth are discarded.
//
// Subtract(a, a) is empty and Subtract(a, nil) returns a unchanged.
func Subtract(a, b []Interval) []Interval {
	working := make([]Interval, 0, len(a))
	for _, iv := range a {
		if iv.IsValid() {
			working = append(working, iv)
		}
	}

	for _, sub := range Merge(b) {
		next := make([]Interval, 0, len(working)+1)
		for _, iv := range working {
			switch {
			case sub.End <= iv.Start || sub.Start >= iv.End:
				// Disjoint.
				next = append(next, iv)
			case sub.Start <= iv.Start && sub.End >= iv.End:
				// Subtractor covers the interval entirely.
			case sub.Start > iv.Start && sub.End < iv.End:
				// Strictly inside: split into two.
				next = append(next, Interval{Start: iv.Start, End: sub.Start})
				next = append(next, Interval{Start: sub.End, End: iv.End})
			case sub.Start <= iv.Start:
				// Overlaps the head.
				next = append(next, Interval{Start: sub.End, End: iv.End})
			default:
				// Overlaps the tail.
				next = append(next, Interval{Start: iv.Start, End: sub.Start})
			}
		}
		working = next
	}

	out := make([]Interval, 0, len(working))
	for _, iv := range working {
		if iv.Width() > MinWidth {
			out = append(out, iv)
		}
	}
	return out
}
