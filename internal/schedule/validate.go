package schedule

import (
	"cmp"
	"slices"

	"tutorgrid/internal/model"
)

// Violation is a pair of sessions sharing a lane with overlapping intervals.
type Violation struct {
	Weekday model.Weekday
	Lane    int
	A, B    string
}

// Validate reports every same-lane overlap in the snapshot, ordered by
// weekday, lane and IDs.
func Validate(sessions []model.Session) []Violation {
	type key struct {
		day  model.Weekday
		lane int
	}
	buckets := make(map[key][]model.Session)
	for _, s := range sessions {
		k := key{s.Weekday, s.Lane}
		buckets[k] = append(buckets[k], s)
	}

	var out []Violation
	for k, bucket := range buckets {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				if !model.Overlaps(bucket[i].Interval, bucket[j].Interval) {
					continue
				}
				a, b := bucket[i].ID, bucket[j].ID
				if b < a {
					a, b = b, a
				}
				out = append(out, Violation{Weekday: k.day, Lane: k.lane, A: a, B: b})
			}
		}
	}

	slices.SortFunc(out, func(x, y Violation) int {
		return cmp.Or(
			cmp.Compare(x.Weekday, y.Weekday),
			cmp.Compare(x.Lane, y.Lane),
			cmp.Compare(x.A, y.A),
			cmp.Compare(x.B, y.B),
		)
	})
	return out
}

// Day returns a copy of the sessions on weekday d ordered by lane, start
// and ID.
func Day(sessions []model.Session, d model.Weekday) []model.Session {
	var out []model.Session
	for _, s := range sessions {
		if s.Weekday == d {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(x, y model.Session) int {
		return cmp.Or(
			cmp.Compare(x.Lane, y.Lane),
			cmp.Compare(x.Interval.Start, y.Interval.Start),
			cmp.Compare(x.ID, y.ID),
		)
	})
	return out
}
