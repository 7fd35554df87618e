package schedule

import (
	"maps"
	"slices"

	"tutorgrid/internal/model"
)

// entry is a working copy of a session inside a lane index. wave counts how
// many cascade rounds displaced the session during the current call.
type entry struct {
	session model.Session
	wave    int
}

// laneIndex maps lane number to the entries occupying that lane on a single
// weekday. Buckets are kept ordered by start minute, then ID. The index owns
// its entries; nothing in it aliases the caller's snapshot.
type laneIndex struct {
	weekday model.Weekday
	lanes   map[int][]*entry
}

func buildLaneIndex(sessions []model.Session, weekday model.Weekday) *laneIndex {
	ix := &laneIndex{
		weekday: weekday,
		lanes:   make(map[int][]*entry),
	}
	for _, s := range sessions {
		if s.Weekday != weekday {
			continue
		}
		ix.insert(s.Lane, &entry{session: s})
	}
	return ix
}

func entryLess(a, b *entry) bool {
	if a.session.Interval.Start != b.session.Interval.Start {
		return a.session.Interval.Start < b.session.Interval.Start
	}
	return a.session.ID < b.session.ID
}

func (ix *laneIndex) insert(lane int, e *entry) {
	e.session.Lane = lane
	bucket := ix.lanes[lane]
	i, _ := slices.BinarySearchFunc(bucket, e, func(have, want *entry) int {
		switch {
		case entryLess(have, want):
			return -1
		case entryLess(want, have):
			return 1
		}
		return 0
	})
	ix.lanes[lane] = slices.Insert(bucket, i, e)
}

// take removes e from the given lane. It reports whether e was found.
func (ix *laneIndex) take(lane int, e *entry) bool {
	bucket := ix.lanes[lane]
	i := slices.Index(bucket, e)
	if i < 0 {
		return false
	}
	bucket = slices.Delete(bucket, i, i+1)
	if len(bucket) == 0 {
		delete(ix.lanes, lane)
		return true
	}
	ix.lanes[lane] = bucket
	return true
}

// remove drops every entry with the given session ID from every lane and
// returns the first one found.
func (ix *laneIndex) remove(id string) *entry {
	var found *entry
	for _, lane := range ix.laneNumbers() {
		for _, e := range slices.Clone(ix.lanes[lane]) {
			if e.session.ID != id {
				continue
			}
			ix.take(lane, e)
			if found == nil {
				found = e
			}
		}
	}
	return found
}

// lane returns a copy of the bucket so callers may mutate the index while
// iterating the result.
func (ix *laneIndex) lane(n int) []*entry {
	return slices.Clone(ix.lanes[n])
}

func (ix *laneIndex) laneNumbers() []int {
	return slices.Sorted(maps.Keys(ix.lanes))
}

func (ix *laneIndex) entries() []*entry {
	var out []*entry
	for _, lane := range ix.laneNumbers() {
		out = append(out, ix.lanes[lane]...)
	}
	return out
}

func collidesAny(bucket []*entry, iv model.Interval) bool {
	for _, e := range bucket {
		if model.Overlaps(e.session.Interval, iv) {
			return true
		}
	}
	return false
}
