package schedule

// compact renumbers the lanes in use to 1..k by rank. Entries that shared a
// lane keep sharing it and relative lane order is preserved.
func (ix *laneIndex) compact(tr *tracer) bool {
	numbers := ix.laneNumbers()
	changed := false
	lanes := make(map[int][]*entry, len(numbers))

	for rank, old := range numbers {
		lane := rank + 1
		bucket := ix.lanes[old]
		for _, e := range bucket {
			e.session.Lane = lane
		}
		lanes[lane] = bucket
		if lane != old {
			changed = true
			tr.emit(TraceEvent{
				Kind:     EventCompacted,
				Weekday:  ix.weekday,
				FromLane: old,
				ToLane:   lane,
			}, nil)
		}
	}

	ix.lanes = lanes
	return changed
}
