package schedule

import "tutorgrid/internal/model"

type cascadeResult struct {
	lane      int
	rounds    int
	displaced int
	aborted   bool
}

// collisions returns the entries at lane that must move in the given round.
//
// Round 1 tests residents against the moving session's target interval. Later
// rounds only test residents (wave 0) against entries pushed into this lane by
// the previous round (wave >= 1), so the cascade follows actual chains of
// conflict instead of re-testing the whole lane.
func (ix *laneIndex) collisions(lane, round int, target model.Interval) []*entry {
	bucket := ix.lane(lane)
	var out []*entry
	if round == 1 {
		for _, e := range bucket {
			if model.Overlaps(e.session.Interval, target) {
				out = append(out, e)
			}
		}
		return out
	}

	var pushed, residents []*entry
	for _, e := range bucket {
		if e.wave >= 1 {
			pushed = append(pushed, e)
		} else {
			residents = append(residents, e)
		}
	}
	for _, r := range residents {
		for _, p := range pushed {
			if model.Overlaps(r.session.Interval, p.session.Interval) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// claim places an existing session at the requested lane and pushes whatever
// it collides with one lane down, round after round, until a round finds no
// collision or maxRounds displacement rounds have run.
func (ix *laneIndex) claim(moving *entry, lane, maxRounds int, tr *tracer) cascadeResult {
	res := cascadeResult{lane: lane}
	target := moving.session.Interval
	current := lane

	for round := 1; ; round++ {
		res.rounds = round
		colliding := ix.collisions(current, round, target)
		if len(colliding) == 0 {
			break
		}
		if round > maxRounds {
			res.aborted = true
			tr.emit(TraceEvent{
				Kind:      EventRoundLimit,
				SessionID: moving.session.ID,
				Weekday:   ix.weekday,
				FromLane:  current,
				ToLane:    current,
				Round:     round,
			}, &moving.session)
			break
		}

		for _, e := range colliding {
			ix.take(current, e)
			e.wave++
			ix.insert(current+1, e)
			res.displaced++
			tr.emit(TraceEvent{
				Kind:      EventDisplaced,
				SessionID: e.session.ID,
				Weekday:   ix.weekday,
				FromLane:  current,
				ToLane:    current + 1,
				Round:     round,
			}, &e.session)
		}
		current++
	}

	return res
}

// yield walks down from the requested lane to the first lane where the new
// session collides with nothing. Nobody is displaced.
func (ix *laneIndex) yield(moving *entry, lane, maxRounds int, tr *tracer) cascadeResult {
	res := cascadeResult{lane: lane}
	target := moving.session.Interval

	for step := 1; collidesAny(ix.lanes[res.lane], target); step++ {
		res.rounds = step
		if step > maxRounds {
			res.aborted = true
			tr.emit(TraceEvent{
				Kind:      EventRoundLimit,
				SessionID: moving.session.ID,
				Weekday:   ix.weekday,
				FromLane:  lane,
				ToLane:    res.lane,
				Round:     step,
			}, &moving.session)
			break
		}
		res.lane++
	}

	return res
}
