package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", Interval{600, 660}, Interval{600, 660}, true},
		{"partial", Interval{600, 660}, Interval{630, 690}, true},
		{"contained", Interval{600, 720}, Interval{630, 660}, true},
		{"touching end to start", Interval{600, 660}, Interval{660, 720}, false},
		{"touching start to end", Interval{660, 720}, Interval{600, 660}, false},
		{"disjoint", Interval{600, 630}, Interval{700, 730}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, Overlaps(tt.a, tt.b), Overlaps(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestOverlaps_SymmetricGrid(t *testing.T) {
	t.Parallel()

	var ivs []Interval
	for s := 0; s < 6; s++ {
		for e := s + 1; e <= 6; e++ {
			ivs = append(ivs, Interval{Start: s * 30, End: e * 30})
		}
	}
	for _, a := range ivs {
		for _, b := range ivs {
			assert.Equal(t, Overlaps(a, b), Overlaps(b, a), "%s vs %s", a, b)
			if a.End == b.Start || b.End == a.Start {
				assert.False(t, Overlaps(a, b), "%s touches %s", a, b)
			}
		}
	}
}

func TestInterval_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Interval{Start: 600, End: 660}.Validate())
	assert.ErrorIs(t, Interval{Start: 660, End: 660}.Validate(), ErrInvalidInterval)
	assert.ErrorIs(t, Interval{Start: 700, End: 660}.Validate(), ErrInvalidInterval)
	assert.ErrorIs(t, Interval{Start: -1, End: 60}.Validate(), ErrInvalidInterval)
	assert.ErrorIs(t, Interval{Start: 0, End: MinutesPerDay + 1}.Validate(), ErrInvalidInterval)
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	m, err := ParseClock("10:30")
	require.NoError(t, err)
	assert.Equal(t, 630, m)

	m, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, MinutesPerDay, m)

	for _, bad := range []string{"1030", "ab:00", "10:60", "25:00", "-1:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, "09:05", FormatClock(545))
	assert.Equal(t, "10:00-11:30", Interval{Start: 600, End: 690}.String())
}

func TestWeekday(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Monday, Monday.TimeWeekday())
	assert.Equal(t, time.Sunday, Sunday.TimeWeekday())
	assert.Equal(t, Sunday, WeekdayFromTime(time.Sunday))
	assert.Equal(t, Wednesday, WeekdayFromTime(time.Wednesday))

	d, err := ParseWeekday("tuesday")
	require.NoError(t, err)
	assert.Equal(t, Tuesday, d)

	d, err = ParseWeekday("6")
	require.NoError(t, err)
	assert.Equal(t, Sunday, d)

	_, err = ParseWeekday("7")
	assert.ErrorIs(t, err, ErrInvalidWeekday)
	_, err = ParseWeekday("xx")
	assert.ErrorIs(t, err, ErrInvalidWeekday)

	assert.Equal(t, "Fri", Friday.String())
	assert.Equal(t, "Weekday(9)", Weekday(9).String())
}
