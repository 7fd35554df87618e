package jobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorgrid/internal/config"
	"tutorgrid/internal/model"
	"tutorgrid/internal/schedule"
	"tutorgrid/internal/timetable"
)

func setup(t *testing.T, cron string) (*ExportJob, *config.Config) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.TimetablePath = filepath.Join(dir, "timetable.yaml")
	cfg.Export.Path = filepath.Join(dir, "out", "timetable.ics")
	cfg.Export.TermStart = "2026-03-02"
	cfg.Export.Cron = cron

	store, err := timetable.Open(cfg.TimetablePath, nil)
	require.NoError(t, err)
	_, err = store.Reposition(context.Background(), schedule.Request{
		SessionID: "s1",
		Weekday:   model.Tuesday,
		Interval:  model.Interval{Start: 600, End: 690},
		Lane:      1,
	})
	require.NoError(t, err)

	job, err := NewExportJob(store, cfg, nil)
	require.NoError(t, err)
	job.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return job, cfg
}

func TestExportJob_RunOnceWritesCalendar(t *testing.T) {
	t.Parallel()

	job, cfg := setup(t, "")
	require.NoError(t, job.RunOnce(context.Background()))

	body, err := os.ReadFile(cfg.Export.Path)
	require.NoError(t, err)
	out := string(body)
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Contains(t, out, "UID:s1")
	assert.Contains(t, out, "DTSTART;TZID=UTC:20260303T100000")

	st := job.Status()
	assert.Equal(t, 1, st.Sessions)
	assert.Empty(t, st.LastErr)
	assert.True(t, st.Next.IsZero())
}

func TestExportJob_ReportsFailure(t *testing.T) {
	t.Parallel()

	job, cfg := setup(t, "")
	// A directory in place of the target file makes the rename fail.
	require.NoError(t, os.MkdirAll(cfg.Export.Path, 0o700))

	require.Error(t, job.RunOnce(context.Background()))
	assert.NotEmpty(t, job.Status().LastErr)
}

func TestExportJob_Schedule(t *testing.T) {
	t.Parallel()

	job, _ := setup(t, "0 3 * * *")
	job.Start()
	assert.False(t, job.Status().Next.IsZero())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, job.Stop(ctx))
}

func TestNewExportJob_InvalidCron(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Export.Cron = "every tuesday"
	_, err := NewExportJob(nil, cfg, nil)
	require.Error(t, err)
}

func TestCalendar_UsesConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Export.TermStart = "2026-03-02"
	cfg.Export.Weeks = 4

	snap := timetable.Snapshot{Sessions: []model.Session{{
		ID:       "s1",
		Weekday:  model.Monday,
		Interval: model.Interval{Start: 540, End: 600},
		Lane:     1,
	}}}
	body, err := Calendar(snap, cfg, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, string(body), "COUNT=4")
	assert.Contains(t, string(body), "X-WR-CALNAME:tutorgrid")
}
