package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorgrid/internal/config"
	"tutorgrid/internal/model"
	"tutorgrid/internal/timetable"
)

// setupConfig writes a config whose data files live in a temp dir.
func setupConfig(t *testing.T) (string, *config.Config) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.TimetablePath = filepath.Join(dir, "timetable.yaml")
	cfg.Export.Path = filepath.Join(dir, "timetable.ics")
	cfg.Export.TermStart = "2026-03-02"

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path, cfg
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestReposition_InsertMoveShow(t *testing.T) {
	cfgPath, _ := setupConfig(t)

	out, err := run(t, cfgPath, "reposition", "--id", "A", "--weekday", "mon", "--start", "10:00", "--end", "11:00", "--subject", "math")
	require.NoError(t, err, out)
	assert.Contains(t, out, "A placed on Mon 10:00-11:00")
	assert.Contains(t, out, "+ A (math)  Mon 10:00-11:00 lane 1")

	out, err = run(t, cfgPath, "reposition", "--id", "X", "--weekday", "0", "--start", "10:30", "--end", "11:30")
	require.NoError(t, err, out)
	assert.Contains(t, out, "+ X  Mon 10:30-11:30 lane 2")

	out, err = run(t, cfgPath, "reposition", "--id", "X", "--weekday", "mon", "--start", "10:30", "--end", "11:30", "--lane", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "~ X  Mon 10:30-11:30 lane 2 → Mon 10:30-11:30 lane 1")
	assert.Contains(t, out, "~ A (math)  Mon 10:00-11:00 lane 1 → Mon 10:00-11:00 lane 2")

	out, err = run(t, cfgPath, "show")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Mon")
	assert.Contains(t, out, "10:30-11:30")
	assert.Contains(t, out, "2 sessions, saved")

	out, err = run(t, cfgPath, "--json", "show", "--weekday", "mon")
	require.NoError(t, err, out)
	var sessions []model.Session
	require.NoError(t, json.Unmarshal([]byte(out), &sessions))
	require.Len(t, sessions, 2)
	assert.Equal(t, "X", sessions[0].ID)
	assert.Equal(t, 1, sessions[0].Lane)
}

func TestReposition_GeneratesID(t *testing.T) {
	cfgPath, _ := setupConfig(t)

	out, err := run(t, cfgPath, "--json", "reposition", "--weekday", "wed", "--start", "09:00", "--end", "10:00")
	require.NoError(t, err, out)

	var resp struct {
		SessionID string             `json:"session_id"`
		Changes   []timetable.Change `json:"changes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.SessionID, 36)
	require.Len(t, resp.Changes, 1)
}

func TestReposition_InvalidInput(t *testing.T) {
	cfgPath, _ := setupConfig(t)

	_, err := run(t, cfgPath, "reposition", "--id", "A", "--weekday", "someday", "--start", "10:00", "--end", "11:00")
	assert.ErrorIs(t, err, model.ErrInvalidWeekday)

	_, err = run(t, cfgPath, "reposition", "--id", "A", "--weekday", "mon", "--start", "11:00", "--end", "10:00")
	assert.ErrorIs(t, err, model.ErrInvalidInterval)

	_, err = run(t, cfgPath, "reposition", "--id", "A", "--weekday", "mon")
	assert.Error(t, err, "missing required flags")
}

func TestRemove(t *testing.T) {
	cfgPath, _ := setupConfig(t)

	for _, id := range []string{"A", "B"} {
		_, err := run(t, cfgPath, "reposition", "--id", id, "--weekday", "fri", "--start", "15:00", "--end", "16:00")
		require.NoError(t, err)
	}

	out, err := run(t, cfgPath, "remove", "A")
	require.NoError(t, err, out)
	assert.Contains(t, out, "A removed")
	assert.Contains(t, out, "~ B  Fri 15:00-16:00 lane 2 → Fri 15:00-16:00 lane 1")

	_, err = run(t, cfgPath, "rm", "A")
	assert.ErrorIs(t, err, timetable.ErrNotFound)
}

func TestCheck(t *testing.T) {
	cfgPath, cfg := setupConfig(t)

	out, err := run(t, cfgPath, "check")
	require.NoError(t, err, out)
	assert.Contains(t, out, "no lane conflicts")

	// A hand-edited file can hold overlaps the engine would never produce.
	require.NoError(t, timetable.Save(cfg.TimetablePath, &timetable.Snapshot{Sessions: []model.Session{
		{ID: "p", Weekday: model.Tuesday, Interval: model.Interval{Start: 600, End: 660}, Lane: 1},
		{ID: "q", Weekday: model.Tuesday, Interval: model.Interval{Start: 630, End: 700}, Lane: 1},
	}}))

	out, err = run(t, cfgPath, "check")
	assert.ErrorIs(t, err, errConflicts)
	assert.Contains(t, out, "Tue lane 1: p overlaps q")
}

func TestExportImport(t *testing.T) {
	cfgPath, cfg := setupConfig(t)

	_, err := run(t, cfgPath, "reposition", "--id", "A", "--weekday", "thu", "--start", "17:00", "--end", "18:30", "--lane", "2")
	require.NoError(t, err)

	out, err := run(t, cfgPath, "export", "--out", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Contains(t, out, "UID:A")

	out, err = run(t, cfgPath, "export")
	require.NoError(t, err, out)
	assert.Contains(t, out, "exported 1 sessions to "+cfg.Export.Path)
	_, err = os.Stat(cfg.Export.Path)
	require.NoError(t, err)

	otherPath, other := setupConfig(t)
	out, err = run(t, otherPath, "import", "--replace", cfg.Export.Path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "imported 1 sessions")

	snap, err := timetable.Load(other.TimetablePath)
	require.NoError(t, err)
	require.Len(t, snap.Sessions, 1)
	got := snap.Sessions[0]
	assert.Equal(t, "A", got.ID)
	assert.Equal(t, model.Thursday, got.Weekday)
	assert.Equal(t, model.Interval{Start: 1020, End: 1110}, got.Interval)
	// Lane 2 on an empty weekday compacts to lane 1.
	assert.Equal(t, 1, got.Lane)
}

func TestVersionAndHelp(t *testing.T) {
	cfgPath, _ := setupConfig(t)

	out, err := run(t, cfgPath, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)

	out, err = run(t, cfgPath, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Timetable:")
	assert.Contains(t, out, "reposition")
}
