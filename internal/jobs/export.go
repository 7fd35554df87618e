package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tutorgrid/internal/config"
	"tutorgrid/internal/ics"
	appLog "tutorgrid/internal/log"
	"tutorgrid/internal/observability"
	"tutorgrid/internal/timetable"
)

const calendarName = "tutorgrid"

// Calendar renders snap as iCalendar using the export settings in cfg.
func Calendar(snap timetable.Snapshot, cfg *config.Config, now time.Time) ([]byte, error) {
	return ics.Export(snap.Sessions, snap.Lookups(), ics.ExportConfig{
		Location:  cfg.Location(),
		TermStart: cfg.TermStart(now),
		Weeks:     cfg.Export.Weeks,
		Name:      calendarName,
		Now:       now,
	})
}

// Status describes the most recent export run.
type Status struct {
	LastRun  time.Time `json:"last_run"`
	LastErr  string    `json:"last_error,omitempty"`
	Sessions int       `json:"sessions"`
	Next     time.Time `json:"next,omitzero"`
}

// ExportJob writes the timetable to cfg.Export.Path on the cfg.Export.Cron
// schedule. With an empty schedule the job only runs through RunOnce.
type ExportJob struct {
	store   *timetable.Store
	cfg     *config.Config
	metrics *observability.ExportMetrics
	now     func() time.Time
	cron    *cron.Cron

	mu   sync.Mutex
	last Status
}

// NewExportJob validates the schedule and prepares the job. It does not
// start it.
func NewExportJob(store *timetable.Store, cfg *config.Config, metrics *observability.ExportMetrics) (*ExportJob, error) {
	j := &ExportJob{
		store:   store,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
	}
	if cfg.Export.Cron == "" {
		return j, nil
	}

	logger := cronLogger{}
	j.cron = cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := j.cron.AddFunc(cfg.Export.Cron, j.run); err != nil {
		return nil, fmt.Errorf("export cron %q: %w", cfg.Export.Cron, err)
	}
	return j, nil
}

// Start begins the schedule in the background.
func (j *ExportJob) Start() {
	if j.cron == nil {
		appLog.Info("export job disabled", "path", j.cfg.Export.Path)
		return
	}
	j.cron.Start()
	appLog.Info("export job started", "cron", j.cfg.Export.Cron, "path", j.cfg.Export.Path)
}

// Stop halts the schedule and waits for a running export, or for ctx.
func (j *ExportJob) Stop(ctx context.Context) error {
	if j.cron == nil {
		return nil
	}
	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce exports the current snapshot immediately.
func (j *ExportJob) RunOnce(ctx context.Context) error {
	start := j.now()
	snap := j.store.Snapshot()

	err := j.export(snap, start)
	j.metrics.RecordRun(ctx, len(snap.Sessions), j.now().Sub(start), err)

	j.mu.Lock()
	j.last = Status{LastRun: start, Sessions: len(snap.Sessions)}
	if err != nil {
		j.last.LastErr = err.Error()
	}
	j.mu.Unlock()

	if err != nil {
		appLog.Error("export failed", err, "path", j.cfg.Export.Path)
		return err
	}
	appLog.Info("export written", "path", j.cfg.Export.Path, "sessions", len(snap.Sessions))
	return nil
}

// Status reports the last run and the next scheduled one.
func (j *ExportJob) Status() Status {
	j.mu.Lock()
	st := j.last
	j.mu.Unlock()

	if j.cron != nil {
		if entries := j.cron.Entries(); len(entries) > 0 {
			st.Next = entries[0].Next
		}
	}
	return st
}

func (j *ExportJob) run() {
	_ = j.RunOnce(context.Background())
}

func (j *ExportJob) export(snap timetable.Snapshot, now time.Time) error {
	body, err := Calendar(snap, j.cfg, now)
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(j.cfg.Export.Path, body, ".tutorgrid-export-*.tmp")
}

// cronLogger routes cron's own messages to the app log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
