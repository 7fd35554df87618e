package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"tutorgrid/internal/config"
	appLog "tutorgrid/internal/log"
	"tutorgrid/internal/schedule"
	"tutorgrid/internal/timetable"
)

// app bundles what most commands need.
type app struct {
	cfg   *config.Config
	store *timetable.Store
}

// loadApp reads the config, applies the log level and opens the timetable.
func loadApp(opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := appLog.ParseLevel(cfg.LogLevel)
	if opts.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	engine := schedule.New(schedule.Options{MaxRounds: cfg.Cascade.MaxRounds})
	store, err := timetable.Open(cfg.TimetablePath, engine)
	if err != nil {
		return nil, fmt.Errorf("failed to open timetable: %w", err)
	}

	appLog.Debug("effective config",
		"config_path", opts.configPath,
		"timetable_path", cfg.TimetablePath,
		"timezone", cfg.Timezone,
		"max_rounds", cfg.Cascade.MaxRounds,
	)
	return &app{cfg: cfg, store: store}, nil
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
