package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"tutorgrid/internal/model"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CascadeConfig tunes the lane conflict resolver.
type CascadeConfig struct {
	// MaxRounds caps displacement rounds per reposition. Chains longer than
	// this are left partially resolved and logged.
	MaxRounds int `yaml:"max_rounds" json:"max_rounds"`
}

// ExportConfig controls the iCalendar export written by the cron job and
// served at /calendar.ics.
type ExportConfig struct {
	// Cron is a cron-style schedule string (e.g. "*/15 * * * *"). Empty
	// disables the background export.
	Cron string `yaml:"cron" json:"cron"`

	// Path is where the exported .ics file is written.
	Path string `yaml:"path" json:"path"`

	// TermStart is the first day of the term (YYYY-MM-DD). Each weekly
	// session starts recurring on its first weekday on or after this date.
	TermStart string `yaml:"term_start" json:"term_start"`

	// Weeks is the number of weekly repetitions exported per session.
	Weeks int `yaml:"weeks" json:"weeks"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone the weekly grid is expressed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday is treated as the first column of
	// the grid. Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// TimetablePath is the YAML snapshot holding sessions and lookups.
	TimetablePath string `yaml:"timetable_path" json:"timetable_path"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Cascade CascadeConfig `yaml:"cascade" json:"cascade"`
	Export  ExportConfig  `yaml:"export" json:"export"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen        = "127.0.0.1:8080"
	defaultTimezone      = "Asia/Seoul"
	defaultTimetablePath = "/var/lib/tutorgrid/timetable.yaml"
	defaultExportPath    = "/var/lib/tutorgrid/timetable.ics"
	defaultExportCron    = "*/15 * * * *"
	defaultExportWeeks   = 16
	defaultMaxRounds     = 20
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        defaultListen,
		Timezone:      defaultTimezone,
		WeekStart:     "monday",
		TimetablePath: defaultTimetablePath,
		LogLevel:      "info",
		Cascade: CascadeConfig{
			MaxRounds: defaultMaxRounds,
		},
		Export: ExportConfig{
			Cron:  defaultExportCron,
			Path:  defaultExportPath,
			Weeks: defaultExportWeeks,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = "monday"
	}
	if c.TimetablePath == "" {
		c.TimetablePath = defaultTimetablePath
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Cascade.MaxRounds <= 0 {
		c.Cascade.MaxRounds = defaultMaxRounds
	}
	if c.Export.Path == "" {
		c.Export.Path = defaultExportPath
	}
	if c.Export.Weeks <= 0 {
		c.Export.Weeks = defaultExportWeeks
	}
}

// Location resolves Timezone, falling back to time.Local when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// TermStart parses Export.TermStart in the configured timezone. An empty or
// invalid value yields the start of the current week.
func (c *Config) TermStart(now time.Time) time.Time {
	loc := c.Location()
	if c.Export.TermStart != "" {
		if t, err := time.ParseInLocation(time.DateOnly, c.Export.TermStart, loc); err == nil {
			return t
		}
	}
	now = now.In(loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Weekdays lists the grid columns in display order, starting from WeekStart.
func (c *Config) Weekdays() []model.Weekday {
	first := model.Monday
	if c.WeekStart == "sunday" {
		first = model.Sunday
	}
	days := make([]model.Weekday, 0, 7)
	for i := range 7 {
		days = append(days, (first+model.Weekday(i))%7)
	}
	return days
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically with
// 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, ".tutorgrid-config-*.tmp")
}

// WriteFileAtomic ensures the parent directory exists (0700), writes data to
// a temp file in the same directory and renames it over path. The final file
// has 0600 permissions.
func WriteFileAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
