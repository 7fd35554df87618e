package timetable

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"tutorgrid/internal/config"
	"tutorgrid/internal/model"
	"tutorgrid/internal/schedule"
)

// Snapshot is the full timetable as stored on disk.
type Snapshot struct {
	UpdatedAt   time.Time          `yaml:"updated_at" json:"updated_at"`
	Sessions    []model.Session    `yaml:"sessions" json:"sessions"`
	Enrollments []model.Enrollment `yaml:"enrollments,omitempty" json:"enrollments,omitempty"`
	Subjects    []model.Subject    `yaml:"subjects,omitempty" json:"subjects,omitempty"`
}

func (s *Snapshot) Lookups() schedule.Lookups {
	return schedule.Lookups{
		Enrollments: s.Enrollments,
		Subjects:    s.Subjects,
	}
}

// Clone returns a deep copy so callers can hand it out without sharing
// slices with the store.
func (s *Snapshot) Clone() Snapshot {
	out := Snapshot{
		UpdatedAt:   s.UpdatedAt,
		Sessions:    make([]model.Session, len(s.Sessions)),
		Enrollments: slices.Clone(s.Enrollments),
		Subjects:    slices.Clone(s.Subjects),
	}
	for i, sess := range s.Sessions {
		sess.Payload.EnrollmentIDs = slices.Clone(sess.Payload.EnrollmentIDs)
		out.Sessions[i] = sess
	}
	return out
}

// Load reads a snapshot. A missing file yields an empty snapshot.
func Load(path string) (*Snapshot, error) {
	if path == "" {
		return nil, errors.New("timetable path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Snapshot{}, nil
		}
		return nil, err
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("timetable: parse %s: %w", path, err)
	}
	return &snap, nil
}

// Save writes the snapshot atomically.
func Save(path string, snap *Snapshot) error {
	if path == "" {
		return errors.New("timetable path is empty")
	}
	if snap == nil {
		return errors.New("snapshot is nil")
	}

	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("timetable: marshal: %w", err)
	}
	return config.WriteFileAtomic(path, data, ".tutorgrid-timetable-*.tmp")
}
