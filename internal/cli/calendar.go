package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tutorgrid/internal/config"
	"tutorgrid/internal/ics"
	"tutorgrid/internal/jobs"
	"tutorgrid/internal/schedule"
)

func newExportCmd(g *globalOptions) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the timetable as an iCalendar file",
		Long: `Write the timetable as an iCalendar file.

Each session becomes a weekly recurring event starting on its first weekday
on or after export.term_start. Use --out - to write to stdout.`,
		Args:    cobra.NoArgs,
		GroupID: "calendar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}

			snap := a.store.Snapshot()
			body, err := jobs.Calendar(snap, a.cfg, time.Now())
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = a.cfg.Export.Path
			}
			if outPath == "-" {
				_, err := cmd.OutOrStdout().Write(body)
				return err
			}
			if err := config.WriteFileAtomic(outPath, body, ".tutorgrid-export-*.tmp"); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			printSuccess(cmd.OutOrStdout(), "exported %d sessions to %s", len(snap.Sessions), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default export.path, - for stdout)")
	return cmd
}

func newImportCmd(g *globalOptions) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file.ics>",
		Short: "Load weekly sessions from an iCalendar file",
		Long: `Load weekly sessions from an iCalendar file.

Every event is placed through the conflict resolver, so overlapping events
from the file end up in separate lanes. Events that are not plain weekly
timed events are skipped.`,
		Args:    cobra.ExactArgs(1),
		GroupID: "calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}

			body, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sessions, err := ics.Parse(body, a.cfg.Location())
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			before := a.store.Snapshot()
			changes, err := a.store.Import(cmd.Context(), sessions, replace)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if g.jsonOutput {
				return outputJSON(out, map[string]any{"imported": len(sessions), "changes": changes})
			}
			after := a.store.Snapshot()
			printSuccess(out, "imported %d sessions from %s", len(sessions), args[0])
			printChanges(out, changes, labelsFor(schedule.NewLabeler(after.Lookups()), before.Sessions, after.Sessions))
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Drop existing sessions before importing")
	return cmd
}
