package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"tutorgrid/internal/model"
	"tutorgrid/internal/schedule"
	"tutorgrid/internal/timetable"
)

// errConflicts is returned by check when the timetable has overlaps.
var errConflicts = errors.New("timetable has lane conflicts")

type repositionOptions struct {
	id          string
	weekday     string
	start       string
	end         string
	lane        int
	subject     string
	enrollments []string
	note        string
}

func newRepositionCmd(g *globalOptions) *cobra.Command {
	o := &repositionOptions{}

	cmd := &cobra.Command{
		Use:   "reposition",
		Short: "Move, resize or insert a session",
		Long: `Move, resize or insert a session.

An existing session takes the requested lane and pushes overlapping sessions
down. A new session (unknown or empty --id) settles into the first lane at or
below --lane where it fits.`,
		Example: `  tutorgrid reposition --id s1 --weekday tue --start 10:00 --end 11:30 --lane 1
  tutorgrid reposition --weekday fri --start 16:00 --end 17:00 --subject math --enroll e1,e2`,
		Args:    cobra.NoArgs,
		GroupID: "timetable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReposition(cmd, g, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.id, "id", "", "Session ID (generated when empty)")
	f.StringVar(&o.weekday, "weekday", "", "Weekday name or index, 0 = Monday")
	f.StringVar(&o.start, "start", "", "Start time (HH:MM)")
	f.StringVar(&o.end, "end", "", "End time (HH:MM)")
	f.IntVar(&o.lane, "lane", 1, "Requested lane (1-based)")
	f.StringVar(&o.subject, "subject", "", "Subject ID for a new session")
	f.StringSliceVar(&o.enrollments, "enroll", nil, "Enrollment IDs for a new session")
	f.StringVar(&o.note, "note", "", "Note for a new session")
	_ = cmd.MarkFlagRequired("weekday")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runReposition(cmd *cobra.Command, g *globalOptions, o *repositionOptions) error {
	day, err := model.ParseWeekday(o.weekday)
	if err != nil {
		return err
	}
	start, err := model.ParseClock(o.start)
	if err != nil {
		return err
	}
	end, err := model.ParseClock(o.end)
	if err != nil {
		return err
	}

	a, err := loadApp(g)
	if err != nil {
		return err
	}

	id := o.id
	if id == "" {
		id = uuid.NewString()
	}
	req := schedule.Request{
		SessionID: id,
		Weekday:   day,
		Interval:  model.Interval{Start: start, End: end},
		Lane:      o.lane,
		Payload: &model.Payload{
			SubjectID:     o.subject,
			EnrollmentIDs: o.enrollments,
			Note:          o.note,
		},
	}

	before := a.store.Snapshot()
	res, err := a.store.Reposition(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if g.jsonOutput {
		return outputJSON(out, map[string]any{"session_id": id, "session": res.Session, "changes": res.Changes})
	}

	after := a.store.Snapshot()
	lb := schedule.NewLabeler(after.Lookups())
	printSuccess(out, "%s placed on %s %s lane %d", id, res.Session.Weekday, res.Session.Interval, res.Session.Lane)
	printChanges(out, res.Changes, labelsFor(lb, before.Sessions, after.Sessions))
	return nil
}

func newRemoveCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <session-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a session and compact its weekday",
		Args:    cobra.ExactArgs(1),
		GroupID: "timetable",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			before := a.store.Snapshot()
			changes, err := a.store.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if g.jsonOutput {
				return outputJSON(out, map[string]any{"session_id": args[0], "changes": changes})
			}
			printSuccess(out, "%s removed", args[0])
			printChanges(out, changes, labelsFor(schedule.NewLabeler(before.Lookups()), before.Sessions))
			return nil
		},
	}
}

func newShowCmd(g *globalOptions) *cobra.Command {
	var weekday string

	cmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"ls"},
		Short:   "Print the weekly grid",
		Args:    cobra.NoArgs,
		GroupID: "timetable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}

			days := a.cfg.Weekdays()
			if weekday != "" {
				d, err := model.ParseWeekday(weekday)
				if err != nil {
					return err
				}
				days = []model.Weekday{d}
			}

			snap := a.store.Snapshot()
			out := cmd.OutOrStdout()
			if g.jsonOutput {
				var sessions []model.Session
				for _, d := range days {
					sessions = append(sessions, schedule.Day(snap.Sessions, d)...)
				}
				return outputJSON(out, sessions)
			}

			if len(snap.Sessions) == 0 {
				printWarning(out, "no sessions in %s", a.store.Path())
				return nil
			}
			_, _ = fmt.Fprint(out, renderGrid(snap, days))
			if !snap.UpdatedAt.IsZero() {
				_, _ = dimColor.Fprintf(out, "%d sessions, saved %s\n", len(snap.Sessions), humanize.Time(snap.UpdatedAt))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&weekday, "weekday", "", "Only show this weekday")
	return cmd
}

// renderGrid draws one table per non-empty weekday.
func renderGrid(snap timetable.Snapshot, days []model.Weekday) string {
	lb := schedule.NewLabeler(snap.Lookups())

	var b strings.Builder
	for _, d := range days {
		sessions := schedule.Day(snap.Sessions, d)
		if len(sessions) == 0 {
			continue
		}

		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleLight)
		tbl.SetTitle(d.String())
		tbl.AppendHeader(table.Row{"Lane", "Time", "Length", "Session", "Label"})
		for _, s := range sessions {
			tbl.AppendRow(table.Row{
				s.Lane,
				s.Interval.String(),
				s.Interval.Duration().Round(time.Minute).String(),
				s.ID,
				lb.Label(s),
			})
		}
		tbl.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d sessions", len(sessions))})
		b.WriteString(tbl.Render())
		b.WriteString("\n")
	}
	return b.String()
}

func newCheckCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "check",
		Short:   "Report sessions that overlap within a lane",
		Args:    cobra.NoArgs,
		GroupID: "timetable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			violations := schedule.Validate(a.store.Snapshot().Sessions)

			out := cmd.OutOrStdout()
			if g.jsonOutput {
				if err := outputJSON(out, violations); err != nil {
					return err
				}
			} else if len(violations) == 0 {
				printSuccess(out, "no lane conflicts")
			} else {
				printSection(out, fmt.Sprintf("%d lane conflicts", len(violations)))
				for _, v := range violations {
					fmt.Fprintf(out, "  %s lane %d: %s overlaps %s\n", v.Weekday, v.Lane, v.A, v.B)
				}
			}

			if len(violations) > 0 {
				return errConflicts
			}
			return nil
		},
	}
}
