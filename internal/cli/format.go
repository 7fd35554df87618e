package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"tutorgrid/internal/model"
	"tutorgrid/internal/schedule"
	"tutorgrid/internal/timetable"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

// FormatError formats an error for display.
func FormatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

func printSuccess(w io.Writer, format string, args ...any) {
	_, _ = successColor.Fprintf(w, "✓ "+format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	_, _ = warningColor.Fprintf(w, "⚠ "+format+"\n", args...)
}

func printSection(w io.Writer, title string) {
	_, _ = headerColor.Fprintf(w, "▸ %s\n", title)
}

func formatPlacement(p *timetable.Placement) string {
	return fmt.Sprintf("%s %s lane %d", p.Weekday, p.Interval, p.Lane)
}

// printChanges lists each placement change with its session label.
func printChanges(w io.Writer, changes []timetable.Change, labels map[string]string) {
	if len(changes) == 0 {
		_, _ = dimColor.Fprintln(w, "  no changes")
		return
	}
	for _, c := range changes {
		name := c.ID
		if l := labels[c.ID]; l != "" && l != c.ID {
			name = fmt.Sprintf("%s (%s)", c.ID, l)
		}
		switch {
		case c.From == nil:
			fmt.Fprintf(w, "  + %s  %s\n", name, formatPlacement(c.To))
		case c.To == nil:
			fmt.Fprintf(w, "  - %s  %s\n", name, formatPlacement(c.From))
		default:
			fmt.Fprintf(w, "  ~ %s  %s → %s\n", name, formatPlacement(c.From), formatPlacement(c.To))
		}
	}
}

// labelsFor maps every session ID in both snapshots to its label.
func labelsFor(lb *schedule.Labeler, snaps ...[]model.Session) map[string]string {
	out := make(map[string]string)
	for _, sessions := range snaps {
		for _, s := range sessions {
			out[s.ID] = lb.Label(s)
		}
	}
	return out
}
