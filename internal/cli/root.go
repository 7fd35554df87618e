package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "/etc/tutorgrid/config.yaml"

var (
	version = "dev"

	// Colors for help output sections
	groupTitleColor   = color.New(color.FgCyan, color.Bold)
	sectionTitleColor = color.New(color.FgBlue, color.Bold)
)

// globalOptions holds persistent flag values shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
	jsonOutput bool
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	version = v
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:     "tutorgrid",
		Version: version,
		Short:   "Weekly tutoring timetable with automatic lane conflict resolution",
		Long: `tutorgrid keeps a weekly grid of recurring tutoring sessions.

Moving, resizing or inserting a session pushes overlapping sessions into
other lanes of the same weekday, so no two sessions in a lane ever overlap.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetHelpFunc(customHelpFunc)

	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	root.AddGroup(&cobra.Group{
		ID:    "timetable",
		Title: "Timetable:",
	})
	root.AddGroup(&cobra.Group{
		ID:    "calendar",
		Title: "Calendar:",
	})
	root.AddGroup(&cobra.Group{
		ID:    "service",
		Title: "Service & Tooling:",
	})

	root.AddCommand(
		newRepositionCmd(opts),
		newRemoveCmd(opts),
		newShowCmd(opts),
		newCheckCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Print the tutorgrid version",
		Args:    cobra.NoArgs,
		GroupID: "service",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// customHelpFunc colors group titles.
func customHelpFunc(cmd *cobra.Command, _ []string) {
	var help strings.Builder

	if cmd.Long != "" {
		help.WriteString(cmd.Long)
		help.WriteString("\n\n")
	} else if cmd.Short != "" {
		help.WriteString(cmd.Short)
		help.WriteString("\n\n")
	}

	help.WriteString(sectionTitleColor.Sprint("Usage:"))
	help.WriteString("\n")
	fmt.Fprintf(&help, "  %s\n\n", cmd.UseLine())

	for _, group := range cmd.Groups() {
		help.WriteString(groupTitleColor.Sprint(group.Title))
		help.WriteString("\n")
		for _, c := range cmd.Commands() {
			if c.GroupID == group.ID && c.IsAvailableCommand() {
				fmt.Fprintf(&help, "  %-11s %s\n", c.Name(), c.Short)
			}
		}
		help.WriteString("\n")
	}

	if cmd.HasAvailableLocalFlags() || cmd.HasAvailableInheritedFlags() {
		help.WriteString(sectionTitleColor.Sprint("Flags:"))
		help.WriteString("\n")
		help.WriteString(cmd.LocalFlags().FlagUsages())
		help.WriteString(cmd.InheritedFlags().FlagUsages())
		help.WriteString("\n")
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(&help, "Use \"%s [command] --help\" for more information about a command.\n", cmd.CommandPath())
	}

	fmt.Fprint(cmd.OutOrStdout(), help.String())
}
