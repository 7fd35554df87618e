package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tutorgrid/internal/jobs"
	appLog "tutorgrid/internal/log"
	"tutorgrid/internal/observability"
	"tutorgrid/internal/web"
)

const stopTimeout = 10 * time.Second

func newServeCmd(g *globalOptions) *cobra.Command {
	var listen string
	var exportOnStart bool

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API and the scheduled calendar export",
		Args:    cobra.NoArgs,
		GroupID: "service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer appLog.Sync()

			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				a.cfg.Listen = listen
			}

			appLog.Info("tutorgrid starting",
				"version", version,
				"listen", a.cfg.Listen,
				"timezone", a.cfg.Timezone,
				"timetable_path", a.cfg.TimetablePath,
				"export_cron", a.cfg.Export.Cron,
				"export_path", a.cfg.Export.Path,
			)

			tel, err := observability.New(observability.Options{})
			if err != nil {
				return err
			}
			a.store.SetTraceHook(tel.TraceHook)

			job, err := jobs.NewExportJob(a.store, a.cfg, tel.Export)
			if err != nil {
				return err
			}

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if exportOnStart {
				_ = job.RunOnce(ctx)
			}
			job.Start()

			srv := web.NewServer(a.cfg, a.store, job, tel)
			serveErr := srv.ListenAndServe(ctx)

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			err = errors.Join(serveErr, job.Stop(stopCtx), tel.Shutdown(stopCtx))
			appLog.Info("tutorgrid exiting")
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&exportOnStart, "export-on-start", true, "Write the calendar once before the schedule starts")
	return cmd
}
