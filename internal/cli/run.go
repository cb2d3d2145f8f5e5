package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"coopsched/internal/config"
	"coopsched/internal/logx"
	"coopsched/internal/sched"
)

func newRunCmd() *cobra.Command {
	var (
		duration time.Duration
		noInput  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler with the demo tasks and the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if flagLogLevel != "" {
				cfg.Log.Level = flagLogLevel
			}

			log, closer, err := logx.New(logx.Config{Level: cfg.Log.Level, Console: cfg.Log.Console, File: cfg.Log.File})
			if err != nil {
				return err
			}
			defer closer.Close()

			out := cmd.OutOrStdout()
			a, err := newApp(cfg, log, out)
			if err != nil {
				return err
			}
			defer a.s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			if !noInput {
				go func() {
					if err := a.term.Feed(ctx, cmd.InOrStdin()); err != nil {
						log.Warn("terminal input closed", logx.Err(err))
					}
				}()
			}
			go func() {
				err := config.Watch(ctx, flagConfig, log, func(c config.Config) {
					if err := a.s.Post(func(*sched.Scheduler) { a.applyConfig(c) }); err != nil {
						log.Warn("config reload dropped", logx.Err(err))
					}
				})
				if err != nil {
					log.Warn("config watch disabled", logx.Err(err))
				}
			}()

			if err := a.s.Run(ctx); err != nil {
				return err
			}

			log.Info("scheduler stopped",
				logx.Uint64("ticks", a.s.Ticks()),
				logx.Uint64("led_toggles", a.led.Toggles()),
				logx.Int("uart2_bytes", a.uart2.Len()),
				logx.Uint64("uart2_dropped", a.uart2.Dropped()),
			)
			return sched.WriteReport(out, a.s.Report())
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	cmd.Flags().BoolVar(&noInput, "no-input", false, "Do not read terminal commands from stdin")
	return cmd
}
