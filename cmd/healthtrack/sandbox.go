package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/healthtrack/healthtrack/internal/config"
	"github.com/healthtrack/healthtrack/internal/platform/sandbox"
)

func sandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Local backend for development and demos",
	}
	cmd.AddCommand(sandboxServeCmd())
	return cmd
}

func sandboxServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sandbox REST backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			key, err := cfg.SandboxKey()
			if err != nil {
				return err
			}
			noSeed, _ := cmd.Flags().GetBool("no-seed")
			srv, err := sandbox.New(sandbox.Config{
				SigningKey:  key,
				CORSOrigins: cfg.CORSOrigins,
				Seed:        !noSeed,
			}, logger)
			if err != nil {
				return err
			}

			schedule, _ := cmd.Flags().GetString("reminders")
			reminders := srv.NewReminders()
			if schedule != "off" {
				if err := reminders.Start(schedule); err != nil {
					return err
				}
			}

			port, _ := cmd.Flags().GetString("port")
			if port == "" {
				port = cfg.SandboxPort
			}
			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)
			select {
			case <-quit:
			case err, ok := <-errCh:
				if ok {
					return err
				}
			}

			logger.Info().Msg("shutting down sandbox")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			reminders.Stop(ctx)
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			logger.Info().Msg("sandbox stopped")
			return nil
		},
	}
	cmd.Flags().String("port", "", "Listen port (default SANDBOX_PORT)")
	cmd.Flags().Bool("no-seed", false, "Start without the demo accounts")
	cmd.Flags().String("reminders", sandbox.DefaultReminderSchedule, `Cron spec of the appointment reminder sweep, or "off"`)
	return cmd
}
