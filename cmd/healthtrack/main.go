package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthtrack/healthtrack/internal/config"
	"github.com/healthtrack/healthtrack/internal/domain/records"
	"github.com/healthtrack/healthtrack/internal/platform/gateway"
	"github.com/healthtrack/healthtrack/internal/platform/reporting"
)

// Exit statuses, one per error class.
const (
	exitOK           = 0
	exitInternal     = 1
	exitValidation   = 2
	exitRejected     = 3
	exitConnectivity = 4
	exitNotLoggedIn  = 5
)

func main() {
	root := rootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(exitCode(err))
	}
}

func rootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "healthtrack",
		Short:         "Personal health-record tracking client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(loginCmd())
	root.AddCommand(registerCmd())
	root.AddCommand(logoutCmd())
	root.AddCommand(whoamiCmd())
	root.AddCommand(recordsCmd())
	root.AddCommand(appointmentsCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(sandboxCmd())
	return root
}

// newLogger writes JSON to w, or console output in development.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(w).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, gateway.ErrNotAuthenticated):
		return exitNotLoggedIn
	case gateway.IsValidation(err), errors.Is(err, reporting.ErrUnknownFormat):
		return exitValidation
	case gateway.IsConnectivity(err):
		return exitConnectivity
	case gateway.IsRejection(err):
		return exitRejected
	}
	return exitInternal
}

// describeError prefixes the message with its class.
func describeError(err error) string {
	switch {
	case errors.Is(err, gateway.ErrNotAuthenticated):
		return "Not logged in. Run `healthtrack login` first."
	case errors.Is(err, reporting.ErrNoRecords):
		return "Nothing to export: " + err.Error()
	case errors.Is(err, records.ErrNotFound):
		return "Not found: " + err.Error()
	}
	switch gateway.Kind(err) {
	case "validation":
		return "Invalid input: " + err.Error()
	case "connectivity":
		return "Network error: " + err.Error()
	case "rejected":
		var rerr *gateway.RequestError
		errors.As(err, &rerr)
		return fmt.Sprintf("Request failed (%d): %s", rerr.Status, rerr.Message)
	}
	return "Error: " + err.Error()
}
