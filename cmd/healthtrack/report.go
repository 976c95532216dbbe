package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/healthtrack/healthtrack/internal/platform/reporting"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Server-side summaries and reports",
	}
	cmd.AddCommand(reportSubCmd("summary", "Health summary with metrics and score", func(ctx context.Context, a *app, id string, cmd *cobra.Command) (json.RawMessage, error) {
		return a.remote.HealthSummary(ctx, id)
	}))
	data := reportSubCmd("data", "Heart-rate and blood-pressure series", func(ctx context.Context, a *app, id string, cmd *cobra.Command) (json.RawMessage, error) {
		period, _ := cmd.Flags().GetInt("period")
		return a.remote.HealthData(ctx, id, period)
	})
	data.Flags().Int("period", reporting.DefaultPeriodDays, "Window in days")
	cmd.AddCommand(data)
	cmd.AddCommand(reportSubCmd("suggestions", "Doctor suggestions from records and appointments", func(ctx context.Context, a *app, id string, cmd *cobra.Command) (json.RawMessage, error) {
		return a.remote.DoctorSuggestions(ctx, id)
	}))
	cmd.AddCommand(reportSubCmd("generate", "Full report: summary, records, appointments and suggestions", func(ctx context.Context, a *app, id string, cmd *cobra.Command) (json.RawMessage, error) {
		return a.remote.GenerateReport(ctx, id)
	}))
	return cmd
}

type reportFetch func(ctx context.Context, a *app, patientID string, cmd *cobra.Command) (json.RawMessage, error)

func reportSubCmd(use, short string, fetch reportFetch) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			owner, err := a.owner(cmd)
			if err != nil {
				return err
			}
			raw, err := fetch(cmd.Context(), a, owner, cmd)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := json.Indent(&buf, raw, "", "  "); err != nil {
				buf.Reset()
				buf.Write(raw)
			}
			buf.WriteByte('\n')
			_, err = a.out.Write(buf.Bytes())
			if err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return nil
		}),
	}
	cmd.Flags().String("patient", "", "Patient id (doctors only; defaults to you)")
	return cmd
}
