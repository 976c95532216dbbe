package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/healthtrack/healthtrack/internal/domain/insights"
	"github.com/healthtrack/healthtrack/internal/domain/records"
	"github.com/healthtrack/healthtrack/internal/platform/gateway"
	"github.com/healthtrack/healthtrack/internal/platform/reporting"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
	"github.com/healthtrack/healthtrack/pkg/pagination"
)

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"r"},
		Short:   "Manage health records",
	}
	cmd.AddCommand(recordsListCmd())
	cmd.AddCommand(recordsAddCmd())
	cmd.AddCommand(recordsGetCmd())
	cmd.AddCommand(recordsUpdateCmd())
	cmd.AddCommand(recordsDeleteCmd())
	cmd.AddCommand(recordsStatsCmd())
	cmd.AddCommand(recordsScoreCmd())
	cmd.AddCommand(recordsExportCmd())
	return cmd
}

// addFilterFlags registers --type, --from, --to and --patient.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("type", "", "Only records of this type (e.g. heart_rate)")
	cmd.Flags().String("from", "", "Earliest record date (inclusive)")
	cmd.Flags().String("to", "", "Latest record date (inclusive)")
	cmd.Flags().String("patient", "", "Patient id (doctors only; defaults to you)")
}

func readFilter(cmd *cobra.Command) (records.Filter, error) {
	var f records.Filter
	f.Type, _ = cmd.Flags().GetString("type")
	for _, bound := range []struct {
		flag string
		dst  **time.Time
	}{{"from", &f.Start}, {"to", &f.End}} {
		raw, _ := cmd.Flags().GetString(bound.flag)
		if raw == "" {
			continue
		}
		t, ok := healthmodels.ParseDate(raw)
		if !ok {
			return f, gateway.NewValidationError(bound.flag, fmt.Sprintf("cannot read date %q", raw))
		}
		if bound.flag == "to" && healthmodels.IsDateOnly(raw) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		*bound.dst = &t
	}
	return f, nil
}

// owner resolves --patient, defaulting to the logged-in user.
func (a *app) owner(cmd *cobra.Command) (string, error) {
	u, err := a.user(cmd.Context())
	if err != nil {
		return "", err
	}
	if p, _ := cmd.Flags().GetString("patient"); p != "" {
		return p, nil
	}
	return u.ID, nil
}

// fetchRecords lists the owner's records, or every patient's with --all.
func (a *app) fetchRecords(cmd *cobra.Command) ([]records.HealthRecord, error) {
	f, err := readFilter(cmd)
	if err != nil {
		return nil, err
	}
	if all, _ := cmd.Flags().GetBool("all"); all {
		if _, err := a.user(cmd.Context()); err != nil {
			return nil, err
		}
		api, err := a.apiRecords()
		if err != nil {
			return nil, err
		}
		fetched, err := api.ListAll(cmd.Context())
		if err != nil {
			return nil, err
		}
		return records.Apply(fetched, f), nil
	}
	owner, err := a.owner(cmd)
	if err != nil {
		return nil, err
	}
	return a.agg.ListRecords(cmd.Context(), owner, f)
}

func readPage(cmd *cobra.Command) pagination.Params {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	return pagination.Params{Limit: limit, Offset: offset}.Normalize()
}

func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().Int("limit", 0, "Maximum number of records (0 for all)")
	cmd.Flags().Int("offset", 0, "Records to skip")
}

func recordsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			recs, err := a.fetchRecords(cmd)
			if err != nil {
				return err
			}
			page := readPage(cmd)
			shown := pagination.Slice(recs, page)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return reporting.WriteJSON(a.out, shown)
			}
			if len(shown) == 0 {
				fmt.Fprintln(a.out, "No records found.")
				return nil
			}
			writeRecordTable(a.out, shown)
			if page.HasNext(len(recs)) {
				fmt.Fprintf(a.out, "\n%d of %d shown. Next page: --offset %d\n", len(shown), len(recs), page.NextOffset())
			}
			return nil
		}),
	}
	addFilterFlags(cmd)
	addPageFlags(cmd)
	cmd.Flags().Bool("all", false, "Every patient's records (doctors only)")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return cmd
}

func writeRecordTable(w io.Writer, recs []records.HealthRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tVALUE\tUNIT\tNOTES\tID")
	for _, r := range recs {
		date := "-"
		if r.HasDate() {
			date = r.Date.Local().Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", date, r.Type, r.DisplayValue(), r.Unit, oneLine(r.Notes, 40), r.ID)
	}
	tw.Flush()
}

func writeRecord(w io.Writer, r *records.HealthRecord) {
	fmt.Fprintf(w, "ID:     %s\n", r.ID)
	fmt.Fprintf(w, "Type:   %s\n", r.Type)
	fmt.Fprintf(w, "Value:  %s %s\n", r.DisplayValue(), r.Unit)
	if r.HasDate() {
		fmt.Fprintf(w, "Date:   %s\n", r.Date.Local().Format("2006-01-02 15:04"))
	}
	for _, field := range []struct{ label, value string }{
		{"Notes", r.Notes},
		{"Diagnosis", r.Diagnosis},
		{"Doctor", r.DoctorName},
		{"Prescription", r.Prescription},
		{"Tests", r.TestResults},
		{"Suggestion", r.DoctorSuggestions},
	} {
		if field.value != "" {
			fmt.Fprintf(w, "%s: %s\n", field.label, field.value)
		}
	}
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func floatFlag(cmd *cobra.Command, name string) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64(name)
	return &v
}

func recordsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a record",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			var in records.NewRecord
			in.Type, _ = cmd.Flags().GetString("type")
			in.Value, _ = cmd.Flags().GetString("value")
			in.Unit, _ = cmd.Flags().GetString("unit")
			in.Notes, _ = cmd.Flags().GetString("notes")
			in.Diagnosis, _ = cmd.Flags().GetString("diagnosis")
			in.DoctorName, _ = cmd.Flags().GetString("doctor")
			in.Prescription, _ = cmd.Flags().GetString("prescription")
			in.TestResults, _ = cmd.Flags().GetString("tests")
			in.HeartRate = floatFlag(cmd, "heart-rate")
			in.SystolicBp = floatFlag(cmd, "systolic")
			in.DiastolicBp = floatFlag(cmd, "diastolic")

			if strings.TrimSpace(in.Type) == "" {
				return gateway.NewValidationError("type", "Record type is required")
			}
			if in.Value == "" && !in.IsClinical() {
				return gateway.NewValidationError("value", "A value or a clinical field is required")
			}
			if raw, _ := cmd.Flags().GetString("date"); raw != "" {
				t, ok := healthmodels.ParseDate(raw)
				if !ok {
					return gateway.NewValidationError("date", fmt.Sprintf("cannot read date %q", raw))
				}
				in.Date = &t
			}

			owner, err := a.owner(cmd)
			if err != nil {
				return err
			}
			rec, err := a.repo.Create(cmd.Context(), owner, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Record added: %s\n", rec.ID)
			return nil
		}),
	}
	cmd.Flags().String("type", "", "Record type (heart_rate, blood_pressure, weight, ...)")
	cmd.Flags().String("value", "", "Value, e.g. 72 or 120/80")
	cmd.Flags().String("unit", "", "Unit, e.g. bpm")
	cmd.Flags().String("notes", "", "Notes or symptoms")
	cmd.Flags().String("date", "", "Record date (defaults to now)")
	cmd.Flags().Float64("heart-rate", 0, "Heart rate (clinical record)")
	cmd.Flags().Float64("systolic", 0, "Systolic pressure (clinical record)")
	cmd.Flags().Float64("diastolic", 0, "Diastolic pressure (clinical record)")
	cmd.Flags().String("diagnosis", "", "Diagnosis (clinical record)")
	cmd.Flags().String("doctor", "", "Doctor name (clinical record)")
	cmd.Flags().String("prescription", "", "Prescription (clinical record)")
	cmd.Flags().String("tests", "", "Test results (clinical record)")
	cmd.Flags().String("patient", "", "Patient id (doctors only; defaults to you)")
	return cmd
}

func recordsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			owner, err := a.owner(cmd)
			if err != nil {
				return err
			}
			rec, err := a.repo.Get(cmd.Context(), owner, args[0])
			if err != nil {
				return err
			}
			writeRecord(a.out, rec)
			return nil
		}),
	}
	cmd.Flags().String("patient", "", "Patient id (doctors only; defaults to you)")
	return cmd
}

func recordsUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a record",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			var upd records.Update
			for _, field := range []struct {
				flag string
				dst  **string
			}{{"type", &upd.Type}, {"value", &upd.Value}, {"unit", &upd.Unit}, {"notes", &upd.Notes}} {
				if cmd.Flags().Changed(field.flag) {
					v, _ := cmd.Flags().GetString(field.flag)
					*field.dst = &v
				}
			}
			if raw, _ := cmd.Flags().GetString("date"); raw != "" {
				t, ok := healthmodels.ParseDate(raw)
				if !ok {
					return gateway.NewValidationError("date", fmt.Sprintf("cannot read date %q", raw))
				}
				upd.Date = &t
			}
			if upd.Empty() {
				return gateway.NewValidationError("update", "nothing to change; pass at least one field flag")
			}

			owner, err := a.owner(cmd)
			if err != nil {
				return err
			}
			rec, err := a.repo.Update(cmd.Context(), owner, args[0], upd)
			if err != nil {
				return err
			}
			writeRecord(a.out, rec)
			return nil
		}),
	}
	cmd.Flags().String("type", "", "New type")
	cmd.Flags().String("value", "", "New value")
	cmd.Flags().String("unit", "", "New unit")
	cmd.Flags().String("notes", "", "New notes")
	cmd.Flags().String("date", "", "New date")
	cmd.Flags().String("patient", "", "Patient id (doctors only; defaults to you)")
	return cmd
}

func recordsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			owner, err := a.owner(cmd)
			if err != nil {
				return err
			}
			if err := a.repo.Delete(cmd.Context(), owner, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Record %s deleted.\n", args[0])
			return nil
		}),
	}
	cmd.Flags().String("patient", "", "Patient id (doctors only; defaults to you)")
	return cmd
}

func recordsStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count, average, min, max and latest of one record type",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			recordType, _ := cmd.Flags().GetString("type")
			days, _ := cmd.Flags().GetInt("days")
			owner, err := a.owner(cmd)
			if err != nil {
				return err
			}
			stats, err := a.agg.StatsForType(cmd.Context(), owner, recordType, days)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			if stats.NoData() {
				fmt.Fprintf(a.out, "No %s data in the last %d days.\n", stats.Type, effectiveDays(days))
				return nil
			}
			fmt.Fprintf(a.out, "%s over the last %d days\n", stats.Type, effectiveDays(days))
			fmt.Fprintf(a.out, "  count:   %d\n", stats.Count)
			fmt.Fprintf(a.out, "  average: %s\n", number(stats.Average))
			fmt.Fprintf(a.out, "  min:     %s\n", number(stats.Min))
			fmt.Fprintf(a.out, "  max:     %s\n", number(stats.Max))
			fmt.Fprintf(a.out, "  latest:  %s\n", number(stats.Latest))
			return nil
		}),
	}
	cmd.Flags().String("type", healthmodels.RecordTypeHeartRate, "Record type")
	cmd.Flags().Int("days", records.DefaultStatsWindow, "Trailing window in days")
	cmd.Flags().String("patient", "", "Patient id (doctors only; defaults to you)")
	cmd.Flags().Bool("json", false, "Print JSON")
	return cmd
}

func effectiveDays(days int) int {
	if days <= 0 {
		return records.DefaultStatsWindow
	}
	return days
}

func number(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func recordsScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Dashboard metrics and health score",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			policy := a.policy
			if name, _ := cmd.Flags().GetString("policy"); name != "" {
				p, err := insights.PolicyByName(name)
				if err != nil {
					return gateway.WrapValidation("policy", err)
				}
				policy = p
			}
			owner, err := a.owner(cmd)
			if err != nil {
				return err
			}
			recs, err := a.repo.List(cmd.Context(), owner)
			if err != nil {
				return err
			}
			m := records.ComputeMetrics(recs)
			score := insights.HealthScore(policy, recs)

			fmt.Fprintf(a.out, "Records:        %d\n", len(recs))
			fmt.Fprintf(a.out, "Avg heart rate: %s\n", withUnit(m.AvgHeartRate, "bpm"))
			if m.HasBloodPressure() {
				fmt.Fprintf(a.out, "Avg pressure:   %.0f/%.0f mmHg\n", *m.AvgSystolic, *m.AvgDiastolic)
			} else {
				fmt.Fprintln(a.out, "Avg pressure:   N/A")
			}
			fmt.Fprintf(a.out, "Health score:   %s (%s policy)\n", score, policy.Name)
			counts := records.TypeCounts(recs)
			types := make([]string, 0, len(counts))
			for t := range counts {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintf(a.out, "  %-16s%d\n", t+":", counts[t])
			}
			return nil
		}),
	}
	cmd.Flags().String("policy", "", "Score policy: api or local (defaults to SCORE_POLICY)")
	cmd.Flags().String("patient", "", "Patient id (doctors only; defaults to you)")
	return cmd
}

func withUnit(v *float64, unit string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.0f %s", *v, unit)
}

func recordsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records as JSON, CSV or PDF",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			rawFormat, _ := cmd.Flags().GetString("format")
			format, err := reporting.ParseFormat(rawFormat)
			if err != nil {
				return err
			}
			recs, err := a.fetchRecords(cmd)
			if err != nil {
				return err
			}
			recs = pagination.Slice(recs, readPage(cmd))
			if len(recs) == 0 {
				return reporting.ErrNoRecords
			}

			path, _ := cmd.Flags().GetString("output")
			if path == "" {
				path = reporting.FileName(format, a.now())
			}
			var w io.Writer = a.out
			if path != "-" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create %s: %w", path, err)
				}
				defer f.Close()
				w = f
			}

			u, _ := a.identity.CurrentUser(cmd.Context())
			opts := reporting.PDFOptions{Policy: a.policy, GeneratedAt: a.now()}
			if u != nil {
				opts.PatientName = u.DisplayName
			}
			if err := reporting.Write(w, format, recs, opts); err != nil {
				return err
			}
			if path != "-" {
				fmt.Fprintf(a.out, "Exported %d records to %s\n", len(recs), path)
			}
			return nil
		}),
	}
	addFilterFlags(cmd)
	addPageFlags(cmd)
	cmd.Flags().Bool("all", false, "Every patient's records (doctors only)")
	cmd.Flags().String("format", string(reporting.FormatCSV), "json, csv or pdf")
	cmd.Flags().StringP("output", "o", "", "Output file (default health-records-<date>.<ext>, - for stdout)")
	return cmd
}
