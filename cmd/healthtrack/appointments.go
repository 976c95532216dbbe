package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/healthtrack/healthtrack/internal/domain/scheduling"
	"github.com/healthtrack/healthtrack/internal/platform/gateway"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

func appointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"appt", "a"},
		Short:   "Book and manage appointments",
	}
	cmd.AddCommand(appointmentsListCmd())
	cmd.AddCommand(appointmentsBookCmd())
	cmd.AddCommand(appointmentsStatusCmd("confirm", healthmodels.StatusConfirmed, "Confirm an appointment (doctors only)"))
	cmd.AddCommand(appointmentsCompleteCmd())
	cmd.AddCommand(appointmentsStatusCmd("cancel", healthmodels.StatusCancelled, "Cancel an appointment"))
	cmd.AddCommand(appointmentsSuggestCmd())
	cmd.AddCommand(appointmentsNotesCmd())
	cmd.AddCommand(appointmentsStatsCmd())
	return cmd
}

func appointmentsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your appointments",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			u, err := a.user(cmd.Context())
			if err != nil {
				return err
			}
			appts, err := a.sched.ListFor(cmd.Context(), u)
			if err != nil {
				return err
			}
			view, _ := cmd.Flags().GetString("view")
			search, _ := cmd.Flags().GetString("search")
			shown := scheduling.Filter(appts, scheduling.View(view), search)
			if len(shown) == 0 {
				fmt.Fprintln(a.out, "No appointments.")
				return nil
			}
			writeAppointmentTable(a.out, shown, u.Role.IsDoctor())
			return nil
		}),
	}
	cmd.Flags().String("view", string(scheduling.ViewAll), "all, upcoming, pending, completed or a status")
	cmd.Flags().String("search", "", "Only appointments whose patient name contains this")
	return cmd
}

func writeAppointmentTable(w io.Writer, appts []scheduling.Appointment, doctor bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	who := "DOCTOR"
	if doctor {
		who = "PATIENT"
	}
	fmt.Fprintf(tw, "DATE\tSTATUS\t%s\tREASON\tID\n", who)
	for _, ap := range appts {
		date := "-"
		if ap.Date != nil {
			date = ap.Date.Local().Format("2006-01-02 15:04")
		}
		name := healthmodels.FirstNonEmpty(ap.DoctorName, ap.DoctorID, "-")
		if doctor {
			name = ap.PatientDisplay()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", date, ap.Status, name, oneLine(ap.ReasonOrDefault(), 40), ap.ID)
	}
	tw.Flush()
}

func writeAppointment(w io.Writer, ap *scheduling.Appointment) {
	fmt.Fprintf(w, "Appointment %s: %s\n", ap.ID, ap.Status)
	if ap.Date != nil {
		fmt.Fprintf(w, "  date:       %s\n", ap.Date.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "  reason:     %s\n", ap.ReasonOrDefault())
	if ap.DoctorNotes != "" {
		fmt.Fprintf(w, "  notes:      %s\n", ap.DoctorNotes)
	}
	if ap.Suggestion != "" {
		fmt.Fprintf(w, "  suggestion: %s\n", ap.Suggestion)
	}
}

func appointmentsBookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			u, err := a.user(cmd.Context())
			if err != nil {
				return err
			}
			b := scheduling.Booking{PatientID: u.ID}
			b.Reason, _ = cmd.Flags().GetString("reason")
			b.DoctorID, _ = cmd.Flags().GetString("doctor")
			if p, _ := cmd.Flags().GetString("patient"); p != "" {
				b.PatientID = p
			}
			if u.Role.IsDoctor() && b.DoctorID == "" {
				b.DoctorID = u.ID
			}
			if raw, _ := cmd.Flags().GetString("date"); raw != "" {
				t, ok := healthmodels.ParseDate(raw)
				if !ok {
					return gateway.NewValidationError("date", fmt.Sprintf("cannot read date %q", raw))
				}
				b.Date = t
			}

			ap, err := a.sched.Book(cmd.Context(), b)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Appointment booked.")
			writeAppointment(a.out, ap)
			return nil
		}),
	}
	cmd.Flags().String("date", "", "Appointment date and time, e.g. 2026-11-02T10:30")
	cmd.Flags().String("reason", "", "Reason for the visit")
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("patient", "", "Patient id (doctors only; defaults to you)")
	return cmd
}

// appointmentsStatusCmd builds a command that moves an appointment to status.
func appointmentsStatusCmd(use, status, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if _, err := a.user(cmd.Context()); err != nil {
				return err
			}
			ap, err := a.sched.TransitionByID(cmd.Context(), args[0], status, "", "")
			if err != nil {
				return err
			}
			writeAppointment(a.out, ap)
			return nil
		}),
	}
}

func appointmentsCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete an appointment with a suggestion (doctors only)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			u, err := a.user(cmd.Context())
			if err != nil {
				return err
			}
			suggestion, _ := cmd.Flags().GetString("suggestion")
			ap, err := a.sched.TransitionByID(cmd.Context(), args[0], healthmodels.StatusCompleted, suggestion, u.ID)
			if err != nil {
				return err
			}
			writeAppointment(a.out, ap)
			return nil
		}),
	}
	cmd.Flags().String("suggestion", "", "Suggestion for the patient")
	return cmd
}

func appointmentsSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest <id>",
		Short: "Attach a suggestion to an appointment or, with --record, a record",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if _, err := a.user(cmd.Context()); err != nil {
				return err
			}
			note, _ := cmd.Flags().GetString("note")
			if note == "" {
				return gateway.NewValidationError("note", "Suggestion is required")
			}
			if onRecord, _ := cmd.Flags().GetBool("record"); onRecord {
				api, err := a.apiRecords()
				if err != nil {
					return err
				}
				if err := api.AddSuggestion(cmd.Context(), args[0], note); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Suggestion saved on record %s.\n", args[0])
				return nil
			}
			if err := a.sched.Client().SaveSuggestion(cmd.Context(), args[0], note); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Suggestion saved on appointment %s.\n", args[0])
			return nil
		}),
	}
	cmd.Flags().String("note", "", "Suggestion text")
	cmd.Flags().Bool("record", false, "Treat <id> as a health record id")
	return cmd
}

func appointmentsNotesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes <id>",
		Short: "Write doctor notes and optionally change the status (doctors only)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if _, err := a.user(cmd.Context()); err != nil {
				return err
			}
			notes, _ := cmd.Flags().GetString("notes")
			status, _ := cmd.Flags().GetString("status")
			ctx := cmd.Context()
			if status != "" {
				current, err := a.sched.Client().Get(ctx, args[0])
				if err != nil {
					return err
				}
				status = scheduling.NormalizeStatus(status)
				if current != nil && current.Status != status {
					if err := scheduling.CheckTransition(current.Status, status); err != nil {
						return gateway.WrapValidation("status", err)
					}
				}
			}
			ap, err := a.sched.Client().AddNotes(ctx, args[0], notes, status)
			if err != nil {
				return err
			}
			if ap != nil {
				writeAppointment(a.out, ap)
			} else {
				fmt.Fprintln(a.out, "Notes saved.")
			}
			return nil
		}),
	}
	cmd.Flags().String("notes", "", "Doctor notes")
	cmd.Flags().String("status", "", "New status (optional)")
	return cmd
}

func appointmentsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Appointment counters for the doctor dashboard",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			u, err := a.user(cmd.Context())
			if err != nil {
				return err
			}
			appts, err := a.sched.ListFor(cmd.Context(), u)
			if err != nil {
				return err
			}
			s := scheduling.DoctorStats(appts)
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, row := range []struct {
				label string
				n     int
			}{
				{"Total", s.Total},
				{"Pending", s.Pending},
				{"Confirmed", s.Confirmed},
				{"Completed", s.Completed},
				{"Cancelled", s.Cancelled},
				{"Upcoming", s.Upcoming},
				{"Patients", s.Patients},
			} {
				fmt.Fprintf(tw, "%s\t%d\n", row.label, row.n)
			}
			return tw.Flush()
		}),
	}
}
