// Package reporting exports record lists and wraps the backend's report
// endpoints.
package reporting

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/healthtrack/healthtrack/internal/domain/insights"
	"github.com/healthtrack/healthtrack/internal/domain/records"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

var (
	ErrNoRecords     = errors.New("no records to export")
	ErrUnknownFormat = errors.New("unknown export format")
)

// ParseFormat accepts json, csv or pdf in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FileName is the default download name, e.g. health-records-2024-05-01.csv.
func FileName(f Format, now time.Time) string {
	return fmt.Sprintf("health-records-%s.%s", now.Format("2006-01-02"), f)
}

// Write renders recs to w in format f.
func Write(w io.Writer, f Format, recs []records.HealthRecord, opts PDFOptions) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, recs)
	case FormatCSV:
		return WriteCSV(w, recs)
	case FormatPDF:
		return WritePDF(w, recs, opts)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// WriteJSON writes the list as an indented JSON array.
func WriteJSON(w io.Writer, recs []records.HealthRecord) error {
	if recs == nil {
		recs = []records.HealthRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

var (
	legacyHeader   = []string{"Date", "Type", "Value", "Unit", "Notes"}
	clinicalHeader = []string{"Date", "Doctor", "Diagnosis", "Prescription", "Test Results", "Notes"}
)

// WriteCSV writes one row per record. Lists holding clinical records use the
// clinical columns. An empty list is ErrNoRecords and nothing is written.
func WriteCSV(w io.Writer, recs []records.HealthRecord) error {
	if len(recs) == 0 {
		return ErrNoRecords
	}
	clinical := hasClinical(recs)

	cw := csv.NewWriter(w)
	header := legacyHeader
	if clinical {
		header = clinicalHeader
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		var row []string
		if clinical {
			row = []string{csvDate(r), r.DoctorName, r.Diagnosis, r.Prescription, r.TestResults, r.Notes}
		} else {
			row = []string{csvDate(r), r.Type, r.DisplayValue(), r.Unit, r.Notes}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func hasClinical(recs []records.HealthRecord) bool {
	for _, r := range recs {
		if r.Clinical {
			return true
		}
	}
	return false
}

func csvDate(r records.HealthRecord) string {
	if !r.HasDate() {
		return ""
	}
	return r.Date.Format("1/2/2006")
}

// PDFOptions label the PDF report.
type PDFOptions struct {
	Title       string
	PatientName string
	Policy      insights.Policy
	GeneratedAt time.Time
}

// WritePDF renders an A4 report: a header, a summary block with averages and
// the health score, then a table of records.
func WritePDF(w io.Writer, recs []records.HealthRecord, opts PDFOptions) error {
	if opts.Title == "" {
		opts.Title = "Health Records Report"
	}
	if opts.Policy.Name == "" {
		opts.Policy = insights.APIPolicy
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 70, 140)
	pdf.CellFormat(0, 10, opts.Title, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(0, 0, 0)
	if opts.PatientName != "" {
		pdf.CellFormat(0, 6, "Patient: "+opts.PatientName, "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 6, "Generated: "+opts.GeneratedAt.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	metrics := records.ComputeMetrics(recs)
	score := insights.HealthScore(opts.Policy, recs)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "1", 1, "C", false, 0, "")
	addDetail(pdf, "Total records", fmt.Sprintf("%d", len(recs)))
	addDetail(pdf, "Health score", score.String())
	addDetail(pdf, "Average heart rate", optional(metrics.AvgHeartRate, " bpm"))
	bp := "N/A"
	if metrics.HasBloodPressure() {
		bp = fmt.Sprintf("%.0f/%.0f mmHg", *metrics.AvgSystolic, *metrics.AvgDiastolic)
	}
	addDetail(pdf, "Average blood pressure", bp)
	pdf.Ln(4)

	headers, widths := legacyHeader, []float64{30, 35, 35, 20, 70}
	if hasClinical(recs) {
		headers, widths = clinicalHeader, []float64{25, 30, 35, 35, 35, 30}
	}
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 236, 245)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	if len(recs) == 0 {
		pdf.CellFormat(sum(widths), 7, "No records", "1", 1, "C", false, 0, "")
	}
	for _, r := range recs {
		var row []string
		if hasClinical(recs) {
			row = []string{csvDate(r), r.DoctorName, r.Diagnosis, r.Prescription, r.TestResults, r.Notes}
		} else {
			row = []string{csvDate(r), r.Type, r.DisplayValue(), r.Unit, r.Notes}
		}
		for i, v := range row {
			pdf.CellFormat(widths[i], 6, clip(pdf, v, widths[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

func addDetail(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 7, label, "1", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, value, "1", 1, "L", false, 0, "")
}

func optional(v *float64, suffix string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.0f%s", *v, suffix)
}

func sum(ws []float64) float64 {
	var t float64
	for _, w := range ws {
		t += w
	}
	return t
}

// clip shortens s to fit a cell of width w.
func clip(pdf *gofpdf.Fpdf, s string, w float64) string {
	limit := w - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > limit {
		s = s[:len(s)-1]
	}
	return s + "..."
}
