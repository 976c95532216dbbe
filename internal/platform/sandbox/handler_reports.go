package sandbox

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/healthtrack/healthtrack/internal/domain/insights"
	"github.com/healthtrack/healthtrack/internal/domain/records"
	"github.com/healthtrack/healthtrack/internal/domain/scheduling"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

const defaultPeriodDays = 30

func (s *Server) registerReportRoutes(g *echo.Group) {
	self := auth.RequireSelfOrRole("id", healthmodels.RoleDoctor)
	g.GET("/patient/:id/health-summary", s.healthSummary, self)
	g.GET("/patient/:id/health-data", s.healthData, self)
	g.GET("/patient/:id/doctor-suggestions", s.doctorSuggestions, self)
	g.GET("/patient/:id/generate-report", s.generateReport, self)
}

type healthSummary struct {
	PatientID    string                   `json:"patientId"`
	TotalRecords int                      `json:"totalRecords"`
	Metrics      records.Metrics          `json:"metrics"`
	HealthScore  *int                     `json:"healthScore"`
	TypeCounts   map[string]int           `json:"typeCounts"`
	Latest       map[string]interface{}   `json:"latest"`
	Upcoming     []scheduling.Appointment `json:"upcomingAppointments"`
}

func (s *Server) summarize(patientID string) healthSummary {
	recs := s.store.Records(patientID)
	sum := healthSummary{
		PatientID:    patientID,
		TotalRecords: len(recs),
		Metrics:      records.ComputeMetrics(recs),
		TypeCounts:   records.TypeCounts(recs),
		Latest:       make(map[string]interface{}),
	}
	if score := insights.HealthScore(insights.APIPolicy, recs); score.Available {
		v := score.Value
		sum.HealthScore = &v
	}
	// recs is newest first, so the first record seen per type is the latest.
	for _, r := range recs {
		if _, seen := sum.Latest[r.Type]; !seen {
			sum.Latest[r.Type] = recordView(r)
		}
	}
	sum.Upcoming = s.store.Appointments(func(a scheduling.Appointment) bool {
		return a.PatientID == patientID && a.IsUpcoming()
	})
	return sum
}

func (s *Server) healthSummary(c echo.Context) error {
	if _, err := s.store.User(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	}
	return c.JSON(http.StatusOK, s.summarize(c.Param("id")))
}

type pressurePoint struct {
	Date      time.Time `json:"date"`
	Systolic  float64   `json:"systolic"`
	Diastolic float64   `json:"diastolic"`
}

// healthData returns the chart series for the trailing period in days.
func (s *Server) healthData(c echo.Context) error {
	period := defaultPeriodDays
	if p := c.QueryParam("period"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "period must be a positive number of days")
		}
		period = n
	}
	since := time.Now().UTC().AddDate(0, 0, -period)
	recs := records.Apply(s.store.Records(c.Param("id")), records.Filter{Start: &since})

	pressure := []pressurePoint{}
	for _, r := range recs {
		if sys, dia, ok := r.BloodPressure(); ok && r.HasDate() {
			pressure = append(pressure, pressurePoint{Date: *r.Date, Systolic: sys, Diastolic: dia})
		}
	}
	heartRate := records.Series(recs, healthmodels.RecordTypeHeartRate)
	if heartRate == nil {
		heartRate = []records.Point{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patientId":     c.Param("id"),
		"period":        period,
		"recordCount":   len(recs),
		"heartRate":     heartRate,
		"bloodPressure": pressure,
	})
}

type suggestionView struct {
	Source     string     `json:"source"`
	ID         string     `json:"id"`
	Date       *time.Time `json:"date,omitempty"`
	DoctorName string     `json:"doctorName,omitempty"`
	Suggestion string     `json:"suggestion"`
}

func (s *Server) suggestionsFor(patientID string) []suggestionView {
	out := []suggestionView{}
	for _, r := range s.store.Records(patientID) {
		if r.DoctorSuggestions != "" {
			out = append(out, suggestionView{Source: "record", ID: r.ID, Date: r.Date, DoctorName: r.DoctorName, Suggestion: r.DoctorSuggestions})
		}
	}
	for _, a := range s.store.Appointments(func(a scheduling.Appointment) bool {
		return a.PatientID == patientID && a.Suggestion != ""
	}) {
		out = append(out, suggestionView{Source: "appointment", ID: a.ID, Date: a.Date, DoctorName: a.DoctorName, Suggestion: a.Suggestion})
	}
	return out
}

func (s *Server) doctorSuggestions(c echo.Context) error {
	return c.JSON(http.StatusOK, s.suggestionsFor(c.Param("id")))
}

func (s *Server) generateReport(c echo.Context) error {
	patientID := c.Param("id")
	u, err := s.store.User(patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient":      u.Summary(),
		"generatedAt":  time.Now().UTC(),
		"summary":      s.summarize(patientID),
		"records":      recordViews(s.store.Records(patientID)),
		"appointments": s.store.Appointments(func(a scheduling.Appointment) bool { return a.PatientID == patientID }),
		"suggestions":  s.suggestionsFor(patientID),
	})
}
