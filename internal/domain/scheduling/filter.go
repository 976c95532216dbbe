package scheduling

import (
	"sort"
	"strings"
	"time"

	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

// View names an appointment list.
type View string

const (
	ViewAll       View = "all"
	ViewUpcoming  View = "upcoming"
	ViewPending   View = "pending"
	ViewCompleted View = "completed"
)

// Filter returns the appointments in view. Any other view value is matched
// against the status exactly. search, when set, keeps appointments whose
// patient name contains it (case-insensitive).
//
// Lists are ordered by appointment date ascending, except the completed view
// which shows the most recently updated first.
func Filter(appts []Appointment, view View, search string) []Appointment {
	v := View(strings.ToLower(strings.TrimSpace(string(view))))
	search = strings.ToLower(strings.TrimSpace(search))

	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		if !inView(a, v) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.PatientName), search) {
			continue
		}
		out = append(out, a)
	}

	if v == ViewCompleted {
		sort.SliceStable(out, func(i, j int) bool { return recency(out[i]).After(recency(out[j])) })
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].Date, out[j].Date
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.Before(*b)
		})
	}
	return out
}

func inView(a Appointment, v View) bool {
	switch v {
	case "", ViewAll:
		return true
	case ViewUpcoming:
		return a.IsUpcoming()
	case ViewPending:
		return a.Status != healthmodels.StatusCompleted
	case ViewCompleted:
		return a.Status == healthmodels.StatusCompleted
	}
	return a.Status == NormalizeStatus(string(v))
}

func recency(a Appointment) time.Time {
	if a.UpdatedAt != nil {
		return *a.UpdatedAt
	}
	if a.Date != nil {
		return *a.Date
	}
	return time.Time{}
}

// Stats are the doctor dashboard counters.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	Upcoming  int `json:"upcoming"`
	Patients  int `json:"patients"`
}

// DoctorStats counts appointments by status and distinct patients.
func DoctorStats(appts []Appointment) Stats {
	var s Stats
	patients := make(map[string]struct{})
	for _, a := range appts {
		s.Total++
		switch a.Status {
		case healthmodels.StatusPending:
			s.Pending++
		case healthmodels.StatusConfirmed:
			s.Confirmed++
		case healthmodels.StatusCompleted:
			s.Completed++
		case healthmodels.StatusCancelled:
			s.Cancelled++
		}
		if a.IsUpcoming() {
			s.Upcoming++
		}
		key := healthmodels.FirstNonEmpty(a.PatientID, strings.ToLower(a.PatientName))
		if key != "" {
			patients[key] = struct{}{}
		}
	}
	s.Patients = len(patients)
	return s
}
