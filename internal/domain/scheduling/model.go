package scheduling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Appointment is the canonical appointment.
type Appointment struct {
	ID           string     `json:"id"`
	PatientID    string     `json:"patientId,omitempty"`
	DoctorID     string     `json:"doctorId,omitempty"`
	PatientName  string     `json:"patientName,omitempty"`
	PatientEmail string     `json:"patientEmail,omitempty"`
	DoctorName   string     `json:"doctorName,omitempty"`
	DoctorEmail  string     `json:"doctorEmail,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Date         *time.Time `json:"appointmentDate,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	Status       string     `json:"status"`
	DoctorNotes  string     `json:"doctorNotes,omitempty"`
	Suggestion   string     `json:"suggestion,omitempty"`
}

// ReasonOrDefault returns the visit reason shown in lists.
func (a Appointment) ReasonOrDefault() string {
	if strings.TrimSpace(a.Reason) == "" {
		return "General Checkup"
	}
	return a.Reason
}

// PatientDisplay returns the patient name shown in lists.
func (a Appointment) PatientDisplay() string {
	if a.PatientName == "" {
		return "Unknown Patient"
	}
	return a.PatientName
}

// IsUpcoming reports whether the appointment is still open.
func (a Appointment) IsUpcoming() bool {
	return a.Status == healthmodels.StatusPending || a.Status == healthmodels.StatusConfirmed
}

// NormalizeStatus upper-cases s and defaults to PENDING.
func NormalizeStatus(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return healthmodels.StatusPending
	}
	return s
}

var transitions = map[string][]string{
	healthmodels.StatusPending:   {healthmodels.StatusConfirmed, healthmodels.StatusCompleted, healthmodels.StatusCancelled},
	healthmodels.StatusConfirmed: {healthmodels.StatusCompleted, healthmodels.StatusCancelled},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to string) bool {
	from, to = NormalizeStatus(from), NormalizeStatus(to)
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status string) bool {
	return len(transitions[NormalizeStatus(status)]) == 0
}

// CheckTransition returns ErrInvalidTransition wrapped with context when the
// move is not allowed.
func CheckTransition(from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, NormalizeStatus(from), NormalizeStatus(to))
	}
	return nil
}

type person struct {
	ID       healthmodels.FlexString `json:"id"`
	Username string                  `json:"username"`
	Name     string                  `json:"name"`
	Email    string                  `json:"email"`
}

type wireAppointment struct {
	ID              healthmodels.FlexString `json:"id"`
	PatientID       healthmodels.FlexString `json:"patientId"`
	DoctorID        healthmodels.FlexString `json:"doctorId"`
	PatientName     string                  `json:"patientName"`
	PatientEmail    string                  `json:"patientEmail"`
	DoctorName      string                  `json:"doctorName"`
	DoctorEmail     string                  `json:"doctorEmail"`
	Patient         *person                 `json:"patient"`
	Doctor          *person                 `json:"doctor"`
	Reason          string                  `json:"reason"`
	AppointmentDate json.RawMessage         `json:"appointmentDate"`
	AppointmentDt   json.RawMessage         `json:"appointment_date"`
	Datetime        json.RawMessage         `json:"datetime"`
	Date            json.RawMessage         `json:"date"`
	UpdatedAt       json.RawMessage         `json:"updatedAt"`
	Status          string                  `json:"status"`
	DoctorNotes     string                  `json:"doctorNotes"`
	Suggestion      string                  `json:"suggestion"`
	Note            string                  `json:"note"`
}

func (w wireAppointment) normalize() Appointment {
	a := Appointment{
		ID:           string(w.ID),
		PatientID:    string(w.PatientID),
		DoctorID:     string(w.DoctorID),
		PatientName:  w.PatientName,
		PatientEmail: w.PatientEmail,
		DoctorName:   w.DoctorName,
		DoctorEmail:  w.DoctorEmail,
		Reason:       w.Reason,
		Status:       NormalizeStatus(w.Status),
		DoctorNotes:  w.DoctorNotes,
		Suggestion:   healthmodels.FirstNonEmpty(w.Suggestion, w.Note),
	}
	if p := w.Patient; p != nil {
		a.PatientID = healthmodels.FirstNonEmpty(a.PatientID, string(p.ID))
		a.PatientName = healthmodels.FirstNonEmpty(a.PatientName, p.Username, p.Name)
		a.PatientEmail = healthmodels.FirstNonEmpty(a.PatientEmail, p.Email)
	}
	if d := w.Doctor; d != nil {
		a.DoctorID = healthmodels.FirstNonEmpty(a.DoctorID, string(d.ID))
		a.DoctorName = healthmodels.FirstNonEmpty(a.DoctorName, d.Username, d.Name)
		a.DoctorEmail = healthmodels.FirstNonEmpty(a.DoctorEmail, d.Email)
	}
	for _, raw := range []json.RawMessage{w.AppointmentDate, w.AppointmentDt, w.Datetime, w.Date} {
		if t, ok := healthmodels.DecodeDate(raw); ok {
			a.Date = &t
			break
		}
	}
	if t, ok := healthmodels.DecodeDate(w.UpdatedAt); ok {
		a.UpdatedAt = &t
	}
	return a
}

// DecodeAppointments normalizes a JSON array. Non-array bodies yield nothing
// and undecodable elements are skipped.
func DecodeAppointments(data []byte) []Appointment {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return []Appointment{}
	}
	out := make([]Appointment, 0, len(items))
	for _, item := range items {
		var w wireAppointment
		if err := json.Unmarshal(item, &w); err != nil {
			continue
		}
		out = append(out, w.normalize())
	}
	return out
}

// DecodeAppointment normalizes one appointment object.
func DecodeAppointment(data []byte) (*Appointment, error) {
	var w wireAppointment
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	a := w.normalize()
	return &a, nil
}

// Booking is the input for a new appointment.
type Booking struct {
	PatientID string    `json:"patientId"`
	DoctorID  string    `json:"doctorId,omitempty"`
	Reason    string    `json:"reason"`
	Date      time.Time `json:"appointmentDate"`
}
