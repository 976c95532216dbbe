package scheduling

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/healthtrack/healthtrack/internal/platform/gateway"
)

// Requester is the part of the gateway the client needs.
type Requester interface {
	Request(ctx context.Context, path string, opts gateway.Options) (*gateway.Result, error)
}

// Client wraps the appointment endpoints.
type Client struct {
	api Requester
}

func NewClient(api Requester) *Client {
	return &Client{api: api}
}

func (c *Client) ListForPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return c.list(ctx, "/appointments/patient/"+url.PathEscape(patientID), nil)
}

func (c *Client) ListForDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return c.list(ctx, "/appointments/doctor/"+url.PathEscape(doctorID), nil)
}

// ListAll returns every doctor's appointments.
func (c *Client) ListAll(ctx context.Context) ([]Appointment, error) {
	return c.list(ctx, "/appointments/doctor/all-appointments", nil)
}

// Search lists /appointments with optional query parameters.
func (c *Client) Search(ctx context.Context, query url.Values) ([]Appointment, error) {
	return c.list(ctx, "/appointments", query)
}

func (c *Client) list(ctx context.Context, path string, query url.Values) ([]Appointment, error) {
	res, err := c.api.Request(ctx, path, gateway.Options{Query: query})
	if err != nil {
		return nil, err
	}
	if !res.IsJSON() {
		return []Appointment{}, nil
	}
	return DecodeAppointments(res.Data), nil
}

func (c *Client) Get(ctx context.Context, id string) (*Appointment, error) {
	res, err := c.api.Request(ctx, "/doctor/appointments/"+url.PathEscape(id), gateway.Options{})
	if err != nil {
		return nil, err
	}
	return c.decodeOne(res)
}

func (c *Client) Create(ctx context.Context, b Booking) (*Appointment, error) {
	body := map[string]interface{}{
		"patientId":       b.PatientID,
		"reason":          b.Reason,
		"appointmentDate": b.Date.UTC().Format(time.RFC3339),
		"status":          "PENDING",
	}
	if b.DoctorID != "" {
		body["doctorId"] = b.DoctorID
	}
	res, err := c.api.Request(ctx, "/appointments", gateway.Options{Method: http.MethodPost, Body: body})
	if err != nil {
		return nil, err
	}
	return c.decodeOne(res)
}

// Complete closes the appointment with the doctor's suggestion.
func (c *Client) Complete(ctx context.Context, id, suggestion, doctorID string) (*Appointment, error) {
	res, err := c.api.Request(ctx, "/appointments/"+url.PathEscape(id)+"/complete", gateway.Options{
		Method: http.MethodPost,
		Body:   map[string]string{"suggestion": suggestion, "doctorId": doctorID},
	})
	if err != nil {
		return nil, err
	}
	return c.decodeOne(res)
}

func (c *Client) SaveSuggestion(ctx context.Context, id, suggestion string) error {
	_, err := c.api.Request(ctx, "/appointments/"+url.PathEscape(id)+"/suggestion", gateway.Options{
		Method: http.MethodPost,
		Body:   map[string]string{"note": suggestion},
	})
	return err
}

// AddNotes stores doctor notes and, when status is set, the new status.
func (c *Client) AddNotes(ctx context.Context, id, notes, status string) (*Appointment, error) {
	body := map[string]string{"doctorNotes": notes}
	if status != "" {
		body["status"] = NormalizeStatus(status)
	}
	res, err := c.api.Request(ctx, "/doctor/appointments/"+url.PathEscape(id)+"/notes", gateway.Options{
		Method: http.MethodPut,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return c.decodeOne(res)
}

// SetStatus patches the appointment status.
func (c *Client) SetStatus(ctx context.Context, id, status string) (*Appointment, error) {
	res, err := c.api.Request(ctx, "/appointments/"+url.PathEscape(id), gateway.Options{
		Method: http.MethodPatch,
		Body:   map[string]string{"status": NormalizeStatus(status)},
	})
	if err != nil {
		return nil, err
	}
	return c.decodeOne(res)
}

func (c *Client) decodeOne(res *gateway.Result) (*Appointment, error) {
	if !res.IsJSON() {
		return nil, nil
	}
	a, err := DecodeAppointment(res.Data)
	if err != nil {
		return nil, fmt.Errorf("scheduling: decode appointment: %w", err)
	}
	return a, nil
}
