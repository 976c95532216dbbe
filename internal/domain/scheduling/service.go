package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthtrack/healthtrack/internal/platform/gateway"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

type Service struct {
	client *Client
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(client *Client, logger zerolog.Logger) *Service {
	return &Service{client: client, logger: logger.With().Str("component", "scheduling").Logger(), now: time.Now}
}

// Client exposes the underlying endpoint client.
func (s *Service) Client() *Client { return s.client }

// Book validates and creates an appointment.
func (s *Service) Book(ctx context.Context, b Booking) (*Appointment, error) {
	if b.PatientID == "" {
		return nil, gateway.NewValidationError("patientId", "Patient is required")
	}
	if b.Date.IsZero() {
		return nil, gateway.NewValidationError("appointmentDate", "Please choose an appointment date")
	}
	if b.Date.Before(s.now().Add(-time.Minute)) {
		return nil, gateway.NewValidationError("appointmentDate", "Appointment date must be in the future")
	}
	b.Reason = strings.TrimSpace(b.Reason)

	a, err := s.client.Create(ctx, b)
	if err != nil {
		return nil, err
	}
	if a == nil {
		d := b.Date
		a = &Appointment{PatientID: b.PatientID, DoctorID: b.DoctorID, Reason: b.Reason, Date: &d, Status: healthmodels.StatusPending}
	}
	return a, nil
}

// ListFor returns the appointments visible to u: a doctor sees every
// appointment, a patient only their own.
func (s *Service) ListFor(ctx context.Context, u *healthmodels.UserSummary) ([]Appointment, error) {
	if u == nil {
		return nil, gateway.ErrNotAuthenticated
	}
	if u.Role.IsDoctor() {
		return s.client.ListAll(ctx)
	}
	return s.client.ListForPatient(ctx, u.ID)
}

// Transition moves a to status to. The move is checked before any request
// is sent. note is the suggestion when completing and is ignored otherwise.
func (s *Service) Transition(ctx context.Context, a Appointment, to, note, doctorID string) (*Appointment, error) {
	to = NormalizeStatus(to)
	if err := CheckTransition(a.Status, to); err != nil {
		return nil, gateway.WrapValidation("status", err)
	}

	var (
		updated *Appointment
		err     error
	)
	switch to {
	case healthmodels.StatusCompleted:
		updated, err = s.client.Complete(ctx, a.ID, note, doctorID)
	default:
		updated, err = s.client.SetStatus(ctx, a.ID, to)
	}
	if err != nil {
		return nil, err
	}
	if updated == nil {
		cp := a
		cp.Status = to
		if to == healthmodels.StatusCompleted && note != "" {
			cp.Suggestion = note
		}
		updated = &cp
	}
	s.logger.Info().Str("appointment_id", a.ID).Str("from", a.Status).Str("to", to).Msg("appointment status changed")
	return updated, nil
}

// TransitionByID fetches the appointment and then applies Transition.
func (s *Service) TransitionByID(ctx context.Context, id, to, note, doctorID string) (*Appointment, error) {
	a, err := s.client.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errors.New("scheduling: empty appointment response")
	}
	return s.Transition(ctx, *a, to, note, doctorID)
}

// Cancel is Transition to CANCELLED.
func (s *Service) Cancel(ctx context.Context, a Appointment) (*Appointment, error) {
	return s.Transition(ctx, a, healthmodels.StatusCancelled, "", "")
}
