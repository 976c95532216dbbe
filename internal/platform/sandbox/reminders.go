package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/healthtrack/healthtrack/internal/domain/scheduling"
	"github.com/healthtrack/healthtrack/internal/platform/websocket"
)

const (
	EventAppointmentReminder = "appointment.reminder"

	// DefaultReminderSchedule is the cron spec of the reminder sweep.
	DefaultReminderSchedule = "@every 1m"
	// ReminderLead is how far ahead an open appointment triggers a reminder.
	ReminderLead = 24 * time.Hour
)

// Reminders publishes one reminder event per open appointment that starts
// within ReminderLead.
type Reminders struct {
	srv  *Server
	cron *cron.Cron
	now  func() time.Time

	mu   sync.Mutex
	sent map[string]struct{}
}

func (s *Server) NewReminders() *Reminders {
	return &Reminders{
		srv:  s,
		cron: cron.New(),
		now:  time.Now,
		sent: make(map[string]struct{}),
	}
}

// Start schedules the sweep with a cron spec such as "@every 1m".
func (r *Reminders) Start(spec string) error {
	if spec == "" {
		spec = DefaultReminderSchedule
	}
	if _, err := r.cron.AddFunc(spec, func() { r.Sweep() }); err != nil {
		return fmt.Errorf("sandbox: reminder schedule %q: %w", spec, err)
	}
	r.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (r *Reminders) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep publishes reminders for due appointments and returns how many were
// sent. Each appointment is reminded at most once.
func (r *Reminders) Sweep() int {
	now := r.now()
	due := r.srv.store.Appointments(func(a scheduling.Appointment) bool {
		return a.IsUpcoming() && a.Date != nil && a.Date.After(now) && a.Date.Sub(now) <= ReminderLead
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range due {
		if _, done := r.sent[a.ID]; done {
			continue
		}
		r.sent[a.ID] = struct{}{}
		topics := []string{websocket.PatientTopic(a.PatientID)}
		if a.DoctorID != "" {
			topics = append(topics, websocket.DoctorTopic(a.DoctorID))
		}
		r.srv.publish(EventAppointmentReminder, websocket.ResourceAppointment, a.ID, a, topics...)
		n++
	}
	if n > 0 {
		r.srv.logger.Info().Int("count", n).Msg("appointment reminders sent")
	}
	return n
}
