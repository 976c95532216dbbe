package sandbox

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthtrack/healthtrack/internal/domain/scheduling"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/internal/platform/websocket"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
	"github.com/healthtrack/healthtrack/pkg/pagination"
)

func (s *Server) registerAppointmentRoutes(g *echo.Group) {
	doctor := auth.RequireRole(healthmodels.RoleDoctor)

	g.GET("/appointments", s.searchAppointments)
	g.POST("/appointments", s.createAppointment)
	// Static segments take precedence over :id in echo's router.
	g.GET("/appointments/doctor/all-appointments", s.listAllAppointments, doctor)
	g.GET("/appointments/doctor/:id", s.listDoctorAppointments, doctor)
	g.GET("/appointments/patient/:id", s.listPatientAppointments, auth.RequireSelfOrRole("id", healthmodels.RoleDoctor))
	g.PATCH("/appointments/:id", s.setAppointmentStatus)
	g.POST("/appointments/:id/suggestion", s.saveAppointmentSuggestion, doctor)
	g.POST("/appointments/:id/complete", s.completeAppointment, doctor)

	g.GET("/doctor/appointments/:id", s.getAppointment)
	g.PUT("/doctor/appointments/:id/notes", s.addAppointmentNotes, doctor)
}

// searchAppointments filters by the status, patientId and doctorId query
// parameters. Patients only ever see their own appointments.
func (s *Server) searchAppointments(c echo.Context) error {
	id, isDoctor := caller(c)
	status := c.QueryParam("status")
	patientID := c.QueryParam("patientId")
	doctorID := c.QueryParam("doctorId")
	if !isDoctor {
		patientID = id
	}
	list := s.store.Appointments(func(a scheduling.Appointment) bool {
		if status != "" && a.Status != scheduling.NormalizeStatus(status) {
			return false
		}
		if patientID != "" && a.PatientID != patientID {
			return false
		}
		return doctorID == "" || a.DoctorID == doctorID
	})
	return c.JSON(http.StatusOK, pagination.Apply(c, list))
}

func (s *Server) listAllAppointments(c echo.Context) error {
	return c.JSON(http.StatusOK, pagination.Apply(c, s.store.Appointments(nil)))
}

func (s *Server) listDoctorAppointments(c echo.Context) error {
	doctorID := c.Param("id")
	list := s.store.Appointments(func(a scheduling.Appointment) bool {
		return a.DoctorID == doctorID || a.DoctorID == ""
	})
	return c.JSON(http.StatusOK, pagination.Apply(c, list))
}

func (s *Server) listPatientAppointments(c echo.Context) error {
	patientID := c.Param("id")
	list := s.store.Appointments(func(a scheduling.Appointment) bool {
		return a.PatientID == patientID
	})
	return c.JSON(http.StatusOK, pagination.Apply(c, list))
}

func (s *Server) createAppointment(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	in, err := scheduling.DecodeAppointment(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	id, isDoctor := caller(c)
	switch {
	case in.PatientID == "" && !isDoctor:
		in.PatientID = id
	case in.PatientID == "":
		return echo.NewHTTPError(http.StatusBadRequest, "Patient is required")
	case !isDoctor && in.PatientID != id:
		return errAccessDenied
	}
	if in.Date == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Appointment date is required")
	}
	if _, err := s.store.User(in.PatientID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	}
	if in.DoctorID == "" && isDoctor {
		in.DoctorID = id
	}

	saved := s.store.AddAppointment(scheduling.Appointment{
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Reason:    strings.TrimSpace(in.Reason),
		Date:      in.Date,
		Status:    healthmodels.StatusPending,
	})
	s.publishAppointment(websocket.EventAppointmentCreated, saved)
	return c.JSON(http.StatusCreated, saved)
}

// loadAppointment fetches :id and checks the caller is a doctor or the
// appointment's patient.
func (s *Server) loadAppointment(c echo.Context) (scheduling.Appointment, error) {
	a, err := s.store.Appointment(c.Param("id"))
	if err != nil {
		return a, echo.NewHTTPError(http.StatusNotFound, "Appointment not found")
	}
	if !canAccess(c, a.PatientID) {
		return a, errAccessDenied
	}
	return a, nil
}

func (s *Server) getAppointment(c echo.Context) error {
	a, err := s.loadAppointment(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status string `json:"status"`
}

// setAppointmentStatus applies a status change. Patients may only cancel.
func (s *Server) setAppointmentStatus(c echo.Context) error {
	if _, err := s.loadAppointment(c); err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	to := scheduling.NormalizeStatus(req.Status)
	if _, isDoctor := caller(c); !isDoctor && to != healthmodels.StatusCancelled {
		return errAccessDenied
	}
	return s.mutateAppointment(c, func(a *scheduling.Appointment) error {
		if err := scheduling.CheckTransition(a.Status, to); err != nil {
			return err
		}
		a.Status = to
		return nil
	})
}

type completeRequest struct {
	Suggestion string                  `json:"suggestion"`
	DoctorID   healthmodels.FlexString `json:"doctorId"`
}

func (s *Server) completeAppointment(c echo.Context) error {
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	id, _ := caller(c)
	doctorID := healthmodels.FirstNonEmpty(string(req.DoctorID), id)
	return s.mutateAppointment(c, func(a *scheduling.Appointment) error {
		if err := scheduling.CheckTransition(a.Status, healthmodels.StatusCompleted); err != nil {
			return err
		}
		a.Status = healthmodels.StatusCompleted
		if strings.TrimSpace(req.Suggestion) != "" {
			a.Suggestion = strings.TrimSpace(req.Suggestion)
		}
		if a.DoctorID == "" {
			a.DoctorID = doctorID
		}
		return nil
	})
}

type noteRequest struct {
	Note string `json:"note"`
}

func (s *Server) saveAppointmentSuggestion(c echo.Context) error {
	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Note) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Suggestion is required")
	}
	return s.mutateAppointment(c, func(a *scheduling.Appointment) error {
		a.Suggestion = strings.TrimSpace(req.Note)
		return nil
	})
}

type notesRequest struct {
	DoctorNotes string `json:"doctorNotes"`
	Status      string `json:"status"`
}

func (s *Server) addAppointmentNotes(c echo.Context) error {
	var req notesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	return s.mutateAppointment(c, func(a *scheduling.Appointment) error {
		if req.Status != "" {
			to := scheduling.NormalizeStatus(req.Status)
			if to != a.Status {
				if err := scheduling.CheckTransition(a.Status, to); err != nil {
					return err
				}
				a.Status = to
			}
		}
		a.DoctorNotes = req.DoctorNotes
		return nil
	})
}

// mutateAppointment applies fn to :id, maps a rejected transition to 400 and
// publishes the result.
func (s *Server) mutateAppointment(c echo.Context, fn func(*scheduling.Appointment) error) error {
	updated, err := s.store.UpdateAppointment(c.Param("id"), fn)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Appointment not found")
	case errors.Is(err, scheduling.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}
	s.publishAppointment(websocket.EventAppointmentUpdated, updated)
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) publishAppointment(eventType string, a scheduling.Appointment) {
	topics := []string{websocket.TopicAppointments, websocket.PatientTopic(a.PatientID)}
	if a.DoctorID != "" {
		topics = append(topics, websocket.DoctorTopic(a.DoctorID))
	}
	s.publish(eventType, websocket.ResourceAppointment, a.ID, a, topics...)
}
