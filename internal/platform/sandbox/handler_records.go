package sandbox

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthtrack/healthtrack/internal/domain/records"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/internal/platform/websocket"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
	"github.com/healthtrack/healthtrack/pkg/pagination"
)

func (s *Server) registerRecordRoutes(g *echo.Group) {
	self := auth.RequireSelfOrRole("id", healthmodels.RoleDoctor)
	doctor := auth.RequireRole(healthmodels.RoleDoctor)

	g.GET("/users/:id/records", s.listRecords, self)
	g.POST("/users/:id/records", s.createLegacyRecord, self)
	g.GET("/records/:id", s.getRecord)
	g.PATCH("/records/:id", s.updateRecord)
	g.DELETE("/records/:id", s.deleteRecord)

	g.POST("/patient/records", s.createClinicalRecord)
	g.GET("/patient/records/patient/:id", s.listRecords, self)
	g.GET("/patient/records/all", s.listAllRecords, doctor)
	g.PUT("/doctor/patient/records/:id/suggestions", s.addRecordSuggestion, doctor)
}

func (s *Server) listRecords(c echo.Context) error {
	recs := s.store.Records(c.Param("id"))
	return c.JSON(http.StatusOK, recordViews(pagination.Apply(c, recs)))
}

func (s *Server) listAllRecords(c echo.Context) error {
	recs := s.store.Records("")
	return c.JSON(http.StatusOK, recordViews(pagination.Apply(c, recs)))
}

// decodeRecordBody normalizes the request body through the same decoder the
// client uses, so both wire shapes are accepted on either endpoint.
func decodeRecordBody(c echo.Context) (*records.HealthRecord, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	rec, err := records.DecodeRecord(body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if rec.Type == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Record type is required")
	}
	return rec, nil
}

func (s *Server) createLegacyRecord(c echo.Context) error {
	rec, err := decodeRecordBody(c)
	if err != nil {
		return err
	}
	rec.OwnerID = c.Param("id")
	rec.Clinical = false
	return s.storeRecord(c, *rec)
}

func (s *Server) createClinicalRecord(c echo.Context) error {
	rec, err := decodeRecordBody(c)
	if err != nil {
		return err
	}
	if rec.OwnerID == "" {
		rec.OwnerID, _ = caller(c)
	}
	if !canAccess(c, rec.OwnerID) {
		return errAccessDenied
	}
	if _, err := s.store.User(rec.OwnerID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	}
	rec.Clinical = true
	if rec.HeartRate == nil && rec.Type == healthmodels.RecordTypeHeartRate {
		if v, ok := records.LeadingFloat(rec.Value); ok {
			rec.HeartRate = &v
		}
	}
	return s.storeRecord(c, *rec)
}

func (s *Server) storeRecord(c echo.Context, rec records.HealthRecord) error {
	rec.ID = ""
	liftPressure(&rec)
	saved := s.store.AddRecord(rec)
	view := recordView(saved)
	s.publish(websocket.EventRecordCreated, websocket.ResourceRecord, saved.ID, view, websocket.PatientTopic(saved.OwnerID))
	return c.JSON(http.StatusCreated, view)
}

// loadRecord fetches the record named by :id and checks the caller may
// touch it.
func (s *Server) loadRecord(c echo.Context) (records.HealthRecord, error) {
	rec, err := s.store.Record(c.Param("id"))
	if err != nil {
		return rec, echo.NewHTTPError(http.StatusNotFound, "Record not found")
	}
	if !canAccess(c, rec.OwnerID) {
		return rec, errAccessDenied
	}
	return rec, nil
}

func (s *Server) getRecord(c echo.Context) error {
	rec, err := s.loadRecord(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recordView(rec))
}

func (s *Server) updateRecord(c echo.Context) error {
	if _, err := s.loadRecord(c); err != nil {
		return err
	}
	var upd records.Update
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if upd.Empty() {
		return echo.NewHTTPError(http.StatusBadRequest, "No fields to update")
	}

	updated, err := s.store.UpdateRecord(c.Param("id"), func(r *records.HealthRecord) {
		if upd.Type != nil && strings.TrimSpace(*upd.Type) != "" {
			r.Type = records.NormalizeType(*upd.Type)
		}
		if upd.Value != nil {
			r.Value = *upd.Value
			switch r.Type {
			case healthmodels.RecordTypeBloodPressure:
				r.SystolicBp, r.DiastolicBp = nil, nil
				liftPressure(r)
			case healthmodels.RecordTypeHeartRate:
				if v, ok := records.LeadingFloat(r.Value); ok {
					r.HeartRate = &v
				}
			}
		}
		if upd.Unit != nil {
			r.Unit = *upd.Unit
		}
		if upd.Notes != nil {
			r.Notes = *upd.Notes
		}
		if upd.Date != nil {
			d := upd.Date.UTC()
			r.Date = &d
		}
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Record not found")
	}
	view := recordView(updated)
	s.publish(websocket.EventRecordUpdated, websocket.ResourceRecord, updated.ID, view, websocket.PatientTopic(updated.OwnerID))
	return c.JSON(http.StatusOK, view)
}

func (s *Server) deleteRecord(c echo.Context) error {
	if _, err := s.loadRecord(c); err != nil {
		return err
	}
	deleted, err := s.store.DeleteRecord(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Record not found")
	}
	s.publish(websocket.EventRecordDeleted, websocket.ResourceRecord, deleted.ID, nil, websocket.PatientTopic(deleted.OwnerID))
	return c.JSON(http.StatusOK, map[string]string{"message": "Record deleted"})
}

type suggestionRequest struct {
	DoctorSuggestions string `json:"doctorSuggestions"`
}

func (s *Server) addRecordSuggestion(c echo.Context) error {
	var req suggestionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.DoctorSuggestions) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Suggestion is required")
	}
	updated, err := s.store.UpdateRecord(c.Param("id"), func(r *records.HealthRecord) {
		r.DoctorSuggestions = strings.TrimSpace(req.DoctorSuggestions)
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Record not found")
	}
	view := recordView(updated)
	s.publish(websocket.EventRecordUpdated, websocket.ResourceRecord, updated.ID, view, websocket.PatientTopic(updated.OwnerID))
	return c.JSON(http.StatusOK, view)
}
