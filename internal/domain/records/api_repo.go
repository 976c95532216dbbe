package records

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/healthtrack/healthtrack/internal/platform/gateway"
)

// Requester is the part of the gateway the API repository needs.
type Requester interface {
	Request(ctx context.Context, path string, opts gateway.Options) (*gateway.Result, error)
}

// APIRepository reads and writes records through the REST backend.
type APIRepository struct {
	api Requester
	now func() time.Time
}

func NewAPIRepository(api Requester) *APIRepository {
	return &APIRepository{api: api, now: time.Now}
}

func (r *APIRepository) List(ctx context.Context, ownerID string) ([]HealthRecord, error) {
	if ownerID == "" {
		return nil, ErrNoOwner
	}
	return r.list(ctx, "/patient/records/patient/"+url.PathEscape(ownerID))
}

// ListAll returns every patient's records. Doctor dashboards use it.
func (r *APIRepository) ListAll(ctx context.Context) ([]HealthRecord, error) {
	return r.list(ctx, "/patient/records/all")
}

// ListLegacy reads the flat-shape endpoint.
func (r *APIRepository) ListLegacy(ctx context.Context, ownerID string) ([]HealthRecord, error) {
	return r.list(ctx, "/users/"+url.PathEscape(ownerID)+"/records")
}

func (r *APIRepository) list(ctx context.Context, path string) ([]HealthRecord, error) {
	res, err := r.api.Request(ctx, path, gateway.Options{})
	if err != nil {
		return nil, err
	}
	if !res.IsJSON() {
		return []HealthRecord{}, nil
	}
	return DecodeRecords(res.Data), nil
}

func (r *APIRepository) Get(ctx context.Context, _ string, id string) (*HealthRecord, error) {
	res, err := r.api.Request(ctx, "/records/"+url.PathEscape(id), gateway.Options{})
	if err != nil {
		return nil, notFound(err, id)
	}
	if !res.IsJSON() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return DecodeRecord(res.Data)
}

func (r *APIRepository) Create(ctx context.Context, ownerID string, in NewRecord) (*HealthRecord, error) {
	if ownerID == "" {
		return nil, ErrNoOwner
	}
	date := r.now().UTC()
	if in.Date != nil {
		date = in.Date.UTC()
	}

	var path string
	var body map[string]interface{}
	if in.IsClinical() {
		path = "/patient/records"
		body = map[string]interface{}{
			"patientId":   ownerID,
			"recordType":  in.Type,
			"recordDate":  date.Format(time.RFC3339),
			"symptoms":    in.Notes,
			"diagnosis":   firstOr(in.Diagnosis, in.Value),
			"heartRate":   truncInt(in.HeartRate),
			"systolicBp":  truncInt(in.SystolicBp),
			"diastolicBp": truncInt(in.DiastolicBp),
			"type":        in.Type,
			"value":       in.Value,
			"unit":        in.Unit,
			"notes":       in.Notes,
		}
		if in.DoctorName != "" {
			body["doctorName"] = in.DoctorName
		}
		if in.Prescription != "" {
			body["prescription"] = in.Prescription
		}
		if in.TestResults != "" {
			body["testResults"] = in.TestResults
		}
	} else {
		path = "/users/" + url.PathEscape(ownerID) + "/records"
		body = map[string]interface{}{
			"type":  in.Type,
			"value": in.Value,
			"unit":  in.Unit,
			"date":  date.Format(time.RFC3339),
			"notes": in.Notes,
		}
	}

	res, err := r.api.Request(ctx, path, gateway.Options{Method: http.MethodPost, Body: body})
	if err != nil {
		return nil, err
	}
	if res.IsJSON() {
		if rec, err := DecodeRecord(res.Data); err == nil {
			return rec, nil
		}
	}
	rec := HealthRecord{
		OwnerID:     ownerID,
		Type:        NormalizeType(in.Type),
		Value:       in.Value,
		Unit:        in.Unit,
		Notes:       in.Notes,
		Date:        &date,
		HeartRate:   in.HeartRate,
		SystolicBp:  in.SystolicBp,
		DiastolicBp: in.DiastolicBp,
		Diagnosis:   in.Diagnosis,
		Clinical:    in.IsClinical(),
	}
	return &rec, nil
}

func (r *APIRepository) Update(ctx context.Context, _ string, id string, upd Update) (*HealthRecord, error) {
	res, err := r.api.Request(ctx, "/records/"+url.PathEscape(id), gateway.Options{Method: http.MethodPatch, Body: upd})
	if err != nil {
		return nil, notFound(err, id)
	}
	if !res.IsJSON() {
		return r.Get(ctx, "", id)
	}
	return DecodeRecord(res.Data)
}

func (r *APIRepository) Delete(ctx context.Context, _ string, id string) error {
	_, err := r.api.Request(ctx, "/records/"+url.PathEscape(id), gateway.Options{Method: http.MethodDelete})
	return notFound(err, id)
}

// AddSuggestion stores a doctor's suggestion on a record.
func (r *APIRepository) AddSuggestion(ctx context.Context, id, suggestion string) error {
	_, err := r.api.Request(ctx, "/doctor/patient/records/"+url.PathEscape(id)+"/suggestions", gateway.Options{
		Method: http.MethodPut,
		Body:   map[string]string{"doctorSuggestions": suggestion},
	})
	return err
}

func notFound(err error, id string) error {
	var rerr *gateway.RequestError
	if errors.As(err, &rerr) && rerr.IsNotFound() {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, id, err)
	}
	return err
}

func truncInt(v *float64) interface{} {
	if v == nil || *v == 0 {
		return nil
	}
	return int(*v)
}

func firstOr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
