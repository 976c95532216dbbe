package reporting

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/healthtrack/healthtrack/internal/platform/gateway"
)

// Requester is the part of the gateway Remote needs.
type Requester interface {
	Request(ctx context.Context, path string, opts gateway.Options) (*gateway.Result, error)
}

// DefaultPeriodDays is the health-data window used when none is given.
const DefaultPeriodDays = 30

// Remote wraps the backend's per-patient report endpoints. Responses are
// passed through undecoded.
type Remote struct {
	api Requester
}

func NewRemote(api Requester) *Remote {
	return &Remote{api: api}
}

func (r *Remote) HealthSummary(ctx context.Context, patientID string) (json.RawMessage, error) {
	return r.get(ctx, patientID, "health-summary", nil)
}

// HealthData returns the patient's metrics over the last periodDays days.
func (r *Remote) HealthData(ctx context.Context, patientID string, periodDays int) (json.RawMessage, error) {
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	return r.get(ctx, patientID, "health-data", url.Values{"period": {strconv.Itoa(periodDays)}})
}

func (r *Remote) DoctorSuggestions(ctx context.Context, patientID string) (json.RawMessage, error) {
	return r.get(ctx, patientID, "doctor-suggestions", nil)
}

func (r *Remote) GenerateReport(ctx context.Context, patientID string) (json.RawMessage, error) {
	return r.get(ctx, patientID, "generate-report", nil)
}

func (r *Remote) get(ctx context.Context, patientID, endpoint string, q url.Values) (json.RawMessage, error) {
	if patientID == "" {
		return nil, gateway.NewValidationError("patientId", "Patient is required")
	}
	res, err := r.api.Request(ctx, "/patient/"+url.PathEscape(patientID)+"/"+endpoint, gateway.Options{Query: q})
	if err != nil {
		return nil, err
	}
	if !res.IsJSON() {
		return json.RawMessage("null"), nil
	}
	return res.Data, nil
}
