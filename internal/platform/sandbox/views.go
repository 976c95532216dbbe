package sandbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/healthtrack/healthtrack/internal/domain/records"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

// legacyRecordView is the flat shape served by /users/:id/records.
type legacyRecordView struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	Type              string     `json:"type"`
	Value             string     `json:"value"`
	Unit              string     `json:"unit,omitempty"`
	Date              *time.Time `json:"date,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	DoctorSuggestions string     `json:"doctorSuggestions,omitempty"`
}

// clinicalRecordView is the shape served by the /patient/records routes.
type clinicalRecordView struct {
	ID                string     `json:"id"`
	PatientID         string     `json:"patientId"`
	RecordType        string     `json:"recordType"`
	RecordDate        *time.Time `json:"recordDate,omitempty"`
	Symptoms          string     `json:"symptoms,omitempty"`
	Diagnosis         string     `json:"diagnosis"`
	DoctorName        string     `json:"doctorName,omitempty"`
	Prescription      string     `json:"prescription,omitempty"`
	TestResults       string     `json:"testResults,omitempty"`
	DoctorSuggestions string     `json:"doctorSuggestions,omitempty"`
	HeartRate         *float64   `json:"heartRate,omitempty"`
	SystolicBp        *float64   `json:"systolicBp,omitempty"`
	DiastolicBp       *float64   `json:"diastolicBp,omitempty"`
	Type              string     `json:"type"`
	Value             string     `json:"value,omitempty"`
	Unit              string     `json:"unit,omitempty"`
}

// recordView renders r in the shape it was created with.
func recordView(r records.HealthRecord) interface{} {
	if !r.Clinical {
		return legacyRecordView{
			ID:                r.ID,
			UserID:            r.OwnerID,
			Type:              r.Type,
			Value:             r.DisplayValue(),
			Unit:              r.Unit,
			Date:              r.Date,
			Notes:             r.Notes,
			DoctorSuggestions: r.DoctorSuggestions,
		}
	}
	return clinicalRecordView{
		ID:                r.ID,
		PatientID:         r.OwnerID,
		RecordType:        r.Type,
		RecordDate:        r.Date,
		Symptoms:          r.Notes,
		Diagnosis:         r.Diagnosis,
		DoctorName:        r.DoctorName,
		Prescription:      r.Prescription,
		TestResults:       r.TestResults,
		DoctorSuggestions: r.DoctorSuggestions,
		HeartRate:         r.HeartRate,
		SystolicBp:        r.SystolicBp,
		DiastolicBp:       r.DiastolicBp,
		Type:              r.Type,
		Value:             r.Value,
		Unit:              r.Unit,
	}
}

func recordViews(recs []records.HealthRecord) []interface{} {
	out := make([]interface{}, len(recs))
	for i, r := range recs {
		out[i] = recordView(r)
	}
	return out
}

// liftPressure fills the structured pressure fields of a blood pressure
// record whose value is written as "120/80".
func liftPressure(r *records.HealthRecord) {
	if r.Type != healthmodels.RecordTypeBloodPressure || r.SystolicBp != nil {
		return
	}
	var sys, dia float64
	if n, _ := fmt.Sscanf(strings.TrimSpace(r.Value), "%g/%g", &sys, &dia); n == 2 {
		r.SystolicBp, r.DiastolicBp = &sys, &dia
	}
}
