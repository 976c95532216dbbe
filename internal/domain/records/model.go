package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrNoOwner  = errors.New("records: owner id is required")
)

// HealthRecord is the canonical record. Both backend shapes (legacy flat and
// clinical) are normalized into it when they enter the package.
type HealthRecord struct {
	ID      string     `json:"id"`
	OwnerID string     `json:"ownerId,omitempty"`
	Type    string     `json:"type"`
	Value   string     `json:"value,omitempty"`
	Unit    string     `json:"unit,omitempty"`
	Notes   string     `json:"notes,omitempty"`
	Date    *time.Time `json:"date,omitempty"`

	HeartRate   *float64 `json:"heartRate,omitempty"`
	SystolicBp  *float64 `json:"systolicBp,omitempty"`
	DiastolicBp *float64 `json:"diastolicBp,omitempty"`

	Diagnosis         string `json:"diagnosis,omitempty"`
	DoctorName        string `json:"doctorName,omitempty"`
	Prescription      string `json:"prescription,omitempty"`
	TestResults       string `json:"testResults,omitempty"`
	DoctorSuggestions string `json:"doctorSuggestions,omitempty"`

	// Clinical is set when the record arrived in the clinical shape.
	Clinical bool `json:"clinical,omitempty"`
}

// HasDate reports whether the record carries a parseable date.
func (r HealthRecord) HasDate() bool { return r.Date != nil && !r.Date.IsZero() }

// NumericValue returns the record's value as a number: the structured metric
// for its type when present, otherwise the leading numeric prefix of Value.
func (r HealthRecord) NumericValue() (float64, bool) {
	switch r.Type {
	case healthmodels.RecordTypeHeartRate:
		if r.HeartRate != nil {
			return *r.HeartRate, true
		}
	case healthmodels.RecordTypeBloodPressure:
		if r.SystolicBp != nil {
			return *r.SystolicBp, true
		}
	}
	return LeadingFloat(r.Value)
}

// HeartRateValue is the heart rate carried by the record, either as the
// clinical field or as the value of a heart_rate record.
func (r HealthRecord) HeartRateValue() (float64, bool) {
	if r.HeartRate != nil && *r.HeartRate != 0 {
		return *r.HeartRate, true
	}
	if r.Type == healthmodels.RecordTypeHeartRate {
		if v, ok := LeadingFloat(r.Value); ok && v != 0 {
			return v, true
		}
	}
	return 0, false
}

// BloodPressure returns systolic and diastolic when both are present.
func (r HealthRecord) BloodPressure() (float64, float64, bool) {
	if r.SystolicBp == nil || r.DiastolicBp == nil || *r.SystolicBp == 0 || *r.DiastolicBp == 0 {
		return 0, 0, false
	}
	return *r.SystolicBp, *r.DiastolicBp, true
}

// DisplayValue formats the value for tables.
func (r HealthRecord) DisplayValue() string {
	if r.Type == healthmodels.RecordTypeBloodPressure {
		if sys, dia, ok := r.BloodPressure(); ok {
			return formatNumber(sys) + "/" + formatNumber(dia)
		}
	}
	if r.Value != "" {
		return r.Value
	}
	if hr, ok := r.HeartRateValue(); ok {
		return formatNumber(hr)
	}
	return r.Diagnosis
}

var leadingFloatRe = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// LeadingFloat parses the numeric prefix of s ("72 bpm" is 72, "120/80" is
// 120). It reports false when s does not start with a number.
func LeadingFloat(s string) (float64, bool) {
	m := leadingFloatRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// wireRecord is the union of the legacy and clinical record shapes.
type wireRecord struct {
	ID        healthmodels.FlexString `json:"id"`
	UserID    healthmodels.FlexString `json:"userId"`
	PatientID healthmodels.FlexString `json:"patientId"`

	Type       string          `json:"type"`
	RecordType string          `json:"recordType"`
	Value      json.RawMessage `json:"value"`
	Unit       string          `json:"unit"`
	Notes      string          `json:"notes"`
	Symptoms   string          `json:"symptoms"`

	Date       json.RawMessage `json:"date"`
	RecordDate json.RawMessage `json:"recordDate"`
	CreatedAt  json.RawMessage `json:"createdAt"`

	HeartRate   healthmodels.FlexFloat `json:"heartRate"`
	SystolicBp  healthmodels.FlexFloat `json:"systolicBp"`
	DiastolicBp healthmodels.FlexFloat `json:"diastolicBp"`

	Diagnosis         *string `json:"diagnosis"`
	DoctorName        *string `json:"doctorName"`
	Prescription      string  `json:"prescription"`
	TestResults       string  `json:"testResults"`
	DoctorSuggestions string  `json:"doctorSuggestions"`
}

func (w wireRecord) normalize() HealthRecord {
	r := HealthRecord{
		ID:                string(w.ID),
		OwnerID:           healthmodels.FirstNonEmpty(string(w.PatientID), string(w.UserID)),
		Type:              NormalizeType(healthmodels.FirstNonEmpty(w.RecordType, w.Type)),
		Unit:              w.Unit,
		Notes:             healthmodels.FirstNonEmpty(w.Symptoms, w.Notes),
		HeartRate:         w.HeartRate.Value,
		SystolicBp:        w.SystolicBp.Value,
		DiastolicBp:       w.DiastolicBp.Value,
		Prescription:      w.Prescription,
		TestResults:       w.TestResults,
		DoctorSuggestions: w.DoctorSuggestions,
	}
	if w.Diagnosis != nil {
		r.Diagnosis = *w.Diagnosis
	}
	if w.DoctorName != nil {
		r.DoctorName = *w.DoctorName
	}
	r.Clinical = w.RecordType != "" || w.Diagnosis != nil || w.DoctorName != nil || len(w.RecordDate) > 0

	for _, raw := range []json.RawMessage{w.RecordDate, w.Date, w.CreatedAt} {
		if t, ok := healthmodels.DecodeDate(raw); ok {
			r.Date = &t
			break
		}
	}

	r.Value = decodeValue(w.Value, &r)
	return r
}

// decodeValue flattens the value field to text. An object with systolic and
// diastolic keys is lifted into the structured blood pressure fields.
func decodeValue(raw json.RawMessage, r *HealthRecord) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	case '{':
		var bp struct {
			Systolic  healthmodels.FlexFloat `json:"systolic"`
			Diastolic healthmodels.FlexFloat `json:"diastolic"`
		}
		if json.Unmarshal(raw, &bp) == nil && bp.Systolic.Value != nil && bp.Diastolic.Value != nil {
			if r.SystolicBp == nil {
				r.SystolicBp = bp.Systolic.Value
			}
			if r.DiastolicBp == nil {
				r.DiastolicBp = bp.Diastolic.Value
			}
			return formatNumber(*bp.Systolic.Value) + "/" + formatNumber(*bp.Diastolic.Value)
		}
		return string(raw)
	case 't', 'f':
		return ""
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return string(raw)
}

// NormalizeType lower-cases and trims a record type code.
func NormalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// DecodeRecords normalizes a JSON array of records in either shape. A body
// that is not an array yields no records. Elements that fail to decode are
// skipped.
func DecodeRecords(data []byte) []HealthRecord {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return []HealthRecord{}
	}
	out := make([]HealthRecord, 0, len(items))
	for _, item := range items {
		var w wireRecord
		if err := json.Unmarshal(item, &w); err != nil {
			continue
		}
		out = append(out, w.normalize())
	}
	return out
}

// DecodeRecord normalizes a single record object.
func DecodeRecord(data []byte) (*HealthRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	r := w.normalize()
	return &r, nil
}

// NewRecord is the input for creating a record. Setting any clinical field
// selects the clinical endpoint.
type NewRecord struct {
	Type  string
	Value string
	Unit  string
	Notes string
	Date  *time.Time

	HeartRate   *float64
	SystolicBp  *float64
	DiastolicBp *float64

	Diagnosis    string
	DoctorName   string
	Prescription string
	TestResults  string
}

// IsClinical reports whether the input carries metrics or clinical fields.
func (n NewRecord) IsClinical() bool {
	return n.HeartRate != nil || n.SystolicBp != nil || n.DiastolicBp != nil ||
		n.Diagnosis != "" || n.DoctorName != "" || n.Prescription != "" || n.TestResults != ""
}

// Update is a partial record change. Nil fields are left untouched.
type Update struct {
	Type  *string    `json:"type,omitempty"`
	Value *string    `json:"value,omitempty"`
	Unit  *string    `json:"unit,omitempty"`
	Notes *string    `json:"notes,omitempty"`
	Date  *time.Time `json:"date,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Type == nil && u.Value == nil && u.Unit == nil && u.Notes == nil && u.Date == nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
