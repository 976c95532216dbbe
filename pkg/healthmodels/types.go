package healthmodels

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Role values issued by the backend.
const (
	RolePatient = "PATIENT"
	RoleDoctor  = "DOCTOR"
)

// Appointment status values.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Record type codes used by both client variants.
const (
	RecordTypeHeartRate     = "heart_rate"
	RecordTypeBloodPressure = "blood_pressure"
	RecordTypeWeight        = "weight"
	RecordTypeBloodSugar    = "blood_sugar"
	RecordTypeTemperature   = "temperature"
)

// Role is a user role compared case-insensitively.
type Role string

// ParseRole normalizes a role string. Anything other than DOCTOR is a patient.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), RoleDoctor) {
		return RoleDoctor
	}
	return RolePatient
}

// IsDoctor reports whether r is the doctor role.
func (r Role) IsDoctor() bool { return ParseRole(string(r)) == RoleDoctor }

// UserSummary is the identity record issued by the backend on login.
type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

// UnmarshalJSON accepts the field aliases the backend has used over time:
// username/name for displayName and userType for role.
func (u *UserSummary) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          FlexString `json:"id"`
		DisplayName string     `json:"displayName"`
		Username    string     `json:"username"`
		Name        string     `json:"name"`
		Email       string     `json:"email"`
		Role        string     `json:"role"`
		UserType    string     `json:"userType"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.ID = string(raw.ID)
	u.DisplayName = FirstNonEmpty(raw.DisplayName, raw.Username, raw.Name)
	u.Email = raw.Email
	u.Role = ParseRole(FirstNonEmpty(raw.UserType, raw.Role))
	return nil
}

// FlexString decodes a JSON string or number into its string form. Backends
// disagree on whether ids are numeric.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// FlexFloat decodes a JSON number or numeric string. Empty strings and
// unparseable text decode to nil without error.
type FlexFloat struct {
	Value *float64
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	f.Value = nil
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			f.Value = &v
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	f.Value = &v
	return nil
}

// FirstNonEmpty returns the first argument that is not blank.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
