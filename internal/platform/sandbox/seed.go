package sandbox

import (
	"fmt"
	"time"

	"github.com/healthtrack/healthtrack/internal/domain/records"
	"github.com/healthtrack/healthtrack/internal/domain/scheduling"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

// Demo accounts created by Seed.
var DemoUsers = []NewUser{
	{Username: "Dr. Sarah Wilson", Email: "doctor@healthtrack.com", Password: "Doctor@123", Role: healthmodels.RoleDoctor, Age: 45, Gender: "female", Contact: "+15550100001"},
	{Username: "Alex Patient", Email: "patient@healthtrack.com", Password: "Patient@123", Role: healthmodels.RolePatient, Age: 34, Gender: "male", Contact: "+15550100002"},
	{Username: "John Doe", Email: "john@example.com", Password: "password123", Role: healthmodels.RolePatient, Age: 29, Gender: "male", Contact: "+15550100003"},
}

// Seed loads the demo accounts with a few records and appointments dated
// relative to now.
func Seed(s *Store, now time.Time) error {
	users := make([]*User, 0, len(DemoUsers))
	for _, in := range DemoUsers {
		u, err := s.CreateUser(in)
		if err != nil {
			return fmt.Errorf("sandbox: seed user %s: %w", in.Email, err)
		}
		users = append(users, u)
	}
	doctor, patient, john := users[0], users[1], users[2]

	day := func(offset int) *time.Time {
		t := now.UTC().AddDate(0, 0, offset).Truncate(time.Hour)
		return &t
	}
	num := func(v float64) *float64 { return &v }

	for _, r := range []records.HealthRecord{
		{OwnerID: patient.ID, Type: healthmodels.RecordTypeHeartRate, Value: "72", Unit: "bpm", Date: day(-3), HeartRate: num(72), Clinical: true},
		{OwnerID: patient.ID, Type: healthmodels.RecordTypeHeartRate, Value: "78", Unit: "bpm", Date: day(-1), HeartRate: num(78), Clinical: true},
		{OwnerID: patient.ID, Type: healthmodels.RecordTypeBloodPressure, Value: "120/80", Unit: "mmHg", Date: day(-2), SystolicBp: num(120), DiastolicBp: num(80), Clinical: true},
		{OwnerID: patient.ID, Type: "checkup", Notes: "Mild headache", Diagnosis: "Tension headache", DoctorName: doctor.Username,
			Prescription: "Rest and hydration", Date: day(-7), Clinical: true, DoctorSuggestions: "Reduce screen time in the evening"},
		{OwnerID: john.ID, Type: healthmodels.RecordTypeWeight, Value: "70", Unit: "kg", Date: day(-5), Notes: "Morning weigh-in"},
		{OwnerID: john.ID, Type: healthmodels.RecordTypeBloodSugar, Value: "95", Unit: "mg/dL", Date: day(-4)},
	} {
		s.AddRecord(r)
	}

	for _, a := range []scheduling.Appointment{
		{PatientID: patient.ID, DoctorID: doctor.ID, Reason: "General Checkup", Date: day(1), Status: healthmodels.StatusPending},
		{PatientID: patient.ID, DoctorID: doctor.ID, Reason: "Follow-up", Date: day(-7), Status: healthmodels.StatusCompleted,
			DoctorNotes: "Recovered well", Suggestion: "Keep a sleep diary"},
		{PatientID: john.ID, DoctorID: doctor.ID, Reason: "Annual physical", Date: day(3), Status: healthmodels.StatusConfirmed},
	} {
		s.AddAppointment(a)
	}
	return nil
}
