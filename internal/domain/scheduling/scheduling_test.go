package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthtrack/healthtrack/internal/platform/gateway"
	"github.com/healthtrack/healthtrack/internal/platform/session"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{"PENDING", "CONFIRMED", true},
		{"pending", "completed", true},
		{"", "CANCELLED", true},
		{"CONFIRMED", "COMPLETED", true},
		{"CONFIRMED", "CANCELLED", true},
		{"CONFIRMED", "PENDING", false},
		{"COMPLETED", "CANCELLED", false},
		{"CANCELLED", "CONFIRMED", false},
		{"PENDING", "PENDING", false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if !IsTerminal("completed") || !IsTerminal("CANCELLED") || IsTerminal("PENDING") {
		t.Error("unexpected terminal states")
	}
}

func TestDecodeAppointments(t *testing.T) {
	body := `[
		{"id":1,"patientId":4,"patientName":"Ann","doctorId":"d1","reason":"","appointmentDate":"2024-05-01T10:00:00","status":"confirmed"},
		{"id":"2","patient":{"id":5,"username":"Bob","email":"bob@x.io"},"appointment_date":"2024-05-02","note":"rest"},
		{"id":"3","datetime":[2024,5,3,9,30],"status":"COMPLETED","updatedAt":"2024-05-04T00:00:00Z"}
	]`
	appts := DecodeAppointments([]byte(body))
	if len(appts) != 3 {
		t.Fatalf("expected 3, got %d", len(appts))
	}
	if appts[0].ID != "1" || appts[0].PatientID != "4" || appts[0].Status != "CONFIRMED" || appts[0].ReasonOrDefault() != "General Checkup" {
		t.Errorf("unexpected first appointment %+v", appts[0])
	}
	if appts[1].PatientName != "Bob" || appts[1].PatientID != "5" || appts[1].Status != "PENDING" || appts[1].Suggestion != "rest" {
		t.Errorf("nested patient not lifted: %+v", appts[1])
	}
	if appts[1].Date == nil || appts[1].Date.Day() != 2 {
		t.Errorf("expected appointment_date fallback, got %v", appts[1].Date)
	}
	if appts[2].Date.Hour() != 9 || appts[2].UpdatedAt == nil || appts[2].PatientDisplay() != "Unknown Patient" {
		t.Errorf("unexpected third appointment %+v", appts[2])
	}
}

func day(d int) *time.Time {
	t := time.Date(2024, 6, d, 9, 0, 0, 0, time.UTC)
	return &t
}

func TestFilter(t *testing.T) {
	appts := []Appointment{
		{ID: "a", PatientName: "Ann Lee", Status: "PENDING", Date: day(5)},
		{ID: "b", PatientName: "Bob", Status: "CONFIRMED", Date: day(3)},
		{ID: "c", PatientName: "ann smith", Status: "COMPLETED", Date: day(1), UpdatedAt: day(10)},
		{ID: "d", PatientName: "Cat", Status: "CANCELLED", Date: day(2)},
		{ID: "e", PatientName: "Dan", Status: "COMPLETED", Date: day(4)},
		{ID: "f", PatientName: "Eve", Status: "PENDING"},
	}

	tests := []struct {
		view   View
		search string
		want   string
	}{
		{ViewAll, "", "c,d,b,e,a,f"},
		{ViewUpcoming, "", "b,a,f"},
		{ViewPending, "", "d,b,a,f"},
		{ViewCompleted, "", "c,e"},
		{ViewCompleted, "ANN", "c"},
		{"cancelled", "", "d"},
		{ViewAll, "ann", "c,a"},
	}
	for _, tt := range tests {
		got := Filter(appts, tt.view, tt.search)
		ids := make([]string, len(got))
		for i, a := range got {
			ids[i] = a.ID
		}
		if strings.Join(ids, ",") != tt.want {
			t.Errorf("view %q search %q: expected %s, got %s", tt.view, tt.search, tt.want, strings.Join(ids, ","))
		}
	}
}

func TestDoctorStats(t *testing.T) {
	s := DoctorStats([]Appointment{
		{PatientID: "1", Status: "PENDING"},
		{PatientID: "1", Status: "CONFIRMED"},
		{PatientID: "2", Status: "COMPLETED"},
		{PatientName: "Walk In", Status: "CANCELLED"},
	})
	want := Stats{Total: 4, Pending: 1, Confirmed: 1, Completed: 1, Cancelled: 1, Upcoming: 2, Patients: 3}
	if s != want {
		t.Errorf("expected %+v, got %+v", want, s)
	}
}

type recorded struct {
	method, path string
	body         map[string]string
}

func newTestService(t *testing.T, status string) (*Service, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := recorded{method: r.Method, path: r.URL.Path}
		json.NewDecoder(r.Body).Decode(&c.body)
		calls = append(calls, c)
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/doctor/appointments/"):
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "7", "status": status, "patientId": "1"})
		case r.URL.Path == "/appointments/7/complete":
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "7", "status": "COMPLETED", "suggestion": c.body["suggestion"]})
		case r.Method == http.MethodPost && r.URL.Path == "/appointments":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "9", "status": "PENDING", "reason": c.body["reason"]})
		case r.URL.Path == "/appointments/patient/1":
			w.Write([]byte(`[{"id":"1","status":"PENDING"}]`))
		case r.URL.Path == "/appointments/doctor/all-appointments":
			w.Write([]byte(`[{"id":"1"},{"id":"2"}]`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)
	gw := gateway.New(gateway.Config{BaseURL: srv.URL}, session.NewMemoryStore(), zerolog.Nop())
	return NewService(NewClient(gw), zerolog.Nop()), &calls
}

func TestTransition_ValidatesBeforeNetwork(t *testing.T) {
	svc, calls := newTestService(t, "COMPLETED")
	_, err := svc.Transition(context.Background(), Appointment{ID: "7", Status: "COMPLETED"}, "CANCELLED", "", "")
	if !gateway.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if len(*calls) != 0 {
		t.Errorf("expected no requests, got %d", len(*calls))
	}
}

func TestTransition_CompleteAndCancel(t *testing.T) {
	svc, calls := newTestService(t, "PENDING")
	ctx := context.Background()

	a, err := svc.TransitionByID(ctx, "7", "completed", "drink water", "d1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if a.Status != healthmodels.StatusCompleted || a.Suggestion != "drink water" {
		t.Errorf("unexpected result %+v", a)
	}
	last := (*calls)[len(*calls)-1]
	if last.method != http.MethodPost || last.body["doctorId"] != "d1" {
		t.Errorf("unexpected complete call %+v", last)
	}

	a, err = svc.Cancel(ctx, Appointment{ID: "8", Status: "CONFIRMED"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if a.Status != healthmodels.StatusCancelled {
		t.Errorf("expected local status update on empty response, got %+v", a)
	}
	last = (*calls)[len(*calls)-1]
	if last.method != http.MethodPatch || last.path != "/appointments/8" || last.body["status"] != "CANCELLED" {
		t.Errorf("unexpected cancel call %+v", last)
	}
}

func TestBook(t *testing.T) {
	svc, calls := newTestService(t, "PENDING")
	ctx := context.Background()

	if _, err := svc.Book(ctx, Booking{PatientID: "1"}); !gateway.IsValidation(err) {
		t.Errorf("expected validation error for missing date, got %v", err)
	}
	if _, err := svc.Book(ctx, Booking{PatientID: "1", Date: time.Now().Add(-48 * time.Hour)}); !gateway.IsValidation(err) {
		t.Errorf("expected validation error for past date, got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("validation must not reach the network")
	}

	a, err := svc.Book(ctx, Booking{PatientID: "1", Reason: " Checkup ", Date: time.Now().Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if a.ID != "9" || a.Reason != "Checkup" {
		t.Errorf("unexpected booking %+v", a)
	}
}

func TestListFor(t *testing.T) {
	svc, _ := newTestService(t, "PENDING")
	ctx := context.Background()

	mine, err := svc.ListFor(ctx, &healthmodels.UserSummary{ID: "1", Role: healthmodels.RolePatient})
	if err != nil || len(mine) != 1 {
		t.Errorf("patient list: %v %v", mine, err)
	}
	all, err := svc.ListFor(ctx, &healthmodels.UserSummary{ID: "d", Role: healthmodels.RoleDoctor})
	if err != nil || len(all) != 2 {
		t.Errorf("doctor list: %v %v", all, err)
	}
	if _, err := svc.ListFor(ctx, nil); err != gateway.ErrNotAuthenticated {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}
