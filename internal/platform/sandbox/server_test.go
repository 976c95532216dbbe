package sandbox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthtrack/healthtrack/internal/domain/identity"
	"github.com/healthtrack/healthtrack/internal/domain/records"
	"github.com/healthtrack/healthtrack/internal/domain/scheduling"
	"github.com/healthtrack/healthtrack/internal/platform/gateway"
	"github.com/healthtrack/healthtrack/internal/platform/middleware"
	"github.com/healthtrack/healthtrack/internal/platform/reporting"
	"github.com/healthtrack/healthtrack/internal/platform/session"
	"github.com/healthtrack/healthtrack/internal/platform/websocket"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

// Seeded ids, in DemoUsers order.
const (
	doctorID  = "1"
	patientID = "2"
	johnID    = "3"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	cfg.SigningKey = []byte("sandbox-test-key")
	cfg.Seed = true
	srv, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)
	return srv, ts
}

func newGateway(ts *httptest.Server) *gateway.Gateway {
	return gateway.New(gateway.Config{BaseURL: ts.URL + "/api"}, session.NewMemoryStore(), zerolog.Nop())
}

func loginAs(t *testing.T, ts *httptest.Server, email, password string) *gateway.Gateway {
	t.Helper()
	gw := newGateway(ts)
	if _, err := identity.NewService(gw, zerolog.Nop()).Login(context.Background(), email, password, false); err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return gw
}

func statusOf(err error) int {
	var rerr *gateway.RequestError
	if errors.As(err, &rerr) {
		return rerr.Status
	}
	return 0
}

func TestLogin_RoutesByRole(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	ctx := context.Background()

	tests := []struct {
		email, password string
		want            identity.Destination
	}{
		{"doctor@healthtrack.com", "Doctor@123", identity.ToDoctorDashboard},
		{"Patient@HealthTrack.com", "Patient@123", identity.ToDashboard},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			gw := newGateway(ts)
			res, err := identity.NewService(gw, zerolog.Nop()).Login(ctx, tt.email, tt.password, false)
			if err != nil {
				t.Fatalf("login: %v", err)
			}
			if res.Next != tt.want {
				t.Errorf("expected %s, got %s", tt.want, res.Next)
			}
			if gw.Token(ctx) == "" {
				t.Error("expected token to be stored")
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	_, err := identity.NewService(newGateway(ts), zerolog.Nop()).Login(context.Background(), "doctor@healthtrack.com", "wrong", false)
	if statusOf(err) != http.StatusUnauthorized || err.Error() != "Invalid Credentials" {
		t.Fatalf("expected 401 Invalid Credentials, got %v", err)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	_, ts := newTestServer(t, Config{RateLimit: middleware.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2}})
	svc := identity.NewService(newGateway(ts), zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		svc.Login(ctx, "doctor@healthtrack.com", "wrong", false)
	}
	_, err := svc.Login(ctx, "doctor@healthtrack.com", "Doctor@123", false)
	if statusOf(err) != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %v", err)
	}
}

func TestRegister_ThenDuplicate(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	ctx := context.Background()
	reg := identity.Registration{
		Name:            "Jane Roe",
		Age:             41,
		Contact:         "555 010 0199",
		Email:           "jane@example.com",
		Password:        "secret123",
		ConfirmPassword: "secret123",
		Role:            "patient",
	}

	res, err := identity.NewService(newGateway(ts), zerolog.Nop()).Register(ctx, reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !res.AutoLoggedIn || res.User == nil || res.User.ID != "4" {
		t.Fatalf("expected auto-login as user 4, got %+v", res)
	}

	_, err = identity.NewService(newGateway(ts), zerolog.Nop()).Register(ctx, reg)
	if statusOf(err) != http.StatusConflict || err.Error() != "Email already exists" {
		t.Fatalf("expected 409 Email already exists, got %v", err)
	}
}

func TestRecords_Lifecycle(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	gw := loginAs(t, ts, "john@example.com", "password123")
	repo := records.NewAPIRepository(gw)
	ctx := context.Background()

	legacy, err := repo.Create(ctx, johnID, records.NewRecord{Type: "Temperature", Value: "36.9", Unit: "C"})
	if err != nil {
		t.Fatalf("create legacy: %v", err)
	}
	if legacy.Clinical || legacy.Type != healthmodels.RecordTypeTemperature || legacy.ID == "" {
		t.Fatalf("unexpected legacy record %+v", legacy)
	}

	hr := 81.0
	clinical, err := repo.Create(ctx, johnID, records.NewRecord{Type: "heart_rate", Value: "81", Unit: "bpm", HeartRate: &hr})
	if err != nil {
		t.Fatalf("create clinical: %v", err)
	}
	if !clinical.Clinical || clinical.HeartRate == nil || *clinical.HeartRate != 81 {
		t.Fatalf("unexpected clinical record %+v", clinical)
	}

	list, err := repo.List(ctx, johnID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("expected 2 seeded + 2 new records, got %d", len(list))
	}
	for _, r := range list {
		if r.OwnerID != johnID {
			t.Errorf("foreign record in list: %+v", r)
		}
	}

	value := "37.4"
	updated, err := repo.Update(ctx, johnID, legacy.ID, records.Update{Value: &value})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Value != "37.4" || updated.Unit != "C" {
		t.Errorf("update did not apply: %+v", updated)
	}

	if err := repo.Delete(ctx, johnID, legacy.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, johnID, legacy.ID); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := srv.Store().Record(clinical.ID); err != nil {
		t.Errorf("clinical record should still exist: %v", err)
	}
}

func TestRecords_LegacyBloodPressure(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	repo := records.NewAPIRepository(loginAs(t, ts, "john@example.com", "password123"))
	ctx := context.Background()

	created, err := repo.Create(ctx, johnID, records.NewRecord{Type: "blood_pressure", Value: "130/85", Unit: "mmHg"})
	if err != nil {
		t.Fatal(err)
	}
	stored, err := srv.Store().Record(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sys, dia, ok := stored.BloodPressure(); !ok || sys != 130 || dia != 85 {
		t.Errorf("expected stored pressure 130/85, got %v/%v", sys, dia)
	}

	list, err := repo.ListLegacy(ctx, johnID)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range list {
		if r.ID == created.ID {
			found = true
			if r.Clinical || r.DisplayValue() != "130/85" {
				t.Errorf("expected flat record 130/85, got %+v", r)
			}
		}
	}
	if !found {
		t.Fatal("created record missing from legacy list")
	}
}

func TestRecords_AccessControl(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	ctx := context.Background()

	john := records.NewAPIRepository(loginAs(t, ts, "john@example.com", "password123"))
	if _, err := john.List(ctx, patientID); statusOf(err) != http.StatusForbidden {
		t.Fatalf("expected 403 for another patient's records, got %v", err)
	}
	if _, err := john.ListAll(ctx); statusOf(err) != http.StatusForbidden {
		t.Fatalf("expected 403 for the doctor-only list, got %v", err)
	}

	doctor := records.NewAPIRepository(loginAs(t, ts, "doctor@healthtrack.com", "Doctor@123"))
	all, err := doctor.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 {
		t.Fatalf("expected 6 seeded records, got %d", len(all))
	}
	if err := doctor.AddSuggestion(ctx, all[0].ID, "Walk 30 minutes a day"); err != nil {
		t.Fatalf("add suggestion: %v", err)
	}

	if _, err := records.NewAPIRepository(newGateway(ts)).List(ctx, patientID); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %v", err)
	}
}

func TestAppointments_Lifecycle(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	ctx := context.Background()

	patientGW := loginAs(t, ts, "patient@healthtrack.com", "Patient@123")
	patientSvc := scheduling.NewService(scheduling.NewClient(patientGW), zerolog.Nop())
	booked, err := patientSvc.Book(ctx, scheduling.Booking{
		PatientID: patientID,
		DoctorID:  doctorID,
		Reason:    "  Back pain ",
		Date:      time.Now().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if booked.Status != healthmodels.StatusPending || booked.Reason != "Back pain" || booked.DoctorName != "Dr. Sarah Wilson" {
		t.Fatalf("unexpected booking %+v", booked)
	}

	u, _ := patientGW.CurrentUser(ctx)
	mine, err := patientSvc.ListFor(ctx, u)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 3 {
		t.Fatalf("expected 2 seeded + 1 booked appointments, got %d", len(mine))
	}

	doctorSvc := scheduling.NewService(scheduling.NewClient(loginAs(t, ts, "doctor@healthtrack.com", "Doctor@123")), zerolog.Nop())
	done, err := doctorSvc.TransitionByID(ctx, booked.ID, healthmodels.StatusCompleted, "Stretch daily", doctorID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != healthmodels.StatusCompleted || done.Suggestion != "Stretch daily" {
		t.Fatalf("unexpected completed appointment %+v", done)
	}

	if _, err := patientSvc.Cancel(ctx, *done); !gateway.IsValidation(err) {
		t.Fatalf("expected client-side validation error cancelling a completed visit, got %v", err)
	}
	_, err = patientSvc.Client().SetStatus(ctx, booked.ID, healthmodels.StatusCancelled)
	if statusOf(err) != http.StatusBadRequest || !strings.Contains(err.Error(), "COMPLETED -> CANCELLED") {
		t.Fatalf("expected server to refuse the transition, got %v", err)
	}

	all, err := doctorSvc.Client().ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	stats := scheduling.DoctorStats(all)
	if stats.Total != 4 || stats.Completed != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestAppointments_PatientCannotComplete(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	ctx := context.Background()
	client := scheduling.NewClient(loginAs(t, ts, "john@example.com", "password123"))

	mine, err := client.ListForPatient(ctx, johnID)
	if err != nil || len(mine) != 1 {
		t.Fatalf("expected john's seeded appointment, got %v %v", mine, err)
	}
	if _, err := client.Complete(ctx, mine[0].ID, "", ""); statusOf(err) != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	cancelled, err := client.SetStatus(ctx, mine[0].ID, healthmodels.StatusCancelled)
	if err != nil || cancelled.Status != healthmodels.StatusCancelled {
		t.Fatalf("patient should be able to cancel: %v %+v", err, cancelled)
	}
}

func TestReports_HealthSummary(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	remote := reporting.NewRemote(loginAs(t, ts, "patient@healthtrack.com", "Patient@123"))
	ctx := context.Background()

	raw, err := remote.HealthSummary(ctx, patientID)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"totalRecords":4`, `"avgHeartRate":75`, `"avgSystolic":120`, `"healthScore":`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("summary missing %s: %s", want, raw)
		}
	}

	data, err := remote.HealthData(ctx, patientID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"period":2`) || !strings.Contains(string(data), `"value":78`) || strings.Contains(string(data), `"value":72`) {
		t.Errorf("unexpected health data window: %s", data)
	}

	sugg, err := remote.DoctorSuggestions(ctx, patientID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(sugg), "Reduce screen time") || !strings.Contains(string(sugg), "Keep a sleep diary") {
		t.Errorf("expected record and appointment suggestions: %s", sugg)
	}

	if _, err := remote.GenerateReport(ctx, johnID); statusOf(err) != http.StatusForbidden {
		t.Errorf("expected 403 for another patient's report, got %v", err)
	}
}

func TestUsers_PaginationHeader(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	gw := loginAs(t, ts, "doctor@healthtrack.com", "Doctor@123")

	res, err := gw.Request(context.Background(), "/users", gateway.Options{Query: map[string][]string{"limit": {"2"}}})
	if err != nil {
		t.Fatal(err)
	}
	users := []healthmodels.UserSummary{}
	if err := res.Decode(&users); err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0].ID != doctorID {
		t.Fatalf("expected first page of 2 users, got %+v", users)
	}

	patients, err := identity.NewService(gw, zerolog.Nop()).ListPatients(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(patients) != 2 {
		t.Errorf("expected 2 patients, got %d", len(patients))
	}
}

func TestFeed_DeliversOwnRecordEvents(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	gw := loginAs(t, ts, "patient@healthtrack.com", "Patient@123")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan websocket.Event, 4)
	go websocket.Watch(ctx, ts.URL+"/api", gw.Token(ctx), []string{websocket.PatientTopic(patientID), websocket.PatientTopic(johnID)}, func(ev websocket.Event) {
		events <- ev
	})

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().TopicCount(websocket.PatientTopic(patientID)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if srv.Hub().TopicCount(websocket.PatientTopic(johnID)) != 0 {
		t.Fatal("patient must not subscribe to another patient's topic")
	}

	rec, err := records.NewAPIRepository(gw).Create(ctx, patientID, records.NewRecord{Type: "weight", Value: "68", Unit: "kg"})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Type != websocket.EventRecordCreated || ev.ResourceID != rec.ID {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("record event not delivered")
	}
}

func TestFeed_RejectsMissingToken(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	err := websocket.Watch(context.Background(), ts.URL+"/api", "", nil, func(websocket.Event) {})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 dial error, got %v", err)
	}
}

func TestHealthEndpointAndErrorShape(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	_, err = newGateway(ts).Request(context.Background(), "/users/1", gateway.Options{})
	if statusOf(err) != http.StatusUnauthorized || err.Error() != "missing authorization header" {
		t.Fatalf("expected message body on 401, got %v", err)
	}
}

func TestReminders_SweepOncePerAppointment(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	doctor := &websocket.Client{ID: "d", Topics: []string{websocket.DoctorTopic(doctorID)}, Send: make(chan []byte, 8)}
	srv.Hub().Register(doctor)
	defer srv.Hub().Unregister(doctor)

	r := srv.NewReminders()
	// Seeded: a PENDING visit tomorrow and a CONFIRMED one in three days.
	if n := r.Sweep(); n != 1 {
		t.Fatalf("expected 1 reminder, got %d", n)
	}
	if n := r.Sweep(); n != 0 {
		t.Fatalf("expected no repeat reminder, got %d", n)
	}
	if len(doctor.Send) != 1 {
		t.Fatalf("expected the doctor to receive 1 event, got %d", len(doctor.Send))
	}
	if !strings.Contains(string(<-doctor.Send), EventAppointmentReminder) {
		t.Error("expected a reminder event")
	}

	r.now = func() time.Time { return time.Now().Add(72 * time.Hour) }
	if n := r.Sweep(); n != 0 {
		t.Errorf("appointments already started must not be reminded, got %d", n)
	}
}

func TestReminders_RejectsBadSchedule(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	if err := srv.NewReminders().Start("not a schedule"); err == nil {
		t.Fatal("expected schedule parse error")
	}
}
