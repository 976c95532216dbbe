package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newClient(id string, topics ...string) *Client {
	return &Client{ID: id, Topics: topics, Send: make(chan []byte, 256)}
}

// ---------------------------------------------------------------------------
// Hub tests
// ---------------------------------------------------------------------------

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("c1", PatientTopic("1"), TopicAppointments)

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.TopicCount("patient:1") != 1 || hub.TopicCount("appointments") != 1 {
		t.Fatalf("expected initial topics to be subscribed")
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 || hub.TopicCount("patient:1") != 0 {
		t.Fatalf("expected hub to be empty after unregister")
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send to be closed")
	}

	// second unregister is a no-op
	hub.Unregister(client)
}

func TestHub_BroadcastToTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := newClient("a", PatientTopic("1"))
	b := newClient("b", PatientTopic("2"))
	hub.Register(a)
	hub.Register(b)

	ev, err := NewEvent(EventRecordCreated, PatientTopic("1"), ResourceRecord, "r1", map[string]string{"type": "heart_rate"})
	if err != nil {
		t.Fatal(err)
	}
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-a.Send:
		var got Event
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != EventRecordCreated || got.ResourceID != "r1" || !strings.Contains(string(got.Data), "heart_rate") {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the event")
	}

	select {
	case <-b.Send:
		t.Fatal("other patient's client must not receive the event")
	default:
	}
}

func TestHub_FullBufferDropsEvent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := &Client{ID: "slow", Topics: []string{"appointments"}, Send: make(chan []byte, 1)}
	hub.Register(c)

	hub.Broadcast("appointments", Event{Type: EventAppointmentCreated})
	hub.Broadcast("appointments", Event{Type: EventAppointmentUpdated})

	if len(c.Send) != 1 {
		t.Fatalf("expected 1 buffered event, got %d", len(c.Send))
	}
}

func TestHub_SubscribeRespectsAllow(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newClient("p")
	c.Allow = func(topic string) bool { return topic == PatientTopic("7") }
	hub.Register(c)

	denied := hub.ProcessMessage(c, ClientMessage{Action: "subscribe", Topics: []string{"patient:7", "patient:8", "appointments", "patient:7"}})

	if hub.TopicCount("patient:7") != 1 {
		t.Errorf("expected own topic to be subscribed")
	}
	if len(denied) != 2 || hub.TopicCount("patient:8") != 0 || hub.TopicCount("appointments") != 0 {
		t.Errorf("expected foreign topics to be refused, denied=%v", denied)
	}
	if len(c.Topics) != 1 {
		t.Errorf("duplicate subscription recorded: %v", c.Topics)
	}

	hub.ProcessMessage(c, ClientMessage{Action: "unsubscribe", Topics: []string{"patient:7"}})
	if hub.TopicCount("patient:7") != 0 || len(c.Topics) != 0 {
		t.Errorf("expected unsubscribe to remove the topic")
	}
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newClient("c", TopicAppointments)
			hub.Register(c)
			hub.Broadcast(TopicAppointments, Event{Type: EventAppointmentUpdated})
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

// ---------------------------------------------------------------------------
// Handler tests
// ---------------------------------------------------------------------------

func TestHandler_RegisterRoutes(t *testing.T) {
	e := echo.New()
	NewHandler(NewHub(zerolog.Nop()), nil).RegisterRoutes(e.Group("/api"))

	found := false
	for _, r := range e.Routes() {
		if r.Path == "/api/ws" && r.Method == http.MethodGet {
			found = true
		}
	}
	if !found {
		t.Fatal("expected GET /api/ws route to be registered")
	}
}

func TestHandler_RejectsUnauthorized(t *testing.T) {
	h := NewHandler(NewHub(zerolog.Nop()), func(c echo.Context) (func(string) bool, error) {
		return nil, errors.New("missing token")
	})
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ws", nil), httptest.NewRecorder())

	err := h.HandleConnect(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestFeedURL(t *testing.T) {
	tests := []struct {
		base, want string
		topics     []string
	}{
		{"http://localhost:8080/api", "ws://localhost:8080/api/ws", nil},
		{"https://example.com/api/", "wss://example.com/api/ws?topics=patient%3A1%2Cappointments", []string{"patient:1", "appointments"}},
	}
	for _, tt := range tests {
		got, err := FeedURL(tt.base, tt.topics)
		if err != nil {
			t.Fatalf("FeedURL(%q): %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("FeedURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
	if _, err := FeedURL("ftp://x", nil); err == nil {
		t.Error("expected unsupported scheme error")
	}
}

func TestWatch_ReceivesPublishedEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var gotAuth string
	e := echo.New()
	NewHandler(hub, func(c echo.Context) (func(string) bool, error) {
		gotAuth = c.Request().Header.Get("Authorization")
		return nil, nil
	}).RegisterRoutes(e.Group("/api"))
	server := httptest.NewServer(e)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, server.URL+"/api", "tok", []string{PatientTopic("3")}, func(ev Event) {
			events <- ev
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hub.TopicCount(PatientTopic("3")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("expected bearer token on upgrade, got %q", gotAuth)
	}

	ev, _ := NewEvent(EventRecordDeleted, PatientTopic("3"), ResourceRecord, "r9", nil)
	hub.Publish(ctx, ev)

	select {
	case got := <-events:
		if got.Type != EventRecordDeleted || got.ResourceID != "r9" {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("expected nil after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestHandler_FullUpgradeWithDialer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	NewHandler(hub, nil).RegisterRoutes(e.Group(""))
	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	if err := conn.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{DoctorTopic("d1")}}); err != nil {
		t.Fatalf("failed to send subscribe: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.TopicCount("doctor:d1") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscribe message not processed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast("doctor:d1", Event{Type: EventAppointmentCreated, Topic: "doctor:d1", ResourceType: ResourceAppointment, ResourceID: "a1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received Event
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if received.Type != EventAppointmentCreated || received.ResourceID != "a1" {
		t.Fatalf("unexpected event %+v", received)
	}
}
