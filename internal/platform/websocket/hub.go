// Package websocket is the change feed. The sandbox backend publishes record
// and appointment events to topics; clients subscribe to the topics they are
// allowed to read and receive the events as JSON text frames.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	EventRecordCreated      = "record.created"
	EventRecordUpdated      = "record.updated"
	EventRecordDeleted      = "record.deleted"
	EventAppointmentCreated = "appointment.created"
	EventAppointmentUpdated = "appointment.updated"

	ResourceRecord      = "record"
	ResourceAppointment = "appointment"

	// TopicAppointments receives every appointment event.
	TopicAppointments = "appointments"
)

// PatientTopic is the topic carrying one patient's record and appointment
// events.
func PatientTopic(id string) string { return "patient:" + id }

// DoctorTopic carries events for appointments assigned to one doctor.
func DoctorTopic(id string) string { return "doctor:" + id }

// Event is a change notification.
type Event struct {
	Type         string          `json:"type"`
	Topic        string          `json:"topic"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an event for topic with data marshalled as JSON.
func NewEvent(eventType, topic, resourceType, resourceID string, data interface{}) (Event, error) {
	ev := Event{
		Type:         eventType,
		Topic:        topic,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Timestamp:    time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("websocket: encode event data: %w", err)
		}
		ev.Data = raw
	}
	return ev, nil
}

// ClientMessage is an inbound subscription change.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// EventPublisher publishes events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Client is one connection.
type Client struct {
	ID     string
	Topics []string
	Send   chan []byte
	// Allow filters subscription requests. Nil allows every topic.
	Allow func(topic string) bool
	hub   *Hub
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> set of clients
	all     map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "ws-hub").Logger(),
	}
}

// Register adds a client and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.hub = h
	h.all[client] = struct{}{}
	topics := client.Topics
	client.Topics = nil
	h.subscribeLocked(client, topics)
}

// Unregister removes the client from every topic and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	h.unsubscribeLocked(client, client.Topics)
	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds topics the client is allowed to read and returns the ones
// that were refused.
func (h *Hub) Subscribe(client *Client, topics []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribeLocked(client, topics)
}

func (h *Hub) subscribeLocked(client *Client, topics []string) []string {
	var denied []string
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		if client.Allow != nil && !client.Allow(topic) {
			denied = append(denied, topic)
			continue
		}
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		if _, dup := h.clients[topic][client]; dup {
			continue
		}
		h.clients[topic][client] = struct{}{}
		client.Topics = append(client.Topics, topic)
	}
	return denied
}

// Unsubscribe removes topics from the client.
func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(client, topics)
}

func (h *Hub) unsubscribeLocked(client *Client, topics []string) {
	removeSet := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		removeSet[topic] = struct{}{}
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, rm := removeSet[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// ProcessMessage applies a subscribe or unsubscribe message and returns the
// refused topics.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) []string {
	switch msg.Action {
	case "subscribe":
		return h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
	return nil
}

// Broadcast sends event to the subscribers of topic. Clients with a full
// buffer miss the event.
func (h *Hub) Broadcast(topic string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[topic] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn().Str("client_id", client.ID).Str("topic", topic).Msg("client buffer full, event dropped")
		}
	}
}

// Publish broadcasts to the event's topic.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.Broadcast(event.Topic, event)
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Authorizer resolves the caller of an upgrade request into a topic filter.
// Returning an error rejects the connection with 401.
type Authorizer func(c echo.Context) (allow func(topic string) bool, err error)

// Handler upgrades HTTP requests and runs the client pumps.
type Handler struct {
	hub       *Hub
	authorize Authorizer
}

// NewHandler binds a handler to hub. authorize may be nil.
func NewHandler(hub *Hub, authorize Authorizer) *Handler {
	return &Handler{hub: hub, authorize: authorize}
}

func (wsh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wsh.HandleConnect)
}

// HandleConnect authorizes, upgrades, and registers the client with the
// topics named in the comma-separated "topics" query parameter.
func (wsh *Handler) HandleConnect(c echo.Context) error {
	var allow func(string) bool
	if wsh.authorize != nil {
		var err error
		if allow, err = wsh.authorize(c); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	var topics []string
	if q := c.QueryParam("topics"); q != "" {
		topics = strings.Split(q, ",")
	}
	client := &Client{
		ID:     uuid.New().String(),
		Topics: topics,
		Send:   make(chan []byte, 256),
		Allow:  allow,
	}
	wsh.hub.Register(client)
	wsh.hub.logger.Debug().Str("client_id", client.ID).Strs("topics", client.Topics).Msg("client connected")

	go wsh.writePump(client, ws)
	go wsh.readPump(client, ws)

	return nil
}

func (wsh *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		wsh.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if denied := wsh.hub.ProcessMessage(client, msg); len(denied) > 0 {
			wsh.hub.logger.Warn().Str("client_id", client.ID).Strs("topics", denied).Msg("subscription refused")
		}
	}
}

func (wsh *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
