package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gorillawebsocket "github.com/gorilla/websocket"
)

// FeedURL turns an API base URL (http://host/api) into the change feed URL
// (ws://host/api/ws?topics=...).
func FeedURL(baseURL string, topics []string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws")
	if err != nil {
		return "", fmt.Errorf("websocket: parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("websocket: unsupported scheme %q", u.Scheme)
	}
	if len(topics) > 0 {
		q := u.Query()
		q.Set("topics", strings.Join(topics, ","))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Watch dials the feed, subscribes to topics, and calls fn for every event
// until ctx is cancelled or the connection drops. A cancelled ctx returns nil.
func Watch(ctx context.Context, baseURL, token string, topics []string, fn func(Event)) error {
	target, err := FeedURL(baseURL, topics)
	if err != nil {
		return err
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := gorillawebsocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket: dial %s: %s", target, resp.Status)
		}
		return fmt.Errorf("websocket: dial %s: %w", target, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if gorillawebsocket.IsCloseError(err, gorillawebsocket.CloseNormalClosure, gorillawebsocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("websocket: read: %w", err)
		}
		fn(ev)
	}
}
