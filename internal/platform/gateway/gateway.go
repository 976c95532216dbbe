// Package gateway is the single choke point for network access and the
// credential lifecycle. Every outbound call goes through Gateway.Request,
// which attaches the stored bearer token and normalizes responses and errors.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/internal/platform/session"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

const (
	DefaultBaseURL     = "http://localhost:8080/api"
	DefaultTimeout     = 15 * time.Second
	DefaultSessionTTL  = 7 * 24 * time.Hour
	DefaultRememberTTL = 30 * 24 * time.Hour
)

// Config controls a Gateway.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	SessionTTL  time.Duration
	RememberTTL time.Duration
	// HTTPClient overrides the default client. Its Timeout is left as is.
	HTTPClient *http.Client
}

// Options describe a single request.
type Options struct {
	Method  string
	Headers map[string]string
	Query   url.Values
	// Body is JSON-encoded. A []byte or string is sent verbatim.
	Body interface{}
}

// Result is a normalized response. Data holds the JSON body; when the body
// is not JSON, Data is nil and Text carries the raw payload.
type Result struct {
	Status int
	Text   string
	Data   json.RawMessage
}

// IsJSON reports whether the body parsed as JSON.
func (r *Result) IsJSON() bool { return r != nil && r.Data != nil }

// Empty reports whether the response had no body.
func (r *Result) Empty() bool { return r == nil || strings.TrimSpace(r.Text) == "" }

// Decode unmarshals the JSON body into v.
func (r *Result) Decode(v interface{}) error {
	if !r.IsJSON() {
		return fmt.Errorf("gateway: response is not JSON: %q", truncate(r.Text, 120))
	}
	return json.Unmarshal(r.Data, v)
}

// Gateway owns the session and issues every HTTP request.
type Gateway struct {
	baseURL     string
	client      *http.Client
	store       session.Store
	logger      zerolog.Logger
	sessionTTL  time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

func New(cfg Config, store session.Store, logger zerolog.Logger) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = DefaultRememberTTL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gateway{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      client,
		store:       store,
		logger:      logger.With().Str("component", "gateway").Logger(),
		sessionTTL:  cfg.SessionTTL,
		rememberTTL: cfg.RememberTTL,
		now:         time.Now,
	}
}

// BaseURL returns the API base address without a trailing slash.
func (g *Gateway) BaseURL() string { return g.baseURL }

// Request issues an HTTP call to baseURL+path.
func (g *Gateway) Request(ctx context.Context, path string, opts Options) (*Result, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := g.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + opts.Query.Encode()
	}

	body, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}

	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := g.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, &ConnectivityError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectivityError{Method: method, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}

	result := &Result{Status: resp.StatusCode, Text: string(raw)}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && json.Valid(trimmed) {
		result.Data = json.RawMessage(trimmed)
	}

	g.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rerr := &RequestError{
			Status:  resp.StatusCode,
			Message: errorMessage(result),
			Body:    result.Text,
		}
		g.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Str("error", rerr.Message).Msg("request rejected")
		return nil, rerr
	}
	return result, nil
}

// RequestJSON issues the request and decodes a JSON body into out. A nil
// out discards the body. An empty body leaves out untouched.
func (g *Gateway) RequestJSON(ctx context.Context, path string, opts Options, out interface{}) error {
	res, err := g.Request(ctx, path, opts)
	if err != nil {
		return err
	}
	if out == nil || res.Empty() {
		return nil
	}
	return res.Decode(out)
}

// SetAuth persists the token and then the user. The token is written first so
// a failed user write never leaves a user without credentials. Empty values
// are skipped.
func (g *Gateway) SetAuth(ctx context.Context, token string, user *healthmodels.UserSummary) error {
	if token != "" {
		ttl := g.sessionTTL
		if exp, ok := auth.ExpiresAt(token); ok {
			until := exp.Sub(g.now())
			if until <= 0 {
				return ErrExpiredToken
			}
			if until < ttl {
				ttl = until
			}
		}
		if err := g.store.Set(ctx, session.KeyAuthToken, token, ttl); err != nil {
			return fmt.Errorf("gateway: store token: %w", err)
		}
	}
	if user != nil {
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("gateway: encode user: %w", err)
		}
		if err := g.store.Set(ctx, session.KeyCurrentUser, string(data), g.sessionTTL); err != nil {
			return fmt.Errorf("gateway: store user: %w", err)
		}
	}
	return nil
}

// Token returns the stored bearer token, or "" when there is none.
func (g *Gateway) Token(ctx context.Context) string {
	tok, ok, err := g.store.Get(ctx, session.KeyAuthToken)
	if err != nil {
		g.logger.Warn().Err(err).Msg("read token")
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(tok)
}

// CurrentUser returns the stored user. Malformed data is removed and
// reported as absent.
func (g *Gateway) CurrentUser(ctx context.Context) (*healthmodels.UserSummary, bool) {
	raw, ok, err := g.store.Get(ctx, session.KeyCurrentUser)
	if err != nil {
		g.logger.Warn().Err(err).Msg("read current user")
		return nil, false
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, false
	}

	var user healthmodels.UserSummary
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		g.logger.Warn().Err(err).Msg("discarding malformed stored user")
		if derr := g.store.Delete(ctx, session.KeyCurrentUser); derr != nil {
			g.logger.Warn().Err(derr).Msg("clear malformed user")
		}
		return nil, false
	}
	return &user, true
}

// IsAuthenticated reports whether a user is stored.
func (g *Gateway) IsAuthenticated(ctx context.Context) bool {
	_, ok := g.CurrentUser(ctx)
	return ok
}

// Logout clears the token and user. Safe to call when already logged out.
func (g *Gateway) Logout(ctx context.Context) error {
	if err := g.store.Delete(ctx, session.KeyAuthToken); err != nil {
		return fmt.Errorf("gateway: clear token: %w", err)
	}
	if err := g.store.Delete(ctx, session.KeyCurrentUser); err != nil {
		return fmt.Errorf("gateway: clear user: %w", err)
	}
	return nil
}

// SetRememberedEmail keeps email for prefilling the login form.
func (g *Gateway) SetRememberedEmail(ctx context.Context, email string) error {
	return g.store.Set(ctx, session.KeyRememberedEmail, email, g.rememberTTL)
}

// RememberedEmail returns the remembered email, if any.
func (g *Gateway) RememberedEmail(ctx context.Context) string {
	v, ok, err := g.store.Get(ctx, session.KeyRememberedEmail)
	if err != nil || !ok {
		return ""
	}
	return v
}

// ForgetRememberedEmail clears the remembered email.
func (g *Gateway) ForgetRememberedEmail(ctx context.Context) error {
	return g.store.Delete(ctx, session.KeyRememberedEmail)
}

func encodeBody(body interface{}) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("gateway: encode body: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}

func errorMessage(r *Result) string {
	if r.IsJSON() {
		var body struct {
			Message interface{} `json:"message"`
		}
		if err := json.Unmarshal(r.Data, &body); err == nil {
			if msg, ok := body.Message.(string); ok && msg != "" {
				return msg
			}
		}
	}
	if text := http.StatusText(r.Status); text != "" {
		return text
	}
	return "Request failed"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
