package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/internal/platform/middleware"
	"github.com/healthtrack/healthtrack/internal/platform/websocket"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

// DefaultTokenTTL is the lifetime of issued access tokens.
const DefaultTokenTTL = 24 * time.Hour

// Config configures the sandbox server.
type Config struct {
	SigningKey  []byte
	TokenTTL    time.Duration
	CORSOrigins []string
	// Seed loads the demo accounts on start.
	Seed bool
	// RateLimit overrides the login rate limit. Zero uses the default.
	RateLimit middleware.RateLimitConfig
}

// Server is the sandbox REST backend.
type Server struct {
	store  *Store
	issuer *auth.Issuer
	hub    *websocket.Hub
	logger zerolog.Logger
	echo   *echo.Echo
}

// New builds the server and registers every route.
func New(cfg Config, logger zerolog.Logger) (*Server, error) {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	issuer, err := auth.NewIssuer(cfg.SigningKey, ttl)
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	s := &Server{
		store:  NewStore(),
		issuer: issuer,
		hub:    websocket.NewHub(logger),
		logger: logger.With().Str("component", "sandbox").Logger(),
	}
	if cfg.Seed {
		if err := Seed(s.store, time.Now()); err != nil {
			return nil, err
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(s.logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"X-Total-Count"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")

	limit := cfg.RateLimit
	if limit.RequestsPerSecond <= 0 {
		limit = middleware.LoginRateLimitConfig()
	}
	api.POST("/auth/login", s.login, middleware.RateLimit(limit))
	api.POST("/auth/register", s.register)

	websocket.NewHandler(s.hub, s.authorizeFeed).RegisterRoutes(api)

	protected := api.Group("", auth.BearerMiddleware(issuer))
	s.registerUserRoutes(protected)
	s.registerRecordRoutes(protected)
	s.registerAppointmentRoutes(protected)
	s.registerReportRoutes(protected)

	s.echo = e
	return s, nil
}

// Echo exposes the router, mainly for httptest.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) Store() *Store { return s.store }

func (s *Server) Hub() *websocket.Hub { return s.hub }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("starting sandbox server")
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// authorizeFeed accepts a bearer header or a ?token= query parameter.
// Doctors may read every topic; patients only their own patient topic.
func (s *Server) authorizeFeed(c echo.Context) (func(string) bool, error) {
	token := c.QueryParam("token")
	if h := c.Request().Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = strings.TrimSpace(parts[1])
		}
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, errors.New("invalid token")
	}
	if healthmodels.Role(claims.Role).IsDoctor() {
		return nil, nil
	}
	own := websocket.PatientTopic(claims.Subject)
	return func(topic string) bool { return topic == own }, nil
}

// publish sends ev to every topic in topics.
func (s *Server) publish(eventType, resourceType, resourceID string, data interface{}, topics ...string) {
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		ev, err := websocket.NewEvent(eventType, topic, resourceType, resourceID, data)
		if err != nil {
			s.logger.Error().Err(err).Str("event", eventType).Msg("build event")
			return
		}
		_ = s.hub.Publish(context.Background(), ev)
	}
}

// errorHandler writes every error as {"message": ...}.
func errorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := "Internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		} else {
			logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]string{"message": msg})
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}

func caller(c echo.Context) (id string, doctor bool) {
	ctx := c.Request().Context()
	return auth.UserIDFromContext(ctx), strings.EqualFold(auth.RoleFromContext(ctx), healthmodels.RoleDoctor)
}

// canAccess reports whether the caller may read or change data owned by owner.
func canAccess(c echo.Context, owner string) bool {
	id, doctor := caller(c)
	return doctor || (owner != "" && id == owner)
}

var errAccessDenied = echo.NewHTTPError(http.StatusForbidden, "Access denied")
