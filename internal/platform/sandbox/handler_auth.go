package sandbox

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
	"github.com/healthtrack/healthtrack/pkg/pagination"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string                 `json:"username"`
	Age      healthmodels.FlexFloat `json:"age"`
	Gender   string                 `json:"gender"`
	Contact  string                 `json:"contact"`
	Email    string                 `json:"email"`
	Password string                 `json:"password"`
	UserType string                 `json:"userType"`
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	}

	u, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Credentials")
	}
	token, _, err := s.issuer.Issue(u.ID, u.Email, string(u.Role))
	if err != nil {
		return err
	}
	s.logger.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("login")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":   token,
		"user":    u.Summary(),
		"message": "Login Success",
	})
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Username, email and password are required")
	}
	in := NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.UserType,
		Gender:   req.Gender,
		Contact:  req.Contact,
	}
	if req.Age.Value != nil {
		in.Age = int(*req.Age.Value)
	}

	u, err := s.store.CreateUser(in)
	if errors.Is(err, ErrEmailTaken) {
		return echo.NewHTTPError(http.StatusConflict, "Email already exists")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"user":    u.Summary(),
		"message": "User Registered",
	})
}

func (s *Server) registerUserRoutes(g *echo.Group) {
	g.GET("/users", s.listUsers, auth.RequireRole(healthmodels.RoleDoctor))
	g.GET("/users/:id", s.getUser, auth.RequireSelfOrRole("id", healthmodels.RoleDoctor))
	g.GET("/doctor/patients", s.listPatients, auth.RequireRole(healthmodels.RoleDoctor))
}

func (s *Server) listUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, pagination.Apply(c, summaries(s.store.Users(""))))
}

func (s *Server) listPatients(c echo.Context) error {
	return c.JSON(http.StatusOK, pagination.Apply(c, summaries(s.store.Users(healthmodels.RolePatient))))
}

func (s *Server) getUser(c echo.Context) error {
	u, err := s.store.User(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, u.Summary())
}

func summaries(users []*User) []userView {
	out := make([]userView, len(users))
	for i, u := range users {
		out[i] = u.Summary()
	}
	return out
}
