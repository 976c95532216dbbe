package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/healthtrack/healthtrack/internal/platform/gateway"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

// ErrNoUserInResponse is returned when login succeeds without a user object.
var ErrNoUserInResponse = errors.New("login response carried no user")

// Session is the slice of the gateway the identity service drives.
type Session interface {
	Request(ctx context.Context, path string, opts gateway.Options) (*gateway.Result, error)
	SetAuth(ctx context.Context, token string, user *healthmodels.UserSummary) error
	CurrentUser(ctx context.Context) (*healthmodels.UserSummary, bool)
	Logout(ctx context.Context) error
	SetRememberedEmail(ctx context.Context, email string) error
	RememberedEmail(ctx context.Context) string
	ForgetRememberedEmail(ctx context.Context) error
}

type Service struct {
	session Session
	logger  zerolog.Logger
}

func NewService(session Session, logger zerolog.Logger) *Service {
	return &Service{session: session, logger: logger.With().Str("component", "identity").Logger()}
}

type loginResponse struct {
	Token string                    `json:"token"`
	User  *healthmodels.UserSummary `json:"user"`
}

// Login authenticates and stores the session. remember keeps the email for
// the next login form; otherwise any remembered email is cleared.
func (s *Service) Login(ctx context.Context, email, password string, remember bool) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return nil, gateway.NewValidationError("email", "Please enter a valid email address")
	}
	if password == "" {
		return nil, gateway.NewValidationError("password", "Please enter your password")
	}

	res, err := s.session.Request(ctx, "/auth/login", gateway.Options{
		Method: http.MethodPost,
		Body:   map[string]string{"email": strings.ToLower(email), "password": password},
	})
	if err != nil {
		return nil, err
	}

	var resp loginResponse
	if err := res.Decode(&resp); err != nil {
		return nil, fmt.Errorf("identity: decode login response: %w", err)
	}
	if resp.User == nil {
		return nil, ErrNoUserInResponse
	}
	if err := s.session.SetAuth(ctx, resp.Token, resp.User); err != nil {
		return nil, err
	}

	if remember {
		err = s.session.SetRememberedEmail(ctx, email)
	} else {
		err = s.session.ForgetRememberedEmail(ctx)
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("update remembered email")
	}

	s.logger.Info().Str("user_id", resp.User.ID).Str("role", string(resp.User.Role)).Msg("logged in")
	return &LoginResult{User: resp.User, Next: HomeFor(resp.User)}, nil
}

type registerPayload struct {
	Username string `json:"username"`
	Age      int    `json:"age"`
	Gender   string `json:"gender,omitempty"`
	Contact  string `json:"contact"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"userType"`
}

// Register validates the form, creates the account and logs in when the
// backend returned the new user. A failed auto-login is not an error; the
// caller is sent to the login page instead.
func (s *Service) Register(ctx context.Context, r Registration) (*RegisterResult, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	payload := registerPayload{
		Username: strings.TrimSpace(r.Name),
		Age:      r.Age,
		Gender:   r.Gender,
		Contact:  r.Contact,
		Email:    strings.ToLower(strings.TrimSpace(r.Email)),
		Password: r.Password,
		UserType: string(healthmodels.ParseRole(r.Role)),
	}
	res, err := s.session.Request(ctx, "/auth/register", gateway.Options{Method: http.MethodPost, Body: payload})
	if err != nil {
		return nil, err
	}

	var resp struct {
		User *healthmodels.UserSummary `json:"user"`
	}
	if res.IsJSON() {
		if err := res.Decode(&resp); err != nil {
			s.logger.Warn().Err(err).Msg("decode register response")
		}
	}
	if resp.User == nil {
		return &RegisterResult{Next: ToLogin}, nil
	}

	login, err := s.Login(ctx, payload.Email, payload.Password, false)
	if err != nil {
		s.logger.Warn().Err(err).Msg("auto-login after registration failed")
		return &RegisterResult{User: resp.User, Next: ToLogin}, nil
	}
	return &RegisterResult{User: login.User, AutoLoggedIn: true, Next: login.Next}, nil
}

// Logout clears the session. Calling it twice is harmless.
func (s *Service) Logout(ctx context.Context) (Destination, error) {
	if err := s.session.Logout(ctx); err != nil {
		return Stay, err
	}
	return ToLogin, nil
}

// CurrentUser returns the logged-in user, if any.
func (s *Service) CurrentUser(ctx context.Context) (*healthmodels.UserSummary, bool) {
	return s.session.CurrentUser(ctx)
}

func (s *Service) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.session.CurrentUser(ctx)
	return ok
}

// RequireUser returns the logged-in user or gateway.ErrNotAuthenticated.
func (s *Service) RequireUser(ctx context.Context) (*healthmodels.UserSummary, error) {
	u, ok := s.session.CurrentUser(ctx)
	if !ok {
		return nil, gateway.ErrNotAuthenticated
	}
	return u, nil
}

// RememberedEmail returns the email saved by a previous "remember me" login.
func (s *Service) RememberedEmail(ctx context.Context) string {
	return s.session.RememberedEmail(ctx)
}

// Guard applies the page rules to the current session.
func (s *Service) Guard(ctx context.Context, page Page) Destination {
	u, _ := s.session.CurrentUser(ctx)
	return Guard(page, u)
}

// GetUser fetches one user.
func (s *Service) GetUser(ctx context.Context, id string) (*healthmodels.UserSummary, error) {
	res, err := s.session.Request(ctx, "/users/"+url.PathEscape(id), gateway.Options{})
	if err != nil {
		return nil, err
	}
	var u healthmodels.UserSummary
	if err := res.Decode(&u); err != nil {
		return nil, fmt.Errorf("identity: decode user: %w", err)
	}
	return &u, nil
}

// ListUsers fetches every user.
func (s *Service) ListUsers(ctx context.Context) ([]healthmodels.UserSummary, error) {
	return s.listUsers(ctx, "/users")
}

// ListPatients fetches the patients visible to a doctor.
func (s *Service) ListPatients(ctx context.Context) ([]healthmodels.UserSummary, error) {
	return s.listUsers(ctx, "/doctor/patients")
}

func (s *Service) listUsers(ctx context.Context, path string) ([]healthmodels.UserSummary, error) {
	res, err := s.session.Request(ctx, path, gateway.Options{})
	if err != nil {
		return nil, err
	}
	users := []healthmodels.UserSummary{}
	if !res.IsJSON() {
		return users, nil
	}
	if err := res.Decode(&users); err != nil {
		return nil, fmt.Errorf("identity: decode users: %w", err)
	}
	return users, nil
}
