package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func newTestIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(testSigningKey, time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	iss.now = func() time.Time { return now }
	return iss
}

func TestNewIssuer_RequiresKey(t *testing.T) {
	if _, err := NewIssuer(nil, time.Hour); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestIssuer_IssueVerify(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(t, now)

	tok, exp, err := iss.Issue("42", "doc@example.com", "DOCTOR")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Errorf("expected exp now+1h, got %v", exp)
	}

	claims, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "42" || claims.Role != "DOCTOR" || claims.Email != "doc@example.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestIssuer_VerifyExpired(t *testing.T) {
	issued := time.Now().Add(-3 * time.Hour)
	iss := newTestIssuer(t, issued)
	tok, _, err := iss.Issue("1", "", "PATIENT")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	iss.now = time.Now
	if _, err := iss.Verify(tok); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestIssuer_VerifyWrongKey(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	tok, _, _ := iss.Issue("1", "", "PATIENT")

	other, _ := NewIssuer([]byte("another-key"), time.Hour)
	if _, err := other.Verify(tok); err != ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := iss.Verify("not-a-jwt"); err != ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString([]byte("unknown-to-client"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, ok := ExpiresAt(signed)
	if !ok {
		t.Fatal("expected exp to be readable")
	}
	if !got.Equal(exp) {
		t.Errorf("expected %v, got %v", exp, got)
	}

	if _, ok := ExpiresAt("opaque-token"); ok {
		t.Error("expected opaque token to have no exp")
	}

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"}).SignedString([]byte("k"))
	if _, ok := ExpiresAt(noExp); ok {
		t.Error("expected token without exp to report ok=false")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("Patient@123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword("Patient@123", hash) {
		t.Error("expected password to match")
	}
	if CheckPassword("wrong", hash) {
		t.Error("expected mismatch")
	}
}

func TestBearerMiddleware(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	tok, _, _ := iss.Issue("7", "p@example.com", "patient")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"no bearer prefix", "Token " + tok, http.StatusUnauthorized},
		{"empty value", "Bearer ", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"valid", "Bearer " + tok, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var gotID, gotRole string
			h := BearerMiddleware(iss)(func(c echo.Context) error {
				gotID = UserIDFromContext(c.Request().Context())
				gotRole = RoleFromContext(c.Request().Context())
				return c.String(http.StatusOK, "ok")
			})

			err := h(c)
			if tt.want == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if gotID != "7" || gotRole != "PATIENT" {
					t.Errorf("expected 7/PATIENT, got %s/%s", gotID, gotRole)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected echo.HTTPError, got %T", err)
			}
			if httpErr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, httpErr.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	tok, _, _ := iss.Issue("7", "", "PATIENT")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	c := e.NewContext(req, httptest.NewRecorder())

	h := BearerMiddleware(iss)(RequireRole("DOCTOR")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}))
	err := h(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestRequireSelfOrRole(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	tok, _, _ := iss.Issue("7", "", "PATIENT")

	run := func(id string) error {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(id)
		h := BearerMiddleware(iss)(RequireSelfOrRole("id", "DOCTOR")(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		}))
		return h(c)
	}

	if err := run("7"); err != nil {
		t.Errorf("expected own id to pass, got %v", err)
	}
	if err := run("8"); err == nil {
		t.Error("expected other id to be rejected")
	}
}
