package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/healthtrack/healthtrack/internal/platform/gateway"
)

var (
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe  = regexp.MustCompile(`^[\d\s\-+()]{10,}$`)
	letterRe = regexp.MustCompile(`[a-zA-Z]`)
	digitRe  = regexp.MustCompile(`\d`)
	lowerRe  = regexp.MustCompile(`[a-z]`)
	upperRe  = regexp.MustCompile(`[A-Z]`)
	symbolRe = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool { return emailRe.MatchString(s) }

// ValidPhone accepts at least ten digits, spaces, dashes, plus signs or parentheses.
func ValidPhone(s string) bool { return phoneRe.MatchString(s) }

// ValidName requires at least two non-blank characters.
func ValidName(s string) bool { return len([]rune(strings.TrimSpace(s))) >= 2 }

// PasswordProblem returns why pw is unacceptable, or "" when it is fine.
func PasswordProblem(pw string) string {
	switch {
	case len(pw) < 8:
		return "Password must be at least 8 characters long"
	case !letterRe.MatchString(pw):
		return "Password must contain at least one letter"
	case !digitRe.MatchString(pw):
		return "Password must contain at least one number"
	}
	return ""
}

// PasswordStrength scores pw from 0 to 5.
func PasswordStrength(pw string) int {
	n := 0
	for _, ok := range []bool{
		len(pw) >= 8,
		len(pw) >= 12,
		lowerRe.MatchString(pw),
		upperRe.MatchString(pw),
		digitRe.MatchString(pw),
		symbolRe.MatchString(pw),
	} {
		if ok {
			n++
		}
	}
	return min(n, 5)
}

var strengthLabels = []string{"Very Weak", "Weak", "Fair", "Good", "Strong"}

// StrengthLabel names a PasswordStrength score.
func StrengthLabel(strength int) string {
	if strength < 1 {
		return strengthLabels[0]
	}
	return strengthLabels[min(strength-1, 4)]
}

func newValidator() *validator.Validate {
	v := validator.New()
	for _, rule := range []struct {
		tag   string
		check func(string) bool
	}{
		{"displayname", ValidName},
		{"phone", ValidPhone},
		{"loginemail", ValidEmail},
		{"password", func(s string) bool { return PasswordProblem(s) == "" }},
	} {
		check := rule.check
		err := v.RegisterValidation(rule.tag, func(fl validator.FieldLevel) bool { return check(fl.Field().String()) })
		if err != nil {
			panic(fmt.Sprintf("identity: register %q validation: %v", rule.tag, err))
		}
	}
	return v
}

var fieldMessages = map[string]string{
	"Name":            "Please enter a valid name",
	"Age":             "Please enter a valid age (1-120)",
	"Contact":         "Please enter a valid contact number",
	"Email":           "Please enter a valid email address",
	"ConfirmPassword": "Passwords do not match",
}

// Validate checks a registration form and returns a *gateway.ValidationError
// for the first failing field.
func (r Registration) Validate() error {
	err := formValidator.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return gateway.NewValidationError("", err.Error())
	}
	first := verrs[0]
	field := first.StructField()
	if field == "Password" {
		return gateway.NewValidationError("password", PasswordProblem(r.Password))
	}
	msg, ok := fieldMessages[field]
	if !ok {
		msg = first.Error()
	}
	return gateway.NewValidationError(strings.ToLower(field), msg)
}

var formValidator = newValidator()
