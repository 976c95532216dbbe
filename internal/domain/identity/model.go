package identity

import (
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

// Destination is a navigation intent returned instead of performing a
// redirect. The empty destination means "stay".
type Destination string

const (
	Stay              Destination = ""
	ToLogin           Destination = "login"
	ToDashboard       Destination = "dashboard"
	ToDoctorDashboard Destination = "doctor-dashboard"
)

// Page identifies a screen for Guard.
type Page string

const (
	PageLogin           Page = "login"
	PageSignup          Page = "signup"
	PageDashboard       Page = "dashboard"
	PageRecords         Page = "records"
	PageAppointments    Page = "appointments"
	PageDoctorDashboard Page = "doctor-dashboard"
)

func (p Page) isAuthPage() bool { return p == PageLogin || p == PageSignup }

func (p Page) doctorOnly() bool { return p == PageDoctorDashboard }

// HomeFor returns the dashboard a user lands on after login.
func HomeFor(u *healthmodels.UserSummary) Destination {
	if u != nil && u.Role.IsDoctor() {
		return ToDoctorDashboard
	}
	return ToDashboard
}

// Guard decides where a visitor of page should be sent. Auth pages send a
// logged-in user home, protected pages send an anonymous visitor to login,
// and doctor pages send patients to their own dashboard.
func Guard(page Page, u *healthmodels.UserSummary) Destination {
	switch {
	case page.isAuthPage():
		if u != nil {
			return HomeFor(u)
		}
		return Stay
	case u == nil:
		return ToLogin
	case page.doctorOnly() && !u.Role.IsDoctor():
		return ToDashboard
	}
	return Stay
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	User *healthmodels.UserSummary
	Next Destination
}

// RegisterResult is the outcome of a successful registration.
type RegisterResult struct {
	User         *healthmodels.UserSummary
	AutoLoggedIn bool
	Next         Destination
}

// Registration is the signup form.
type Registration struct {
	Name            string `json:"username" validate:"displayname"`
	Age             int    `json:"age" validate:"min=1,max=120"`
	Gender          string `json:"gender,omitempty"`
	Contact         string `json:"contact" validate:"phone"`
	Email           string `json:"email" validate:"loginemail"`
	Password        string `json:"password" validate:"password"`
	ConfirmPassword string `json:"-" validate:"eqfield=Password"`
	Role            string `json:"userType"`
}
