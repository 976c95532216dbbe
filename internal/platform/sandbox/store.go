// Package sandbox is a self-contained, in-memory implementation of the
// health-tracking REST backend. It serves the same routes the client consumes
// so the CLI can be exercised end to end without external services.
package sandbox

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healthtrack/healthtrack/internal/domain/records"
	"github.com/healthtrack/healthtrack/internal/domain/scheduling"
	"github.com/healthtrack/healthtrack/internal/platform/auth"
	"github.com/healthtrack/healthtrack/pkg/healthmodels"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is a stored account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         healthmodels.Role
	Age          int
	Gender       string
	Contact      string
	CreatedAt    time.Time
}

// Summary is the public view returned to clients.
func (u *User) Summary() userView {
	id, _ := strconv.Atoi(u.ID)
	return userView{
		ID:       id,
		Username: u.Username,
		Email:    u.Email,
		UserType: string(u.Role),
		Age:      u.Age,
		Gender:   u.Gender,
		Contact:  u.Contact,
	}
}

type userView struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
	Age      int    `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Contact  string `json:"contact,omitempty"`
}

// Store holds all sandbox state behind one mutex.
type Store struct {
	mu           sync.RWMutex
	users        map[string]*User
	byEmail      map[string]*User
	records      map[string]*records.HealthRecord
	appointments map[string]*scheduling.Appointment
	nextUserID   int
	now          func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:        make(map[string]*User),
		byEmail:      make(map[string]*User),
		records:      make(map[string]*records.HealthRecord),
		appointments: make(map[string]*scheduling.Appointment),
		nextUserID:   1,
		now:          time.Now,
	}
}

// NewUser is the registration input.
type NewUser struct {
	Username string
	Email    string
	Password string
	Role     string
	Age      int
	Gender   string
	Contact  string
}

// CreateUser hashes the password and stores the account. Emails are unique
// case-insensitively.
func (s *Store) CreateUser(in NewUser) (*User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return nil, ErrEmailTaken
	}
	u := &User{
		ID:           strconv.Itoa(s.nextUserID),
		Username:     strings.TrimSpace(in.Username),
		Email:        email,
		PasswordHash: hash,
		Role:         healthmodels.ParseRole(in.Role),
		Age:          in.Age,
		Gender:       in.Gender,
		Contact:      in.Contact,
		CreatedAt:    s.now(),
	}
	s.nextUserID++
	s.users[u.ID] = u
	s.byEmail[email] = u
	return u, nil
}

// Authenticate returns the user for a matching email and password.
func (s *Store) Authenticate(email, password string) (*User, error) {
	s.mu.RLock()
	u, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	s.mu.RUnlock()
	if !ok || !auth.CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Store) User(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

// Users lists accounts ordered by id. An empty role lists everyone.
func (s *Store) Users(role string) []*User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		if role == "" || string(u.Role) == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].ID)
		b, _ := strconv.Atoi(out[j].ID)
		return a < b
	})
	return out
}

// AddRecord stores rec with a fresh id and returns a copy.
func (s *Store) AddRecord(rec records.HealthRecord) records.HealthRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = uuid.New().String()
	if rec.Date == nil {
		now := s.now().UTC()
		rec.Date = &now
	}
	s.records[rec.ID] = &rec
	return rec
}

func (s *Store) Record(id string) (records.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return records.HealthRecord{}, ErrNotFound
	}
	return *r, nil
}

// Records lists records, newest first. An empty owner lists every record.
func (s *Store) Records(owner string) []records.HealthRecord {
	s.mu.RLock()
	out := make([]records.HealthRecord, 0)
	for _, r := range s.records {
		if owner == "" || r.OwnerID == owner {
			out = append(out, *r)
		}
	}
	s.mu.RUnlock()
	records.SortNewestFirst(out)
	return out
}

// UpdateRecord applies fn to the stored record under the write lock.
func (s *Store) UpdateRecord(id string, fn func(*records.HealthRecord)) (records.HealthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return records.HealthRecord{}, ErrNotFound
	}
	fn(r)
	return *r, nil
}

func (s *Store) DeleteRecord(id string) (records.HealthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return records.HealthRecord{}, ErrNotFound
	}
	delete(s.records, id)
	return *r, nil
}

// AddAppointment stores a with a fresh id. Patient and doctor names are
// filled from the user table.
func (s *Store) AddAppointment(a scheduling.Appointment) scheduling.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = uuid.New().String()
	a.Status = scheduling.NormalizeStatus(a.Status)
	now := s.now().UTC()
	a.UpdatedAt = &now
	if p, ok := s.users[a.PatientID]; ok {
		a.PatientName, a.PatientEmail = p.Username, p.Email
	}
	if d, ok := s.users[a.DoctorID]; ok {
		a.DoctorName, a.DoctorEmail = d.Username, d.Email
	}
	s.appointments[a.ID] = &a
	return a
}

func (s *Store) Appointment(id string) (scheduling.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return scheduling.Appointment{}, ErrNotFound
	}
	return *a, nil
}

// Appointments lists appointments matching keep, ordered by date.
func (s *Store) Appointments(keep func(scheduling.Appointment) bool) []scheduling.Appointment {
	s.mu.RLock()
	out := make([]scheduling.Appointment, 0)
	for _, a := range s.appointments {
		if keep == nil || keep(*a) {
			out = append(out, *a)
		}
	}
	s.mu.RUnlock()
	return scheduling.Filter(out, scheduling.ViewAll, "")
}

// UpdateAppointment applies fn under the write lock. fn may reject the change
// by returning an error, in which case nothing is modified.
func (s *Store) UpdateAppointment(id string, fn func(*scheduling.Appointment) error) (scheduling.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return scheduling.Appointment{}, ErrNotFound
	}
	cp := *a
	if err := fn(&cp); err != nil {
		return scheduling.Appointment{}, err
	}
	now := s.now().UTC()
	cp.UpdatedAt = &now
	*a = cp
	return cp, nil
}
