// Package session provides the small key/value stores that hold client-side
// session state (bearer token, current user, remembered email, local records).
// Every entry carries its own expiry; an expired entry reads as absent.
package session

import (
	"context"
	"errors"
	"time"
)

// Well-known keys.
const (
	KeyAuthToken       = "auth_token"
	KeyCurrentUser     = "currentUser"
	KeyRememberedEmail = "rememberedEmail"
)

// ErrEmptyKey is returned when a store operation is given an empty key.
var ErrEmptyKey = errors.New("session: empty key")

// Store is a string key/value store with per-entry expiry.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent or
	// its entry has expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key. A ttl <= 0 means the entry never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Entry is the persisted form of a single value.
type Entry struct {
	Value  string    `json:"value"`
	Expiry time.Time `json:"expiry,omitempty"`
}

// Expired reports whether the entry has an expiry at or before now.
func (e Entry) Expired(now time.Time) bool {
	return !e.Expiry.IsZero() && !now.Before(e.Expiry)
}

func newEntry(value string, ttl time.Duration, now time.Time) Entry {
	e := Entry{Value: value}
	if ttl > 0 {
		e.Expiry = now.Add(ttl)
	}
	return e
}
