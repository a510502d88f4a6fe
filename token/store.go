package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrEmpty is returned when an empty token is saved.
	ErrEmpty = errors.New("token is empty")
	// ErrNotFound is returned when no usable token is stored.
	ErrNotFound = errors.New("no session token stored")
	// ErrExpired is returned when the stored token is past its expiry.
	ErrExpired = errors.New("session token expired")
)

// KeyValue is the persisted storage the token is written to.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Claims is what the client reads from a token. Opaque tokens have
// IsJWT=false and no expiry.
type Claims struct {
	IsJWT     bool
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the claims carry an expiry before now.
func (c Claims) Expired(now time.Time, leeway time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt.Add(leeway))
}

// Store keeps one session token under a fixed key.
type Store struct {
	kv     KeyValue
	key    string
	leeway time.Duration
	now    func() time.Time
}

// NewStore returns a Store writing to key in kv.
func NewStore(kv KeyValue, key string) *Store {
	if key == "" {
		key = "auth_token"
	}
	return &Store{
		kv:     kv,
		key:    key,
		leeway: 30 * time.Second,
		now:    time.Now,
	}
}

// WithClock overrides time.Now, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Save persists raw verbatim.
func (s *Store) Save(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmpty
	}
	return s.kv.Set(ctx, s.key, raw)
}

// Load returns the stored token as-is.
func (s *Store) Load(ctx context.Context) (string, bool, error) {
	return s.kv.Get(ctx, s.key)
}

// Clear removes the stored token.
func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, s.key)
}

// Bearer returns the stored token when it is present and not expired.
func (s *Store) Bearer(ctx context.Context) (string, error) {
	raw, ok, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	if !ok || raw == "" {
		return "", ErrNotFound
	}
	claims := Inspect(raw)
	if claims.Expired(s.now(), s.leeway) {
		return "", ErrExpired
	}
	return raw, nil
}

// Inspect reads the subject and expiry of a JWT without verifying it.
// Anything that does not parse as a JWT is treated as opaque.
func Inspect(raw string) Claims {
	parser := jwt.NewParser()
	var rc jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(raw, &rc); err != nil {
		return Claims{}
	}

	c := Claims{IsJWT: true, Subject: rc.Subject}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c
}
