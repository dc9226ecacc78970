package session

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

// UserRef is a weak reference to a user record. It may outlive the user.
type UserRef struct {
	ID string `json:"_id" bson:"_id"`
}

type Session struct {
	ID         string              `json:"-" bson:"-"`
	IsLoggedIn bool                `json:"isLoggedIn" bson:"isLoggedIn"`
	User       *UserRef            `json:"user,omitempty" bson:"user,omitempty"`
	Flashes    map[string][]string `json:"flash,omitempty" bson:"flash,omitempty"`
	CSRFSecret string              `json:"csrfSecret,omitempty" bson:"csrfSecret,omitempty"`
	CreatedAt  time.Time           `json:"createdAt" bson:"createdAt"`
	ExpiresAt  time.Time           `json:"expiresAt" bson:"expiresAt"`

	isNew    bool
	modified bool
	// rotate asks Commit to move the session to a fresh ID
	rotate bool
}

const (
	idBytes     = 32
	secretBytes = 18
)

// NewID returns 256 random bits, base64url encoded.
func NewID() (string, error) {
	return randomString(idBytes)
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", xerrors.Wrap(err, "session: read random")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// IsNew reports whether the session has never been saved.
func (s *Session) IsNew() bool { return s.isNew }

// Modified reports whether the session changed since it was loaded or saved.
func (s *Session) Modified() bool { return s.modified }

// Login records an authenticated user and schedules an ID rotation so a
// session ID planted before login is useless afterwards.
func (s *Session) Login(userID string) {
	s.IsLoggedIn = true
	s.User = &UserRef{ID: userID}
	s.rotate = !s.isNew
	s.modified = true
}

func (s *Session) Logout() {
	s.IsLoggedIn = false
	s.User = nil
	s.modified = true
}

func (s *Session) AddFlash(kind, msg string) {
	if s.Flashes == nil {
		s.Flashes = make(map[string][]string)
	}
	s.Flashes[kind] = append(s.Flashes[kind], msg)
	s.modified = true
}

// PopFlashes returns and clears the queued messages of kind. Reading an empty
// queue does not modify the session.
func (s *Session) PopFlashes(kind string) []string {
	msgs := s.Flashes[kind]
	if len(msgs) == 0 {
		return nil
	}
	delete(s.Flashes, kind)
	if len(s.Flashes) == 0 {
		s.Flashes = nil
	}
	s.modified = true
	return msgs
}

// EnsureCSRFSecret returns the session's CSRF secret, creating and storing
// one on first use.
func (s *Session) EnsureCSRFSecret() (string, error) {
	if s.CSRFSecret != "" {
		return s.CSRFSecret, nil
	}
	secret, err := randomString(secretBytes)
	if err != nil {
		return "", err
	}
	s.CSRFSecret = secret
	s.modified = true
	return secret, nil
}
