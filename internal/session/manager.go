package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

const (
	DefaultCookieName = "shop.sid"
	DefaultTTL        = 14 * 24 * time.Hour
)

type Options struct {
	CookieName string
	// Secrets sign the cookie. The first signs new cookies; the rest are
	// still accepted so a secret can be rotated without logging everyone out.
	Secrets [][]byte
	TTL     time.Duration
	Secure  bool
	Domain  string
	// Rolling re-saves and re-sends the cookie on every request.
	Rolling bool
	// OnSave runs after each store write. created is true for a first save.
	OnSave func(created bool)
}

// Manager binds sessions in a Store to a signed cookie.
type Manager struct {
	store  Store
	codecs []securecookie.Codec
	opts   Options
	now    func() time.Time
}

func NewManager(store Store, opts Options) (*Manager, error) {
	if store == nil {
		return nil, xerrors.New("session: store is nil")
	}
	if len(opts.Secrets) == 0 {
		return nil, xerrors.New("session: at least one secret is required")
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	// hash keys only: the value is an opaque id, signing is enough
	pairs := make([][]byte, 0, 2*len(opts.Secrets))
	for _, s := range opts.Secrets {
		if len(s) == 0 {
			return nil, xerrors.New("session: empty secret")
		}
		pairs = append(pairs, s, nil)
	}
	codecs := securecookie.CodecsFromPairs(pairs...)
	for _, c := range codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(int(opts.TTL / time.Second))
			sc.SetSerializer(securecookie.JSONEncoder{})
		}
	}

	return &Manager{store: store, codecs: codecs, opts: opts, now: time.Now}, nil
}

func (m *Manager) CookieName() string { return m.opts.CookieName }

// New returns an unsaved session with a fresh ID.
func (m *Manager) New() (*Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	now := m.now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(m.opts.TTL),
		isNew:     true,
	}, nil
}

// Load resolves the request's session. A missing, forged or expired cookie,
// or one whose session is gone from the store, yields a new unsaved session.
// Only store failures are returned as errors.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return m.New()
	}
	var id string
	if err := securecookie.DecodeMulti(m.opts.CookieName, c.Value, &id, m.codecs...); err != nil || id == "" {
		return m.New()
	}
	s, err := m.store.Load(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return m.New()
	}
	if err != nil {
		return nil, xerrors.Wrap(err, "session: load")
	}
	s.ID = id
	s.isNew = false
	s.modified = false
	return s, nil
}

// Commit persists s and sets the cookie when s was modified, or on every
// call for an existing session when Rolling is set. An untouched new session
// is dropped: no store write and no cookie.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s == nil {
		return nil
	}
	if !s.modified && (s.isNew || !m.opts.Rolling) {
		return nil
	}

	created := s.isNew
	oldID := ""
	if s.rotate {
		newID, err := NewID()
		if err != nil {
			return err
		}
		oldID, s.ID = s.ID, newID
		created = true
	}

	// the old record goes only once the new one is stored
	s.ExpiresAt = m.now().Add(m.opts.TTL)
	if err := m.store.Save(ctx, s); err != nil {
		if oldID != "" {
			s.ID = oldID
		}
		return xerrors.Wrap(err, "session: save")
	}
	if oldID != "" {
		if err := m.store.Delete(ctx, oldID); err != nil {
			return xerrors.Wrap(err, "session: rotate")
		}
	}
	if err := m.setCookie(w, s.ID); err != nil {
		return err
	}

	s.isNew, s.modified, s.rotate = false, false, false
	if m.opts.OnSave != nil {
		m.opts.OnSave(created)
	}
	return nil
}

// Destroy removes s from the store, expires the cookie and resets s to a
// new unsaved session.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s != nil && !s.isNew {
		if err := m.store.Delete(ctx, s.ID); err != nil {
			return xerrors.Wrap(err, "session: destroy")
		}
	}
	http.SetCookie(w, sessions.NewCookie(m.opts.CookieName, "", m.cookieOptions(-1)))
	if s != nil {
		// later writes in the same request start a new session
		fresh, err := m.New()
		if err != nil {
			return err
		}
		*s = *fresh
	}
	return nil
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) error {
	encoded, err := securecookie.EncodeMulti(m.opts.CookieName, id, m.codecs...)
	if err != nil {
		return xerrors.Wrap(err, "session: encode cookie")
	}
	http.SetCookie(w, sessions.NewCookie(m.opts.CookieName, encoded, m.cookieOptions(int(m.opts.TTL/time.Second))))
	return nil
}

func (m *Manager) cookieOptions(maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		Domain:   m.opts.Domain,
		MaxAge:   maxAge,
		Secure:   m.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
