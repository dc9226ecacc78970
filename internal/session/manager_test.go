package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// failingStore fails every call with err.
type failingStore struct{ err error }

func (f failingStore) Load(context.Context, string) (*Session, error) { return nil, f.err }
func (f failingStore) Save(context.Context, *Session) error           { return f.err }
func (f failingStore) Delete(context.Context, string) error           { return f.err }

func newManager(t *testing.T, opts Options) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(context.Background(), 0)
	if opts.Secrets == nil {
		opts.Secrets = [][]byte{testSecret}
	}
	m, err := NewManager(store, opts)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, store
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func requestWith(c *http.Cookie) *http.Request {
	req := httptest.NewRequest("GET", "/", http.NoBody)
	if c != nil {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req
}

func TestNewManager_Validation(t *testing.T) {
	store := NewMemoryStore(context.Background(), 0)
	if _, err := NewManager(nil, Options{Secrets: [][]byte{testSecret}}); err == nil {
		t.Fatal("nil store accepted")
	}
	if _, err := NewManager(store, Options{}); err == nil {
		t.Fatal("missing secret accepted")
	}
	if _, err := NewManager(store, Options{Secrets: [][]byte{testSecret, {}}}); err == nil {
		t.Fatal("empty secret accepted")
	}
	m, err := NewManager(store, Options{Secrets: [][]byte{testSecret}})
	if err != nil || m.CookieName() != DefaultCookieName {
		t.Fatalf("defaults: %v %q", err, m.CookieName())
	}
}

func TestLoad_NoCookieYieldsNewSession(t *testing.T) {
	m, _ := newManager(t, Options{})
	s, err := m.Load(requestWith(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsNew() || s.Modified() || s.ID == "" || s.IsLoggedIn {
		t.Fatalf("new session = %+v", s)
	}
}

func TestCommit_UnmodifiedNewSessionIsDropped(t *testing.T) {
	m, store := newManager(t, Options{})
	s, _ := m.Load(requestWith(nil))
	rec := httptest.NewRecorder()
	if err := m.Commit(context.Background(), rec, s); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 0 {
		t.Fatal("unmodified new session was persisted")
	}
	if rec.Header().Get("Set-Cookie") != "" {
		t.Fatal("cookie set for an unmodified new session")
	}
}

func TestCommit_ModifiedSessionPersistsAndReloads(t *testing.T) {
	var saves []bool
	m, store := newManager(t, Options{Secure: true, OnSave: func(created bool) { saves = append(saves, created) }})

	s, _ := m.Load(requestWith(nil))
	s.Login("64b7f0c2a1b2c3d4e5f60718")
	rec := httptest.NewRecorder()
	if err := m.Commit(context.Background(), rec, s); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Fatalf("store has %d sessions", store.Len())
	}
	c := sessionCookie(t, rec, DefaultCookieName)
	if c == nil {
		t.Fatal("no session cookie")
	}
	if !c.HttpOnly || !c.Secure || c.Path != "/" || c.SameSite != http.SameSiteLaxMode || c.MaxAge <= 0 {
		t.Fatalf("cookie attributes: %+v", c)
	}
	if strings.Contains(c.Value, s.ID) {
		t.Fatal("cookie must carry the signed value, not the raw id")
	}

	again, err := m.Load(requestWith(c))
	if err != nil {
		t.Fatal(err)
	}
	if again.IsNew() || again.ID != s.ID || !again.IsLoggedIn || again.User.ID != "64b7f0c2a1b2c3d4e5f60718" {
		t.Fatalf("reloaded = %+v", again)
	}
	if len(saves) != 1 || !saves[0] {
		t.Fatalf("OnSave calls = %v", saves)
	}
}

func TestCommit_ExistingUnmodifiedSessionNotResaved(t *testing.T) {
	var saves int
	m, _ := newManager(t, Options{OnSave: func(bool) { saves++ }})
	s, _ := m.Load(requestWith(nil))
	s.AddFlash("info", "hi")
	rec := httptest.NewRecorder()
	_ = m.Commit(context.Background(), rec, s)

	loaded, _ := m.Load(requestWith(sessionCookie(t, rec, DefaultCookieName)))
	rec2 := httptest.NewRecorder()
	if err := m.Commit(context.Background(), rec2, loaded); err != nil {
		t.Fatal(err)
	}
	if saves != 1 || rec2.Header().Get("Set-Cookie") != "" {
		t.Fatalf("saves=%d set-cookie=%q", saves, rec2.Header().Get("Set-Cookie"))
	}
}

func TestCommit_RollingResavesExisting(t *testing.T) {
	m, _ := newManager(t, Options{Rolling: true})
	s, _ := m.Load(requestWith(nil))
	s.AddFlash("info", "hi")
	rec := httptest.NewRecorder()
	_ = m.Commit(context.Background(), rec, s)
	before := s.ExpiresAt

	m.now = func() time.Time { return time.Now().Add(time.Minute) }
	loaded, _ := m.Load(requestWith(sessionCookie(t, rec, DefaultCookieName)))
	rec2 := httptest.NewRecorder()
	_ = m.Commit(context.Background(), rec2, loaded)
	if sessionCookie(t, rec2, DefaultCookieName) == nil || !loaded.ExpiresAt.After(before) {
		t.Fatal("rolling session should refresh expiry and cookie")
	}

	fresh, _ := m.Load(requestWith(nil))
	rec3 := httptest.NewRecorder()
	_ = m.Commit(context.Background(), rec3, fresh)
	if rec3.Header().Get("Set-Cookie") != "" {
		t.Fatal("rolling must not persist uninitialized sessions")
	}
}

func TestLoad_TamperedOrUnknownCookie(t *testing.T) {
	m, _ := newManager(t, Options{})
	other, _ := newManager(t, Options{Secrets: [][]byte{[]byte("ffffffffffffffffffffffffffffffff")}})

	s, _ := other.Load(requestWith(nil))
	s.AddFlash("info", "x")
	rec := httptest.NewRecorder()
	_ = other.Commit(context.Background(), rec, s)
	foreign := sessionCookie(t, rec, DefaultCookieName)

	for _, c := range []*http.Cookie{
		{Name: DefaultCookieName, Value: "garbage"},
		foreign,
	} {
		got, err := m.Load(requestWith(c))
		if err != nil {
			t.Fatalf("cookie %q: %v", c.Value, err)
		}
		if !got.IsNew() {
			t.Fatalf("cookie %q should yield a new session", c.Value)
		}
	}
}

func TestLoad_CookieForDeletedSession(t *testing.T) {
	m, store := newManager(t, Options{})
	s, _ := m.Load(requestWith(nil))
	s.AddFlash("info", "x")
	rec := httptest.NewRecorder()
	_ = m.Commit(context.Background(), rec, s)
	_ = store.Delete(context.Background(), s.ID)

	got, err := m.Load(requestWith(sessionCookie(t, rec, DefaultCookieName)))
	if err != nil || !got.IsNew() || got.ID == s.ID {
		t.Fatalf("got %+v err %v", got, err)
	}
}

func TestLoad_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("mongo: connection reset")
	signer, _ := newManager(t, Options{})
	s, _ := signer.Load(requestWith(nil))
	s.AddFlash("info", "x")
	rec := httptest.NewRecorder()
	_ = signer.Commit(context.Background(), rec, s)

	m, _ := NewManager(failingStore{err: boom}, Options{Secrets: [][]byte{testSecret}})
	if _, err := m.Load(requestWith(sessionCookie(t, rec, DefaultCookieName))); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want store error", err)
	}

	fresh, _ := m.New()
	fresh.AddFlash("info", "x")
	if err := m.Commit(context.Background(), httptest.NewRecorder(), fresh); !errors.Is(err, boom) {
		t.Fatalf("commit err = %v", err)
	}
}

func TestSecretRotation(t *testing.T) {
	oldSecret := []byte("old-secret-old-secret-old-secret")
	oldMgr, store := newManager(t, Options{Secrets: [][]byte{oldSecret}})
	s, _ := oldMgr.Load(requestWith(nil))
	s.AddFlash("info", "x")
	rec := httptest.NewRecorder()
	_ = oldMgr.Commit(context.Background(), rec, s)

	rotated, _ := NewManager(store, Options{Secrets: [][]byte{testSecret, oldSecret}})
	got, err := rotated.Load(requestWith(sessionCookie(t, rec, DefaultCookieName)))
	if err != nil || got.IsNew() || got.ID != s.ID {
		t.Fatalf("cookie signed with the previous secret rejected: %+v %v", got, err)
	}
}

func TestCommit_LoginRotatesID(t *testing.T) {
	m, store := newManager(t, Options{})
	s, _ := m.Load(requestWith(nil))
	_, _ = s.EnsureCSRFSecret()
	rec := httptest.NewRecorder()
	_ = m.Commit(context.Background(), rec, s)
	oldID := s.ID

	loaded, _ := m.Load(requestWith(sessionCookie(t, rec, DefaultCookieName)))
	loaded.Login("u1")
	rec2 := httptest.NewRecorder()
	if err := m.Commit(context.Background(), rec2, loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.ID == oldID {
		t.Fatal("id not rotated on login")
	}
	if _, err := store.Load(context.Background(), oldID); !errors.Is(err, ErrNotFound) {
		t.Fatal("pre-login session still stored")
	}
	after, _ := m.Load(requestWith(sessionCookie(t, rec2, DefaultCookieName)))
	if !after.IsLoggedIn || after.CSRFSecret != s.CSRFSecret {
		t.Fatalf("rotated session lost state: %+v", after)
	}
}

// saveFailStore rejects writes and passes everything else to Store.
type saveFailStore struct {
	Store
	err error
}

func (f saveFailStore) Save(context.Context, *Session) error { return f.err }

func TestCommit_FailedRotationKeepsOldSession(t *testing.T) {
	m, store := newManager(t, Options{})
	s, _ := m.Load(requestWith(nil))
	_, _ = s.EnsureCSRFSecret()
	rec := httptest.NewRecorder()
	_ = m.Commit(context.Background(), rec, s)
	oldID := s.ID

	boom := errors.New("mongo: write concern")
	failing, _ := NewManager(saveFailStore{Store: store, err: boom}, Options{Secrets: [][]byte{testSecret}})
	loaded, _ := failing.Load(requestWith(sessionCookie(t, rec, DefaultCookieName)))
	loaded.Login("u1")
	rec2 := httptest.NewRecorder()
	if err := failing.Commit(context.Background(), rec2, loaded); !errors.Is(err, boom) {
		t.Fatalf("commit err = %v", err)
	}
	if loaded.ID != oldID {
		t.Fatalf("id = %q, want old id kept", loaded.ID)
	}
	if _, err := store.Load(context.Background(), oldID); err != nil {
		t.Fatalf("old session lost: %v", err)
	}
	if sessionCookie(t, rec2, DefaultCookieName) != nil {
		t.Fatal("cookie set after failed save")
	}
}

func TestDestroy(t *testing.T) {
	m, store := newManager(t, Options{})
	s, _ := m.Load(requestWith(nil))
	s.Login("u1")
	rec := httptest.NewRecorder()
	_ = m.Commit(context.Background(), rec, s)
	oldID := s.ID

	loaded, _ := m.Load(requestWith(sessionCookie(t, rec, DefaultCookieName)))
	rec2 := httptest.NewRecorder()
	if err := m.Destroy(context.Background(), rec2, loaded); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 0 {
		t.Fatal("destroyed session still stored")
	}
	c := sessionCookie(t, rec2, DefaultCookieName)
	if c == nil || c.MaxAge >= 0 {
		t.Fatalf("cookie not expired: %+v", c)
	}
	if loaded.IsLoggedIn || !loaded.IsNew() || loaded.ID == oldID {
		t.Fatalf("session not reset: %+v", loaded)
	}
}
