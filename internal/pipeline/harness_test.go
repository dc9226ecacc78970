package pipeline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/go-chi/chi/v5"

	"github.com/yoshiniks/nodeAppShop/internal/session"
	"github.com/yoshiniks/nodeAppShop/internal/static"
	"github.com/yoshiniks/nodeAppShop/internal/upload"
	"github.com/yoshiniks/nodeAppShop/internal/user"
)

type renderCall struct {
	status int
	name   string
	data   map[string]any
}

// spyRenderer records what would be rendered and writes "page:<name>".
type spyRenderer struct {
	calls []renderCall
	err   error
}

func (s *spyRenderer) Render(w http.ResponseWriter, status int, name string, locals, data map[string]any) error {
	if s.err != nil {
		return s.err
	}
	merged := map[string]any{}
	for k, v := range locals {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}
	s.calls = append(s.calls, renderCall{status: status, name: name, data: merged})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, "page:"+name)
	return nil
}

func (s *spyRenderer) last(t *testing.T) renderCall {
	t.Helper()
	if len(s.calls) == 0 {
		t.Fatal("nothing rendered")
	}
	return s.calls[len(s.calls)-1]
}

type harness struct {
	t         *testing.T
	runner    *Runner
	sessions  *session.Manager
	sessStore *session.MemoryStore
	users     *user.MemoryStore
	views     *spyRenderer
	imagesDir string

	outcomes     []string
	csrfFailures int

	// captured by route handlers
	seen        *Context
	seenNew     bool
	seenLogged  bool
	seenFlashes []string
	routeHits   int
}

// newHarness wires the full stage list. lookup overrides the user store
// used by the identity stage when non-nil.
func newHarness(t *testing.T, lookup user.Store) *harness {
	t.Helper()
	h := &harness{t: t, views: &spyRenderer{}, users: user.NewMemoryStore()}
	if lookup == nil {
		lookup = h.users
	}

	h.sessStore = session.NewMemoryStore(context.Background(), 0)
	mgr, err := session.NewManager(h.sessStore, session.Options{Secrets: [][]byte{[]byte("pipeline-test-secret-0123456789")}})
	if err != nil {
		t.Fatal(err)
	}
	h.sessions = mgr

	h.imagesDir = filepath.Join(t.TempDir(), "images")
	storage, err := upload.NewDiskStorage(h.imagesDir)
	if err != nil {
		t.Fatal(err)
	}
	uploads, err := upload.NewHandler(storage, upload.Options{})
	if err != nil {
		t.Fatal(err)
	}
	srv, err := static.New(&static.Options{
		Public: fstest.MapFS{"css/main.css": {Data: []byte("body{}")}},
		Images: storage.FS,
	})
	if err != nil {
		t.Fatal(err)
	}

	term := NewTerminal(h.views)
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		c := FromRequest(req)
		h.capture(c)
		h.seenFlashes = c.Flashes("error")
		_ = h.views.Render(w, http.StatusOK, "shop/index", c.Locals, map[string]any{"pageTitle": "Shop"})
	})
	r.Post("/admin/add-product", func(w http.ResponseWriter, req *http.Request) {
		h.capture(FromRequest(req))
		_, _ = io.WriteString(w, "ok")
	})
	r.Post("/login", func(w http.ResponseWriter, req *http.Request) {
		c := FromRequest(req)
		h.capture(c)
		u, err := h.users.FindByEmail(req.Context(), c.Form.Get("email"))
		if err != nil {
			c.Flash("error", "Invalid email or password.")
			http.Redirect(w, req, "/login", http.StatusFound)
			return
		}
		c.Session.Login(u.ID)
		http.Redirect(w, req, "/", http.StatusFound)
	})
	r.Get("/500", term.ServerError)
	r.NotFound(term.NotFound)

	h.runner, err = New(r, term,
		Static(srv),
		Form(),
		Upload(uploads),
		Session(mgr),
		CSRF(func() { h.csrfFailures++ }),
		Flash(),
		Locals(),
		Identity(lookup, func(o string) { h.outcomes = append(h.outcomes, o) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func (h *harness) capture(c *Context) {
	h.routeHits++
	h.seen = c
	h.seenNew = c.Session.IsNew()
	h.seenLogged = c.Session.IsLoggedIn
}

func (h *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.runner.ServeHTTP(rec, req)
	return rec
}

// visit loads the shop index without a cookie and returns the issued
// session cookie and the page's CSRF token.
func (h *harness) visit() (*http.Cookie, string) {
	h.t.Helper()
	rec := h.serve(httptest.NewRequest("GET", "/", http.NoBody))
	c := sessionCookie(rec)
	if c == nil {
		h.t.Fatal("first visit issued no session cookie")
	}
	return c, h.seen.CSRFToken
}

// sessionFor persists a session logged in as userID and returns its cookie.
func (h *harness) sessionFor(userID string) *http.Cookie {
	h.t.Helper()
	s, err := h.sessions.New()
	if err != nil {
		h.t.Fatal(err)
	}
	s.Login(userID)
	rec := httptest.NewRecorder()
	if err := h.sessions.Commit(context.Background(), rec, s); err != nil {
		h.t.Fatal(err)
	}
	return sessionCookie(rec)
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	return nil
}

func withCookie(req *http.Request, c *http.Cookie) *http.Request {
	if c != nil {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req
}

func postForm(target string, form url.Values, c *http.Cookie) *http.Request {
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return withCookie(req, c)
}
