package pipeline

import (
	"context"
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yoshiniks/nodeAppShop/internal/csrf"
	"github.com/yoshiniks/nodeAppShop/internal/log"
	"github.com/yoshiniks/nodeAppShop/internal/session"
	"github.com/yoshiniks/nodeAppShop/internal/static"
	"github.com/yoshiniks/nodeAppShop/internal/upload"
	"github.com/yoshiniks/nodeAppShop/internal/user"
	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

// StaticRoute is recorded as the route pattern of served files.
const StaticRoute = "static"

// Static ends the request when srv serves a public file or an image.
func Static(srv *static.Server) Stage {
	return Stage{Name: "static", Run: func(w http.ResponseWriter, r *http.Request, c *Context) error {
		if !srv.Serve(w, r) {
			return nil
		}
		if rc := chi.RouteContext(r.Context()); rc != nil {
			rc.RoutePatterns = append(rc.RoutePatterns, StaticRoute)
		}
		c.Done()
		return nil
	}}
}

// Form decodes urlencoded bodies into c.Form.
func Form() Stage {
	return Stage{Name: "form", Run: func(w http.ResponseWriter, r *http.Request, c *Context) error {
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/x-www-form-urlencoded" {
			return nil
		}
		if err := r.ParseForm(); err != nil {
			return bodyError(xerrors.Wrap(err, "form: parse body"))
		}
		for k, vs := range r.PostForm {
			c.Form[k] = append(c.Form[k], vs...)
		}
		return nil
	}}
}

// Upload stores the image field of multipart requests and merges the
// other fields into c.Form. A rejected file is not an error.
func Upload(h *upload.Handler) Stage {
	return Stage{Name: "upload", Run: func(w http.ResponseWriter, r *http.Request, c *Context) error {
		res, values, err := h.Handle(r)
		for k, vs := range values {
			c.Form[k] = append(c.Form[k], vs...)
		}
		if err != nil {
			return bodyError(err)
		}
		c.Upload = res
		if res.Kind == upload.Rejected {
			log.FromContext(r.Context()).Debug(r.Context(), "upload rejected", "reason", res.Reason)
		}
		return nil
	}}
}

// Session loads the request's session and arranges for it to be committed
// before the response header is written.
func Session(m *session.Manager) Stage {
	return Stage{Name: "session", Run: func(w http.ResponseWriter, r *http.Request, c *Context) error {
		s, err := m.Load(r)
		if err != nil {
			return err
		}
		c.Session = s
		c.commit = func(ctx context.Context, w http.ResponseWriter) error {
			return m.Commit(ctx, w, c.Session)
		}
		return nil
	}}
}

// CSRF verifies the token on state-changing requests and mints the token
// for this response. onFailure may be nil.
func CSRF(onFailure func()) Stage {
	return Stage{Name: "csrf", Run: func(w http.ResponseWriter, r *http.Request, c *Context) error {
		if c.Session == nil {
			return xerrors.New("csrf: session required")
		}
		secret, err := c.Session.EnsureCSRFSecret()
		if err != nil {
			return err
		}
		if err := csrf.Check(r, c.Form, secret); err != nil {
			if onFailure != nil {
				onFailure()
			}
			return err
		}
		tok, err := csrf.Token(secret)
		if err != nil {
			return err
		}
		c.CSRFToken = tok
		return nil
	}}
}

// Flash enables Context.Flash and Context.Flashes.
func Flash() Stage {
	return Stage{Name: "flash", Run: func(w http.ResponseWriter, r *http.Request, c *Context) error {
		if c.Session == nil {
			return xerrors.New("flash: session required")
		}
		c.flashReady = true
		return nil
	}}
}

// Locals exposes isAuthenticated and csrfToken to every template.
func Locals() Stage {
	return Stage{Name: "locals", Run: func(w http.ResponseWriter, r *http.Request, c *Context) error {
		c.Locals["isAuthenticated"] = c.IsAuthenticated()
		c.Locals["csrfToken"] = c.CSRFToken
		return nil
	}}
}

const (
	IdentityAnonymous = "anonymous"
	IdentityFound     = "found"
	IdentityStale     = "stale"
	IdentityError     = "error"
)

// Identity loads the user referenced by the session into c.User. A
// reference to a user that no longer exists leaves the request
// unauthenticated; the reference itself is kept. record may be nil.
func Identity(users user.Store, record func(outcome string)) Stage {
	if record == nil {
		record = func(string) {}
	}
	return Stage{Name: "identity", Run: func(w http.ResponseWriter, r *http.Request, c *Context) error {
		if c.Session == nil || c.Session.User == nil || c.Session.User.ID == "" {
			record(IdentityAnonymous)
			return nil
		}
		id := c.Session.User.ID
		u, err := users.FindByID(r.Context(), id)
		switch {
		case err == nil:
			c.User = u
			record(IdentityFound)
			return nil
		case errors.Is(err, user.ErrNotFound):
			record(IdentityStale)
			log.FromContext(r.Context()).Debug(r.Context(), "session references missing user", "user.id", id)
			return nil
		default:
			record(IdentityError)
			return xerrors.Wrapf(err, "identity: lookup user %s", id)
		}
	}}
}
