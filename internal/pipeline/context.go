package pipeline

import (
	"context"
	"net/http"
	"net/url"

	"github.com/yoshiniks/nodeAppShop/internal/session"
	"github.com/yoshiniks/nodeAppShop/internal/upload"
	"github.com/yoshiniks/nodeAppShop/internal/user"
)

// Context is the per-request state threaded through the stages and handed
// to route handlers.
type Context struct {
	// Form holds the decoded body fields. Query parameters are not merged.
	Form   url.Values
	Upload upload.Result
	// Session is nil until the session stage has run.
	Session   *session.Session
	CSRFToken string
	// Locals are merged into every rendered template.
	Locals map[string]any
	// User is set only when the session references an existing user.
	User *user.User

	done       bool
	flashReady bool
	commit     func(ctx context.Context, w http.ResponseWriter) error
}

func newContext() *Context {
	return &Context{Form: url.Values{}, Locals: map[string]any{}}
}

// Done marks the response as written; no later stage or handler runs.
func (c *Context) Done() { c.done = true }

// IsAuthenticated reports the session's logged-in flag.
func (c *Context) IsAuthenticated() bool {
	return c.Session != nil && c.Session.IsLoggedIn
}

// Flash queues msg under kind for a later request. It does nothing before
// the flash stage has run.
func (c *Context) Flash(kind, msg string) {
	if !c.flashReady {
		return
	}
	c.Session.AddFlash(kind, msg)
}

// Flashes drains the messages queued under kind.
func (c *Context) Flashes(kind string) []string {
	if !c.flashReady {
		return nil
	}
	return c.Session.PopFlashes(kind)
}

type ctxKey struct{}

// WithContext returns a copy of ctx carrying c.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromRequest returns the pipeline Context of r, or nil outside the pipeline.
func FromRequest(r *http.Request) *Context {
	c, _ := r.Context().Value(ctxKey{}).(*Context)
	return c
}
