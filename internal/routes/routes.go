// Package routes holds what the admin, shop and auth route groups share.
package routes

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/yoshiniks/nodeAppShop/internal/pipeline"
)

// Page renders templates for route handlers and hands failures to the
// error terminal.
type Page struct {
	Views    pipeline.Renderer
	Terminal *pipeline.Terminal
}

// Render writes page name with the request's locals under data.
func (p Page) Render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	var locals map[string]any
	if c := pipeline.FromRequest(r); c != nil {
		locals = c.Locals
	}
	if err := p.Views.Render(w, status, name, locals, data); err != nil {
		p.Terminal.Error(w, r, err)
	}
}

// Fail answers with the error page.
func (p Page) Fail(w http.ResponseWriter, r *http.Request, err error) {
	p.Terminal.Error(w, r, err)
}

// RequireLogin sends anonymous visitors to /login.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := pipeline.FromRequest(r)
		if c == nil || !c.IsAuthenticated() {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FirstFlash pops the messages of kind and returns the first, or nil so
// templates skip the message block.
func FirstFlash(c *pipeline.Context, kind string) any {
	if c == nil {
		return nil
	}
	if msgs := c.Flashes(kind); len(msgs) > 0 {
		return msgs[0]
	}
	return nil
}

// ValidationMessage maps the first failed field to its message, falling
// back to def.
func ValidationMessage(err error, messages map[string]string, def string) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		if m, ok := messages[ve[0].StructField()]; ok {
			return m
		}
	}
	return def
}
