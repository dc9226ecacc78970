package pipeline

import (
	"errors"
	"net/http"

	"github.com/yoshiniks/nodeAppShop/internal/log"
)

// Renderer writes a named template with status. locals are merged under data.
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, locals, data map[string]any) error
}

// StatusError carries the status the terminal should answer with.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// StatusOf returns the status carried by err, 500 when none.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) && se.Status >= 400 {
		return se.Status
	}
	return http.StatusInternalServerError
}

// bodyError maps an oversized body to 413.
func bodyError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return &StatusError{Status: http.StatusRequestEntityTooLarge, Err: err}
	}
	return err
}

// Terminal renders the 404 and 500 pages and turns stage and handler
// errors into responses.
type Terminal struct {
	views Renderer
}

func NewTerminal(views Renderer) *Terminal {
	return &Terminal{views: views}
}

func pageData(r *http.Request, title, path string) (locals, data map[string]any) {
	authed := false
	if c := FromRequest(r); c != nil {
		locals = c.Locals
		authed = c.IsAuthenticated()
	}
	return locals, map[string]any{
		"pageTitle":       title,
		"path":            path,
		"isAuthenticated": authed,
	}
}

// NotFound answers routes nothing matched.
func (t *Terminal) NotFound(w http.ResponseWriter, r *http.Request) {
	locals, data := pageData(r, "Page Not Found", "/404")
	if err := t.views.Render(w, http.StatusNotFound, "404", locals, data); err != nil {
		log.FromContext(r.Context()).Error(r.Context(), err, "render 404 page")
		http.NotFound(w, r)
	}
}

// ServerError renders the error page for GET /500.
func (t *Terminal) ServerError(w http.ResponseWriter, r *http.Request) {
	t.renderError(w, r, http.StatusInternalServerError)
}

// Error logs err once and answers with the error page. A StatusError below
// 500 keeps its status; everything else is a 500.
func (t *Terminal) Error(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := StatusOf(err)
	L := log.FromContext(ctx)
	if status < http.StatusInternalServerError {
		L.Warn(ctx, "request rejected", "http.response.status_code", status, "error", err.Error())
	} else {
		status = http.StatusInternalServerError
		L.Error(ctx, err, "request failed")
	}
	t.renderError(w, r, status)
}

func (t *Terminal) renderError(w http.ResponseWriter, r *http.Request, status int) {
	locals, data := pageData(r, "Error!", "/500")
	if err := t.views.Render(w, status, "500", locals, data); err != nil {
		log.FromContext(r.Context()).Error(r.Context(), err, "render error page")
		http.Error(w, http.StatusText(status), status)
	}
}
