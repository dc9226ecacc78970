// Package views renders the storefront's server-side pages.
//
// Every page is executed through the shared layout. Data is the request's
// locals overlaid with the handler's own values, so isAuthenticated and
// csrfToken are always present.
package views

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

//go:embed templates
var embedded embed.FS

const (
	layoutFile = "templates/layout.html"
	pagesDir   = "templates/pages"
)

type Renderer struct {
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	return NewFromFS(embedded)
}

// NewFromFS parses a tree laid out like the embedded one: a layout plus
// one file per page under templates/pages. Page names are the paths below
// that directory without the .html suffix.
func NewFromFS(fsys fs.FS) (*Renderer, error) {
	pages := make(map[string]*template.Template)
	err := fs.WalkDir(fsys, pagesDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".html" {
			return nil
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, pagesDir+"/"), ".html")
		t, err := template.New(name).ParseFS(fsys, layoutFile, p)
		if err != nil {
			return xerrors.Wrapf(err, "views: parse %s", p)
		}
		pages[name] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, xerrors.New("views: no pages found")
	}
	return &Renderer{pages: pages}, nil
}

// Render executes page name into a buffer and writes it with status. On
// error nothing is written.
func (v *Renderer) Render(w http.ResponseWriter, status int, name string, locals, data map[string]any) error {
	t, ok := v.pages[name]
	if !ok {
		return xerrors.Newf("views: unknown page %q", name)
	}

	merged := map[string]any{
		"isAuthenticated": false,
		"csrfToken":       "",
		"path":            "",
		"pageTitle":       "",
		"oldInput":        map[string]string{},
	}
	for k, val := range locals {
		merged[k] = val
	}
	for k, val := range data {
		merged[k] = val
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", merged); err != nil {
		return xerrors.Wrapf(err, "views: execute %s", name)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
