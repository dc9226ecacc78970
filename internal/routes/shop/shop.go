// Package shop serves the storefront pages.
package shop

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yoshiniks/nodeAppShop/internal/pipeline"
	"github.com/yoshiniks/nodeAppShop/internal/routes"
)

type Handler struct {
	page routes.Page
}

func New(page routes.Page) *Handler {
	return &Handler{page: page}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.index)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"pageTitle": "Shop", "path": "/"}
	if c := pipeline.FromRequest(r); c != nil && c.User != nil {
		data["userEmail"] = c.User.Email
	}
	h.page.Render(w, r, http.StatusOK, "shop/index", data)
}
