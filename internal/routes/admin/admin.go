// Package admin serves the product management forms.
package admin

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/yoshiniks/nodeAppShop/internal/log"
	"github.com/yoshiniks/nodeAppShop/internal/pipeline"
	"github.com/yoshiniks/nodeAppShop/internal/routes"
)

const msgNotImage = "Attached file is not an image."

var fieldMessages = map[string]string{
	"Title":       "Title must be 3 to 120 characters.",
	"Price":       "Price must be a positive number.",
	"Description": "Description must be 5 to 400 characters.",
}

type productInput struct {
	Title       string  `validate:"required,min=3,max=120"`
	Price       float64 `validate:"gt=0"`
	Description string  `validate:"required,min=5,max=400"`
}

type Handler struct {
	page     routes.Page
	validate *validator.Validate
}

func New(page routes.Page) *Handler {
	return &Handler{page: page, validate: validator.New()}
}

// Register mounts the routes; callers mount it under /admin.
func (h *Handler) Register(r chi.Router) {
	r.Use(routes.RequireLogin)
	r.Get("/add-product", h.getAddProduct)
	r.Post("/add-product", h.postAddProduct)
}

func formData(extra map[string]any) map[string]any {
	data := map[string]any{
		"pageTitle": "Add Product",
		"path":      "/admin/add-product",
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func (h *Handler) getAddProduct(w http.ResponseWriter, r *http.Request) {
	h.page.Render(w, r, http.StatusOK, "admin/edit-product", formData(nil))
}

func (h *Handler) postAddProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := pipeline.FromRequest(r)
	old := map[string]string{
		"title":       c.Form.Get("title"),
		"price":       c.Form.Get("price"),
		"description": c.Form.Get("description"),
	}

	if c.Upload.File == nil {
		h.page.Render(w, r, http.StatusUnprocessableEntity, "admin/edit-product", formData(map[string]any{
			"errorMessage": msgNotImage,
			"oldInput":     old,
		}))
		return
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(old["price"]), 64)
	if err != nil || math.IsInf(price, 0) || math.IsNaN(price) {
		price = 0
	}
	in := productInput{
		Title:       strings.TrimSpace(old["title"]),
		Price:       price,
		Description: strings.TrimSpace(old["description"]),
	}
	if err := h.validate.Struct(in); err != nil {
		h.page.Render(w, r, http.StatusUnprocessableEntity, "admin/edit-product", formData(map[string]any{
			"errorMessage": routes.ValidationMessage(err, fieldMessages, "Invalid input."),
			"oldInput":     old,
		}))
		return
	}

	f := c.Upload.File
	log.FromContext(ctx).Info(ctx, "product submitted",
		"product.title", in.Title,
		"product.price", in.Price,
		"image.path", f.Path,
		"image.size", f.Size,
	)
	http.Redirect(w, r, "/", http.StatusFound)
}
