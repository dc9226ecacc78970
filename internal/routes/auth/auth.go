// Package auth serves login, signup and logout.
package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/yoshiniks/nodeAppShop/internal/log"
	"github.com/yoshiniks/nodeAppShop/internal/pipeline"
	"github.com/yoshiniks/nodeAppShop/internal/routes"
	"github.com/yoshiniks/nodeAppShop/internal/session"
	"github.com/yoshiniks/nodeAppShop/internal/user"
	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

const (
	msgBadLogin    = "Invalid email or password."
	msgEmailExists = "E-Mail exists already, please pick a different one."
)

var fieldMessages = map[string]string{
	"Email":           "Please enter a valid email.",
	"Password":        "Please enter a password with only numbers and text and at least 5 characters.",
	"ConfirmPassword": "Passwords have to match!",
}

type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,max=72"`
}

type signupInput struct {
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=5,max=72,alphanum"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

type Options struct {
	Page     routes.Page
	Users    user.Store
	Sessions *session.Manager
	// Limit wraps the credential-checking POST routes. Optional.
	Limit func(http.Handler) http.Handler
}

type Handler struct {
	page     routes.Page
	users    user.Store
	sessions *session.Manager
	limit    func(http.Handler) http.Handler
	validate *validator.Validate
}

func New(opts Options) (*Handler, error) {
	if opts.Users == nil || opts.Sessions == nil {
		return nil, xerrors.New("auth: users and sessions are required")
	}
	limit := opts.Limit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		page:     opts.Page,
		users:    opts.Users,
		sessions: opts.Sessions,
		limit:    limit,
		validate: validator.New(),
	}, nil
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/login", h.getLogin)
	r.Get("/signup", h.getSignup)
	r.With(h.limit).Post("/login", h.postLogin)
	r.With(h.limit).Post("/signup", h.postSignup)
	r.Post("/logout", h.postLogout)
}

func (h *Handler) getLogin(w http.ResponseWriter, r *http.Request) {
	h.page.Render(w, r, http.StatusOK, "auth/login", map[string]any{
		"pageTitle":    "Login",
		"path":         "/login",
		"errorMessage": routes.FirstFlash(pipeline.FromRequest(r), "error"),
	})
}

func (h *Handler) getSignup(w http.ResponseWriter, r *http.Request) {
	h.page.Render(w, r, http.StatusOK, "auth/signup", map[string]any{
		"pageTitle":    "Signup",
		"path":         "/signup",
		"errorMessage": routes.FirstFlash(pipeline.FromRequest(r), "error"),
	})
}

func (h *Handler) postLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := pipeline.FromRequest(r)
	in := loginInput{Email: user.NormalizeEmail(c.Form.Get("email")), Password: c.Form.Get("password")}

	if err := h.validate.Struct(in); err != nil {
		h.page.Render(w, r, http.StatusUnprocessableEntity, "auth/login", map[string]any{
			"pageTitle":    "Login",
			"path":         "/login",
			"errorMessage": routes.ValidationMessage(err, fieldMessages, msgBadLogin),
			"oldInput":     map[string]string{"email": in.Email},
		})
		return
	}

	u, err := h.users.FindByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		h.page.Fail(w, r, xerrors.Wrap(err, "auth: find user"))
		return
	}
	if err != nil || !user.CheckPassword(u.PasswordHash, in.Password) {
		c.Flash("error", msgBadLogin)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	c.Session.Login(u.ID)
	log.FromContext(ctx).Info(ctx, "user logged in", "user.id", u.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) postSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := pipeline.FromRequest(r)
	in := signupInput{
		Email:           user.NormalizeEmail(c.Form.Get("email")),
		Password:        c.Form.Get("password"),
		ConfirmPassword: c.Form.Get("confirmPassword"),
	}

	if err := h.validate.Struct(in); err != nil {
		h.page.Render(w, r, http.StatusUnprocessableEntity, "auth/signup", map[string]any{
			"pageTitle":    "Signup",
			"path":         "/signup",
			"errorMessage": routes.ValidationMessage(err, fieldMessages, "Invalid input."),
			"oldInput":     map[string]string{"email": in.Email},
		})
		return
	}

	hash, err := user.HashPassword(in.Password)
	if err != nil {
		h.page.Fail(w, r, err)
		return
	}
	err = h.users.Create(ctx, &user.User{Email: in.Email, PasswordHash: hash})
	if errors.Is(err, user.ErrEmailTaken) {
		c.Flash("error", msgEmailExists)
		http.Redirect(w, r, "/signup", http.StatusFound)
		return
	}
	if err != nil {
		h.page.Fail(w, r, xerrors.Wrap(err, "auth: create user"))
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handler) postLogout(w http.ResponseWriter, r *http.Request) {
	c := pipeline.FromRequest(r)
	if err := h.sessions.Destroy(r.Context(), w, c.Session); err != nil {
		h.page.Fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
