package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yoshiniks/nodeAppShop/internal/pipeline"
	"github.com/yoshiniks/nodeAppShop/internal/routes"
	"github.com/yoshiniks/nodeAppShop/internal/routes/admin"
	"github.com/yoshiniks/nodeAppShop/internal/routes/auth"
	"github.com/yoshiniks/nodeAppShop/internal/routes/shop"
	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

// NewApp assembles the storefront: the stage list in request order, then
// the admin, shop and auth route groups, then the 404 terminal.
func NewApp(opts *AppOptions) (*pipeline.Runner, error) {
	if opts.Uploads == nil || opts.Sessions == nil || opts.Users == nil || opts.Views == nil {
		return nil, xerrors.New("httpserver: uploads, sessions, users and views are required")
	}

	term := pipeline.NewTerminal(opts.Views)
	page := routes.Page{Views: opts.Views, Terminal: term}

	authRoutes, err := auth.New(auth.Options{
		Page:     page,
		Users:    opts.Users,
		Sessions: opts.Sessions,
		Limit:    opts.AuthLimit,
	})
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(routesOf(r), middleware.GetHead)
	r.Route("/admin", admin.New(page).Register)
	shop.New(page).Register(r)
	authRoutes.Register(r)
	r.Get("/500", term.ServerError)
	r.NotFound(term.NotFound)
	r.MethodNotAllowed(term.NotFound)

	stages := make([]pipeline.Stage, 0, 8)
	if opts.Static != nil {
		stages = append(stages, pipeline.Static(opts.Static))
	}
	stages = append(stages,
		pipeline.Form(),
		pipeline.Upload(opts.Uploads),
		pipeline.Session(opts.Sessions),
		pipeline.CSRF(opts.OnCSRFFailure),
		pipeline.Flash(),
		pipeline.Locals(),
		pipeline.Identity(opts.Users, opts.OnIdentity),
	)
	return pipeline.New(r, term, stages...)
}

// routesOf points the route context at r. chi leaves Routes unset when it
// reuses the context of an outer router, and GetHead matches against it.
func routesOf(r chi.Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if rctx := chi.RouteContext(req.Context()); rctx != nil {
				rctx.Routes = r
			}
			next.ServeHTTP(w, req)
		})
	}
}
