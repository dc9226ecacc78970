package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yoshiniks/nodeAppShop/internal/health"
	"github.com/yoshiniks/nodeAppShop/internal/httpmw"
	"github.com/yoshiniks/nodeAppShop/internal/log"
	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

// untracedExt are asset extensions served by the static stage; tracing them
// only adds noise next to the page spans.
var untracedExt = map[string]bool{
	".css": true, ".js": true, ".map": true, ".ico": true, ".svg": true,
	".png": true, ".jpg": true, ".jpeg": true, ".woff": true, ".woff2": true,
}

func traced(r *http.Request) bool {
	p := r.URL.Path
	switch {
	case p == "/-/healthy", p == "/-/ready", p == "/favicon.ico", p == "/robots.txt":
		return false
	case strings.HasPrefix(p, "/images/"):
		return false
	}
	return !untracedExt[strings.ToLower(path.Ext(p))]
}

// NewHandler builds the storefront handler: probe routes, then opts.App for
// everything else, inside the shared middleware stack. main() owns
// *http.Server so it can do graceful shutdown.
func NewHandler(opts *Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Compress(5, "text/html", "text/css", "application/javascript", "text/javascript"),
		// rename span and annotate logger once the pattern is known
		httpmw.AnnotateHTTPRoute,
		httpmw.AccessLog(),
	)
	if opts.MaxBodyBytes > 0 {
		r.Use(httpmw.MaxBody(opts.MaxBodyBytes))
	}

	// probes answer before any session or csrf work
	if opts.Health != nil {
		r.Get("/-/healthy", health.HealthzHandler(opts.Health))
	}
	if opts.Readiness != nil {
		r.Get("/-/ready", health.ReadyzHandler(opts.Readiness))
	}

	// the pipeline renders its own 404 page
	if opts.App != nil {
		r.NotFound(opts.App.ServeHTTP)
		r.MethodNotAllowed(opts.App.ServeHTTP)
	}

	var recoverMW func(http.Handler) http.Handler
	if opts.UseRecoverMW {
		recoverMW = httpmw.Recover(opts.Logger, opts.OnPanic)
	}

	// outermost first
	return httpmw.Chain(r,
		// served on every response, panics included
		httpmw.SecurityHeaders,
		recoverMW,
		httpmw.RequestID("X-Request-Id"),
		// resolved once so the auth limiter and the logs agree on the client
		httpmw.ClientIPWithOptions(opts.ClientIPOpts),
		otelMiddleware,
		httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id"),
		// the route context must exist before metrics so the pattern is readable afterwards
		httpmw.EnsureRouteContext,
		opts.MetricsMW,
		httpmw.WithLogger(opts.Logger),
	)
}

func otelMiddleware(next http.Handler) http.Handler {
	return otelhttp.NewHandler(
		next,
		"http.server",
		otelhttp.WithFilter(traced),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			// AnnotateHTTPRoute renames the span to the route pattern later
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
	)
}

// Server timeout defaults. Uploads need the longer read window.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MB
)

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
}

// ShutdownTimeout bounds how long stop waits for in-flight requests, which
// may include slow uploads.
const ShutdownTimeout = 5 * time.Second

// Start listens on opts.Port (3000 when unset) and serves NewHandler(opts)
// in the background. The returned stop is idempotent.
func Start(ctx context.Context, opts *Options) (func(context.Context) error, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	L := opts.Logger
	port := opts.Port
	if port == 0 {
		port = 3000
	}
	addr := fmt.Sprintf(":%d", port)

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp4", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "listen %s", addr)
	}
	srv := NewServer(addr, NewHandler(opts))

	go func() {
		L.Info(ctx, "storefront listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			L.Error(ctx, err, "storefront server error")
		}
	}()

	var once sync.Once
	return func(sctx context.Context) (retErr error) {
		once.Do(func() {
			L.Info(sctx, "storefront shutting down")
			c, cancel := context.WithTimeout(sctx, ShutdownTimeout)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}, nil
}
