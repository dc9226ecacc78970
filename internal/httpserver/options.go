package httpserver

import (
	"net/http"

	"github.com/yoshiniks/nodeAppShop/internal/health"
	"github.com/yoshiniks/nodeAppShop/internal/httpmw"
	"github.com/yoshiniks/nodeAppShop/internal/log"
	"github.com/yoshiniks/nodeAppShop/internal/pipeline"
	"github.com/yoshiniks/nodeAppShop/internal/session"
	"github.com/yoshiniks/nodeAppShop/internal/static"
	"github.com/yoshiniks/nodeAppShop/internal/upload"
	"github.com/yoshiniks/nodeAppShop/internal/user"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions
	// MaxBodyBytes caps request bodies. 0 leaves them uncapped.
	MaxBodyBytes int64
	Health       health.Probe
	Readiness    health.Probe
	// App serves everything the probe routes don't, normally the storefront
	// pipeline from NewApp.
	App http.Handler
}

// AppOptions are the collaborators of the storefront pipeline.
type AppOptions struct {
	// Static is optional; without it public files and images are not served.
	Static   *static.Server
	Uploads  *upload.Handler
	Sessions *session.Manager
	Users    user.Store
	Views    pipeline.Renderer
	// AuthLimit wraps POST /login and POST /signup.
	AuthLimit func(http.Handler) http.Handler

	OnCSRFFailure func()
	OnIdentity    func(outcome string)
}
