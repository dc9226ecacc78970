package httpmw

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/yoshiniks/nodeAppShop/internal/log"
	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

// Recover turns a panic anywhere below it into a logged error and a plain
// 500. http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recover(L log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if L == nil {
		L = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if onPanic != nil {
					onPanic()
				}

				var err error
				switch v := rec.(type) {
				case error:
					err = xerrors.Wrap(v, "panic")
				default:
					err = xerrors.Newf("panic: %v", v)
				}
				L.With(
					"request_id", RequestIDFromContext(r.Context()),
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
				).Error(r.Context(), err, "httpserver panic recovered", "panic_stack", string(debug.Stack()))

				w.Header().Set("Cache-Control", "no-store")
				http.Error(w, fmt.Sprintf("%d %s", http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
