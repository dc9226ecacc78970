package static

import (
	"io/fs"
	"net/http"
	"strings"
)

type Server struct {
	opts Options
}

func New(opts *Options) (*Server, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Server{opts: *opts}, nil
}

// Serve writes a file response and returns true when the request maps to a
// public asset or an uploaded image. Public assets win over images with the
// same path. Anything else, including non-GET methods, returns false with
// nothing written.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}

	if s.serveFrom(w, r, s.opts.Public, r.URL.Path) {
		return true
	}

	if s.opts.Images == nil {
		return false
	}
	rest, ok := strings.CutPrefix(r.URL.Path, s.opts.ImagesPrefix)
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return false
	}
	images := s.opts.Images(r.Context())
	if images == nil {
		return false
	}
	return s.serveFrom(w, r, images, rest)
}

func (s *Server) serveFrom(w http.ResponseWriter, r *http.Request, fsys fs.FS, urlPath string) bool {
	file, redirectTo, found := resolvePath(urlPath, fsys)
	if !found {
		return false
	}
	if redirectTo != "" {
		if q := r.URL.RawQuery; q != "" {
			redirectTo += "?" + q
		}
		// keep the mount prefix on image redirects
		if prefix := strings.TrimSuffix(r.URL.Path, urlPath); prefix != "" {
			redirectTo = prefix + redirectTo
		}
		http.Redirect(w, r, redirectTo, http.StatusMovedPermanently)
		return true
	}
	if cc := cacheControlForFile(file, &s.opts); cc != "" {
		w.Header().Set("Cache-Control", cc)
	}
	http.ServeFileFS(w, r, fsys, file)
	return true
}
