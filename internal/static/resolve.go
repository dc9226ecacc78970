package static

import (
	"io/fs"
	"path"
	"strings"

	"github.com/yoshiniks/nodeAppShop/internal/pathutil"
)

// resolvePath maps a URL path to a file within fsys.
//
// Returns:
// - file: relative file path within fsys (no leading slash)
// - redirectTo: if non-empty, caller should redirect to this URL path
// - ok: whether the mapping is valid/found
//
// A directory is only served through its index.html. "/" is left to the
// router unless the public tree ships an index.html.
func resolvePath(urlPath string, fsys fs.FS) (file string, redirectTo string, ok bool) {
	p := urlPath
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	if strings.Contains(p, "\x00") || strings.Contains(p, "\\") {
		return "", "", false
	}
	if pathutil.HasDotSegments(p) {
		return "", "", false
	}

	trailingSlash := strings.HasSuffix(p, "/")
	clean := path.Clean(p)

	if clean == "/" || trailingSlash {
		name := strings.TrimPrefix(clean, "/")
		if name == "" {
			name = "index.html"
		} else {
			name += "/index.html"
		}
		if existsFile(fsys, name) {
			return name, "", true
		}
		return "", "", false
	}

	name := strings.TrimPrefix(clean, "/")
	if existsFile(fsys, name) {
		return name, "", true
	}

	// directory without slash: redirect to the canonical form
	if path.Ext(clean) == "" && existsFile(fsys, name+"/index.html") {
		return "", clean + "/", true
	}
	return "", "", false
}

func existsFile(fsys fs.FS, name string) bool {
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
