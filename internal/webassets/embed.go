// Package webassets embeds the default storefront stylesheet and scripts so
// the binary can serve a usable site when no public directory is configured.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed public
var embedded embed.FS

// PublicFS returns the embedded public/ tree.
func PublicFS() fs.FS {
	sub, err := fs.Sub(embedded, "public")
	if err != nil {
		panic(fmt.Errorf("webassets: public subfs: %w", err))
	}
	return sub
}

// Public returns dir as a filesystem when it is set and exists, otherwise
// the embedded assets. The bool reports whether dir was used.
func Public(dir string) (fs.FS, bool) {
	if dir == "" {
		return PublicFS(), false
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return PublicFS(), false
	}
	return os.DirFS(dir), true
}
