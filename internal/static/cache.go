package static

import (
	"path"
	"strings"
)

func cacheControlForFile(name string, o *Options) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".html", "":
		return o.HTMLCacheControl
	case ".css", ".js", ".mjs", ".map",
		".woff", ".woff2", ".ttf", ".eot",
		".svg", ".ico":
		return o.AssetCacheControl
	case ".png", ".jpg", ".jpeg", ".webp", ".gif":
		return o.ImageCacheControl
	default:
		return o.OtherCacheControl
	}
}
