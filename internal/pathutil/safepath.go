package pathutil

import (
	"path"
	"strings"
	"unicode"
)

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// maxBaseName keeps stored names well under common filesystem limits once
// the numeric prefix is added.
const maxBaseName = 200

// SafeBaseName reduces a client-supplied file name to its last element. It
// reports false when nothing usable remains: empty, "." or "..", control
// characters, or a name that is still a path after reduction.
func SafeBaseName(name string) (string, bool) {
	// browsers on windows send C:\fakepath\x.png
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	if base == "/" || base == "." || base == ".." || base == "" {
		return "", false
	}
	if strings.ContainsRune(base, '/') || HasDotSegments(base) {
		return "", false
	}
	for _, r := range base {
		if unicode.IsControl(r) {
			return "", false
		}
	}
	if len(base) > maxBaseName {
		ext := path.Ext(base)
		if len(ext) > 16 {
			ext = ""
		}
		base = base[:maxBaseName-len(ext)] + ext
	}
	return base, true
}
