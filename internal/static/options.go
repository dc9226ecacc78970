package static

import (
	"context"
	"errors"
	"io/fs"
	"strings"
)

var ErrInvalidOptions = errors.New("static: invalid options")

// FSFunc yields the filesystem to serve from for one request. Remote
// backends use ctx for their round-trips.
type FSFunc func(ctx context.Context) fs.FS

// Fixed serves the same filesystem for every request.
func Fixed(fsys fs.FS) FSFunc {
	return func(context.Context) fs.FS { return fsys }
}

type Options struct {
	// Public is served at "/". Required.
	Public fs.FS
	// Images is served under ImagesPrefix. Optional.
	Images       FSFunc
	ImagesPrefix string // default: "/images"

	HTMLCacheControl  string // default: "no-cache"
	AssetCacheControl string // default: "public, max-age=86400"
	ImageCacheControl string // default: "public, max-age=86400"
	OtherCacheControl string // default: "public, max-age=3600"
}

func (o *Options) setDefaults() {
	if o.ImagesPrefix == "" {
		o.ImagesPrefix = "/images"
	}
	o.ImagesPrefix = "/" + strings.Trim(o.ImagesPrefix, "/")
	if o.HTMLCacheControl == "" {
		o.HTMLCacheControl = "no-cache"
	}
	// css and js are not fingerprinted, so no immutable
	if o.AssetCacheControl == "" {
		o.AssetCacheControl = "public, max-age=86400"
	}
	if o.ImageCacheControl == "" {
		o.ImageCacheControl = "public, max-age=86400"
	}
	if o.OtherCacheControl == "" {
		o.OtherCacheControl = "public, max-age=3600"
	}
}

func (o *Options) validate() error {
	if o.Public == nil {
		return errors.Join(ErrInvalidOptions, errors.New("Public is nil"))
	}
	if o.ImagesPrefix == "/" {
		return errors.Join(ErrInvalidOptions, errors.New("ImagesPrefix must not be the root"))
	}
	return nil
}
