// Package static serves the storefront's public assets and uploaded product
// images.
//
// Unlike a plain file server it reports whether it handled the request, so
// the pipeline can continue to the router when no file matches.
package static
