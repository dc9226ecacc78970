// Package pipeline runs the storefront's per-request stages in a fixed
// order ahead of the route handlers:
//
//	static, form, upload, session, csrf, flash, locals, identity
//
// Each stage reads and fills the request's Context. A stage returning an
// error ends the request through the Terminal; a stage that has written a
// response calls Context.Done. The session, once loaded, is committed just
// before the response header goes out, so a redirect issued by a handler
// already carries the session cookie.
package pipeline
