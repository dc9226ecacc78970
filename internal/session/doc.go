// Package session keeps per-visitor state between requests: login status,
// the user reference, queued flash messages and the CSRF secret.
//
// A [Manager] maps the signed session cookie to a [Session] held in a
// [Store]. Sessions are persisted only after something modifies them, so
// crawlers that never render a form never create rows.
//
// Three stores ship with the package: [MongoStore] (the default, sharing the
// catalog database), [RedisStore] and [MemoryStore] for tests and local
// development.
package session
