// Package csrf derives per-request tokens from a per-session secret and
// checks them on state-changing requests.
//
// A token is an 8 character salt, a dash, and the base64url HMAC-SHA256 of
// the salt keyed by the session secret. Every rendered page gets a fresh
// salt; any token minted from the same secret verifies.
package csrf
