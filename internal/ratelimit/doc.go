// Package ratelimit throttles credential endpoints with per-key token
// buckets, keyed by client IP unless told otherwise.
//
// The limiter is in-memory and per-instance. It slows password guessing
// against /login and signup floods from a single address. It does not stop
// attacks spread across many addresses; that belongs upstream.
package ratelimit
