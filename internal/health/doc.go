// Package health provides composable probes and the HTTP handlers the ops
// server mounts at /-/healthy and /-/ready.
//
// Probes combine with [All] (AND), [Any] (OR) and [Fixed] (static).
// [Ping] bounds a dependency round-trip, such as the Mongo connection that
// backs sessions and users, with a short timeout.
//
// [ShutdownGate] fails readiness as soon as shutdown begins so load
// balancers stop routing shoppers here before in-flight requests drain.
package health
