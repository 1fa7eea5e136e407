// Package banlist implements the IP/CIDR ban subsystem: a durable Postgres
// store as source of truth, a Redis fast-path cache for hot "is banned"
// checks, and the bidirectional reconciliation between them.
//
// # Consistency model
//
// The two backends are allowed to diverge between sync cycles. Reconciliation
// is idempotent and commutative: the longest remaining ban wins, and
// descriptive metadata is only ever taken from the durable side. A false
// negative on the fast path therefore delays enforcement by at most one sync
// interval; it never grants access past what the durable store would.
//
// # What this package must NOT do
//
//   - Decide rate-limit or verification policy (the Engine owns flows).
//   - Block bans on cache availability: the cache degrades latency, not
//     correctness.
package banlist
