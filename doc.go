// Package goShield provides a bot-mitigation engine: captcha-backed client
// verification, short-lived fingerprint and access-token tracking, and a
// dual-backend IP/CIDR ban list with a durable Postgres source of truth and
// a Redis fast path.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goShield is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (VerifyResult, BanCheck, SchedulerStatus, etc.). Provider
// clients live in captcha/, the ban subsystem in banlist/, and the durable
// fingerprint and token registries in their own packages; rate limiting and
// token generation live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, SQL, or record encodings in its public API.
//   - Perform I/O outside of Engine and Scheduler methods (construction via
//     Builder is allocation-only until Build, and Build only validates).
//   - Block a request on a degraded backend: rate limiting fails open, ban
//     checks fall back and then default to not-banned.
//
// # Performance contract
//
// IsBanned and CheckAccessToken are the hot paths. IsBanned answers from the
// Redis cache with a single round-trip when the cache holds the verdict;
// CheckAccessToken is one Postgres statement.
package goShield
