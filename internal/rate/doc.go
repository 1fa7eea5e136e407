// Package rate provides internal primitives used to build Redis-backed request
// budgets for the four trust boundaries of the bot-mitigation engine.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key layout is
// <prefix>:<policy>:<key>, where <policy> is one of:
//   - pub — public unauthenticated traffic, per IP
//   - fp  — fingerprint-bearing traffic, per IP
//   - usr — authenticated fingerprint reporting, per user+IP
//   - adm — admin operations, per IP
//
// # What this package must NOT do
//
//   - Decide fail-open/fail-closed policy (the Engine owns that).
//   - Be imported outside the goShield module.
package rate
