// Package fingerprint tracks short-lived browser fingerprints and whether
// each one has passed a challenge. Records live in Postgres with a fixed TTL;
// an expired record is indistinguishable from one that never existed, so a
// returning client past the TTL is a first visit again with verification
// reset.
//
// # What this package must NOT do
//
//   - Decide when a challenge is required (the Engine owns that policy).
//   - Slide expiries: reporting an already-live fingerprint never extends it.
//   - Issue or validate access tokens (package token).
package fingerprint
