// Package token mints and validates the opaque access tokens handed out
// after a successful challenge. Tokens are random, carry no claims, and are
// bound to the fingerprint they were minted for. Expiry is fixed at mint
// time: validation refreshes a last-seen timestamp but never extends the
// token's life.
//
// # What this package must NOT do
//
//   - Encode identity or claims into the token (opaque random bytes, not a
//     JWT).
//   - Slide expiries on use.
//   - Verify challenges (package captcha) or track fingerprints (package
//     fingerprint).
package token
