// Package internal contains helper utilities that are intentionally private to goShield,
// including secure random token generation.
//
// # Sub-packages
//
//   - rate — core Redis-backed request-budget primitives
//
// # What this package must NOT do
//
//   - Export types that appear in the public goShield API.
//   - Be imported by any package outside the goShield module.
package internal
