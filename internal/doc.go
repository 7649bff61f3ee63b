// Package internal contains helper utilities that are intentionally private
// to authgate: secure random token generation, expiry-string normalization,
// and token hashing.
//
// # Sub-packages
//
//   - throttle: sliding-window login throttle over Redis
//   - stores: refresh-token vault and verification-record store
//
// # What this package must NOT do
//
//   - Export types that appear in the public authgate API.
//   - Be imported by any package outside the authgate module.
package internal
