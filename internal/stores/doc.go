// Package stores holds the Redis-backed record stores behind the engine's
// token flows: the refresh vault (one current refresh-token hash per user,
// rotated by an atomic compare-and-swap) and the verification store
// (pending email-verification links and OTP codes, single-use via GETDEL).
//
// Everything here is persistence only. Token generation, parsing and every
// authentication decision live above, in the engine; this package must not
// import the root authgate package and never sees a plaintext refresh
// token, only its hash.
package stores
