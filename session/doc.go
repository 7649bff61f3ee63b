// Package session is the device-session registry: one record per
// authenticated device, kept in Redis and indexed by user and by the jti of
// the session's current access token.
//
// Records are plain JSON documents. The [Store] owns every Redis operation;
// the [Session] model carries classification fields (device type, browser)
// derived from the login User-Agent by [ClassifyDevice] and
// [ClassifyBrowser].
//
// Revocation is terminal: a revoked record keeps its reason and stays
// readable until its natural expiry so listings can show what was revoked,
// but its token index entry is dropped immediately. Revoking a session does
// not retract access tokens that were already issued against it; those age
// out on their own.
//
// This package does not parse JWTs and makes no authentication decisions.
// It must not import the root authgate package.
package session
