// Package authgate is an embeddable authentication and session-security core:
// credential login behind a sliding-window throttle, JWT access tokens with
// rotating refresh tokens, a Redis-backed device-session registry, email
// verification by link or one-time code, and a signed password-reset flow.
//
// The engine is assembled once through [Builder.Build] and is safe for
// concurrent use from that point on. Callers supply the pieces the engine
// deliberately does not own: a [CredentialStore] for durable account records,
// an optional [MailService] for outbound messages, and an optional [AuditSink]
// that receives security events without ever blocking the request path.
//
// # Token model
//
// Access tokens are self-contained JWTs and verify without any store lookup.
// Refresh tokens are also JWTs but gain meaning only against the single hash
// stored per user: each refresh atomically swaps that hash for the next one,
// so a replayed token no longer matches and surfaces as [ErrTokenReplayed].
// Revoking a session marks the registry record; access tokens already in the
// wild stay valid until they expire on their own.
//
// # Error contract
//
// Every operation returns one of the sentinel errors in errors.go, wrapped
// with detail. Match with errors.Is; the sentinels are the API, the wrapping
// text is not. Backend outages map to [ErrServiceUnavailable] rather than a
// false negative, with one exception: a throttle-store outage fails open so
// that a Redis blip cannot lock every user out.
package authgate
