// Package session is the Redis-backed revocation store. It maps an account
// identity to the one live token it holds in each namespace.
//
// # Key layout
//
//	<prefix>:<namespace>:<identity>  ->  token string, PX <ttl>
//
// At most one record exists per (identity, namespace). Writing a new token
// replaces the previous one, which revokes it even if its signature and
// expiry are still good. Store membership is the source of truth for
// revocation.
//
// Every mutation is a single Redis command or a Lua script, so a concurrent
// login and logout for the same identity cannot interleave.
//
// # What this package must NOT do
//
//   - Import authkit, jwt, or permission (no upward imports).
//   - Parse or validate tokens.
//   - Retry failed Redis calls. Failures wrap [ErrUnavailable] and surface immediately.
package session
