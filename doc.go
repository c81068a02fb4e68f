// Package authkit is an account token lifecycle engine. It issues, verifies,
// rotates and revokes identity tokens, and drives single-use tokens for
// password-reset and email-verification links.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Engine], [Builder], [Config], the
// [AccountRepository] and [Delivery] collaborator contracts, and the error
// taxonomy. Token encoding lives in jwt, revocation state in session, secret
// hashing in password and the role predicate in permission.
//
// Revocation is decided by session store membership, never by signature and
// expiry alone. A refresh, reset or verification token is only usable while it
// is the live record for its (identity, namespace) pair.
//
// # What this package must NOT do
//
//   - Expose Redis clients or internal stores in its public API.
//   - Retry repository or store failures. They surface as [ErrDependencyUnavailable].
//   - Return a reset or verification token to an HTTP caller. The token is
//     returned to Go callers for out-of-band use only.
package authkit
