// Package permission is the role guard: a flat, stateless predicate over the
// role claim of a decoded access token.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authkit, jwt, or session.
//   - Decode tokens. Callers pass the role they already verified.
package permission
