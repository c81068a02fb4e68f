// Package middleware adapts authkit.Engine to net/http.
//
// # Guards
//
//   - [Guard] verifies the bearer access token and stores its claims in the
//     request context.
//   - [RequireRole] runs after Guard and rejects callers whose role is not allowed.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly. The Engine does that.
//   - Touch Redis or the account repository.
package middleware
