// Package rate provides the Redis-backed fixed-window counters behind login
// throttling and password-reset request throttling.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Key layout:
//   - <prefix>:rl:login:<identifier>  failed logins per identifier
//   - <prefix>:rl:login-ip:<ip>       failed logins per client IP
//   - <prefix>:rl:reset:<identifier>  reset requests per identifier
//
// # What this package must NOT do
//
//   - Decide what counts as a failure. The engine calls Increment on failures only.
//   - Be imported outside the authkit module.
package rate
