package password

import "errors"

var (
	// ErrMismatch is returned by [Argon2.Compare] when the candidate does not match.
	ErrMismatch = errors.New("password mismatch")
	// ErrPolicy is returned by [Policy.Validate] when a password fails the policy.
	ErrPolicy = errors.New("password policy violation")
	// ErrTooLong is returned when a password exceeds the configured byte limit.
	ErrTooLong = errors.New("password too long")
)
