package jwt

import "errors"

var (
	// ErrMalformed reports a token that cannot be decoded or is missing a
	// claim its kind requires.
	ErrMalformed = errors.New("token malformed")
	// ErrSignatureInvalid reports a token whose signature or key id does not verify.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrExpired reports a correctly signed token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrKindMismatch reports a valid token presented to an operation of another kind.
	ErrKindMismatch = errors.New("token kind mismatch")
)
