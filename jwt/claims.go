package jwt

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Kind tags the purpose of a token.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindReset   Kind = "reset"
	KindVerify  Kind = "verify"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindReset, KindVerify:
		return true
	}
	return false
}

// Claims is the payload of every token. AccountID and Kind are always
// present. The profile fields are a snapshot taken at issue time and are not
// guaranteed fresh.
type Claims struct {
	AccountID string `json:"id"`
	Kind      Kind   `json:"kind"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role,omitempty"`
	Verified  bool   `json:"verified,omitempty"`
	jwt.RegisteredClaims
}

// Require returns ErrKindMismatch unless the claims were issued as kind.
func (c *Claims) Require(kind Kind) error {
	if c.Kind != kind {
		return fmt.Errorf("%w: want %s, got %s", ErrKindMismatch, kind, c.Kind)
	}
	return nil
}

// checkRequired enforces the per-kind claim set.
func (c *Claims) checkRequired() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, c.Kind)
	}
	if c.AccountID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformed)
	}
	if c.ExpiresAt == nil {
		return fmt.Errorf("%w: missing exp", ErrMalformed)
	}

	switch c.Kind {
	case KindAccess:
		if c.Role == "" {
			return fmt.Errorf("%w: access token missing role", ErrMalformed)
		}
	case KindRefresh, KindReset, KindVerify:
	}
	return nil
}
