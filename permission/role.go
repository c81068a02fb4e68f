package permission

import (
	"errors"
	"fmt"
	"strings"
)

// ErrForbidden is returned by Require when the role is not allowed.
var ErrForbidden = errors.New("forbidden")

// ErrUnknownRole is returned by ParseRole for values outside the enumeration.
var ErrUnknownRole = errors.New("unknown role")

// Role is an account role.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

// Staff is the set of roles allowed to manage other accounts.
var Staff = []Role{RoleAdmin, RoleSuperAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole validates s. Surrounding whitespace and case are ignored.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Require returns nil when role is one of allowed, and ErrForbidden otherwise.
// An empty allowed list forbids everything.
func Require(role Role, allowed ...Role) error {
	for _, a := range allowed {
		if role == a {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q", ErrForbidden, role)
}
