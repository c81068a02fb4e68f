package authkit

import (
	"errors"
	"net/http"

	"github.com/santokhan/authkit/jwt"
	"github.com/santokhan/authkit/password"
	"github.com/santokhan/authkit/permission"
)

var (
	// ErrInvalidCredentials is returned when the secret does not match the account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned when no account matches. Repositories return it too.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned by repositories when a unique contact field is taken.
	ErrDuplicate = errors.New("account already exists")
	// ErrTokenInvalid covers malformed tokens and bad signatures.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for correctly signed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrKindMismatch is returned when a token of one kind is presented to an operation of another.
	ErrKindMismatch = jwt.ErrKindMismatch
	// ErrRevoked is returned when a token is valid but no longer the live record in the session store.
	ErrRevoked = errors.New("token revoked")
	// ErrForbidden is returned by role-gated operations.
	ErrForbidden = permission.ErrForbidden
	// ErrDependencyUnavailable wraps session store and repository failures. Nothing is retried.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrDelivery wraps delivery collaborator failures. The issued token stays valid.
	ErrDelivery = errors.New("delivery failed")

	// ErrPasswordPolicy is returned when a new password breaks the composition policy or size cap.
	ErrPasswordPolicy = password.ErrPolicy

	ErrInvalidRequest   = errors.New("invalid request")
	ErrLoginRateLimited = errors.New("login rate limited")
	ErrResetRateLimited = errors.New("password reset rate limited")
	ErrAlreadyVerified  = errors.New("account already verified")
	ErrEngineNotReady   = errors.New("engine not initialized")
)

// HTTPStatus maps an engine error to the status code an HTTP layer should
// answer with. Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrPasswordPolicy):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrKindMismatch),
		errors.Is(err, ErrRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrAlreadyVerified):
		return http.StatusConflict
	case errors.Is(err, ErrLoginRateLimited), errors.Is(err, ErrResetRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrDelivery):
		return http.StatusBadGateway
	case errors.Is(err, ErrDependencyUnavailable), errors.Is(err, ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
