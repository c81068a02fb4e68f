package authkit

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrInvalidRequest, http.StatusBadRequest},
		{ErrPasswordPolicy, http.StatusBadRequest},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrTokenInvalid, http.StatusUnauthorized},
		{ErrTokenExpired, http.StatusUnauthorized},
		{ErrKindMismatch, http.StatusUnauthorized},
		{ErrRevoked, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrDuplicate, http.StatusConflict},
		{ErrAlreadyVerified, http.StatusConflict},
		{ErrLoginRateLimited, http.StatusTooManyRequests},
		{ErrResetRateLimited, http.StatusTooManyRequests},
		{ErrDelivery, http.StatusBadGateway},
		{ErrDependencyUnavailable, http.StatusServiceUnavailable},
		{ErrEngineNotReady, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: wrapped", ErrRevoked), http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestSentinelsDistinct(t *testing.T) {
	all := []error{
		ErrInvalidCredentials, ErrNotFound, ErrDuplicate, ErrTokenInvalid,
		ErrTokenExpired, ErrKindMismatch, ErrRevoked, ErrForbidden,
		ErrDependencyUnavailable, ErrDelivery,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Fatalf("%v must not match %v", a, b)
			}
		}
	}
}

func TestAuditErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrInvalidCredentials, auditErrInvalidCredentials},
		{fmt.Errorf("%w: x", ErrDelivery), auditErrDelivery},
		{fmt.Errorf("%w: x", ErrTokenExpired), auditErrExpiredToken},
		{ErrKindMismatch, auditErrKindMismatch},
		{ErrLoginRateLimited, auditErrRateLimited},
		{fmt.Errorf("%w: x", ErrDependencyUnavailable), auditErrUnavailable},
		{errors.New("other"), auditErrInternal},
	}
	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
