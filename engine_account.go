package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/santokhan/authkit/permission"
	"github.com/santokhan/authkit/session"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Register creates an account with role user. The password is checked
// against the policy and stored only as an argon2id hash.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Username = strings.TrimSpace(req.Username)

	if err := e.validate.StructCtx(ctx, req); err != nil {
		err = invalidRequest(err)
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", err, nil)
		return Account{}, err
	}
	if err := e.checkPassword(req.Password); err != nil {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", err, nil)
		return Account{}, err
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return Account{}, err
	}

	now := e.now().UTC()
	created, err := e.repository.Create(ctx, Account{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Username:     req.Username,
		PasswordHash: hash,
		Role:         permission.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		err = repoErr(err)
		if errors.Is(err, ErrDuplicate) {
			e.metricInc(MetricAccountCreationDuplicate)
		}
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", err, nil)
		return Account{}, err
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreated, true, created.ID, nil, nil)
	created.PasswordHash = ""
	return created, nil
}

func invalidRequest(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, ", "))
}

// authorize authenticates accessToken and checks its role against allowed.
func (e *Engine) authorize(ctx context.Context, accessToken string, allowed ...Role) (*Claims, error) {
	claims, err := e.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if err := e.requireRole(ctx, claims, allowed...); err != nil {
		return nil, err
	}
	return claims, nil
}

func (e *Engine) requireRole(ctx context.Context, claims *Claims, allowed ...Role) error {
	role, err := permission.ParseRole(claims.Role)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrForbidden, err)
	} else {
		err = permission.Require(role, allowed...)
	}
	if err != nil {
		e.metricInc(MetricAccessDenied)
		e.emitAudit(ctx, auditEventAccessDenied, false, claims.AccountID, err, func() map[string]string {
			return map[string]string{"role": claims.Role}
		})
		return err
	}
	return nil
}

// ListAccounts pages through accounts. Staff only.
func (e *Engine) ListAccounts(ctx context.Context, accessToken string, opts ListOptions) (AccountPage, error) {
	if !e.ready() {
		return AccountPage{}, ErrEngineNotReady
	}
	if _, err := e.authorize(ctx, accessToken, permission.Staff...); err != nil {
		return AccountPage{}, err
	}

	opts, err := normalizeListOptions(opts)
	if err != nil {
		return AccountPage{}, err
	}

	accounts, total, err := e.repository.List(ctx, opts)
	if err != nil {
		return AccountPage{}, repoErr(err)
	}
	for i := range accounts {
		accounts[i].PasswordHash = ""
	}

	return AccountPage{
		Accounts: accounts,
		Total:    total,
		Skip:     opts.Skip,
		Limit:    opts.Limit,
	}, nil
}

func normalizeListOptions(opts ListOptions) (ListOptions, error) {
	if opts.SortBy == "" {
		opts.SortBy = SortCreatedAt
	}
	if !opts.SortBy.Valid() {
		return opts, fmt.Errorf("%w: cannot sort by %q", ErrInvalidRequest, opts.SortBy)
	}
	switch opts.Order {
	case 0:
		opts.Order = -1
	case 1, -1:
	default:
		return opts, fmt.Errorf("%w: order must be 1 or -1", ErrInvalidRequest)
	}
	if opts.Skip < 0 || opts.Limit < 0 {
		return opts, fmt.Errorf("%w: skip and limit must not be negative", ErrInvalidRequest)
	}
	if opts.Limit == 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	return opts, nil
}

// GetAccount returns one account. Callers may read their own record; staff
// may read any.
func (e *Engine) GetAccount(ctx context.Context, accessToken, id string) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}
	claims, err := e.Authenticate(ctx, accessToken)
	if err != nil {
		return Account{}, err
	}
	if claims.AccountID != id {
		if err := e.requireRole(ctx, claims, permission.Staff...); err != nil {
			return Account{}, err
		}
	}

	account, err := e.repository.FindByID(ctx, id)
	if err != nil {
		return Account{}, repoErr(err)
	}
	account.PasswordHash = ""
	return account, nil
}

// UpdateRole changes an account's role. Super-admin only. The new role shows
// up in access tokens from the next refresh on.
func (e *Engine) UpdateRole(ctx context.Context, accessToken, id string, role Role) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	claims, err := e.authorize(ctx, accessToken, permission.RoleSuperAdmin)
	if err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, role)
	}

	if err := e.repository.UpdateRole(ctx, id, role); err != nil {
		return repoErr(err)
	}

	e.metricInc(MetricAccountRoleChanged)
	e.emitAudit(ctx, auditEventAccountRoleChanged, true, id, nil, func() map[string]string {
		return map[string]string{"role": string(role), "by": claims.AccountID}
	})
	return nil
}

// DeleteAccount removes an account and every live token record it owns.
// Staff only, and only a super-admin may delete a super-admin.
func (e *Engine) DeleteAccount(ctx context.Context, accessToken, id string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	claims, err := e.authorize(ctx, accessToken, permission.Staff...)
	if err != nil {
		return err
	}

	target, err := e.repository.FindByID(ctx, id)
	if err != nil {
		return repoErr(err)
	}
	if target.Role == permission.RoleSuperAdmin {
		if err := e.requireRole(ctx, claims, permission.RoleSuperAdmin); err != nil {
			return err
		}
	}

	if err := e.repository.Delete(ctx, id); err != nil {
		return repoErr(err)
	}
	if err := e.sessionStore.DeleteAll(ctx, id,
		session.NamespaceRefresh,
		session.NamespaceReset,
		session.NamespaceVerify,
		session.NamespaceOnline,
	); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, id, nil, func() map[string]string {
		return map[string]string{"by": claims.AccountID}
	})
	return nil
}
