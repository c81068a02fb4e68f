package authkit

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/santokhan/authkit/internal/audit"
	"github.com/santokhan/authkit/internal/rate"
	"github.com/santokhan/authkit/jwt"
	"github.com/santokhan/authkit/password"
	"github.com/santokhan/authkit/permission"
	"github.com/santokhan/authkit/session"
)

// Engine runs the token lifecycle. It is safe for concurrent use once built.
type Engine struct {
	config       Config
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	audit        *audit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	policy       password.Policy
	validate     *validator.Validate
	jwtManager   *jwt.Manager
	repository   AccountRepository
	delivery     Delivery
	logger       *slog.Logger
	now          func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports audit events that never reached the sink. The same
// count is exported as MetricAuditDropped when metrics are enabled.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks the session store connection.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if err := e.sessionStore.Ping(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.jwtManager != nil && e.sessionStore != nil && e.repository != nil
}

// Login checks creds against the stored hash and opens a session: a fresh
// access token plus a refresh token that replaces any earlier one.
func (e *Engine) Login(ctx context.Context, creds Credentials) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}

	contact := creds.Contact.normalized()
	if contact.Empty() || creds.Password == "" {
		return TokenPair{}, fmt.Errorf("%w: contact and password are required", ErrInvalidRequest)
	}
	identifier := contact.Identifier()
	ip := clientIPFromContext(ctx)

	if err := e.rateLimiter.CheckLogin(ctx, identifier, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, nil)
			return TokenPair{}, ErrLoginRateLimited
		}
		return TokenPair{}, storeErr(err)
	}

	account, err := e.repository.FindByContact(ctx, contact)
	if err != nil {
		err = repoErr(err)
		if errors.Is(err, ErrNotFound) {
			e.loginFailed(ctx, identifier, ip, "", err)
		}
		return TokenPair{}, err
	}

	if err := e.passwordHash.Compare(account.PasswordHash, creds.Password); err != nil {
		e.loginFailed(ctx, identifier, ip, account.ID, ErrInvalidCredentials)
		return TokenPair{}, ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin {
		e.upgradeHash(ctx, account, creds.Password)
	}

	pair, err := e.openSession(ctx, account)
	if err != nil {
		return TokenPair{}, err
	}

	if err := e.repository.UpdateLastLogin(ctx, account.ID, e.now().UTC()); err != nil {
		e.logger.WarnContext(ctx, "update last login failed", "account_id", account.ID, "error", err)
	}
	if err := e.rateLimiter.ResetLogin(ctx, identifier); err != nil {
		e.logger.WarnContext(ctx, "reset login counter failed", "error", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.ID, nil, nil)

	return pair, nil
}

func (e *Engine) loginFailed(ctx context.Context, identifier, ip, accountID string, cause error) {
	e.metricInc(MetricLoginFailure)
	if err := e.rateLimiter.IncrementLogin(ctx, identifier, ip); err != nil {
		e.logger.WarnContext(ctx, "count failed login", "error", err)
	}
	e.emitAudit(ctx, auditEventLoginFailure, false, accountID, cause, nil)
}

// upgradeHash rehashes with the current argon2 parameters. Failures are
// logged; the login itself already succeeded.
func (e *Engine) upgradeHash(ctx context.Context, account Account, secret string) {
	needs, err := e.passwordHash.NeedsUpgrade(account.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.passwordHash.Hash(secret)
	if err != nil {
		return
	}
	if err := e.repository.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		e.logger.WarnContext(ctx, "password rehash failed", "account_id", account.ID, "error", err)
		return
	}
	e.metricInc(MetricPasswordRehashed)
}

// openSession issues both tokens and records the refresh token as the one
// live session for the account.
func (e *Engine) openSession(ctx context.Context, account Account) (TokenPair, error) {
	access, err := e.issueAccess(account)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := e.jwtManager.Issue(jwt.Claims{AccountID: account.ID}, jwt.KindRefresh, e.config.JWT.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if err := e.sessionStore.Put(ctx, account.ID, session.NamespaceRefresh, refresh, e.config.JWT.RefreshTTL); err != nil {
		return TokenPair{}, storeErr(err)
	}
	e.metricInc(MetricSessionCreated)

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  e.config.JWT.AccessTTL,
		RefreshExpiresIn: e.config.JWT.RefreshTTL,
	}, nil
}

func (e *Engine) issueAccess(account Account) (string, error) {
	role := account.Role
	if role == "" {
		role = permission.RoleUser
	}
	return e.jwtManager.Issue(jwt.Claims{
		AccountID: account.ID,
		Name:      account.Name,
		Email:     account.Email,
		Phone:     account.Phone,
		Username:  account.Username,
		Role:      string(role),
		Verified:  account.Verified,
	}, jwt.KindAccess, e.config.JWT.AccessTTL)
}

// Refresh exchanges a live refresh token for a new access token built from
// the account's current fields.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}

	pair, accountID, err := e.refresh(ctx, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, accountID, err, nil)
		return TokenPair{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, accountID, nil, nil)
	return pair, nil
}

func (e *Engine) refresh(ctx context.Context, refreshToken string) (TokenPair, string, error) {
	claims, err := e.parseToken(refreshToken, jwt.KindRefresh)
	if err != nil {
		return TokenPair{}, "", err
	}
	id := claims.AccountID

	stored, err := e.sessionStore.Get(ctx, id, session.NamespaceRefresh)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.metricInc(MetricRefreshRevoked)
			return TokenPair{}, id, ErrRevoked
		}
		return TokenPair{}, id, storeErr(err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
		e.metricInc(MetricRefreshRevoked)
		return TokenPair{}, id, ErrRevoked
	}

	account, err := e.repository.FindByID(ctx, id)
	if err != nil {
		err = repoErr(err)
		if errors.Is(err, ErrNotFound) {
			_ = e.sessionStore.Delete(ctx, id, session.NamespaceRefresh)
		}
		return TokenPair{}, id, err
	}

	access, err := e.issueAccess(account)
	if err != nil {
		return TokenPair{}, id, err
	}

	pair := TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshToken,
		AccessExpiresIn:  e.config.JWT.AccessTTL,
		RefreshExpiresIn: e.config.JWT.RefreshTTL,
	}
	if claims.ExpiresAt != nil {
		pair.RefreshExpiresIn = claims.ExpiresAt.Time.Sub(e.now())
	}

	if !e.config.Refresh.RotateOnRefresh {
		return pair, id, nil
	}

	next, err := e.jwtManager.Issue(jwt.Claims{AccountID: id}, jwt.KindRefresh, e.config.JWT.RefreshTTL)
	if err != nil {
		return TokenPair{}, id, err
	}
	swapped, err := e.sessionStore.SwapIfMatch(ctx, id, session.NamespaceRefresh, refreshToken, next, e.config.JWT.RefreshTTL)
	if err != nil {
		return TokenPair{}, id, storeErr(err)
	}
	if !swapped {
		e.metricInc(MetricRefreshRevoked)
		return TokenPair{}, id, ErrRevoked
	}
	e.metricInc(MetricRefreshRotated)

	pair.RefreshToken = next
	pair.RefreshExpiresIn = e.config.JWT.RefreshTTL
	return pair, id, nil
}

// Logout ends the account's session. It accepts the access or the refresh
// token and is idempotent.
//
// Logout policy: an access token deletes the stored refresh record
// unconditionally. A refresh token deletes it only while it is still the
// stored one (compare-and-delete). Logging out with a refresh token that a
// newer login has superseded succeeds without ending that newer session.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(token)
	if err != nil {
		return tokenErr(err)
	}
	id := claims.AccountID

	ended := true
	switch claims.Kind {
	case jwt.KindRefresh:
		consumed, err := e.sessionStore.ConsumeIfMatch(ctx, id, session.NamespaceRefresh, token)
		if err != nil {
			return storeErr(err)
		}
		ended = consumed
	case jwt.KindAccess:
		if err := e.sessionStore.Delete(ctx, id, session.NamespaceRefresh); err != nil {
			return storeErr(err)
		}
	default:
		return fmt.Errorf("%w: %s token cannot log out", ErrKindMismatch, claims.Kind)
	}

	if err := e.sessionStore.Delete(ctx, id, session.NamespaceOnline); err != nil {
		e.logger.WarnContext(ctx, "clear presence failed", "account_id", id, "error", err)
	}

	e.metricInc(MetricLogout)
	if ended {
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogout, true, id, nil, func() map[string]string {
		return map[string]string{"kind": string(claims.Kind), "session_ended": strconv.FormatBool(ended)}
	})
	return nil
}

// Authenticate verifies an access token and returns its claims. It does not
// touch the session store or the repository.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Claims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	claims, err := e.parseToken(accessToken, jwt.KindAccess)

	if !start.IsZero() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return nil, err
	}
	return claims, nil
}

// parseToken decodes tok and requires it to be of kind.
func (e *Engine) parseToken(tok string, kind jwt.Kind) (*Claims, error) {
	claims, err := e.jwtManager.Parse(tok)
	if err != nil {
		return nil, tokenErr(err)
	}
	if err := claims.Require(kind); err != nil {
		return nil, err
	}
	return claims, nil
}

func tokenErr(err error) error {
	if errors.Is(err, jwt.ErrExpired) {
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	}
	return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
}

// repoErr passes the repository's own sentinels through and wraps the rest.
func repoErr(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
}
