package authkit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/santokhan/authkit/internal/rate"
	"github.com/santokhan/authkit/jwt"
	"github.com/santokhan/authkit/session"
)

// RequestPasswordReset issues a reset token for the account matching req,
// stores it as the only redeemable one and delivers a link carrying it.
//
// The token is returned for in-process callers. It must never be written to
// an HTTP response. When delivery fails the token is still returned, still
// valid, and the error wraps ErrDelivery.
func (e *Engine) RequestPasswordReset(ctx context.Context, req ResetRequest) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	contact := req.Contact.normalized()
	if contact.Empty() {
		return "", fmt.Errorf("%w: email, phone or username is required", ErrInvalidRequest)
	}
	base, err := e.resetLinkBase(req.CallbackURL)
	if err != nil {
		return "", err
	}
	if err := e.checkRedirect(req.RedirectURL); err != nil {
		return "", err
	}

	if err := e.allowReset(ctx, contact.Identifier()); err != nil {
		return "", err
	}

	account, err := e.repository.FindByContact(ctx, contact)
	if err != nil {
		return "", repoErr(err)
	}

	ttl := e.config.PasswordReset.TTL
	token, err := e.jwtManager.Issue(jwt.Claims{AccountID: account.ID}, jwt.KindReset, ttl)
	if err != nil {
		return "", err
	}
	if err := e.sessionStore.Put(ctx, account.ID, session.NamespaceReset, token, ttl); err != nil {
		return "", storeErr(err)
	}
	e.metricInc(MetricPasswordResetRequest)

	err = e.deliverReset(ctx, account, contact, buildLink(base, token, req.RedirectURL))
	e.emitAudit(ctx, auditEventPasswordResetRequest, err == nil, account.ID, err, nil)
	return token, err
}

// ResendPasswordReset delivers the currently stored reset token again. No new
// token is minted; ErrRevoked means there is nothing live to resend.
func (e *Engine) ResendPasswordReset(ctx context.Context, req ResetRequest) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	contact := req.Contact.normalized()
	if contact.Empty() {
		return fmt.Errorf("%w: email, phone or username is required", ErrInvalidRequest)
	}
	base, err := e.resetLinkBase(req.CallbackURL)
	if err != nil {
		return err
	}
	if err := e.checkRedirect(req.RedirectURL); err != nil {
		return err
	}

	if err := e.allowReset(ctx, contact.Identifier()); err != nil {
		return err
	}

	account, err := e.repository.FindByContact(ctx, contact)
	if err != nil {
		return repoErr(err)
	}

	token, err := e.sessionStore.Get(ctx, account.ID, session.NamespaceReset)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrRevoked
		}
		return storeErr(err)
	}

	err = e.deliverReset(ctx, account, contact, buildLink(base, token, req.RedirectURL))
	e.emitAudit(ctx, auditEventPasswordResetResend, err == nil, account.ID, err, nil)
	return err
}

// ConfirmPasswordReset redeems a reset token and sets the new password. The
// token is consumed atomically, so of two concurrent confirmations at most
// one succeeds. The account's refresh session is ended afterwards.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	id, err := e.confirmPasswordReset(ctx, token, newPassword)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, id, err, nil)
		return err
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, id, nil, nil)
	return nil
}

func (e *Engine) confirmPasswordReset(ctx context.Context, token, newPassword string) (string, error) {
	claims, err := e.parseToken(token, jwt.KindReset)
	if err != nil {
		return "", err
	}
	id := claims.AccountID

	if err := e.checkPassword(newPassword); err != nil {
		return id, err
	}

	consumed, err := e.sessionStore.ConsumeIfMatch(ctx, id, session.NamespaceReset, token)
	if err != nil {
		return id, storeErr(err)
	}
	if !consumed {
		return id, ErrRevoked
	}

	// The token is spent from here on. A failure below means the user asks
	// for a new link.
	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return id, err
	}
	if err := e.repository.UpdatePasswordHash(ctx, id, hash); err != nil {
		return id, repoErr(err)
	}

	if err := e.sessionStore.Delete(ctx, id, session.NamespaceRefresh); err != nil {
		e.logger.ErrorContext(ctx, "revoke session after password reset failed", "account_id", id, "error", err)
	} else {
		e.metricInc(MetricSessionInvalidated)
	}
	return id, nil
}

// checkPassword applies the composition policy and the hasher's size cap.
func (e *Engine) checkPassword(secret string) error {
	if err := e.policy.Validate(secret); err != nil {
		return err
	}
	if limit := e.config.Password.MaxPasswordBytes; limit > 0 && len(secret) > limit {
		return fmt.Errorf("%w: password exceeds %d bytes", ErrPasswordPolicy, limit)
	}
	return nil
}

func (e *Engine) allowReset(ctx context.Context, identifier string) error {
	if err := e.rateLimiter.AllowReset(ctx, identifier); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricPasswordResetRateLimited)
			return ErrResetRateLimited
		}
		return storeErr(err)
	}
	return nil
}

// deliverReset sends by SMS when the lookup was by phone or the account has
// no email, and by email otherwise.
func (e *Engine) deliverReset(ctx context.Context, account Account, lookup Contact, link string) error {
	to := Recipient{AccountID: account.ID, Name: account.Name, Channel: ChannelEmail, Address: account.Email}
	if (lookup.Phone != "" && lookup.Email == "") || account.Email == "" {
		to.Channel = ChannelSMS
		to.Address = account.Phone
	}

	if err := e.delivery.SendResetLink(ctx, to, link); err != nil {
		e.metricInc(MetricDeliveryFailure)
		e.logger.WarnContext(ctx, "reset link delivery failed", "account_id", account.ID, "channel", string(to.Channel), "error", err)
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

// resetLinkBase picks the request's callback when set, otherwise the
// configured link base. A callback must be an absolute http(s) URL on an
// allowed host.
func (e *Engine) resetLinkBase(callback string) (*url.URL, error) {
	if callback == "" {
		return parseLinkBase(e.config.PasswordReset.LinkBaseURL)
	}
	u, err := parseLinkBase(callback)
	if err != nil {
		return nil, err
	}
	if !e.hostAllowed(u.Host) {
		return nil, fmt.Errorf("%w: callback host %q is not allowed", ErrInvalidRequest, u.Host)
	}
	return u, nil
}

// RedirectAllowed reports whether raw is an absolute http(s) URL on a host
// listed in PasswordReset.AllowedCallbackHosts, or on a configured link
// base host when that list is empty.
func (e *Engine) RedirectAllowed(raw string) bool {
	if e == nil || raw == "" {
		return false
	}
	u, err := parseLinkBase(raw)
	return err == nil && e.hostAllowed(u.Host)
}

// checkRedirect accepts an empty redirect or one RedirectAllowed admits.
func (e *Engine) checkRedirect(raw string) error {
	if raw != "" && !e.RedirectAllowed(raw) {
		return fmt.Errorf("%w: redirect host is not allowed", ErrInvalidRequest)
	}
	return nil
}

func (e *Engine) hostAllowed(host string) bool {
	allowed := e.config.PasswordReset.AllowedCallbackHosts
	if len(allowed) == 0 {
		allowed = make([]string, 0, 2)
		for _, raw := range []string{e.config.PasswordReset.LinkBaseURL, e.config.EmailVerification.LinkBaseURL} {
			if u, err := url.Parse(raw); err == nil {
				allowed = append(allowed, u.Host)
			}
		}
	}
	for _, h := range allowed {
		if h != "" && strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}

func parseLinkBase(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: callback must be an absolute http(s) URL", ErrInvalidRequest)
	}
	return u, nil
}

// buildLink appends token and, when set, redirect to base's query.
func buildLink(base *url.URL, token, redirect string) string {
	u := *base
	q := u.Query()
	q.Set("token", token)
	if redirect != "" {
		q.Set("redirect", redirect)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
