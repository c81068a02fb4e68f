package authkit

import (
	"context"
	"fmt"

	"github.com/santokhan/authkit/jwt"
	"github.com/santokhan/authkit/session"
)

// RequestEmailVerification emails a single-use verification link to the
// account. The link points at the configured verification endpoint and
// carries redirectURL, when set, for the confirm step to send the browser on.
// As with resets, the token is returned for in-process callers only.
func (e *Engine) RequestEmailVerification(ctx context.Context, accountID, redirectURL string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	account, err := e.repository.FindByID(ctx, accountID)
	if err != nil {
		return "", repoErr(err)
	}
	if account.Verified {
		return "", ErrAlreadyVerified
	}
	if err := e.checkRedirect(redirectURL); err != nil {
		return "", err
	}
	if account.Email == "" {
		return "", fmt.Errorf("%w: account has no email", ErrInvalidRequest)
	}
	base, err := parseLinkBase(e.config.EmailVerification.LinkBaseURL)
	if err != nil {
		return "", err
	}

	ttl := e.config.EmailVerification.TTL
	token, err := e.jwtManager.Issue(jwt.Claims{AccountID: account.ID, Email: account.Email}, jwt.KindVerify, ttl)
	if err != nil {
		return "", err
	}
	if err := e.sessionStore.Put(ctx, account.ID, session.NamespaceVerify, token, ttl); err != nil {
		return "", storeErr(err)
	}
	e.metricInc(MetricEmailVerificationRequest)

	to := Recipient{AccountID: account.ID, Name: account.Name, Channel: ChannelEmail, Address: account.Email}
	if err := e.delivery.SendVerificationLink(ctx, to, buildLink(base, token, redirectURL)); err != nil {
		e.metricInc(MetricDeliveryFailure)
		e.logger.WarnContext(ctx, "verification link delivery failed", "account_id", account.ID, "error", err)
		err = fmt.Errorf("%w: %w", ErrDelivery, err)
		e.emitAudit(ctx, auditEventEmailVerificationRequest, false, account.ID, err, nil)
		return token, err
	}

	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, account.ID, nil, nil)
	return token, nil
}

// ConfirmEmailVerification redeems a verification token and marks the
// account verified. Each token works once.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	id, err := e.confirmEmailVerification(ctx, token)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, id, err, nil)
		return err
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, id, nil, nil)
	return nil
}

func (e *Engine) confirmEmailVerification(ctx context.Context, token string) (string, error) {
	claims, err := e.parseToken(token, jwt.KindVerify)
	if err != nil {
		return "", err
	}
	id := claims.AccountID

	consumed, err := e.sessionStore.ConsumeIfMatch(ctx, id, session.NamespaceVerify, token)
	if err != nil {
		return id, storeErr(err)
	}
	if !consumed {
		return id, ErrRevoked
	}

	if err := e.repository.UpdateVerified(ctx, id, true); err != nil {
		return id, repoErr(err)
	}
	return id, nil
}
