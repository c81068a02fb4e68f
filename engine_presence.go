package authkit

import (
	"context"
	"time"

	"github.com/santokhan/authkit/session"
)

// MarkOnline records a presence heartbeat for the access token's account.
// The record lapses after Config.Presence.TTL without another heartbeat.
func (e *Engine) MarkOnline(ctx context.Context, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	claims, err := e.Authenticate(ctx, accessToken)
	if err != nil {
		return err
	}

	at := e.now().UTC().Format(time.RFC3339)
	if err := e.sessionStore.Put(ctx, claims.AccountID, session.NamespaceOnline, at, e.config.Presence.TTL); err != nil {
		return storeErr(err)
	}
	e.metricInc(MetricPresenceHeartbeat)
	return nil
}

// IsOnline reports whether accountID sent a heartbeat within the presence TTL.
func (e *Engine) IsOnline(ctx context.Context, accountID string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	ok, err := e.sessionStore.Exists(ctx, accountID, session.NamespaceOnline)
	if err != nil {
		return false, storeErr(err)
	}
	return ok, nil
}
