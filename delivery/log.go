package delivery

import (
	"context"
	"log/slog"

	"github.com/santokhan/authkit"
)

// LogSender logs links instead of sending them. It always succeeds.
type LogSender struct {
	logger *slog.Logger
}

var _ authkit.Delivery = (*LogSender)(nil)

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendResetLink(ctx context.Context, to authkit.Recipient, link string) error {
	s.log(ctx, KindPasswordReset, to, link)
	return nil
}

func (s *LogSender) SendVerificationLink(ctx context.Context, to authkit.Recipient, link string) error {
	s.log(ctx, KindEmailVerification, to, link)
	return nil
}

func (s *LogSender) log(ctx context.Context, kind Kind, to authkit.Recipient, link string) {
	s.logger.InfoContext(ctx, "link delivery",
		slog.String("type", string(kind)),
		slog.String("account_id", to.AccountID),
		slog.String("channel", string(to.Channel)),
		slog.String("address", to.Address),
		slog.String("link", link),
	)
}
