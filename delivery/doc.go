// Package delivery provides authkit.Delivery implementations.
//
//   - [KafkaPublisher] emits a link event for a downstream notification
//     service.
//   - [SMTPSender] mails links directly and rejects SMS recipients.
//   - [LogSender] writes links to a slog.Logger for local development.
package delivery
