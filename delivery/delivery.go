package delivery

import (
	"errors"

	"github.com/santokhan/authkit"
)

// ErrUnsupportedChannel is returned when a sender cannot reach the
// recipient's channel.
var ErrUnsupportedChannel = errors.New("delivery: unsupported channel")

// Kind names the link being delivered.
type Kind string

const (
	KindPasswordReset     Kind = "password_reset"
	KindEmailVerification Kind = "email_verification"
)

func subject(kind Kind) string {
	if kind == KindEmailVerification {
		return "Verify your email address"
	}
	return "Reset your password"
}

func body(kind Kind, to authkit.Recipient, link string) string {
	greeting := "Hello"
	if to.Name != "" {
		greeting += " " + to.Name
	}
	if kind == KindEmailVerification {
		return greeting + ",\r\n\r\nConfirm your email address by opening:\r\n\r\n" + link + "\r\n"
	}
	return greeting + ",\r\n\r\nReset your password by opening:\r\n\r\n" + link + "\r\n\r\nIf you did not ask for this, ignore this message.\r\n"
}
