package authkit

import (
	"context"
	"strings"
	"time"

	"github.com/santokhan/authkit/jwt"
	"github.com/santokhan/authkit/permission"
)

// Claims is the decoded payload of an authkit token.
type Claims = jwt.Claims

// Role is an account role. See the permission package for the enumeration.
type Role = permission.Role

// Account is the record owned by the AccountRepository. At least one of
// Email and Phone is set. Each contact field is unique when set.
type Account struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Username     string     `json:"username,omitempty"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Verified     bool       `json:"verified"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Contact selects an account by one of its unique fields. Lookups use the
// first non-empty field in the order Email, Phone, Username.
type Contact struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Username string `json:"username,omitempty"`
}

// Empty reports whether no field is set.
func (c Contact) Empty() bool {
	return c.Email == "" && c.Phone == "" && c.Username == ""
}

// Identifier returns the field a lookup will use.
func (c Contact) Identifier() string {
	switch {
	case c.Email != "":
		return c.Email
	case c.Phone != "":
		return c.Phone
	default:
		return c.Username
	}
}

func (c Contact) normalized() Contact {
	return Contact{
		Email:    strings.ToLower(strings.TrimSpace(c.Email)),
		Phone:    strings.TrimSpace(c.Phone),
		Username: strings.TrimSpace(c.Username),
	}
}

// Credentials are presented to Login.
type Credentials struct {
	Contact
	Password string `json:"password"`
}

// TokenPair is returned by Login and Refresh. RefreshToken is the presented
// token on Refresh unless rotation is enabled.
type TokenPair struct {
	AccessToken      string        `json:"access_token"`
	RefreshToken     string        `json:"refresh_token"`
	AccessExpiresIn  time.Duration `json:"-"`
	RefreshExpiresIn time.Duration `json:"-"`
}

// ResetRequest starts a password reset. CallbackURL overrides the configured
// link base and RedirectURL is carried in the link. Both must name a host
// allowed by PasswordResetConfig.AllowedCallbackHosts.
type ResetRequest struct {
	Contact
	CallbackURL string `json:"callback,omitempty"`
	RedirectURL string `json:"redirect,omitempty"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"max=128"`
	Email    string `json:"email" validate:"required_without=Phone,omitempty,email,max=254"`
	Phone    string `json:"phone" validate:"required_without=Email,omitempty,e164"`
	Username string `json:"username" validate:"omitempty,min=3,max=64,alphanum"`
	Password string `json:"password" validate:"required,max=1024"`
}

// SortField names a column accounts can be listed by.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
	SortEmail     SortField = "email"
	SortName      SortField = "name"
	SortPhone     SortField = "phone"
)

// Valid reports whether f is a listable column.
func (f SortField) Valid() bool {
	switch f {
	case SortCreatedAt, SortUpdatedAt, SortEmail, SortName, SortPhone:
		return true
	}
	return false
}

// ListOptions pages through accounts. Order is 1 for ascending and -1 for
// descending. Zero values select created_at, descending, limit 20.
type ListOptions struct {
	SortBy SortField
	Order  int
	Skip   int
	Limit  int
}

// AccountPage is one page of ListAccounts.
type AccountPage struct {
	Accounts []Account `json:"users"`
	Total    int       `json:"total"`
	Skip     int       `json:"skip"`
	Limit    int       `json:"limit"`
}

// AccountRepository is the persistence contract for account records. Absent
// records are reported as ErrNotFound and unique-field conflicts as
// ErrDuplicate. Any other error is treated as a dependency failure.
type AccountRepository interface {
	FindByContact(ctx context.Context, contact Contact) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	// Create persists a new account atomically. No partial record may remain on failure.
	Create(ctx context.Context, account Account) (Account, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateVerified(ctx context.Context, id string, verified bool) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateRole(ctx context.Context, id string, role Role) error
	List(ctx context.Context, opts ListOptions) ([]Account, int, error)
	Delete(ctx context.Context, id string) error
}

// Channel is the medium a link is delivered over.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Recipient is where a delivery goes.
type Recipient struct {
	AccountID string
	Name      string
	Channel   Channel
	Address   string
}

// Delivery sends links out of band. Errors are reported to the caller wrapped
// in ErrDelivery and never roll back token issuance.
type Delivery interface {
	SendResetLink(ctx context.Context, to Recipient, link string) error
	SendVerificationLink(ctx context.Context, to Recipient, link string) error
}
