package authkit

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config holds every engine setting. Start from DefaultConfig and override
// fields; Build validates the result and treats it as immutable afterwards.
type Config struct {
	JWT               JWTConfig
	Session           SessionConfig
	Password          PasswordConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	Refresh           RefreshConfig
	Presence          PresenceConfig
	RateLimit         RateLimitConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig selects the signing key and the access and refresh lifetimes.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the argon2id cost and the composition policy.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	UpgradeOnLogin   bool
	MinLength        int
	RequireLetter    bool
	RequireDigit     bool
}

// PasswordResetConfig configures reset tokens. LinkBaseURL is used when a
// request carries no callback.
//
// AllowedCallbackHosts lists the hosts a request's callback (and the verify
// redirect) may point at, as host or host:port. When empty only the hosts of
// the configured link bases are accepted.
type PasswordResetConfig struct {
	TTL                  time.Duration
	LinkBaseURL          string
	AllowedCallbackHosts []string
}

// EmailVerificationConfig configures verification tokens. LinkBaseURL should
// point at the endpoint that confirms the token.
type EmailVerificationConfig struct {
	TTL         time.Duration
	LinkBaseURL string
}

// RefreshConfig controls what Refresh returns. With RotateOnRefresh every
// refresh replaces the stored refresh token and returns the new one.
type RefreshConfig struct {
	RotateOnRefresh bool
}

// PresenceConfig controls the online heartbeat lifetime.
type PresenceConfig struct {
	TTL time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig drives the fixed-window limiters for failed logins and
// reset requests. A zero maximum disables that limiter.
type RateLimitConfig struct {
	EnableIPThrottle bool
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	MaxResetRequests int
	ResetCooldown    time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a usable configuration without signing keys.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "authkit",
		},
		Session: SessionConfig{
			RedisPrefix: "ak",
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
			UpgradeOnLogin:   true,
			MinLength:        6,
			RequireLetter:    true,
			RequireDigit:     true,
		},
		PasswordReset: PasswordResetConfig{
			TTL:         10 * time.Minute,
			LinkBaseURL: "http://localhost:8080/v1/users/reset",
		},
		EmailVerification: EmailVerificationConfig{
			TTL:         30 * time.Minute,
			LinkBaseURL: "http://localhost:8080/v1/users/verify",
		},
		Presence: PresenceConfig{
			TTL: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			EnableIPThrottle: false,
			MaxLoginAttempts: 5,
			LoginCooldown:    15 * time.Minute,
			MaxResetRequests: 3,
			ResetCooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	if cfg.PasswordReset.AllowedCallbackHosts != nil {
		out.PasswordReset.AllowedCallbackHosts = append([]string(nil), cfg.PasswordReset.AllowedCallbackHosts...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be longer than AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Single-use tokens
	if c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}
	if c.PasswordReset.TTL == c.JWT.AccessTTL {
		return errors.New("PasswordReset TTL must differ from JWT AccessTTL")
	}
	if err := validateLinkBase(c.PasswordReset.LinkBaseURL); err != nil {
		return errors.New("PasswordReset LinkBaseURL " + err.Error())
	}
	for _, host := range c.PasswordReset.AllowedCallbackHosts {
		if host == "" || strings.ContainsAny(host, "/?#@") {
			return errors.New("PasswordReset AllowedCallbackHosts entries must be bare hosts")
		}
	}
	if c.EmailVerification.TTL <= 0 {
		return errors.New("EmailVerification TTL must be > 0")
	}
	if err := validateLinkBase(c.EmailVerification.LinkBaseURL); err != nil {
		return errors.New("EmailVerification LinkBaseURL " + err.Error())
	}

	if c.Presence.TTL <= 0 {
		return errors.New("Presence TTL must be > 0")
	}

	// Rate limits
	if c.RateLimit.MaxLoginAttempts < 0 || c.RateLimit.MaxResetRequests < 0 {
		return errors.New("RateLimit maximums must be >= 0")
	}
	if c.RateLimit.MaxLoginAttempts > 0 && c.RateLimit.LoginCooldown <= 0 {
		return errors.New("RateLimit LoginCooldown must be > 0 when login throttling is enabled")
	}
	if c.RateLimit.MaxResetRequests > 0 && c.RateLimit.ResetCooldown <= 0 {
		return errors.New("RateLimit ResetCooldown must be > 0 when reset throttling is enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func validateLinkBase(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("is not a valid URL")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}
