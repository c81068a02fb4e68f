package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/santokhan/authkit"
)

type config struct {
	Addr            string        `env:"AUTHD_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"AUTHD_LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"AUTHD_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// DatabaseURL empty selects the in-memory repository.
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"memory"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"ak"`

	JWTSecret     string        `env:"JWT_SECRET,required"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"authkit"`
	AccessTTL     time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`
	RotateRefresh bool          `env:"REFRESH_ROTATE"`

	ResetTTL       time.Duration `env:"RESET_TTL" envDefault:"10m"`
	ResetLinkBase  string        `env:"RESET_LINK_BASE_URL" envDefault:"http://localhost:8080/v1/users/reset"`
	VerifyTTL      time.Duration `env:"VERIFY_TTL" envDefault:"30m"`
	VerifyLinkBase string        `env:"VERIFY_LINK_BASE_URL" envDefault:"http://localhost:8080/v1/users/verify"`
	CallbackHosts  []string      `env:"LINK_ALLOWED_HOSTS" envSeparator:","`

	IPThrottle bool `env:"RATE_LIMIT_IP"`
	AuditLog   bool `env:"AUDIT_LOG"`

	Delivery string      `env:"DELIVERY" envDefault:"log"`
	SMTP     smtpConfig  `envPrefix:"SMTP_"`
	Kafka    kafkaConfig `envPrefix:"KAFKA_"`
}

type smtpConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@localhost"`
}

type kafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"authkit.links"`
}

// loadConfig reads environ, or the process environment when environ is nil.
func loadConfig(environ map[string]string) (config, error) {
	var cfg config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.Delivery {
	case "log":
	case "smtp":
		if cfg.SMTP.Host == "" {
			return config{}, fmt.Errorf("DELIVERY=smtp requires SMTP_HOST")
		}
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return config{}, fmt.Errorf("DELIVERY=kafka requires KAFKA_BROKERS")
		}
	default:
		return config{}, fmt.Errorf("unknown DELIVERY %q", cfg.Delivery)
	}
	return cfg, nil
}

func (c config) engineConfig() authkit.Config {
	out := authkit.DefaultConfig()
	out.JWT.PrivateKey = []byte(c.JWTSecret)
	out.JWT.Issuer = c.JWTIssuer
	out.JWT.AccessTTL = c.AccessTTL
	out.JWT.RefreshTTL = c.RefreshTTL
	out.Session.RedisPrefix = c.RedisPrefix
	out.Refresh.RotateOnRefresh = c.RotateRefresh
	out.PasswordReset.TTL = c.ResetTTL
	out.PasswordReset.LinkBaseURL = c.ResetLinkBase
	out.EmailVerification.TTL = c.VerifyTTL
	out.EmailVerification.LinkBaseURL = c.VerifyLinkBase
	out.PasswordReset.AllowedCallbackHosts = c.CallbackHosts
	out.RateLimit.EnableIPThrottle = c.IPThrottle
	out.Audit.Enabled = c.AuditLog
	return out
}

func (c config) slogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
