package authkit

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/santokhan/authkit/internal/audit"
	"github.com/santokhan/authkit/internal/rate"
	"github.com/santokhan/authkit/jwt"
	"github.com/santokhan/authkit/password"
	"github.com/santokhan/authkit/session"
)

// Builder collects an Engine's collaborators. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	repository AccountRepository
	delivery   Delivery
	auditSink  AuditSink
	logger     *slog.Logger
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The Builder keeps a copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the session store and the rate limiters.
// Single-node, cluster and ring clients all satisfy redis.UniversalClient.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAccountRepository(repo AccountRepository) *Builder {
	b.repository = repo
	return b
}

func (b *Builder) WithDelivery(d Delivery) *Builder {
	b.delivery = d
	return b
}

// WithAuditSink sets the audit sink. It only takes effect when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort failures. The default discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source for token issuance and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.repository == nil {
		return nil, errors.New("account repository required")
	}
	if b.delivery == nil {
		return nil, errors.New("delivery required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	if !jm.CanSign() {
		return nil, errors.New("signing key required")
	}

	metrics := NewMetrics(cfg.Metrics)
	onAuditDrop := func(event audit.Event, reason audit.DropReason) {
		metrics.Inc(MetricAuditDropped)
		logger.Debug("audit event dropped", "event_type", event.EventType, "account_id", event.AccountID, "reason", reason.String())
	}

	engine := &Engine{
		config:       cfg,
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		rateLimiter: rate.New(b.redis, rate.Config{
			Prefix:           cfg.Session.RedisPrefix,
			EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
			MaxLoginAttempts: cfg.RateLimit.MaxLoginAttempts,
			LoginCooldown:    cfg.RateLimit.LoginCooldown,
			MaxResetRequests: cfg.RateLimit.MaxResetRequests,
			ResetCooldown:    cfg.RateLimit.ResetCooldown,
		}),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			OnDrop:     onAuditDrop,
		}, b.auditSink),
		metrics:      metrics,
		passwordHash: ph,
		policy: password.Policy{
			MinLength:     cfg.Password.MinLength,
			RequireLetter: cfg.Password.RequireLetter,
			RequireDigit:  cfg.Password.RequireDigit,
		},
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		jwtManager: jm,
		repository: b.repository,
		delivery:   b.delivery,
		logger:     logger,
		now:        now,
	}

	b.built = true

	return engine, nil
}
