package goShield

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goShield/banlist"
	"github.com/MrEthical07/goShield/captcha"
	"github.com/MrEthical07/goShield/fingerprint"
	"github.com/MrEthical07/goShield/internal/rate"
	"github.com/MrEthical07/goShield/token"
)

// Builder defines a public type used by goShield APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	db     *pgxpool.Pool

	fingerprints FingerprintStore
	tokens       AccessTokenStore
	banStore     banlist.Store
	banCache     banlist.Cache

	primary   captcha.Verifier
	secondary captcha.Verifier

	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDB describes the withdb operation and its observable behavior. The pool
// backs the fingerprint, token, and durable ban stores unless explicit stores
// are supplied.
func (b *Builder) WithDB(pool *pgxpool.Pool) *Builder {
	b.db = pool
	return b
}

// WithFingerprintStore describes the withfingerprintstore operation and its observable behavior.
func (b *Builder) WithFingerprintStore(s FingerprintStore) *Builder {
	b.fingerprints = s
	return b
}

// WithAccessTokenStore describes the withaccesstokenstore operation and its observable behavior.
func (b *Builder) WithAccessTokenStore(s AccessTokenStore) *Builder {
	b.tokens = s
	return b
}

// WithBanStore describes the withbanstore operation and its observable behavior.
func (b *Builder) WithBanStore(s banlist.Store) *Builder {
	b.banStore = s
	return b
}

// WithBanCache describes the withbancache operation and its observable behavior.
func (b *Builder) WithBanCache(c banlist.Cache) *Builder {
	b.banCache = c
	return b
}

// WithVerifiers describes the withverifiers operation and its observable
// behavior. It overrides the providers built from the config secrets.
func (b *Builder) WithVerifiers(primary, secondary captcha.Verifier) *Builder {
	b.primary = primary
	b.secondary = secondary
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- DURABLE STORES --------
	fingerprints := b.fingerprints
	tokens := b.tokens
	banStore := b.banStore

	if b.db != nil {
		if fingerprints == nil {
			fingerprints = fingerprint.NewStore(b.db, cfg.Fingerprint.TTL)
		}
		if tokens == nil {
			tokens = token.NewStore(b.db, cfg.AccessToken.TTL)
		}
		if banStore == nil {
			banStore = banlist.NewPGStore(b.db)
		}
	}
	if fingerprints == nil || tokens == nil || banStore == nil {
		return nil, errors.New("database pool or explicit stores required")
	}

	// -------- BAN CACHE + SYNC --------
	banCache := b.banCache
	if banCache == nil {
		banCache = banlist.NewRedisCache(b.redis, cfg.Ban.RedisPrefix)
	}
	syncer := banlist.NewSyncer(banStore, banCache)

	// -------- CHALLENGE PROVIDERS --------
	primary := b.primary
	secondary := b.secondary
	if primary == nil {
		primary = captcha.NewTurnstile(captcha.Config{
			Secret:   cfg.Verification.TurnstileSecret,
			Disabled: cfg.Verification.Disabled,
			Timeout:  cfg.Verification.Timeout,
		})
	}
	if secondary == nil && (cfg.Verification.HCaptchaSecret != "" || cfg.Verification.Disabled) {
		secondary = captcha.NewHCaptcha(captcha.Config{
			Secret:   cfg.Verification.HCaptchaSecret,
			Disabled: cfg.Verification.Disabled,
			Timeout:  cfg.Verification.Timeout,
		})
	}

	strategy := captcha.StrategyDeterministic
	if cfg.Verification.PickerStrategy == "random" {
		strategy = captcha.StrategyRandom
	}
	picker := captcha.NewPicker(primary, secondary, strategy)

	engine := &Engine{
		config:       cfg,
		fingerprints: fingerprints,
		tokens:       tokens,
		banStore:     banStore,
		banCache:     banCache,
		syncer:       syncer,
		picker:       picker,
	}

	engine.rateLimiter = rate.New(b.redis, cfg.RateLimit.RedisPrefix)
	engine.publicPolicy = rate.Policy{Name: "pub", Max: cfg.RateLimit.Public.Max, Window: cfg.RateLimit.Public.Window}
	engine.fingerprintPolicy = rate.Policy{Name: "fp", Max: cfg.RateLimit.Fingerprint.Max, Window: cfg.RateLimit.Fingerprint.Window}
	engine.userReportPolicy = rate.Policy{Name: "usr", Max: cfg.RateLimit.UserReport.Max, Window: cfg.RateLimit.UserReport.Window}
	engine.adminPolicy = rate.Policy{Name: "adm", Max: cfg.RateLimit.Admin.Max, Window: cfg.RateLimit.Admin.Window}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.scheduler = newScheduler(cfg.Scheduler, fingerprints, tokens, banStore, banCache, syncer, engine.metrics)

	b.built = true

	return engine, nil
}
