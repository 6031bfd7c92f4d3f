package goAccount

import (
	"errors"

	"github.com/MrEthical07/goAccount/policy"
	"github.com/MrEthical07/goAccount/servicetoken"
	"github.com/MrEthical07/goAccount/token"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by goAccount APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	store    AccountStore
	customs  CustomsClient
	pusher   DevicePusher
	notifier AttachedServicesNotifier
	mailer   UnblockMailer

	activitySink ActivitySink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithAccountStore describes the withaccountstore operation and its observable behavior.
//
// WithAccountStore may return an error when input validation, dependency calls, or security checks fail.
// WithAccountStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithCustomsClient describes the withcustomsclient operation and its observable behavior.
//
// WithCustomsClient may return an error when input validation, dependency calls, or security checks fail.
// WithCustomsClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCustomsClient(customs CustomsClient) *Builder {
	b.customs = customs
	return b
}

// WithDevicePusher describes the withdevicepusher operation and its observable behavior.
//
// WithDevicePusher may return an error when input validation, dependency calls, or security checks fail.
// WithDevicePusher does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithDevicePusher(pusher DevicePusher) *Builder {
	b.pusher = pusher
	return b
}

// WithAttachedServicesNotifier describes the withattachedservicesnotifier operation and its observable behavior.
//
// WithAttachedServicesNotifier may return an error when input validation, dependency calls, or security checks fail.
// WithAttachedServicesNotifier does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAttachedServicesNotifier(notifier AttachedServicesNotifier) *Builder {
	b.notifier = notifier
	return b
}

// WithUnblockMailer describes the withunblockmailer operation and its observable behavior.
//
// WithUnblockMailer may return an error when input validation, dependency calls, or security checks fail.
// WithUnblockMailer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithUnblockMailer(mailer UnblockMailer) *Builder {
	b.mailer = mailer
	return b
}

// WithActivitySink describes the withactivitysink operation and its observable behavior.
//
// WithActivitySink may return an error when input validation, dependency calls, or security checks fail.
// WithActivitySink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithActivitySink(sink ActivitySink) *Builder {
	b.activitySink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
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

	if b.store == nil {
		return nil, errors.New("account store required")
	}

	if cfg.SigninUnblock.Enabled && b.mailer == nil {
		return nil, errors.New("SigninUnblock requires an unblock mailer")
	}

	snap, err := policy.Compile(cfg.policyConfig())
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		tokens:   token.NewStore(b.redis, cfg.Tokens.RedisPrefix, cfg.Tokens.Lifetimes),
		store:    b.store,
		customs:  b.customs,
		pusher:   b.pusher,
		notifier: b.notifier,
		mailer:   b.mailer,
	}
	engine.policy.Store(snap)

	engine.unblockStore = newUnblockCodeStore(b.redis, cfg.Tokens.RedisPrefix)
	engine.activity = newActivityDispatcher(cfg.Activity, b.activitySink)
	engine.metrics = NewMetrics(cfg.Metrics)

	if cfg.ServiceTokens.Enabled {
		sm, err := servicetoken.NewManager(cfg.serviceTokenConfig())
		if err != nil {
			return nil, err
		}
		engine.serviceTokens = sm
	}

	b.built = true

	return engine, nil
}
