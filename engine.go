package goAccount

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/MrEthical07/goAccount/internal"
	"github.com/MrEthical07/goAccount/policy"
	"github.com/MrEthical07/goAccount/servicetoken"
	"github.com/MrEthical07/goAccount/token"
)

const tokenSecretSize = 32

// Engine defines a public type used by goAccount APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config        Config
	tokens        *token.Store
	unblockStore  *unblockCodeStore
	policy        atomic.Pointer[policy.Snapshot]
	store         AccountStore
	customs       CustomsClient
	pusher        DevicePusher
	notifier      AttachedServicesNotifier
	mailer        UnblockMailer
	serviceTokens *servicetoken.Manager
	activity      *activityDispatcher
	metrics       *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.activity != nil {
		e.activity.Close()
	}
}

// ActivityDropped describes the activitydropped operation and its observable behavior.
//
// ActivityDropped may return an error when input validation, dependency calls, or security checks fail.
// ActivityDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ActivityDropped() uint64 {
	if e == nil || e.activity == nil {
		return 0
	}
	return e.activity.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters: map[MetricID]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) policySnapshot() *policy.Snapshot {
	if e == nil {
		return nil
	}
	return e.policy.Load()
}

// ReloadPolicy recompiles the feature gates from cfg and swaps them in
// atomically. In-flight evaluations keep the snapshot they started with.
func (e *Engine) ReloadPolicy(cfg Config) error {
	if e == nil {
		return ErrEngineNotReady
	}

	snap, err := policy.Compile(cfg.policyConfig())
	if err != nil {
		return err
	}

	e.policy.Store(snap)
	return nil
}

// MintToken describes the minttoken operation and its observable behavior.
//
// MintToken may return an error when input validation, dependency calls, or security checks fail.
// MintToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MintToken(ctx context.Context, kind token.Kind, uid string) (token.Token, error) {
	if e == nil || e.tokens == nil {
		return token.Token{}, ErrEngineNotReady
	}

	secret, err := internal.NewSecret(tokenSecretSize)
	if err != nil {
		return token.Token{}, err
	}

	tok := token.Mint(kind, uid, secret)
	if err := e.tokens.Save(ctx, tok); err != nil {
		return token.Token{}, err
	}

	e.metricInc(MetricTokenMinted)
	return tok, nil
}

// MintDeviceSessionToken mints a session token already bound to a
// device. Device-bound session tokens are exempt from expiry.
func (e *Engine) MintDeviceSessionToken(ctx context.Context, uid, deviceID string) (token.Token, error) {
	if e == nil || e.tokens == nil {
		return token.Token{}, ErrEngineNotReady
	}

	secret, err := internal.NewSecret(tokenSecretSize)
	if err != nil {
		return token.Token{}, err
	}

	tok := token.Mint(token.SessionWithDevice, uid, secret)
	tok.DeviceID = deviceID
	if err := e.tokens.Save(ctx, tok); err != nil {
		return token.Token{}, err
	}

	e.metricInc(MetricTokenMinted)
	return tok, nil
}

// Token describes the token operation and its observable behavior.
//
// Token may return an error when input validation, dependency calls, or security checks fail.
// Token does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Token(ctx context.Context, id string) (token.Token, error) {
	if e == nil || e.tokens == nil {
		return token.Token{}, ErrEngineNotReady
	}

	tok, err := e.tokens.Get(ctx, id)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return token.Token{}, ErrTokenNotFound
		}
		return token.Token{}, err
	}

	return tok, nil
}

// ConfirmToken describes the confirmtoken operation and its observable behavior.
//
// ConfirmToken may return an error when input validation, dependency calls, or security checks fail.
// ConfirmToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmToken(ctx context.Context, id string) (token.Token, error) {
	if e == nil || e.tokens == nil {
		return token.Token{}, ErrEngineNotReady
	}

	tok, err := e.tokens.MarkVerified(ctx, id)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			e.emitActivity(ctx, activityEventTokenVerified, false, "", "", ErrTokenNotFound, nil)
			return token.Token{}, ErrTokenNotFound
		}
		return token.Token{}, err
	}

	e.metricInc(MetricTokenVerified)
	e.emitActivity(ctx, activityEventTokenVerified, true, tok.UID, tok.DeviceID, nil, func() map[string]string {
		return map[string]string{
			"token_kind": tok.Kind.String(),
		}
	})

	return tok, nil
}

// DestroyToken describes the destroytoken operation and its observable behavior.
//
// DestroyToken may return an error when input validation, dependency calls, or security checks fail.
// DestroyToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DestroyToken(ctx context.Context, id string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	return e.tokens.Delete(ctx, id)
}
