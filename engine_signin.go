package goAccount

import (
	"context"
	"time"
)

// SigninState defines a public type used by goAccount APIs.
//
// SigninState instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigninState uint8

const (
	// SigninTrusted is an exported constant or variable used by the account engine.
	SigninTrusted SigninState = iota
	// SigninNeedsConfirmation is an exported constant or variable used by the account engine.
	SigninNeedsConfirmation
)

func (s SigninState) String() string {
	switch s {
	case SigninTrusted:
		return "trusted"
	case SigninNeedsConfirmation:
		return "needs_confirmation"
	default:
		return "unknown"
	}
}

// SigninRequest carries the per-attempt facts the risk evaluator
// decides on. AccountCreatedAt is epoch ms.
type SigninRequest struct {
	UID               string
	Email             string
	AccountCreatedAt  int64
	SuspiciousRequest bool
}

// SigninDecision is the terminal outcome of one signin attempt.
// UnblockAllowed reports whether the caller may offer the unblock-code
// flow to a challenged user.
type SigninDecision struct {
	State          SigninState
	Reason         string
	UnblockAllowed bool
}

const (
	signinReasonForcedEmail      = "forced_email"
	signinReasonSuspicious       = "suspicious_request"
	signinReasonAccountAge       = "account_age_bypass"
	signinReasonRecentLogin      = "recent_verified_login"
	signinReasonNoTrustedHistory = "no_trusted_history"
)

// DecideSignin is the pure risk decision over caller-supplied history.
// Forced-email and suspicious-request signals override everything; the
// account-age bypass is consulted next; otherwise the decision rests on
// a verified "account.login" event inside the profiling window. The
// evaluator applies the name and recency filters itself regardless of
// any pre-filtering by the caller. Empty history never trusts.
func (e *Engine) DecideSignin(req SigninRequest, events []SecurityEvent, now time.Time) SigninDecision {
	snap := e.policySnapshot()

	decision := SigninDecision{
		State:          SigninNeedsConfirmation,
		Reason:         signinReasonNoTrustedHistory,
		UnblockAllowed: snap.SigninUnblockEnabled(req.UID, req.Email),
	}

	if snap.SigninConfirmationForced(req.Email) {
		decision.Reason = signinReasonForcedEmail
		return decision
	}
	if req.SuspiciousRequest {
		decision.Reason = signinReasonSuspicious
		return decision
	}

	if snap.SigninConfirmationBypassForAccountAge(req.AccountCreatedAt, now) {
		decision.State = SigninTrusted
		decision.Reason = signinReasonAccountAge
		return decision
	}

	if !snap.SecurityHistoryProfilingEnabled() {
		return decision
	}

	cutoff := now.Add(-snap.IPProfilingWindow()).UnixMilli()
	for _, ev := range events {
		if ev.Name != activityEventAccountLogin {
			continue
		}
		if !ev.Verified {
			continue
		}
		if ev.CreatedAt < cutoff {
			continue
		}
		decision.State = SigninTrusted
		decision.Reason = signinReasonRecentLogin
		return decision
	}

	return decision
}

// EvaluateSignin describes the evaluatesignin operation and its observable behavior.
//
// EvaluateSignin may return an error when input validation, dependency calls, or security checks fail.
// EvaluateSignin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EvaluateSignin(ctx context.Context, req SigninRequest) (SigninDecision, error) {
	if e == nil || e.store == nil {
		return SigninDecision{}, ErrEngineNotReady
	}

	if e.customs != nil {
		if err := e.customs.Check(ctx, clientIPFromContext(ctx), req.Email, "accountLogin"); err != nil {
			e.metricInc(MetricSigninRateLimited)
			e.emitActivity(ctx, activityEventSigninRateLimited, false, req.UID, "", ErrRateLimited, nil)
			return SigninDecision{}, err
		}
	}

	var events []SecurityEvent
	if e.policySnapshot().SecurityHistoryProfilingEnabled() {
		var err error
		events, err = e.store.FetchSecurityEvents(ctx, req.UID)
		if err != nil {
			return SigninDecision{}, wrapUnavailable(err)
		}
	}

	decision := e.DecideSignin(req, events, time.Now())

	switch decision.State {
	case SigninTrusted:
		e.metricInc(MetricSigninTrusted)
	case SigninNeedsConfirmation:
		e.metricInc(MetricSigninConfirmation)
	}
	e.emitActivity(ctx, activityEventAccountLogin, decision.State == SigninTrusted, req.UID, "", nil, func() map[string]string {
		return map[string]string{
			"state":  decision.State.String(),
			"reason": decision.Reason,
		}
	})

	return decision, nil
}
