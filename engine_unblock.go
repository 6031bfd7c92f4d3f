package goAccount

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/internal"
)

// SendUnblockCode describes the sendunblockcode operation and its observable behavior.
//
// SendUnblockCode may return an error when input validation, dependency calls, or security checks fail.
// SendUnblockCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SendUnblockCode(ctx context.Context, uid, email string) (string, error) {
	if e == nil || e.unblockStore == nil {
		return "", ErrEngineNotReady
	}

	if !e.policySnapshot().SigninUnblockEnabled(uid, email) {
		return "", ErrUnblockDisabled
	}

	if e.customs != nil {
		if err := e.customs.Check(ctx, clientIPFromContext(ctx), email, "sendUnblockCode"); err != nil {
			e.metricInc(MetricUnblockRateLimited)
			e.emitActivity(ctx, activityEventUnblockCodeSent, false, uid, "", ErrRateLimited, nil)
			return "", err
		}
	}

	code, err := internal.NewUnblockCode(e.config.SigninUnblock.CodeLength)
	if err != nil {
		return "", err
	}

	lifetime := e.config.SigninUnblock.CodeLifetime
	record := &unblockCodeRecord{
		UID:       uid,
		CodeHash:  internal.HashUnblockCode(code),
		ExpiresAt: time.Now().Add(lifetime).Unix(),
	}
	if err := e.unblockStore.Save(ctx, uid, record, lifetime); err != nil {
		return "", wrapUnavailable(err)
	}

	if e.mailer != nil {
		if err := e.mailer.SendUnblockCode(ctx, email, uid, code); err != nil {
			return "", wrapUnavailable(err)
		}
	}

	e.metricInc(MetricUnblockCodeSent)
	e.emitActivity(ctx, activityEventUnblockCodeSent, true, uid, "", nil, nil)

	return code, nil
}

// VerifyUnblockCode describes the verifyunblockcode operation and its observable behavior.
//
// VerifyUnblockCode may return an error when input validation, dependency calls, or security checks fail.
// VerifyUnblockCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyUnblockCode(ctx context.Context, uid, email, code string) error {
	if e == nil || e.unblockStore == nil {
		return ErrEngineNotReady
	}

	if !e.policySnapshot().SigninUnblockEnabled(uid, email) {
		return ErrUnblockDisabled
	}

	if e.customs != nil {
		if err := e.customs.Check(ctx, clientIPFromContext(ctx), email, "verifyUnblockCode"); err != nil {
			e.metricInc(MetricUnblockRateLimited)
			e.emitActivity(ctx, activityEventUnblockCodeFailed, false, uid, "", ErrRateLimited, nil)
			return err
		}
	}

	err := e.unblockStore.Consume(ctx, uid, internal.HashUnblockCode(code), e.config.SigninUnblock.MaxAttempts)
	if err != nil {
		verifyErr := mapUnblockConsumeError(err)
		e.metricInc(MetricUnblockCodeFailed)
		e.emitActivity(ctx, activityEventUnblockCodeFailed, false, uid, "", verifyErr, nil)
		return verifyErr
	}

	e.metricInc(MetricUnblockCodeVerified)
	e.emitActivity(ctx, activityEventUnblockCodeOK, true, uid, "", nil, nil)

	return nil
}

func mapUnblockConsumeError(err error) error {
	switch {
	case errors.Is(err, errUnblockNotFound):
		return ErrUnblockCodeNotFound
	case errors.Is(err, errUnblockCodeMismatch):
		return ErrUnblockCodeInvalid
	case errors.Is(err, errUnblockAttemptsExceeded):
		return ErrUnblockAttemptsExceeded
	default:
		return wrapUnavailable(err)
	}
}
