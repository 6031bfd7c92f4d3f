package goAccount

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccount/token"
)

const (
	activityEventAccountLogin      = "account.login"
	activityEventAccountConfirmed  = "account.confirmed"
	activityEventDeviceCreated     = "device.created"
	activityEventDeviceUpdated     = "device.updated"
	activityEventUnblockCodeSent   = "account.login.sentUnblockCode"
	activityEventUnblockCodeOK     = "account.login.confirmedUnblockCode"
	activityEventUnblockCodeFailed = "account.login.invalidUnblockCode"
	activityEventSigninRateLimited = "account.login.blocked"
	activityEventTokenVerified     = "token.verified"
	activityEventPlaceholderDevice = "device.placeholder"
	activityEventNotifyFailure     = "notify.failure"
)

// ActivityErrorCode defines a public type used by goAccount APIs.
//
// ActivityErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ActivityErrorCode string

const (
	activityErrRateLimited     ActivityErrorCode = "rate_limited"
	activityErrUnavailable     ActivityErrorCode = "backend_unavailable"
	activityErrTokenNotFound   ActivityErrorCode = "token_not_found"
	activityErrTokenInvalid    ActivityErrorCode = "invalid_token"
	activityErrUnblockDisabled ActivityErrorCode = "unblock_disabled"
	activityErrUnblockInvalid  ActivityErrorCode = "unblock_invalid"
	activityErrUnblockAttempts ActivityErrorCode = "unblock_attempts_exceeded"
	activityErrInternal        ActivityErrorCode = "internal_error"
)

func (e *Engine) emitActivity(
	ctx context.Context,
	eventType string,
	success bool,
	uid string,
	deviceID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	e.emit(ctx, eventType, success, uid, deviceID, false, err, metadataBuilder)
}

// emitDiagnostic records an operational log entry on the same sink,
// flagged so consumers can route it away from the account activity
// stream.
func (e *Engine) emitDiagnostic(
	ctx context.Context,
	eventType string,
	uid string,
	deviceID string,
	metadataBuilder func() map[string]string,
) {
	e.emit(ctx, eventType, true, uid, deviceID, true, nil, metadataBuilder)
}

func (e *Engine) emit(
	ctx context.Context,
	eventType string,
	success bool,
	uid string,
	deviceID string,
	diagnostic bool,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.activity == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := ActivityEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		UserID:     uid,
		DeviceID:   deviceID,
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		Diagnostic: diagnostic,
		Success:    success,
		Metadata:   metadata,
	}
	if code := activityErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.activity.Emit(ctx, event)
}

func activityErrorCode(err error) ActivityErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return activityErrRateLimited
	case errors.Is(err, ErrUpstreamUnavailable),
		errors.Is(err, token.ErrUnavailable):
		return activityErrUnavailable
	case errors.Is(err, ErrTokenNotFound),
		errors.Is(err, token.ErrNotFound):
		return activityErrTokenNotFound
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrDeviceSessionInvalid):
		return activityErrTokenInvalid
	case errors.Is(err, ErrUnblockDisabled):
		return activityErrUnblockDisabled
	case errors.Is(err, ErrUnblockCodeInvalid),
		errors.Is(err, ErrUnblockCodeNotFound):
		return activityErrUnblockInvalid
	case errors.Is(err, ErrUnblockAttemptsExceeded):
		return activityErrUnblockAttempts
	default:
		return activityErrInternal
	}
}
