package goAccount

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is an exported constant or variable used by the account engine.
	ErrRateLimited = errors.New("rate limited")
	// ErrUpstreamUnavailable is an exported constant or variable used by the account engine.
	ErrUpstreamUnavailable = errors.New("upstream collaborator unavailable")
	// ErrTokenNotFound is an exported constant or variable used by the account engine.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenInvalid is an exported constant or variable used by the account engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrDeviceSessionInvalid is an exported constant or variable used by the account engine.
	ErrDeviceSessionInvalid = errors.New("device upsert requires a session token")
	// ErrUnblockDisabled is an exported constant or variable used by the account engine.
	ErrUnblockDisabled = errors.New("signin unblock disabled")
	// ErrUnblockCodeInvalid is an exported constant or variable used by the account engine.
	ErrUnblockCodeInvalid = errors.New("invalid unblock code")
	// ErrUnblockCodeNotFound is an exported constant or variable used by the account engine.
	ErrUnblockCodeNotFound = errors.New("unblock code not found")
	// ErrUnblockAttemptsExceeded is an exported constant or variable used by the account engine.
	ErrUnblockAttemptsExceeded = errors.New("unblock code attempts exceeded")
	// ErrEngineNotReady is an exported constant or variable used by the account engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
