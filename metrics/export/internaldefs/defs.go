package internaldefs

import (
	goAccount "github.com/MrEthical07/goAccount"
)

// CounterDef defines a public type used by goAccount APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the account engine.
var CounterDefs = []CounterDef{
	{ID: goAccount.MetricSigninTrusted, Name: "goaccount_signin_trusted_total", Help: "Signin attempts decided as trusted."},
	{ID: goAccount.MetricSigninConfirmation, Name: "goaccount_signin_confirmation_total", Help: "Signin attempts requiring confirmation."},
	{ID: goAccount.MetricSigninRateLimited, Name: "goaccount_signin_rate_limited_total", Help: "Signin attempts blocked by the customs collaborator."},
	{ID: goAccount.MetricUnblockCodeSent, Name: "goaccount_unblock_code_sent_total", Help: "Issued signin unblock codes."},
	{ID: goAccount.MetricUnblockCodeVerified, Name: "goaccount_unblock_code_verified_total", Help: "Successfully verified unblock codes."},
	{ID: goAccount.MetricUnblockCodeFailed, Name: "goaccount_unblock_code_failed_total", Help: "Failed unblock code verifications."},
	{ID: goAccount.MetricUnblockRateLimited, Name: "goaccount_unblock_rate_limited_total", Help: "Rate-limited unblock operations."},
	{ID: goAccount.MetricDeviceCreated, Name: "goaccount_device_created_total", Help: "Created device records."},
	{ID: goAccount.MetricDeviceUpdated, Name: "goaccount_device_updated_total", Help: "Updated device records."},
	{ID: goAccount.MetricDevicePlaceholder, Name: "goaccount_device_placeholder_total", Help: "Created placeholder devices (no name supplied)."},
	{ID: goAccount.MetricPushSent, Name: "goaccount_push_sent_total", Help: "Device-connected push notifications sent."},
	{ID: goAccount.MetricPushSkippedUnverified, Name: "goaccount_push_skipped_unverified_total", Help: "Pushes withheld because the session token was unverified."},
	{ID: goAccount.MetricNotifyFailure, Name: "goaccount_notify_failure_total", Help: "Failed downstream notifications."},
	{ID: goAccount.MetricTokenMinted, Name: "goaccount_token_minted_total", Help: "Minted tokens."},
	{ID: goAccount.MetricTokenVerified, Name: "goaccount_token_verified_total", Help: "Tokens confirmed verified."},
}
