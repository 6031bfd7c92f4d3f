package goAccount

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/goAccount/token"
	"github.com/google/uuid"
)

// SynthesizeName builds a user-visible device name from parsed
// user-agent facts. Phrase A is browser plus browser version, phrase B
// is OS plus OS version; a form factor replaces phrase B entirely. The
// two phrases are joined with ", " only when both are present. The
// output is user-visible, so the precedence here must stay stable.
func SynthesizeName(ua UAFacts) string {
	browserPhrase := joinPhrase(ua.Browser, ua.BrowserVersion)
	osPhrase := joinPhrase(ua.OS, ua.OSVersion)
	if ua.FormFactor != "" {
		osPhrase = ua.FormFactor
	}

	switch {
	case browserPhrase != "" && osPhrase != "":
		return browserPhrase + ", " + osPhrase
	case browserPhrase != "":
		return browserPhrase
	default:
		return osPhrase
	}
}

// A version without its name contributes nothing; "11" alone is not a
// usable device name fragment.
func joinPhrase(name, version string) string {
	switch {
	case name == "":
		return ""
	case version == "":
		return name
	default:
		return name + " " + version
	}
}

// UpsertDevice describes the upsertdevice operation and its observable behavior.
//
// UpsertDevice may return an error when input validation, dependency calls, or security checks fail.
// UpsertDevice does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) UpsertDevice(ctx context.Context, sessionToken token.Token, change DeviceChange) (DeviceRecord, error) {
	if e == nil || e.store == nil {
		return DeviceRecord{}, ErrEngineNotReady
	}
	if sessionToken.ID == "" || sessionToken.UID == "" {
		return DeviceRecord{}, ErrDeviceSessionInvalid
	}

	switch c := change.(type) {
	case ExistingDevice:
		return e.updateDevice(ctx, sessionToken, c)
	case NewDevice:
		return e.createDevice(ctx, sessionToken, c)
	default:
		return DeviceRecord{}, ErrDeviceSessionInvalid
	}
}

func (e *Engine) updateDevice(ctx context.Context, sessionToken token.Token, change ExistingDevice) (DeviceRecord, error) {
	record := DeviceRecord{
		ID:   change.ID,
		Name: change.Fields.Name,
		Type: change.Fields.Type,
	}

	if err := e.store.UpdateDevice(ctx, sessionToken.UID, sessionToken.ID, record); err != nil {
		return DeviceRecord{}, wrapUnavailable(err)
	}

	e.metricInc(MetricDeviceUpdated)
	e.emitActivity(ctx, activityEventDeviceUpdated, true, sessionToken.UID, record.ID, nil, nil)

	// Echo the supplied fields back; no re-read of the store.
	return record, nil
}

func (e *Engine) createDevice(ctx context.Context, sessionToken token.Token, change NewDevice) (DeviceRecord, error) {
	record, err := e.store.CreateDevice(ctx, sessionToken.UID, sessionToken.ID, change.Fields)
	if err != nil {
		return DeviceRecord{}, wrapUnavailable(err)
	}

	// Bind the session token to its device. The binding also exempts the
	// token from expiry, so the rebind is persisted, best effort.
	if e.tokens != nil {
		sessionToken.DeviceID = record.ID
		if err := e.tokens.Save(ctx, sessionToken); err != nil {
			e.emitDiagnostic(ctx, activityEventNotifyFailure, sessionToken.UID, record.ID, func() map[string]string {
				return map[string]string{
					"stage": "session_binding",
				}
			})
		}
	}

	isPlaceholder := change.Fields.Name == ""

	e.metricInc(MetricDeviceCreated)
	e.emitActivity(ctx, activityEventDeviceCreated, true, sessionToken.UID, record.ID, nil, func() map[string]string {
		return map[string]string{
			"is_placeholder": strconv.FormatBool(isPlaceholder),
		}
	})
	if isPlaceholder {
		e.metricInc(MetricDevicePlaceholder)
		e.emitDiagnostic(ctx, activityEventPlaceholderDevice, sessionToken.UID, record.ID, func() map[string]string {
			return map[string]string{
				"token_kind": sessionToken.Kind.String(),
			}
		})
	}

	e.notifyDeviceCreated(ctx, sessionToken.UID, record.ID, isPlaceholder)
	e.pushDeviceConnected(ctx, sessionToken, record, change.Fields)

	return record, nil
}

func (e *Engine) notifyDeviceCreated(ctx context.Context, uid, deviceID string, isPlaceholder bool) {
	if e.notifier == nil {
		return
	}

	now := time.Now()
	note := ServiceNotification{
		Event:         activityEventDeviceCreated,
		UID:           uid,
		DeviceID:      deviceID,
		FlowID:        uuid.NewString(),
		Timestamp:     now.UnixMilli(),
		IsPlaceholder: isPlaceholder,
	}

	if e.serviceTokens != nil {
		signed, err := e.serviceTokens.Sign(note.Event, uid, deviceID, now)
		if err != nil {
			e.metricInc(MetricNotifyFailure)
			e.emitDiagnostic(ctx, activityEventNotifyFailure, uid, deviceID, func() map[string]string {
				return map[string]string{
					"stage": "sign_event_token",
				}
			})
			return
		}
		note.Token = signed
	}

	if err := e.notifier.NotifyAttachedServices(ctx, note); err != nil {
		e.metricInc(MetricNotifyFailure)
		e.emitDiagnostic(ctx, activityEventNotifyFailure, uid, deviceID, func() map[string]string {
			return map[string]string{
				"stage": "attached_services",
			}
		})
	}
}

func (e *Engine) pushDeviceConnected(ctx context.Context, sessionToken token.Token, record DeviceRecord, fields DeviceFields) {
	if e.pusher == nil {
		return
	}

	// An unverified session token has not proven control of the account
	// and must never trigger the connected push.
	if !sessionToken.Verified {
		e.metricInc(MetricPushSkippedUnverified)
		e.emitDiagnostic(ctx, activityEventNotifyFailure, sessionToken.UID, record.ID, func() map[string]string {
			return map[string]string{
				"stage": "push_skipped_unverified",
			}
		})
		return
	}

	name := fields.Name
	if name == "" {
		name = SynthesizeName(fields.UA)
	}

	devices, err := e.store.Devices(ctx, sessionToken.UID)
	if err != nil {
		e.metricInc(MetricNotifyFailure)
		e.emitDiagnostic(ctx, activityEventNotifyFailure, sessionToken.UID, record.ID, func() map[string]string {
			return map[string]string{
				"stage": "device_list",
			}
		})
		return
	}

	if err := e.pusher.NotifyDeviceConnected(ctx, sessionToken.UID, devices, name, record.ID); err != nil {
		e.metricInc(MetricNotifyFailure)
		e.emitDiagnostic(ctx, activityEventNotifyFailure, sessionToken.UID, record.ID, func() map[string]string {
			return map[string]string{
				"stage": "push",
			}
		})
		return
	}

	e.metricInc(MetricPushSent)
}
