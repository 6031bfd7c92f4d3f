package goAccount

import "context"

// SecurityEvent is an immutable historical record supplied by the
// account store. Append-only; the engine reads it, never writes it.
type SecurityEvent struct {
	Name      string
	CreatedAt int64 // epoch ms
	Verified  bool
}

// DeviceRecord is the store's view of a registered device. On create the
// store assigns ID and CreatedAt; on update the engine echoes the
// caller-supplied fields back without a re-read.
type DeviceRecord struct {
	ID        string
	Name      string
	Type      string
	CreatedAt int64 // epoch ms
}

// UAFacts carries parsed user-agent facts used for device name
// synthesis. Any field may be empty.
type UAFacts struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	FormFactor     string
}

// DeviceFields is the caller-supplied device payload for an upsert.
// An empty Name marks the device as a placeholder on create.
type DeviceFields struct {
	Name string
	Type string
	UA   UAFacts
}

// DeviceChange is the tagged upsert input: either [NewDevice] or
// [ExistingDevice]. The create/update decision is made once at the
// boundary, not re-derived downstream.
type DeviceChange interface {
	deviceChange()
}

// NewDevice requests creation of a device record.
type NewDevice struct {
	Fields DeviceFields
}

func (NewDevice) deviceChange() {}

// ExistingDevice requests an update of the identified device record.
type ExistingDevice struct {
	ID     string
	Fields DeviceFields
}

func (ExistingDevice) deviceChange() {}

// AccountStore is the primary interface that callers must implement to
// integrate goAccount with their account database. It covers
// security-event history and the device registry.
type AccountStore interface {
	FetchSecurityEvents(ctx context.Context, uid string) ([]SecurityEvent, error)
	CreateDevice(ctx context.Context, uid, sessionTokenID string, fields DeviceFields) (DeviceRecord, error)
	UpdateDevice(ctx context.Context, uid, sessionTokenID string, device DeviceRecord) error
	Devices(ctx context.Context, uid string) ([]DeviceRecord, error)
}

// CustomsClient is the abuse-prevention collaborator. Check is consulted
// before risk evaluation on sensitive actions; a [ErrRateLimited] result
// short-circuits the flow.
type CustomsClient interface {
	Check(ctx context.Context, ip, email, action string) error
}

// DevicePusher delivers device-connected push notifications. Fire and
// forget from the engine's perspective; delivery guarantees belong to
// the implementation.
type DevicePusher interface {
	NotifyDeviceConnected(ctx context.Context, uid string, devices []DeviceRecord, deviceName, deviceID string) error
}

// ServiceNotification is the payload handed to an
// [AttachedServicesNotifier]. Token carries a signed event token when
// service tokens are enabled, otherwise it is empty.
type ServiceNotification struct {
	Event         string
	UID           string
	DeviceID      string
	FlowID        string
	Timestamp     int64 // epoch ms
	IsPlaceholder bool
	Token         string
}

// AttachedServicesNotifier fans account events out to attached services.
type AttachedServicesNotifier interface {
	NotifyAttachedServices(ctx context.Context, note ServiceNotification) error
}

// UnblockMailer delivers signin unblock codes. Template rendering and
// transport are the implementation's concern.
type UnblockMailer interface {
	SendUnblockCode(ctx context.Context, email, uid, code string) error
}
