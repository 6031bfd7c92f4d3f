package goAccount

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goAccount/token"
)

func TestSynthesizeName(t *testing.T) {
	cases := []struct {
		name string
		ua   UAFacts
		want string
	}{
		{
			name: "browser and os",
			ua:   UAFacts{Browser: "Firefox", BrowserVersion: "128", OS: "Windows", OSVersion: "11"},
			want: "Firefox 128, Windows 11",
		},
		{
			name: "browser only",
			ua:   UAFacts{Browser: "Firefox", BrowserVersion: "128"},
			want: "Firefox 128",
		},
		{
			name: "os only",
			ua:   UAFacts{OS: "Android", OSVersion: "14"},
			want: "Android 14",
		},
		{
			name: "browser without version",
			ua:   UAFacts{Browser: "Firefox", OS: "Linux"},
			want: "Firefox, Linux",
		},
		{
			name: "form factor replaces os",
			ua:   UAFacts{Browser: "Firefox", BrowserVersion: "128", OS: "iOS", OSVersion: "17", FormFactor: "iPad"},
			want: "Firefox 128, iPad",
		},
		{
			name: "form factor alone",
			ua:   UAFacts{FormFactor: "iPad"},
			want: "iPad",
		},
		{
			name: "empty facts",
			ua:   UAFacts{},
			want: "",
		},
		{
			name: "version without name",
			ua:   UAFacts{BrowserVersion: "128", OSVersion: "11"},
			want: "",
		},
		{
			name: "os version alone with browser",
			ua:   UAFacts{Browser: "Firefox", BrowserVersion: "128", OSVersion: "11"},
			want: "Firefox 128",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SynthesizeName(tc.ua); got != tc.want {
				t.Fatalf("SynthesizeName(%+v) = %q, want %q", tc.ua, got, tc.want)
			}
		})
	}
}

func deviceSessionToken(t *testing.T, engine *Engine, uid string, verified bool) token.Token {
	t.Helper()

	tok, err := engine.MintToken(context.Background(), token.SessionWithoutDevice, uid)
	if err != nil {
		t.Fatalf("MintToken failed: %v", err)
	}
	if verified {
		tok, err = engine.ConfirmToken(context.Background(), tok.ID)
		if err != nil {
			t.Fatalf("ConfirmToken failed: %v", err)
		}
	}
	return tok
}

func TestUpsertDeviceRejectsInvalidSession(t *testing.T) {
	engine, done := buildTestEngine(t, defaultConfig(), engineDeps{})
	defer done()

	_, err := engine.UpsertDevice(context.Background(), token.Token{}, NewDevice{})
	if !errors.Is(err, ErrDeviceSessionInvalid) {
		t.Fatalf("expected ErrDeviceSessionInvalid, got %v", err)
	}
}

func TestUpdateDeviceEchoesFieldsWithoutNotifications(t *testing.T) {
	store := newFakeAccountStore()
	pusher := &fakePusher{}
	notifier := &fakeNotifier{}

	engine, done := buildTestEngine(t, defaultConfig(), engineDeps{
		store:    store,
		pusher:   pusher,
		notifier: notifier,
	})
	defer done()

	tok := deviceSessionToken(t, engine, "u1", true)

	record, err := engine.UpsertDevice(context.Background(), tok, ExistingDevice{
		ID:     "d1",
		Fields: DeviceFields{Name: "Renamed Laptop", Type: "desktop"},
	})
	if err != nil {
		t.Fatalf("UpsertDevice failed: %v", err)
	}
	if record.ID != "d1" || record.Name != "Renamed Laptop" || record.Type != "desktop" {
		t.Fatalf("expected echoed fields, got %+v", record)
	}
	if store.updateCalls != 1 {
		t.Fatalf("expected one store update, got %d", store.updateCalls)
	}
	if len(pusher.calls) != 0 {
		t.Fatal("expected no push on update")
	}
	if len(notifier.notes) != 0 {
		t.Fatal("expected no attached-services notification on update")
	}
	if v := engine.MetricsSnapshot().Counters[MetricDeviceUpdated]; v != 1 {
		t.Fatalf("expected 1 device updated metric, got %d", v)
	}
}

func TestCreateDeviceNotifiesAndPushes(t *testing.T) {
	store := newFakeAccountStore()
	pusher := &fakePusher{}
	notifier := &fakeNotifier{}

	engine, done := buildTestEngine(t, defaultConfig(), engineDeps{
		store:    store,
		pusher:   pusher,
		notifier: notifier,
	})
	defer done()

	tok := deviceSessionToken(t, engine, "u1", true)

	record, err := engine.UpsertDevice(context.Background(), tok, NewDevice{
		Fields: DeviceFields{Name: "Alice's Laptop", Type: "desktop"},
	})
	if err != nil {
		t.Fatalf("UpsertDevice failed: %v", err)
	}
	if record.ID == "" {
		t.Fatal("expected store-assigned device id")
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("expected one attached-services notification, got %d", len(notifier.notes))
	}
	note := notifier.notes[0]
	if note.Event != "device.created" || note.UID != "u1" || note.DeviceID != record.ID {
		t.Fatalf("unexpected notification: %+v", note)
	}
	if note.FlowID == "" {
		t.Fatal("expected a flow id on the notification")
	}
	if note.IsPlaceholder {
		t.Fatal("named device must not be flagged as placeholder")
	}

	if len(pusher.calls) != 1 {
		t.Fatalf("expected one push, got %d", len(pusher.calls))
	}
	push := pusher.calls[0]
	if push.uid != "u1" || push.deviceID != record.ID || push.name != "Alice's Laptop" {
		t.Fatalf("unexpected push: %+v", push)
	}
	if push.devices != 1 {
		t.Fatalf("expected device list of 1, got %d", push.devices)
	}

	counters := engine.MetricsSnapshot().Counters
	if counters[MetricDeviceCreated] != 1 {
		t.Fatalf("expected 1 device created metric, got %d", counters[MetricDeviceCreated])
	}
	if counters[MetricPushSent] != 1 {
		t.Fatalf("expected 1 push sent metric, got %d", counters[MetricPushSent])
	}
	if counters[MetricDevicePlaceholder] != 0 {
		t.Fatal("expected no placeholder metric for a named device")
	}
}

func TestCreateDeviceBindsSessionToken(t *testing.T) {
	engine, done := buildTestEngine(t, defaultConfig(), engineDeps{})
	defer done()

	tok := deviceSessionToken(t, engine, "u1", true)

	record, err := engine.UpsertDevice(context.Background(), tok, NewDevice{
		Fields: DeviceFields{Name: "Alice's Laptop"},
	})
	if err != nil {
		t.Fatalf("UpsertDevice failed: %v", err)
	}

	bound, err := engine.Token(context.Background(), tok.ID)
	if err != nil {
		t.Fatalf("Token lookup failed: %v", err)
	}
	if bound.DeviceID != record.ID {
		t.Fatalf("expected session token bound to %q, got %q", record.ID, bound.DeviceID)
	}
}

func TestCreateDevicePlaceholderWhenNameEmpty(t *testing.T) {
	sink := NewChannelSink(16)
	notifier := &fakeNotifier{}

	engine, done := buildTestEngine(t, defaultConfig(), engineDeps{
		notifier: notifier,
		sink:     sink,
	})
	defer done()

	tok := deviceSessionToken(t, engine, "u1", true)

	if _, err := engine.UpsertDevice(context.Background(), tok, NewDevice{
		Fields: DeviceFields{Type: "mobile"},
	}); err != nil {
		t.Fatalf("UpsertDevice failed: %v", err)
	}

	if len(notifier.notes) != 1 || !notifier.notes[0].IsPlaceholder {
		t.Fatal("expected placeholder flag on notification")
	}
	if v := engine.MetricsSnapshot().Counters[MetricDevicePlaceholder]; v != 1 {
		t.Fatalf("expected 1 placeholder metric, got %d", v)
	}

	// The create emits the legitimate activity record plus a diagnostic
	// entry for the placeholder.
	var sawDiagnostic bool
	for _, ev := range collectActivity(t, sink, 3) {
		if ev.EventType == "device.placeholder" && ev.Diagnostic {
			sawDiagnostic = true
		}
	}
	if !sawDiagnostic {
		t.Fatal("expected a placeholder diagnostic entry")
	}
}

func TestCreateDevicePushSkippedForUnverifiedToken(t *testing.T) {
	pusher := &fakePusher{}

	engine, done := buildTestEngine(t, defaultConfig(), engineDeps{pusher: pusher})
	defer done()

	tok := deviceSessionToken(t, engine, "u1", false)

	if _, err := engine.UpsertDevice(context.Background(), tok, NewDevice{
		Fields: DeviceFields{Name: "Alice's Laptop"},
	}); err != nil {
		t.Fatalf("UpsertDevice failed: %v", err)
	}

	if len(pusher.calls) != 0 {
		t.Fatal("expected no push for an unverified session token")
	}
	if v := engine.MetricsSnapshot().Counters[MetricPushSkippedUnverified]; v != 1 {
		t.Fatalf("expected 1 skipped push metric, got %d", v)
	}
}

func TestCreateDevicePushUsesSynthesizedNameWhenEmpty(t *testing.T) {
	pusher := &fakePusher{}

	engine, done := buildTestEngine(t, defaultConfig(), engineDeps{pusher: pusher})
	defer done()

	tok := deviceSessionToken(t, engine, "u1", true)

	if _, err := engine.UpsertDevice(context.Background(), tok, NewDevice{
		Fields: DeviceFields{UA: UAFacts{Browser: "Firefox", BrowserVersion: "128", OS: "Linux"}},
	}); err != nil {
		t.Fatalf("UpsertDevice failed: %v", err)
	}

	if len(pusher.calls) != 1 {
		t.Fatalf("expected one push, got %d", len(pusher.calls))
	}
	if pusher.calls[0].name != "Firefox 128, Linux" {
		t.Fatalf("expected synthesized name, got %q", pusher.calls[0].name)
	}
}

func TestCreateDeviceStoreFailureSuppressesSideEffects(t *testing.T) {
	store := newFakeAccountStore()
	store.createErr = errors.New("db down")
	pusher := &fakePusher{}
	notifier := &fakeNotifier{}

	engine, done := buildTestEngine(t, defaultConfig(), engineDeps{
		store:    store,
		pusher:   pusher,
		notifier: notifier,
	})
	defer done()

	tok := deviceSessionToken(t, engine, "u1", true)

	_, err := engine.UpsertDevice(context.Background(), tok, NewDevice{
		Fields: DeviceFields{Name: "Alice's Laptop"},
	})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if len(pusher.calls) != 0 || len(notifier.notes) != 0 {
		t.Fatal("expected no notifications after store failure")
	}
	if v := engine.MetricsSnapshot().Counters[MetricDeviceCreated]; v != 0 {
		t.Fatal("expected no created metric after store failure")
	}
}

func TestCreateDeviceNotifierFailureDoesNotFailUpsert(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("service down")}

	engine, done := buildTestEngine(t, defaultConfig(), engineDeps{notifier: notifier})
	defer done()

	tok := deviceSessionToken(t, engine, "u1", true)

	if _, err := engine.UpsertDevice(context.Background(), tok, NewDevice{
		Fields: DeviceFields{Name: "Alice's Laptop"},
	}); err != nil {
		t.Fatalf("expected upsert to succeed despite notifier failure, got %v", err)
	}
	if v := engine.MetricsSnapshot().Counters[MetricNotifyFailure]; v != 1 {
		t.Fatalf("expected 1 notify failure metric, got %d", v)
	}
}

func TestCreateDeviceSignsEventTokenWhenEnabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.ServiceTokens.Enabled = true
	cfg.ServiceTokens.SigningMethod = "hs256"
	cfg.ServiceTokens.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.ServiceTokens.Issuer = "goaccount-test"
	cfg.ServiceTokens.Audience = "attached-services"

	notifier := &fakeNotifier{}

	engine, done := buildTestEngine(t, cfg, engineDeps{notifier: notifier})
	defer done()

	tok := deviceSessionToken(t, engine, "u1", true)

	if _, err := engine.UpsertDevice(context.Background(), tok, NewDevice{
		Fields: DeviceFields{Name: "Alice's Laptop"},
	}); err != nil {
		t.Fatalf("UpsertDevice failed: %v", err)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.notes))
	}
	if notifier.notes[0].Token == "" {
		t.Fatal("expected a signed event token on the notification")
	}
}

func TestCreateDeviceSessionBindFailureEmitsDiagnostic(t *testing.T) {
	mr, rdb := newTestRedis(t)
	sink := NewChannelSink(16)

	engine, err := New().
		WithConfig(defaultConfig()).
		WithRedis(rdb).
		WithAccountStore(newFakeAccountStore()).
		WithActivitySink(sink).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	defer func() {
		engine.Close()
		mr.Close()
	}()

	tok := deviceSessionToken(t, engine, "u1", true)

	// Redis failures from here on break the session-token rebind but
	// must not fail the device create.
	mr.SetError("redis down")

	record, err := engine.UpsertDevice(context.Background(), tok, NewDevice{
		Fields: DeviceFields{Name: "Laptop", Type: "desktop"},
	})
	if err != nil {
		t.Fatalf("UpsertDevice failed: %v", err)
	}
	if record.ID == "" {
		t.Fatal("expected created device record")
	}

	var sawBindDiagnostic bool
	for _, ev := range collectActivity(t, sink, 3) {
		if ev.Diagnostic && ev.Metadata["stage"] == "session_binding" {
			sawBindDiagnostic = true
			if ev.DeviceID != record.ID {
				t.Fatalf("expected diagnostic bound to %q, got %q", record.ID, ev.DeviceID)
			}
		}
	}
	if !sawBindDiagnostic {
		t.Fatal("expected a session binding diagnostic entry")
	}

	mr.SetError("")
}
