package goAccount

import (
	"context"
	"errors"
	"testing"
	"time"
)

func signinTestConfig() Config {
	cfg := defaultConfig()
	cfg.SigninConfirmation.Enabled = true
	cfg.SecurityHistory.Enabled = true
	cfg.SecurityHistory.IPProfilingEnabled = true
	cfg.SecurityHistory.IPProfilingWindow = 72 * time.Hour
	return cfg
}

func TestSigninTrustedByRecentVerifiedLogin(t *testing.T) {
	store := newFakeAccountStore()
	store.events["u1"] = []SecurityEvent{
		{Name: "account.login", CreatedAt: time.Now().Add(-time.Hour).UnixMilli(), Verified: true},
	}

	engine, done := buildTestEngine(t, signinTestConfig(), engineDeps{store: store})
	defer done()

	decision, err := engine.EvaluateSignin(context.Background(), SigninRequest{UID: "u1", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("EvaluateSignin failed: %v", err)
	}
	if decision.State != SigninTrusted {
		t.Fatalf("expected trusted signin, got %v (%s)", decision.State, decision.Reason)
	}
	if decision.Reason != "recent_verified_login" {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
	if v := engine.MetricsSnapshot().Counters[MetricSigninTrusted]; v != 1 {
		t.Fatalf("expected 1 trusted signin metric, got %d", v)
	}
}

func TestSigninStaleHistoryRequiresConfirmation(t *testing.T) {
	store := newFakeAccountStore()
	store.events["u1"] = []SecurityEvent{
		{Name: "account.login", CreatedAt: time.Now().Add(-100 * time.Hour).UnixMilli(), Verified: true},
	}

	engine, done := buildTestEngine(t, signinTestConfig(), engineDeps{store: store})
	defer done()

	decision, err := engine.EvaluateSignin(context.Background(), SigninRequest{UID: "u1", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("EvaluateSignin failed: %v", err)
	}
	if decision.State != SigninNeedsConfirmation {
		t.Fatalf("expected confirmation, got %v", decision.State)
	}
	if decision.Reason != "no_trusted_history" {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
}

func TestSigninUnverifiedAndForeignEventsIgnored(t *testing.T) {
	store := newFakeAccountStore()
	store.events["u1"] = []SecurityEvent{
		{Name: "account.login", CreatedAt: time.Now().Add(-time.Hour).UnixMilli(), Verified: false},
		{Name: "account.reset", CreatedAt: time.Now().Add(-time.Hour).UnixMilli(), Verified: true},
	}

	engine, done := buildTestEngine(t, signinTestConfig(), engineDeps{store: store})
	defer done()

	decision, err := engine.EvaluateSignin(context.Background(), SigninRequest{UID: "u1", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("EvaluateSignin failed: %v", err)
	}
	if decision.State != SigninNeedsConfirmation {
		t.Fatalf("expected confirmation, got %v", decision.State)
	}
}

func TestSigninEmptyHistoryNeverTrusts(t *testing.T) {
	engine, done := buildTestEngine(t, signinTestConfig(), engineDeps{})
	defer done()

	decision, err := engine.EvaluateSignin(context.Background(), SigninRequest{UID: "u1", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("EvaluateSignin failed: %v", err)
	}
	if decision.State != SigninNeedsConfirmation {
		t.Fatalf("expected confirmation on empty history, got %v", decision.State)
	}
	if v := engine.MetricsSnapshot().Counters[MetricSigninConfirmation]; v != 1 {
		t.Fatalf("expected 1 confirmation metric, got %d", v)
	}
}

func TestSigninForcedEmailOverridesHistory(t *testing.T) {
	cfg := signinTestConfig()
	cfg.SigninConfirmation.ForcedEmailAddresses = []string{`^forced@example\.com$`}

	store := newFakeAccountStore()
	store.events["u1"] = []SecurityEvent{
		{Name: "account.login", CreatedAt: time.Now().Add(-time.Hour).UnixMilli(), Verified: true},
	}

	engine, done := buildTestEngine(t, cfg, engineDeps{store: store})
	defer done()

	decision, err := engine.EvaluateSignin(context.Background(), SigninRequest{UID: "u1", Email: "forced@example.com"})
	if err != nil {
		t.Fatalf("EvaluateSignin failed: %v", err)
	}
	if decision.State != SigninNeedsConfirmation {
		t.Fatalf("expected forced confirmation, got %v", decision.State)
	}
	if decision.Reason != "forced_email" {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
}

func TestSigninSuspiciousRequestOverridesHistory(t *testing.T) {
	store := newFakeAccountStore()
	store.events["u1"] = []SecurityEvent{
		{Name: "account.login", CreatedAt: time.Now().Add(-time.Hour).UnixMilli(), Verified: true},
	}

	engine, done := buildTestEngine(t, signinTestConfig(), engineDeps{store: store})
	defer done()

	decision, err := engine.EvaluateSignin(context.Background(), SigninRequest{
		UID:               "u1",
		Email:             "alice@example.com",
		SuspiciousRequest: true,
	})
	if err != nil {
		t.Fatalf("EvaluateSignin failed: %v", err)
	}
	if decision.State != SigninNeedsConfirmation {
		t.Fatalf("expected confirmation for suspicious request, got %v", decision.State)
	}
	if decision.Reason != "suspicious_request" {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
}

func TestSigninAccountAgeBypassOldAccount(t *testing.T) {
	cfg := signinTestConfig()
	cfg.AccountAgeBypass.Enabled = true
	cfg.AccountAgeBypass.AccountCreatedSince = 24 * time.Hour

	engine, done := buildTestEngine(t, cfg, engineDeps{})
	defer done()

	decision, err := engine.EvaluateSignin(context.Background(), SigninRequest{
		UID:              "u1",
		Email:            "alice@example.com",
		AccountCreatedAt: time.Now().Add(-48 * time.Hour).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("EvaluateSignin failed: %v", err)
	}
	if decision.State != SigninTrusted {
		t.Fatalf("expected age bypass to trust, got %v (%s)", decision.State, decision.Reason)
	}
	if decision.Reason != "account_age_bypass" {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
}

func TestSigninAccountAgeBypassNewAccountNotTrusted(t *testing.T) {
	cfg := signinTestConfig()
	cfg.AccountAgeBypass.Enabled = true
	cfg.AccountAgeBypass.AccountCreatedSince = 24 * time.Hour

	engine, done := buildTestEngine(t, cfg, engineDeps{})
	defer done()

	decision, err := engine.EvaluateSignin(context.Background(), SigninRequest{
		UID:              "u1",
		Email:            "alice@example.com",
		AccountCreatedAt: time.Now().Add(-time.Hour).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("EvaluateSignin failed: %v", err)
	}
	if decision.State != SigninNeedsConfirmation {
		t.Fatalf("expected new account to require confirmation, got %v", decision.State)
	}
}

func TestSigninCustomsShortCircuits(t *testing.T) {
	store := newFakeAccountStore()
	customs := &fakeCustoms{err: ErrRateLimited}

	engine, done := buildTestEngine(t, signinTestConfig(), engineDeps{store: store, customs: customs})
	defer done()

	_, err := engine.EvaluateSignin(context.Background(), SigninRequest{UID: "u1", Email: "alice@example.com"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if store.fetchCalls != 0 {
		t.Fatal("expected no history fetch after customs rejection")
	}
	if v := engine.MetricsSnapshot().Counters[MetricSigninRateLimited]; v != 1 {
		t.Fatalf("expected 1 rate limited metric, got %d", v)
	}
}

func TestSigninCustomsActionName(t *testing.T) {
	customs := &fakeCustoms{}

	engine, done := buildTestEngine(t, signinTestConfig(), engineDeps{customs: customs})
	defer done()

	if _, err := engine.EvaluateSignin(context.Background(), SigninRequest{UID: "u1", Email: "alice@example.com"}); err != nil {
		t.Fatalf("EvaluateSignin failed: %v", err)
	}
	if len(customs.actions) != 1 || customs.actions[0] != "accountLogin" {
		t.Fatalf("unexpected customs actions: %v", customs.actions)
	}
}

func TestSigninHistoryFetchErrorWrapped(t *testing.T) {
	store := newFakeAccountStore()
	store.fetchErr = errors.New("db down")

	engine, done := buildTestEngine(t, signinTestConfig(), engineDeps{store: store})
	defer done()

	_, err := engine.EvaluateSignin(context.Background(), SigninRequest{UID: "u1", Email: "alice@example.com"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestSigninProfilingDisabledSkipsHistoryFetch(t *testing.T) {
	cfg := signinTestConfig()
	cfg.SecurityHistory.IPProfilingEnabled = false

	store := newFakeAccountStore()
	store.events["u1"] = []SecurityEvent{
		{Name: "account.login", CreatedAt: time.Now().Add(-time.Hour).UnixMilli(), Verified: true},
	}

	engine, done := buildTestEngine(t, cfg, engineDeps{store: store})
	defer done()

	decision, err := engine.EvaluateSignin(context.Background(), SigninRequest{UID: "u1", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("EvaluateSignin failed: %v", err)
	}
	if store.fetchCalls != 0 {
		t.Fatal("expected no history fetch while profiling is disabled")
	}
	if decision.State != SigninNeedsConfirmation {
		t.Fatalf("expected confirmation without profiling, got %v", decision.State)
	}
}

func TestSigninUnblockAllowedFlagFollowsGate(t *testing.T) {
	cfg := signinTestConfig()
	cfg.SigninUnblock.Enabled = true
	cfg.SigninUnblock.SampleRate = 1

	engine, done := buildTestEngine(t, cfg, engineDeps{mailer: &fakeMailer{}})
	defer done()

	decision, err := engine.EvaluateSignin(context.Background(), SigninRequest{UID: "u1", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("EvaluateSignin failed: %v", err)
	}
	if !decision.UnblockAllowed {
		t.Fatal("expected unblock to be offered at full sample rate")
	}
}

func TestSigninEmitsActivityWithDecision(t *testing.T) {
	sink := NewChannelSink(8)

	engine, done := buildTestEngine(t, signinTestConfig(), engineDeps{sink: sink})
	defer done()

	ctx := WithClientIP(context.Background(), "198.51.100.7")
	if _, err := engine.EvaluateSignin(ctx, SigninRequest{UID: "u1", Email: "alice@example.com"}); err != nil {
		t.Fatalf("EvaluateSignin failed: %v", err)
	}

	events := collectActivity(t, sink, 1)
	ev := events[0]
	if ev.EventType != "account.login" {
		t.Fatalf("unexpected event type %q", ev.EventType)
	}
	if ev.IP != "198.51.100.7" {
		t.Fatalf("expected client IP on event, got %q", ev.IP)
	}
	if ev.Metadata["state"] != "needs_confirmation" {
		t.Fatalf("unexpected state metadata %q", ev.Metadata["state"])
	}
}

func TestDecideSigninPrecedence(t *testing.T) {
	cfg := signinTestConfig()
	cfg.SigninConfirmation.ForcedEmailAddresses = []string{`^forced@example\.com$`}
	cfg.AccountAgeBypass.Enabled = true
	cfg.AccountAgeBypass.AccountCreatedSince = 24 * time.Hour

	engine, done := buildTestEngine(t, cfg, engineDeps{})
	defer done()

	now := time.Now()
	recent := []SecurityEvent{
		{Name: "account.login", CreatedAt: now.Add(-time.Hour).UnixMilli(), Verified: true},
	}
	oldAccount := now.Add(-48 * time.Hour).UnixMilli()

	// Forced email wins over bypass and history.
	d := engine.DecideSignin(SigninRequest{UID: "u1", Email: "forced@example.com", AccountCreatedAt: oldAccount}, recent, now)
	if d.State != SigninNeedsConfirmation || d.Reason != "forced_email" {
		t.Fatalf("forced email precedence broken: %+v", d)
	}

	// Suspicious wins over bypass and history.
	d = engine.DecideSignin(SigninRequest{UID: "u1", Email: "alice@example.com", AccountCreatedAt: oldAccount, SuspiciousRequest: true}, recent, now)
	if d.State != SigninNeedsConfirmation || d.Reason != "suspicious_request" {
		t.Fatalf("suspicious precedence broken: %+v", d)
	}

	// Bypass wins over the history scan.
	d = engine.DecideSignin(SigninRequest{UID: "u1", Email: "alice@example.com", AccountCreatedAt: oldAccount}, recent, now)
	if d.State != SigninTrusted || d.Reason != "account_age_bypass" {
		t.Fatalf("age bypass precedence broken: %+v", d)
	}
}
