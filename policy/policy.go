// Package policy evaluates feature gates against an immutable snapshot
// of the rollout configuration. A snapshot is compiled once and treated
// as read-only; hot reload is a new snapshot swapped in behind a single
// reference, never an in-place mutation.
package policy

import (
	"fmt"
	"regexp"
	"time"

	"github.com/MrEthical07/goAccount/sampling"
)

// Gate configures a single sampled feature: an on/off switch, a rollout
// rate in [0,1], and regular-expression lists that pin specific email
// addresses on. Forced patterns are an operational override and win over
// everything; allowed patterns win over sampling.
type Gate struct {
	Enabled               bool
	SampleRate            float64
	AllowedEmailAddresses []string
	ForcedEmailAddresses  []string
}

// AccountAgeBypass configures the signin-confirmation bypass for
// sufficiently old accounts. The naming is deliberate: the bypass
// applies only to accounts that are not brand new.
type AccountAgeBypass struct {
	Enabled             bool
	AccountCreatedSince time.Duration
}

// SecurityHistory configures security-event tracking and the IP
// profiling window. Profiling is a stricter superset gate: it is only
// effective when tracking is also enabled.
type SecurityHistory struct {
	Enabled           bool
	ProfilingEnabled  bool
	IPProfilingWindow time.Duration
}

// Config is the raw, uncompiled policy configuration.
type Config struct {
	LastAccessTracking Gate
	SigninUnblock      Gate
	SigninConfirmation Gate
	AccountAgeBypass   AccountAgeBypass
	SecurityHistory    SecurityHistory
}

// Feature salts fed to the sampler. The salt is the feature name, so the
// same identifier is sampled independently per feature.
const (
	saltLastAccessTracking = "lastAccessTimeUpdates"
	saltSigninUnblock      = "signinUnblock"
)

type compiledGate struct {
	enabled    bool
	sampleRate float64
	allowed    []*regexp.Regexp
	forced     []*regexp.Regexp
}

func compileGate(name string, g Gate) (compiledGate, error) {
	out := compiledGate{
		enabled:    g.Enabled,
		sampleRate: g.SampleRate,
	}

	for _, pattern := range g.AllowedEmailAddresses {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return compiledGate{}, fmt.Errorf("policy: %s allowed pattern %q: %w", name, pattern, err)
		}
		out.allowed = append(out.allowed, re)
	}
	for _, pattern := range g.ForcedEmailAddresses {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return compiledGate{}, fmt.Errorf("policy: %s forced pattern %q: %w", name, pattern, err)
		}
		out.forced = append(out.forced, re)
	}

	return out, nil
}

func matchAny(patterns []*regexp.Regexp, email string) bool {
	for _, re := range patterns {
		if re.MatchString(email) {
			return true
		}
	}
	return false
}

// Snapshot is a compiled, immutable view of a Config. All evaluators are
// pure functions of the snapshot and their arguments.
type Snapshot struct {
	lastAccess         compiledGate
	signinUnblock      compiledGate
	signinConfirmation compiledGate
	accountAgeBypass   AccountAgeBypass
	securityHistory    SecurityHistory
}

// Compile validates cfg and builds a Snapshot. A pattern that does not
// compile is a configuration error and surfaces here, at startup or
// first use, never silently.
func Compile(cfg Config) (*Snapshot, error) {
	if err := checkRate("lastAccessTracking", cfg.LastAccessTracking.SampleRate); err != nil {
		return nil, err
	}
	if err := checkRate("signinUnblock", cfg.SigninUnblock.SampleRate); err != nil {
		return nil, err
	}
	if err := checkRate("signinConfirmation", cfg.SigninConfirmation.SampleRate); err != nil {
		return nil, err
	}

	lastAccess, err := compileGate("lastAccessTracking", cfg.LastAccessTracking)
	if err != nil {
		return nil, err
	}
	unblock, err := compileGate("signinUnblock", cfg.SigninUnblock)
	if err != nil {
		return nil, err
	}
	confirmation, err := compileGate("signinConfirmation", cfg.SigninConfirmation)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		lastAccess:         lastAccess,
		signinUnblock:      unblock,
		signinConfirmation: confirmation,
		accountAgeBypass:   cfg.AccountAgeBypass,
		securityHistory:    cfg.SecurityHistory,
	}, nil
}

func checkRate(name string, rate float64) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("policy: %s sample rate %v outside [0,1]", name, rate)
	}
	return nil
}

// LastAccessTrackingEnabled reports whether last-access timestamps are
// recorded for this account. Pattern match short-circuits before the
// probabilistic path.
func (s *Snapshot) LastAccessTrackingEnabled(uid, email string) bool {
	if !s.lastAccess.enabled {
		return false
	}
	if matchAny(s.lastAccess.allowed, email) {
		return true
	}
	return sampling.IsSampled(s.lastAccess.sampleRate, uid, saltLastAccessTracking)
}

// SigninUnblockEnabled reports whether the unblock-code challenge is
// available to this account. Check order is a security contract:
// forced pattern, then allowed pattern, then sampling.
func (s *Snapshot) SigninUnblockEnabled(uid, email string) bool {
	if !s.signinUnblock.enabled {
		return false
	}
	if matchAny(s.signinUnblock.forced, email) {
		return true
	}
	if matchAny(s.signinUnblock.allowed, email) {
		return true
	}
	return sampling.IsSampled(s.signinUnblock.sampleRate, uid, saltSigninUnblock)
}

// SigninConfirmationForced reports whether this email matches the
// forced-confirmation override. A match demands confirmation regardless
// of history or any bypass.
func (s *Snapshot) SigninConfirmationForced(email string) bool {
	if !s.signinConfirmation.enabled {
		return false
	}
	return matchAny(s.signinConfirmation.forced, email)
}

// SigninConfirmationBypassForAccountAge reports whether confirmation may
// be skipped because the account is old enough. createdAt is epoch
// milliseconds.
func (s *Snapshot) SigninConfirmationBypassForAccountAge(createdAt int64, now time.Time) bool {
	if !s.accountAgeBypass.Enabled {
		return false
	}
	return now.UnixMilli()-createdAt >= s.accountAgeBypass.AccountCreatedSince.Milliseconds()
}

// SecurityHistoryTrackingEnabled reports whether security events are
// recorded at all.
func (s *Snapshot) SecurityHistoryTrackingEnabled() bool {
	return s.securityHistory.Enabled
}

// SecurityHistoryProfilingEnabled reports whether recorded history may
// be consulted to trust a sign-in. Requires tracking.
func (s *Snapshot) SecurityHistoryProfilingEnabled() bool {
	return s.securityHistory.Enabled && s.securityHistory.ProfilingEnabled
}

// IPProfilingWindow is the recency window inside which a verified login
// event counts toward trusting a sign-in.
func (s *Snapshot) IPProfilingWindow() time.Duration {
	return s.securityHistory.IPProfilingWindow
}
