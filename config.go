package goAccount

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccount/policy"
	"github.com/MrEthical07/goAccount/servicetoken"
	"github.com/MrEthical07/goAccount/token"
)

// Config defines a public type used by goAccount APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Tokens             TokenConfig
	LastAccessTracking GateConfig
	SigninConfirmation GateConfig
	SigninUnblock      SigninUnblockConfig
	AccountAgeBypass   AccountAgeBypassConfig
	SecurityHistory    SecurityHistoryConfig
	ServiceTokens      ServiceTokenConfig
	Activity           ActivityConfig
	Metrics            MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by goAccount APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	RedisPrefix string
	Lifetimes   token.Lifetimes
}

/*
====================================
FEATURE GATES
====================================
*/

// GateConfig defines a public type used by goAccount APIs.
//
// GateConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GateConfig struct {
	Enabled               bool
	SampleRate            float64
	AllowedEmailAddresses []string
	ForcedEmailAddresses  []string
}

// SigninUnblockConfig defines a public type used by goAccount APIs.
//
// SigninUnblockConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigninUnblockConfig struct {
	GateConfig

	CodeLifetime time.Duration
	CodeLength   int
	MaxAttempts  int
}

// AccountAgeBypassConfig defines a public type used by goAccount APIs.
//
// AccountAgeBypassConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccountAgeBypassConfig struct {
	Enabled             bool
	AccountCreatedSince time.Duration
}

// SecurityHistoryConfig defines a public type used by goAccount APIs.
//
// SecurityHistoryConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityHistoryConfig struct {
	Enabled            bool
	IPProfilingEnabled bool
	IPProfilingWindow  time.Duration
}

/*
====================================
SERVICE TOKEN CONFIG
====================================
*/

// ServiceTokenConfig defines a public type used by goAccount APIs.
//
// ServiceTokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ServiceTokenConfig struct {
	Enabled       bool
	TTL           time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
}

/*
====================================
OBSERVABILITY
====================================
*/

// ActivityConfig defines a public type used by goAccount APIs.
//
// ActivityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ActivityConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goAccount APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Tokens: TokenConfig{
			RedisPrefix: "gacct",
			Lifetimes: token.Lifetimes{
				SessionWithDevice:    0,
				SessionWithoutDevice: 28 * 24 * time.Hour,
				KeyFetch:             time.Hour,
				PasswordForgot:       15 * time.Minute,
				PasswordChange:       15 * time.Minute,
				AccountReset:         15 * time.Minute,
			},
		},
		LastAccessTracking: GateConfig{
			Enabled:    true,
			SampleRate: 1,
		},
		SigninConfirmation: GateConfig{
			Enabled:    false,
			SampleRate: 0,
		},
		SigninUnblock: SigninUnblockConfig{
			GateConfig: GateConfig{
				Enabled:    false,
				SampleRate: 0,
			},
			CodeLifetime: time.Hour,
			CodeLength:   8,
			MaxAttempts:  10,
		},
		AccountAgeBypass: AccountAgeBypassConfig{
			Enabled:             false,
			AccountCreatedSince: 24 * time.Hour,
		},
		SecurityHistory: SecurityHistoryConfig{
			Enabled:            true,
			IPProfilingEnabled: true,
			IPProfilingWindow:  72 * time.Hour,
		},
		ServiceTokens: ServiceTokenConfig{
			Enabled:       false,
			TTL:           5 * time.Minute,
			SigningMethod: "ed25519",
		},
		Activity: ActivityConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneGate(g GateConfig) GateConfig {
	g.AllowedEmailAddresses = cloneStrings(g.AllowedEmailAddresses)
	g.ForcedEmailAddresses = cloneStrings(g.ForcedEmailAddresses)
	return g
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.LastAccessTracking = cloneGate(cfg.LastAccessTracking)
	out.SigninConfirmation = cloneGate(cfg.SigninConfirmation)
	out.SigninUnblock.GateConfig = cloneGate(cfg.SigninUnblock.GateConfig)
	out.ServiceTokens.PrivateKey = cloneBytes(cfg.ServiceTokens.PrivateKey)
	out.ServiceTokens.PublicKey = cloneBytes(cfg.ServiceTokens.PublicKey)
	return out
}

func (c Config) policyConfig() policy.Config {
	return policy.Config{
		LastAccessTracking: policyGate(c.LastAccessTracking),
		SigninUnblock:      policyGate(c.SigninUnblock.GateConfig),
		SigninConfirmation: policyGate(c.SigninConfirmation),
		AccountAgeBypass: policy.AccountAgeBypass{
			Enabled:             c.AccountAgeBypass.Enabled,
			AccountCreatedSince: c.AccountAgeBypass.AccountCreatedSince,
		},
		SecurityHistory: policy.SecurityHistory{
			Enabled:           c.SecurityHistory.Enabled,
			ProfilingEnabled:  c.SecurityHistory.IPProfilingEnabled,
			IPProfilingWindow: c.SecurityHistory.IPProfilingWindow,
		},
	}
}

func policyGate(g GateConfig) policy.Gate {
	return policy.Gate{
		Enabled:               g.Enabled,
		SampleRate:            g.SampleRate,
		AllowedEmailAddresses: g.AllowedEmailAddresses,
		ForcedEmailAddresses:  g.ForcedEmailAddresses,
	}
}

func (c Config) serviceTokenConfig() servicetoken.Config {
	return servicetoken.Config{
		TTL:           c.ServiceTokens.TTL,
		SigningMethod: servicetoken.SigningMethod(c.ServiceTokens.SigningMethod),
		PrivateKey:    cloneBytes(c.ServiceTokens.PrivateKey),
		PublicKey:     cloneBytes(c.ServiceTokens.PublicKey),
		Issuer:        c.ServiceTokens.Issuer,
		Audience:      c.ServiceTokens.Audience,
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.Tokens.RedisPrefix == "" {
		return errors.New("Tokens.RedisPrefix must not be empty")
	}
	for _, lt := range []struct {
		name  string
		value time.Duration
	}{
		{"SessionWithDevice", c.Tokens.Lifetimes.SessionWithDevice},
		{"SessionWithoutDevice", c.Tokens.Lifetimes.SessionWithoutDevice},
		{"KeyFetch", c.Tokens.Lifetimes.KeyFetch},
		{"PasswordForgot", c.Tokens.Lifetimes.PasswordForgot},
		{"PasswordChange", c.Tokens.Lifetimes.PasswordChange},
		{"AccountReset", c.Tokens.Lifetimes.AccountReset},
	} {
		if lt.value < 0 {
			return fmt.Errorf("Tokens.Lifetimes.%s must not be negative", lt.name)
		}
	}

	// Malformed gate patterns and out-of-range sample rates surface here,
	// before the engine is handed out.
	if _, err := policy.Compile(c.policyConfig()); err != nil {
		return err
	}

	if c.SigninUnblock.Enabled {
		if c.SigninUnblock.CodeLifetime <= 0 {
			return errors.New("SigninUnblock.CodeLifetime must be positive")
		}
		if c.SigninUnblock.CodeLength < 6 || c.SigninUnblock.CodeLength > 16 {
			return errors.New("SigninUnblock.CodeLength must be between 6 and 16")
		}
		if c.SigninUnblock.MaxAttempts <= 0 {
			return errors.New("SigninUnblock.MaxAttempts must be positive")
		}
	}

	if c.SecurityHistory.IPProfilingEnabled && c.SecurityHistory.IPProfilingWindow <= 0 {
		return errors.New("SecurityHistory.IPProfilingWindow must be positive when profiling is enabled")
	}

	if c.AccountAgeBypass.Enabled && c.AccountAgeBypass.AccountCreatedSince <= 0 {
		return errors.New("AccountAgeBypass.AccountCreatedSince must be positive when enabled")
	}

	if c.ServiceTokens.Enabled {
		if _, err := servicetoken.NewManager(c.serviceTokenConfig()); err != nil {
			return err
		}
	}

	if c.Activity.Enabled && c.Activity.BufferSize <= 0 {
		return errors.New("Activity.BufferSize must be positive when activity is enabled")
	}

	return nil
}
