// Package token implements the lifecycle of the typed secret tokens that
// back sessions, password resets, and key retrieval: deterministic ID
// derivation from secret material, configured per-class lifetimes, and a
// Redis-backed record store.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Kind is the lifetime class of a token.
type Kind uint8

const (
	// SessionWithDevice is a session token bound to a registered device.
	SessionWithDevice Kind = iota
	// SessionWithoutDevice is a session token with no device association.
	SessionWithoutDevice
	// KeyFetch authorizes a one-time key retrieval.
	KeyFetch
	// PasswordForgot backs a password-forgot flow.
	PasswordForgot
	// PasswordChange backs a password-change flow.
	PasswordChange
	// AccountReset backs an account-reset flow.
	AccountReset

	kindCount
)

func (k Kind) String() string {
	switch k {
	case SessionWithDevice:
		return "sessionTokenWithDevice"
	case SessionWithoutDevice:
		return "sessionTokenWithoutDevice"
	case KeyFetch:
		return "keyFetchToken"
	case PasswordForgot:
		return "passwordForgotToken"
	case PasswordChange:
		return "passwordChangeToken"
	case AccountReset:
		return "accountResetToken"
	default:
		return fmt.Sprintf("token.Kind(%d)", uint8(k))
	}
}

// Lifetimes maps each lifetime class to its configured duration. A zero
// duration means the class never expires.
type Lifetimes struct {
	SessionWithDevice    time.Duration
	SessionWithoutDevice time.Duration
	KeyFetch             time.Duration
	PasswordForgot       time.Duration
	PasswordChange       time.Duration
	AccountReset         time.Duration
}

// For returns the configured duration for kind. An unknown kind is a
// programming error, not a recoverable condition, and panics.
func (l Lifetimes) For(kind Kind) time.Duration {
	switch kind {
	case SessionWithDevice:
		return l.SessionWithDevice
	case SessionWithoutDevice:
		return l.SessionWithoutDevice
	case KeyFetch:
		return l.KeyFetch
	case PasswordForgot:
		return l.PasswordForgot
	case PasswordChange:
		return l.PasswordChange
	case AccountReset:
		return l.AccountReset
	default:
		panic("token: unknown lifetime class " + kind.String())
	}
}

// Token is a typed secret-bearing record. Tokens are immutable once
// minted except for the Verified flag, which flips at most once, from
// false to true, never back.
type Token struct {
	// ID is derived deterministically from the secret material and is
	// the store lookup key. It carries no secret entropy of its own.
	ID        string
	UID       string
	Kind      Kind
	CreatedAt int64 // epoch milliseconds
	Verified  bool
	// DeviceID is set only on session tokens bound to a device. A
	// device-bound session token never expires.
	DeviceID string

	// Secret is the raw secret material. It is populated only on the
	// token returned from Mint, is never persisted by the store, and
	// must never be logged.
	Secret []byte
}

const idDerivationInfo = "goAccount/v1/tokenID"

// MintAt derives a token from secret material at an explicit creation
// time. The ID is an HKDF-SHA256 digest of the secret, so minting the
// same secret twice yields the same lookup key; partially-completed
// flows can resume idempotently.
func MintAt(kind Kind, uid string, secret []byte, now time.Time) Token {
	reader := hkdf.New(sha256.New, secret, nil, []byte(idDerivationInfo))
	id := make([]byte, 32)
	if _, err := io.ReadFull(reader, id); err != nil {
		// HKDF-SHA256 produces far more than 32 bytes before exhaustion.
		panic("token: id derivation failed: " + err.Error())
	}

	return Token{
		ID:        hex.EncodeToString(id),
		UID:       uid,
		Kind:      kind,
		CreatedAt: now.UnixMilli(),
		Secret:    append([]byte(nil), secret...),
	}
}

// Mint is MintAt at the current time.
func Mint(kind Kind, uid string, secret []byte) Token {
	return MintAt(kind, uid, secret, time.Now())
}

// MarkVerified flips the verification flag. It reports whether the flip
// happened; a token that is already verified is left unchanged.
func (t *Token) MarkVerified() bool {
	if t.Verified {
		return false
	}
	t.Verified = true
	return true
}

// Expired reports whether tok has outlived its configured lifetime at
// now. A zero configured lifetime never expires, and a session token
// bound to a device never expires regardless of its class default.
// Expiry is monotonic in now.
func (l Lifetimes) Expired(tok Token, now time.Time) bool {
	if tok.DeviceID != "" && (tok.Kind == SessionWithDevice || tok.Kind == SessionWithoutDevice) {
		return false
	}

	lifetime := l.For(tok.Kind)
	if lifetime == 0 {
		return false
	}

	return now.UnixMilli()-tok.CreatedAt >= lifetime.Milliseconds()
}

// FilterLive returns the tokens not yet expired at now, preserving
// input order.
func (l Lifetimes) FilterLive(tokens []Token, now time.Time) []Token {
	live := make([]Token, 0, len(tokens))
	for _, tok := range tokens {
		if !l.Expired(tok, now) {
			live = append(live, tok)
		}
	}
	return live
}
