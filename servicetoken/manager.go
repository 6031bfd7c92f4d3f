// Package servicetoken signs the compact event tokens delivered to
// attached services alongside account notifications, so receivers can
// authenticate the origin of an event without a callback.
package servicetoken

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
)

// Config holds the signing configuration for event tokens.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
}

// Manager signs and verifies event tokens. Immutable after creation.
type Manager struct {
	config Config
}

// EventClaims is the claim set carried by a signed event token.
type EventClaims struct {
	Event    string `json:"event"`
	UID      string `json:"uid"`
	DeviceID string `json:"did,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("servicetoken: TTL must be > 0")
	}
	switch cfg.SigningMethod {
	case MethodEd25519:
		if len(cfg.PrivateKey) != ed25519.PrivateKeySize {
			return nil, errors.New("servicetoken: ed25519 requires a private key")
		}
		if len(cfg.PublicKey) != ed25519.PublicKeySize {
			return nil, errors.New("servicetoken: ed25519 requires a public key")
		}
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("servicetoken: hs256 requires a key of at least 32 bytes")
		}
	default:
		return nil, fmt.Errorf("servicetoken: unsupported signing method %q", cfg.SigningMethod)
	}

	return &Manager{config: cfg}, nil
}

// Sign issues a token for the named event. Each token carries a fresh
// jti so receivers can deduplicate deliveries.
func (m *Manager) Sign(event, uid, deviceID string, now time.Time) (string, error) {
	claims := EventClaims{
		Event:    event,
		UID:      uid,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}

	switch m.config.SigningMethod {
	case MethodEd25519:
		tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
		return tok.SignedString(ed25519.PrivateKey(m.config.PrivateKey))
	case MethodHS256:
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		return tok.SignedString(m.config.PrivateKey)
	default:
		return "", fmt.Errorf("servicetoken: unsupported signing method %q", m.config.SigningMethod)
	}
}

// Verify parses and validates a token produced by Sign.
func (m *Manager) Verify(token string) (*EventClaims, error) {
	claims := &EventClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		switch m.config.SigningMethod {
		case MethodEd25519:
			if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("servicetoken: unexpected signing method %v", t.Header["alg"])
			}
			return ed25519.PublicKey(m.config.PublicKey), nil
		case MethodHS256:
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("servicetoken: unexpected signing method %v", t.Header["alg"])
			}
			return m.config.PrivateKey, nil
		default:
			return nil, fmt.Errorf("servicetoken: unsupported signing method %q", m.config.SigningMethod)
		}
	},
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("servicetoken: invalid token")
	}

	return claims, nil
}
