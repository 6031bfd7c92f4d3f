package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no live record exists for a token ID.
var ErrNotFound = errors.New("token not found")

// ErrUnavailable wraps Redis transport failures.
var ErrUnavailable = errors.New("token store unavailable")

// Store persists token records in Redis, keyed by derived token ID.
// Record TTL follows the configured lifetime table; classes with zero
// lifetime and device-bound session tokens are stored without expiry.
type Store struct {
	redis     *redis.Client
	prefix    string
	lifetimes Lifetimes
}

func NewStore(client *redis.Client, prefix string, lifetimes Lifetimes) *Store {
	return &Store{
		redis:     client,
		prefix:    prefix,
		lifetimes: lifetimes,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + ":tok:" + id
}

// Save writes the token record. The secret material on tok is never
// persisted.
func (s *Store) Save(ctx context.Context, tok Token) error {
	encoded, err := Encode(tok)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if tok.DeviceID == "" || (tok.Kind != SessionWithDevice && tok.Kind != SessionWithoutDevice) {
		ttl = s.lifetimes.For(tok.Kind)
	}

	if err := s.redis.Set(ctx, s.key(tok.ID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Get loads the record for id. Records past their configured lifetime
// are reported as not found even if the Redis TTL has not fired yet.
func (s *Store) Get(ctx context.Context, id string) (Token, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Token{}, ErrNotFound
		}
		return Token{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	tok, err := Decode(id, data)
	if err != nil {
		return Token{}, err
	}
	if s.lifetimes.Expired(tok, time.Now()) {
		return Token{}, ErrNotFound
	}

	return tok, nil
}

// MarkVerified flips the stored record's verification flag, preserving
// its remaining TTL. Marking an already-verified token is a no-op.
func (s *Store) MarkVerified(ctx context.Context, id string) (Token, error) {
	const maxRetries = 4
	key := s.key(id)

	for i := 0; i < maxRetries; i++ {
		var verified Token

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			tok, err := Decode(id, data)
			if err != nil {
				return err
			}
			if !tok.MarkVerified() {
				verified = tok
				return nil
			}

			updated, err := Encode(tok)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			if err != nil {
				return err
			}

			verified = tok
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return Token{}, ErrNotFound
			}
			return Token{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		return verified, nil
	}

	return Token{}, fmt.Errorf("%w: optimistic lock retries exhausted", ErrUnavailable)
}

// Delete removes the record for id. Deleting an absent record is not an
// error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
