package goAccount

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	unblockKeySegment      = "sub"
	unblockRecordVersionV1 = 1
)

var (
	errUnblockNotFound         = errors.New("unblock record not found")
	errUnblockCodeMismatch     = errors.New("unblock code mismatch")
	errUnblockAttemptsExceeded = errors.New("unblock attempts exceeded")
	errUnblockRedisUnavailable = errors.New("unblock redis unavailable")
)

// One active code per account. Saving a new code replaces any previous
// one, matching the semantics of resending a challenge.
type unblockCodeRecord struct {
	UID       string
	CodeHash  [32]byte
	ExpiresAt int64
	Attempts  uint16
}

type unblockCodeStore struct {
	redis  *redis.Client
	prefix string
}

func newUnblockCodeStore(redisClient *redis.Client, prefix string) *unblockCodeStore {
	return &unblockCodeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *unblockCodeStore) key(uid string) string {
	return s.prefix + ":" + unblockKeySegment + ":" + uid
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *unblockCodeStore) Save(ctx context.Context, uid string, record *unblockCodeRecord, ttl time.Duration) error {
	encoded, err := encodeUnblockCodeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(uid), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errUnblockRedisUnavailable, err)
	}

	return nil
}

// Consume describes the consume operation and its observable behavior.
//
// Consume may return an error when input validation, dependency calls, or security checks fail.
// Consume does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *unblockCodeStore) Consume(ctx context.Context, uid string, providedHash [32]byte, maxAttempts int) error {
	const maxRetries = 4
	key := s.key(uid)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeUnblockCodeRecord(data)
			if err != nil {
				return err
			}

			now := time.Now()
			if now.Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errUnblockNotFound
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return errUnblockAttemptsExceeded
				}

				ttl := time.Until(time.Unix(record.ExpiresAt, 0))
				if ttl <= 0 {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return errUnblockNotFound
				}

				updated, err := encodeUnblockCodeRecord(record)
				if err != nil {
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return errUnblockCodeMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return errUnblockNotFound
			case errors.Is(err, errUnblockNotFound), errors.Is(err, errUnblockCodeMismatch), errors.Is(err, errUnblockAttemptsExceeded):
				return err
			default:
				return fmt.Errorf("%w: %v", errUnblockRedisUnavailable, err)
			}
		}

		return nil
	}

	return fmt.Errorf("%w: optimistic lock retries exhausted", errUnblockRedisUnavailable)
}

func encodeUnblockCodeRecord(record *unblockCodeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(unblockRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UID) > 65535 {
		return nil, errors.New("unblock record uid too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UID)
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeUnblockCodeRecord(data []byte) (*unblockCodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != unblockRecordVersionV1 {
		return nil, errors.New("invalid unblock record version")
	}

	record := &unblockCodeRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var uidLen uint16
	if err := binary.Read(reader, binary.BigEndian, &uidLen); err != nil {
		return nil, err
	}

	uid := make([]byte, uidLen)
	if _, err := io.ReadFull(reader, uid); err != nil {
		return nil, err
	}
	record.UID = string(uid)

	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
