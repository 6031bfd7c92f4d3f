package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
	"strings"
)

// Unblock codes are typed by humans from an email; the alphabet omits
// the easily confused characters (I, L, O, U).
const unblockCodeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

func NewSecret(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("invalid secret size")
	}

	secret := make([]byte, size)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

func NewUnblockCode(length int) (string, error) {
	if length < 6 || length > 16 {
		return "", errors.New("invalid unblock code length")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(unblockCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(unblockCodeAlphabet[n.Int64()])
	}

	return b.String(), nil
}

func NormalizeUnblockCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func HashUnblockCode(code string) [32]byte {
	return sha256.Sum256([]byte(NormalizeUnblockCode(code)))
}
