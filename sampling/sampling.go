// Package sampling implements deterministic cohort sampling for gradual
// feature rollout. A given (identifier, salt) pair always lands in the
// same cohort, across processes and time, so a feature gate never flaps
// for the same account between requests.
package sampling

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
)

// cohortHexWidth is the fixed-width suffix of the hex digest read as the
// cohort value: 13 hex characters, i.e. the low 52 bits.
const cohortHexWidth = 13

// cohortMax is 2^52 - 1, the largest value representable in the suffix.
const cohortMax = float64(1<<52 - 1)

// IsSampled reports whether identifier falls inside the rollout cohort of
// size rate for the feature named by salt. Rates at or below 0 never
// sample; rates at or above 1 always sample. The decision is a pure
// function of its inputs.
func IsSampled(rate float64, identifier any, salt string) bool {
	if rate <= 0 {
		return false
	}
	if rate >= 1 {
		return true
	}

	digest := sha1.Sum([]byte(identifierString(identifier) + salt))
	hexDigest := hex.EncodeToString(digest[:])

	cohort, err := strconv.ParseUint(hexDigest[len(hexDigest)-cohortHexWidth:], 16, 64)
	if err != nil {
		// 13 hex characters always parse into 52 bits.
		panic("sampling: cohort suffix did not parse: " + err.Error())
	}

	return rate > float64(cohort)/cohortMax
}

func identifierString(identifier any) string {
	switch v := identifier.(type) {
	case string:
		return v
	case []byte:
		return hex.EncodeToString(v)
	default:
		return fmt.Sprint(v)
	}
}
