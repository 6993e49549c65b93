// Package util provides small helpers shared across Kelp components.
package util

import (
	crand "crypto/rand"
	"encoding/hex"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Not suitable for secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// RandomIndex returns a uniformly random index in [0, n). It returns 0 when n <= 1.
func RandomIndex(n int) int {
	if n <= 1 {
		return 0
	}
	return rand.IntN(n)
}

// GenerateFlowID returns a new flow identifier of the form "flow-<uuid>".
func GenerateFlowID() string {
	return "flow-" + uuid.NewString()
}

// GenerateShareID returns an unguessable identifier for shared flow links: "s_" followed by
// 16 hex characters from crypto/rand.
func GenerateShareID() string {
	var b [8]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = crand.Read(b[:])
	return "s_" + hex.EncodeToString(b[:])
}
