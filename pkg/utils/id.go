package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateID generates a random ID with prefix.
func GenerateID(prefix string) string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

// NewRoomID mints a shareable room identifier. The alphabet stays within
// what room id validation accepts so minted ids always pass it.
func NewRoomID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return "room-" + hex.EncodeToString(b)
}

// GenerateRequestID generates a unique request ID for log correlation.
func GenerateRequestID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return "req_" + hex.EncodeToString(b)
}
