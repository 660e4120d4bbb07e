package pkg

import (
	"crypto/rand"
	"encoding/base64"
)

// Room codes are typed by hand, so they stay short, uppercase and unambiguous
// to enter. 36^8 combinations make collisions practically impossible.
const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 8
)

// GenerateRoomCode - generates a new random room code.
func GenerateRoomCode() string {
	b := make([]byte, roomCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "error-generating-room-code"
	}

	for i := range b {
		b[i] = roomCodeAlphabet[int(b[i])%len(roomCodeAlphabet)]
	}

	return string(b)
}

// GenerateConnectionID - generates a new unique connection identifier.
func GenerateConnectionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "error-generating-connection-id"
	}

	return base64.RawURLEncoding.EncodeToString(b)
}
