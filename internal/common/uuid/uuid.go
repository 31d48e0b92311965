// Package uuid wraps github.com/google/uuid. Identifiers minted by the service are
// UUIDv7 so that catalog rows sort by creation time.
package uuid

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

type UUID = uuid.UUID

var Nil = uuid.Nil

// New returns a new UUIDv7. It panics if the random source fails.
func New() UUID {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id
}

// NewRandom returns a new UUIDv7.
func NewRandom() (UUID, error) {
	return uuid.NewV7()
}

func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

func MustParse(s string) UUID {
	return uuid.MustParse(s)
}

// IsValid reports whether s parses as a UUID in any of the accepted textual forms.
func IsValid(s string) bool {
	return uuid.Validate(s) == nil
}

// Hex returns the 32 lowercase hex digits of id without separators.
func Hex(id UUID) string {
	return hex.EncodeToString(id[:])
}

// CreatedAt returns the millisecond timestamp embedded in a UUIDv7.
func CreatedAt(id UUID) time.Time {
	ms := int64(id[0])<<40 | int64(id[1])<<32 | int64(id[2])<<24 |
		int64(id[3])<<16 | int64(id[4])<<8 | int64(id[5])
	return time.UnixMilli(ms)
}
