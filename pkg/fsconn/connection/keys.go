package connection

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// KeyGenerator generates registry keys.
type KeyGenerator func() string

// UUIDKeyGenerator generates random UUID keys. Collisions are not checked
// beyond Register failing with ErrKeyExists.
func UUIDKeyGenerator() string {
	return uuid.NewString()
}

// SequenceKeyGenerator returns a generator of sequential keys with the given
// prefix (useful for testing).
func SequenceKeyGenerator(prefix string) KeyGenerator {
	var counter atomic.Uint64
	return func() string {
		return prefix + strconv.FormatUint(counter.Add(1), 10)
	}
}
