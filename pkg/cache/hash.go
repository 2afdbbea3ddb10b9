package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/vmihailenco/msgpack/v5"
)

// hashKey builds "prefix:sha256(parts)". Parts are msgpack encoded, so
// structs with the same field values hash the same.
func hashKey(prefix string, parts ...any) string {
	data, err := msgpack.Marshal(parts)
	if err != nil {
		// Key parts are plain values; an encoding failure is a programming
		// error and must not alias another key.
		panic("cache: unencodable key part: " + err.Error())
	}
	return prefix + ":" + Hash(data)
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
