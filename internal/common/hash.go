package common

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// HashParts digests parts into a fixed-length key. Each part is length
// prefixed, so ("a|b", "c") and ("a", "b|c") never collide.
func HashParts(parts ...string) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		_, _ = h.Write(n[:])
		_, _ = h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
