// Package digest fingerprints file contents for change detection.
package digest

import (
	"crypto/md5"
	"encoding/hex"
)

// Size is the digest length in bytes.
const Size = md5.Size

// Sum returns the hex-encoded 128-bit MD5 digest of data. It is used only to
// compare content for equality and carries no security meaning.
func Sum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
