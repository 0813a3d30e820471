// Package checksum computes content digests used for change detection.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// SumExcept digests data line by line, leaving out the first line for which
// skip returns true. Line endings are normalised to "\n".
func SumExcept(data []byte, skip func(line []byte) bool) string {
	h := sha256.New()
	skipped := false
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if !skipped && skip(line) {
			skipped = true
			continue
		}
		h.Write(line)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
