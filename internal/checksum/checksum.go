// Package checksum digests JIIX payloads for change detection.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Document digests a JSON document independently of its formatting and key
// order. Invalid JSON falls back to Sum over the raw bytes.
func Document(data []byte) string {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Sum(data)
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return Sum(data)
	}
	return Sum(canonical)
}
