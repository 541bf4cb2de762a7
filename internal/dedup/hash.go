// Package dedup provides the content-addressing primitive behind
// canonical/alias file deduplication.
package dedup

import (
	"encoding/hex"
	"io"

	"lukechampine.com/blake3"
)

// HashBytes returns the hex-encoded blake3 digest of raw file bytes, used
// as the files.content_hash value.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashReader streams r through blake3 without buffering the whole input,
// for clients that submit content hashes computed over large files.
func HashReader(r io.Reader) (string, error) {
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
