// Package fileid provides deterministic identifiers for extracted content.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
)

const contentPrefix = "sha256:"

// ContentID identifies a document by its bytes, the mimetype it is extracted as and the
// fingerprint of the extraction settings. Extraction is deterministic, so equal IDs always
// carry equal results.
func ContentID(data []byte, mimetype, settings string) string {
	h := sha256.New()
	h.Write([]byte(mimetype))
	h.Write([]byte{0})
	h.Write([]byte(settings))
	h.Write([]byte{0})
	h.Write(data)
	return contentPrefix + hex.EncodeToString(h.Sum(nil))
}
