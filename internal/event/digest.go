package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed digests. The version suffix
// leaves room for algorithm migration.
const (
	domainState   = "palaver/state/v1"
	domainMessage = "palaver/message/v1"
)

// hashWithDomain computes SHA-256 over domain + 0x00 + data. The null
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateDigest computes a content-addressed digest over canonical bytes of
// replayed state. Two folds over the same feed must produce the same
// digest; the CLI uses this to verify determinism.
func StateDigest(canonical []byte) string {
	return hashWithDomain(domainState, canonical)
}

// MessageID derives a content-addressed id for a feed record whose
// payload carries none of its own. Stable across re-ingestion of the
// same record.
func MessageID(groupID string, payload []byte) string {
	data := make([]byte, 0, len(groupID)+1+len(payload))
	data = append(data, groupID...)
	data = append(data, 0x00)
	data = append(data, payload...)
	return hashWithDomain(domainMessage, data)
}

// ShortID returns the first 12 hex characters of an id for log and text
// output. Returns the id unchanged if it is already shorter.
func ShortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return fmt.Sprintf("%s…", id[:12])
}
