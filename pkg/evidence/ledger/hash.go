package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"aegis-hq/sentinel/pkg/evidence"
)

// ComputeHash computes the chain hash for a record from its content and its
// predecessor's hash. The hash covers every field except Hash itself, so any
// post-hoc edit to a stored record is detectable.
func ComputeHash(record *evidence.EvidenceRecord) string {
	h := sha256.New()

	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], record.Sequence)
	h.Write(seq[:])

	h.Write([]byte(record.ID))
	h.Write([]byte(record.Kind))
	h.Write([]byte(record.CorrelationKey))
	h.Write([]byte(record.RecordedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00")))
	h.Write(record.Payload)
	h.Write([]byte(record.PrevHash))

	return hex.EncodeToString(h.Sum(nil))
}
