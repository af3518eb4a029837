package services

import (
	"bytes"

	"github.com/google/uuid"
)

// PairKey orders two user IDs into the canonical (low, high) form stored by
// the friendships and direct_conversations tables. The ordering is the byte
// order of the UUIDs, which matches how Postgres compares uuid columns, so
// PairKey(a, b) and PairKey(b, a) address the same row.
func PairKey(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}
