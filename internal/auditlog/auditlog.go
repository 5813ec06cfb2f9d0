// Package auditlog records attestation lifecycle events in a hash-chained
// log. Every entry commits to its predecessor, so tampering with history is
// detectable by walking the chain.
package auditlog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenesisHash anchors the chain; entry 0 carries it verbatim and every
// later hash chains from it.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one audit record.
type Entry struct {
	Index         int       `json:"index"`
	Timestamp     time.Time `json:"timestamp"`
	AttestationID string    `json:"attestation_id"`
	Action        string    `json:"action"` // submitted, revoked, anchored, genesis
	Actor         string    `json:"actor"`  // business ID or "attestd-system"
	DataHash      string    `json:"data_hash"`
	PrevHash      string    `json:"prev_hash"`
	Hash          string    `json:"hash"`
}

// Ledger is the audit log interface. *MemoryLedger and *PostgresLedger
// implement it.
type Ledger interface {
	// Append adds an entry chained to the previous one. payload is
	// JSON-marshalled and its SHA-256 stored as DataHash.
	Append(ctx context.Context, attestationID, action, actor string, payload any) (*Entry, error)

	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Len returns the number of entries, genesis included.
	Len(ctx context.Context) (int, error)

	// Verify walks the chain and returns nil if it is intact.
	Verify(ctx context.Context) error

	// Root returns the hash of the newest entry.
	Root(ctx context.Context) (string, error)
}

// hashEntry computes the chained hash of a non-genesis entry. The timestamp
// is hashed at microsecond precision, the most a timestamptz column can
// round-trip, so a persisted entry re-verifies after read-back.
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s|%s",
		e.Index, e.Timestamp.Truncate(time.Microsecond).Format(time.RFC3339Nano),
		e.AttestationID, e.Action, e.Actor, e.DataHash, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
