// Package anchor commits Merkle roots to an external ledger. The concrete
// implementation is a strategy chosen at construction time; callers treat
// every failure mode the same way (non-fatal, pending-id fallback), so no
// error here is ever surfaced as a request failure.
package anchor

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the anchoring ledger cannot be reached
// or is not configured.
var ErrUnavailable = errors.New("anchor: ledger unavailable")

// Request carries the fields committed alongside a Merkle root.
type Request struct {
	BusinessID string    `json:"business_id"`
	Period     string    `json:"period"`
	MerkleRoot string    `json:"merkle_root"`
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
}

// Anchor submits a committed root to a ledger and returns the anchoring
// transaction identifier. Implementations must respect ctx cancellation
// between attempts; a hung call is bounded by the caller.
type Anchor interface {
	Submit(ctx context.Context, req Request) (string, error)
}
