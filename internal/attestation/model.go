package attestation

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an attestation record. The only legal
// transition is submitted → revoked; revoked is terminal.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusRevoked   Status = "revoked"
)

// PendingTxPrefix marks a synthetic transaction hash assigned when the
// anchoring ledger was unreachable at submit time. The reconciler retries
// records carrying this prefix.
const PendingTxPrefix = "pending_"

// DefaultVersion is assigned when a submission omits the version field.
const DefaultVersion = "1.0"

// Record is one committed, optionally anchored, leaf batch for a business
// and period. Fields other than Status, RevokeReason, RevokedAt, and the
// reconciler-owned TxHash are immutable after creation.
type Record struct {
	ID           uuid.UUID  `json:"id"                      db:"id"`
	BusinessID   string     `json:"business_id"             db:"business_id"`
	Period       string     `json:"period"                  db:"period"`
	MerkleRoot   string     `json:"merkle_root"             db:"merkle_root"`
	LeafCount    int        `json:"leaf_count"              db:"leaf_count"`
	Timestamp    time.Time  `json:"timestamp"               db:"timestamp"`
	Version      string     `json:"version"                 db:"version"`
	TxHash       string     `json:"tx_hash"                 db:"tx_hash"`
	Status       Status     `json:"status"                  db:"status"`
	RevokeReason string     `json:"revoke_reason,omitempty" db:"revoke_reason"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"    db:"revoked_at"`
	AttestedAt   time.Time  `json:"attested_at"             db:"attested_at"`
	CreatedAt    time.Time  `json:"created_at"              db:"created_at"`
}

// AnchorPending reports whether the record still carries a synthetic
// transaction hash instead of a real ledger transaction ID.
func (r *Record) AnchorPending() bool {
	return strings.HasPrefix(r.TxHash, PendingTxPrefix)
}

// SubmitRequest is the payload for creating a new attestation.
// Exactly one of MerkleRoot and Leaves must carry the commitment; when
// Leaves are supplied the root is derived and the leaf count recorded.
type SubmitRequest struct {
	BusinessID string     `json:"business_id"`
	Period     string     `json:"period" binding:"required"`
	MerkleRoot string     `json:"merkle_root"`
	Leaves     []string   `json:"leaves"`
	Timestamp  *time.Time `json:"timestamp"`
	Version    string     `json:"version"`

	// CallerBusinessID is resolved by the handler from the business token;
	// never taken from the client body.
	CallerBusinessID string `json:"-"`
	// IdempotencyKey is set by the handler from the Idempotency-Key header.
	IdempotencyKey string `json:"-"`
}

// RevokeRequest is the payload for revoking an attestation.
type RevokeRequest struct {
	Reason string `json:"reason"`
}

// ListFilter narrows a listing; zero values match everything.
type ListFilter struct {
	Period string
	Status Status
}

// Page is 1-indexed pagination input.
type Page struct {
	Page  int
	Limit int
}

// ListResult is one page of a filtered, sorted listing.
type ListResult struct {
	Items      []*Record `json:"items"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
}

// ErrNotFound is returned when an attestation does not exist or belongs to
// a different business (tenant isolation: the two cases are never
// distinguished to the caller).
var ErrNotFound = errors.New("attestation not found")

// ErrBusinessNotFound is returned when no business identity can be resolved
// for the caller and none was supplied.
var ErrBusinessNotFound = errors.New("business not found")

// ErrForbidden is returned when an explicitly supplied business ID
// conflicts with the caller's resolved business identity.
var ErrForbidden = errors.New("business identity mismatch")

// ErrRevokeFailed wraps a storage-layer failure during revocation. It never
// covers business-logic conflicts.
var ErrRevokeFailed = errors.New("revoke failed")

// ErrValidation is returned for malformed submissions.
type ErrValidation struct{ Msg string }

func (e *ErrValidation) Error() string { return e.Msg }
