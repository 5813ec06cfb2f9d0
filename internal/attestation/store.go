package attestation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the capability interface the lifecycle manager depends on.
// Backends implement it statically; no feature is probed at call time.
// *PostgresStore and *MemoryStore both satisfy it.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// ListByBusiness returns a consistent snapshot of all records for the
	// business, most recently attested first.
	ListByBusiness(ctx context.Context, businessID string) ([]*Record, error)
	// MarkRevoked sets status=revoked, revoked_at, and the reason, and
	// returns the updated record.
	MarkRevoked(ctx context.Context, id uuid.UUID, reason string, revokedAt time.Time) (*Record, error)
}

// PendingAnchorStore is the optional capability the anchor reconciler
// needs. It is a separate interface so stores without it are rejected at
// construction time, not discovered mid-run.
type PendingAnchorStore interface {
	// ListPendingAnchor returns up to limit records whose tx hash is still
	// synthetic, oldest first.
	ListPendingAnchor(ctx context.Context, limit int) ([]*Record, error)
	// UpdateTxHash replaces a pending tx hash after a successful re-anchor.
	UpdateTxHash(ctx context.Context, id uuid.UUID, txHash string) error
}
