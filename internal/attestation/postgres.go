package attestation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable Store implementation backed by PostgreSQL.
// It also implements PendingAnchorStore.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const attestationColumns = `
	id, business_id, period, merkle_root, leaf_count, timestamp, version,
	tx_hash, status, revoke_reason, revoked_at, attested_at, created_at`

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO attestations (
			id, business_id, period, merkle_root, leaf_count, timestamp,
			version, tx_hash, status, revoke_reason, revoked_at,
			attested_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13
		)`

	_, err := s.db.Exec(ctx, query,
		rec.ID, rec.BusinessID, rec.Period, rec.MerkleRoot, rec.LeafCount,
		rec.Timestamp, rec.Version, rec.TxHash, rec.Status,
		rec.RevokeReason, rec.RevokedAt, rec.AttestedAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attestation: %w", err)
	}
	return nil
}

// GetByID implements Store.
func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+attestationColumns+` FROM attestations WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListByBusiness implements Store. The snapshot comes back most recently
// attested first; created_at breaks ties so the order is total.
func (s *PostgresStore) ListByBusiness(ctx context.Context, businessID string) ([]*Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+attestationColumns+`
		FROM attestations
		WHERE business_id = $1
		ORDER BY attested_at DESC, created_at DESC`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list attestations: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// MarkRevoked implements Store.
func (s *PostgresStore) MarkRevoked(ctx context.Context, id uuid.UUID, reason string, revokedAt time.Time) (*Record, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE attestations
		SET status = $2, revoke_reason = $3, revoked_at = $4
		WHERE id = $1
		RETURNING `+attestationColumns,
		id, StatusRevoked, reason, revokedAt)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update attestation status: %w", err)
	}
	return rec, nil
}

// ListPendingAnchor implements PendingAnchorStore.
func (s *PostgresStore) ListPendingAnchor(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+attestationColumns+`
		FROM attestations
		WHERE tx_hash LIKE $1
		ORDER BY created_at ASC
		LIMIT $2`, PendingTxPrefix+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("list pending attestations: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// UpdateTxHash implements PendingAnchorStore.
func (s *PostgresStore) UpdateTxHash(ctx context.Context, id uuid.UUID, txHash string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE attestations SET tx_hash = $2 WHERE id = $1`, id, txHash)
	if err != nil {
		return fmt.Errorf("update tx hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	rec := &Record{}
	err := row.Scan(
		&rec.ID, &rec.BusinessID, &rec.Period, &rec.MerkleRoot,
		&rec.LeafCount, &rec.Timestamp, &rec.Version, &rec.TxHash,
		&rec.Status, &rec.RevokeReason, &rec.RevokedAt, &rec.AttestedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func scanRecords(rows pgx.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attestation row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
