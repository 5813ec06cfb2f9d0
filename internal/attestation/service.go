package attestation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merklebase/attestd/internal/anchor"
	"github.com/merklebase/attestd/internal/auditlog"
	"github.com/merklebase/attestd/internal/idempotency"
	"github.com/merklebase/attestd/pkg/merkle"
)

const (
	defaultAnchorTimeout = 10 * time.Second
	defaultPageLimit     = 20
	maxPageLimit         = 100
)

// Service orchestrates the attestation lifecycle: submit, list, get, and
// revoke. Anchoring is best-effort; a record is persisted even when the
// ledger is unreachable, carrying a synthetic pending transaction hash that
// the reconciler later replaces.
type Service struct {
	store         Store
	overflow      Store // optional in-memory buffer, nil when unused
	anchor        anchor.Anchor
	guard         idempotency.Guard
	audit         auditlog.Ledger
	anchorTimeout time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// ServiceOption configures optional Service behavior.
type ServiceOption func(*Service)

// WithOverflow attaches a secondary in-memory store whose records are merged
// into listings (durable records win on ID conflict).
func WithOverflow(s Store) ServiceOption {
	return func(svc *Service) { svc.overflow = s }
}

// WithAnchorTimeout bounds how long a submit call waits on the anchor.
func WithAnchorTimeout(d time.Duration) ServiceOption {
	return func(svc *Service) { svc.anchorTimeout = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = now }
}

// NewService wires the lifecycle manager. All collaborators are required;
// pass a NoopAnchor or MemoryGuard where the real backend is not deployed.
func NewService(store Store, anc anchor.Anchor, guard idempotency.Guard, audit auditlog.Ledger, logger *zap.Logger, opts ...ServiceOption) *Service {
	svc := &Service{
		store:         store,
		anchor:        anc,
		guard:         guard,
		audit:         audit,
		anchorTimeout: defaultAnchorTimeout,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Submit validates and persists a new attestation. When an idempotency key
// is present, retries with the same key replay the original record instead
// of executing again.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*Record, error) {
	businessID, err := resolveBusiness(req)
	if err != nil {
		return nil, err
	}

	if req.Period == "" {
		return nil, &ErrValidation{Msg: "period is required"}
	}

	root, leafCount, err := resolveRoot(req)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey == "" {
		return s.execute(ctx, req, businessID, root, leafCount)
	}

	scope := "attestations:" + businessID
	raw, replayed, err := s.guard.Do(ctx, scope, req.IdempotencyKey, func(ctx context.Context) ([]byte, error) {
		rec, err := s.execute(ctx, req, businessID, root, leafCount)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rec)
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		s.logger.Debug("submit replayed from idempotency cache",
			zap.String("business_id", businessID),
			zap.String("idempotency_key", req.IdempotencyKey),
		)
	}

	rec := &Record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decode cached attestation: %w", err)
	}
	return rec, nil
}

// execute runs the non-idempotent part of a submission: anchor then persist.
func (s *Service) execute(ctx context.Context, req *SubmitRequest, businessID, root string, leafCount int) (*Record, error) {
	now := s.now().UTC()

	timestamp := now
	if req.Timestamp != nil {
		timestamp = req.Timestamp.UTC()
	}
	version := req.Version
	if version == "" {
		version = DefaultVersion
	}

	txHash := s.anchorRoot(ctx, anchor.Request{
		BusinessID: businessID,
		Period:     req.Period,
		MerkleRoot: root,
		Timestamp:  timestamp,
		Version:    version,
	})

	rec := &Record{
		ID:         uuid.New(),
		BusinessID: businessID,
		Period:     req.Period,
		MerkleRoot: root,
		LeafCount:  leafCount,
		Timestamp:  timestamp,
		Version:    version,
		TxHash:     txHash,
		Status:     StatusSubmitted,
		AttestedAt: now,
		CreatedAt:  now,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist attestation: %w", err)
	}

	// Counted here rather than in the handler so idempotent replays do not
	// inflate the submission totals.
	RecordSubmission(!rec.AnchorPending())

	s.auditAppend(ctx, rec.ID.String(), "submitted", businessID, map[string]string{
		"merkle_root": rec.MerkleRoot,
		"period":      rec.Period,
		"tx_hash":     rec.TxHash,
	})

	s.logger.Info("attestation submitted",
		zap.String("id", rec.ID.String()),
		zap.String("business_id", businessID),
		zap.String("period", rec.Period),
		zap.Bool("anchor_pending", rec.AnchorPending()),
	)
	return rec, nil
}

// anchorRoot submits the root to the anchoring ledger, bounded by the anchor
// timeout. Any failure degrades to a synthetic pending hash; the write path
// is never blocked by an unreachable ledger.
func (s *Service) anchorRoot(ctx context.Context, req anchor.Request) string {
	actx, cancel := context.WithTimeout(ctx, s.anchorTimeout)
	defer cancel()

	type outcome struct {
		txID string
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		txID, err := s.anchor.Submit(actx, req)
		ch <- outcome{txID, err}
	}()

	select {
	case out := <-ch:
		if out.err == nil {
			return out.txID
		}
		s.logger.Warn("anchor submission failed, degrading to pending",
			zap.String("business_id", req.BusinessID),
			zap.Error(out.err),
		)
	case <-actx.Done():
		s.logger.Warn("anchor submission timed out, degrading to pending",
			zap.String("business_id", req.BusinessID),
			zap.Duration("timeout", s.anchorTimeout),
		)
	}
	return PendingTxPrefix + uuid.NewString()
}

// List returns one page of the business's records, merged across the
// durable store and the overflow buffer, filtered and sorted by attestedAt
// descending.
func (s *Service) List(ctx context.Context, businessID string, filter ListFilter, page Page) (*ListResult, error) {
	records, err := s.store.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list attestations: %w", err)
	}

	if s.overflow != nil {
		extra, err := s.overflow.ListByBusiness(ctx, businessID)
		if err != nil {
			return nil, fmt.Errorf("list overflow attestations: %w", err)
		}
		seen := make(map[uuid.UUID]struct{}, len(records))
		for _, rec := range records {
			seen[rec.ID] = struct{}{}
		}
		// Durable records win on ID conflict.
		for _, rec := range extra {
			if _, ok := seen[rec.ID]; !ok {
				records = append(records, rec)
			}
		}
	}

	// Stable sort keeps insertion order for equal timestamps.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].AttestedAt.After(records[j].AttestedAt)
	})

	filtered := records[:0:0]
	for _, rec := range records {
		if filter.Period != "" && rec.Period != filter.Period {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		filtered = append(filtered, rec)
	}

	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 {
		page.Limit = defaultPageLimit
	}
	if page.Limit > maxPageLimit {
		page.Limit = maxPageLimit
	}

	total := len(filtered)
	totalPages := int(math.Ceil(float64(total) / float64(page.Limit)))
	if totalPages < 1 {
		totalPages = 1
	}

	items := []*Record{}
	start := (page.Page - 1) * page.Limit
	if start < total {
		end := start + page.Limit
		if end > total {
			end = total
		}
		items = filtered[start:end]
	}

	return &ListResult{
		Items:      items,
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// GetByID returns the record only if it belongs to the business; records of
// other tenants surface as ErrNotFound.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID, businessID string) (*Record, error) {
	rec, _, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.BusinessID != businessID {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Revoke marks the record revoked. Revoking an already-revoked record is a
// no-op returning the current state, so client retries are safe.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID, businessID, reason string) (*Record, error) {
	rec, store, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.BusinessID != businessID {
		return nil, ErrNotFound
	}
	if rec.Status == StatusRevoked {
		return rec, nil
	}

	updated, err := store.MarkRevoked(ctx, id, reason, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRevokeFailed, err)
	}

	s.auditAppend(ctx, updated.ID.String(), "revoked", businessID, map[string]string{
		"reason": reason,
	})

	s.logger.Info("attestation revoked",
		zap.String("id", updated.ID.String()),
		zap.String("business_id", businessID),
	)
	return updated, nil
}

// find locates a record in the durable store, falling back to the overflow
// buffer, and reports which store holds it.
func (s *Service) find(ctx context.Context, id uuid.UUID) (*Record, Store, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err == nil {
		return rec, s.store, nil
	}
	if !errors.Is(err, ErrNotFound) || s.overflow == nil {
		return nil, nil, err
	}
	rec, err = s.overflow.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec, s.overflow, nil
}

// auditAppend records a lifecycle event. Audit failures are logged, never
// propagated; the lifecycle operation has already succeeded.
func (s *Service) auditAppend(ctx context.Context, attestationID, action, actor string, payload any) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Append(ctx, attestationID, action, actor, payload); err != nil {
		s.logger.Error("audit append failed",
			zap.String("attestation_id", attestationID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

// resolveBusiness determines the tenant for a submission. An explicit
// business ID must match the caller's token identity when both are present.
func resolveBusiness(req *SubmitRequest) (string, error) {
	if req.BusinessID != "" && req.CallerBusinessID != "" && req.BusinessID != req.CallerBusinessID {
		return "", ErrForbidden
	}
	if req.BusinessID != "" {
		return req.BusinessID, nil
	}
	if req.CallerBusinessID != "" {
		return req.CallerBusinessID, nil
	}
	return "", ErrBusinessNotFound
}

// resolveRoot derives the committed root. Raw leaves take precedence; a
// supplied root must then agree with the derived one.
func resolveRoot(req *SubmitRequest) (string, int, error) {
	if len(req.Leaves) > 0 {
		leaves := make([][]byte, len(req.Leaves))
		for i, l := range req.Leaves {
			leaves[i] = []byte(l)
		}
		tree, err := merkle.New(leaves)
		if err != nil {
			return "", 0, &ErrValidation{Msg: "invalid leaves: " + err.Error()}
		}
		root := tree.Root()
		if req.MerkleRoot != "" && req.MerkleRoot != root {
			return "", 0, &ErrValidation{Msg: "merkle_root does not match supplied leaves"}
		}
		return root, len(req.Leaves), nil
	}
	if req.MerkleRoot == "" {
		return "", 0, &ErrValidation{Msg: "merkle_root or leaves required"}
	}
	return req.MerkleRoot, 0, nil
}
