package attestation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/merklebase/attestd/internal/anchor"
	"github.com/merklebase/attestd/internal/auditlog"
)

const (
	defaultReconcileInterval = time.Minute
	defaultReconcileBatch    = 50
	systemActor              = "attestd-system"
)

// Reconciler periodically retries anchoring for records whose transaction
// hash is still synthetic, rewriting it once the ledger accepts the root.
type Reconciler struct {
	store    PendingAnchorStore
	anchor   anchor.Anchor
	audit    auditlog.Ledger
	interval time.Duration
	batch    int
	timeout  time.Duration
	logger   *zap.Logger
	quit     chan struct{}
}

// NewReconciler creates a Reconciler. interval 0 defaults to one minute,
// batch 0 to 50.
func NewReconciler(store PendingAnchorStore, anc anchor.Anchor, audit auditlog.Ledger, interval time.Duration, batch int, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &Reconciler{
		store:    store,
		anchor:   anc,
		audit:    audit,
		interval: interval,
		batch:    batch,
		timeout:  defaultAnchorTimeout,
		logger:   logger,
		quit:     make(chan struct{}),
	}
}

// Start runs the reconcile loop until Stop is called. Call in a goroutine.
func (r *Reconciler) Start() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runOnce(context.Background())
		case <-r.quit:
			return
		}
	}
}

// Stop terminates the loop. Safe to call once.
func (r *Reconciler) Stop() {
	close(r.quit)
}

// runOnce retries one batch of pending records. Per-record failures are
// logged and skipped; the record stays pending for the next pass.
func (r *Reconciler) runOnce(ctx context.Context) {
	pending, err := r.store.ListPendingAnchor(ctx, r.batch)
	if err != nil {
		r.logger.Error("list pending anchors failed", zap.Error(err))
		return
	}
	SetPendingAnchors(float64(len(pending)))
	if len(pending) == 0 {
		return
	}

	r.logger.Debug("reconciling pending anchors", zap.Int("count", len(pending)))

	for _, rec := range pending {
		actx, cancel := context.WithTimeout(ctx, r.timeout)
		txID, err := r.anchor.Submit(actx, anchor.Request{
			BusinessID: rec.BusinessID,
			Period:     rec.Period,
			MerkleRoot: rec.MerkleRoot,
			Timestamp:  rec.Timestamp,
			Version:    rec.Version,
		})
		cancel()
		if err != nil {
			r.logger.Warn("re-anchor failed",
				zap.String("id", rec.ID.String()),
				zap.Error(err),
			)
			continue
		}

		if err := r.store.UpdateTxHash(ctx, rec.ID, txID); err != nil {
			r.logger.Error("update tx hash failed",
				zap.String("id", rec.ID.String()),
				zap.Error(err),
			)
			continue
		}

		if r.audit != nil {
			if _, err := r.audit.Append(ctx, rec.ID.String(), "anchored", systemActor, map[string]string{
				"tx_hash": txID,
			}); err != nil {
				r.logger.Error("audit append failed", zap.Error(err))
			}
		}

		r.logger.Info("attestation anchored",
			zap.String("id", rec.ID.String()),
			zap.String("tx_hash", txID),
		)
	}
}
