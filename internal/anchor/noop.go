package anchor

import (
	"context"

	"go.uber.org/zap"
)

// NoopAnchor is used when no ledger is configured. It reports
// unavailability rather than fabricating a transaction ID, so unanchored
// deployments exercise the same pending-id fallback as a ledger outage.
type NoopAnchor struct {
	logger *zap.Logger
}

// NewNoopAnchor creates a NoopAnchor.
func NewNoopAnchor(logger *zap.Logger) *NoopAnchor {
	return &NoopAnchor{logger: logger}
}

// Submit implements Anchor.
func (a *NoopAnchor) Submit(_ context.Context, req Request) (string, error) {
	a.logger.Debug("anchor disabled; root not committed",
		zap.String("business_id", req.BusinessID),
		zap.String("merkle_root", req.MerkleRoot),
	)
	return "", ErrUnavailable
}
