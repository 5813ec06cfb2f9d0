package anchor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"go.uber.org/zap"
)

// HederaConfig configures the Hedera Consensus Service anchor.
type HederaConfig struct {
	Network     string // "mainnet", "testnet", or "previewnet"
	OperatorID  string // e.g. "0.0.12345"
	OperatorKey string
	TopicID     string // HCS topic receiving root commitments
	MaxRetries  uint64 // transient-failure retries per Submit; 0 = no retry
}

// HederaAnchor commits roots as JSON messages on a Hedera Consensus Service
// topic. The HCS transaction ID is the anchoring identifier.
type HederaAnchor struct {
	client  *hedera.Client
	topicID hedera.TopicID
	retries uint64
	logger  *zap.Logger
}

// NewHederaAnchor creates a HederaAnchor from config.
func NewHederaAnchor(cfg HederaConfig, logger *zap.Logger) (*HederaAnchor, error) {
	client, err := hedera.ClientForName(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("hedera network %q: %w", cfg.Network, err)
	}

	operatorID, err := hedera.AccountIDFromString(cfg.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("invalid operator account ID: %w", err)
	}
	operatorKey, err := hedera.PrivateKeyFromString(cfg.OperatorKey)
	if err != nil {
		return nil, fmt.Errorf("invalid operator private key: %w", err)
	}
	client.SetOperator(operatorID, operatorKey)

	topicID, err := hedera.TopicIDFromString(cfg.TopicID)
	if err != nil {
		return nil, fmt.Errorf("invalid anchor topic ID: %w", err)
	}

	return &HederaAnchor{
		client:  client,
		topicID: topicID,
		retries: cfg.MaxRetries,
		logger:  logger,
	}, nil
}

// Submit implements Anchor. Transient failures are retried with capped
// exponential backoff; ctx bounds the retry window.
func (a *HederaAnchor) Submit(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal anchor payload: %w", err)
	}

	var txID string
	attempt := func() error {
		tx := hedera.NewTopicMessageSubmitTransaction().
			SetTopicID(a.topicID).
			SetMessage(payload)

		response, err := tx.Execute(a.client)
		if err != nil {
			return fmt.Errorf("execute topic message submit: %w", err)
		}
		if _, err := response.GetReceipt(a.client); err != nil {
			return fmt.Errorf("topic message receipt: %w", err)
		}
		txID = response.TransactionID.String()
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.retries), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return "", fmt.Errorf("anchor root on hcs topic %s: %w", a.topicID, err)
	}

	a.logger.Debug("root anchored on hedera",
		zap.String("topic_id", a.topicID.String()),
		zap.String("tx_id", txID),
		zap.String("merkle_root", req.MerkleRoot),
	)
	return txID, nil
}
