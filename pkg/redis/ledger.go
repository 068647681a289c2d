package redis

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultLedgerPrefix namespaces delivered-pair keys
	DefaultLedgerPrefix = "clover:delivered:"

	// DefaultLedgerTTL is how long a delivered pair is remembered
	DefaultLedgerTTL = 90 * 24 * time.Hour
)

// DeliveryLedger remembers which pair fingerprints were delivered so replicas sharing
// one Redis never deliver the same pair twice.
type DeliveryLedger struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewDeliveryLedger creates a ledger. Zero values fall back to the defaults.
func NewDeliveryLedger(client *Client, prefix string, ttl time.Duration) *DeliveryLedger {
	if prefix == "" {
		prefix = DefaultLedgerPrefix
	}
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &DeliveryLedger{client: client, prefix: prefix, ttl: ttl}
}

// Delivered reports whether the fingerprint was already recorded
func (l *DeliveryLedger) Delivered(ctx context.Context, fingerprint string) (bool, error) {
	ok, err := l.client.Exists(ctx, l.prefix+fingerprint)
	if err != nil {
		return false, fmt.Errorf("failed to check delivery ledger: %w", err)
	}
	return ok, nil
}

// MarkDelivered records the fingerprint. Recording an existing fingerprint is not an error.
func (l *DeliveryLedger) MarkDelivered(ctx context.Context, fingerprint string) error {
	if _, err := l.client.SetNX(ctx, l.prefix+fingerprint, time.Now().UTC().Format(time.RFC3339), l.ttl); err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}
