package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	// DefaultDLQStream is the default dead letter queue stream name
	DefaultDLQStream = "clover:delivery-dlq"

	// DLQMaxLen is the maximum length of the DLQ stream (oldest entries trimmed)
	DLQMaxLen = 10000
)

// ErrEntryNotFound is returned when deleting a message id the stream does not hold
var ErrEntryNotFound = errors.New("DLQ entry not found")

// DeadLetterReason says why a report ended up in the dead letter queue
type DeadLetterReason string

const (
	ReasonRetriesExhausted DeadLetterReason = "retries_exhausted"
	ReasonRejected         DeadLetterReason = "rejected"
)

// DeadLetterQueue keeps reports whose delivery failed so an operator can inspect and
// retrigger them.
type DeadLetterQueue struct {
	client     *Client
	streamName string
	logger     ectologger.Logger
}

// NewDeadLetterQueue creates a new dead letter queue handler
func NewDeadLetterQueue(client *Client, streamName string, logger ectologger.Logger) *DeadLetterQueue {
	if streamName == "" {
		streamName = DefaultDLQStream
	}
	return &DeadLetterQueue{
		client:     client,
		streamName: streamName,
		logger:     logger,
	}
}

// DLQEntry is one failed delivery
type DLQEntry struct {
	ID               string           `json:"id"`
	MessageID        string           `json:"message_id,omitempty"`
	IdentityKey      string           `json:"identity_key"`
	FactFindID       string           `json:"fact_find_id"`
	AutomationFormID string           `json:"automation_form_id"`
	Fingerprint      string           `json:"fingerprint"`
	Payload          json.RawMessage  `json:"payload,omitempty"`
	Reason           DeadLetterReason `json:"reason"`
	ErrorMessage     string           `json:"error_message"`
	Attempts         int              `json:"attempts"`
	CreatedAt        time.Time        `json:"created_at"`
	TraceID          string           `json:"trace_id,omitempty"`
}

// Add appends a failed delivery to the stream
func (d *DeadLetterQueue) Add(ctx context.Context, entry *DLQEntry) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.DeadLetterQueue.Add")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.TraceID = tracing.GetTraceID(ctx)

	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal DLQ entry: %w", err)
	}

	var messageID string
	err = d.client.timed("xadd", func() error {
		var err error
		messageID, err = d.client.Redis().XAdd(ctx, &redis.XAddArgs{
			Stream: d.streamName,
			MaxLen: DLQMaxLen,
			Approx: true,
			Values: map[string]any{
				"data":         string(data),
				"identity_key": entry.IdentityKey,
				"reason":       string(entry.Reason),
			},
		}).Result()
		return err
	})
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Error("Failed to add delivery to DLQ")
		return "", fmt.Errorf("failed to add to DLQ: %w", err)
	}

	metrics.RecordDLQEntry(string(entry.Reason))
	d.logger.WithContext(ctx).WithFields(map[string]any{
		"dlq_id":       entry.ID,
		"identity_key": entry.IdentityKey,
		"reason":       entry.Reason,
	}).Info("Added failed delivery to DLQ")
	return messageID, nil
}

// List returns the newest entries first
func (d *DeadLetterQueue) List(ctx context.Context, count int64) ([]DLQEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.DeadLetterQueue.List")
	defer span.End()

	if count <= 0 {
		count = 100
	}

	messages, err := d.client.Redis().XRevRangeN(ctx, d.streamName, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLQ: %w", err)
	}

	entries := make([]DLQEntry, 0, len(messages))
	for _, msg := range messages {
		entry, err := decodeEntry(msg)
		if err != nil {
			d.logger.WithContext(ctx).WithError(err).Warnf("Failed to unmarshal DLQ entry: %s", msg.ID)
			continue
		}
		entries = append(entries, *entry)
	}

	return entries, nil
}

// ListByIdentity returns entries for one client
func (d *DeadLetterQueue) ListByIdentity(ctx context.Context, identityKey string, count int64) ([]DLQEntry, error) {
	entries, err := d.List(ctx, count*2)
	if err != nil {
		return nil, err
	}

	filtered := make([]DLQEntry, 0)
	for _, entry := range entries {
		if entry.IdentityKey == identityKey {
			filtered = append(filtered, entry)
			if int64(len(filtered)) >= count {
				break
			}
		}
	}
	return filtered, nil
}

// Delete removes an entry, e.g. after a successful retrigger
func (d *DeadLetterQueue) Delete(ctx context.Context, messageID string) error {
	ctx, span := tracing.StartSpan(ctx, "redis.DeadLetterQueue.Delete")
	defer span.End()

	count, err := d.client.Redis().XDel(ctx, d.streamName, messageID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete DLQ entry: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, messageID)
	}

	d.logger.WithContext(ctx).Infof("Deleted DLQ entry: %s", messageID)
	return nil
}

// Count returns the number of entries in the DLQ
func (d *DeadLetterQueue) Count(ctx context.Context) (int64, error) {
	return d.client.Redis().XLen(ctx, d.streamName).Result()
}

func decodeEntry(msg redis.XMessage) (*DLQEntry, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid DLQ entry format")
	}
	var entry DLQEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, err
	}
	entry.MessageID = msg.ID
	return &entry, nil
}
