package redis

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func unreachableClient() *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	return Wrap(rdb, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestNewClientFailsWhenUnreachable(t *testing.T) {
	_, err := NewClient(Config{Host: "127.0.0.1", Port: 1}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	assert.Error(t, err)
}

func TestLedgerSurfacesErrors(t *testing.T) {
	client := unreachableClient()
	defer client.Close()

	ledger := NewDeliveryLedger(client, "", 0)
	assert.Equal(t, DefaultLedgerPrefix, ledger.prefix)
	assert.Equal(t, DefaultLedgerTTL, ledger.ttl)

	_, err := ledger.Delivered(context.Background(), "abc")
	assert.Error(t, err)
	assert.Error(t, ledger.MarkDelivered(context.Background(), "abc"))
}

func TestDLQSurfacesErrors(t *testing.T) {
	client := unreachableClient()
	defer client.Close()

	dlq := NewDeadLetterQueue(client, "", ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	assert.Equal(t, DefaultDLQStream, dlq.streamName)

	entry := &DLQEntry{IdentityKey: "a@x.nz", Reason: ReasonRetriesExhausted}
	_, err := dlq.Add(context.Background(), entry)
	assert.Error(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	_, err = dlq.List(context.Background(), 0)
	assert.Error(t, err)
}

func TestDecodeEntry(t *testing.T) {
	entry, err := decodeEntry(redis.XMessage{ID: "1-0", Values: map[string]any{"data": `{"id":"x","identity_key":"a@x.nz","attempts":3}`}})
	assert.NoError(t, err)
	assert.Equal(t, "1-0", entry.MessageID)
	assert.Equal(t, 3, entry.Attempts)

	_, err = decodeEntry(redis.XMessage{ID: "2-0", Values: map[string]any{}})
	assert.Error(t, err)
}
