package orchestrator

import (
	"context"
	"sync"
	"time"
)

// Ledger remembers pair fingerprints that were delivered. The redis ledger is used
// when replicas share state; MemoryLedger otherwise.
type Ledger interface {
	Delivered(ctx context.Context, fingerprint string) (bool, error)
	MarkDelivered(ctx context.Context, fingerprint string) error
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu        sync.RWMutex
	delivered map[string]time.Time
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{delivered: make(map[string]time.Time)}
}

func (l *MemoryLedger) Delivered(_ context.Context, fingerprint string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.delivered[fingerprint]
	return ok, nil
}

func (l *MemoryLedger) MarkDelivered(_ context.Context, fingerprint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.delivered[fingerprint]; !ok {
		l.delivered[fingerprint] = time.Now().UTC()
	}
	return nil
}
