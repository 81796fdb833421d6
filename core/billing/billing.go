// Package billing defines the persistence boundary for finalized bills. The
// core hands bills to a Sink and never blocks on the write: persistence
// failures are logged by the caller and roll back nothing.
package billing

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/evstation/core/model"
)

// Sink receives finalized bills, fire-and-forget.
type Sink interface {
	SaveBill(bill model.Bill) error
}

// Query filters bill lookups.
type Query struct {
	Start     time.Time
	End       time.Time
	PileID    string
	VehicleID string
}

// Store persists bills and supports querying. Implementations live under
// infra/billing.
type Store interface {
	Append(ctx context.Context, bill model.Bill) error
	Query(ctx context.Context, q Query) ([]model.Bill, error)
	Close() error
}

// StoreSink adapts a Store into a Sink with a bounded write timeout.
type StoreSink struct {
	Store   Store
	Timeout time.Duration
}

// SaveBill appends the bill to the underlying store.
func (s StoreSink) SaveBill(bill model.Bill) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Store.Append(ctx, bill)
}

// FuncSink adapts a function into a Sink.
type FuncSink func(model.Bill) error

func (f FuncSink) SaveBill(bill model.Bill) error { return f(bill) }

// NopSink discards bills.
type NopSink struct{}

func (NopSink) SaveBill(model.Bill) error { return nil }

// MemoryStore keeps bills in memory. It backs the demo command and tests.
type MemoryStore struct {
	mu    sync.Mutex
	bills []model.Bill
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Append records the bill.
func (m *MemoryStore) Append(_ context.Context, bill model.Bill) error {
	m.mu.Lock()
	m.bills = append(m.bills, bill)
	m.mu.Unlock()
	return nil
}

// Query returns bills matching q in insertion order.
func (m *MemoryStore) Query(_ context.Context, q Query) ([]model.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Bill
	for _, b := range m.bills {
		if matches(b, q) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func matches(b model.Bill, q Query) bool {
	if q.PileID != "" && b.PileID != q.PileID {
		return false
	}
	if q.VehicleID != "" && b.VehicleID != q.VehicleID {
		return false
	}
	if !q.Start.IsZero() && b.EndTime.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && b.StartTime.After(q.End) {
		return false
	}
	return true
}
