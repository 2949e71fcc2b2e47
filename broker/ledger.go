package broker

import (
	"sync"

	"gold-trader/models"
)

// orderLedger records the outcome of every submission keyed by
// client_request_id. Each entry carries its own lock so a submission for a
// given id is a critical section: concurrent duplicates collapse to one
// network call, and a resubmission while a prior outcome is unknown returns
// that outcome instead of hitting the brokerage again.
type orderLedger struct {
	mu      sync.Mutex
	entries map[string]*ledgerEntry
}

type ledgerEntry struct {
	mu       sync.Mutex
	recorded bool
	order    models.Order
	err      error
}

func newOrderLedger() *orderLedger {
	return &orderLedger{entries: make(map[string]*ledgerEntry)}
}

func (l *orderLedger) entry(clientRequestID string) *ledgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[clientRequestID]
	if !ok {
		e = &ledgerEntry{}
		l.entries[clientRequestID] = e
	}
	return e
}

// outcome returns the recorded result, if any. Callers must hold e.mu.
func (e *ledgerEntry) outcome() (models.Order, error, bool) {
	return e.order, e.err, e.recorded
}

// record stores the submission result. Callers must hold e.mu.
func (e *ledgerEntry) record(order models.Order, err error) {
	e.order = order
	e.err = err
	e.recorded = true
}

// snapshot returns a copy of every recorded order, for reconciliation views.
func (l *orderLedger) snapshot() []models.Order {
	l.mu.Lock()
	entries := make([]*ledgerEntry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.Unlock()

	orders := make([]models.Order, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.recorded {
			orders = append(orders, e.order)
		}
		e.mu.Unlock()
	}
	return orders
}
