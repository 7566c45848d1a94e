package budget

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryLedger keeps counters in process.
type MemoryLedger struct {
	mu       sync.Mutex
	settings Settings
	counters map[string]*Counter
	limits   map[string]decimal.Decimal
}

func NewMemoryLedger(s Settings) *MemoryLedger {
	return &MemoryLedger{
		settings: s,
		counters: make(map[string]*Counter),
		limits:   make(map[string]decimal.Decimal),
	}
}

// SetLimit overrides the default limit for one user.
func (m *MemoryLedger) SetLimit(userID string, limit decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits[userID] = limit
}

// counter returns the live counter for userID, rolling the window if due. Caller holds mu.
func (m *MemoryLedger) counter(userID string) *Counter {
	now := m.settings.now()
	c, ok := m.counters[userID]
	if !ok || m.settings.expired(*c, now) {
		c = &Counter{UserID: userID, Spent: decimal.Zero, ResetAt: m.settings.nextReset(now)}
		m.counters[userID] = c
	}
	c.Limit = m.limitLocked(userID)
	return c
}

func (m *MemoryLedger) limitLocked(userID string) decimal.Decimal {
	if l, ok := m.limits[userID]; ok {
		return l
	}
	return m.settings.DefaultLimit
}

func (m *MemoryLedger) IncrementSpend(_ context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counter(userID)
	c.Spent = c.Spent.Add(amount)
	return c.Spent, nil
}

func (m *MemoryLedger) Spent(_ context.Context, userID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter(userID).Spent, nil
}

func (m *MemoryLedger) Limit(_ context.Context, userID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limitLocked(userID), nil
}

// Counter returns a snapshot of the user's window.
func (m *MemoryLedger) Counter(userID string) Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.counter(userID)
}

// Reset zeroes every counter.
func (m *MemoryLedger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = make(map[string]*Counter)
}
