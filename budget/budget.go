// Package budget tracks per-user generation spend.
package budget

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger records spend per user. IncrementSpend returns the new total.
type Ledger interface {
	IncrementSpend(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)
	Spent(ctx context.Context, userID string) (decimal.Decimal, error)
	Limit(ctx context.Context, userID string) (decimal.Decimal, error)
}

// Counter is one user's spend window.
type Counter struct {
	UserID  string          `json:"user_id"`
	Spent   decimal.Decimal `json:"spent"`
	Limit   decimal.Decimal `json:"limit"`
	ResetAt time.Time       `json:"reset_at"`
}

// WarnRatio marks a budget as approaching its limit.
var WarnRatio = decimal.NewFromFloat(0.8)

// Status is a pre-call budget check.
type Status struct {
	Spent       decimal.Decimal
	Limit       decimal.Decimal
	Approaching bool
	Exceeded    bool
}

// Check reads spend and limit for userID. A zero limit means unlimited.
func Check(ctx context.Context, l Ledger, userID string) (Status, error) {
	spent, err := l.Spent(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	limit, err := l.Limit(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	st := Status{Spent: spent, Limit: limit}
	if limit.IsPositive() {
		st.Exceeded = spent.GreaterThanOrEqual(limit)
		st.Approaching = !st.Exceeded && spent.GreaterThanOrEqual(limit.Mul(WarnRatio))
	}
	return st, nil
}

// Settings configures a ledger.
type Settings struct {
	DefaultLimit decimal.Decimal
	// ResetEvery starts a new window after the given period; zero never resets.
	ResetEvery time.Duration
	Now        func() time.Time
}

func (s Settings) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Settings) nextReset(from time.Time) time.Time {
	if s.ResetEvery <= 0 {
		return time.Time{}
	}
	return from.Add(s.ResetEvery)
}

func (s Settings) expired(c Counter, now time.Time) bool {
	return !c.ResetAt.IsZero() && !now.Before(c.ResetAt)
}
