package budget

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgers(t *testing.T, s Settings) map[string]Ledger {
	t.Helper()
	sq, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "budget.db"), s)
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Ledger{
		"memory": NewMemoryLedger(s),
		"sqlite": sq,
	}
}

func TestThreeCallsSumExactly(t *testing.T) {
	for name, l := range ledgers(t, Settings{DefaultLimit: decimal.RequireFromString("1.00")}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, amt := range []string{"0.0123", "0.0456", "0.0789"} {
				_, err := l.IncrementSpend(ctx, "u1", decimal.RequireFromString(amt))
				require.NoError(t, err)
			}
			spent, err := l.Spent(ctx, "u1")
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString("0.1368").Equal(spent), spent.String())

			other, err := l.Spent(ctx, "u2")
			require.NoError(t, err)
			assert.True(t, other.IsZero())
		})
	}
}

func TestCheckThresholds(t *testing.T) {
	for name, l := range ledgers(t, Settings{DefaultLimit: decimal.NewFromInt(1)}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st, err := Check(ctx, l, "u")
			require.NoError(t, err)
			assert.False(t, st.Approaching)
			assert.False(t, st.Exceeded)

			_, err = l.IncrementSpend(ctx, "u", decimal.RequireFromString("0.85"))
			require.NoError(t, err)
			st, err = Check(ctx, l, "u")
			require.NoError(t, err)
			assert.True(t, st.Approaching)
			assert.False(t, st.Exceeded)

			_, err = l.IncrementSpend(ctx, "u", decimal.RequireFromString("0.15"))
			require.NoError(t, err)
			st, err = Check(ctx, l, "u")
			require.NoError(t, err)
			assert.False(t, st.Approaching)
			assert.True(t, st.Exceeded)
		})
	}
}

func TestZeroLimitIsUnlimited(t *testing.T) {
	l := NewMemoryLedger(Settings{})
	_, err := l.IncrementSpend(context.Background(), "u", decimal.NewFromInt(100))
	require.NoError(t, err)
	st, err := Check(context.Background(), l, "u")
	require.NoError(t, err)
	assert.False(t, st.Exceeded)
}

func TestWindowReset(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	for name, l := range ledgers(t, Settings{ResetEvery: 24 * time.Hour, Now: clock}) {
		t.Run(name, func(t *testing.T) {
			now = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
			ctx := context.Background()
			_, err := l.IncrementSpend(ctx, "u", decimal.NewFromInt(2))
			require.NoError(t, err)

			now = now.Add(25 * time.Hour)
			spent, err := l.Spent(ctx, "u")
			require.NoError(t, err)
			assert.True(t, spent.IsZero())

			total, err := l.IncrementSpend(ctx, "u", decimal.NewFromInt(1))
			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(1).Equal(total))
		})
	}
}

func TestPerUserLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLedger(Settings{DefaultLimit: decimal.NewFromInt(1)})
	m.SetLimit("vip", decimal.NewFromInt(5))
	lim, _ := m.Limit(ctx, "vip")
	assert.True(t, decimal.NewFromInt(5).Equal(lim))

	sq, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "b.db"), Settings{DefaultLimit: decimal.NewFromInt(1)})
	require.NoError(t, err)
	defer sq.Close()
	require.NoError(t, sq.SetLimit(ctx, "vip", decimal.NewFromInt(5)))
	lim, err = sq.Limit(ctx, "vip")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(lim))
	lim, err = sq.Limit(ctx, "other")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1).Equal(lim))

	_, err = sq.IncrementSpend(ctx, "vip", decimal.NewFromInt(3))
	require.NoError(t, err)
	require.NoError(t, sq.Reset(ctx))
	spent, err := sq.Spent(ctx, "vip")
	require.NoError(t, err)
	assert.True(t, spent.IsZero())
	lim, _ = sq.Limit(ctx, "vip")
	assert.True(t, decimal.NewFromInt(5).Equal(lim))
}

func TestConcurrentIncrements(t *testing.T) {
	for name, l := range ledgers(t, Settings{}) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := l.IncrementSpend(context.Background(), "u", decimal.RequireFromString("0.0001"))
					assert.NoError(t, err)
				}()
			}
			wg.Wait()
			spent, err := l.Spent(context.Background(), "u")
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString("0.002").Equal(spent), spent.String())
		})
	}
}
