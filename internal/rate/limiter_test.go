package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowUpToBurst(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 1, Burst: 5})

	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}

func TestLimiter_Refill(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 100, Burst: 2})
	for lim.Allow() {
	}

	time.Sleep(50 * time.Millisecond)

	assert.True(t, lim.Allow(), "expected a token after refill")
}

func TestLimiter_ZeroRateIsUnlimited(t *testing.T) {
	lim := New(Config{})
	for i := 0; i < 1000; i++ {
		require.True(t, lim.Allow())
	}
}

func TestManager_WaitRespectsDeadline(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})
	require.NoError(t, m.Wait(context.Background(), "products"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	assert.Error(t, m.Wait(ctx, "products"))
}

func TestManager_OneLimiterPerKey(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 10, Burst: 1})

	assert.Same(t, m.GetLimiter("customers"), m.GetLimiter("customers"))
	assert.NotSame(t, m.GetLimiter("customers"), m.GetLimiter("purchases"))

	// draining one key leaves the other untouched
	require.NoError(t, m.Wait(context.Background(), "customers"))
	assert.True(t, m.GetLimiter("purchases").Allow())
}

func TestManager_Override(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})
	before := m.GetLimiter("transactions")

	m.Override("transactions", Config{RequestsPerSecond: 1, Burst: 3})
	after := m.GetLimiter("transactions")

	assert.NotSame(t, before, after)
	assert.Equal(t, 3, after.Burst())
	assert.Equal(t, 1, m.GetLimiter("customers").Burst())
}
