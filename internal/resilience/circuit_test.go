package resilience_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-resto/internal/resilience"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := resilience.NewBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		require.True(t, b.Allow())
		b.Report(false)
	}
	require.Equal(t, resilience.Closed, b.State())

	require.True(t, b.Allow())
	b.Report(false)
	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow())
}

func TestBreakerSuccessResetsRun(t *testing.T) {
	b := resilience.NewBreaker(2, time.Minute)

	b.Report(false)
	b.Report(true)
	b.Report(false)
	require.Equal(t, resilience.Closed, b.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := resilience.NewBreaker(1, 10*time.Millisecond)

	b.Report(false)
	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow())

	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow(), "cool-off elapsed, one probe permitted")
	require.Equal(t, resilience.HalfOpen, b.State())

	b.Report(false)
	require.Equal(t, resilience.Open, b.State())

	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow())
	b.Report(true)
	require.Equal(t, resilience.Closed, b.State())
	require.True(t, b.Allow())
}

func TestBreakerDefaults(t *testing.T) {
	b := resilience.NewBreaker(0, 0)
	for i := 0; i < 3; i++ {
		b.Report(false)
	}
	require.Equal(t, resilience.Open, b.State())
}
