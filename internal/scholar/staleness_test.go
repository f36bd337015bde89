package scholar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNeedsRefreshNeverScraped(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.True(t, NeedsRefresh(nil, 7, now))
}

func TestNeedsRefreshBoundary(t *testing.T) {
	now := time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)

	exactly := now.Add(-7 * 24 * time.Hour)
	require.False(t, NeedsRefresh(&exactly, 7, now), "a record exactly at the threshold is still fresh")

	justOver := exactly.Add(-time.Microsecond)
	require.True(t, NeedsRefresh(&justOver, 7, now), "anything past the threshold is stale")

	justUnder := exactly.Add(time.Second)
	require.False(t, NeedsRefresh(&justUnder, 7, now))
}

func TestNeedsRefreshZeroThresholdForcesRefresh(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-time.Minute)
	require.True(t, NeedsRefresh(&fresh, 0, now))
	require.True(t, NeedsRefresh(&fresh, -1, now))
}

func TestNeedsRefreshFutureTimestampIsFresh(t *testing.T) {
	// Clock skew should not trigger a refresh storm.
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	require.False(t, NeedsRefresh(&future, 7, now))
}
