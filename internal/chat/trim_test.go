package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrimBottomAnchorDropsOldest(t *testing.T) {
	tl := loadedTimeline(t, 1, 100)

	dropped := tl.TrimToBudget(40, BottomAnchor(), 10)
	require.Equal(t, 60, dropped)
	require.Equal(t, 40, tl.Len())
	require.Equal(t, MessageID(61), tl.OldestLoaded())
	require.Equal(t, MessageID(100), tl.NewestLoaded())
	require.True(t, tl.HasMoreHistory(), "trimmed history is re-fetchable")
	require.True(t, tl.CheckDense())
}

func TestTrimNeverDropsViewport(t *testing.T) {
	tl := loadedTimeline(t, 1, 100)
	anchor := FixedAnchor(20, 0)

	tl.TrimToBudget(30, anchor, 10)
	// The viewport rows #11..#20 must all survive.
	for id := MessageID(11); id <= 20; id++ {
		_, ok := tl.Message(id)
		require.True(t, ok, "message %d was in the viewport", id)
	}
	// The live edge survives too.
	_, ok := tl.Message(100)
	require.True(t, ok)
	require.LessOrEqual(t, tl.Len(), 30)
	require.True(t, tl.CheckDense())

	// The interior cut is flagged, not silent.
	w, err := tl.Window(anchor, 10)
	require.NoError(t, err)
	require.Len(t, w.Messages, 10)
}

func TestTrimWithinBudgetIsNoop(t *testing.T) {
	tl := loadedTimeline(t, 1, 20)
	require.Zero(t, tl.TrimToBudget(50, BottomAnchor(), 10))
	require.Equal(t, 20, tl.Len())
	require.False(t, tl.HasMoreHistory())
}

func TestTrimRearmsBackwardPagination(t *testing.T) {
	tl := loadedTimeline(t, 1, 100)
	tl.TrimToBudget(40, BottomAnchor(), 10)

	// Re-fetching the dropped range reattaches cleanly at the frontier.
	res, err := tl.MergePage(makePage(41, 60), false)
	require.NoError(t, err)
	require.Equal(t, MergeApplied, res)
	require.Equal(t, MessageID(41), tl.OldestLoaded())
	require.True(t, tl.CheckDense())
}
