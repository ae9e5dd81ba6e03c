package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistryLazyInstantiation(t *testing.T) {
	r := NewRegistry(10)
	for i := 1; i <= 300; i++ {
		r.Register(ConversationMeta{ID: ConversationID(i), Title: fmt.Sprintf("conv-%d", i)})
	}
	require.Zero(t, r.InstantiatedCount())

	_, fresh := r.Open(1)
	require.True(t, fresh)
	_, fresh = r.Open(2)
	require.True(t, fresh)
	require.Equal(t, 2, r.InstantiatedCount())

	// The other 298 still cost metadata only.
	c, ok := r.Lookup(250)
	require.True(t, ok)
	require.False(t, c.instantiated())

	// Reopening is not a fresh instantiation.
	_, fresh = r.Open(1)
	require.False(t, fresh)
}

func TestRegistryEvictionPreservesNewestSeen(t *testing.T) {
	r := NewRegistry(2)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return now.Add(time.Duration(tick) * time.Second)
	}

	a, _ := r.Open(1)
	a.mu.Lock()
	_, err := a.timeline.MergePage(makePage(1, 30), true)
	require.NoError(t, err)
	a.mu.Unlock()

	r.Open(2)
	r.Open(3) // evicts conversation 1, the least recently viewed

	require.Equal(t, 2, r.InstantiatedCount())
	c, ok := r.Lookup(1)
	require.True(t, ok)
	require.False(t, c.instantiated())
	require.Equal(t, MessageID(30), c.meta.NewestSeen, "live edge survives eviction")

	// Reopening resumes with a fresh timeline at Bottom.
	c2, fresh := r.Open(1)
	require.True(t, fresh)
	require.Equal(t, AnchorBottom, c2.scroll.Anchor().Kind)
	require.Zero(t, c2.timeline.Len())
}

func TestRegistryRegisterNeverRollsBackLiveState(t *testing.T) {
	r := NewRegistry(4)
	r.Register(ConversationMeta{ID: 7, Title: "old", NewestSeen: 90, Unread: 3})

	// A stale listing from the server must not erase what the stream taught us.
	r.Register(ConversationMeta{ID: 7, Title: "new", NewestSeen: 80})
	c, _ := r.Lookup(7)
	require.Equal(t, "new", c.meta.Title)
	require.Equal(t, MessageID(90), c.meta.NewestSeen)
	require.Equal(t, 3, c.meta.Unread)
}

func TestRegistryMetasSortedByActivity(t *testing.T) {
	r := NewRegistry(4)
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	r.Register(ConversationMeta{ID: 1, LastActivity: base})
	r.Register(ConversationMeta{ID: 2, LastActivity: base.Add(time.Hour)})
	r.Register(ConversationMeta{ID: 3, LastActivity: base.Add(time.Minute)})

	metas := r.Metas()
	require.Equal(t, ConversationID(2), metas[0].ID)
	require.Equal(t, ConversationID(3), metas[1].ID)
	require.Equal(t, ConversationID(1), metas[2].ID)
}
