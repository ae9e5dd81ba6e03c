package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeFetcher serves pages out of a dense in-memory history. When allow is
// non-nil every call blocks for a token first, which lets tests hold a fetch
// in flight while they probe the dedup behaviour.
type fakeFetcher struct {
	allow chan struct{}

	mu     sync.Mutex
	oldest MessageID
	newest MessageID
	calls  int
	err    error
}

func (f *fakeFetcher) FetchHistory(_ context.Context, _ ConversationID, before MessageID, limit int) ([]Message, error) {
	if f.allow != nil {
		<-f.allow
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	hi := f.newest
	if before > 0 {
		if before <= f.oldest {
			return nil, nil
		}
		hi = before - 1
	}
	lo := f.oldest
	if hi >= f.oldest+MessageID(limit) {
		lo = hi - MessageID(limit) + 1
	}
	return makePage(lo, hi), nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func openConv(t *testing.T) *conversation {
	t.Helper()
	r := NewRegistry(4)
	r.Register(ConversationMeta{ID: 1})
	c, _ := r.Open(1)
	return c
}

func TestInitialFetchLoadsNewestPage(t *testing.T) {
	f := &fakeFetcher{oldest: 1, newest: 120}
	ctrl := NewController(f, ControllerConfig{PageSize: 50})
	c := openConv(t)

	require.True(t, ctrl.InitialFetch(context.Background(), c))
	ctrl.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Equal(t, MessageID(71), c.timeline.OldestLoaded())
	require.Equal(t, MessageID(120), c.timeline.NewestLoaded())
	require.True(t, c.timeline.HasMoreHistory())
	require.True(t, c.timeline.CheckDense())
}

func TestMaybeFetchOlderDedupesInFlight(t *testing.T) {
	f := &fakeFetcher{oldest: 1, newest: 200, allow: make(chan struct{}, 4)}
	ctrl := NewController(f, ControllerConfig{PageSize: 50})
	c := openConv(t)
	f.allow <- struct{}{}
	ctrl.InitialFetch(context.Background(), c)
	ctrl.Wait()

	// Scroll to the top of the loaded range so the threshold trips.
	c.mu.Lock()
	require.NoError(t, c.scroll.SetHeight(10))
	c.scroll.ScrollUp(c.timeline, 60)
	c.mu.Unlock()

	// No token yet: the first trigger starts a fetch that parks inside the
	// fetcher, so the repeats hit the in-flight guard.
	started := 0
	for i := 0; i < 5; i++ {
		if ctrl.MaybeFetchOlder(context.Background(), c) {
			started++
		}
	}
	require.Equal(t, 1, started)

	f.allow <- struct{}{}
	ctrl.Wait()
	require.Equal(t, 2, f.callCount())

	c.mu.Lock()
	require.Equal(t, MessageID(101), c.timeline.OldestLoaded())
	c.mu.Unlock()
	// The viewport now sits fifty messages above the frontier.
	require.False(t, ctrl.MaybeFetchOlder(context.Background(), c))
}

func TestMaybeFetchOlderNoopAtLiveEdge(t *testing.T) {
	f := &fakeFetcher{oldest: 1, newest: 200}
	ctrl := NewController(f, ControllerConfig{PageSize: 50})
	c := openConv(t)
	ctrl.InitialFetch(context.Background(), c)
	ctrl.Wait()

	c.mu.Lock()
	require.NoError(t, c.scroll.SetHeight(10))
	c.mu.Unlock()

	require.False(t, ctrl.MaybeFetchOlder(context.Background(), c))
	require.Equal(t, 1, f.callCount())
}

func TestFetchFailureSurfacesAndRetryRearms(t *testing.T) {
	wantErr := errors.New("link down")
	f := &fakeFetcher{oldest: 1, newest: 100, err: wantErr}
	ctrl := NewController(f, ControllerConfig{PageSize: 50})
	c := openConv(t)

	ctrl.InitialFetch(context.Background(), c)
	ctrl.Wait()

	c.mu.Lock()
	require.ErrorIs(t, c.histErr, wantErr)
	require.Zero(t, c.timeline.Len(), "failed fetch leaves last-known state alone")
	c.mu.Unlock()

	// While errored, triggers are no-ops until the user retries.
	require.False(t, ctrl.MaybeFetchOlder(context.Background(), c))
	require.Equal(t, 1, f.callCount())

	f.setErr(nil)
	ctrl.RetryHistory(c)
	require.True(t, ctrl.MaybeFetchOlder(context.Background(), c))
	ctrl.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	require.NoError(t, c.histErr)
	require.Equal(t, 50, c.timeline.Len())
	require.Equal(t, MessageID(100), c.timeline.NewestLoaded())
}

func TestFillGapClosesSpanExactlyOnce(t *testing.T) {
	f := &fakeFetcher{oldest: 1, newest: 60, allow: make(chan struct{}, 4)}
	ctrl := NewController(f, ControllerConfig{PageSize: 50})
	c := openConv(t)
	f.allow <- struct{}{}
	ctrl.InitialFetch(context.Background(), c)
	ctrl.Wait()

	c.mu.Lock()
	res, err := c.timeline.MergeLive(Message{ID: 65, ConversationID: 1})
	require.NoError(t, err)
	require.Equal(t, MergeGapped, res)
	span := c.timeline.Gaps()[0]
	c.mu.Unlock()
	require.Equal(t, GapSpan{From: 61, To: 64}, span)

	require.True(t, ctrl.FillGap(context.Background(), c, span))
	// The fill is parked in the fetcher, so a repeat trigger for the same
	// span is a no-op.
	require.False(t, ctrl.FillGap(context.Background(), c, span))

	f.allow <- struct{}{}
	ctrl.Wait()

	require.Equal(t, 2, f.callCount(), "one initial page plus one forward fill")
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Empty(t, c.timeline.Gaps())
	require.Equal(t, MessageID(65), c.timeline.NewestLoaded())
	require.True(t, c.timeline.CheckDense())
}

// stalePageFetcher answers the first call with a page that no longer meets
// the frontier, as when a slow fetch completes after the store moved on.
type stalePageFetcher struct {
	mu    sync.Mutex
	calls int
}

func (f *stalePageFetcher) FetchHistory(_ context.Context, _ ConversationID, before MessageID, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == 1 {
		return makePage(50, 59), nil
	}
	return makePage(before-MessageID(limit), before-1), nil
}

func TestDisjointPageRetriesAgainstCurrentFrontier(t *testing.T) {
	f := &stalePageFetcher{}
	ctrl := NewController(f, ControllerConfig{PageSize: 10})
	c := openConv(t)
	c.mu.Lock()
	_, err := c.timeline.MergePage(makePage(100, 120), false)
	require.NoError(t, err)
	require.NoError(t, c.scroll.SetHeight(30))
	c.scroll.ScrollUp(c.timeline, 25)
	c.mu.Unlock()

	require.True(t, ctrl.MaybeFetchOlder(context.Background(), c))
	ctrl.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Equal(t, 2, f.calls)
	require.NoError(t, c.histErr)
	require.Equal(t, MessageID(90), c.timeline.OldestLoaded())
	require.True(t, c.timeline.CheckDense())
}

type alwaysDisjointFetcher struct{}

func (alwaysDisjointFetcher) FetchHistory(context.Context, ConversationID, MessageID, int) ([]Message, error) {
	return makePage(10, 19), nil
}

func TestRecurringDisjointSurfacesHistoryUnavailable(t *testing.T) {
	ctrl := NewController(alwaysDisjointFetcher{}, ControllerConfig{PageSize: 10})
	c := openConv(t)
	c.mu.Lock()
	_, err := c.timeline.MergePage(makePage(100, 120), false)
	require.NoError(t, err)
	require.NoError(t, c.scroll.SetHeight(30))
	c.scroll.ScrollUp(c.timeline, 25)
	c.mu.Unlock()

	require.True(t, ctrl.MaybeFetchOlder(context.Background(), c))
	ctrl.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	require.ErrorIs(t, c.histErr, ErrHistoryUnavailable)
	// The loaded range is untouched and still renders.
	require.Equal(t, MessageID(100), c.timeline.OldestLoaded())
	require.Equal(t, MessageID(120), c.timeline.NewestLoaded())
}
