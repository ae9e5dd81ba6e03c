package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

const (
	defaultPageSize       = 50
	defaultFetchThreshold = 2
)

// Fetcher is the slice of the event-source collaborator the controller
// needs: an ordered batch of historical messages strictly below beforeID
// (beforeID 0 means "newest available").
type Fetcher interface {
	FetchHistory(ctx context.Context, id ConversationID, beforeID MessageID, limit int) ([]Message, error)
}

// Controller decides when to request older history and tracks in-flight
// requests so a conversation never has more than one history fetch (and one
// forward-fill per gap) outstanding.
type Controller struct {
	fetcher   Fetcher
	pageSize  int
	threshold int
	log       zerolog.Logger

	// notify wakes the render loop after a background merge. May be nil.
	notify func()

	mu          sync.Mutex
	pendingHist map[ConversationID]struct{}
	pendingGaps map[ConversationID]map[GapSpan]struct{}

	wg sync.WaitGroup
}

// ControllerConfig tunes the controller; zero values take defaults.
type ControllerConfig struct {
	PageSize       int
	FetchThreshold int
	Logger         zerolog.Logger
	Notify         func()
}

// NewController wires a pagination controller over the given fetcher.
func NewController(fetcher Fetcher, cfg ControllerConfig) *Controller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.FetchThreshold <= 0 {
		cfg.FetchThreshold = defaultFetchThreshold
	}
	return &Controller{
		fetcher:     fetcher,
		pageSize:    cfg.PageSize,
		threshold:   cfg.FetchThreshold,
		log:         cfg.Logger,
		notify:      cfg.Notify,
		pendingHist: make(map[ConversationID]struct{}),
		pendingGaps: make(map[ConversationID]map[GapSpan]struct{}),
	}
}

// MaybeFetchOlder issues a backward page fetch when the viewport top is
// within the threshold of the oldest loaded message and more history exists.
// A second trigger while a fetch is outstanding is a no-op. Returns whether
// a fetch was started.
//
// The caller must NOT hold c.mu (the conversation lock is taken here).
func (c *Controller) MaybeFetchOlder(ctx context.Context, conv *conversation) bool {
	conv.mu.Lock()
	if conv.timeline == nil || !conv.timeline.HasMoreHistory() || conv.histErr != nil {
		conv.mu.Unlock()
		return false
	}
	t := conv.timeline
	if t.Loaded() {
		top, _ := t.viewportRange(conv.scroll.Anchor(), conv.scroll.Height())
		if top > c.threshold {
			conv.mu.Unlock()
			return false
		}
	}
	before := t.OldestLoaded()
	id := conv.meta.ID
	conv.mu.Unlock()

	if !c.claimHistory(id) {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.releaseHistory(id)
		c.fetchOlder(ctx, conv, id, before)
		c.wake()
	}()
	return true
}

// InitialFetch loads the first page for a freshly opened conversation.
func (c *Controller) InitialFetch(ctx context.Context, conv *conversation) bool {
	conv.mu.Lock()
	id := conv.meta.ID
	conv.mu.Unlock()
	if !c.claimHistory(id) {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.releaseHistory(id)
		c.fetchOlder(ctx, conv, id, 0)
		c.wake()
	}()
	return true
}

// fetchOlder performs one history fetch and merges the result. A disjoint
// page is retried once against the frontier current at completion time; a
// second disjoint surfaces ErrHistoryUnavailable for this conversation.
func (c *Controller) fetchOlder(ctx context.Context, conv *conversation, id ConversationID, before MessageID) {
	for attempt := 0; attempt < 2; attempt++ {
		page, err := c.fetcher.FetchHistory(ctx, id, before, c.pageSize)
		if err != nil {
			if ctx.Err() != nil {
				// Shutdown: abandon without touching store invariants.
				return
			}
			c.log.Warn().Err(err).Int64("conversation", int64(id)).Msg("history fetch failed")
			conv.mu.Lock()
			conv.histErr = err
			conv.mu.Unlock()
			return
		}
		isTail := len(page) < c.pageSize

		conv.mu.Lock()
		if conv.timeline == nil {
			// Evicted while in flight; drop the result.
			conv.mu.Unlock()
			return
		}
		res, mergeErr := conv.timeline.MergePage(page, isTail)
		if mergeErr != nil {
			conv.mu.Unlock()
			c.log.Error().Err(mergeErr).Int64("conversation", int64(id)).Msg("history page violates contract")
			return
		}
		if res != MergeDisjoint {
			conv.histErr = nil
			conv.mu.Unlock()
			return
		}
		// Frontier moved while we were fetching; retry once against it.
		before = conv.timeline.OldestLoaded()
		conv.mu.Unlock()
	}

	c.log.Warn().Int64("conversation", int64(id)).Msg("history page disjoint after retry")
	conv.mu.Lock()
	conv.histErr = ErrHistoryUnavailable
	conv.mu.Unlock()
}

// FillGap launches a forward-fill for a flagged gap. Each span is issued
// exactly once while outstanding; MergeGapped callers route every new span
// here.
func (c *Controller) FillGap(ctx context.Context, conv *conversation, span GapSpan) bool {
	conv.mu.Lock()
	id := conv.meta.ID
	conv.mu.Unlock()

	if !c.claimGap(id, span) {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.releaseGap(id, span)
		c.fillGap(ctx, conv, id, span)
		c.wake()
	}()
	return true
}

func (c *Controller) fillGap(ctx context.Context, conv *conversation, id ConversationID, span GapSpan) {
	// Page backward from just above the span until it is covered. Wide gaps
	// take several pages; each merge shrinks the flagged span.
	before := span.To + 1
	for before > span.From {
		limit := minInt(c.pageSize, int(before-span.From))
		page, err := c.fetcher.FetchHistory(ctx, id, before, limit)
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn().Err(err).Int64("conversation", int64(id)).Msg("gap fill fetch failed")
			}
			return
		}
		if len(page) == 0 {
			return
		}

		conv.mu.Lock()
		if conv.timeline == nil {
			conv.mu.Unlock()
			return
		}
		res, mergeErr := conv.timeline.MergePage(page, false)
		conv.mu.Unlock()
		if mergeErr != nil {
			c.log.Error().Err(mergeErr).Int64("conversation", int64(id)).Msg("gap fill page violates contract")
			return
		}
		if res == MergeDisjoint {
			return
		}
		before = page[0].ID
	}
}

// RetryHistory clears the recoverable history-unavailable state and re-arms
// fetching; the next MaybeFetchOlder trigger fetches again. Exposed to the
// UI retry affordance.
func (c *Controller) RetryHistory(conv *conversation) {
	conv.mu.Lock()
	conv.histErr = nil
	conv.mu.Unlock()
}

// Wait blocks until all in-flight fetches have settled. Used by tests and
// shutdown.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) claimHistory(id ConversationID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.pendingHist[id]; busy {
		return false
	}
	c.pendingHist[id] = struct{}{}
	return true
}

func (c *Controller) releaseHistory(id ConversationID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pendingHist, id)
}

func (c *Controller) claimGap(id ConversationID, span GapSpan) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	spans, ok := c.pendingGaps[id]
	if !ok {
		spans = make(map[GapSpan]struct{})
		c.pendingGaps[id] = spans
	}
	if _, busy := spans[span]; busy {
		return false
	}
	spans[span] = struct{}{}
	return true
}

func (c *Controller) releaseGap(id ConversationID, span GapSpan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if spans, ok := c.pendingGaps[id]; ok {
		delete(spans, span)
		if len(spans) == 0 {
			delete(c.pendingGaps, id)
		}
	}
}

func (c *Controller) wake() {
	if c.notify != nil {
		c.notify()
	}
}
