package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Event is one element of the live stream: a new, edited, or deleted message
// with no arrival-order guarantee across conversations.
type Event struct {
	ConversationID ConversationID
	Message        Message
}

// Source is the event-source collaborator boundary. Reconnection and backoff
// are the collaborator's responsibility; the engine only reacts to whatever
// arrives.
type Source interface {
	Fetcher
	// Subscribe returns the infinite live event stream. Not restartable.
	Subscribe(ctx context.Context) <-chan Event
	// Conversations lists the user's conversations with metadata.
	Conversations(ctx context.Context) ([]ConversationMeta, error)
	// Send submits a new message; the server echoes it back on the stream.
	Send(ctx context.Context, id ConversationID, body string) error
}

// MetaSink persists conversation metadata changes (previews, unread counts,
// read watermarks) so the conversation list renders instantly on restart.
type MetaSink interface {
	UpsertMeta(ctx context.Context, meta ConversationMeta) error
	SetReadWatermark(ctx context.Context, id ConversationID, last MessageID) error
}

// EngineConfig tunes the engine; zero values take defaults.
type EngineConfig struct {
	PageSize       int
	FetchThreshold int
	// TimelineBudget caps instantiated timelines (LRU eviction).
	TimelineBudget int
	// MessageBudget caps messages kept per timeline.
	MessageBudget int
	Logger        zerolog.Logger
	// Sink receives metadata changes; nil disables persistence.
	Sink MetaSink
}

const defaultMessageBudget = 4000

// Engine owns the conversation registry and the pagination controller and
// exposes the synchronous surface the render and input collaborators use.
// All reads are pure snapshots; the render loop polls at its own cadence and
// the engine never pushes frames (updates only nudges a redraw).
type Engine struct {
	source   Source
	registry *Registry
	ctrl     *Controller
	sink     MetaSink
	log      zerolog.Logger

	msgBudget int

	// updates is a coalesced wake-up for the render loop.
	updates chan struct{}
}

// NewEngine wires an engine over the given source.
func NewEngine(source Source, cfg EngineConfig) *Engine {
	if cfg.MessageBudget <= 0 {
		cfg.MessageBudget = defaultMessageBudget
	}
	e := &Engine{
		source:    source,
		registry:  NewRegistry(cfg.TimelineBudget),
		sink:      cfg.Sink,
		log:       cfg.Logger,
		msgBudget: cfg.MessageBudget,
		updates:   make(chan struct{}, 1),
	}
	e.ctrl = NewController(source, ControllerConfig{
		PageSize:       cfg.PageSize,
		FetchThreshold: cfg.FetchThreshold,
		Logger:         cfg.Logger,
		Notify:         e.nudge,
	})
	return e
}

// Updates is a coalesced signal that something changed in the background;
// the render loop may use it to schedule a redraw.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

func (e *Engine) nudge() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

// LoadConversations fetches the conversation list and registers metadata for
// every entry, instantiating nothing.
func (e *Engine) LoadConversations(ctx context.Context) error {
	metas, err := e.source.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	for _, m := range metas {
		e.registry.Register(m)
	}
	e.nudge()
	return nil
}

// Seed registers metadata recovered from local persistence before the
// network answers.
func (e *Engine) Seed(metas []ConversationMeta) {
	for _, m := range metas {
		e.registry.Register(m)
	}
}

// Run consumes the live stream until ctx is cancelled. In-flight fetches are
// abandoned on shutdown without corrupting store invariants.
func (e *Engine) Run(ctx context.Context) error {
	events := e.source.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.routeLive(ctx, ev)
		}
	}
}

// routeLive dispatches a live event to the owning conversation: a full merge
// for instantiated timelines, metadata-only accounting otherwise, so unread
// state and future reopens stay correct at metadata cost.
func (e *Engine) routeLive(ctx context.Context, ev Event) {
	m := ev.Message
	if m.ConversationID == 0 {
		m.ConversationID = ev.ConversationID
	}
	c, ok := e.registry.Lookup(ev.ConversationID)
	if !ok {
		e.registry.Register(ConversationMeta{ID: ev.ConversationID})
		c, _ = e.registry.Lookup(ev.ConversationID)
	}

	c.mu.Lock()
	var gap GapSpan
	gapped := false
	if c.instantiated() {
		res, err := c.timeline.MergeLive(m)
		if err != nil {
			c.mu.Unlock()
			e.log.Error().Err(err).
				Int64("conversation", int64(ev.ConversationID)).
				Uint64("message", uint64(m.ID)).
				Msg("live event violates contract")
			return
		}
		if res == MergeGapped {
			gaps := c.timeline.Gaps()
			gap = gaps[len(gaps)-1]
			gapped = true
		}
		if res != MergeIgnored {
			c.timeline.TrimToBudget(e.msgBudget, c.scroll.Anchor(), c.scroll.Height())
		}
	}
	e.touchMetaLocked(c, m)
	meta := c.meta
	c.mu.Unlock()

	if gapped {
		e.ctrl.FillGap(ctx, c, gap)
	}
	e.persistMeta(ctx, meta)
	e.nudge()
}

// touchMetaLocked folds a live message into the conversation metadata.
// Caller holds c.mu.
func (e *Engine) touchMetaLocked(c *conversation, m Message) {
	if m.ID > c.meta.NewestSeen {
		c.meta.NewestSeen = m.ID
		if !m.Deleted {
			c.meta.LastSender = m.Sender
			c.meta.LastBody = m.Body
		}
		if m.Time.After(c.meta.LastActivity) {
			c.meta.LastActivity = m.Time
		}
		if !m.Outgoing && m.ID > c.meta.LastRead {
			c.meta.Unread++
		}
	}
}

// Open instantiates the conversation on first access (triggering the initial
// page fetch) and returns its metadata.
func (e *Engine) Open(ctx context.Context, id ConversationID) ConversationMeta {
	c, fresh := e.registry.Open(id)
	if fresh {
		e.ctrl.InitialFetch(ctx, c)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

// Window computes the visible window for a conversation. Safe to call every
// frame; an unopened conversation reports ErrConversationClosed.
func (e *Engine) Window(id ConversationID, height int) (Window, error) {
	if height < 0 {
		return Window{}, ErrNegativeHeight
	}
	c, ok := e.registry.Lookup(id)
	if !ok {
		return Window{}, ErrUnknownConversation
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.instantiated() {
		return Window{}, ErrConversationClosed
	}
	return c.timeline.Window(c.scroll.Anchor(), height)
}

// HistoryErr reports the recoverable history failure for a conversation, if
// any, so the UI can render a retry affordance.
func (e *Engine) HistoryErr(id ConversationID) error {
	c, ok := e.registry.Lookup(id)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.histErr
}

// OnScroll applies a user scroll and may schedule a backward fetch when the
// view nears the oldest loaded message.
func (e *Engine) OnScroll(ctx context.Context, id ConversationID, up bool, amount int) {
	c, ok := e.registry.Lookup(id)
	if !ok {
		return
	}
	c.mu.Lock()
	if !c.instantiated() {
		c.mu.Unlock()
		return
	}
	if up {
		c.scroll.ScrollUp(c.timeline, amount)
	} else {
		c.scroll.ScrollDown(c.timeline, amount)
	}
	c.mu.Unlock()

	e.ctrl.MaybeFetchOlder(ctx, c)
}

// OnJumpTo centers the viewport on a specific message (search results,
// notifications) and backfills if the anchor lands near a frontier.
func (e *Engine) OnJumpTo(ctx context.Context, id ConversationID, target MessageID) {
	c, ok := e.registry.Lookup(id)
	if !ok {
		return
	}
	c.mu.Lock()
	if !c.instantiated() {
		c.mu.Unlock()
		return
	}
	c.scroll.JumpTo(c.timeline, target)
	c.mu.Unlock()

	e.ctrl.MaybeFetchOlder(ctx, c)
}

// OnResize records a new viewport height for the conversation. The anchor is
// kept; the next Window call recomputes under it.
func (e *Engine) OnResize(id ConversationID, height int) error {
	c, ok := e.registry.Lookup(id)
	if !ok {
		return ErrUnknownConversation
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.instantiated() {
		return ErrConversationClosed
	}
	return c.scroll.SetHeight(height)
}

// RetryHistory clears a failed-history state and immediately re-attempts the
// fetch. Wired to the UI retry affordance.
func (e *Engine) RetryHistory(ctx context.Context, id ConversationID) {
	c, ok := e.registry.Lookup(id)
	if !ok {
		return
	}
	e.ctrl.RetryHistory(c)
	e.ctrl.MaybeFetchOlder(ctx, c)
}

// MarkRead moves the read watermark to the newest seen message and clears
// the unread count.
func (e *Engine) MarkRead(ctx context.Context, id ConversationID) {
	c, ok := e.registry.Lookup(id)
	if !ok {
		return
	}
	c.mu.Lock()
	c.meta.Unread = 0
	c.meta.LastRead = c.meta.NewestSeen
	meta := c.meta
	c.mu.Unlock()
	e.persistMeta(ctx, meta)
	if e.sink != nil {
		if err := e.sink.SetReadWatermark(ctx, id, meta.LastRead); err != nil {
			e.log.Warn().Err(err).Int64("conversation", int64(id)).Msg("persist read watermark failed")
		}
	}
}

// Send submits a message to a conversation. The echoed live event advances
// the timeline; nothing is inserted locally.
func (e *Engine) Send(ctx context.Context, id ConversationID, body string) error {
	if err := e.source.Send(ctx, id, body); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// UnreadCount reports unread messages for any registered conversation,
// opened or not.
func (e *Engine) UnreadCount(id ConversationID) int {
	c, ok := e.registry.Lookup(id)
	if !ok {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.Unread
}

// Preview returns the last-message summary for a conversation.
func (e *Engine) Preview(id ConversationID) (sender, body string) {
	c, ok := e.registry.Lookup(id)
	if !ok {
		return "", ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.LastSender, c.meta.LastBody
}

// Conversations returns a metadata snapshot sorted by recent activity.
func (e *Engine) Conversations() []ConversationMeta {
	return e.registry.Metas()
}

// Wait blocks until background fetches settle; tests and shutdown use it.
func (e *Engine) Wait() {
	e.ctrl.Wait()
}

func (e *Engine) persistMeta(ctx context.Context, meta ConversationMeta) {
	if e.sink == nil {
		return
	}
	if err := e.sink.UpsertMeta(ctx, meta); err != nil {
		e.log.Warn().Err(err).Int64("conversation", int64(meta.ID)).Msg("persist conversation meta failed")
	}
}
