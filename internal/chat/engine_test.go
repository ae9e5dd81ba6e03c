package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory event source backed by fakeFetcher's dense
// history, with a hand-fed live stream.
type fakeSource struct {
	fakeFetcher
	events chan Event
	metas  []ConversationMeta

	sendMu sync.Mutex
	sent   []string
}

func newFakeSource(oldest, newest MessageID, metas ...ConversationMeta) *fakeSource {
	return &fakeSource{
		fakeFetcher: fakeFetcher{oldest: oldest, newest: newest},
		events:      make(chan Event, 64),
		metas:       metas,
	}
}

func (s *fakeSource) Subscribe(context.Context) <-chan Event { return s.events }

func (s *fakeSource) Conversations(context.Context) ([]ConversationMeta, error) {
	return s.metas, nil
}

func (s *fakeSource) Send(_ context.Context, id ConversationID, body string) error {
	s.sendMu.Lock()
	s.sent = append(s.sent, body)
	s.sendMu.Unlock()

	s.mu.Lock()
	s.newest++
	m := Message{ID: s.newest, ConversationID: id, Sender: "me", Body: body, Outgoing: true}
	s.mu.Unlock()
	s.events <- Event{ConversationID: id, Message: m}
	return nil
}

func (s *fakeSource) emit(id ConversationID, m Message) {
	m.ConversationID = id
	s.events <- Event{ConversationID: id, Message: m}
}

func startEngine(t *testing.T, src *fakeSource, cfg EngineConfig) *Engine {
	t.Helper()
	e := NewEngine(src, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e.Run(ctx)
	require.NoError(t, e.LoadConversations(ctx))
	return e
}

// settle waits out background fetches and empties the wake channel so the
// next wake observed belongs to the next stimulus.
func settle(e *Engine) {
	e.Wait()
	select {
	case <-e.Updates():
	default:
	}
}

func awaitWake(t *testing.T, e *Engine) {
	t.Helper()
	select {
	case <-e.Updates():
	case <-time.After(2 * time.Second):
		t.Fatal("no update signal")
	}
}

func TestEngineOpenFetchesInitialPage(t *testing.T) {
	src := newFakeSource(1, 30, ConversationMeta{ID: 7, Title: "ops"})
	e := startEngine(t, src, EngineConfig{})

	// Registered but not opened: nothing to render yet.
	_, err := e.Window(7, 5)
	require.ErrorIs(t, err, ErrConversationClosed)

	meta := e.Open(context.Background(), 7)
	require.Equal(t, "ops", meta.Title)
	e.Wait()

	require.NoError(t, e.OnResize(7, 5))
	w, err := e.Window(7, 5)
	require.NoError(t, err)
	require.Equal(t, ids(w.Messages), []MessageID{26, 27, 28, 29, 30})
	require.True(t, w.HasMoreAbove)
	require.False(t, w.HasMoreBelow)
}

func TestEngineWindowUnknownConversation(t *testing.T) {
	src := newFakeSource(1, 10)
	e := startEngine(t, src, EngineConfig{})
	_, err := e.Window(99, 5)
	require.ErrorIs(t, err, ErrUnknownConversation)
}

func TestEngineRoutesLiveToUnopenedAsMetadataOnly(t *testing.T) {
	src := newFakeSource(1, 30, ConversationMeta{ID: 7}, ConversationMeta{ID: 8})
	e := startEngine(t, src, EngineConfig{})
	settle(e)

	src.emit(8, Message{ID: 31, Sender: "bo", Body: "ping"})
	awaitWake(t, e)

	require.Equal(t, 1, e.UnreadCount(8))
	sender, body := e.Preview(8)
	require.Equal(t, "bo", sender)
	require.Equal(t, "ping", body)
	require.Zero(t, e.registry.InstantiatedCount(), "metadata accounting must not instantiate")

	// A later open still owes the initial page fetch.
	e.Open(context.Background(), 8)
	e.Wait()
	require.NoError(t, e.OnResize(8, 5))
	w, err := e.Window(8, 5)
	require.NoError(t, err)
	require.Equal(t, MessageID(30), w.Messages[len(w.Messages)-1].ID)
}

func TestEngineBottomStickOnLiveAppend(t *testing.T) {
	src := newFakeSource(1, 30, ConversationMeta{ID: 7})
	e := startEngine(t, src, EngineConfig{})
	e.Open(context.Background(), 7)
	settle(e)
	require.NoError(t, e.OnResize(7, 5))

	src.emit(7, Message{ID: 31, Sender: "bo", Body: "new"})
	awaitWake(t, e)
	e.Wait()

	w, err := e.Window(7, 5)
	require.NoError(t, err)
	require.Equal(t, MessageID(31), w.Messages[len(w.Messages)-1].ID)
}

func TestEngineFixedAnchorSurvivesLiveAppend(t *testing.T) {
	src := newFakeSource(1, 30, ConversationMeta{ID: 7})
	e := startEngine(t, src, EngineConfig{})
	e.Open(context.Background(), 7)
	settle(e)
	require.NoError(t, e.OnResize(7, 5))

	e.OnScroll(context.Background(), 7, true, 10)
	e.Wait()
	before, err := e.Window(7, 5)
	require.NoError(t, err)

	src.emit(7, Message{ID: 31, Sender: "bo", Body: "new"})
	awaitWake(t, e)
	e.Wait()

	after, err := e.Window(7, 5)
	require.NoError(t, err)
	require.Equal(t, ids(before.Messages), ids(after.Messages))
	require.True(t, after.HasMoreBelow)
}

func TestEngineGapEventTriggersForwardFill(t *testing.T) {
	src := newFakeSource(1, 30, ConversationMeta{ID: 7})
	e := startEngine(t, src, EngineConfig{})
	e.Open(context.Background(), 7)
	settle(e)

	// Simulate a reconnect that skipped a few ids. The store keeps serving
	// the skipped range from history.
	src.mu.Lock()
	src.newest = 36
	src.mu.Unlock()
	src.emit(7, Message{ID: 36, Sender: "bo", Body: "late"})
	awaitWake(t, e)
	e.Wait()

	c, ok := e.registry.Lookup(7)
	require.True(t, ok)
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Empty(t, c.timeline.Gaps())
	require.Equal(t, MessageID(36), c.timeline.NewestLoaded())
	require.True(t, c.timeline.CheckDense())
}

type recordingSink struct {
	mu         sync.Mutex
	upserts    int
	watermarks map[ConversationID]MessageID
}

func (s *recordingSink) UpsertMeta(context.Context, ConversationMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	return nil
}

func (s *recordingSink) SetReadWatermark(_ context.Context, id ConversationID, last MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watermarks == nil {
		s.watermarks = make(map[ConversationID]MessageID)
	}
	s.watermarks[id] = last
	return nil
}

func TestEngineMarkReadClearsUnreadAndPersists(t *testing.T) {
	sink := &recordingSink{}
	src := newFakeSource(1, 30, ConversationMeta{ID: 7})
	e := startEngine(t, src, EngineConfig{Sink: sink})
	e.Open(context.Background(), 7)
	settle(e)

	src.mu.Lock()
	src.newest = 32
	src.mu.Unlock()
	src.emit(7, Message{ID: 31, Sender: "bo", Body: "one"})
	awaitWake(t, e)
	settle(e)
	src.emit(7, Message{ID: 32, Sender: "bo", Body: "two"})
	awaitWake(t, e)
	require.Equal(t, 2, e.UnreadCount(7))

	e.MarkRead(context.Background(), 7)
	require.Zero(t, e.UnreadCount(7))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Equal(t, MessageID(32), sink.watermarks[7])
	require.Positive(t, sink.upserts)
}

func TestEngineSendRoundTripsThroughEcho(t *testing.T) {
	src := newFakeSource(1, 30, ConversationMeta{ID: 7})
	e := startEngine(t, src, EngineConfig{})
	e.Open(context.Background(), 7)
	settle(e)
	require.NoError(t, e.OnResize(7, 5))

	require.NoError(t, e.Send(context.Background(), 7, "hello"))
	awaitWake(t, e)
	e.Wait()

	w, err := e.Window(7, 5)
	require.NoError(t, err)
	last := w.Messages[len(w.Messages)-1]
	require.Equal(t, MessageID(31), last.ID)
	require.Equal(t, "hello", last.Body)
	require.True(t, last.Outgoing)
	require.Zero(t, e.UnreadCount(7), "own messages are never unread")
}

func TestEngineScrollUpSchedulesBackfill(t *testing.T) {
	src := newFakeSource(1, 200, ConversationMeta{ID: 7})
	e := startEngine(t, src, EngineConfig{PageSize: 50})
	e.Open(context.Background(), 7)
	settle(e)
	require.NoError(t, e.OnResize(7, 10))

	e.OnScroll(context.Background(), 7, true, 60)
	e.Wait()

	c, ok := e.registry.Lookup(7)
	require.True(t, ok)
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Equal(t, MessageID(101), c.timeline.OldestLoaded())
}
