package transport

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skald-im/skald/internal/chat"
)

const defaultStreamBuffer = 256

// Memory is an in-process event source backed by seeded conversations. It
// implements chat.Source and powers offline mode and tests.
type Memory struct {
	mu       sync.Mutex
	metas    map[chat.ConversationID]chat.ConversationMeta
	messages map[chat.ConversationID][]chat.Message
	nextID   map[chat.ConversationID]chat.MessageID
	self     string

	subs []chan chat.Event

	// FetchErr, when set, makes FetchHistory fail; tests use it to exercise
	// the transient-error path.
	FetchErr error
	// FetchDelay throttles FetchHistory to simulate slow links.
	FetchDelay time.Duration
}

// NewMemory returns an empty in-memory source. Sender is the name attached
// to outgoing messages.
func NewMemory(self string) *Memory {
	return &Memory{
		metas:    make(map[chat.ConversationID]chat.ConversationMeta),
		messages: make(map[chat.ConversationID][]chat.Message),
		nextID:   make(map[chat.ConversationID]chat.MessageID),
		self:     self,
	}
}

// SeedConversation registers a conversation with a title and a dense block
// of history ending at the newest message.
func (m *Memory) SeedConversation(id chat.ConversationID, title string, history []chat.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := append([]chat.Message(nil), history...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	m.messages[id] = msgs
	meta := chat.ConversationMeta{ID: id, Title: title}
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		meta.LastSender = last.Sender
		meta.LastBody = last.Body
		meta.LastActivity = last.Time
		meta.NewestSeen = last.ID
		m.nextID[id] = last.ID + 1
	} else {
		m.nextID[id] = 1
	}
	m.metas[id] = meta
}

// FetchHistory returns up to limit messages strictly below beforeID, oldest
// first; beforeID 0 means "newest available".
func (m *Memory) FetchHistory(ctx context.Context, id chat.ConversationID, beforeID chat.MessageID, limit int) ([]chat.Message, error) {
	if m.FetchDelay > 0 {
		select {
		case <-time.After(m.FetchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, &TransportError{Op: "fetch history", Temporary: true, Err: m.FetchErr}
	}
	msgs := m.messages[id]
	end := len(msgs)
	if beforeID > 0 {
		end = sort.Search(len(msgs), func(i int) bool { return msgs[i].ID >= beforeID })
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]chat.Message, end-start)
	copy(out, msgs[start:end])
	return out, nil
}

// Subscribe returns a live event channel closed when ctx is cancelled.
func (m *Memory) Subscribe(ctx context.Context) <-chan chat.Event {
	ch := make(chan chat.Event, defaultStreamBuffer)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		for i, sub := range m.subs {
			if sub == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				break
			}
		}
		// Closing under the lock keeps broadcast from racing the close:
		// once removed here, no sender can see the channel again.
		close(ch)
		m.mu.Unlock()
	}()
	return ch
}

// broadcast delivers an event to every subscriber. Caller holds m.mu, which
// orders delivery against unsubscribe; the send is non-blocking so a stalled
// subscriber cannot wedge a sender.
func (m *Memory) broadcast(ev chat.Event) {
	for _, sub := range m.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

// Conversations lists seeded conversations.
func (m *Memory) Conversations(ctx context.Context) ([]chat.ConversationMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chat.ConversationMeta, 0, len(m.metas))
	for _, meta := range m.metas {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Send appends an outgoing message and echoes it on the live stream, the way
// a real service acknowledges a send.
func (m *Memory) Send(ctx context.Context, id chat.ConversationID, body string) error {
	m.mu.Lock()
	next := m.nextID[id]
	if next == 0 {
		next = 1
	}
	msg := chat.Message{
		ID:             next,
		ConversationID: id,
		Sender:         m.self,
		Time:           time.Now().UTC(),
		Body:           body,
		Outgoing:       true,
	}
	m.nextID[id] = next + 1
	m.messages[id] = append(m.messages[id], msg)
	meta := m.metas[id]
	meta.ID = id
	meta.LastSender = msg.Sender
	meta.LastBody = msg.Body
	meta.LastActivity = msg.Time
	meta.NewestSeen = msg.ID
	m.metas[id] = meta
	m.broadcast(chat.Event{ConversationID: id, Message: msg})
	m.mu.Unlock()
	return nil
}

// Emit injects an incoming live event, updating stored history so later
// fetches stay consistent. Tests and the offline demo drive this.
func (m *Memory) Emit(id chat.ConversationID, msg chat.Message) {
	m.mu.Lock()
	msg.ConversationID = id
	msgs := m.messages[id]
	pos := sort.Search(len(msgs), func(i int) bool { return msgs[i].ID >= msg.ID })
	if pos == len(msgs) {
		msgs = append(msgs, msg)
	} else if msgs[pos].ID == msg.ID {
		msgs[pos] = msg
	} else {
		msgs = append(msgs[:pos], append([]chat.Message{msg}, msgs[pos:]...)...)
	}
	m.messages[id] = msgs
	if next := m.nextID[id]; msg.ID >= next {
		m.nextID[id] = msg.ID + 1
	}
	meta := m.metas[id]
	meta.ID = id
	if msg.ID >= meta.NewestSeen {
		meta.NewestSeen = msg.ID
		meta.LastSender = msg.Sender
		meta.LastBody = msg.Body
		if msg.Time.After(meta.LastActivity) {
			meta.LastActivity = msg.Time
		}
	}
	m.metas[id] = meta
	m.broadcast(chat.Event{ConversationID: id, Message: msg})
	m.mu.Unlock()
}
