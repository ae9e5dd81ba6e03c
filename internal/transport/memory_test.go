package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skald-im/skald/internal/chat"
)

func seedHistory(from, to chat.MessageID) []chat.Message {
	out := make([]chat.Message, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, chat.Message{ID: id, Sender: "bo", Body: "m"})
	}
	return out
}

func TestMemoryFetchHistoryPages(t *testing.T) {
	m := NewMemory("me")
	m.SeedConversation(1, "ops", seedHistory(1, 120))

	page, err := m.FetchHistory(context.Background(), 1, 0, 50)
	require.NoError(t, err)
	require.Len(t, page, 50)
	require.Equal(t, chat.MessageID(71), page[0].ID)
	require.Equal(t, chat.MessageID(120), page[len(page)-1].ID)

	page, err = m.FetchHistory(context.Background(), 1, 71, 50)
	require.NoError(t, err)
	require.Equal(t, chat.MessageID(21), page[0].ID)
	require.Equal(t, chat.MessageID(70), page[len(page)-1].ID)

	// The final short page signals exhausted history.
	page, err = m.FetchHistory(context.Background(), 1, 21, 50)
	require.NoError(t, err)
	require.Len(t, page, 20)
	require.Equal(t, chat.MessageID(1), page[0].ID)
}

func TestMemoryFetchErrIsTemporary(t *testing.T) {
	m := NewMemory("me")
	m.SeedConversation(1, "ops", seedHistory(1, 10))
	m.FetchErr = errors.New("flaky link")

	_, err := m.FetchHistory(context.Background(), 1, 0, 50)
	require.Error(t, err)
	require.True(t, IsTemporary(err))

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, "fetch history", terr.Op)
}

func TestMemoryConversationsListsSeeds(t *testing.T) {
	m := NewMemory("me")
	m.SeedConversation(2, "family", seedHistory(1, 3))
	m.SeedConversation(1, "ops", nil)

	metas, err := m.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 2)
	require.Equal(t, chat.ConversationID(1), metas[0].ID)
	require.Equal(t, "family", metas[1].Title)
	require.Equal(t, chat.MessageID(3), metas[1].NewestSeen)
}

func TestMemorySendEchoesOnStream(t *testing.T) {
	m := NewMemory("me")
	m.SeedConversation(1, "ops", seedHistory(1, 5))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := m.Subscribe(ctx)

	require.NoError(t, m.Send(context.Background(), 1, "hello"))

	select {
	case ev := <-events:
		require.Equal(t, chat.ConversationID(1), ev.ConversationID)
		require.Equal(t, chat.MessageID(6), ev.Message.ID)
		require.Equal(t, "hello", ev.Message.Body)
		require.Equal(t, "me", ev.Message.Sender)
		require.True(t, ev.Message.Outgoing)
	case <-time.After(2 * time.Second):
		t.Fatal("no echo on stream")
	}

	// The send is part of history for later fetches.
	page, err := m.FetchHistory(context.Background(), 1, 0, 10)
	require.NoError(t, err)
	require.Equal(t, chat.MessageID(6), page[len(page)-1].ID)
}

func TestMemoryEmitKeepsHistoryConsistent(t *testing.T) {
	m := NewMemory("me")
	m.SeedConversation(1, "ops", seedHistory(1, 5))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := m.Subscribe(ctx)

	// An edit of an existing message replaces it in place.
	m.Emit(1, chat.Message{ID: 3, Sender: "bo", Body: "edited", EditedVersion: 1})
	<-events

	page, err := m.FetchHistory(context.Background(), 1, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 5)
	require.Equal(t, "edited", page[2].Body)

	// A new message advances the id allocator past it.
	m.Emit(1, chat.Message{ID: 9, Sender: "bo", Body: "skip"})
	<-events
	require.NoError(t, m.Send(context.Background(), 1, "after"))
	select {
	case ev := <-events:
		require.Equal(t, chat.MessageID(10), ev.Message.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no echo on stream")
	}
}

func TestMemorySubscribeClosesOnCancel(t *testing.T) {
	m := NewMemory("me")
	ctx, cancel := context.WithCancel(context.Background())
	events := m.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-events:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed")
	}
}

// Unsubscribing closes the event channel; a concurrent Emit must never send
// on it afterwards.
func TestMemoryEmitDuringUnsubscribeDoesNotPanic(t *testing.T) {
	m := NewMemory("me")
	m.SeedConversation(1, "ops", seedHistory(1, 5))

	ctx, cancel := context.WithCancel(context.Background())
	events := m.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			m.Emit(1, chat.Message{ID: chat.MessageID(6 + i), Sender: "bo", Body: "m"})
		}
	}()
	cancel()
	<-done

	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("stream not closed")
		}
	}
}
