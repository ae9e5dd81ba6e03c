package cli

import (
	"fmt"
	"time"

	"github.com/skald-im/skald/internal/chat"
	"github.com/skald-im/skald/internal/transport"
)

// seedDemo fills the in-memory source with enough history to exercise
// paging, scrollback, and unread accounting without a network.
func seedDemo(src *transport.Memory) {
	now := time.Now().UTC()
	seed := []struct {
		id      chat.ConversationID
		title   string
		senders []string
		count   int
	}{
		{1, "weekend plans", []string{"maja", "tomas"}, 180},
		{2, "book club", []string{"ingrid", "olav", "sigrid"}, 340},
		{3, "work", []string{"erik"}, 25},
	}
	for _, s := range seed {
		history := make([]chat.Message, 0, s.count)
		for i := 1; i <= s.count; i++ {
			history = append(history, chat.Message{
				ID:     chat.MessageID(i),
				Sender: s.senders[i%len(s.senders)],
				Time:   now.Add(-time.Duration(s.count-i) * time.Minute),
				Body:   fmt.Sprintf("%s message %d in %s", s.senders[i%len(s.senders)], i, s.title),
			})
		}
		src.SeedConversation(s.id, s.title, history)
	}
}
