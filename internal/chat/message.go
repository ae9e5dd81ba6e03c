// Package chat implements the timeline synchronization engine: per-conversation
// message buffers assembled from lazily fetched history pages and a live event
// stream, with scroll-anchor semantics and bounded memory for long sessions.
package chat

import "time"

// ConversationID identifies a conversation (direct, group, or channel).
type ConversationID int64

// MessageID is a server-assigned identifier, unique and dense within a
// conversation, totally ordered consistent with send order.
type MessageID uint64

// Message is a single timeline entry.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	Sender         string
	Time           time.Time
	Body           string
	// EditedVersion increases monotonically with each edit; 0 means never edited.
	EditedVersion uint32
	// Deleted marks a tombstone. The entry keeps its place in the timeline.
	Deleted bool
	// Outgoing marks the user's own messages; they never bump unread counts.
	Outgoing bool
}

// ConversationMeta is the cheap per-conversation record kept for every
// registered conversation, opened or not.
type ConversationMeta struct {
	ID           ConversationID
	Title        string
	LastSender   string
	LastBody     string
	LastActivity time.Time
	Unread       int
	// NewestSeen is the newest message id ever observed for this conversation.
	// It survives timeline eviction so reopening resumes at the live edge.
	NewestSeen MessageID
	LastRead   MessageID
}

// supersedes reports whether incoming should replace current: a newer edit
// wins, and a delete tombstone latches.
func supersedes(incoming, current Message) bool {
	if incoming.EditedVersion > current.EditedVersion {
		return true
	}
	return incoming.Deleted && !current.Deleted
}

// applyUpdate folds incoming into current without ever un-deleting or
// rolling back an edit.
func applyUpdate(current, incoming Message) Message {
	out := current
	if incoming.EditedVersion > current.EditedVersion {
		out.Body = incoming.Body
		out.EditedVersion = incoming.EditedVersion
		if !incoming.Time.IsZero() {
			out.Time = incoming.Time
		}
	}
	if incoming.Deleted {
		out.Deleted = true
	}
	return out
}
