package chat

import (
	"sort"
	"sync"
	"time"
)

const defaultTimelineBudget = 16

// conversation bundles the per-conversation state. mu serializes every
// timeline and scroll mutation: merge ordering and gap detection are not
// commutative under concurrent mutation. Different conversations never share
// a lock.
type conversation struct {
	mu sync.Mutex

	meta     ConversationMeta
	timeline *Timeline
	scroll   *ScrollState

	// histErr holds the recoverable per-conversation history failure shown
	// as a retry affordance. Never fatal, never blocks other conversations.
	histErr error

	lastViewed time.Time
}

func (c *conversation) instantiated() bool {
	return c.timeline != nil
}

// Registry is the single owner of all per-conversation state. Conversations
// cost metadata only until first opened, so hundreds of registered
// conversations keep startup instant.
type Registry struct {
	mu    sync.RWMutex
	convs map[ConversationID]*conversation

	// budget caps the number of instantiated timelines; the least recently
	// viewed one is evicted (from memory, not from the server) when exceeded.
	budget int
	now    func() time.Time
}

// NewRegistry creates a registry that keeps at most budget instantiated
// timelines (0 means the default).
func NewRegistry(budget int) *Registry {
	if budget <= 0 {
		budget = defaultTimelineBudget
	}
	return &Registry{
		convs:  make(map[ConversationID]*conversation),
		budget: budget,
		now:    time.Now,
	}
}

// Register records or refreshes conversation metadata without instantiating
// a timeline.
func (r *Registry) Register(meta ConversationMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[meta.ID]
	if !ok {
		r.convs[meta.ID] = &conversation{meta: meta}
		return
	}
	// Never roll back live-derived fields from a stale listing.
	if meta.NewestSeen < c.meta.NewestSeen {
		meta.NewestSeen = c.meta.NewestSeen
	}
	if meta.LastActivity.Before(c.meta.LastActivity) {
		meta.LastActivity = c.meta.LastActivity
		meta.LastSender = c.meta.LastSender
		meta.LastBody = c.meta.LastBody
	}
	if meta.Unread < c.meta.Unread {
		meta.Unread = c.meta.Unread
	}
	c.meta = meta
}

// Open returns the conversation, instantiating timeline and scroll state on
// first access. The second return reports whether this call instantiated it
// (the caller owes an initial page fetch).
func (r *Registry) Open(id ConversationID) (*conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		c = &conversation{meta: ConversationMeta{ID: id}}
		r.convs[id] = c
	}
	c.lastViewed = r.now()
	if c.instantiated() {
		return c, false
	}
	c.timeline = NewTimeline()
	c.scroll = NewScrollState()
	r.evictLocked(id)
	return c, true
}

// Lookup returns the conversation without instantiating anything.
func (r *Registry) Lookup(id ConversationID) (*conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.convs[id]
	return c, ok
}

// InstantiatedCount reports how many conversations hold a live timeline.
func (r *Registry) InstantiatedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.convs {
		if c.instantiated() {
			n++
		}
	}
	return n
}

// Metas returns a snapshot of all conversation metadata, newest activity
// first.
func (r *Registry) Metas() []ConversationMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConversationMeta, 0, len(r.convs))
	for _, c := range r.convs {
		c.mu.Lock()
		out = append(out, c.meta)
		c.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// evictLocked drops the least recently viewed timelines beyond the budget,
// never evicting keep. Metadata, including the newest seen id, survives so
// reopening resumes at the live edge.
func (r *Registry) evictLocked(keep ConversationID) {
	type cand struct {
		id   ConversationID
		seen time.Time
	}
	var cands []cand
	n := 0
	for id, c := range r.convs {
		if !c.instantiated() {
			continue
		}
		n++
		if id != keep {
			cands = append(cands, cand{id: id, seen: c.lastViewed})
		}
	}
	if n <= r.budget {
		return
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].seen.Before(cands[j].seen) })
	for _, victim := range cands {
		if n <= r.budget {
			break
		}
		c := r.convs[victim.id]
		c.mu.Lock()
		if c.timeline != nil && c.timeline.NewestLoaded() > c.meta.NewestSeen {
			c.meta.NewestSeen = c.timeline.NewestLoaded()
		}
		c.timeline = nil
		c.scroll = nil
		c.mu.Unlock()
		n--
	}
}
