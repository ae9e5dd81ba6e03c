package chat

import (
	"math"
	"sort"
)

// GapSpan is an inclusive range of message ids known to exist (bounded by two
// loaded ids) but not yet fetched.
type GapSpan struct {
	From MessageID
	To   MessageID
}

func (g GapSpan) size() int {
	return int(g.To - g.From + 1)
}

func (g GapSpan) contains(id MessageID) bool {
	return id >= g.From && id <= g.To
}

// Timeline is the per-conversation ordered message buffer. Messages are kept
// sorted by id ascending; id is the dedupe key. The loaded range
// [oldest, newest] is contiguous except for explicitly flagged gap spans.
//
// Timeline is not safe for concurrent use; the registry serializes access
// per conversation.
type Timeline struct {
	msgs  []Message
	index map[MessageID]int

	loaded bool
	oldest MessageID
	newest MessageID

	// hasMore reports whether older messages are known to exist beyond the
	// oldest frontier. True until a tail page arrives.
	hasMore bool

	// gaps are interior unfetched spans, sorted and disjoint, strictly inside
	// (oldest, newest).
	gaps []GapSpan
}

// NewTimeline returns an empty timeline that assumes unbounded history until
// a tail page says otherwise.
func NewTimeline() *Timeline {
	return &Timeline{
		index:   make(map[MessageID]int),
		hasMore: true,
	}
}

func (t *Timeline) Len() int               { return len(t.msgs) }
func (t *Timeline) Loaded() bool           { return t.loaded }
func (t *Timeline) OldestLoaded() MessageID { return t.oldest }
func (t *Timeline) NewestLoaded() MessageID { return t.newest }
func (t *Timeline) HasMoreHistory() bool   { return t.hasMore }

// Message returns the stored entry with the given id.
func (t *Timeline) Message(id MessageID) (Message, bool) {
	i, ok := t.index[id]
	if !ok {
		return Message{}, false
	}
	return t.msgs[i], true
}

// Gaps returns a copy of the flagged interior gap spans.
func (t *Timeline) Gaps() []GapSpan {
	if len(t.gaps) == 0 {
		return nil
	}
	out := make([]GapSpan, len(t.gaps))
	copy(out, t.gaps)
	return out
}

// HasGapBefore reports whether the ids immediately preceding id are flagged
// as an unfetched gap.
func (t *Timeline) HasGapBefore(id MessageID) bool {
	if id == 0 {
		return false
	}
	for _, g := range t.gaps {
		if g.contains(id - 1) {
			return true
		}
	}
	return false
}

func validateMessageID(id MessageID) error {
	switch id {
	case 0:
		return ErrZeroID
	case math.MaxUint64:
		// A dense id space never legitimately reaches the ceiling; advancing
		// past it would wrap. Fail loudly instead.
		return ErrIDOverflow
	}
	return nil
}

func validatePage(page []Message) error {
	for i := range page {
		if err := validateMessageID(page[i].ID); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		prev := page[i-1].ID
		if page[i].ID <= prev {
			return ErrPageNotAscending
		}
		if page[i].ID != prev+1 {
			return ErrPageNotContiguous
		}
	}
	return nil
}

// MergePage inserts a fetched history page. The page must be sorted ascending
// and dense; violations are contract errors and mutate nothing.
//
// A page that overlaps or is adjacent to the loaded range (including flagged
// gaps) extends coverage and moves the frontiers. Already-present ids are
// overwritten only when the incoming message carries a newer edit. A page
// that meets no loaded coverage returns MergeDisjoint so the controller can
// discard or re-request; the store never silently creates a hidden hole.
//
// isTail signals that no older messages exist beyond this page.
func (t *Timeline) MergePage(page []Message, isTail bool) (MergeResult, error) {
	if err := validatePage(page); err != nil {
		return MergeIgnored, err
	}
	if len(page) == 0 {
		if isTail {
			t.hasMore = false
			return MergeApplied, nil
		}
		return MergeIgnored, nil
	}

	lo := page[0].ID
	hi := page[len(page)-1].ID

	if !t.loaded {
		t.msgs = append(t.msgs[:0], page...)
		t.rebuildIndex()
		t.loaded = true
		t.oldest, t.newest = lo, hi
		if isTail {
			t.hasMore = false
		}
		return MergeApplied, nil
	}

	// Adjacency against the full loaded range. Interior pages (gap fills)
	// pass this check too, since gaps sit strictly inside the range.
	if hi+1 < t.oldest || lo > t.newest+1 {
		return MergeDisjoint, nil
	}

	changed := t.upsertAll(page)
	if lo < t.oldest {
		t.oldest = lo
		changed = true
	}
	if hi > t.newest {
		t.newest = hi
		changed = true
	}
	t.subtractGap(GapSpan{From: lo, To: hi})
	if isTail && t.hasMore {
		t.hasMore = false
		changed = true
	}
	if !changed {
		return MergeIgnored, nil
	}
	return MergeApplied, nil
}

// MergeLive inserts a single live event.
//
// An id at or below the live edge is an in-place update (newer edit wins,
// delete latches) or a gap fill; an id exactly one past the edge appends; an
// id further ahead appends, advances the edge, and flags the interior as a
// gap — the live edge is never blocked waiting for a fetch, but the gap is
// never pretended away.
func (t *Timeline) MergeLive(m Message) (MergeResult, error) {
	if err := validateMessageID(m.ID); err != nil {
		return MergeIgnored, err
	}

	if !t.loaded {
		t.msgs = append(t.msgs[:0], m)
		t.rebuildIndex()
		t.loaded = true
		t.oldest, t.newest = m.ID, m.ID
		return MergeApplied, nil
	}

	switch {
	case m.ID <= t.newest:
		if i, ok := t.index[m.ID]; ok {
			if !supersedes(m, t.msgs[i]) {
				return MergeIgnored, nil
			}
			t.msgs[i] = applyUpdate(t.msgs[i], m)
			return MergeUpdated, nil
		}
		if m.ID < t.oldest {
			// Below loaded history; backward pagination will pick it up.
			return MergeIgnored, nil
		}
		// Inside a flagged gap: insert and shrink the span.
		t.upsertAll([]Message{m})
		t.subtractGap(GapSpan{From: m.ID, To: m.ID})
		return MergeApplied, nil

	case m.ID == t.newest+1:
		t.msgs = append(t.msgs, m)
		t.index[m.ID] = len(t.msgs) - 1
		t.newest = m.ID
		return MergeApplied, nil

	default:
		gap := GapSpan{From: t.newest + 1, To: m.ID - 1}
		t.gaps = append(t.gaps, gap)
		sort.Slice(t.gaps, func(i, j int) bool { return t.gaps[i].From < t.gaps[j].From })
		t.msgs = append(t.msgs, m)
		t.index[m.ID] = len(t.msgs) - 1
		t.newest = m.ID
		return MergeGapped, nil
	}
}

// upsertAll folds a batch of messages into the buffer and reports whether
// anything changed. The slice stays sorted and the index stays consistent.
func (t *Timeline) upsertAll(batch []Message) bool {
	changed := false
	inserted := false
	for _, m := range batch {
		if i, ok := t.index[m.ID]; ok {
			if supersedes(m, t.msgs[i]) {
				t.msgs[i] = applyUpdate(t.msgs[i], m)
				changed = true
			}
			continue
		}
		t.msgs = append(t.msgs, m)
		inserted = true
		changed = true
	}
	if inserted {
		sort.Slice(t.msgs, func(i, j int) bool { return t.msgs[i].ID < t.msgs[j].ID })
		t.rebuildIndex()
	}
	return changed
}

func (t *Timeline) rebuildIndex() {
	t.index = make(map[MessageID]int, len(t.msgs))
	for i := range t.msgs {
		t.index[t.msgs[i].ID] = i
	}
}

// subtractGap removes the covered range from the flagged gap spans, splitting
// spans that are only partially covered.
func (t *Timeline) subtractGap(covered GapSpan) {
	if len(t.gaps) == 0 {
		return
	}
	next := make([]GapSpan, 0, len(t.gaps))
	for _, g := range t.gaps {
		if g.To < covered.From || g.From > covered.To {
			next = append(next, g)
			continue
		}
		if g.From < covered.From {
			next = append(next, GapSpan{From: g.From, To: covered.From - 1})
		}
		if g.To > covered.To {
			next = append(next, GapSpan{From: covered.To + 1, To: g.To})
		}
	}
	t.gaps = next
}

// indexAtOrBefore returns the position of the newest stored message with
// id <= target, or -1 when everything stored is newer.
func (t *Timeline) indexAtOrBefore(target MessageID) int {
	if i, ok := t.index[target]; ok {
		return i
	}
	// First position with id > target; the anchor sits just before it.
	pos := sort.Search(len(t.msgs), func(i int) bool { return t.msgs[i].ID > target })
	return pos - 1
}

// CheckDense verifies the structural invariant: adjacent stored messages
// never skip an id unless the skipped range is flagged as a gap. Intended
// for tests and debug assertions.
func (t *Timeline) CheckDense() bool {
	for i := 1; i < len(t.msgs); i++ {
		lo := t.msgs[i-1].ID
		hi := t.msgs[i].ID
		if hi == lo+1 {
			continue
		}
		want := GapSpan{From: lo + 1, To: hi - 1}
		flagged := false
		for _, g := range t.gaps {
			if g.From <= want.From && g.To >= want.To {
				flagged = true
				break
			}
		}
		if !flagged {
			return false
		}
	}
	return true
}
