package chat

import "sort"

// TrimToBudget drops loaded history until at most max messages remain,
// preferring entries farthest from both the live edge and the protected
// viewport. Messages inside the viewport described by protect/height are
// never dropped. Frontiers and gap spans are updated so the structural
// invariant (no silent holes) keeps holding; trimmed history is re-fetchable,
// so hasMoreHistory is re-armed when the oldest frontier moves up.
//
// Returns the number of messages dropped.
func (t *Timeline) TrimToBudget(max int, protect Anchor, height int) int {
	if max <= 0 || len(t.msgs) <= max {
		return 0
	}
	excess := len(t.msgs) - max

	// Viewport indices under the protected anchor, same math as Window.
	top, bottom := t.viewportRange(protect, height)

	if protect.Kind == AnchorBottom || bottom >= len(t.msgs)-excess {
		// Viewport rides the tail (or sits inside what a prefix cut would
		// take): drop from the front only, stopping short of the viewport.
		cut := excess
		if cut > top {
			cut = top
		}
		return t.dropPrefix(cut)
	}

	// Fixed anchor deep in history: keep context above the viewport, keep the
	// tail, and cut the interior between them.
	keep := max - (bottom - top + 1)
	ctx := keep / 2
	tailKeep := keep - ctx

	aStart := top - ctx
	if aStart < 0 {
		tailKeep += -aStart
		aStart = 0
	}
	tailStart := len(t.msgs) - tailKeep
	if tailStart <= bottom+1 {
		// Regions touch; nothing interior to cut, fall back to a prefix cut.
		return t.dropPrefix(minInt(excess, aStart))
	}

	dropped := 0

	// Interior cut becomes an explicit gap between the two kept regions.
	gap := GapSpan{From: t.msgs[bottom].ID + 1, To: t.msgs[tailStart].ID - 1}
	kept := make([]Message, 0, (bottom-aStart+1)+(len(t.msgs)-tailStart))
	kept = append(kept, t.msgs[aStart:bottom+1]...)
	kept = append(kept, t.msgs[tailStart:]...)
	dropped = len(t.msgs) - len(kept) - aStart

	t.msgs = kept
	t.rebuildIndex()
	t.gaps = append(t.gaps, gap)
	t.normalizeGaps()

	if aStart > 0 {
		// The prefix cut happened implicitly above; account for it.
		t.hasMore = true
	}
	t.oldest = t.msgs[0].ID
	t.dropGapsBelow(t.oldest)
	return dropped + aStart
}

// dropPrefix removes the oldest n messages and advances the oldest frontier.
func (t *Timeline) dropPrefix(n int) int {
	if n <= 0 {
		return 0
	}
	if n >= len(t.msgs) {
		n = len(t.msgs) - 1 // never drop the live edge entirely
	}
	t.msgs = append([]Message(nil), t.msgs[n:]...)
	t.rebuildIndex()
	t.oldest = t.msgs[0].ID
	t.hasMore = true
	t.dropGapsBelow(t.oldest)
	return n
}

func (t *Timeline) dropGapsBelow(oldest MessageID) {
	next := t.gaps[:0]
	for _, g := range t.gaps {
		if g.To < oldest {
			continue
		}
		next = append(next, g)
	}
	t.gaps = next
}

// normalizeGaps sorts and merges overlapping or touching spans.
func (t *Timeline) normalizeGaps() {
	if len(t.gaps) < 2 {
		return
	}
	sort.Slice(t.gaps, func(i, j int) bool { return t.gaps[i].From < t.gaps[j].From })
	merged := t.gaps[:1]
	for _, g := range t.gaps[1:] {
		last := &merged[len(merged)-1]
		if g.From <= last.To+1 {
			if g.To > last.To {
				last.To = g.To
			}
			continue
		}
		merged = append(merged, g)
	}
	t.gaps = merged
}

// viewportRange resolves the inclusive index range the viewport occupies.
func (t *Timeline) viewportRange(a Anchor, height int) (int, int) {
	if height <= 0 {
		height = 1
	}
	var bottom int
	switch a.Kind {
	case AnchorBottom:
		bottom = len(t.msgs) - 1
	case AnchorFixed:
		bottom = t.indexAtOrBefore(a.ID)
		if bottom < 0 {
			bottom = 0
		}
		bottom += a.Offset
		if bottom > len(t.msgs)-1 {
			bottom = len(t.msgs) - 1
		}
		if bottom < 0 {
			bottom = 0
		}
	}
	top := bottom - height + 1
	if top < 0 {
		top = 0
	}
	return top, bottom
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
