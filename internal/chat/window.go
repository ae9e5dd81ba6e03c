package chat

// AnchorKind distinguishes the two viewport modes.
type AnchorKind int

const (
	// AnchorBottom keeps the bottom of the view pinned to the newest message.
	AnchorBottom AnchorKind = iota
	// AnchorFixed pins the view to a historical message.
	AnchorFixed
)

func (k AnchorKind) String() string {
	if k == AnchorBottom {
		return "bottom"
	}
	return "fixed"
}

// Anchor is the reference point the visible window is computed relative to.
// For AnchorFixed, ID names the message at the bottom row of the viewport and
// Offset shifts the bottom row that many messages below the anchor (used to
// center jump targets).
type Anchor struct {
	Kind   AnchorKind
	ID     MessageID
	Offset int
}

// BottomAnchor returns the live-edge anchor.
func BottomAnchor() Anchor {
	return Anchor{Kind: AnchorBottom}
}

// FixedAnchor pins the viewport bottom at id, shifted down by offset rows.
func FixedAnchor(id MessageID, offset int) Anchor {
	return Anchor{Kind: AnchorFixed, ID: id, Offset: offset}
}

// Window is a snapshot of what the viewport should show. It is a pure read:
// the messages are copies and holding one never blocks a merge.
type Window struct {
	Messages []Message
	// HasMoreAbove is true when scrolled content or unfetched history exists
	// above the top row.
	HasMoreAbove bool
	// HasMoreBelow is true when loaded messages exist below the bottom row.
	HasMoreBelow bool
	Anchor       Anchor
}

// Window computes the visible slice for the given anchor and viewport height.
// It never returns more than height messages and never mutates the timeline.
// Cost is O(height) plus an index lookup, not a scan of the whole store.
func (t *Timeline) Window(a Anchor, height int) (Window, error) {
	if height < 0 {
		return Window{}, ErrNegativeHeight
	}
	w := Window{Anchor: a}
	if height == 0 || len(t.msgs) == 0 {
		w.HasMoreAbove = t.hasMore
		return w, nil
	}

	var bottom int // inclusive index of the bottom row
	switch a.Kind {
	case AnchorBottom:
		bottom = len(t.msgs) - 1
	case AnchorFixed:
		bottom = t.indexAtOrBefore(a.ID)
		if bottom < 0 {
			// Anchor precedes everything loaded (trimmed or never fetched);
			// clamp to the oldest loaded message.
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

	w.Messages = make([]Message, bottom-top+1)
	copy(w.Messages, t.msgs[top:bottom+1])
	w.HasMoreAbove = top > 0 || t.hasMore
	w.HasMoreBelow = bottom < len(t.msgs)-1
	return w, nil
}
