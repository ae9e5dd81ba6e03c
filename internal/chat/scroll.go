package chat

// ScrollState tracks, per conversation, the anchor mode and the viewport
// height supplied by the render collaborator.
//
// Transitions:
//   - a live merge while at Bottom recomputes the window pinned to the newest
//     rows (the anchor itself does not change);
//   - an upward scroll at Bottom moves to Fixed, anchored at the message that
//     lands on the bottom row after the scroll;
//   - a downward scroll that reaches the live edge returns to Bottom;
//   - opening a conversation starts at Bottom;
//   - a jump to a specific message centers it under a Fixed anchor;
//   - a resize is a forced recompute under the current anchor, never a reset.
type ScrollState struct {
	anchor Anchor
	height int
}

// NewScrollState starts at the live edge with an unknown viewport height.
func NewScrollState() *ScrollState {
	return &ScrollState{anchor: BottomAnchor()}
}

func (s *ScrollState) Anchor() Anchor { return s.anchor }
func (s *ScrollState) Height() int    { return s.height }

// SetHeight records the viewport height on open or terminal resize. The
// anchor is deliberately left alone.
func (s *ScrollState) SetHeight(h int) error {
	if h < 0 {
		return ErrNegativeHeight
	}
	s.height = h
	return nil
}

// ScrollUp moves the view n messages toward history. At Bottom it transitions
// to a Fixed anchor; already-Fixed anchors move further up. The timeline is
// consulted for positions only, never mutated.
func (s *ScrollState) ScrollUp(t *Timeline, n int) {
	if n <= 0 || t.Len() == 0 {
		return
	}
	var bottom int
	switch s.anchor.Kind {
	case AnchorBottom:
		bottom = t.Len() - 1
	case AnchorFixed:
		bottom = t.indexAtOrBefore(s.anchor.ID) + s.anchor.Offset
		if bottom > t.Len()-1 {
			bottom = t.Len() - 1
		}
	}
	bottom -= n
	if bottom < 0 {
		bottom = 0
	}
	s.anchor = FixedAnchor(t.msgs[bottom].ID, 0)
}

// ScrollDown moves the view n messages toward the live edge. Reaching the
// newest loaded message returns the anchor to Bottom.
func (s *ScrollState) ScrollDown(t *Timeline, n int) {
	if n <= 0 || s.anchor.Kind == AnchorBottom || t.Len() == 0 {
		return
	}
	bottom := t.indexAtOrBefore(s.anchor.ID) + s.anchor.Offset + n
	if bottom >= t.Len()-1 {
		s.anchor = BottomAnchor()
		return
	}
	if bottom < 0 {
		bottom = 0
	}
	s.anchor = FixedAnchor(t.msgs[bottom].ID, 0)
}

// JumpTo anchors the viewport so the target message sits near the center.
func (s *ScrollState) JumpTo(t *Timeline, target MessageID) {
	offset := s.height / 2
	s.anchor = FixedAnchor(target, offset)
	// Jumping to the live edge is just Bottom.
	if t.Len() > 0 {
		idx := t.indexAtOrBefore(target)
		if idx >= 0 && idx+offset >= t.Len()-1 {
			s.anchor = BottomAnchor()
		}
	}
}

// Reset returns to the live edge, used when reopening an evicted conversation.
func (s *ScrollState) Reset() {
	s.anchor = BottomAnchor()
}
