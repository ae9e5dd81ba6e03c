package chat

import "errors"

// Contract violations. These indicate a logic bug in the caller or a broken
// server invariant, never an environmental condition, so they are surfaced
// loudly instead of silently corrected.
var (
	ErrZeroID             = errors.New("message id 0 is reserved")
	ErrIDOverflow         = errors.New("message id overflow")
	ErrPageNotAscending   = errors.New("history page not sorted ascending by id")
	ErrPageNotContiguous  = errors.New("history page skips message ids")
	ErrNegativeHeight     = errors.New("viewport height must not be negative")
	ErrConversationClosed = errors.New("conversation not instantiated")
	ErrUnknownConversation = errors.New("unknown conversation")
)

// ErrHistoryUnavailable marks the recoverable state entered when a page merge
// stays disjoint after one automatic retry. Retry is left to explicit user
// action.
var ErrHistoryUnavailable = errors.New("history temporarily unavailable")

// MergeResult describes what a merge did to a timeline.
type MergeResult int

const (
	// MergeIgnored means the input carried nothing new.
	MergeIgnored MergeResult = iota
	// MergeApplied means messages were inserted or the frontiers moved.
	MergeApplied
	// MergeUpdated means an existing entry was edited or tombstoned in place.
	MergeUpdated
	// MergeDisjoint means a page did not meet any loaded coverage and was
	// discarded. The store never creates a hidden hole.
	MergeDisjoint
	// MergeGapped means a live message landed ahead of the live edge; the
	// interior is flagged as a gap the controller must forward-fill.
	MergeGapped
)

func (r MergeResult) String() string {
	switch r {
	case MergeIgnored:
		return "ignored"
	case MergeApplied:
		return "applied"
	case MergeUpdated:
		return "updated"
	case MergeDisjoint:
		return "disjoint"
	case MergeGapped:
		return "gapped"
	default:
		return "unknown"
	}
}
