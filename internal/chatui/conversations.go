package chatui

import (
	"fmt"
	"strings"
)

// renderConversations draws the chats panel: one row per conversation with
// an unread badge, the selected row highlighted.
func (m *Model) renderConversations(width, height int) string {
	list := m.filtered()
	if len(list) == 0 {
		if m.filter != "" {
			return m.theme.MutedStyle().Render("no matches")
		}
		return m.theme.MutedStyle().Render("no conversations")
	}

	// Keep the selection visible on small panels.
	first := 0
	if m.selected >= height {
		first = m.selected - height + 1
	}

	var b strings.Builder
	for i := first; i < len(list) && i-first < height; i++ {
		c := list[i]
		label := c.Title
		if label == "" {
			label = fmt.Sprintf("conversation %d", c.ID)
		}
		if c.Unread > 0 {
			label = fmt.Sprintf("%s (%d)", label, c.Unread)
		}
		label = truncate(label, width)
		switch {
		case i == m.selected:
			label = m.theme.SelectedStyle().Render(label)
		case c.Unread > 0:
			label = m.theme.AccentStyle().Render(label)
		case c.ID == m.active:
			label = m.theme.BaseStyle().Render(label)
		default:
			label = m.theme.MutedStyle().Render(label)
		}
		if i > first {
			b.WriteByte('\n')
		}
		b.WriteString(label)
	}
	return b.String()
}
