package chatui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/skald-im/skald/internal/chat"
)

// renderMessages draws the timeline panel for the open conversation.
func (m *Model) renderMessages(width, height int) string {
	if m.active == 0 {
		return m.theme.MutedStyle().Render("select a conversation and press enter")
	}
	win, err := m.engine.Window(m.active, height)
	if err != nil {
		if errors.Is(err, chat.ErrConversationClosed) {
			return m.theme.MutedStyle().Render("opening…")
		}
		return m.theme.SystemStyle().Render(err.Error())
	}

	var lines []string
	if histErr := m.engine.HistoryErr(m.active); histErr != nil {
		lines = append(lines, m.theme.SystemStyle().Render(
			truncate("couldn't load older messages (press r to retry)", width)))
	} else if win.HasMoreAbove {
		lines = append(lines, m.theme.MutedStyle().Render("…"))
	}

	var prev chat.MessageID
	for _, msg := range win.Messages {
		if prev != 0 && msg.ID > prev+1 {
			lines = append(lines, m.theme.MutedStyle().Render("· fetching missing messages ·"))
		}
		prev = msg.ID
		lines = append(lines, m.renderMessage(msg, width)...)
	}
	if win.HasMoreBelow {
		lines = append(lines, m.theme.MutedStyle().Render("↓ newer messages below"))
	}
	if len(lines) == 0 {
		return m.theme.MutedStyle().Render("no messages yet")
	}

	// Wrapping can produce more lines than rows; keep the bottom of the
	// window so the anchor row stays on screen.
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderMessage(msg chat.Message, width int) []string {
	header := msg.Sender
	if msg.Outgoing {
		header = "you"
	}
	if m.showTimestamps && !msg.Time.IsZero() {
		header += "  " + msg.Time.Local().Format("15:04")
	}
	headerStyle := m.theme.OtherMessageStyle()
	if msg.Outgoing {
		headerStyle = m.theme.OwnMessageStyle()
	}

	if msg.Deleted {
		return []string{
			headerStyle.Render(truncate(header, width)),
			m.theme.SystemStyle().Render("(deleted)"),
		}
	}

	body := msg.Body
	if msg.EditedVersion > 0 {
		body += " (edited)"
	}
	wrapped := wordwrap.String(body, width)
	out := []string{headerStyle.Render(truncate(header, width))}
	for _, line := range strings.Split(wrapped, "\n") {
		out = append(out, m.theme.BaseStyle().Render(line))
	}
	return out
}

// viewAccounts draws the full-screen account picker.
func (m *Model) viewAccounts() string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderStyle().Render(truncate("accounts", m.width)))
	b.WriteByte('\n')
	for i, a := range m.accounts {
		label := a.Label
		if a.ID == m.activeAccount {
			label += " (active)"
		}
		label = truncate(label, m.width-2)
		if i == m.accountSel {
			b.WriteString(m.theme.SelectedStyle().Render("> " + label))
		} else {
			b.WriteString(m.theme.BaseStyle().Render("  " + label))
		}
		b.WriteByte('\n')
	}
	add := "+ add account"
	if m.accountSel == len(m.accounts) {
		b.WriteString(m.theme.SelectedStyle().Render("> " + add))
	} else {
		b.WriteString(m.theme.MutedStyle().Render("  " + add))
	}
	b.WriteByte('\n')
	b.WriteString(m.theme.FooterStyle().Render(truncate(fmt.Sprintf("[%s] j/k move  enter pick  esc back", m.mode), m.width)))
	return b.String()
}
