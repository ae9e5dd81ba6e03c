// Package chatui is the terminal client: a two-panel, vim-flavored view over
// the sync engine, built on bubbletea.
package chatui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/skald-im/skald/internal/chat"
	"github.com/skald-im/skald/internal/chatui/styles"
)

// Mode is the input mode, vim style.
type Mode int

const (
	ModeNormal Mode = iota
	ModeInsert
	ModeSearch
	ModeAccounts
)

func (m Mode) String() string {
	switch m {
	case ModeInsert:
		return "INSERT"
	case ModeSearch:
		return "SEARCH"
	case ModeAccounts:
		return "ACCOUNTS"
	default:
		return "NORMAL"
	}
}

type panel int

const (
	panelChats panel = iota
	panelMessages
)

// AccountEntry is one row in the account picker.
type AccountEntry struct {
	ID    string
	Label string
}

// Config wires the model to its collaborators.
type Config struct {
	Engine         *chat.Engine
	Theme          string
	ShowTimestamps bool
	Accounts       []AccountEntry
	ActiveAccount  string
	Logger         zerolog.Logger

	// OnOpenConversation persists the last-open conversation. May be nil.
	OnOpenConversation func(id chat.ConversationID, title string)
}

// Model is the root bubbletea model.
type Model struct {
	engine *chat.Engine
	theme  styles.Theme
	log    zerolog.Logger
	ctx    context.Context

	showTimestamps bool

	mode  Mode
	focus panel

	width  int
	height int

	convs    []chat.ConversationMeta
	selected int
	filter   string

	active      chat.ConversationID
	activeTitle string

	input  string
	status string

	accounts      []AccountEntry
	activeAccount string
	accountSel    int

	// Set when the user picks another account or asks to add one; the caller
	// inspects these after Run returns and restarts against the new account.
	requestedAccount string
	requestedAdd     bool

	onOpen func(chat.ConversationID, string)
}

// NewModel builds the root model over a running engine.
func NewModel(cfg Config) *Model {
	return &Model{
		engine:         cfg.Engine,
		theme:          styles.Lookup(cfg.Theme),
		log:            cfg.Logger,
		ctx:            context.Background(),
		showTimestamps: cfg.ShowTimestamps,
		accounts:       cfg.Accounts,
		activeAccount:  cfg.ActiveAccount,
		onOpen:         cfg.OnOpenConversation,
	}
}

// RequestedAccount reports the account the user switched to, if any.
func (m *Model) RequestedAccount() (string, bool) {
	return m.requestedAccount, m.requestedAccount != ""
}

// RequestedAddAccount reports whether the user asked to add an account.
func (m *Model) RequestedAddAccount() bool {
	return m.requestedAdd
}

type engineUpdateMsg struct{}

type sendResultMsg struct {
	err error
}

// waitForUpdateCmd parks on the engine's coalesced wake channel and converts
// each wake into a redraw.
func (m *Model) waitForUpdateCmd() tea.Cmd {
	return func() tea.Msg {
		<-m.engine.Updates()
		return engineUpdateMsg{}
	}
}

func (m *Model) Init() tea.Cmd {
	m.refresh()
	return m.waitForUpdateCmd()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		if m.active != 0 {
			if err := m.engine.OnResize(m.active, m.messageRows()); err != nil {
				m.log.Debug().Err(err).Msg("resize ignored")
			}
		}
		return m, nil
	case engineUpdateMsg:
		m.refresh()
		return m, m.waitForUpdateCmd()
	case sendResultMsg:
		if typed.err != nil {
			m.status = "send failed: " + typed.err.Error()
			m.log.Warn().Err(typed.err).Msg("send failed")
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.mode {
	case ModeInsert:
		return m.handleInsertKey(msg)
	case ModeSearch:
		return m.handleSearchKey(msg)
	case ModeAccounts:
		return m.handleAccountsKey(msg)
	default:
		return m.handleNormalKey(msg)
	}
}

func (m *Model) handleNormalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab":
		m.toggleFocus()
	case "h":
		m.focus = panelChats
	case "l":
		if m.active != 0 {
			m.focus = panelMessages
		}
	case "j":
		m.moveDown(1)
	case "k":
		m.moveUp(1)
	case "ctrl+d":
		if m.focus == panelMessages {
			m.scroll(false, m.messageRows()/2)
		}
	case "ctrl+u":
		if m.focus == panelMessages {
			m.scroll(true, m.messageRows()/2)
		}
	case "g":
		if m.focus == panelMessages {
			m.scroll(true, 1<<30)
		}
	case "G":
		if m.focus == panelMessages && m.active != 0 {
			// Return to the live edge and consume the unread count.
			m.scroll(false, 1<<30)
			m.engine.MarkRead(m.ctx, m.active)
		}
	case "enter":
		if m.focus == panelChats {
			m.openSelected()
		}
	case "i":
		if m.active != 0 {
			m.mode = ModeInsert
		}
	case "/":
		m.mode = ModeSearch
		m.focus = panelChats
		m.filter = ""
		m.selected = 0
	case "a":
		if len(m.accounts) > 0 {
			m.mode = ModeAccounts
			m.accountSel = 0
		}
	case "r":
		if m.active != 0 {
			m.engine.RetryHistory(m.ctx, m.active)
		}
	case "esc":
		m.focus = panelChats
	}
	return m, nil
}

func (m *Model) handleInsertKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeNormal
	case tea.KeyEnter:
		body := strings.TrimSpace(m.input)
		if body == "" {
			return m, nil
		}
		m.input = ""
		id := m.active
		return m, func() tea.Msg {
			return sendResultMsg{err: m.engine.Send(m.ctx, id, body)}
		}
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			runes := []rune(m.input)
			m.input = string(runes[:len(runes)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeNormal
		m.filter = ""
		m.selected = 0
	case tea.KeyEnter:
		m.mode = ModeNormal
		m.openSelected()
	case tea.KeyBackspace:
		if len(m.filter) > 0 {
			runes := []rune(m.filter)
			m.filter = string(runes[:len(runes)-1])
		}
		m.selected = 0
	case tea.KeySpace:
		m.filter += " "
		m.selected = 0
	case tea.KeyRunes:
		m.filter += string(msg.Runes)
		m.selected = 0
	default:
		switch msg.String() {
		case "down", "ctrl+n":
			m.moveSelection(1)
		case "up", "ctrl+p":
			m.moveSelection(-1)
		}
	}
	return m, nil
}

func (m *Model) handleAccountsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := len(m.accounts) + 1 // trailing "add account" row
	switch msg.String() {
	case "esc", "a":
		m.mode = ModeNormal
	case "j", "down":
		if m.accountSel < rows-1 {
			m.accountSel++
		}
	case "k", "up":
		if m.accountSel > 0 {
			m.accountSel--
		}
	case "enter":
		if m.accountSel == len(m.accounts) {
			m.requestedAdd = true
			return m, tea.Quit
		}
		picked := m.accounts[m.accountSel]
		if picked.ID == m.activeAccount {
			m.mode = ModeNormal
			return m, nil
		}
		m.requestedAccount = picked.ID
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) toggleFocus() {
	if m.focus == panelChats && m.active != 0 {
		m.focus = panelMessages
	} else {
		m.focus = panelChats
	}
}

func (m *Model) moveDown(n int) {
	if m.focus == panelChats {
		m.moveSelection(n)
		return
	}
	m.scroll(false, n)
}

func (m *Model) moveUp(n int) {
	if m.focus == panelChats {
		m.moveSelection(-n)
		return
	}
	m.scroll(true, n)
}

func (m *Model) moveSelection(delta int) {
	list := m.filtered()
	if len(list) == 0 {
		m.selected = 0
		return
	}
	m.selected += delta
	if m.selected < 0 {
		m.selected = 0
	}
	if m.selected > len(list)-1 {
		m.selected = len(list) - 1
	}
}

func (m *Model) scroll(up bool, amount int) {
	if m.active == 0 || amount <= 0 {
		return
	}
	m.engine.OnScroll(m.ctx, m.active, up, amount)
}

func (m *Model) openSelected() {
	list := m.filtered()
	if m.selected < 0 || m.selected >= len(list) {
		return
	}
	meta := list[m.selected]
	m.active = meta.ID
	m.activeTitle = meta.Title
	m.engine.Open(m.ctx, meta.ID)
	if err := m.engine.OnResize(meta.ID, m.messageRows()); err != nil {
		m.log.Debug().Err(err).Msg("resize ignored")
	}
	m.engine.MarkRead(m.ctx, meta.ID)
	m.focus = panelMessages
	if m.onOpen != nil {
		m.onOpen(meta.ID, meta.Title)
	}
}

// refresh pulls a fresh conversation snapshot and keeps the selection on a
// valid row.
func (m *Model) refresh() {
	m.convs = m.engine.Conversations()
	if n := len(m.filtered()); m.selected >= n && n > 0 {
		m.selected = n - 1
	}
}

// filtered applies the search query to the conversation list.
func (m *Model) filtered() []chat.ConversationMeta {
	if m.filter == "" {
		return m.convs
	}
	needle := strings.ToLower(m.filter)
	out := make([]chat.ConversationMeta, 0, len(m.convs))
	for _, c := range m.convs {
		if strings.Contains(strings.ToLower(c.Title), needle) {
			out = append(out, c)
		}
	}
	return out
}

// messageRows is the viewport height, in message rows, of the messages panel.
func (m *Model) messageRows() int {
	h := m.height - chromeRows
	if h < 1 {
		h = 1
	}
	return h
}

const chromeRows = 4 // header, footer, panel borders

func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	if m.mode == ModeAccounts {
		return m.viewAccounts()
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 2 {
		contentHeight = 2
	}

	chatsWidth := m.width / 3
	if chatsWidth > 36 {
		chatsWidth = 36
	}
	if chatsWidth < 16 {
		chatsWidth = 16
	}
	messagesWidth := m.width - chatsWidth

	chats := m.theme.PaneBorder(m.focus == panelChats).
		Width(chatsWidth - 2).
		Height(contentHeight - 2).
		Render(m.renderConversations(chatsWidth-2, contentHeight-2))
	messages := m.theme.PaneBorder(m.focus == panelMessages).
		Width(messagesWidth - 2).
		Height(contentHeight - 2).
		Render(m.renderMessages(messagesWidth-2, contentHeight-2))

	body := lipgloss.JoinHorizontal(lipgloss.Top, chats, messages)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) renderHeader() string {
	title := "skald"
	if m.activeAccount != "" {
		for _, a := range m.accounts {
			if a.ID == m.activeAccount {
				title += "  " + a.Label
				break
			}
		}
	}
	if m.activeTitle != "" {
		title += "  |  " + m.activeTitle
	}
	return m.theme.HeaderStyle().Render(truncate(title, m.width))
}

func (m *Model) renderFooter() string {
	var line string
	switch m.mode {
	case ModeInsert:
		line = "[INSERT] > " + m.input + "▌"
	case ModeSearch:
		line = "[SEARCH] /" + m.filter + "  esc clear  enter open"
	default:
		line = "[NORMAL] j/k move  enter open  i write  / search  a accounts  q quit"
	}
	if m.status != "" {
		line += "  " + m.status
	}
	return m.theme.FooterStyle().Render(truncate(line, m.width))
}

// Run starts the program over the model in the alternate screen.
func Run(m *Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
