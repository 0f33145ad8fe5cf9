// Package tui renders a chat widget in the terminal with bubbletea.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/chat-popup/backend/internal/model/chat"
	"github.com/zhouzirui/chat-popup/backend/internal/service/widget"
)

const (
	popupMaxWidth    = 60
	bodyMaxHeight    = 14
	typingIndicator  = "• • •"
	shellTitle       = "Chat Popup Demo"
	shellIntro       = "Press ctrl+t to chat with the assistant. The demo keeps conversations locally and sends playful automated replies so you can see the full flow."
	eventFeedSize    = 16
	inputPlaceholder = "Write a message..."
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5"))
	introStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF"))
	bubbleStyle   = lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("62")).Foreground(lipgloss.Color("#FFFFFF"))
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	popupStyle    = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
	botStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C7D2FE"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

type eventMsg widget.Event

// Model is the bubbletea model for one mounted widget.
type Model struct {
	widget *widget.Widget
	feed   *widget.Feed
	keys   keyMap

	state    chat.State
	input    textinput.Model
	viewport viewport.Model
	width    int
	height   int
}

// New builds a model rendering w. Call Close when the program exits.
func New(w *widget.Widget) Model {
	input := textinput.New()
	input.Placeholder = inputPlaceholder
	input.Prompt = "› "
	input.Focus()

	m := Model{
		widget:   w,
		feed:     widget.NewFeed(w, eventFeedSize),
		keys:     defaultKeyMap(),
		state:    w.Snapshot(),
		input:    input,
		viewport: viewport.New(popupMaxWidth-4, bodyMaxHeight),
		width:    80,
		height:   24,
	}
	m.refresh(true)
	return m
}

// Close stops listening to the widget.
func (m Model) Close() {
	m.feed.Close()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForEvent())
}

func (m Model) waitForEvent() tea.Cmd {
	feed := m.feed
	return func() tea.Msg {
		return eventMsg(<-feed.Events())
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refresh(true)
		return m, nil

	case eventMsg:
		return m.handleEvent(widget.Event(msg))

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleEvent(ev widget.Event) (tea.Model, tea.Cmd) {
	if ev.Kind == widget.EventClosed {
		return m, tea.Quit
	}
	if ev.State.Version < m.state.Version {
		return m, m.waitForEvent()
	}

	m.state = ev.State
	if ev.Kind == widget.EventMessage && m.state.Draft == "" {
		m.input.Reset()
	}
	m.refresh(ev.ScrollToLatest)
	return m, m.waitForEvent()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		m.widget.TogglePopup()
		return m, nil

	case key.Matches(msg, m.keys.Close):
		if m.state.IsOpen {
			m.widget.TogglePopup()
		}
		return m, nil
	}

	if !m.state.IsOpen {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.LineBreak):
		// single-line input: a modified Enter is not a send and inserts nothing
		m.widget.HandleKey(widget.KeyEvent{Key: widget.KeyEnter, Shift: true})
		return m, nil

	case key.Matches(msg, m.keys.Send):
		m.widget.SetDraft(m.input.Value())
		if res := m.widget.HandleKey(widget.KeyEvent{Key: widget.KeyEnter}); res.Sent {
			m.input.Reset()
		}
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDn):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.widget.SetDraft(m.input.Value())
	return m, cmd
}

func (m *Model) resize() {
	width := min(popupMaxWidth, max(m.width-4, 20))
	height := min(bodyMaxHeight, max(m.height-14, 3))
	m.viewport.Width = width - 4
	m.viewport.Height = height
	m.input.Width = width - 8
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh(scrollToLatest bool) {
	m.viewport.SetContent(renderTranscript(m.state, m.viewport.Width))
	if scrollToLatest {
		m.viewport.GotoBottom()
	}
}

func renderTranscript(state chat.State, width int) string {
	lines := make([]string, 0, len(state.Messages)+1)
	for _, msg := range state.Messages {
		lines = append(lines, renderMessage(msg, width))
	}
	if state.IsTyping {
		lines = append(lines, botStyle.Render(typingIndicator))
	}
	return strings.Join(lines, "\n")
}

func renderMessage(msg chat.Message, width int) string {
	style := botStyle
	align := lipgloss.Left
	if msg.Author == chat.AuthorUser {
		style = userStyle
		align = lipgloss.Right
	}

	block := lipgloss.JoinVertical(align,
		style.Render(msg.Text),
		timestampStyle.Render(msg.Timestamp),
	)
	return lipgloss.PlaceHorizontal(width, align, lipgloss.NewStyle().MaxWidth(width).Render(block))
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(shellTitle))
	b.WriteString("\n\n")
	b.WriteString(introStyle.Width(max(m.width-2, 20)).Render(shellIntro))
	b.WriteString("\n\n")

	if !m.state.IsOpen {
		b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Right, bubbleStyle.Render("💬 ctrl+t")))
		return b.String()
	}

	p := m.widget.Persona()
	header := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(p.Name), subtitleStyle.Render(p.Subtitle))
	popup := popupStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		m.viewport.View(),
		"",
		m.input.View(),
	))
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Right, popup))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send • esc close • pgup/pgdn scroll • ctrl+c quit"))
	return b.String()
}
