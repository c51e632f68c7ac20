// ABOUTME: Terminal chat interface for Cenly built on bubbletea
// ABOUTME: Questions run asynchronously so the spinner keeps moving while the model answers
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harper/cenly/internal/core"
	"github.com/harper/cenly/internal/models"
)

// ChatPort is the subset of the assistant the terminal UI drives
type ChatPort interface {
	Respond(ctx context.Context, prompt, threadID string) (*core.Reply, error)
	History(ctx context.Context, threadID string) ([]models.Message, error)
}

// Starters are offered while a session is empty
var Starters = []string{
	"What's our sales trend?",
	"Analyze our financial performance",
	"Show me our key business metrics",
	"What insights can you provide?",
}

type replyMsg struct {
	prompt string
	reply  *core.Reply
	err    error
}

type historyMsg struct {
	messages []models.Message
	err      error
}

// Model is the Bubble Tea model for the chat screen
type Model struct {
	ctx      context.Context
	chat     ChatPort
	hint     func(error) string
	session  string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	messages []models.Message
	sources  []string
	status   string
	waiting  bool
	ready    bool
}

// New creates a chat model for session. hint may be nil.
func New(ctx context.Context, chat ChatPort, session string, hint func(error) string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your business data"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	if hint == nil {
		hint = func(error) string { return "" }
	}
	if session == "" {
		session = models.NewSessionID(time.Now())
	}
	return Model{
		ctx:      ctx,
		chat:     chat,
		hint:     hint,
		session:  session,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "enter to send · /new starts a session · esc quits",
	}
}

// Run starts the program and blocks until the user quits
func Run(ctx context.Context, chat ChatPort, session string, hint func(error) string) error {
	p := tea.NewProgram(New(ctx, chat, session, hint), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Session returns the active session ID
func (m Model) Session() string { return m.session }

// Init blinks the cursor and loads the stored history
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadHistory())
}

// Update handles input, window and async result events
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := transcriptStyle.GetFrameSize()
		reserved := 4 + fh
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case historyMsg:
		if msg.err != nil {
			m.status = "Could not load history: " + msg.err.Error()
		} else {
			m.messages = msg.messages
		}
		m.refresh()
		return m, nil

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = errorStyle.Render("Error: " + msg.err.Error())
			if h := m.hint(msg.err); h != "" {
				m.status += "\n" + hintStyle.Render(h)
			}
			m.input.SetValue(msg.prompt)
			m.refresh()
			return m, nil
		}
		m.messages = append(m.messages,
			models.NewMessage(models.RoleHuman, msg.prompt),
			models.NewMessage(models.RoleAI, msg.reply.Answer))
		m.sources = m.sources[:0]
		for _, r := range msg.reply.Sources {
			m.sources = append(m.sources, r.Chunk.Label())
		}
		m.status = fmt.Sprintf("%d messages in %s", len(m.messages), m.session)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	if q == "" || m.waiting {
		return m, nil
	}
	m.input.SetValue("")

	if q == "/new" {
		m.session = models.NewSessionID(time.Now())
		m.messages = nil
		m.sources = nil
		m.status = "Started " + m.session
		m.refresh()
		return m, nil
	}

	m.waiting = true
	m.status = "Thinking..."
	return m, tea.Batch(m.spinner.Tick, m.ask(q))
}

func (m Model) ask(prompt string) tea.Cmd {
	ctx, chat, session := m.ctx, m.chat, m.session
	return func() tea.Msg {
		reply, err := chat.Respond(ctx, prompt, session)
		return replyMsg{prompt: prompt, reply: reply, err: err}
	}
}

func (m Model) loadHistory() tea.Cmd {
	ctx, chat, session := m.ctx, m.chat, m.session
	return func() tea.Msg {
		msgs, err := chat.History(ctx, session)
		return historyMsg{messages: msgs, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m Model) transcript() string {
	width := max(20, m.viewport.Width-2)
	if len(m.messages) == 0 {
		var b strings.Builder
		b.WriteString(mutedStyle.Render("Try one of these:"))
		for _, s := range Starters {
			b.WriteString("\n  • " + s)
		}
		return b.String()
	}

	blocks := make([]string, 0, len(m.messages)+1)
	for _, msg := range m.messages {
		switch msg.Role {
		case models.RoleHuman:
			blocks = append(blocks, humanStyle.Render("You")+"\n"+lipgloss.NewStyle().Width(width).Render(msg.Content))
		case models.RoleAI:
			blocks = append(blocks, accentStyle.Render("Cenly")+"\n"+lipgloss.NewStyle().Width(width).Render(msg.Content))
		}
	}
	if len(m.sources) > 0 {
		blocks = append(blocks, mutedStyle.Render("Sources: "+strings.Join(dedupe(m.sources), ", ")))
	}
	return strings.Join(blocks, "\n\n")
}

// View renders the header, transcript, input and status line
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Cenly") + " " + mutedStyle.Render(m.session)
	status := m.status
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + transcriptStyle.Render(m.viewport.View()) + "\n" + m.input.View() + "\n" + status
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	accentStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	humanStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
