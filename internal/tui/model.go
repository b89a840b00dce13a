package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"groundchat/internal/domain"
)

// ChatPort is the TUI-facing subset of the chat service.
type ChatPort interface {
	SendMessage(ctx context.Context, sessionID, userText string, history []domain.Turn) ([]domain.Turn, string, error)
}

// UnavailableMessage is shown when the model could not be reached, in place
// of any answer.
const UnavailableMessage = "Service unavailable: the language model could not be reached. Please try again."

// replyMsg carries the result of one SendMessage call.
type replyMsg struct {
	history []domain.Turn
	input   string
	err     error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service   ChatPort
	sessionID string
	ctx       context.Context

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	history []domain.Turn
	status  string
	summary string
	busy    bool
	ready   bool
}

// New creates a chat model bound to one session. summary describes the
// loaded corpus.
func New(ctx context.Context, service ChatPort, sessionID, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		service:   service,
		sessionID: sessionID,
		ctx:       ctx,
		input:     ti,
		viewport:  viewport.New(0, 0),
		spinner:   sp,
		summary:   summary,
		status:    "Ready. Ctrl+C to quit.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, input, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil
	case replyMsg:
		m.busy = false
		m.input.SetValue(msg.input)
		switch {
		case msg.err == nil:
			m.history = msg.history
			m.status = "Ready."
		case domain.IsTransient(msg.err):
			m.status = UnavailableMessage
		default:
			m.status = "Error: " + msg.err.Error()
		}
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Thinking..."
			m.input.SetValue("")
			return m, tea.Batch(m.send(q), m.spinner.Tick)
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send(text string) tea.Cmd {
	history := m.history
	return func() tea.Msg {
		h, input, err := m.service.SendMessage(m.ctx, m.sessionID, text, history)
		return replyMsg{history: h, input: input, err: err}
	}
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Grounded Chat")
	summary := subtleStyle.Render(truncate(m.summary, m.viewport.Width))
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" + chatBoxStyle.Render(m.viewport.View()) + "\n" + queryBoxStyle.Render(m.input.View()) + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderHistory(m.history, m.viewport.Width))
	m.viewport.GotoBottom()
}

func renderHistory(history []domain.Turn, width int) string {
	if len(history) == 0 {
		return subtleStyle.Render("No messages yet.")
	}
	wrap := lipgloss.NewStyle().Width(max(10, width-2))
	var parts []string
	for _, t := range history {
		if t.Role == domain.RoleUser {
			parts = append(parts, userStyle.Render("You")+"\n"+wrap.Render(t.Content))
			continue
		}
		parts = append(parts, assistantStyle.Render("Assistant")+"\n"+wrap.Render(colourMarker(t.Content)))
	}
	return strings.Join(parts, "\n\n")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:max(0, width-1)]) + "…"
}

// colourMarker highlights the provenance marker at the end of an answer.
func colourMarker(content string) string {
	switch {
	case strings.HasSuffix(content, domain.GroundedMarker):
		return strings.TrimSuffix(content, domain.GroundedMarker) + groundedStyle.Render(domain.GroundedMarker)
	case strings.HasSuffix(content, domain.NotFoundMarker):
		return strings.TrimSuffix(content, domain.NotFoundMarker) + notFoundStyle.Render(domain.NotFoundMarker)
	}
	return content
}

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	subtleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	groundedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	notFoundStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)
