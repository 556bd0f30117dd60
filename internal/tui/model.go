package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pdf-chat-rag/internal/models"
	"pdf-chat-rag/internal/session"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const uploadCommand = "/upload"

// ChatPort is the TUI-facing subset of the application.
type ChatPort interface {
	Upload(ctx context.Context, sess *session.Session, name string, r io.Reader) (*models.UploadResult, error)
	ResolvePending(ctx context.Context, sess *session.Session) (string, error)
}

type answerMsg struct {
	err error
}

type uploadMsg struct {
	result *models.UploadResult
	err    error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	port     ChatPort
	sess     *session.Session
	input    textinput.Model
	viewport viewport.Model
	status   string
	busy     bool
	ready    bool
}

// New creates a chat model bound to sess.
func New(ctx context.Context, port ChatPort, sess *session.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /upload <path.pdf>"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		port:     port,
		sess:     sess,
		input:    ti,
		viewport: vp,
		status:   "Upload a PDF with /upload <path>, then ask about it.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := historyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case answerMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = "Ready."
		}
		m.refresh()
		return m, nil

	case uploadMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.status = "Upload failed: " + msg.err.Error()
		case msg.result.Duplicate:
			m.status = fmt.Sprintf("%s was already indexed.", msg.result.FileName)
		default:
			m.status = fmt.Sprintf("Indexed %s: %d pages, %d chunks.", msg.result.FileName, msg.result.Pages, msg.result.Chunks)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" {
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}

	if path, ok := strings.CutPrefix(line, uploadCommand); ok {
		path = strings.TrimSpace(path)
		if path == "" {
			m.status = "Usage: /upload <path.pdf>"
			return m, nil
		}
		if m.busy {
			m.status = "Still indexing the previous upload."
			return m, nil
		}
		m.input.Reset()
		m.busy = true
		m.status = "Indexing " + filepath.Base(path) + "..."
		return m, m.upload(path)
	}

	if err := m.sess.Submit(line); err != nil {
		if errors.Is(err, session.ErrQuestionPending) {
			m.status = "Still thinking about the previous question."
		} else {
			m.status = "Error: " + err.Error()
		}
		return m, nil
	}

	m.input.Reset()
	m.status = "Thinking..."
	m.refresh()
	return m, m.answer()
}

func (m Model) answer() tea.Cmd {
	ctx, port, sess := m.ctx, m.port, m.sess
	return func() tea.Msg {
		_, err := port.ResolvePending(ctx, sess)
		return answerMsg{err: err}
	}
}

func (m Model) upload(path string) tea.Cmd {
	ctx, port, sess := m.ctx, m.port, m.sess
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return uploadMsg{err: err}
		}
		defer f.Close()

		res, err := port.Upload(ctx, sess, filepath.Base(path), f)
		return uploadMsg{result: res, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Chat with PDF")
	history := historyBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + history + "\n" + input + "\n" + status
}

func (m Model) renderHistory() string {
	msgs := m.sess.Messages()
	if len(msgs) == 0 {
		return "No messages yet."
	}

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Role {
		case models.RoleUser:
			b.WriteString(userStyle.Render("You: "))
		default:
			b.WriteString(assistantStyle.Render("Assistant: "))
		}
		b.WriteString(msg.Content)
	}
	if _, pending := m.sess.PendingQuestion(); pending {
		b.WriteString("\n\n" + assistantStyle.Render("Assistant: ") + thinkingStyle.Render("thinking..."))
	}
	return b.String()
}

var (
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	thinkingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)
