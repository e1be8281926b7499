package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ChatSender is the part of ChatSession the TUI drives.
type ChatSender interface {
	Send(ctx context.Context, prompt string) (Reply, error)
}

type replyMsg struct {
	prompt string
	reply  Reply
	err    error
}

// ChatModel is the Bubble Tea model for guided mode.
type ChatModel struct {
	ctx        context.Context
	session    ChatSender
	input      textinput.Model
	viewport   viewport.Model
	transcript []string
	header     string
	status     string
	waiting    bool
	ready      bool
}

func NewChatModel(ctx context.Context, session ChatSender, header string) ChatModel {
	ti := textinput.New()
	ti.Prompt = "You: "
	ti.Placeholder = "Ask something, or type exit"
	ti.Focus()
	ti.CharLimit = 0

	return ChatModel{
		ctx:      ctx,
		session:  session,
		input:    ti,
		viewport: viewport.New(0, 0),
		header:   header,
		status:   "Type 'exit' to quit.",
	}
}

func (m ChatModel) Init() tea.Cmd { return textinput.Blink }

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.transcript = append(m.transcript, errorStyle.Render("SpeedChaser AI: "+msg.reply.Text))
		} else {
			m.status = sourcesLine(msg.reply.Sources)
			m.transcript = append(m.transcript, assistantStyle.Render("SpeedChaser AI:")+"\n"+msg.reply.Text)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			prompt := strings.TrimSpace(m.input.Value())
			if prompt == "" || m.waiting {
				return m, nil
			}
			if strings.EqualFold(prompt, "exit") {
				return m, tea.Quit
			}
			m.input.SetValue("")
			m.waiting = true
			m.status = "Thinking..."
			m.transcript = append(m.transcript, userStyle.Render("You:")+" "+prompt)
			m.refresh()
			return m, m.send(prompt)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ChatModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render(m.header)
	status := statusStyle.Render(m.status)
	return header + "\n" + transcriptBoxStyle.Render(m.viewport.View()) + "\n" + inputBoxStyle.Render(m.input.View()) + "\n" + status
}

func (m ChatModel) send(prompt string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.session.Send(m.ctx, prompt)
		return replyMsg{prompt: prompt, reply: reply, err: err}
	}
}

func (m *ChatModel) refresh() {
	if len(m.transcript) == 0 {
		m.viewport.SetContent("Welcome to Speed Chaser guided mode.")
		return
	}
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(strings.Join(m.transcript, "\n\n")))
	m.viewport.GotoBottom()
}

func sourcesLine(sources []Result) string {
	if len(sources) == 0 {
		return "No local context used."
	}
	seen := make(map[string]bool, len(sources))
	var files []string
	for _, s := range sources {
		if !seen[s.SourcePath] {
			seen[s.SourcePath] = true
			files = append(files, s.SourcePath)
		}
	}
	return fmt.Sprintf("Context: %s", strings.Join(files, ", "))
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
