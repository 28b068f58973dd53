// File: cmd/chatcli/model.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/iyunix/go-chat/internal/domain"
	"github.com/iyunix/go-chat/internal/session"
)

const helpText = "enter send · ctrl+s stop · :e N edit · :u PATH attach · :chats · :open ID · :new · :q quit"

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type (
	deltaMsg    struct{}
	turnDoneMsg struct{ err error }
	loadedMsg   struct{ err error }
	statusMsg   string
	uploadMsg   struct {
		att *domain.Attachment
		err error
	}
	tickMsg struct{}
)

// shared outlives bubbletea's value copies of model.
type shared struct {
	program *tea.Program
}

type model struct {
	client  *session.Client
	session *session.Session
	shared  *shared

	input   string
	pending []domain.Attachment
	status  string
	busy    bool
	editing bool
	spinner int
	width   int
	height  int
}

func newModel(client *session.Client, chatID string) model {
	return model{
		client:  client,
		session: session.New(client, chatID),
		shared:  &shared{},
		status:  helpText,
	}
}

// attach lets session callbacks wake the program from the streaming
// goroutine.
func (m model) attach(p *tea.Program) {
	m.shared.program = p
	m.session.OnDelta(func(string) { p.Send(deltaMsg{}) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.load(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) load() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return loadedMsg{err: s.Load(context.Background())}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		if m.busy {
			m.spinner = (m.spinner + 1) % len(spinnerFrames)
		}
		return m, tick()

	case deltaMsg:
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.status = "load failed: " + msg.err.Error()
		}
		return m, nil

	case turnDoneMsg:
		m.busy = false
		m.editing = false
		m.status = helpText
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
		}
		return m, nil

	case uploadMsg:
		if msg.err != nil {
			m.status = "upload failed: " + msg.err.Error()
			return m, nil
		}
		m.pending = append(m.pending, *msg.att)
		m.status = fmt.Sprintf("attached %s (%d pending)", msg.att.Name, len(m.pending))
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.session.Stop()
		return m, tea.Quit
	case tea.KeyCtrlS:
		if m.busy {
			m.session.Stop()
			m.status = "stopping..."
		}
		return m, nil
	case tea.KeyEsc:
		if m.editing {
			m.session.CancelEdit()
			m.editing = false
			m.input = ""
			m.status = "edit cancelled"
		}
		return m, nil
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.input += " "
		return m, nil
	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	case tea.KeyEnter:
		if m.busy {
			return m, nil
		}
		line := strings.TrimSpace(m.input)
		m.input = ""
		if m.editing {
			return m.saveEdit(line)
		}
		if strings.HasPrefix(line, ":") {
			return m.command(line)
		}
		return m.send(line)
	}
	return m, nil
}

func (m model) send(text string) (tea.Model, tea.Cmd) {
	if text == "" {
		return m, nil
	}
	s, atts := m.session, m.pending
	m.pending = nil
	m.busy = true
	m.status = "thinking"
	return m, func() tea.Msg {
		return turnDoneMsg{err: s.Send(context.Background(), text, atts)}
	}
}

func (m model) saveEdit(text string) (tea.Model, tea.Cmd) {
	s := m.session
	m.busy = true
	m.status = "regenerating"
	return m, func() tea.Msg {
		return turnDoneMsg{err: s.SaveEdit(context.Background(), text)}
	}
}

func (m model) command(line string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "q", "quit":
		return m, tea.Quit

	case "new":
		m.session = session.New(m.client, "")
		m.attach(m.shared.program)
		m.status = "new chat"
		return m, nil

	case "open":
		m.session = session.New(m.client, arg)
		m.attach(m.shared.program)
		return m, m.load()

	case "chats":
		client := m.client
		return m, func() tea.Msg {
			chats, err := client.ListChats(context.Background())
			if err != nil {
				return statusMsg("list failed: " + err.Error())
			}
			parts := make([]string, 0, len(chats))
			for _, c := range chats {
				parts = append(parts, c.ID+" "+c.Title)
			}
			if len(parts) == 0 {
				return statusMsg("no chats yet")
			}
			return statusMsg(strings.Join(parts, " | "))
		}

	case "e", "edit":
		n, err := strconv.Atoi(arg)
		msgs := m.session.Messages()
		if err != nil || n < 1 || n > len(msgs) {
			m.status = "usage: :e N (message number)"
			return m, nil
		}
		draft, err := m.session.BeginEdit(msgs[n-1].ID)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.editing = true
		m.input = draft
		m.status = "editing message " + arg + " (enter to save, esc to cancel)"
		return m, nil

	case "u", "upload":
		if len(m.pending) >= session.MaxAttachments {
			m.status = fmt.Sprintf("at most %d attachments per message", session.MaxAttachments)
			return m, nil
		}
		client, chatID := m.client, m.session.ChatID()
		return m, func() tea.Msg {
			f, err := os.Open(arg)
			if err != nil {
				return uploadMsg{err: err}
			}
			defer f.Close()
			res, err := client.Upload(context.Background(), chatID, filepath.Base(arg), f)
			if err != nil {
				return uploadMsg{err: err}
			}
			return uploadMsg{att: &domain.Attachment{
				URL:           res.URL,
				Name:          res.Name,
				MediaType:     res.MediaType,
				ExtractedText: res.ExtractedText,
			}}
		}
	}

	m.status = "unknown command: " + line
	return m, nil
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	loadingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	userLabel      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	assistantLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	noteStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	inputStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

func (m model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	chatID := m.session.ChatID()
	if chatID == "" {
		chatID = "new chat"
	}
	header := titleStyle.Render("Chat: " + chatID)

	var lines []string
	for i, msg := range m.session.Messages() {
		label := assistantLabel.Render(fmt.Sprintf("%d Assistant", i+1))
		if msg.Role == domain.RoleUser {
			label = userLabel.Render(fmt.Sprintf("%d You", i+1))
		}
		body := msg.Content
		if msg.Failed {
			body = errorStyle.Render(body)
		}
		block := label + "\n" + lipgloss.NewStyle().Width(width-2).Render(body)
		for _, a := range msg.Attachments {
			block += "\n" + noteStyle.Render("📎 "+a.Name)
		}
		if msg.Interrupted && !msg.Failed {
			block += "\n" + noteStyle.Render("(interrupted)")
		}
		lines = append(lines, strings.Split(block, "\n")...)
		lines = append(lines, "")
	}
	if len(lines) == 0 {
		lines = []string{noteStyle.Render("Start a conversation.")}
	}

	// keep the newest lines that fit above the input box
	room := m.height - 6
	if room > 0 && len(lines) > room {
		lines = lines[len(lines)-room:]
	}

	status := statusStyle.Render(m.status)
	if m.busy {
		status = loadingStyle.Render(spinnerFrames[m.spinner]+" ") + status
	}
	prompt := "> "
	if m.editing {
		prompt = "edit> "
	}
	input := inputStyle.Width(width - 4).Render(prompt + m.input + "█")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		strings.Join(lines, "\n"),
		input,
		status,
	)
}
