package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studyrag/internal/domain"
)

// Asker is the TUI-facing subset of the study service.
type Asker interface {
	Ask(ctx context.Context, workspaceID, question string) (string, error)
}

// answerMsg carries the outcome of one Ask call back into Update.
type answerMsg struct {
	question string
	answer   string
	err      error
}

// Model is the Bubble Tea model of the workspace chat.
type Model struct {
	ctx       context.Context
	service   Asker
	workspace string
	timeout   time.Duration
	input     textinput.Model
	viewport  viewport.Model
	history   []domain.ChatMessage
	status    string
	cursor    int
	ready     bool
	pending   bool
}

// New creates a chat model over service for workspace, seeded with earlier
// exchanges. Ask calls derive from ctx; a zero timeout leaves them bounded
// only by ctx.
func New(ctx context.Context, service Asker, workspace string, history []domain.ChatMessage, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your documents and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{
		ctx:       ctx,
		service:   service,
		workspace: workspace,
		timeout:   timeout,
		input:     ti,
		viewport:  vp,
		history:   history,
		status:    fmt.Sprintf("Workspace %q. Up/Down browse answers, Ctrl+C quits.", workspace),
	}
	if len(history) > 0 {
		m.cursor = len(history) - 1
	}
	return m
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		ctx := m.ctx
		if m.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}
		answer, err := m.service.Ask(ctx, m.workspace, question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 1
		totalFooterLines := 1
		reserved := totalHeaderLines + totalFooterLines + qh + 1
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case answerMsg:
		m.pending = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.history = append(m.history, domain.ChatMessage{
			WorkspaceID: m.workspace,
			Question:    msg.question,
			Answer:      msg.answer,
		})
		m.cursor = len(m.history) - 1
		m.status = fmt.Sprintf("Answered %q", msg.question)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.pending {
				m.pending = true
				m.input.SetValue("")
				m.status = "Thinking..."
				return m, m.ask(q)
			}
		case "down":
			if len(m.history) > 0 {
				m.cursor = (m.cursor + 1) % len(m.history)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if len(m.history) > 0 {
				m.cursor = (m.cursor - 1 + len(m.history)) % len(m.history)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("studyrag chat")
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	if len(m.history) == 0 {
		return "No questions yet."
	}
	c := m.history[m.cursor]
	title := fmt.Sprintf("Answer %d/%d", m.cursor+1, len(m.history))
	question := questionStyle.Render("Q: " + c.Question)
	return title + "\n" + question + "\n\n" + highlightBestSentence(c.Answer, c.Question)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasises the answer sentence sharing the most words
// with the question. Earlier sentences win ties.
func highlightBestSentence(answer, question string) string {
	if strings.TrimSpace(answer) == "" {
		return answer
	}
	parts := sentenceRe.FindAllString(answer, -1)
	if len(parts) == 0 {
		parts = []string{answer}
	}
	words := toTokenSet(question)
	best, bestScore := -1, 0
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
		if score := tokenOverlapScore(words, parts[i]); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 && len(words) > 0 {
		best = 0
	}
	if best >= 0 {
		parts[best] = highlightStyle.Render(parts[best])
	}
	return strings.Join(parts, " ")
}

// toTokenSet lowercases s and returns its distinct words.
func toTokenSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range unicodeWordRe.FindAllString(strings.ToLower(s), -1) {
		set[w] = struct{}{}
	}
	return set
}

// tokenOverlapScore counts the distinct words of sentence found in words.
func tokenOverlapScore(words map[string]struct{}, sentence string) int {
	n := 0
	for w := range toTokenSet(sentence) {
		if _, ok := words[w]; ok {
			n++
		}
	}
	return n
}
