package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rolerag/internal/service"
)

// Answerer is the TUI-facing subset of the question service.
type Answerer interface {
	Answer(ctx context.Context, role, query string) (service.Response, error)
}

type view int

const (
	answerView view = iota
	hitsView
)

type answerMsg struct {
	query string
	resp  service.Response
	err   error
}

// Model is the Bubble Tea model for asking questions as one role.
type Model struct {
	ctx       context.Context
	service   Answerer
	role      string
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	resp      *service.Response
	view      view
	status    string
	cursor    int
	ready     bool
	loading   bool
	width     int
	lastQuery string
}

// New creates a TUI bound to role. ctx bounds every question asked.
func New(ctx context.Context, svc Answerer, role string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		service:  svc,
		role:     role,
		input:    ti,
		viewport: vp,
		spinner:  sp,
		status:   "Ready. Tab switches between answer and retrieved chunks.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.service.Answer(m.ctx, m.role, q)
		return answerMsg{query: q, resp: resp, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil

	case answerMsg:
		m.loading = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.resp = nil
		} else {
			resp := msg.resp
			m.resp = &resp
			m.cursor = 0
			m.lastQuery = msg.query
			m.status = fmt.Sprintf("%s answer for %q (%d sources)", resp.Kind, msg.query, len(resp.Sources))
		}
		m.viewport.SetContent(m.renderCurrent())
		m.viewport.GotoTop()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
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
			if q == "" || m.loading {
				return m, nil
			}
			m.loading = true
			m.status = fmt.Sprintf("Searching as %s...", m.role)
			m.input.SetValue("")
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		case "tab":
			if m.view == answerView {
				m.view = hitsView
			} else {
				m.view = answerView
			}
			m.viewport.SetContent(m.renderCurrent())
			return m, nil
		case "down":
			if m.view == hitsView && m.resp != nil && len(m.resp.Hits) > 0 {
				m.cursor = (m.cursor + 1) % len(m.resp.Hits)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if m.view == hitsView && m.resp != nil && len(m.resp.Hits) > 0 {
				m.cursor = (m.cursor - 1 + len(m.resp.Hits)) % len(m.resp.Hits)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Company Docs") + " " + roleStyle.Render("role: "+m.role)
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.loading {
		status = m.spinner.View() + " " + status
	}
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	if m.resp == nil {
		return "No answer yet."
	}
	if m.view == answerView {
		return RenderMarkdown(ResponseMarkdown(*m.resp), m.width-4)
	}
	if len(m.resp.Hits) == 0 {
		return "No accessible chunks were retrieved."
	}
	h := m.resp.Hits[m.cursor]
	title := fmt.Sprintf("Chunk %d/%d  %s  distance=%.3f", m.cursor+1, len(m.resp.Hits), h.ID, h.Distance)
	where := fmt.Sprintf("%s > %s > %s (%s)", h.Source, h.Section, h.SubHierarchy, h.Department)
	return title + "\n" + where + "\n\n" + highlightBestSentence(h.Text, m.lastQuery)
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	roleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	wordRe         = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

// highlightBestSentence emphasizes the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.TrimSpace(strings.Join(sentences, ""))
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	out := make([]string, 0, len(sentences))
	for i, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if i == bestIdx && bestScore > 0 {
			s = highlightStyle.Render(s)
		}
		out = append(out, s)
	}
	return strings.Join(out, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range wordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
