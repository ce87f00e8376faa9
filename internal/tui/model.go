package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"paperindex/internal/chunker"
	"paperindex/internal/domain"
	"paperindex/internal/service"
)

// Port is the TUI-facing subset of the index service.
type Port interface {
	Query(ctx context.Context, text string, n int) (*service.QueryResult, error)
	IndexedFilepaths(ctx context.Context) ([]string, error)
}

type resultsMsg struct {
	query string
	res   *service.QueryResult
	err   error
}

type filesMsg struct {
	paths []string
	err   error
}

// Model is the Bubble Tea model for browsing the collection.
type Model struct {
	ctx        context.Context
	service    Port
	numResults int
	input      textinput.Model
	viewport   viewport.Model
	hits       []domain.VectorHit
	files      []string
	showFiles  bool
	status     string
	cursor     int
	ready      bool
	lastQuery  string
}

func New(ctx context.Context, svc Port, numResults int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Search papers and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	if numResults <= 0 {
		numResults = service.DefaultNumResults
	}
	return Model{
		ctx:        ctx,
		service:    svc,
		numResults: numResults,
		input:      ti,
		viewport:   viewport.New(0, 0),
		status:     "Type to search. Tab lists indexed files.",
	}
}

func (m Model) Init() tea.Cmd { return tea.Batch(textinput.Blink, m.loadFiles()) }

func (m Model) loadFiles() tea.Cmd {
	return func() tea.Msg {
		paths, err := m.service.IndexedFilepaths(m.ctx)
		return filesMsg{paths: paths, err: err}
	}
}

func (m Model) runQuery(q string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.service.Query(m.ctx, q, m.numResults)
		return resultsMsg{query: q, res: res, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		return m.refresh(), nil
	case filesMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.files = msg.paths
		}
		return m.refresh(), nil
	case resultsMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.hits = nil
		} else {
			m.hits = msg.res.Hits
			m.cursor = 0
			m.lastQuery = msg.query
			m.showFiles = false
			m.status = fmt.Sprintf("%d results for %q across %d files", len(m.hits), msg.query, len(service.UniqueFilepaths(m.hits)))
		}
		return m.refresh(), nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if q := strings.TrimSpace(m.input.Value()); q != "" {
				m.status = "Searching..."
				return m, m.runQuery(q)
			}
		case "tab":
			m.showFiles = !m.showFiles
			if m.showFiles {
				return m.refresh(), m.loadFiles()
			}
			return m.refresh(), nil
		case "down":
			if len(m.hits) > 0 {
				m.cursor = (m.cursor + 1) % len(m.hits)
				return m.refresh(), nil
			}
		case "up":
			if len(m.hits) > 0 {
				m.cursor = (m.cursor - 1 + len(m.hits)) % len(m.hits)
				return m.refresh(), nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) refresh() Model {
	if m.showFiles {
		m.viewport.SetContent(m.renderFiles())
	} else {
		m.viewport.SetContent(m.renderCurrentHit())
	}
	return m
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("paperindex: %d files indexed", len(m.files)))
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderFiles() string {
	if len(m.files) == 0 {
		return "Nothing indexed yet."
	}
	return strings.Join(m.files, "\n")
}

func (m Model) renderCurrentHit() string {
	if len(m.hits) == 0 {
		return "No results yet."
	}
	h := m.hits[m.cursor]
	title := fmt.Sprintf("Result %d/%d  %s  distance=%.3f", m.cursor+1, len(m.hits), h.Metadata[service.MetaType], h.Distance)
	source := dimStyle.Render(sourceLine(h.Metadata))
	return title + "\n" + source + "\n\n" + highlightBestSentence(Preview(h.Document), m.lastQuery)
}

func sourceLine(meta map[string]string) string {
	line := meta[service.MetaFilepath]
	if p := meta[service.MetaPage]; p != "" {
		line += "  page " + p
	}
	if t := meta["Title"]; t != "" {
		line += "  " + t
	}
	return line
}

// Preview extracts the human-readable part of a stored payload: the caption
// of a figure or table, otherwise its text.
func Preview(document string) string {
	var p struct {
		Caption string `json:"caption"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal([]byte(document), &p); err != nil {
		return document
	}
	if p.Caption != "" {
		return p.Caption
	}
	return p.Text
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

func highlightBestSentence(text, query string) string {
	sentences := chunker.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	best, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	sentences[best] = highlightStyle.Render(sentences[best])
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
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
