// Package tui is an interactive terminal explorer for audit results.
package tui

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/okuzmin/a11ylens/internal/analyzer"
	"github.com/okuzmin/a11ylens/internal/audit"
	"github.com/okuzmin/a11ylens/internal/taxonomy"
)

const (
	defaultWidth  = 120
	defaultHeight = 32
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))
)

// Run launches the interactive issue explorer over an audit response.
func Run(resp *audit.Response) error {
	m := newModel(resp)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type sortMode int

const (
	sortByPriority sortMode = iota
	sortByCount
	sortByCode
)

func (s sortMode) String() string {
	switch s {
	case sortByCount:
		return "count"
	case sortByCode:
		return "code"
	default:
		return "priority"
	}
}

func (s sortMode) next() sortMode {
	switch s {
	case sortByPriority:
		return sortByCount
	case sortByCount:
		return sortByCode
	default:
		return sortByPriority
	}
}

type issueEntry struct {
	id    int
	issue analyzer.Issue
}

type prioritySummary struct {
	total    int
	critical int
	warning  int
	low      int
}

type model struct {
	resp *audit.Response

	entries  []issueEntry
	filtered []issueEntry

	sortMode sortMode

	table  table.Model
	filter textinput.Model
	detail viewport.Model

	filtering  bool
	detailMode bool

	status string
	width  int
	height int
}

func newModel(resp *audit.Response) *model {
	entries := make([]issueEntry, len(resp.Issues))
	for i := range resp.Issues {
		entries[i] = issueEntry{id: i, issue: resp.Issues[i]}
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "PRIORITY", Width: 10},
			{Title: "TYPE", Width: 8},
			{Title: "COUNT", Width: 6},
			{Title: "TITLE", Width: 48},
			{Title: "CODE", Width: 44},
		}),
		table.WithRows(nil),
		table.WithHeight(16),
		table.WithFocused(true),
	)
	tableStyles := table.DefaultStyles()
	tableStyles.Header = tableStyles.Header.Bold(true)
	tableStyles.Selected = tableStyles.Selected.
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("62")).
		Bold(true)
	t.SetStyles(tableStyles)

	filterInput := textinput.New()
	filterInput.Prompt = ""
	filterInput.Placeholder = "code/priority/title"
	filterInput.CharLimit = 128
	filterInput.Width = 64

	vp := viewport.New(100, 18)

	m := &model{
		resp:     resp,
		entries:  entries,
		sortMode: sortByPriority,
		table:    t,
		filter:   filterInput,
		detail:   vp,
		status:   "Use j/k or arrows to navigate. Enter details, / filter, s sort, e export, q quit.",
		width:    defaultWidth,
		height:   defaultHeight,
	}

	m.refreshRows()
	m.resizeLayout()
	return m
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeLayout()
		return m, nil
	case tea.KeyMsg:
		if m.detailMode {
			return m.updateDetailKey(typed)
		}
		return m.updateListKey(typed)
	default:
		if m.detailMode {
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
}

func (m *model) updateListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	}

	if m.filtering {
		switch msg.String() {
		case "enter", "esc":
			m.filtering = false
			m.filter.Blur()
			m.status = fmt.Sprintf("Filter applied (%d issues)", len(m.filtered))
			return m, nil
		}
		prev := m.filter.Value()
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		if prev != m.filter.Value() {
			m.refreshRows()
		}
		return m, cmd
	}

	switch msg.String() {
	case "/":
		m.filtering = true
		m.filter.Focus()
		m.status = "Filter mode: type to narrow issues, then Enter/Esc."
		return m, nil
	case "s":
		m.sortMode = m.sortMode.next()
		m.refreshRows()
		m.status = fmt.Sprintf("Sorted by %s", m.sortMode.String())
		return m, nil
	case "e":
		path, err := m.exportFiltered()
		if err != nil {
			m.status = fmt.Sprintf("export failed: %v", err)
		} else {
			m.status = fmt.Sprintf("Exported %d issues to %s", len(m.filtered), path)
		}
		return m, nil
	case "enter":
		if _, ok := m.selectedEntry(); !ok {
			return m, nil
		}
		m.detailMode = true
		m.setDetailContent()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *model) updateDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc", "b", "enter":
		m.detailMode = false
		m.status = "Back to issue list"
		return m, nil
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *model) resizeLayout() {
	if m.width <= 0 {
		m.width = defaultWidth
	}
	if m.height <= 0 {
		m.height = defaultHeight
	}

	usable := m.width - 8
	if usable < 80 {
		usable = 80
	}

	priorityWidth := 10
	typeWidth := 8
	countWidth := 6
	titleWidth := (usable - priorityWidth - typeWidth - countWidth) / 2
	if titleWidth < 24 {
		titleWidth = 24
	}
	codeWidth := usable - priorityWidth - typeWidth - countWidth - titleWidth
	if codeWidth < 24 {
		codeWidth = 24
	}

	m.table.SetColumns([]table.Column{
		{Title: "PRIORITY", Width: priorityWidth},
		{Title: "TYPE", Width: typeWidth},
		{Title: "COUNT", Width: countWidth},
		{Title: "TITLE", Width: titleWidth},
		{Title: "CODE", Width: codeWidth},
	})

	tableHeight := m.height - 10
	if tableHeight < 8 {
		tableHeight = 8
	}
	m.table.SetHeight(tableHeight)

	filterWidth := m.width - 28
	if filterWidth < 24 {
		filterWidth = 24
	}
	m.filter.Width = filterWidth

	m.detail.Width = m.width - 4
	if m.detail.Width < 48 {
		m.detail.Width = 48
	}
	m.detail.Height = m.height - 6
	if m.detail.Height < 8 {
		m.detail.Height = 8
	}
	if m.detailMode {
		m.setDetailContent()
	}
}

func (m *model) refreshRows() {
	query := strings.TrimSpace(m.filter.Value())

	filtered := make([]issueEntry, 0, len(m.entries))
	for i := range m.entries {
		if matchesFilter(&m.entries[i].issue, query) {
			filtered = append(filtered, m.entries[i])
		}
	}

	sortEntries(filtered, m.sortMode)
	m.filtered = filtered

	rows := make([]table.Row, 0, len(filtered))
	for i := range filtered {
		issue := filtered[i].issue
		rows = append(rows, table.Row{
			strings.ToUpper(string(issue.Priority)),
			string(issue.Type),
			strconv.Itoa(issue.Count),
			truncateText(issueTitle(&issue), 140),
			truncateText(issue.Code, 140),
		})
	}
	m.table.SetRows(rows)
	if len(rows) == 0 {
		m.table.SetCursor(0)
		return
	}
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(len(rows) - 1)
	}
}

func (m *model) selectedEntry() (issueEntry, bool) {
	if len(m.filtered) == 0 {
		return issueEntry{}, false
	}
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.filtered) {
		return issueEntry{}, false
	}
	return m.filtered[idx], true
}

func (m *model) setDetailContent() {
	entry, ok := m.selectedEntry()
	if !ok {
		m.detail.SetContent("No issue selected.")
		return
	}
	m.detail.SetContent(renderDetail(&entry.issue))
	m.detail.GotoTop()
}

func (m *model) View() string {
	if m.detailMode {
		return m.detailView()
	}
	return m.listView()
}

func (m *model) listView() string {
	summary := summarizeEntries(m.filtered)
	header := fmt.Sprintf(
		"a11ylens %s | score %d (%s) | issues %d/%d | critical:%d warning:%d low:%d | sort:%s",
		m.resp.URL, m.resp.Score, m.resp.Grade,
		len(m.filtered), len(m.entries), summary.critical, summary.warning, summary.low, m.sortMode.String(),
	)

	filterLabel := "Filter (/): "
	if m.filtering {
		filterLabel = "Filter (editing): "
	}
	filterRow := sectionStyle.Render(filterLabel) + m.filter.View()

	body := m.table.View()
	if len(m.filtered) == 0 {
		body = warnStyle.Render("No issues match the current filter.")
	}

	footer := statusStyle.Render(m.status)

	return strings.Join([]string{
		headerStyle.Render(header),
		filterRow,
		body,
		footer,
	}, "\n")
}

func (m *model) detailView() string {
	entry, ok := m.selectedEntry()
	title := "Issue Detail"
	if ok {
		title = fmt.Sprintf("Issue Detail | %s | %s",
			issueTitle(&entry.issue), strings.ToUpper(string(entry.issue.Priority)))
	}

	return strings.Join([]string{
		headerStyle.Render(title),
		m.detail.View(),
		statusStyle.Render("Up/Down scroll, PgUp/PgDn page, b or Esc back, q quit"),
	}, "\n")
}

func (m *model) exportFiltered() (string, error) {
	issues := make([]analyzer.Issue, 0, len(m.filtered))
	for i := range m.filtered {
		issues = append(issues, m.filtered[i].issue)
	}
	data, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(".", fmt.Sprintf("a11ylens-issues-%s.json", time.Now().Format("20060102-150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func summarizeEntries(entries []issueEntry) prioritySummary {
	var out prioritySummary
	for i := range entries {
		out.total++
		switch entries[i].issue.Priority {
		case taxonomy.PriorityCritical:
			out.critical++
		case taxonomy.PriorityWarning:
			out.warning++
		default:
			out.low++
		}
	}
	return out
}

func matchesFilter(issue *analyzer.Issue, query string) bool {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return true
	}
	haystack := strings.ToLower(strings.Join([]string{
		issue.Code,
		string(issue.Priority),
		string(issue.Type),
		issue.Translation.Title,
		issue.Translation.Description,
	}, " "))
	for _, token := range strings.Fields(query) {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}

func sortEntries(entries []issueEntry, mode sortMode) {
	sort.SliceStable(entries, func(i, j int) bool {
		a := entries[i].issue
		b := entries[j].issue

		switch mode {
		case sortByCount:
			if a.Count != b.Count {
				return a.Count > b.Count
			}
		case sortByCode:
			if a.Code != b.Code {
				return a.Code < b.Code
			}
		default:
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() < b.Priority.Rank()
			}
			if a.Count != b.Count {
				return a.Count > b.Count
			}
		}

		return entries[i].id < entries[j].id
	})
}

func issueTitle(issue *analyzer.Issue) string {
	if issue.Translation.Title != "" {
		return issue.Translation.Title
	}
	return taxonomy.StripCode(issue.Code)
}

func renderDetail(issue *analyzer.Issue) string {
	var b strings.Builder

	_, _ = fmt.Fprintf(&b, "%s\n", sectionStyle.Render("Overview"))
	_, _ = fmt.Fprintf(&b, "Code: %s\n", issue.Code)
	_, _ = fmt.Fprintf(&b, "Priority: %s\n", strings.ToUpper(string(issue.Priority)))
	_, _ = fmt.Fprintf(&b, "Engine type: %s\n", issue.Type)
	_, _ = fmt.Fprintf(&b, "Occurrences: %d\n", issue.Count)

	_, _ = fmt.Fprintf(&b, "\n%s\n", sectionStyle.Render("Description"))
	_, _ = fmt.Fprintln(&b, issue.Translation.Description)

	if len(issue.Messages) > 0 {
		_, _ = fmt.Fprintf(&b, "\n%s\n", sectionStyle.Render("Engine Messages"))
		for _, msg := range issue.Messages {
			_, _ = fmt.Fprintf(&b, "- %s\n", msg)
		}
	}

	if len(issue.Samples) > 0 {
		_, _ = fmt.Fprintf(&b, "\n%s\n", sectionStyle.Render("Example Elements"))
		for _, sel := range issue.Samples {
			_, _ = fmt.Fprintf(&b, "- %s\n", sel)
		}
	}

	_, _ = fmt.Fprintf(&b, "\n%s\n", sectionStyle.Render("Suggested Fix"))
	_, _ = fmt.Fprintln(&b, issue.Translation.Fix)

	return b.String()
}

func truncateText(s string, max int) string {
	if max <= 3 {
		return s
	}
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
