// Package tui is a terminal directory browser driven by browse.Controller.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fruitsalade/explorer/internal/browse"
)

// RoutePrefix is the in-memory route the controller is mounted under.
const RoutePrefix = "/browse"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FFFF"))
	crumbStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	dirStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4A90E2"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#4A90E2"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#718096"))
)

// fetchedMsg carries a finished listing fetch back to Update.
type fetchedMsg struct {
	browse.Result
}

// memoryNavigator records where the controller wants to go. There is no
// browser; the URL is only shown in the status bar.
type memoryNavigator struct {
	url   string
	login bool
}

func (n *memoryNavigator) Navigate(u string) { n.url = u }
func (n *memoryNavigator) RedirectToLogin()  { n.login = true }

// Model is the bubbletea model of the browser.
type Model struct {
	ctx     context.Context
	ctrl    *browse.Controller
	nav     *memoryNavigator
	initial *browse.Request

	cursor    int
	filtering bool
	filter    textinput.Model
	keys      KeyMap
	help      help.Model
	spinner   spinner.Model
	height    int

	loginRequired bool
}

// New mounts a controller at startPath ("/" or "/a/b") and returns the model.
// Listings run on f outside the bubbletea loop.
func New(ctx context.Context, f browse.Fetcher, startPath string) Model {
	nav := &memoryNavigator{}
	ctrl := browse.New(RoutePrefix, f, nav)
	req := ctrl.Mount(browse.ParsePath(startPath).Route(RoutePrefix), "")
	nav.url = ctrl.URL()

	ti := textinput.New()
	ti.Placeholder = "Search files and folders..."
	ti.Prompt = "/ "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		nav:     nav,
		initial: req,
		filter:  ti,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
	}
}

// LoginRequired reports whether the program ended on an unauthorized listing.
func (m Model) LoginRequired() bool { return m.loginRequired }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(m.initial), m.spinner.Tick)
}

// fetch runs req in a command. Only Fetch runs off the loop; the result is
// applied in Update.
func (m Model) fetch(req *browse.Request) tea.Cmd {
	if req == nil {
		return nil
	}
	r, ctrl, ctx := *req, m.ctrl, m.ctx
	return func() tea.Msg {
		return fetchedMsg{ctrl.Fetch(ctx, r)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchedMsg:
		if m.ctrl.Apply(msg.Result) {
			m.clampCursor()
			if m.nav.login {
				m.loginRequired = true
				return m, tea.Quit
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if v := m.filter.Value(); v != m.ctrl.State().Filter {
		req := m.ctrl.SetFilter(v)
		m.clampCursor()
		return m, tea.Batch(cmd, m.fetch(req))
	}
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.ctrl.View().Entries
	state := m.ctrl.State()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(entries)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Open):
		if m.cursor < len(entries) {
			if req := m.ctrl.Open(entries[m.cursor]); req != nil {
				m.cursor = 0
				return m, m.fetch(req)
			}
		}

	case key.Matches(msg, m.keys.Parent):
		if p := m.ctrl.Path(); !p.IsRoot() {
			if req := m.ctrl.NavigateTo(p.Parent()); req != nil {
				m.cursor = 0
				return m, m.fetch(req)
			}
		}

	case key.Matches(msg, m.keys.Sort):
		i := slices.Index(browse.SortFields, state.Sort)
		next := browse.SortFields[(i+1)%len(browse.SortFields)]
		return m, m.fetch(m.ctrl.SetSort(next, state.Direction))

	case key.Matches(msg, m.keys.Direction):
		dir := browse.Desc
		if state.Direction == browse.Desc {
			dir = browse.Asc
		}
		return m, m.fetch(m.ctrl.SetSort(state.Sort, dir))

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		m.filter.SetValue(state.Filter)
		m.filter.CursorEnd()
		return m, m.filter.Focus()
	}
	return m, nil
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.View().Entries)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) View() string {
	v := m.ctrl.View()
	var b strings.Builder

	b.WriteString(titleStyle.Render("Browse Files"))
	b.WriteString("\n")
	labels := make([]string, len(v.Crumbs))
	for i, c := range v.Crumbs {
		labels[i] = c.Label
	}
	b.WriteString(crumbStyle.Render(strings.Join(labels, " / ")))
	b.WriteString("\n\n")

	if m.filtering || v.State.Filter != "" {
		if m.filtering {
			b.WriteString(m.filter.View())
		} else {
			b.WriteString("/ " + v.State.Filter)
		}
		b.WriteString("\n\n")
	}

	switch {
	case v.Error != "":
		b.WriteString(errorStyle.Render(v.Error))
		b.WriteString("\n")
	case v.Listing == nil:
		b.WriteString(m.spinner.View() + " Loading...\n")
	default:
		start, end := m.window(len(v.Entries))
		for i := start; i < end; i++ {
			b.WriteString(m.renderRow(v.Entries[i], i == m.cursor))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	status := fmt.Sprintf("%s  sort: %s %s", m.nav.url, v.State.Sort, v.State.Direction)
	if v.Loading && v.Listing != nil {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(statusStyle.Render(status))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// chromeLines is the number of lines View uses around the entry rows.
const chromeLines = 9

// window returns the range of rows that fits the terminal and contains the
// cursor. Before the first WindowSizeMsg every row is shown.
func (m Model) window(n int) (int, int) {
	rows := m.height - chromeLines
	if m.height == 0 || rows >= n {
		return 0, n
	}
	if rows < 1 {
		rows = 1
	}
	start := m.cursor - rows + 1
	if start < 0 {
		start = 0
	}
	return start, start + rows
}

func (m Model) renderRow(e browse.Entry, selected bool) string {
	name := e.Name
	kind := "File"
	if e.IsDir() {
		name += "/"
		kind = "Directory"
	}
	line := fmt.Sprintf("%-40s %-10s %10s", name, kind, browse.FormatSize(e.Size))
	switch {
	case selected:
		return cursorStyle.Render(line)
	case e.IsDir():
		return dirStyle.Render(line)
	}
	return line
}
