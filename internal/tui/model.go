// Package tui is a terminal checkbox selector over an audience taxonomy.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/audienced/internal/catalog"
	"github.com/fyrsmithlabs/audienced/pkg/labels"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
	"github.com/fyrsmithlabs/audienced/pkg/view"
)

const (
	sparklineWidth  = 24
	sparklineHeight = 2
	historySize     = 24
	progressWidth   = 24
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	checkedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true).
			MarginTop(1)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// Model is the bubbletea model of the selector.
type Model struct {
	snap      *catalog.Snapshot
	view      view.State
	sel       selection.State
	rows      []view.Row
	cursor    int
	keys      keyMap
	help      help.Model
	input     textinput.Model
	coverage  progress.Model
	history   []float64
	focusing  bool
	submitted bool
	quitting  bool
}

// New builds a selector over snap starting from initial. Identities that
// already have something selected start expanded.
func New(snap *catalog.Snapshot, initial selection.State) Model {
	in := textinput.New()
	in.Placeholder = "identity names, comma separated"
	in.Prompt = "focus> "
	in.CharLimit = 256

	v := view.New()
	for _, ident := range snap.Tree.All() {
		if initial.Has(taxonomy.LevelIdentity, ident.ID) {
			v = v.Expand(ident.Key())
		}
	}

	m := Model{
		snap:     snap,
		view:     v,
		sel:      initial,
		keys:     defaultKeys(),
		help:     help.New(),
		input:    in,
		coverage: progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth)),
		history:  make([]float64, 0, historySize),
	}
	m.refresh()
	return m
}

// Selection returns the current selection.
func (m Model) Selection() selection.State {
	return m.sel
}

// Submitted reports whether the user saved rather than quit.
func (m Model) Submitted() bool {
	return m.submitted
}

// Rows returns the rendered rows.
func (m Model) Rows() []view.Row {
	return m.rows
}

// Cursor returns the highlighted row index.
func (m Model) Cursor() int {
	return m.cursor
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if m.focusing {
			return m.updateFocus(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Submit):
		m.submitted = true
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Toggle):
		if row, ok := m.current(); ok && row.Selectable() {
			m.sel = m.snap.Engine.Apply(m.sel, row.Action(!row.Checked))
			m.record()
			m.refresh()
		}
	case key.Matches(msg, m.keys.Expand):
		if row, ok := m.current(); ok && row.HasChildren && !row.Expanded {
			m.view = m.view.Toggle(row.Key)
			m.refresh()
		}
	case key.Matches(msg, m.keys.Collapse):
		if row, ok := m.current(); ok && row.Expanded {
			m.view = m.view.Toggle(row.Key)
			m.refresh()
		}
	case key.Matches(msg, m.keys.Clear):
		m.sel = m.snap.Engine.Clear(m.sel)
		m.record()
		m.refresh()
	case key.Matches(msg, m.keys.Focus):
		m.focusing = true
		m.input.SetValue(strings.Join(m.view.Focus(), ", "))
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) updateFocus(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.focusing = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.focusing = false
		m.input.Blur()
		before := m.sel.Len()
		m.view, m.sel = view.ApplyFocus(m.snap.Tree, m.view, m.sel, splitNames(m.input.Value()))
		if m.sel.Len() != before {
			m.record()
		}
		m.cursor = 0
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) current() (view.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return view.Row{}, false
	}
	return m.rows[m.cursor], true
}

func (m *Model) refresh() {
	m.rows = m.view.Rows(m.snap.Tree, m.sel)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// record appends the selection size to the sparkline history.
func (m *Model) record() {
	m.history = append(m.history, float64(m.sel.Len()))
	if len(m.history) > historySize {
		m.history = m.history[1:]
	}
}

func splitNames(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	title := "Audience"
	if f := m.view.Focus(); len(f) > 0 {
		title += " · " + strings.Join(f, ", ")
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("no audience segments"))
		b.WriteString("\n")
	}
	for i, row := range m.rows {
		b.WriteString(m.renderRow(i, row))
		b.WriteString("\n")
	}

	lbl := labels.Project(m.sel, m.snap.Labels)
	b.WriteString(summaryStyle.Render(lbl.Summary()))
	b.WriteString("\n")
	b.WriteString(m.renderStats())
	b.WriteString("\n")

	if m.focusing {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))

	return containerStyle.Render(b.String())
}

func (m Model) renderRow(i int, row view.Row) string {
	cursor := "  "
	if i == m.cursor {
		cursor = cursorStyle.Render("> ")
	}
	box := "[ ]"
	if row.Checked {
		box = checkedStyle.Render("[x]")
	}
	arrow := " "
	if row.HasChildren {
		arrow = "▸"
		if row.Expanded {
			arrow = "▾"
		}
	}
	label := row.Label
	if !row.Selectable() {
		label = dimStyle.Render(label)
	}
	return fmt.Sprintf("%s%s%s %s %s", cursor, strings.Repeat("  ", row.Depth), arrow, box, label)
}

// renderStats shows selected nodes as a share of the tree and a sparkline
// of the selection size over the session.
func (m Model) renderStats() string {
	total := m.snap.Tree.Count()
	var all int
	for _, n := range total {
		all += n
	}
	ratio := 0.0
	if all > 0 {
		ratio = float64(m.sel.Len()) / float64(all)
	}
	stats := fmt.Sprintf("%s %s", m.coverage.ViewAs(ratio), dimStyle.Render(fmt.Sprintf("%d/%d", m.sel.Len(), all)))
	if len(m.history) == 0 {
		return stats
	}
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range m.history {
		spark.Push(v)
	}
	spark.Draw()
	return lipgloss.JoinHorizontal(lipgloss.Center, stats, "  ", spark.View())
}

// Run shows the selector until the user saves or quits. ok is false when
// the user quit without saving.
func Run(ctx context.Context, snap *catalog.Snapshot, initial selection.State, opts ...tea.ProgramOption) (selection.State, bool, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(New(snap, initial), opts...).Run()
	if err != nil {
		return initial, false, fmt.Errorf("running selector: %w", err)
	}
	m, ok := final.(Model)
	if !ok || !m.Submitted() {
		return initial, false, nil
	}
	return m.Selection(), true, nil
}
