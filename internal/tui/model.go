// internal/tui/model.go
package tui

import (
	"context"
	"errors"
	"fmt"
	"libracat/internal/catalog"
	"libracat/internal/render"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeEdit
	modeDelete
	modeChart
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle  = lipgloss.NewStyle().Width(12)
)

type itemsMsg struct{ items []*catalog.Item }

type popularityMsg struct{ entries []catalog.PopularityEntry }

type doneMsg struct {
	verb string
	item *catalog.Item
}

type errMsg struct{ err error }

// Model is the catalog window: a table of items with forms for adding,
// editing and deleting, and a popularity chart.
type Model struct {
	ctx context.Context
	svc catalog.Service

	table table.Model
	items []*catalog.Item
	chart []catalog.PopularityEntry

	mode    mode
	inputs  []textinput.Model
	labels  []string
	focus   int
	editing int64

	status string
	err    error
	width  int
}

func New(ctx context.Context, svc catalog.Service) Model {
	columns := make([]table.Column, len(render.Columns))
	widths := []int{5, 28, 20, 10, 6, 5, 10}
	for i, title := range render.Columns {
		columns[i] = table.Column{Title: title, Width: widths[i]}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	return Model{
		ctx:   ctx,
		svc:   svc,
		table: t,
		width: 80,
	}
}

// Run starts the program on the terminal and blocks until the user quits.
func Run(ctx context.Context, svc catalog.Service) error {
	_, err := tea.NewProgram(New(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return m.loadItems()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case itemsMsg:
		m.items = msg.items
		rows := make([]table.Row, len(m.items))
		for i, it := range m.items {
			rows[i] = table.Row(render.Row(it))
		}
		m.table.SetRows(rows)
		if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
			m.table.SetCursor(len(rows) - 1)
		}
		return m, nil

	case popularityMsg:
		m.chart = msg.entries
		m.mode = modeChart
		return m, nil

	case doneMsg:
		m.err = nil
		m.status = fmt.Sprintf("%s %q (ID %d)", msg.verb, msg.item.Title, msg.item.ID)
		return m, m.loadItems()

	case errMsg:
		m.err = msg.err
		m.status = ""
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeAdd, modeEdit, modeDelete:
			return m.updateForm(msg)
		case modeChart:
			switch msg.String() {
			case "p", "esc":
				m.mode = modeBrowse
			case "q":
				return m, tea.Quit
			}
			return m, nil
		default:
			return m.updateBrowse(msg)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		return m, m.loadItems()
	case "a":
		m.openForm(modeAdd, 0, []string{"Title", "Author"}, []string{"", ""})
		return m, nil
	case "d":
		m.openForm(modeDelete, 0, []string{"Title"}, []string{""})
		return m, nil
	case "p":
		return m, m.loadPopularity()
	case "e", "v":
		it := m.selected()
		if it == nil {
			m.err = errors.New("no item selected")
			return m, nil
		}
		if !it.IsBook() {
			m.err = fmt.Errorf("%q: %w", it.Title, catalog.ErrNotABook)
			return m, nil
		}
		if msg.String() == "v" {
			return m, m.viewBook(it.ID)
		}
		m.openForm(modeEdit, it.ID,
			[]string{"Title", "Author", "Page count", "Year"},
			[]string{it.Title, it.Author, strconv.Itoa(it.PageCount), strconv.Itoa(it.Year)})
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeForm()
		return m, nil
	case "tab", "down":
		m.setFocus((m.focus + 1) % len(m.inputs))
		return m, nil
	case "shift+tab", "up":
		m.setFocus((m.focus + len(m.inputs) - 1) % len(m.inputs))
		return m, nil
	case "enter":
		cmd, err := m.submit()
		if err != nil {
			m.err = err
			return m, nil
		}
		m.closeForm()
		return m, cmd
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// submit turns the form into a service call. Malformed numbers are
// reported without leaving the form.
func (m *Model) submit() (tea.Cmd, error) {
	values := make([]string, len(m.inputs))
	for i, in := range m.inputs {
		values[i] = strings.TrimSpace(in.Value())
	}

	switch m.mode {
	case modeAdd:
		in := catalog.BookInput{Title: values[0], Author: values[1]}
		return m.mutate("added", func(ctx context.Context) (*catalog.Item, error) {
			return m.svc.AddBook(ctx, in)
		}), nil

	case modeEdit:
		pages, err := strconv.Atoi(values[2])
		if err != nil {
			return nil, fmt.Errorf("page count must be a whole number, got %q", values[2])
		}
		year, err := strconv.Atoi(values[3])
		if err != nil {
			return nil, fmt.Errorf("year must be a whole number, got %q", values[3])
		}
		id := m.editing
		edit := catalog.BookEdit{Title: values[0], Author: values[1], PageCount: pages, Year: year}
		return m.mutate("edited", func(ctx context.Context) (*catalog.Item, error) {
			return m.svc.EditBook(ctx, id, edit)
		}), nil

	case modeDelete:
		title := values[0]
		return m.mutate("deleted", func(ctx context.Context) (*catalog.Item, error) {
			return m.svc.DeleteByTitle(ctx, title)
		}), nil
	}
	return nil, nil
}

func (m *Model) openForm(md mode, id int64, labels, values []string) {
	m.mode = md
	m.editing = id
	m.labels = labels
	m.inputs = make([]textinput.Model, len(labels))
	for i := range labels {
		ti := textinput.New()
		ti.CharLimit = 120
		ti.Width = 40
		ti.SetValue(values[i])
		m.inputs[i] = ti
	}
	m.err = nil
	m.setFocus(0)
	m.table.Blur()
}

func (m *Model) closeForm() {
	m.mode = modeBrowse
	m.inputs = nil
	m.labels = nil
	m.editing = 0
	m.table.Focus()
}

func (m *Model) setFocus(i int) {
	m.focus = i
	for j := range m.inputs {
		if j == i {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

func (m Model) selected() *catalog.Item {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.items) {
		return nil
	}
	return m.items[c]
}

func (m Model) loadItems() tea.Cmd {
	return func() tea.Msg {
		items, err := m.svc.ListItems(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		return itemsMsg{items}
	}
}

func (m Model) loadPopularity() tea.Cmd {
	return func() tea.Msg {
		entries, err := m.svc.Popularity(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		return popularityMsg{entries}
	}
}

func (m Model) viewBook(id int64) tea.Cmd {
	return m.mutate("viewed", func(ctx context.Context) (*catalog.Item, error) {
		return m.svc.ViewBook(ctx, id)
	})
}

func (m Model) mutate(verb string, call func(context.Context) (*catalog.Item, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		item, err := call(ctx)
		if err != nil {
			return errMsg{err}
		}
		return doneMsg{verb: verb, item: item}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("libracat"))
	b.WriteString("\n\n")

	switch m.mode {
	case modeChart:
		b.WriteString(titleStyle.Render("Popularity"))
		b.WriteString("\n")
		b.WriteString(render.Chart(m.chart, m.width/2))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("p/esc: back • q: quit"))
		return b.String()

	case modeAdd, modeEdit, modeDelete:
		heading := map[mode]string{modeAdd: "Add book", modeEdit: "Edit book", modeDelete: "Delete by title"}[m.mode]
		b.WriteString(titleStyle.Render(heading))
		b.WriteString("\n")
		for i, in := range m.inputs {
			b.WriteString(labelStyle.Render(m.labels[i]))
			b.WriteString(in.View())
			b.WriteString("\n")
		}
		b.WriteString(m.footer())
		b.WriteString(helpStyle.Render("tab: next field • enter: save • esc: cancel"))
		return b.String()
	}

	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(m.footer())
	b.WriteString(helpStyle.Render("a: add book • e: edit • d: delete • v: view • p: popularity • r: refresh • q: quit"))
	return b.String()
}

func (m Model) footer() string {
	switch {
	case m.err != nil:
		return errorStyle.Render("error: "+m.err.Error()) + "\n"
	case m.status != "":
		return statusStyle.Render(m.status) + "\n"
	}
	return "\n"
}
