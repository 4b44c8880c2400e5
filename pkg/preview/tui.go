package preview

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/insider-risk-index/pkg/feed"
)

// ViewMode represents the current view mode
type ViewMode int

// View modes for the preview TUI
const (
	ListViewMode ViewMode = iota
	DetailViewMode
	XMLViewMode
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12")).Bold(true)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Model represents the Bubble Tea model for the preview TUI
type Model struct {
	items         []feed.Item
	kind          string
	gen           *feed.Generator
	now           func() time.Time
	cursor        int
	viewMode      ViewMode
	width         int
	height        int
	selectedIndex int // item shown in the detail and XML views
}

// NewModel creates a new preview model
func NewModel(items []feed.Item, kind string, gen *feed.Generator) Model {
	return Model{
		items:         items,
		kind:          kind,
		gen:           gen,
		now:           time.Now,
		viewMode:      ListViewMode,
		selectedIndex: -1,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.viewMode {
		case ListViewMode:
			return m.updateListView(msg)
		case DetailViewMode, XMLViewMode:
			return m.updateDetailView(msg)
		}
	}

	return m, nil
}

func (m Model) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "enter":
		m.selectedIndex = m.cursor
		m.viewMode = DetailViewMode

	case "x":
		m.selectedIndex = m.cursor
		m.viewMode = XMLViewMode
	}

	return m, nil
}

func (m Model) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.viewMode = ListViewMode

	case "x":
		if m.viewMode == DetailViewMode {
			m.viewMode = XMLViewMode
		} else {
			m.viewMode = DetailViewMode
		}
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	switch m.viewMode {
	case ListViewMode:
		return m.renderListView()
	case DetailViewMode:
		return m.renderDetailView()
	case XMLViewMode:
		return m.renderXMLView()
	}
	return ""
}

// visibleRange keeps the cursor roughly centred when the list is taller than the window
func (m Model) visibleRange() (start, end int) {
	end = len(m.items)
	if m.height <= 0 {
		return 0, end
	}

	maxVisible := m.height - 6 // header, footer and padding
	if maxVisible <= 0 || maxVisible >= len(m.items) {
		return 0, end
	}

	start = max(m.cursor-maxVisible/2, 0)
	end = start + maxVisible
	if end > len(m.items) {
		end = len(m.items)
		start = max(end-maxVisible, 0)
	}
	return start, end
}

func (m Model) renderListView() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("Content Preview - %s (%d items)", m.kind, len(m.items))))
	b.WriteString("\n\n")

	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		line := FormatCompactListItem(i, m.items[i])
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("→ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("↑/↓ or j/k: navigate • enter: view details • x: XML view • q: quit"))

	return b.String()
}

func (m Model) selected() (feed.Item, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.items) {
		return feed.Item{}, false
	}
	return m.items[m.selectedIndex], true
}

func (m Model) renderDetailView() string {
	item, ok := m.selected()
	if !ok {
		return "No item selected"
	}

	var b strings.Builder
	b.WriteString(FormatDetailedItem(m.gen, item, m.now()))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("esc: back to list • x: toggle XML view • q: quit"))

	return b.String()
}

func (m Model) renderXMLView() string {
	item, ok := m.selected()
	if !ok {
		return "No item selected"
	}

	content := FormatXMLItem(m.gen, item)
	if m.width > 0 {
		content = lipgloss.NewStyle().Width(m.width).Render(content)
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("RSS Item Preview"))
	b.WriteString("\n\n")
	b.WriteString(content)
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("esc: back to list • x: toggle detail view • q: quit"))

	return b.String()
}

// Run starts the Bubble Tea program
func Run(items []feed.Item, kind string, gen *feed.Generator) error {
	if len(items) == 0 {
		fmt.Println("No items to preview")
		return nil
	}

	p := tea.NewProgram(NewModel(items, kind, gen), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
