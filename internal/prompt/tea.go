package prompt

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

// Terminal asks questions with bubbletea programs on an interactive
// terminal.
type Terminal struct {
	In       io.Reader
	Out      io.Writer
	PageSize int
}

func (t *Terminal) options(ctx context.Context) []tea.ProgramOption {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}
	return opts
}

// Confirm defaults to no on enter. Escape declines.
func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	final, err := tea.NewProgram(confirmModel{prompt: question}, t.options(ctx)...).Run()
	if err != nil {
		return false, err
	}
	return final.(confirmModel).confirmed, nil
}

func (t *Terminal) Select(ctx context.Context, title string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, ErrCancelled
	}
	m := newSelectModel(title, options, t.PageSize)
	final, err := tea.NewProgram(m, t.options(ctx)...).Run()
	if err != nil {
		return -1, err
	}
	sm := final.(selectModel)
	if sm.cancelled || !sm.done {
		return -1, ErrCancelled
	}
	return sm.cursor, nil
}

type confirmModel struct {
	prompt    string
	confirmed bool
	done      bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.confirmed, m.done = true, true
		return m, tea.Quit
	case "n", "N", "enter", "ctrl+c", "q", "esc":
		m.confirmed, m.done = false, true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s ", m.prompt, mutedStyle.Render("[y/N]"))
}

type selectModel struct {
	title     string
	options   []string
	pageSize  int
	cursor    int
	done      bool
	cancelled bool
}

func newSelectModel(title string, options []string, pageSize int) selectModel {
	if pageSize <= 0 {
		pageSize = len(options)
	}
	return selectModel{title: title, options: options, pageSize: pageSize}
}

func (m selectModel) Init() tea.Cmd { return nil }

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	last := len(m.options) - 1
	switch key.String() {
	case "up", "k":
		m.cursor = clamp(m.cursor-1, 0, last)
	case "down", "j":
		m.cursor = clamp(m.cursor+1, 0, last)
	case "right", "l", "n", "pgdown":
		m.cursor = clamp(m.cursor+m.pageSize, 0, last)
	case "left", "h", "p", "pgup":
		m.cursor = clamp(m.cursor-m.pageSize, 0, last)
	case "enter":
		m.done = true
		return m, tea.Quit
	case "ctrl+c", "esc", "q":
		m.cancelled, m.done = true, true
		return m, tea.Quit
	}
	return m, nil
}

func (m selectModel) View() string {
	if m.done {
		return ""
	}
	page := Paginate(m.options, m.pageSize, PageOf(m.cursor, m.pageSize), m.cursor)
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	for i, item := range page.Items {
		if i == page.Cursor() {
			b.WriteString(accentStyle.Render("> " + item))
		} else {
			b.WriteString("  " + item)
		}
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(strings.TrimSuffix(footer(page), " > ")))
	b.WriteString("\n")
	return b.String()
}
