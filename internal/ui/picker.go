package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent        = lipgloss.Color("205")
	selectedTitle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(accent).
			Foreground(accent).
			Padding(0, 0, 0, 1)
)

// pickItem keeps the original index so filtering does not change what is
// returned.
type pickItem struct {
	index int
	label string
}

func (i pickItem) Title() string       { return i.label }
func (i pickItem) Description() string { return "" }
func (i pickItem) FilterValue() string { return i.label }

type pickModel struct {
	list     list.Model
	chosen   int
	quitting bool
}

func newPickModel(prompt string, items []string) pickModel {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)
	delegate.Styles.SelectedTitle = selectedTitle

	listItems := make([]list.Item, len(items))
	for i, it := range items {
		listItems[i] = pickItem{index: i, label: it}
	}

	l := list.New(listItems, delegate, 0, 0)
	l.Title = prompt
	l.SetShowStatusBar(false)

	return pickModel{list: l, chosen: -1}
}

func (m pickModel) Init() tea.Cmd { return nil }

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if it, ok := m.list.SelectedItem().(pickItem); ok {
				m.chosen = it.index
			}
			return m, tea.Quit
		case "esc", "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickModel) View() string {
	if m.quitting || m.chosen >= 0 {
		return ""
	}
	return m.list.View()
}

func selectTUI(prompt string, items []string) (int, error) {
	final, err := tea.NewProgram(newPickModel(prompt, items), tea.WithAltScreen()).Run()
	if err != nil {
		return -1, fmt.Errorf("running picker: %w", err)
	}
	m := final.(pickModel)
	if m.chosen < 0 {
		return -1, ErrCancelled
	}
	return m.chosen, nil
}

type inputModel struct {
	input    textinput.Model
	done     bool
	quitting bool
}

func newInputModel(prompt string) inputModel {
	ti := textinput.New()
	ti.Prompt = prompt + " > "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(accent)
	ti.CharLimit = 200
	ti.Focus()
	return inputModel{input: ti}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done || m.quitting {
		return ""
	}
	return m.input.View() + "\n"
}

func inputTUI(prompt string) (string, error) {
	final, err := tea.NewProgram(newInputModel(prompt)).Run()
	if err != nil {
		return "", fmt.Errorf("running prompt: %w", err)
	}
	m := final.(inputModel)
	if m.quitting {
		return "", ErrCancelled
	}
	return firstLine(m.input.Value())
}
