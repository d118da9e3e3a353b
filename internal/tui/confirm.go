package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type confirmKeys struct {
	Yes key.Binding
	No  key.Binding
}

var confirmKeyMap = confirmKeys{
	Yes: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
	No:  key.NewBinding(key.WithKeys("n", "N", "esc", "q", "ctrl+c", "enter"), key.WithHelp("n", "no")),
}

// ConfirmModel is a single yes/no question. Anything but "y" declines.
type ConfirmModel struct {
	Prompt    string
	Confirmed bool
	done      bool
}

// NewConfirmModel creates a confirmation prompt
func NewConfirmModel(prompt string) ConfirmModel {
	return ConfirmModel{Prompt: prompt}
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, confirmKeyMap.Yes):
			m.Confirmed = true
			m.done = true
			return m, tea.Quit
		case key.Matches(msg, confirmKeyMap.No):
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ConfirmModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s ", WarningStyle.Render(m.Prompt), MutedStyle.Render("[y/N]"))
}

// Confirm asks prompt on the terminal and reports whether the user said yes
func Confirm(prompt string) (bool, error) {
	final, err := tea.NewProgram(NewConfirmModel(prompt)).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return final.(ConfirmModel).Confirmed, nil
}
