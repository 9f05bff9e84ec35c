package view

import (
	tea "github.com/charmbracelet/bubbletea"
)

// View is a console screen. The root model routes messages to the active one
// and renders its Title and ShortHelp in the footer.
type View interface {
	tea.Model
	Title() string
	ShortHelp() string
}

// CommonModel holds the terminal size shared by screens.
type CommonModel struct {
	Width  int
	Height int
}

// BackMsg asks the root model to return to the menu.
type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}
