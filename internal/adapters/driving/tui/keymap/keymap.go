// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	// Quit exits the application.
	Quit key.Binding

	// Help shows the help view.
	Help key.Binding

	// Back returns to the previous view.
	Back key.Binding

	// Up navigates up in a list.
	Up key.Binding

	// Down navigates down in a list.
	Down key.Binding

	// Select confirms a selection.
	Select key.Binding

	// Toggle flips selection of the current row.
	Toggle key.Binding

	// Refresh reloads the view from the backend.
	Refresh key.Binding

	// Generate submits a generation job.
	Generate key.Binding

	// Save persists the current view's state.
	Save key.Binding

	// Edit opens the editor on the current row.
	Edit key.Binding

	// Paint starts or ends drag-painting scores.
	Paint key.Binding

	// Filter focuses the content filter.
	Filter key.Binding

	// AutoRefresh toggles periodic job refresh.
	AutoRefresh key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Generate: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "generate"),
		),
		Save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit"),
		),
		Paint: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "paint scores"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		AutoRefresh: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "auto-refresh"),
		),
	}
}

// ShortHelp returns a short list of keybindings for the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

// FragmentsHelp returns keybindings for the fragments view.
func (k *KeyMap) FragmentsHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Filter, k.Generate, k.Back}
}

// DatasetHelp returns keybindings for the dataset view.
func (k *KeyMap) DatasetHelp() []key.Binding {
	return []key.Binding{k.Paint, k.Edit, k.Save, k.Back}
}

// JobsHelp returns keybindings for the jobs view.
func (k *KeyMap) JobsHelp() []key.Binding {
	return []key.Binding{k.Select, k.Refresh, k.AutoRefresh, k.Back}
}

// FullHelp returns the full list of keybindings for the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Toggle},
		{k.Filter, k.Generate, k.Save, k.Edit, k.Paint},
		{k.Refresh, k.AutoRefresh, k.Back},
		{k.Help, k.Quit},
	}
}

// Matches checks if a key string matches a binding.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
