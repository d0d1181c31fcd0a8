// Package input provides text input components for the TUI.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/styles"
)

// Field is a labelled single-line input used for filters and prompts.
// It starts blurred; views focus it when the user starts typing.
type Field struct {
	textinput textinput.Model
	styles    *styles.Styles
	label     string
}

// NewField creates a labelled input.
func NewField(s *styles.Styles, label, placeholder string) *Field {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 256
	ti.Width = 40

	return &Field{
		textinput: ti,
		styles:    s,
		label:     label,
	}
}

// Update forwards messages to the input while it is focused.
func (f *Field) Update(msg tea.Msg) (*Field, tea.Cmd) {
	if !f.textinput.Focused() {
		return f, nil
	}
	var cmd tea.Cmd
	f.textinput, cmd = f.textinput.Update(msg)
	return f, cmd
}

// View renders the label and the input.
func (f *Field) View() string {
	label := f.styles.Subtitle.Render(f.label + ": ")
	if !f.textinput.Focused() {
		value := f.textinput.Value()
		if value == "" {
			value = f.styles.Muted.Render(f.textinput.Placeholder)
		}
		return label + value
	}
	//nolint:misspell // lipgloss.Center is the correct constant from the library
	return lipgloss.JoinHorizontal(lipgloss.Center, label, f.styles.InputField.Render(f.textinput.View()))
}

// Value returns the current input value.
func (f *Field) Value() string {
	return f.textinput.Value()
}

// SetValue sets the input value.
func (f *Field) SetValue(value string) {
	f.textinput.SetValue(value)
}

// Focus starts editing.
func (f *Field) Focus() tea.Cmd {
	return f.textinput.Focus()
}

// Blur stops editing.
func (f *Field) Blur() {
	f.textinput.Blur()
}

// Focused returns whether the input is being edited.
func (f *Field) Focused() bool {
	return f.textinput.Focused()
}

// SetWidth sets the width of the input area.
func (f *Field) SetWidth(width int) {
	f.textinput.Width = max(20, width-lipgloss.Width(f.label)-8)
}

// Reset clears the input.
func (f *Field) Reset() {
	f.textinput.Reset()
}
