// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// State represents the current application state for display.
type State string

const (
	StateReady  State = "ready"
	StateBusy   State = "busy"
	StateNotice State = "notice"
	StateError  State = "error"
)

// Bar displays application status and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	spinner spinner.Model
	state   State
	message string
	hints   []key.Binding
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = s.Subtitle

	return &Bar{
		styles:  s,
		keymap:  km,
		spinner: sp,
		state:   StateReady,
		width:   80,
	}
}

// Init initialises the status bar.
func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update advances the spinner while busy.
func (s *Bar) Update(msg tea.Msg) (*Bar, tea.Cmd) {
	tick, ok := msg.(spinner.TickMsg)
	if !ok || s.state != StateBusy {
		return s, nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(tick)
	return s, cmd
}

// Height is the number of lines the bar occupies.
const Height = 1

// View renders the status bar on a single line of the bar's width. Hints
// are dropped when they do not fit next to the message, and an overlong
// message is truncated.
func (s *Bar) View() string {
	style := s.styles.StatusBar
	inner := max(1, s.width-style.GetHorizontalFrameSize())

	left := s.renderLeft()
	right := s.renderRight()
	padding := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		right = ""
		if lipgloss.Width(left) > inner {
			left = ansi.Truncate(left, inner, "…")
		}
		padding = inner - lipgloss.Width(left)
	}

	return style.Width(s.width).MaxHeight(Height).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	switch s.state {
	case StateBusy:
		return s.spinner.View() + " " + s.styles.Normal.Render(s.message)
	case StateNotice:
		return s.styles.Success.Render(s.message)
	case StateError:
		if s.message != "" {
			return s.styles.Error.Render(fmt.Sprintf("Error: %s", s.message))
		}
		return s.styles.Error.Render("Error")
	case StateReady:
		if s.message != "" {
			return s.styles.Muted.Render(s.message)
		}
	}
	return s.styles.Muted.Render("Ready")
}

func (s *Bar) renderRight() string {
	bindings := s.hints
	if len(bindings) == 0 {
		bindings = s.keymap.ShortHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetBusy shows message with a spinner. The returned command starts it.
func (s *Bar) SetBusy(message string) tea.Cmd {
	wasBusy := s.state == StateBusy
	s.state = StateBusy
	s.message = message
	if wasBusy {
		return nil
	}
	return s.spinner.Tick
}

// SetReady returns to the idle state with an optional message.
func (s *Bar) SetReady(message string) {
	s.state = StateReady
	s.message = message
}

// SetError shows err.
func (s *Bar) SetError(err error) {
	if err == nil {
		s.SetReady("")
		return
	}
	s.state = StateError
	s.message = err.Error()
}

// ShowEvent shows a one-shot notice event. Other events are ignored.
func (s *Bar) ShowEvent(ev domain.Event) {
	if ev.Kind != domain.EventNotice {
		return
	}
	if ev.Err != nil {
		s.state = StateError
		s.message = fmt.Sprintf("%s: %v", ev.Message, ev.Err)
		return
	}
	s.state = StateNotice
	s.message = ev.Message
}

// SetHints replaces the keybinding hints. Nil restores the defaults.
func (s *Bar) SetHints(bindings []key.Binding) {
	s.hints = bindings
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}
