// Package menu provides the main navigation menu view for the TUI.
package menu

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// Item represents a single menu option.
type Item struct {
	Label string
	Hint  string
	View  messages.ViewType
	Quit  bool
}

// Overview summarises the workspace under the menu.
type Overview struct {
	Fragments  int
	Selected   int
	ActiveItem string
	Stats      domain.DatasetStats
	Generation domain.GenerationState
	Jobs       int
}

// View represents the main menu view.
type View struct {
	styles   *styles.Styles
	items    []Item
	overview Overview
	selected int
	width    int
	height   int
	ready    bool
}

// NewView creates a new menu view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &View{
		styles: s,
		items: []Item{
			{Label: "Knowledge points", Hint: "filter, weight and select fragments", View: messages.ViewFragments},
			{Label: "Training items", Hint: "saved selections and templates", View: messages.ViewItems},
			{Label: "Dataset", Hint: "score and edit generated annotations", View: messages.ViewDataset},
			{Label: "Fine-tune", Hint: "estimate cost and submit", View: messages.ViewFineTune},
			{Label: "Jobs", Hint: "monitor fine-tuning jobs", View: messages.ViewJobs},
			{Label: "Help", View: messages.ViewHelp},
			{Label: "Quit", Quit: true},
		},
		width:  80,
		height: 24,
	}
}

// Init initialises the menu view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the menu view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "up", "k":
			if v.selected > 0 {
				v.selected--
			}
		case "down", "j":
			if v.selected < len(v.items)-1 {
				v.selected++
			}
		case "enter":
			return v, v.choose(v.selected)
		case "1", "2", "3", "4", "5":
			v.selected = int(key[0] - '1')
			return v, v.choose(v.selected)
		case "q":
			return v, tea.Quit
		}
	}

	return v, nil
}

func (v *View) choose(i int) tea.Cmd {
	item := v.items[i]
	if item.Quit {
		return tea.Quit
	}
	return func() tea.Msg {
		return messages.ViewChanged{View: item.View}
	}
}

// View renders the menu.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("PrivateTune"))
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render("Knowledge points to fine-tuned models"))
	b.WriteString("\n\n")

	for i, item := range v.items {
		label := item.Label
		if i < 5 {
			label = fmt.Sprintf("%d  %s", i+1, label)
		} else {
			label = "   " + label
		}
		if i == v.selected {
			b.WriteString(v.styles.Selected.Render("> " + label))
			if item.Hint != "" {
				b.WriteString(v.styles.Muted.Render("  " + item.Hint))
			}
		} else {
			b.WriteString("  " + v.styles.Normal.Render(label))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.renderOverview())
	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("[j/k] Navigate  [1-5/Enter] Open  [q] Quit"))
	return b.String()
}

func (v *View) renderOverview() string {
	o := v.overview
	active := o.ActiveItem
	if active == "" {
		active = "none"
	}
	lines := []string{
		fmt.Sprintf("Fragments   %d loaded, %d selected", o.Fragments, o.Selected),
		fmt.Sprintf("Item        %s", active),
		fmt.Sprintf("Dataset     %d annotations, %d untuned, %d scored", o.Stats.Total, o.Stats.Untuned, o.Stats.Scored),
		fmt.Sprintf("Generation  %s", o.Generation),
		fmt.Sprintf("Jobs        %d", o.Jobs),
	}
	return v.styles.Panel.Render(strings.Join(lines, "\n"))
}

// SetOverview replaces the workspace summary.
func (v *View) SetOverview(o Overview) {
	if o.Generation == "" {
		o.Generation = domain.StateIdle
	}
	v.overview = o
}

// Overview returns the workspace summary.
func (v *View) Overview() Overview {
	return v.overview
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Selected returns the currently selected index.
func (v *View) Selected() int {
	return v.selected
}
