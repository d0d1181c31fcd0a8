package menu

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/privatetune/internal/core/domain"
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestNewView(t *testing.T) {
	view := NewView(styles.DefaultStyles())

	require.NotNil(t, view)
	assert.Len(t, view.items, 7)
	assert.Equal(t, 0, view.Selected())
	assert.Nil(t, view.Init())
}

func TestNewView_NilStyles(t *testing.T) {
	view := NewView(nil)
	assert.NotNil(t, view.styles)
}

func TestView_Update_WindowSize(t *testing.T) {
	view := NewView(nil)

	updated, cmd := view.Update(tea.WindowSizeMsg{Width: 100, Height: 50})

	assert.Equal(t, view, updated)
	assert.Nil(t, cmd)
	assert.True(t, view.ready)
	assert.Equal(t, 100, view.width)
}

func TestView_Update_Navigate(t *testing.T) {
	view := NewView(nil)

	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	view.Update(runeKey('j'))
	assert.Equal(t, 2, view.Selected())

	view.Update(runeKey('k'))
	assert.Equal(t, 1, view.Selected())

	for range 10 {
		view.Update(runeKey('j'))
	}
	assert.Equal(t, 6, view.Selected())

	for range 10 {
		view.Update(tea.KeyMsg{Type: tea.KeyUp})
	}
	assert.Equal(t, 0, view.Selected())
}

func TestView_Update_EnterOpensView(t *testing.T) {
	tests := []struct {
		index int
		want  messages.ViewType
	}{
		{0, messages.ViewFragments},
		{1, messages.ViewItems},
		{2, messages.ViewDataset},
		{3, messages.ViewFineTune},
		{4, messages.ViewJobs},
		{5, messages.ViewHelp},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			view := NewView(nil)
			view.selected = tt.index

			_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
			require.NotNil(t, cmd)
			changed, ok := cmd().(messages.ViewChanged)
			require.True(t, ok)
			assert.Equal(t, tt.want, changed.View)
		})
	}
}

func TestView_Update_NumberShortcut(t *testing.T) {
	view := NewView(nil)

	_, cmd := view.Update(runeKey('3'))
	require.NotNil(t, cmd)
	changed, ok := cmd().(messages.ViewChanged)
	require.True(t, ok)
	assert.Equal(t, messages.ViewDataset, changed.View)
	assert.Equal(t, 2, view.Selected())
}

func TestView_Update_Quit(t *testing.T) {
	view := NewView(nil)
	view.selected = 6

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = view.Update(runeKey('q'))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestView_View_NotReady(t *testing.T) {
	view := NewView(nil)
	assert.Contains(t, view.View(), "Initialising")
}

func TestView_View_Overview(t *testing.T) {
	view := NewView(nil)
	view.SetDimensions(100, 40)
	view.SetOverview(Overview{
		Fragments:  12,
		Selected:   3,
		ActiveItem: "basics",
		Stats:      domain.DatasetStats{Total: 8, Untuned: 5, Scored: 2},
		Jobs:       1,
	})

	output := view.View()
	assert.Contains(t, output, "PrivateTune")
	assert.Contains(t, output, "Knowledge points")
	assert.Contains(t, output, "12 loaded, 3 selected")
	assert.Contains(t, output, "basics")
	assert.Contains(t, output, "8 annotations, 5 untuned, 2 scored")
	assert.Contains(t, output, string(domain.StateIdle))
	assert.Equal(t, domain.StateIdle, view.Overview().Generation)
}

func TestView_View_NoActiveItem(t *testing.T) {
	view := NewView(nil)
	view.SetDimensions(100, 40)

	assert.Contains(t, view.View(), "none")
}
