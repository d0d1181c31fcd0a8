package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/styles"
)

func TestNewField(t *testing.T) {
	f := NewField(styles.DefaultStyles(), "Content", "document or text")

	require.NotNil(t, f)
	assert.Equal(t, "", f.Value())
	assert.False(t, f.Focused())
}

func TestNewField_NilStyles(t *testing.T) {
	f := NewField(nil, "Name", "")

	require.NotNil(t, f)
	assert.NotNil(t, f.styles)
}

func TestField_IgnoresKeysWhenBlurred(t *testing.T) {
	f := NewField(nil, "Name", "")

	f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	assert.Equal(t, "", f.Value())
}

func TestField_TypesWhenFocused(t *testing.T) {
	f := NewField(nil, "Name", "")
	f.Focus()

	f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g', 'o'}})
	assert.Equal(t, "go", f.Value())

	f.Blur()
	assert.False(t, f.Focused())
}

func TestField_View(t *testing.T) {
	f := NewField(nil, "Keywords", "comma separated")

	assert.Contains(t, f.View(), "Keywords")
	assert.Contains(t, f.View(), "comma separated")

	f.SetValue("go, sql")
	assert.Contains(t, f.View(), "go, sql")
}

func TestField_Reset(t *testing.T) {
	f := NewField(nil, "Name", "")
	f.SetValue("x")

	f.Reset()
	assert.Equal(t, "", f.Value())
}

func TestField_SetWidth(t *testing.T) {
	f := NewField(nil, "Name", "")

	f.SetWidth(10)
	assert.Equal(t, 20, f.textinput.Width)

	f.SetWidth(100)
	assert.Equal(t, 88, f.textinput.Width)
}
