// Package list provides list navigation components for the TUI.
package list

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Cursor tracks the selected row of a list and the window of rows
// that fits on screen. The list content itself belongs to the view.
type Cursor struct {
	length   int
	selected int
	offset   int
	visible  int
}

// NewCursor creates a cursor showing visible rows at a time.
func NewCursor(visible int) *Cursor {
	return &Cursor{visible: max(1, visible)}
}

// Update moves the cursor on up/down, page and home/end keys.
func (c *Cursor) Update(msg tea.Msg) (*Cursor, bool) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, false
	}
	before := c.selected
	switch keyMsg.String() {
	case "up", "k":
		c.MoveUp()
	case "down", "j":
		c.MoveDown()
	case "pgup":
		c.SetSelected(c.selected - c.visible)
	case "pgdown":
		c.SetSelected(c.selected + c.visible)
	case "home":
		c.SetSelected(0)
	case "end":
		c.SetSelected(c.length - 1)
	}
	return c, c.selected != before
}

// SetLength changes the number of rows, keeping the selection in range.
func (c *Cursor) SetLength(n int) {
	c.length = max(0, n)
	c.SetSelected(c.selected)
}

// Length returns the number of rows.
func (c *Cursor) Length() int {
	return c.length
}

// SetVisible changes how many rows fit on screen.
func (c *Cursor) SetVisible(n int) {
	c.visible = max(1, n)
	c.scroll()
}

// Selected returns the selected row, or -1 when the list is empty.
func (c *Cursor) Selected() int {
	if c.length == 0 {
		return -1
	}
	return c.selected
}

// SetSelected moves the cursor, clamped to the list.
func (c *Cursor) SetSelected(i int) {
	c.selected = max(0, min(i, c.length-1))
	c.scroll()
}

// MoveUp moves the selection up one row.
func (c *Cursor) MoveUp() {
	c.SetSelected(c.selected - 1)
}

// MoveDown moves the selection down one row.
func (c *Cursor) MoveDown() {
	c.SetSelected(c.selected + 1)
}

// Window returns the half-open range of rows to render.
func (c *Cursor) Window() (start, end int) {
	return c.offset, min(c.offset+c.visible, c.length)
}

// RowAt maps a screen row within the window to a list index, or -1.
func (c *Cursor) RowAt(screenRow int) int {
	i := c.offset + screenRow
	if screenRow < 0 || screenRow >= c.visible || i >= c.length {
		return -1
	}
	return i
}

func (c *Cursor) scroll() {
	if c.selected < c.offset {
		c.offset = c.selected
	}
	if c.selected >= c.offset+c.visible {
		c.offset = c.selected - c.visible + 1
	}
	c.offset = max(0, min(c.offset, c.length-c.visible))
}
