// Package items provides the training item registry view and the prompt template editor.
package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
)

// View lists saved training items.
type View struct {
	styles     *styles.Styles
	items      driving.TrainingItemService
	generation driving.GenerationService
	ctx        context.Context

	cursor *list.Cursor

	// confirmDelete holds the item awaiting a y/n answer.
	confirmDelete *domain.TrainingItem

	editor  textarea.Model
	editing bool

	err    error
	width  int
	height int
}

// NewView creates a training items view. generation may be nil, which
// disables the template editor.
func NewView(s *styles.Styles, items driving.TrainingItemService, generation driving.GenerationService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ta := textarea.New()
	ta.Placeholder = "Prompt template, " + domain.TemplatePlaceholder + " marks the fragment"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	return &View{
		styles:     s,
		items:      items,
		generation: generation,
		ctx:        context.Background(),
		cursor:     list.NewCursor(10),
		editor:     ta,
		width:      80,
		height:     24,
	}
}

// SetContext sets the context used for backend calls.
func (v *View) SetContext(ctx context.Context) {
	v.ctx = ctx
}

// Init refreshes the item list.
func (v *View) Init() tea.Cmd {
	v.cursor.SetLength(len(v.items.Items()))
	return v.refresh()
}

func (v *View) refresh() tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		return messages.ItemsLoaded{Err: v.items.Refresh(ctx)}
	}
}

// Editing reports whether the template editor or a confirmation has focus.
func (v *View) Editing() bool {
	return v.editing || v.confirmDelete != nil
}

// Update handles messages for the items view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.CoreEvent:
		if msg.Event.Kind == domain.EventTrainingItems {
			v.cursor.SetLength(len(v.items.Items()))
		}
		return v, nil

	case messages.ItemsLoaded:
		v.err = msg.Err
		v.cursor.SetLength(len(v.items.Items()))
		return v, nil

	case messages.ItemSaved:
		v.err = msg.Err
		v.cursor.SetLength(len(v.items.Items()))
		return v, nil

	case messages.ItemActivated:
		v.err = msg.Err
		return v, nil

	case messages.ItemDeleted:
		v.err = msg.Err
		v.cursor.SetLength(len(v.items.Items()))
		return v, nil

	case tea.KeyMsg:
		switch {
		case v.editing:
			return v.handleEditorKeys(msg)
		case v.confirmDelete != nil:
			return v.handleConfirmKeys(msg)
		default:
			return v.handleKeys(msg)
		}
	}

	if v.editing {
		var cmd tea.Cmd
		v.editor, cmd = v.editor.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *View) handleKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	current := v.current()
	switch msg.String() {
	case "esc":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case "enter":
		if current != nil {
			return v, v.activate(current.ID)
		}
	case "d":
		if current != nil {
			v.confirmDelete = current
		}
	case "t":
		if v.generation != nil {
			v.editor.SetValue(v.generation.Template())
			v.editing = true
			return v, v.editor.Focus()
		}
	case "r":
		return v, v.refresh()
	default:
		v.cursor.Update(msg)
	}
	return v, nil
}

func (v *View) handleConfirmKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	item := v.confirmDelete
	v.confirmDelete = nil
	if msg.String() != "y" {
		return v, nil
	}
	ctx := v.ctx
	return v, func() tea.Msg {
		return messages.ItemDeleted{ID: item.ID, Err: v.items.Delete(ctx, item.ID)}
	}
}

func (v *View) handleEditorKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		v.editing = false
		v.editor.Blur()
		return v, nil
	case "ctrl+s":
		template := v.editor.Value()
		if strings.TrimSpace(template) == "" {
			v.err = domain.ErrEmptyTemplate
			return v, nil
		}
		v.generation.SetTemplate(template)
		v.editing = false
		v.editor.Blur()
		v.err = nil
		return v, nil
	}
	var cmd tea.Cmd
	v.editor, cmd = v.editor.Update(msg)
	return v, cmd
}

func (v *View) activate(id int64) tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		return messages.ItemActivated{ID: id, Err: v.items.Activate(ctx, id)}
	}
}

func (v *View) current() *domain.TrainingItem {
	items := v.items.Items()
	i := v.cursor.Selected()
	if i < 0 || i >= len(items) {
		return nil
	}
	item := items[i]
	return &item
}

// View renders the items view.
func (v *View) View() string {
	if v.editing {
		return v.renderEditor()
	}

	var b strings.Builder
	items := v.items.Items()
	active := v.items.Active()

	b.WriteString(v.styles.Title.Render("Training items"))
	b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  %d saved", len(items))))
	b.WriteString("\n")
	switch {
	case v.confirmDelete != nil:
		b.WriteString(v.styles.Warning.Render(fmt.Sprintf("Delete %q? [y/N]", v.confirmDelete.Name)))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(v.err.Error()))
	}
	b.WriteString("\n\n")

	if len(items) == 0 {
		b.WriteString(v.styles.Muted.Render("No training items. Select knowledge points and press S to save one."))
		b.WriteString("\n")
	}

	start, end := v.cursor.Window()
	for i := start; i < end && i < len(items); i++ {
		item := items[i]
		marker := "  "
		if active != nil && active.ID == item.ID {
			marker = v.styles.Success.Render("● ")
		}
		resolved := len(v.items.ResolveKeys(item))
		line := fmt.Sprintf("%s%-24s %3d/%-3d points  %s", marker, item.Name, resolved, len(item.FragmentKeys),
			item.UpdatedAt.Local().Format("2006-01-02 15:04"))
		if i == v.cursor.Selected() {
			b.WriteString(v.styles.Selected.Render(">") + " " + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if current := v.current(); current != nil {
		b.WriteString("\n")
		b.WriteString(v.styles.Subtitle.Render("Template"))
		b.WriteString("\n")
		b.WriteString(v.styles.Panel.Render(current.PromptTemplate))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[enter] activate  [d] delete  [t] edit template  [r] refresh  [esc] back"))
	return b.String()
}

func (v *View) renderEditor() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Prompt template"))
	b.WriteString("\n")
	if v.err != nil {
		b.WriteString(v.styles.Error.Render(v.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(v.editor.View())
	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("[ctrl+s] apply  [esc] cancel"))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.cursor.SetVisible(max(3, height-16))
	v.editor.SetWidth(max(20, width-4))
	v.editor.SetHeight(max(5, height-8))
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
