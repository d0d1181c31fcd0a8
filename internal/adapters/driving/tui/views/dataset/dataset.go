// Package dataset provides the annotation scoring and editing view.
package dataset

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

// listTop is the screen row of the first annotation row.
const listTop = 3

// starsLeft is the screen column of the first star in a row, after the
// two-column cursor marker.
const starsLeft = 2

// View scores and edits the working annotation list.
type View struct {
	styles  *styles.Styles
	dataset driving.DatasetService
	items   driving.TrainingItemService
	ctx     context.Context

	cursor *list.Cursor

	// Paint mode: paintScore is applied to every row the cursor or mouse enters.
	painting   bool
	paintScore int
	gesture    driving.ScoreGesture

	// Editor state. draft is nil when no edit is open.
	draft       *domain.EditDraft
	instruction textarea.Model
	response    textarea.Model

	notice string
	err    error
	width  int
	height int
}

// NewView creates a dataset view. items may be nil, in which case saves
// use the dataset's last scope.
func NewView(s *styles.Styles, dataset driving.DatasetService, items driving.TrainingItemService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:      s,
		dataset:     dataset,
		items:       items,
		ctx:         context.Background(),
		cursor:      list.NewCursor(10),
		paintScore:  domain.MaxScore,
		instruction: newEditor("Instruction"),
		response:    newEditor("Response"),
		width:       80,
		height:      24,
	}
}

func newEditor(placeholder string) textarea.Model {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	return ta
}

// SetContext sets the context used for backend calls.
func (v *View) SetContext(ctx context.Context) {
	v.ctx = ctx
}

// Init syncs the row count with the dataset.
func (v *View) Init() tea.Cmd {
	v.cursor.SetLength(v.dataset.Len())
	return nil
}

// Editing reports whether the editor has focus.
func (v *View) Editing() bool {
	return v.draft != nil
}

// Painting reports whether paint mode is on.
func (v *View) Painting() bool {
	return v.painting
}

// Update handles messages for the dataset view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.CoreEvent:
		if msg.Event.Kind == domain.EventDatasetChanged {
			v.cursor.SetLength(v.dataset.Len())
		}
		return v, nil

	case messages.DatasetSaved:
		v.err = msg.Err
		if msg.Err == nil {
			v.notice = fmt.Sprintf("Saved %d annotations", msg.Count)
		}
		v.cursor.SetLength(v.dataset.Len())
		return v, nil

	case tea.MouseMsg:
		if v.draft == nil {
			v.handleMouse(msg)
		}
		return v, nil

	case tea.KeyMsg:
		if v.draft != nil {
			return v.handleEditorKeys(msg)
		}
		return v.handleKeys(msg)
	}

	if v.draft != nil {
		return v.forwardToEditor(msg)
	}
	return v, nil
}

//nolint:gocyclo // flat key dispatch
func (v *View) handleKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	key := msg.String()
	index := v.cursor.Selected()

	switch key {
	case "esc":
		if v.painting {
			v.stopPainting()
			return v, nil
		}
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case "1", "2", "3", "4", "5":
		score := int(key[0] - '0')
		if v.painting {
			v.paintScore = score
		}
		if index >= 0 {
			v.setErr(v.dataset.SetScore(index, score))
		}
	case "p":
		if v.painting {
			v.stopPainting()
		} else {
			v.startPainting(index)
		}
	case "e":
		if index >= 0 {
			return v, v.openEditor(index)
		}
	case "s":
		return v, v.save()
	case "r":
		ctx := v.ctx
		return v, func() tea.Msg {
			if err := v.dataset.Reload(ctx); err != nil {
				return messages.ErrorOccurred{Err: err}
			}
			return nil
		}
	default:
		if _, moved := v.cursor.Update(msg); moved && v.gesture != nil {
			if i := v.cursor.Selected(); i >= 0 {
				v.gesture.Enter(i, v.paintScore)
			}
		}
	}
	return v, nil
}

func (v *View) startPainting(index int) {
	v.painting = true
	v.notice = ""
	if index < 0 {
		return
	}
	gesture, err := v.dataset.BeginScoreDrag(index, v.paintScore)
	if err != nil {
		v.setErr(err)
		return
	}
	v.gesture = gesture
}

func (v *View) stopPainting() {
	if v.gesture != nil {
		v.gesture.End()
		v.gesture = nil
	}
	v.painting = false
}

// scoreAt maps a column to the star under it. Columns outside the stars
// apply the paint score.
func (v *View) scoreAt(x int) int {
	if x >= starsLeft && x < starsLeft+domain.MaxScore {
		return x - starsLeft + 1
	}
	return v.paintScore
}

// handleMouse paints with the left button: press begins a gesture at the
// row under the pointer, motion paints each row entered, release ends it.
// Over the star column the pointer picks the score.
func (v *View) handleMouse(msg tea.MouseMsg) {
	if msg.Button != tea.MouseButtonLeft && msg.Action != tea.MouseActionRelease {
		return
	}
	row := v.cursor.RowAt(msg.Y - listTop)
	score := v.scoreAt(msg.X)

	switch msg.Action {
	case tea.MouseActionPress:
		if row < 0 {
			return
		}
		v.cursor.SetSelected(row)
		if v.gesture != nil {
			v.gesture.End()
		}
		gesture, err := v.dataset.BeginScoreDrag(row, score)
		if err != nil {
			v.setErr(err)
			return
		}
		v.gesture = gesture
	case tea.MouseActionMotion:
		if v.gesture != nil && row >= 0 {
			v.cursor.SetSelected(row)
			v.gesture.Enter(row, score)
		}
	case tea.MouseActionRelease:
		if v.gesture != nil && !v.painting {
			v.gesture.End()
			v.gesture = nil
		}
	}
}

func (v *View) openEditor(index int) tea.Cmd {
	draft, err := v.dataset.BeginEdit(index)
	if err != nil {
		v.setErr(err)
		return nil
	}
	v.stopPainting()
	v.draft = draft
	v.instruction.SetValue(draft.Instruction)
	v.response.SetValue(draft.Response)
	v.response.Blur()
	return v.instruction.Focus()
}

func (v *View) closeEditor() {
	v.draft = nil
	v.instruction.Blur()
	v.response.Blur()
}

func (v *View) handleEditorKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		v.closeEditor()
		return v, nil
	case "tab":
		if v.instruction.Focused() {
			v.instruction.Blur()
			return v, v.response.Focus()
		}
		v.response.Blur()
		return v, v.instruction.Focus()
	case "ctrl+s":
		draft := *v.draft
		draft.Instruction = v.instruction.Value()
		draft.Response = v.response.Value()
		if err := v.dataset.CommitEdit(draft); err != nil {
			v.err = err
			return v, nil
		}
		v.err = nil
		v.closeEditor()
		return v, nil
	}
	return v.forwardToEditor(msg)
}

func (v *View) forwardToEditor(msg tea.Msg) (*View, tea.Cmd) {
	var cmd tea.Cmd
	if v.instruction.Focused() {
		v.instruction, cmd = v.instruction.Update(msg)
	} else {
		v.response, cmd = v.response.Update(msg)
	}
	return v, cmd
}

// save writes the list under the active training item, or the last scope.
func (v *View) save() tea.Cmd {
	scope := v.dataset.Scope()
	if v.items != nil {
		if active := v.items.Active(); active != nil {
			id := active.ID
			scope = &id
		}
	}
	ctx := v.ctx
	return func() tea.Msg {
		count, err := v.dataset.Save(ctx, scope)
		return messages.DatasetSaved{Count: count, Err: err}
	}
}

func (v *View) setErr(err error) {
	v.err = err
	if err != nil {
		v.notice = ""
	}
}

// View renders the dataset view.
func (v *View) View() string {
	if v.draft != nil {
		return v.renderEditor()
	}

	var b strings.Builder
	annotations := v.dataset.Annotations()
	stats := v.dataset.Stats()

	b.WriteString(v.styles.Title.Render("Dataset"))
	b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  %d annotations, %d scored (avg %.1f), %d tuned, %d untuned",
		stats.Total, stats.Scored, stats.AverageScore, stats.Tuned, stats.Untuned)))
	b.WriteString("\n")
	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(v.err.Error()))
	case v.painting:
		b.WriteString(v.styles.Warning.Render(fmt.Sprintf("Paint mode: %d stars, move or drag to apply", v.paintScore)))
	case v.notice != "":
		b.WriteString(v.styles.Success.Render(v.notice))
	}
	b.WriteString("\n\n")

	if len(annotations) == 0 {
		b.WriteString(v.styles.Muted.Render("No annotations. Generate from the knowledge points view or activate a training item."))
		b.WriteString("\n")
	}

	start, end := v.cursor.Window()
	for i := start; i < end && i < len(annotations); i++ {
		b.WriteString(v.renderRow(i, annotations[i]))
		b.WriteString("\n")
	}

	if i := v.cursor.Selected(); i >= 0 && i < len(annotations) {
		b.WriteString("\n")
		b.WriteString(v.styles.Panel.Width(max(20, v.width-4)).Render(
			v.styles.Subtitle.Render("Response") + "\n" + annotations[i].Response))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[1-5] score  [p] paint  [e] edit  [s] save  [r] reload  [esc] back"))
	return b.String()
}

func (v *View) renderRow(i int, a domain.Annotation) string {
	badge := v.styles.Untuned.Render("new  ")
	if a.Finetuned {
		badge = v.styles.Tuned.Render(fmt.Sprintf("x%-3d ", a.FinetunedCount))
	}

	instruction := strings.Join(strings.Fields(a.Instruction), " ")
	room := max(10, v.width-24)
	if r := []rune(instruction); len(r) > room {
		instruction = string(r[:room-1]) + "…"
	}

	line := fmt.Sprintf("%s %s %s", v.styles.Stars(float64(a.Score), domain.MaxScore), badge, instruction)
	if i == v.cursor.Selected() {
		return v.styles.Selected.Render(">") + " " + line
	}
	return "  " + line
}

func (v *View) renderEditor() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Edit annotation %d", v.draft.Index+1)))
	b.WriteString("\n")
	if v.err != nil {
		b.WriteString(v.styles.Error.Render(v.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(v.styles.Subtitle.Render("Instruction"))
	b.WriteString("\n")
	b.WriteString(v.instruction.View())
	b.WriteString("\n")
	b.WriteString(v.styles.Subtitle.Render("Response"))
	b.WriteString("\n")
	b.WriteString(v.response.View())
	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("[tab] switch field  [ctrl+s] apply  [esc] cancel"))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.cursor.SetVisible(max(3, height-listTop-10))
	v.instruction.SetWidth(max(20, width-4))
	v.instruction.SetHeight(max(3, (height-10)/3))
	v.response.SetWidth(max(20, width-4))
	v.response.SetHeight(max(3, (height-10)*2/3))
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
