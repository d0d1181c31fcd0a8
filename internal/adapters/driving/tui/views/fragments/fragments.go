// Package fragments provides the knowledge point filter and selection view.
package fragments

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
)

// weightStep is the change applied by one +/- key press.
const weightStep = 0.5

// headerLines is the number of lines rendered above the list.
const headerLines = 6

var orders = []domain.FragmentOrder{domain.OrderNone, domain.OrderByDocument, domain.OrderByWeight}

// View lists the filtered corpus and edits the selection.
type View struct {
	styles     *styles.Styles
	fragments  driving.FragmentService
	items      driving.TrainingItemService
	generation driving.GenerationService
	ctx        context.Context

	cursor   *list.Cursor
	content  *input.Field
	keywords *input.Field
	name     *input.Field

	// gesture is the weight drag in progress on gestureKey.
	gesture    driving.WeightGesture
	gestureKey domain.FragmentKey

	err    error
	width  int
	height int
}

// NewView creates a fragments view. items and generation may be nil.
func NewView(
	s *styles.Styles,
	fragments driving.FragmentService,
	items driving.TrainingItemService,
	generation driving.GenerationService,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:     s,
		fragments:  fragments,
		items:      items,
		generation: generation,
		ctx:        context.Background(),
		cursor:     list.NewCursor(10),
		content:    input.NewField(s, "Content", "document name or text"),
		keywords:   input.NewField(s, "Keywords", "space or comma separated"),
		name:       input.NewField(s, "Save as", "training item name"),
		width:      80,
		height:     24,
	}
}

// SetContext sets the context used for backend calls.
func (v *View) SetContext(ctx context.Context) {
	v.ctx = ctx
}

// Init refreshes the corpus.
func (v *View) Init() tea.Cmd {
	v.sync()
	return v.refresh()
}

func (v *View) refresh() tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		return messages.FragmentsLoaded{Err: v.fragments.Refresh(ctx)}
	}
}

// sync re-reads the filtered list length and the filter inputs.
func (v *View) sync() {
	v.cursor.SetLength(len(v.fragments.Filtered()))
	f := v.fragments.Filter()
	if !v.content.Focused() {
		v.content.SetValue(f.Content)
	}
	if !v.keywords.Focused() {
		v.keywords.SetValue(f.Keywords)
	}
}

// Editing reports whether an input has focus, so global keys are not intercepted.
func (v *View) Editing() bool {
	return v.content.Focused() || v.keywords.Focused() || v.name.Focused()
}

// Update handles messages for the fragments view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.CoreEvent:
		switch msg.Event.Kind {
		case domain.EventFragmentsChanged, domain.EventSelectionChanged:
			v.sync()
		}
		return v, nil

	case messages.FragmentsLoaded:
		v.err = msg.Err
		v.sync()
		return v, nil

	case messages.FragmentUpdated:
		v.err = msg.Err
		v.sync()
		return v, nil

	case messages.ItemSaved:
		v.err = msg.Err
		return v, nil

	case messages.GenerationSubmitted:
		v.err = msg.Err
		return v, nil

	case tea.KeyMsg:
		if v.Editing() {
			return v.handleInputKeys(msg)
		}
		return v.handleKeys(msg)
	}
	return v, nil
}

func (v *View) handleInputKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		v.content.Blur()
		v.keywords.Blur()
		v.name.Blur()
		v.name.Reset()
		v.sync()
		return v, nil

	case "enter":
		if v.name.Focused() {
			name := strings.TrimSpace(v.name.Value())
			v.name.Blur()
			v.name.Reset()
			return v, v.saveItem(name)
		}
		filter := v.fragments.Filter()
		filter.Content = v.content.Value()
		filter.Keywords = v.keywords.Value()
		v.content.Blur()
		v.keywords.Blur()
		v.fragments.SetFilter(filter)
		v.cursor.SetSelected(0)
		v.sync()
		return v, nil
	}

	var cmd tea.Cmd
	switch {
	case v.content.Focused():
		v.content, cmd = v.content.Update(msg)
	case v.keywords.Focused():
		v.keywords, cmd = v.keywords.Update(msg)
	default:
		v.name, cmd = v.name.Update(msg)
	}
	return v, cmd
}

func (v *View) handleKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	key := msg.String()

	// Any key other than a weight change ends the drag.
	if v.gesture != nil && key != "+" && key != "-" && key != "=" {
		if key == "esc" {
			v.gesture.Cancel()
			v.gesture = nil
			return v, nil
		}
		end := v.endGesture()
		_, cmd := v.dispatch(key, msg)
		return v, tea.Batch(end, cmd)
	}
	return v.dispatch(key, msg)
}

//nolint:gocyclo // flat key dispatch
func (v *View) dispatch(key string, msg tea.KeyMsg) (*View, tea.Cmd) {
	current := v.current()
	switch key {
	case "esc":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case " ":
		if current != nil {
			v.fragments.Toggle(current.Key())
			v.cursor.MoveDown()
		}
	case "A":
		v.fragments.SelectAllFiltered()
	case "C":
		v.fragments.ClearSelection()
	case "o":
		v.cycleOrder()
	case "w":
		filter := v.fragments.Filter()
		filter.MinWeight = nextMinWeight(filter.MinWeight)
		v.fragments.SetFilter(filter)
		v.sync()
	case "/":
		return v, v.content.Focus()
	case "K":
		return v, v.keywords.Focus()
	case "S":
		return v, v.name.Focus()
	case "+", "=", "-":
		if current != nil {
			return v, v.nudgeWeight(*current, key == "-")
		}
	case "x":
		if current != nil {
			return v, v.exclude(current.Key())
		}
	case "r":
		return v, v.refresh()
	case "g":
		return v, v.generate()
	default:
		v.cursor.Update(msg)
	}
	return v, nil
}

func (v *View) cycleOrder() {
	current := v.fragments.Order()
	next := orders[0]
	for i, o := range orders {
		if o == current {
			next = orders[(i+1)%len(orders)]
			break
		}
	}
	if err := v.fragments.SetOrder(next); err != nil {
		v.err = err
	}
}

// nextMinWeight steps the minimum weight filter through 0..5 and back to 0.
func nextMinWeight(w float64) float64 {
	next := float64(int(w)) + 1
	if next > domain.MaxFragmentWeight {
		return 0
	}
	return next
}

// nudgeWeight moves the current fragment's weight by one step, starting
// a drag gesture if none is active. The change persists when the drag ends.
func (v *View) nudgeWeight(frag domain.Fragment, down bool) tea.Cmd {
	var cmd tea.Cmd
	if v.gesture != nil && v.gestureKey != frag.Key() {
		cmd = v.endGesture()
	}
	if v.gesture == nil {
		gesture, err := v.fragments.BeginWeightDrag(frag.Key())
		if err != nil {
			v.err = err
			return cmd
		}
		v.gesture = gesture
		v.gestureKey = frag.Key()
	}

	step := weightStep
	if down {
		step = -step
	}
	v.gesture.Move(clampWeight(v.gesture.Value() + step))
	return cmd
}

func clampWeight(w float64) float64 {
	return max(domain.MinFragmentWeight, min(w, domain.MaxFragmentWeight))
}

// endGesture persists the active weight drag.
func (v *View) endGesture() tea.Cmd {
	if v.gesture == nil {
		return nil
	}
	gesture, key, ctx := v.gesture, v.gestureKey, v.ctx
	v.gesture = nil
	return func() tea.Msg {
		return messages.FragmentUpdated{Key: key, Err: gesture.End(ctx)}
	}
}

func (v *View) exclude(key domain.FragmentKey) tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		return messages.FragmentUpdated{Key: key, Err: v.fragments.Exclude(ctx, key)}
	}
}

func (v *View) generate() tea.Cmd {
	if v.generation == nil {
		return nil
	}
	ctx := v.ctx
	return func() tea.Msg {
		id, err := v.generation.Generate(ctx)
		return messages.GenerationSubmitted{JobID: id, Err: err}
	}
}

func (v *View) saveItem(name string) tea.Cmd {
	if v.items == nil || name == "" {
		return nil
	}
	keys := v.fragments.Selection()
	template := domain.DefaultPromptTemplate
	if v.generation != nil {
		template = v.generation.Template()
	}
	ctx := v.ctx
	return func() tea.Msg {
		item, err := v.items.Save(ctx, name, keys, template)
		return messages.ItemSaved{Item: item, Err: err}
	}
}

// current returns the fragment under the cursor.
func (v *View) current() *domain.Fragment {
	frags := v.fragments.Filtered()
	i := v.cursor.Selected()
	if i < 0 || i >= len(frags) {
		return nil
	}
	f := frags[i]
	return &f
}

// View renders the fragments view.
func (v *View) View() string {
	var b strings.Builder

	frags := v.fragments.Filtered()
	filter := v.fragments.Filter()
	order := v.fragments.Order()
	if order == domain.OrderNone {
		order = "corpus"
	}

	b.WriteString(v.styles.Title.Render("Knowledge points"))
	b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  %d shown of %d, %d selected",
		len(frags), len(v.fragments.Fragments()), len(v.fragments.Selection()))))
	b.WriteString("\n")
	b.WriteString(v.content.View())
	b.WriteString("   ")
	b.WriteString(v.keywords.View())
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render(fmt.Sprintf("Min weight %.0f  Order %s", filter.MinWeight, order)))
	if v.generation != nil {
		b.WriteString(v.styles.Muted.Render("  Generation " + string(v.generation.State())))
	}
	b.WriteString("\n")
	if v.name.Focused() {
		b.WriteString(v.name.View())
	} else if v.err != nil {
		b.WriteString(v.styles.Error.Render(v.err.Error()))
	}
	b.WriteString("\n\n")

	if len(frags) == 0 {
		b.WriteString(v.styles.Muted.Render("No knowledge points match the filter"))
		b.WriteString("\n")
	}

	start, end := v.cursor.Window()
	for i := start; i < end && i < len(frags); i++ {
		b.WriteString(v.renderRow(i, frags[i]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render(
		"[space] select  [A/C] all/clear  [/] content  [K] keywords  [w] min weight  [o] order  [+/-] weight  [x] exclude  [S] save item  [g] generate  [r] refresh"))
	return b.String()
}

func (v *View) renderRow(i int, f domain.Fragment) string {
	mark := "[ ]"
	if v.fragments.IsSelected(f.Key()) {
		mark = v.styles.Marked.Render("[x]")
	}

	weight := f.Weight
	if v.gesture != nil && v.gestureKey == f.Key() {
		weight = v.gesture.Value()
	}

	doc := fmt.Sprintf("%s #%d", f.DocumentName, f.ChunkIndex)
	preview := oneLine(f.Content)
	room := max(10, v.width-len([]rune(doc))-20)
	if r := []rune(preview); len(r) > room {
		preview = string(r[:room-1]) + "…"
	}

	line := fmt.Sprintf("%s %s %s  %s", mark, v.styles.Stars(weight, int(domain.MaxFragmentWeight)), doc, preview)
	if i == v.cursor.Selected() {
		return v.styles.Selected.Render(">") + " " + line
	}
	return "  " + line
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.cursor.SetVisible(height - headerLines - 4)
	v.content.SetWidth(width / 2)
	v.keywords.SetWidth(width / 2)
	v.name.SetWidth(width)
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
