package fragments

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/privatetune/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
	"github.com/custodia-labs/privatetune/internal/core/services"
)

type stubGeneration struct {
	driving.GenerationService
	generated int
	err       error
}

func (s *stubGeneration) Generate(context.Context) (string, error) {
	s.generated++
	return "job-1", s.err
}

func (s *stubGeneration) State() domain.GenerationState { return domain.StateIdle }
func (s *stubGeneration) Template() string              { return "T {content}" }

type stubItems struct {
	driving.TrainingItemService
	name     string
	keys     []domain.FragmentKey
	template string
}

func (s *stubItems) Save(_ context.Context, name string, keys []domain.FragmentKey, template string) (*domain.TrainingItem, error) {
	s.name, s.keys, s.template = name, keys, template
	return &domain.TrainingItem{ID: 1, Name: name}, nil
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func typeText(v *View, s string) {
	for _, r := range s {
		v.Update(runeKey(r))
	}
}

func setup(t *testing.T) (*View, *services.FragmentEngine, *stubGeneration, *stubItems) {
	t.Helper()

	backend := memory.NewBackend()
	backend.AddFragments(
		domain.Fragment{DocumentID: 1, ChunkIndex: 0, DocumentName: "go.md", Content: "Goroutines are cheap", Weight: 4, Keywords: []string{"concurrency"}},
		domain.Fragment{DocumentID: 1, ChunkIndex: 1, DocumentName: "go.md", Content: "Channels carry values", Weight: 2},
		domain.Fragment{DocumentID: 2, ChunkIndex: 0, DocumentName: "sql.md", Content: "Indexes speed up reads", Weight: 3},
	)
	engine := services.NewFragmentEngine(backend, services.NewEventBus())
	require.NoError(t, engine.Refresh(context.Background()))

	gen := &stubGeneration{}
	items := &stubItems{}
	view := NewView(nil, engine, items, gen)
	view.SetDimensions(120, 40)
	// The app delivers this once Init's refresh returns.
	view.Update(messages.FragmentsLoaded{})
	return view, engine, gen, items
}

func TestNewView(t *testing.T) {
	view, _, _, _ := setup(t)

	assert.Equal(t, 3, view.cursor.Length())
	assert.Equal(t, 0, view.cursor.Selected())
	assert.False(t, view.Editing())
}

func TestView_RowsAppearOnceLoaded(t *testing.T) {
	backend := memory.NewBackend()
	backend.AddFragments(domain.Fragment{DocumentID: 7, DocumentName: "a.md", Content: "Alpha"})
	engine := services.NewFragmentEngine(backend, services.NewEventBus())
	view := NewView(nil, engine, nil, nil)
	view.SetDimensions(120, 40)
	assert.Equal(t, 0, view.cursor.Length())

	require.NoError(t, engine.Refresh(context.Background()))
	view.Update(messages.FragmentsLoaded{})

	assert.Equal(t, 1, view.cursor.Length())
	assert.Contains(t, view.View(), "a.md #0")
}

func TestView_Init_Refreshes(t *testing.T) {
	view, _, _, _ := setup(t)

	cmd := view.Init()
	require.NotNil(t, cmd)
	loaded, ok := cmd().(messages.FragmentsLoaded)
	require.True(t, ok)
	assert.NoError(t, loaded.Err)
}

func TestView_ToggleSelection(t *testing.T) {
	view, engine, _, _ := setup(t)

	view.Update(tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, []domain.FragmentKey{"1:0"}, engine.Selection())
	assert.Equal(t, 1, view.cursor.Selected())

	view.Update(runeKey('A'))
	assert.Len(t, engine.Selection(), 3)

	view.Update(runeKey('C'))
	assert.Empty(t, engine.Selection())
}

func TestView_ContentFilter(t *testing.T) {
	view, engine, _, _ := setup(t)

	view.Update(runeKey('/'))
	require.True(t, view.Editing())
	typeText(view, "sql")
	view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, view.Editing())
	assert.Equal(t, "sql", engine.Filter().Content)
	assert.Equal(t, 1, view.cursor.Length())
}

func TestView_KeywordFilterEscCancels(t *testing.T) {
	view, engine, _, _ := setup(t)

	view.Update(runeKey('K'))
	typeText(view, "concurrency")
	view.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.False(t, view.Editing())
	assert.Equal(t, "", engine.Filter().Keywords)
	assert.Equal(t, 3, view.cursor.Length())
}

func TestView_MinWeightCycles(t *testing.T) {
	view, engine, _, _ := setup(t)

	for range 3 {
		view.Update(runeKey('w'))
	}
	assert.InDelta(t, 3.0, engine.Filter().MinWeight, 0.001)
	assert.Equal(t, 2, view.cursor.Length())

	for range 3 {
		view.Update(runeKey('w'))
	}
	assert.InDelta(t, 0.0, engine.Filter().MinWeight, 0.001)
}

func TestView_OrderCycles(t *testing.T) {
	view, engine, _, _ := setup(t)

	require.Equal(t, domain.OrderByDocument, engine.Order())

	view.Update(runeKey('o'))
	assert.Equal(t, domain.OrderByWeight, engine.Order())
	assert.Equal(t, "Goroutines are cheap", engine.Filtered()[0].Content)
	assert.Equal(t, "Indexes speed up reads", engine.Filtered()[1].Content)
	view.Update(runeKey('o'))
	assert.Equal(t, domain.OrderNone, engine.Order())
	view.Update(runeKey('o'))
	assert.Equal(t, domain.OrderByDocument, engine.Order())
}

func TestView_WeightGestureCommitsOnOtherKey(t *testing.T) {
	view, engine, _, _ := setup(t)

	view.Update(runeKey('-'))
	view.Update(runeKey('-'))
	require.NotNil(t, view.gesture)
	assert.InDelta(t, 3.0, view.gesture.Value(), 0.001)
	assert.InDelta(t, 4.0, engine.Fragments()[0].Weight, 0.001, "corpus untouched mid-drag")

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.NotNil(t, cmd)
	assert.Nil(t, view.gesture)

	var updated messages.FragmentUpdated
	switch msg := cmd().(type) {
	case messages.FragmentUpdated:
		updated = msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if u, ok := c().(messages.FragmentUpdated); ok {
				updated = u
			}
		}
	}
	assert.Equal(t, domain.FragmentKey("1:0"), updated.Key)
	assert.NoError(t, updated.Err)
	assert.InDelta(t, 3.0, engine.Fragments()[0].Weight, 0.001)
	assert.Equal(t, 1, view.cursor.Selected())
}

func TestView_WeightGestureEscCancels(t *testing.T) {
	view, engine, _, _ := setup(t)

	view.Update(runeKey('+'))
	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.Nil(t, cmd)
	assert.Nil(t, view.gesture)
	assert.InDelta(t, 4.0, engine.Fragments()[0].Weight, 0.001)
}

func TestView_Exclude(t *testing.T) {
	view, engine, _, _ := setup(t)

	_, cmd := view.Update(runeKey('x'))
	require.NotNil(t, cmd)
	view.Update(cmd())

	assert.Len(t, engine.Fragments(), 2)
	assert.Equal(t, 2, view.cursor.Length())
	assert.NoError(t, view.Err())
}

func TestView_Generate(t *testing.T) {
	view, _, gen, _ := setup(t)

	_, cmd := view.Update(runeKey('g'))
	require.NotNil(t, cmd)
	submitted, ok := cmd().(messages.GenerationSubmitted)
	require.True(t, ok)
	assert.Equal(t, "job-1", submitted.JobID)
	assert.Equal(t, 1, gen.generated)
}

func TestView_GenerateErrorShown(t *testing.T) {
	view, _, gen, _ := setup(t)
	gen.err = errors.New("no fragments selected")

	_, cmd := view.Update(runeKey('g'))
	view.Update(cmd())

	assert.Contains(t, view.View(), "no fragments selected")
}

func TestView_SaveItem(t *testing.T) {
	view, engine, _, items := setup(t)
	engine.Select("1:0", "2:0")

	view.Update(runeKey('S'))
	require.True(t, view.Editing())
	typeText(view, "basics")
	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	saved, ok := cmd().(messages.ItemSaved)
	require.True(t, ok)
	assert.NoError(t, saved.Err)
	assert.Equal(t, "basics", items.name)
	assert.Equal(t, []domain.FragmentKey{"1:0", "2:0"}, items.keys)
	assert.Equal(t, "T {content}", items.template)
}

func TestView_EscReturnsToMenu(t *testing.T) {
	view, _, _, _ := setup(t)

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}

func TestView_View(t *testing.T) {
	view, engine, _, _ := setup(t)
	engine.Select("1:1")

	output := view.View()
	assert.Contains(t, output, "Knowledge points")
	assert.Contains(t, output, "3 shown of 3, 1 selected")
	assert.Contains(t, output, "go.md #0")
	assert.Contains(t, output, "Indexes speed up reads")
	assert.Contains(t, output, "[x]")
	assert.Contains(t, output, "★★★★")
}

func TestView_View_Empty(t *testing.T) {
	view, engine, _, _ := setup(t)
	engine.SetFilter(domain.FragmentFilter{Content: "nothing"})
	view.sync()

	assert.Contains(t, view.View(), "No knowledge points match")
}

func TestNextMinWeight(t *testing.T) {
	assert.InDelta(t, 1.0, nextMinWeight(0), 0.001)
	assert.InDelta(t, 5.0, nextMinWeight(4), 0.001)
	assert.InDelta(t, 0.0, nextMinWeight(5), 0.001)
}
