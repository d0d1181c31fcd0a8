package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/views/dataset"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/views/finetune"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/views/fragments"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/views/items"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/views/jobs"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/views/menu"
	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/logger"
)

// eventBuffer bounds the core events queued for the program.
const eventBuffer = 256

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	// styles holds the TUI styles.
	styles *styles.Styles

	keys *keymap.KeyMap

	menuView      *menu.View
	fragmentsView *fragments.View
	itemsView     *items.View
	datasetView   *dataset.View
	finetuneView  *finetune.View
	jobsView      *jobs.View
	statusBar     *status.Bar

	// currentView tracks which view is active.
	currentView messages.ViewType

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	a := &App{
		ports:         ports,
		ctx:           context.Background(),
		styles:        s,
		keys:          km,
		menuView:      menu.NewView(s),
		fragmentsView: fragments.NewView(s, ports.Fragments, ports.Items, ports.Generation),
		itemsView:     items.NewView(s, ports.Items, ports.Generation),
		datasetView:   dataset.NewView(s, ports.Dataset, ports.Items),
		finetuneView:  finetune.NewView(s, ports.FineTuning),
		jobsView:      jobs.NewView(s, ports.Monitor),
		statusBar:     status.NewBar(s, km),
		currentView:   messages.ViewMenu,
	}
	a.refreshOverview()
	return a, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.fragmentsView.SetContext(ctx)
	a.itemsView.SetContext(ctx)
	a.datasetView.SetContext(ctx)
	a.finetuneView.SetContext(ctx)
	a.jobsView.SetContext(ctx)
	return a
}

// Init implements tea.Model.
// It loads the corpus and item list and resumes any running generation job.
func (a *App) Init() tea.Cmd {
	ctx := a.ctx
	resume := func() tea.Msg {
		if err := a.ports.Generation.Start(ctx); err != nil {
			return messages.ErrorOccurred{Err: fmt.Errorf("resume generation: %w", err)}
		}
		return nil
	}
	return tea.Batch(
		tea.SetWindowTitle("privatetune"),
		a.fragmentsView.Init(),
		a.itemsView.Init(),
		resume,
	)
}

// Update implements tea.Model.
// It handles messages and updates the model state.
//
//nolint:gocyclo // central message handler
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.MouseMsg:
		if a.currentView == messages.ViewDataset {
			var cmd tea.Cmd
			a.datasetView, cmd = a.datasetView.Update(msg)
			return a, cmd
		}
		return a, nil

	case spinner.TickMsg:
		var barCmd, viewCmd tea.Cmd
		a.statusBar, barCmd = a.statusBar.Update(msg)
		a.finetuneView, viewCmd = a.finetuneView.Update(msg)
		return a, tea.Batch(barCmd, viewCmd)

	case messages.ViewChanged:
		return a, a.switchView(msg.View)

	case messages.CoreEvent:
		a.statusBar.ShowEvent(msg.Event)
		a.refreshOverview()
		return a, tea.Batch(a.generationStatus(msg.Event), a.broadcast(msg))

	case messages.ErrorOccurred:
		a.err = msg.Err
		a.statusBar.SetError(msg.Err)
		return a, nil

	case messages.Quit:
		return a, tea.Quit

	case messages.FragmentsLoaded, messages.FragmentUpdated, messages.ItemsLoaded,
		messages.ItemSaved, messages.ItemActivated, messages.ItemDeleted,
		messages.GenerationSubmitted, messages.DatasetSaved, messages.EstimateLoaded,
		messages.JobSubmitted, messages.JobsLoaded, messages.JobExpanded:
		if err := resultErr(msg); err != nil {
			a.err = err
			a.statusBar.SetError(err)
		}
		a.refreshOverview()
		return a, a.broadcast(msg)
	}

	return a, a.updateCurrent(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	if !a.editing() {
		switch {
		case keymap.Matches(msg.String(), a.keys.Help) && a.currentView != messages.ViewHelp:
			a.currentView = messages.ViewHelp
			return a, nil
		case a.currentView == messages.ViewHelp:
			if msg.Type == tea.KeyEsc || msg.String() == "q" {
				a.currentView = messages.ViewMenu
			}
			return a, nil
		}
	}
	return a, a.updateCurrent(msg)
}

// editing reports whether the current view has an input focused.
func (a *App) editing() bool {
	switch a.currentView {
	case messages.ViewFragments:
		return a.fragmentsView.Editing()
	case messages.ViewItems:
		return a.itemsView.Editing()
	case messages.ViewDataset:
		return a.datasetView.Editing()
	case messages.ViewFineTune:
		return a.finetuneView.Editing()
	default:
		return false
	}
}

func (a *App) switchView(view messages.ViewType) tea.Cmd {
	a.currentView = view
	a.refreshOverview()

	switch view {
	case messages.ViewFragments:
		a.statusBar.SetHints(a.keys.FragmentsHelp())
		return a.fragmentsView.Init()
	case messages.ViewItems:
		a.statusBar.SetHints(nil)
		return a.itemsView.Init()
	case messages.ViewDataset:
		a.statusBar.SetHints(a.keys.DatasetHelp())
		return a.datasetView.Init()
	case messages.ViewFineTune:
		a.statusBar.SetHints(nil)
		return a.finetuneView.Init()
	case messages.ViewJobs:
		a.statusBar.SetHints(a.keys.JobsHelp())
		return a.jobsView.Init()
	case messages.ViewMenu, messages.ViewHelp:
		a.statusBar.SetHints(nil)
	}
	return nil
}

// updateCurrent forwards msg to the active view.
func (a *App) updateCurrent(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewFragments:
		a.fragmentsView, cmd = a.fragmentsView.Update(msg)
	case messages.ViewItems:
		a.itemsView, cmd = a.itemsView.Update(msg)
	case messages.ViewDataset:
		a.datasetView, cmd = a.datasetView.Update(msg)
	case messages.ViewFineTune:
		a.finetuneView, cmd = a.finetuneView.Update(msg)
	case messages.ViewJobs:
		a.jobsView, cmd = a.jobsView.Update(msg)
	case messages.ViewHelp:
	}
	return cmd
}

// broadcast delivers msg to every domain view. Views ignore what they do not handle.
func (a *App) broadcast(msg tea.Msg) tea.Cmd {
	cmds := make([]tea.Cmd, 0, 5)
	var cmd tea.Cmd
	a.fragmentsView, cmd = a.fragmentsView.Update(msg)
	cmds = append(cmds, cmd)
	a.itemsView, cmd = a.itemsView.Update(msg)
	cmds = append(cmds, cmd)
	a.datasetView, cmd = a.datasetView.Update(msg)
	cmds = append(cmds, cmd)
	a.finetuneView, cmd = a.finetuneView.Update(msg)
	cmds = append(cmds, cmd)
	a.jobsView, cmd = a.jobsView.Update(msg)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

// generationStatus keeps the status bar spinner in step with the generation controller.
func (a *App) generationStatus(ev domain.Event) tea.Cmd {
	if ev.Kind != domain.EventGenerationChanged {
		return nil
	}
	switch a.ports.Generation.State() {
	case domain.StateSubmitting:
		return a.statusBar.SetBusy("Submitting generation job...")
	case domain.StatePolling:
		return a.statusBar.SetBusy("Generating annotations...")
	default:
		if a.statusBar.State() == status.StateBusy {
			a.statusBar.SetReady("")
		}
		return nil
	}
}

func (a *App) refreshOverview() {
	o := menu.Overview{
		Fragments:  len(a.ports.Fragments.Fragments()),
		Selected:   len(a.ports.Fragments.Selection()),
		Stats:      a.ports.Dataset.Stats(),
		Generation: a.ports.Generation.State(),
		Jobs:       len(a.ports.Monitor.Jobs()),
	}
	if active := a.ports.Items.Active(); active != nil {
		o.ActiveItem = active.Name
	}
	a.menuView.SetOverview(o)
}

// resultErr extracts the error carried by an async result message.
func resultErr(msg tea.Msg) error {
	switch m := msg.(type) {
	case messages.FragmentsLoaded:
		return m.Err
	case messages.FragmentUpdated:
		return m.Err
	case messages.ItemsLoaded:
		return m.Err
	case messages.ItemSaved:
		return m.Err
	case messages.ItemActivated:
		return m.Err
	case messages.ItemDeleted:
		return m.Err
	case messages.GenerationSubmitted:
		return m.Err
	case messages.DatasetSaved:
		return m.Err
	case messages.EstimateLoaded:
		return m.Err
	case messages.JobSubmitted:
		return m.Err
	case messages.JobsLoaded:
		return m.Err
	case messages.JobExpanded:
		return m.Err
	}
	return nil
}

// View implements tea.Model.
// The active view is rendered from the top row so mouse coordinates map
// directly onto it; the status bar sits on the last line.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewFragments:
		body = a.fragmentsView.View()
	case messages.ViewItems:
		body = a.itemsView.View()
	case messages.ViewDataset:
		body = a.datasetView.View()
	case messages.ViewFineTune:
		body = a.finetuneView.View()
	case messages.ViewJobs:
		body = a.jobsView.View()
	case messages.ViewHelp:
		body = a.viewHelp()
	default:
		body = a.menuView.View()
	}

	lines := strings.Split(body, "\n")
	if room := a.height - status.Height; room > 0 {
		if len(lines) > room {
			lines = lines[:room]
		}
		for len(lines) < room {
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n") + "\n" + a.statusBar.View()
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	return a.styles.Title.Render("Help") + `

Global:
  ?           This help
  esc         Back
  ctrl+c      Quit

Knowledge points:
  space       Select or deselect
  A / C       Select all shown / clear selection
  / and K     Filter by content / keywords
  w / o       Minimum weight / ordering
  + / -       Adjust weight, committed on the next key
  x           Exclude
  S           Save selection as a training item
  g           Generate annotations

Training items:
  enter       Activate (restores selection, template and annotations)
  d           Delete
  t           Edit the prompt template

Dataset:
  1-5         Score the current annotation
  p           Paint mode, or drag with the mouse
  e           Edit instruction and response
  s           Save to the active training item

Fine-tune:
  + / -       Dataset size
  m / p / f   Model / platform / format
  enter       Submit

Jobs:
  enter       Expand or collapse
  a           Auto-refresh
  r           Refresh dataset, jobs and detail

[esc] back to menu`
}

// Run starts the TUI application. Core events are relayed into the
// program so views redraw when services change state in the background.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(a.ctx))

	if a.ports.Events != nil {
		events := make(chan domain.Event, eventBuffer)
		done := make(chan struct{})
		unsubscribe := a.ports.Events.Subscribe(func(ev domain.Event) {
			select {
			case events <- ev:
			default:
				logger.Debug("tui: event queue full, dropping %s", ev.Kind)
			}
		})
		defer func() {
			unsubscribe()
			close(done)
		}()

		go func() {
			for {
				select {
				case ev := <-events:
					p.Send(messages.CoreEvent{Event: ev})
				case <-done:
					return
				}
			}
		}()
	}

	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// Status returns the status bar.
func (a *App) Status() *status.Bar {
	return a.statusBar
}

// SetDimensions sets the terminal dimensions on the app and every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true

	body := max(1, height-status.Height)
	a.menuView.SetDimensions(width, body)
	a.fragmentsView.SetDimensions(width, body)
	a.itemsView.SetDimensions(width, body)
	a.datasetView.SetDimensions(width, body)
	a.finetuneView.SetDimensions(width, body)
	a.jobsView.SetDimensions(width, body)
	a.statusBar.SetWidth(width)
}
