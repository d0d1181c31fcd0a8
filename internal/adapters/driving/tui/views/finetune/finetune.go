// Package finetune provides the cost estimate and job submission view.
package finetune

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
)

// View configures and submits a fine-tuning job.
type View struct {
	styles     *styles.Styles
	finetuning driving.FineTuningService
	ctx        context.Context

	model    *input.Field
	platform *input.Field

	spinner    spinner.Model
	estimating bool
	submitting bool
	confirming bool

	submitted *domain.FineTuningJob
	err       error
	width     int
	height    int
}

// NewView creates a fine-tune view.
func NewView(s *styles.Styles, finetuning driving.FineTuningService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Warning

	return &View{
		styles:     s,
		finetuning: finetuning,
		ctx:        context.Background(),
		model:      input.NewField(s, "Model", "base model"),
		platform:   input.NewField(s, "Platform", "openai, together, ..."),
		spinner:    sp,
		width:      80,
		height:     24,
	}
}

// SetContext sets the context used for backend calls.
func (v *View) SetContext(ctx context.Context) {
	v.ctx = ctx
}

// Init requests a fresh estimate.
func (v *View) Init() tea.Cmd {
	return v.refreshEstimate()
}

// Editing reports whether an input or the confirmation has focus.
func (v *View) Editing() bool {
	return v.model.Focused() || v.platform.Focused() || v.confirming
}

// Busy reports whether an estimate or submission is in flight.
func (v *View) Busy() bool {
	return v.estimating || v.submitting
}

// Update handles messages for the fine-tune view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case spinner.TickMsg:
		if !v.Busy() {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case messages.EstimateLoaded:
		v.estimating = false
		v.err = msg.Err
		return v, nil

	case messages.JobSubmitted:
		v.submitting = false
		v.err = msg.Err
		if msg.Err == nil {
			v.submitted = msg.Job
		}
		return v, nil

	case tea.KeyMsg:
		switch {
		case v.confirming:
			return v.handleConfirmKeys(msg)
		case v.model.Focused() || v.platform.Focused():
			return v.handleInputKeys(msg)
		default:
			return v.handleKeys(msg)
		}
	}
	return v, nil
}

func (v *View) handleKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case "+", "=", "right", "l":
		v.finetuning.SetDatasetSize(v.finetuning.EffectiveDatasetSize() + 1)
	case "-", "left", "h":
		v.finetuning.SetDatasetSize(v.finetuning.EffectiveDatasetSize() - 1)
	case "m":
		v.model.SetValue(v.finetuning.Model())
		return v, v.model.Focus()
	case "p":
		v.platform.SetValue(v.finetuning.Platform())
		return v, v.platform.Focus()
	case "f":
		next := domain.FormatDPO
		if v.finetuning.Format() == domain.FormatDPO {
			next = domain.FormatSFT
		}
		if err := v.finetuning.SetFormat(next); err != nil {
			v.err = err
		}
	case "e", "r":
		return v, v.refreshEstimate()
	case "enter":
		if v.finetuning.UntunedCount() == 0 {
			v.err = domain.ErrNoUntunedAnnotations
			return v, nil
		}
		v.confirming = true
		v.submitted = nil
	}
	return v, nil
}

func (v *View) handleInputKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		v.model.Blur()
		v.platform.Blur()
		return v, nil
	case "enter":
		if v.model.Focused() {
			v.finetuning.SetModel(strings.TrimSpace(v.model.Value()))
			v.model.Blur()
		} else {
			v.finetuning.SetPlatform(strings.TrimSpace(v.platform.Value()))
			v.platform.Blur()
		}
		return v, v.refreshEstimate()
	}

	var cmd tea.Cmd
	if v.model.Focused() {
		v.model, cmd = v.model.Update(msg)
	} else {
		v.platform, cmd = v.platform.Update(msg)
	}
	return v, cmd
}

func (v *View) handleConfirmKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	v.confirming = false
	if msg.String() != "y" {
		return v, nil
	}
	v.submitting = true
	v.err = nil
	ctx := v.ctx
	submit := func() tea.Msg {
		job, err := v.finetuning.Submit(ctx)
		return messages.JobSubmitted{Job: job, Err: err}
	}
	return v, tea.Batch(v.spinner.Tick, submit)
}

func (v *View) refreshEstimate() tea.Cmd {
	if v.finetuning.Model() == "" || v.finetuning.Platform() == "" {
		return nil
	}
	v.estimating = true
	ctx := v.ctx
	estimate := func() tea.Msg {
		est, err := v.finetuning.RefreshEstimate(ctx)
		return messages.EstimateLoaded{Estimate: est, Err: err}
	}
	return tea.Batch(v.spinner.Tick, estimate)
}

// View renders the fine-tune view.
func (v *View) View() string {
	var b strings.Builder
	ft := v.finetuning

	b.WriteString(v.styles.Title.Render("Fine-tune"))
	b.WriteString("\n\n")

	size := ft.EffectiveDatasetSize()
	b.WriteString(fmt.Sprintf("%s %d of %d untuned",
		v.styles.Subtitle.Render("Dataset size:"), size, ft.UntunedCount()))
	if requested := ft.DatasetSize(); requested != size {
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  (requested %d)", requested)))
	}
	b.WriteString("\n")

	if v.model.Focused() {
		b.WriteString(v.model.View())
	} else {
		b.WriteString(v.styles.Subtitle.Render("Model: ") + orUnset(ft.Model()))
	}
	b.WriteString("\n")
	if v.platform.Focused() {
		b.WriteString(v.platform.View())
	} else {
		b.WriteString(v.styles.Subtitle.Render("Platform: ") + orUnset(ft.Platform()))
	}
	b.WriteString("\n")
	b.WriteString(v.styles.Subtitle.Render("Format: ") + ft.Format().String())
	b.WriteString("\n\n")

	b.WriteString(v.renderEstimate())
	b.WriteString("\n\n")

	switch {
	case v.confirming:
		b.WriteString(v.styles.Warning.Render(fmt.Sprintf(
			"Submit %d annotations to %s/%s? [y/N]", size, ft.Platform(), ft.Model())))
	case v.submitting:
		b.WriteString(v.spinner.View() + " Submitting...")
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(v.err.Error()))
	case v.submitted != nil:
		b.WriteString(v.styles.Success.Render(fmt.Sprintf("Submitted job %s (%s)", v.submitted.ID, v.submitted.Status)))
	}
	b.WriteString("\n\n")

	b.WriteString(v.styles.Help.Render("[+/-] size  [m] model  [p] platform  [f] format  [e] estimate  [enter] submit  [esc] back"))
	return b.String()
}

func (v *View) renderEstimate() string {
	if v.estimating {
		return v.spinner.View() + " Estimating..."
	}
	est := v.finetuning.Estimate()
	if est == nil {
		if v.finetuning.Model() == "" || v.finetuning.Platform() == "" {
			return v.styles.Muted.Render("Set a model and platform to estimate cost")
		}
		return v.styles.Muted.Render("No estimate")
	}
	return fmt.Sprintf("%s $%.2f for %d annotations",
		v.styles.Subtitle.Render("Estimated cost:"), est.EstimatedCostUSD, est.DatasetSize)
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.model.SetWidth(width)
	v.platform.SetWidth(width)
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
