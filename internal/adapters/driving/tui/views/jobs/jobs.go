// Package jobs provides the fine-tuning job monitor view.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
)

// View lists fine-tuning jobs and shows the expanded job's detail.
type View struct {
	styles  *styles.Styles
	monitor driving.JobMonitorService
	ctx     context.Context

	cursor *list.Cursor
	bar    progress.Model

	loading bool
	err     error
	width   int
	height  int
}

// NewView creates a jobs view.
func NewView(s *styles.Styles, monitor driving.JobMonitorService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:  s,
		monitor: monitor,
		ctx:     context.Background(),
		cursor:  list.NewCursor(8),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(20)),
		width:   80,
		height:  24,
	}
}

// SetContext sets the context used for backend calls.
func (v *View) SetContext(ctx context.Context) {
	v.ctx = ctx
}

// Init reloads the job list.
func (v *View) Init() tea.Cmd {
	v.cursor.SetLength(len(v.monitor.Jobs()))
	return v.refresh()
}

func (v *View) refresh() tea.Cmd {
	v.loading = true
	ctx := v.ctx
	return func() tea.Msg {
		return messages.JobsLoaded{Err: v.monitor.Refresh(ctx)}
	}
}

// Update handles messages for the jobs view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.CoreEvent:
		if msg.Event.Kind == domain.EventJobsChanged {
			v.cursor.SetLength(len(v.monitor.Jobs()))
		}
		return v, nil

	case messages.JobsLoaded:
		v.loading = false
		v.err = msg.Err
		v.cursor.SetLength(len(v.monitor.Jobs()))
		return v, nil

	case messages.JobExpanded:
		v.err = msg.Err
		return v, nil

	case messages.JobSubmitted:
		if msg.Err == nil {
			return v, v.refresh()
		}
		return v, nil

	case tea.KeyMsg:
		return v.handleKeys(msg)
	}
	return v, nil
}

func (v *View) handleKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if v.monitor.Expanded() != "" {
			v.monitor.Collapse()
			return v, nil
		}
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case "enter":
		job := v.current()
		if job == nil {
			return v, nil
		}
		if v.monitor.Expanded() == job.ID {
			v.monitor.Collapse()
			return v, nil
		}
		id, ctx := job.ID, v.ctx
		return v, func() tea.Msg {
			return messages.JobExpanded{JobID: id, Err: v.monitor.Expand(ctx, id)}
		}
	case "a":
		v.monitor.SetAutoRefresh(!v.monitor.AutoRefresh())
	case "r":
		v.loading = true
		ctx := v.ctx
		return v, func() tea.Msg {
			return messages.JobsLoaded{Err: v.monitor.RefreshAll(ctx)}
		}
	default:
		v.cursor.Update(msg)
	}
	return v, nil
}

func (v *View) current() *domain.FineTuningJob {
	jobs := v.monitor.Jobs()
	i := v.cursor.Selected()
	if i < 0 || i >= len(jobs) {
		return nil
	}
	job := jobs[i]
	return &job
}

// View renders the jobs view.
func (v *View) View() string {
	var b strings.Builder
	jobs := v.monitor.Jobs()

	active := 0
	for i := range jobs {
		if jobs[i].IsActive() {
			active++
		}
	}

	b.WriteString(v.styles.Title.Render("Fine-tuning jobs"))
	b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  %d jobs, %d active", len(jobs), active)))
	if v.monitor.AutoRefresh() {
		b.WriteString(v.styles.Success.Render("  auto-refresh on"))
	}
	b.WriteString("\n")
	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(v.err.Error()))
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading..."))
	}
	b.WriteString("\n\n")

	if len(jobs) == 0 {
		b.WriteString(v.styles.Muted.Render("No fine-tuning jobs yet"))
		b.WriteString("\n")
	}

	expanded := v.monitor.Expanded()
	start, end := v.cursor.Window()
	for i := start; i < end && i < len(jobs); i++ {
		b.WriteString(v.renderRow(i, jobs[i]))
		b.WriteString("\n")
		if jobs[i].ID == expanded {
			b.WriteString(v.renderDetail(v.monitor.Detail()))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[enter] expand  [a] auto-refresh  [r] refresh  [esc] back"))
	return b.String()
}

func (v *View) renderRow(i int, job domain.FineTuningJob) string {
	cost := "-"
	if job.CostUSD != nil {
		cost = fmt.Sprintf("$%.2f", *job.CostUSD)
	}
	line := fmt.Sprintf("%-20s %s %s %-10s %-14s %6s  %s",
		job.ID, v.bar.ViewAs(job.Progress/100), v.statusStyle(job.Status), job.Platform, job.Model, cost,
		job.CreatedAt.Local().Format("2006-01-02 15:04"))
	if i == v.cursor.Selected() {
		return v.styles.Selected.Render(">") + " " + line
	}
	return "  " + line
}

func (v *View) statusStyle(status string) string {
	padded := fmt.Sprintf("%-10s", status)
	switch strings.ToLower(status) {
	case "completed", "succeeded":
		return v.styles.Success.Render(padded)
	case "failed", "cancelled", "error":
		return v.styles.Error.Render(padded)
	case "running":
		return v.styles.Warning.Render(padded)
	default:
		return v.styles.Muted.Render(padded)
	}
}

func (v *View) renderDetail(detail *domain.JobDetail) string {
	if detail == nil {
		return v.styles.Muted.Render("    Loading detail...")
	}

	var lines []string
	st := detail.Status
	lines = append(lines, fmt.Sprintf("Status %s  %.0f%%", st.Status, st.Progress))
	if st.EstimatedSecondsRemaining != nil {
		eta := time.Duration(*st.EstimatedSecondsRemaining * float64(time.Second)).Round(time.Second)
		lines = append(lines, "Remaining "+eta.String())
	}
	if len(st.CostTracking) > 0 {
		keys := make([]string, 0, len(st.CostTracking))
		for k := range st.CostTracking {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%s %v", k, st.CostTracking[k]))
		}
	}

	logs := detail.Logs
	if room := max(3, v.height/3); len(logs) > room {
		logs = logs[len(logs)-room:]
	}
	if len(logs) == 0 {
		lines = append(lines, v.styles.Muted.Render("No logs"))
	}
	for _, entry := range logs {
		lines = append(lines, fmt.Sprintf("%s  %s", entry.Timestamp.Local().Format("15:04:05"), entry.Message))
	}

	return v.styles.Panel.MarginLeft(4).Render(strings.Join(lines, "\n"))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.cursor.SetVisible(max(3, height/3))
	v.bar.Width = max(10, min(30, width/6))
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
