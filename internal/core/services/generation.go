package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
	"github.com/custodia-labs/privatetune/internal/logger"
)

// Verify interface compliance.
var _ driving.GenerationService = (*GenerationController)(nil)

// ActiveItemSource exposes the active training item for fragment resolution.
type ActiveItemSource interface {
	Active() *domain.TrainingItem
}

// ModelConfigSource supplies the current generation model configuration.
type ModelConfigSource interface {
	Get() (*domain.AppSettings, error)
}

// GenerationController drives one generation job at a time from
// submission to a terminal state.
//
// State machine: Idle -> Submitting -> Polling -> Idle. Completed and
// failed jobs are reported through LastOutcome and a notice event.
type GenerationController struct {
	backend   driven.GenerationBackend
	fragments driving.FragmentService
	dataset   driving.DatasetService
	settings  ModelConfigSource
	bus       *EventBus
	poller    *RecurringTask

	mu       sync.Mutex
	items    ActiveItemSource
	state    domain.GenerationState
	job      *domain.GenerationJob
	outcome  *domain.GenerationOutcome
	template string
	clock    driven.Clock

	// seq identifies the tracked job; poll results for an older seq are dropped.
	seq uint64

	// settling is held while a terminal result is applied. Stop and Start
	// take it before changing seq, so the tracked job cannot change between
	// the seq check and the dataset update. Lock order: settling, then mu.
	settling sync.Mutex
}

// NewGenerationController creates an idle controller.
func NewGenerationController(
	backend driven.GenerationBackend,
	fragments driving.FragmentService,
	dataset driving.DatasetService,
	settings ModelConfigSource,
	clock driven.Clock,
	bus *EventBus,
) *GenerationController {
	c := &GenerationController{
		backend:   backend,
		fragments: fragments,
		dataset:   dataset,
		settings:  settings,
		bus:       bus,
		clock:     clock,
		state:     domain.StateIdle,
		template:  domain.DefaultPromptTemplate,
	}
	c.poller = NewRecurringTask("generation", clock, domain.GenerationPollInterval, c.tick)
	return c
}

// UseActiveItems sets the training item source consulted when nothing is selected.
func (c *GenerationController) UseActiveItems(items ActiveItemSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
}

// Start resumes a pending or running backend job, if one exists.
// An adopted job replaces any job already tracked.
func (c *GenerationController) Start(ctx context.Context) error {
	if c.backend == nil {
		return domain.ErrNotImplemented
	}

	jobs, err := c.backend.ListRecentGenerationJobs(ctx, domain.DefaultRecentJobsLimit)
	if err != nil {
		return fmt.Errorf("list recent generation jobs: %w", err)
	}

	var resume *domain.GenerationJob
	for i := range jobs {
		if jobs[i].Status.IsActive() {
			resume = &jobs[i]
			break
		}
	}
	if resume == nil {
		logger.Debug("generation: no job to resume")
		return nil
	}

	c.settling.Lock()
	c.mu.Lock()
	if c.state == domain.StateSubmitting {
		c.mu.Unlock()
		c.settling.Unlock()
		logger.Debug("generation: submission in flight, not resuming %s", resume.ID)
		return nil
	}
	if c.state == domain.StatePolling && c.job != nil && c.job.ID == resume.ID {
		c.mu.Unlock()
		c.settling.Unlock()
		return nil
	}
	job := *resume
	job.Progress = domain.ClampProgress(job.Progress)
	job.Annotations = nil
	c.job = &job
	c.seq++
	c.state = domain.StatePolling
	c.mu.Unlock()
	c.settling.Unlock()

	logger.Info("generation: resuming job %s (%s)", job.ID, job.Status)
	c.bus.Emit(domain.EventGenerationChanged)
	c.poller.Start(context.WithoutCancel(ctx))
	return nil
}

// ResolveFragments returns the selection, else the active item's fragments,
// else the filtered view.
func (c *GenerationController) ResolveFragments() ([]domain.Fragment, error) {
	if keys := c.fragments.Selection(); len(keys) > 0 {
		if frags := c.fragments.Lookup(keys); len(frags) > 0 {
			return frags, nil
		}
	}

	c.mu.Lock()
	items := c.items
	c.mu.Unlock()
	if items != nil {
		if item := items.Active(); item != nil {
			if frags := c.fragments.Lookup(item.FragmentKeys); len(frags) > 0 {
				return frags, nil
			}
		}
	}

	if frags := c.fragments.Filtered(); len(frags) > 0 {
		return frags, nil
	}
	return nil, domain.ErrEmptySelection
}

// Generate submits a job for the resolved fragment set and starts polling it.
func (c *GenerationController) Generate(ctx context.Context) (string, error) {
	if c.backend == nil {
		return "", domain.ErrNotImplemented
	}

	c.mu.Lock()
	if c.state != domain.StateIdle {
		c.mu.Unlock()
		return "", domain.ErrGenerationInProgress
	}
	template := c.template
	c.mu.Unlock()

	frags, err := c.ResolveFragments()
	if err != nil {
		return "", err
	}

	model, err := c.modelConfig()
	if err != nil {
		return "", err
	}

	prompts := make([]string, len(frags))
	for i := range frags {
		prompts[i] = domain.RenderPrompt(template, frags[i].Content)
	}

	c.mu.Lock()
	if c.state != domain.StateIdle {
		c.mu.Unlock()
		return "", domain.ErrGenerationInProgress
	}
	c.state = domain.StateSubmitting
	c.seq++
	seq := c.seq
	c.mu.Unlock()
	c.bus.Emit(domain.EventGenerationChanged)

	logger.Section("Generation")
	logger.Debug("Fragments: %d, model: %s/%s, candidates: %d",
		len(prompts), model.Platform, model.Model, model.CandidateCount)

	jobID, err := c.backend.SubmitGenerationJob(ctx, domain.GenerationRequest{
		Prompts: prompts,
		Model:   model,
	})
	if err != nil {
		c.mu.Lock()
		if c.seq == seq {
			c.state = domain.StateIdle
		}
		c.mu.Unlock()
		c.bus.Emit(domain.EventGenerationChanged)
		c.bus.Notify("Generation request failed", err)
		return "", fmt.Errorf("submit generation job: %w", err)
	}

	c.mu.Lock()
	if c.seq != seq {
		// Stopped or replaced by a resumed job while submitting.
		c.mu.Unlock()
		return jobID, nil
	}
	c.job = &domain.GenerationJob{
		ID:        jobID,
		Status:    domain.GenerationPending,
		CreatedAt: c.clock.Now(),
	}
	c.state = domain.StatePolling
	c.mu.Unlock()

	logger.Info("generation: submitted job %s", jobID)
	c.bus.Emit(domain.EventGenerationChanged)
	c.poller.Start(context.WithoutCancel(ctx))
	return jobID, nil
}

func (c *GenerationController) modelConfig() (domain.ModelConfig, error) {
	if c.settings == nil {
		return domain.ModelConfig{}, domain.ErrModelNotConfigured
	}
	settings, err := c.settings.Get()
	if err != nil {
		return domain.ModelConfig{}, fmt.Errorf("read settings: %w", err)
	}
	model := settings.Generation
	if !model.IsConfigured() {
		return domain.ModelConfig{}, domain.ErrModelNotConfigured
	}
	model.CandidateCount = model.NormalisedCandidateCount()
	return model, nil
}

// tick is the poller body. Fetch failures are logged and retried next tick.
func (c *GenerationController) tick(ctx context.Context) bool {
	done, err := c.PollOnce(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Warn("generation: poll failed, retrying: %v", err)
	}
	return done
}

// PollOnce fetches the tracked job's status and applies it.
// Returns true when there is nothing left to poll.
func (c *GenerationController) PollOnce(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state != domain.StatePolling || c.job == nil {
		c.mu.Unlock()
		return true, nil
	}
	jobID, seq := c.job.ID, c.seq
	c.mu.Unlock()

	status, err := c.backend.GetGenerationJobStatus(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.finish(seq, domain.GenerationFailed, nil, "job not found on backend"), nil
		}
		return false, fmt.Errorf("poll generation job %s: %w", jobID, err)
	}

	switch {
	case status.Status == domain.GenerationCompleted && len(status.Annotations) == 0 && status.ErrorMessage != "":
		return c.finish(seq, domain.GenerationFailed, nil, status.ErrorMessage), nil
	case status.Status.IsTerminal():
		return c.finish(seq, status.Status, status.Annotations, status.ErrorMessage), nil
	}

	c.mu.Lock()
	if c.seq != seq || c.job == nil {
		c.mu.Unlock()
		return true, nil
	}
	c.job.Status = status.Status
	c.job.Progress = domain.ClampProgress(status.Progress)
	c.mu.Unlock()

	c.bus.Emit(domain.EventGenerationChanged)
	return false, nil
}

// finish settles a terminal job and returns to Idle. Results for a
// superseded or stopped job are dropped. Always returns true.
func (c *GenerationController) finish(
	seq uint64,
	status domain.GenerationStatus,
	annotations []domain.Annotation,
	message string,
) bool {
	c.settling.Lock()
	c.mu.Lock()
	if c.seq != seq || c.job == nil {
		c.mu.Unlock()
		c.settling.Unlock()
		return true
	}
	c.mu.Unlock()

	// Results land before the controller reports Idle. Dataset subscribers
	// run here and must not call Stop synchronously.
	if status == domain.GenerationCompleted {
		c.dataset.Replace(annotations)
	}

	c.mu.Lock()
	outcome := &domain.GenerationOutcome{
		JobID:           c.job.ID,
		Status:          status,
		AnnotationCount: len(annotations),
		ErrorMessage:    message,
		FinishedAt:      c.clock.Now(),
	}
	c.outcome = outcome
	c.job = nil
	c.state = domain.StateIdle
	c.mu.Unlock()
	c.settling.Unlock()

	if status == domain.GenerationCompleted {
		logger.Info("generation: job %s completed with %d annotations", outcome.JobID, len(annotations))
		c.bus.Notify(fmt.Sprintf("Generated %d annotations", len(annotations)), nil)
	} else {
		if message == "" {
			message = "generation failed"
		}
		logger.Info("generation: job %s failed: %s", outcome.JobID, message)
		c.bus.Notify("Generation failed", fmt.Errorf("%w: %s", domain.ErrJobFailed, message))
	}
	c.bus.Emit(domain.EventGenerationChanged)
	return true
}

// State returns the controller state.
func (c *GenerationController) State() domain.GenerationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Job returns a copy of the tracked job, or nil.
func (c *GenerationController) Job() *domain.GenerationJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil {
		return nil
	}
	job := *c.job
	return &job
}

// LastOutcome returns how the last tracked job ended, or nil.
func (c *GenerationController) LastOutcome() *domain.GenerationOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == nil {
		return nil
	}
	outcome := *c.outcome
	return &outcome
}

// Polling reports whether the poll task is scheduled.
func (c *GenerationController) Polling() bool {
	return c.poller.Active()
}

// Stop cancels polling and returns to Idle. A result already being
// applied completes first; any later one is dropped.
func (c *GenerationController) Stop() {
	c.settling.Lock()
	c.mu.Lock()
	c.seq++
	c.job = nil
	changed := c.state != domain.StateIdle
	c.state = domain.StateIdle
	c.mu.Unlock()
	c.settling.Unlock()

	c.poller.Stop()
	if changed {
		c.bus.Emit(domain.EventGenerationChanged)
	}
}

// Template returns the prompt template.
func (c *GenerationController) Template() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.template
}

// SetTemplate replaces the prompt template.
func (c *GenerationController) SetTemplate(template string) {
	c.mu.Lock()
	c.template = template
	c.mu.Unlock()
	c.bus.Emit(domain.EventGenerationChanged)
}
