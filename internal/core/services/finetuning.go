package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
	"github.com/custodia-labs/privatetune/internal/logger"
)

// Verify interface compliance.
var _ driving.FineTuningService = (*FineTuningSubmitter)(nil)

// estimateInputs are the values a cost estimate depends on.
type estimateInputs struct {
	size     int
	model    string
	platform string
}

// FineTuningSubmitter keeps a live cost estimate and submits untuned
// annotations as fine-tuning jobs.
type FineTuningSubmitter struct {
	backend driven.FineTuningBackend
	dataset driving.DatasetService
	monitor driving.JobMonitorService
	bus     *EventBus

	// spawn runs an estimate request in the background.
	spawn func(func())

	mu        sync.Mutex
	requested int
	model     string
	platform  string
	format    domain.TrainingFormat
	untuned   int
	estimate  *domain.CostEstimate
	inputs    estimateInputs
	seq       uint64
}

// NewFineTuningSubmitter creates a submitter seeded from settings and
// subscribes it to dataset changes.
func NewFineTuningSubmitter(
	backend driven.FineTuningBackend,
	dataset driving.DatasetService,
	monitor driving.JobMonitorService,
	settings domain.FineTuningSettings,
	bus *EventBus,
) *FineTuningSubmitter {
	s := &FineTuningSubmitter{
		backend:   backend,
		dataset:   dataset,
		monitor:   monitor,
		bus:       bus,
		spawn:     func(f func()) { go f() },
		requested: settings.DatasetSize,
		model:     settings.Model,
		platform:  settings.Platform,
		format:    settings.Format,
	}
	if !s.format.IsValid() {
		s.format = domain.FormatSFT
	}
	s.untuned = len(dataset.Untuned())
	bus.Subscribe(func(ev domain.Event) {
		if ev.Kind == domain.EventDatasetChanged {
			s.syncUntuned()
		}
	})
	return s
}

// syncUntuned re-reads the untuned count and re-clamps the dataset size.
func (s *FineTuningSubmitter) syncUntuned() {
	n := len(s.dataset.Untuned())
	s.mu.Lock()
	s.untuned = n
	s.mu.Unlock()
	s.recompute()
}

// DatasetSize returns the requested size before clamping.
func (s *FineTuningSubmitter) DatasetSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// SetDatasetSize changes the requested size.
func (s *FineTuningSubmitter) SetDatasetSize(n int) {
	s.mu.Lock()
	s.requested = n
	s.mu.Unlock()
	s.recompute()
}

// EffectiveDatasetSize returns the requested size clamped to [1, max(1, untuned)].
func (s *FineTuningSubmitter) EffectiveDatasetSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ClampDatasetSize(s.requested, s.untuned)
}

// UntunedCount returns the number of annotations eligible for submission.
func (s *FineTuningSubmitter) UntunedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.untuned
}

// Model returns the base model.
func (s *FineTuningSubmitter) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel changes the base model.
func (s *FineTuningSubmitter) SetModel(model string) {
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	s.recompute()
}

// Platform returns the fine-tuning platform.
func (s *FineTuningSubmitter) Platform() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.platform
}

// SetPlatform changes the fine-tuning platform.
func (s *FineTuningSubmitter) SetPlatform(platform string) {
	s.mu.Lock()
	s.platform = platform
	s.mu.Unlock()
	s.recompute()
}

// Format returns the training data format.
func (s *FineTuningSubmitter) Format() domain.TrainingFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// SetFormat changes the training data format.
func (s *FineTuningSubmitter) SetFormat(format domain.TrainingFormat) error {
	if !format.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFormat, format)
	}
	s.mu.Lock()
	s.format = format
	s.mu.Unlock()
	return nil
}

// Estimate returns the current estimate, or nil when absent.
func (s *FineTuningSubmitter) Estimate() *domain.CostEstimate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.estimate == nil {
		return nil
	}
	est := *s.estimate
	return &est
}

// recompute dispatches a background estimate when its inputs changed,
// or clears it when nothing can be submitted.
func (s *FineTuningSubmitter) recompute() {
	s.mu.Lock()
	in, ok := s.currentInputs()
	if !ok {
		s.seq++
		s.inputs = estimateInputs{}
		cleared := s.estimate != nil
		s.estimate = nil
		s.mu.Unlock()
		if cleared {
			s.bus.Emit(domain.EventEstimateChanged)
		}
		return
	}
	if in == s.inputs {
		s.mu.Unlock()
		return
	}
	s.inputs = in
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.spawn(func() {
		if err := s.runEstimate(context.Background(), seq, in); err != nil {
			logger.Warn("finetuning: estimate failed: %v", err)
		}
	})
}

// currentInputs returns the estimate inputs, or false when no estimate
// should exist. Callers hold s.mu.
func (s *FineTuningSubmitter) currentInputs() (estimateInputs, bool) {
	if s.untuned == 0 || s.model == "" || s.platform == "" {
		return estimateInputs{}, false
	}
	return estimateInputs{
		size:     domain.ClampDatasetSize(s.requested, s.untuned),
		model:    s.model,
		platform: s.platform,
	}, true
}

// runEstimate requests an estimate and applies it if seq is still current.
func (s *FineTuningSubmitter) runEstimate(ctx context.Context, seq uint64, in estimateInputs) error {
	if s.backend == nil {
		return domain.ErrNotImplemented
	}

	est, err := s.backend.EstimateFineTuningCost(ctx, in.size, in.model, in.platform)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		logger.Debug("finetuning: dropping stale estimate for size %d", in.size)
		return nil
	}
	if err != nil {
		// Allow the same inputs to be retried.
		s.inputs = estimateInputs{}
		s.mu.Unlock()
		return fmt.Errorf("estimate fine-tuning cost: %w", err)
	}
	applied := domain.CostEstimate{
		DatasetSize:      in.size,
		Model:            in.model,
		Platform:         in.platform,
		EstimatedCostUSD: est.EstimatedCostUSD,
	}
	s.estimate = &applied
	s.mu.Unlock()

	s.bus.Emit(domain.EventEstimateChanged)
	return nil
}

// RefreshEstimate recomputes the estimate and waits for it.
// Returns nil without error when no estimate applies.
func (s *FineTuningSubmitter) RefreshEstimate(ctx context.Context) (*domain.CostEstimate, error) {
	s.mu.Lock()
	in, ok := s.currentInputs()
	if !ok {
		s.seq++
		s.estimate = nil
		s.inputs = estimateInputs{}
		s.mu.Unlock()
		return nil, nil
	}
	s.inputs = in
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if err := s.runEstimate(ctx, seq, in); err != nil {
		return nil, err
	}
	return s.Estimate(), nil
}

// Submit sends the first EffectiveDatasetSize untuned annotations, in
// dataset order, as one job. It then refreshes the dataset and job list
// and expands the new job. A rejected submission changes nothing.
func (s *FineTuningSubmitter) Submit(ctx context.Context) (*domain.FineTuningJob, error) {
	s.mu.Lock()
	model, platform, format, requested := s.model, s.platform, s.format, s.requested
	s.mu.Unlock()

	if model == "" || platform == "" {
		return nil, domain.ErrModelNotConfigured
	}

	untuned := s.dataset.Untuned()
	if len(untuned) == 0 {
		return nil, domain.ErrNoUntunedAnnotations
	}
	if s.backend == nil {
		return nil, domain.ErrNotImplemented
	}

	size := domain.ClampDatasetSize(requested, len(untuned))
	batch := untuned[:size]

	logger.Section("Fine-tuning submission")
	logger.Debug("Platform: %s, model: %s, format: %s, size: %d of %d",
		platform, model, format, size, len(untuned))

	job, err := s.backend.SubmitFineTuningJob(ctx, batch, platform, model, format)
	if err != nil {
		s.bus.Notify("Fine-tuning submission failed", err)
		return nil, fmt.Errorf("submit fine-tuning job: %w", err)
	}
	logger.Info("finetuning: submitted job %s with %d annotations", job.ID, size)
	s.bus.Notify(fmt.Sprintf("Submitted fine-tuning job %s", job.ID), nil)

	if s.monitor != nil {
		if err := s.monitor.RefreshAll(ctx); err != nil {
			logger.Warn("finetuning: refresh after submit: %v", err)
		}
		if job.ID != "" {
			if err := s.monitor.Expand(ctx, job.ID); err != nil {
				logger.Warn("finetuning: expand job %s: %v", job.ID, err)
			}
		}
	}
	return job, nil
}
