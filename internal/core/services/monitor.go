package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
	"github.com/custodia-labs/privatetune/internal/logger"
)

// Verify interface compliance.
var _ driving.JobMonitorService = (*JobMonitor)(nil)

// JobMonitor lists fine-tuning jobs and inspects at most one expanded job.
type JobMonitor struct {
	backend   driven.FineTuningBackend
	dataset   driving.DatasetService
	bus       *EventBus
	refresher *RecurringTask
	logLimit  int

	mu       sync.RWMutex
	jobs     []domain.FineTuningJob
	expanded string
	detail   *domain.JobDetail

	// expandSeq identifies the current detail fetch; older results are dropped.
	expandSeq uint64
	listSeq   uint64
}

// NewJobMonitor creates a monitor with auto-refresh stopped.
func NewJobMonitor(
	backend driven.FineTuningBackend,
	dataset driving.DatasetService,
	clock driven.Clock,
	bus *EventBus,
) *JobMonitor {
	m := &JobMonitor{
		backend:  backend,
		dataset:  dataset,
		bus:      bus,
		logLimit: domain.DefaultJobLogLimit,
	}
	m.refresher = NewRecurringTask("job monitor", clock, domain.JobAutoRefreshInterval, m.tick)
	return m
}

// Refresh reloads the job list.
func (m *JobMonitor) Refresh(ctx context.Context) error {
	if m.backend == nil {
		return domain.ErrNotImplemented
	}

	m.mu.Lock()
	m.listSeq++
	seq := m.listSeq
	m.mu.Unlock()

	jobs, err := m.backend.ListFineTuningJobs(ctx)
	if err != nil {
		return fmt.Errorf("list fine-tuning jobs: %w", err)
	}
	for i := range jobs {
		jobs[i].Progress = domain.ClampProgress(jobs[i].Progress)
	}

	m.mu.Lock()
	if seq != m.listSeq {
		m.mu.Unlock()
		return nil
	}
	m.jobs = jobs
	m.mu.Unlock()

	m.bus.Emit(domain.EventJobsChanged)
	return nil
}

// Jobs returns the job list.
func (m *JobMonitor) Jobs() []domain.FineTuningJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.FineTuningJob, len(m.jobs))
	copy(out, m.jobs)
	return out
}

// Expand marks jobID as expanded and fetches its status and logs concurrently.
func (m *JobMonitor) Expand(ctx context.Context, jobID string) error {
	if m.backend == nil {
		return domain.ErrNotImplemented
	}

	m.mu.Lock()
	m.expanded = jobID
	m.detail = nil
	m.expandSeq++
	seq := m.expandSeq
	m.mu.Unlock()
	m.bus.Emit(domain.EventJobDetailChanged)

	return m.fetchDetail(ctx, jobID, seq)
}

// fetchDetail loads status and logs and applies them if seq is still current.
func (m *JobMonitor) fetchDetail(ctx context.Context, jobID string, seq uint64) error {
	var (
		status *domain.JobStatusDetail
		logs   []domain.JobLogEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		status, err = m.backend.GetFineTuningJobStatus(gctx, jobID)
		if err != nil {
			return fmt.Errorf("job %s status: %w", jobID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		logs, err = m.backend.GetFineTuningJobLogs(gctx, jobID, m.logLimit)
		if err != nil {
			return fmt.Errorf("job %s logs: %w", jobID, err)
		}
		return nil
	})
	err := g.Wait()

	m.mu.Lock()
	if seq != m.expandSeq || m.expanded != jobID {
		m.mu.Unlock()
		logger.Debug("monitor: dropping stale detail for %s", jobID)
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}
	detail := domain.JobDetail{Status: *status, Logs: logs}
	detail.Status.Progress = domain.ClampProgress(detail.Status.Progress)
	for i := range detail.Logs {
		if p := detail.Logs[i].Progress; p != nil {
			clamped := domain.ClampProgress(*p)
			detail.Logs[i].Progress = &clamped
		}
	}
	m.detail = &detail
	m.mu.Unlock()

	m.bus.Emit(domain.EventJobDetailChanged)
	return nil
}

// Collapse clears the expanded job and its detail. In-flight fetches are discarded.
func (m *JobMonitor) Collapse() {
	m.mu.Lock()
	changed := m.expanded != "" || m.detail != nil
	m.expanded = ""
	m.detail = nil
	m.expandSeq++
	m.mu.Unlock()
	if changed {
		m.bus.Emit(domain.EventJobDetailChanged)
	}
}

// Expanded returns the expanded job id, or "".
func (m *JobMonitor) Expanded() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expanded
}

// Detail returns the expanded job's detail, or nil while loading.
func (m *JobMonitor) Detail() *domain.JobDetail {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.detail == nil {
		return nil
	}
	detail := *m.detail
	detail.Logs = append([]domain.JobLogEntry(nil), m.detail.Logs...)
	return &detail
}

// reloadDetail refetches the expanded job's detail without clearing it.
func (m *JobMonitor) reloadDetail(ctx context.Context) error {
	m.mu.Lock()
	jobID := m.expanded
	if jobID == "" {
		m.mu.Unlock()
		return nil
	}
	m.expandSeq++
	seq := m.expandSeq
	m.mu.Unlock()

	return m.fetchDetail(ctx, jobID, seq)
}

// AutoRefresh reports whether periodic refresh is running.
func (m *JobMonitor) AutoRefresh() bool {
	return m.refresher.Active()
}

// SetAutoRefresh starts or stops periodic refresh of the job list and
// the expanded job.
func (m *JobMonitor) SetAutoRefresh(enabled bool) {
	if enabled {
		if m.refresher.Start(context.Background()) {
			logger.Debug("monitor: auto-refresh on")
		}
	} else {
		m.refresher.Stop()
		logger.Debug("monitor: auto-refresh off")
	}
}

func (m *JobMonitor) tick(ctx context.Context) bool {
	if err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("monitor: refresh failed, retrying: %v", err)
	}
	if err := m.reloadDetail(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("monitor: detail refresh failed, retrying: %v", err)
	}
	return false
}

// RefreshAll reloads the dataset, the job list and the expanded job's
// detail concurrently. Every leg runs to completion; failures are joined.
func (m *JobMonitor) RefreshAll(ctx context.Context) error {
	errs := make([]error, 3)

	var g errgroup.Group
	if m.dataset != nil {
		g.Go(func() error {
			errs[0] = m.dataset.Reload(ctx)
			return nil
		})
	}
	g.Go(func() error {
		errs[1] = m.Refresh(ctx)
		return nil
	})
	g.Go(func() error {
		errs[2] = m.reloadDetail(ctx)
		return nil
	})
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("refresh all: %w", err)
	}
	return nil
}

// Stop cancels periodic refresh.
func (m *JobMonitor) Stop() {
	m.refresher.Stop()
}
