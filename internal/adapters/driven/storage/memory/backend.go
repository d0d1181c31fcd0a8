package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
)

// Ensure Backend implements the interface.
var _ driven.Backend = (*Backend)(nil)

// Cost and progress model of the in-memory fine-tuning platform.
const (
	tokensPerAnnotation = 500
	costPer1KTokens     = 0.008
	progressPerPoll     = 25.0
)

// fineTuningRun is a submitted job and its log.
type fineTuningRun struct {
	job  domain.FineTuningJob
	logs []domain.JobLogEntry
}

// Backend is an in-memory implementation of driven.Backend.
// Generation jobs finish on their first status poll and fine-tuning
// jobs advance on every status poll, so the full workflow can run
// offline and in tests.
type Backend struct {
	mu  sync.RWMutex
	now func() time.Time

	fragments []domain.Fragment

	items      map[int64]domain.TrainingItem
	nextItemID int64

	// sets holds saved annotations by training item id; 0 is unscoped.
	sets         map[int64][]domain.Annotation
	nextAnnoID   int64
	generations  []domain.GenerationJob
	pending      map[string]domain.GenerationRequest
	runs         []*fineTuningRun
	generateFunc func(prompt string, n int) []domain.Annotation
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{
		now:          time.Now,
		items:        make(map[int64]domain.TrainingItem),
		sets:         make(map[int64][]domain.Annotation),
		pending:      make(map[string]domain.GenerationRequest),
		generateFunc: echoAnnotations,
	}
}

// SetClock replaces the time source used for timestamps.
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// SetGenerator replaces the function that turns a rendered prompt into
// n annotations when a generation job completes.
func (b *Backend) SetGenerator(fn func(prompt string, n int) []domain.Annotation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generateFunc = fn
}

// AddFragments appends fragments to the corpus. Fragments without an
// id are numbered after the current last one.
func (b *Backend) AddFragments(frags ...domain.Fragment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := int64(len(b.fragments)) + 1
	for _, f := range frags {
		if f.ID == 0 {
			f.ID = next
		}
		next = max(next, f.ID) + 1
		f.Keywords = slices.Clone(f.Keywords)
		b.fragments = append(b.fragments, f)
	}
}

// ListFragments returns one page of fragments, excluded ones included.
func (b *Backend) ListFragments(_ context.Context, page, pageSize int, minWeight float64) (*domain.FragmentPage, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("%w: page %d size %d", domain.ErrInvalidInput, page, pageSize)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	matched := make([]domain.Fragment, 0, len(b.fragments))
	for _, f := range b.fragments {
		if minWeight > 0 && f.Weight < minWeight {
			continue
		}
		f.Keywords = slices.Clone(f.Keywords)
		matched = append(matched, f)
	}

	start := min((page-1)*pageSize, len(matched))
	end := min(start+pageSize, len(matched))
	return &domain.FragmentPage{Items: matched[start:end], Total: len(matched)}, nil
}

// UpdateFragmentWeight sets the weight of a fragment.
func (b *Backend) UpdateFragmentWeight(_ context.Context, id int64, weight float64) error {
	if weight < domain.MinFragmentWeight || weight > domain.MaxFragmentWeight {
		return fmt.Errorf("%w: weight %.1f out of range", domain.ErrSubmission, weight)
	}
	return b.updateFragment(id, func(f *domain.Fragment) { f.Weight = weight })
}

// SetFragmentExcluded soft-deletes or restores a fragment.
func (b *Backend) SetFragmentExcluded(_ context.Context, id int64, excluded bool) error {
	return b.updateFragment(id, func(f *domain.Fragment) { f.Excluded = excluded })
}

func (b *Backend) updateFragment(id int64, apply func(*domain.Fragment)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.fragments {
		if b.fragments[i].ID == id {
			apply(&b.fragments[i])
			return nil
		}
	}
	return fmt.Errorf("fragment %d: %w", id, domain.ErrNotFound)
}

// ListTrainingItems returns all training items, newest update first.
func (b *Backend) ListTrainingItems(_ context.Context) ([]domain.TrainingItem, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	items := make([]domain.TrainingItem, 0, len(b.items))
	for _, item := range b.items {
		item.FragmentKeys = slices.Clone(item.FragmentKeys)
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, c domain.TrainingItem) int {
		if cmp := c.UpdatedAt.Compare(a.UpdatedAt); cmp != 0 {
			return cmp
		}
		return int(c.ID - a.ID)
	})
	return items, nil
}

// SaveTrainingItem creates an item or updates the one with the same name.
func (b *Backend) SaveTrainingItem(_ context.Context, name string, keys []domain.FragmentKey, template string) (*domain.TrainingItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrSubmission)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no knowledge points", domain.ErrSubmission)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	item := domain.TrainingItem{Name: name, CreatedAt: now}
	for _, existing := range b.items {
		if existing.Name == name {
			item = existing
			break
		}
	}
	if item.ID == 0 {
		b.nextItemID++
		item.ID = b.nextItemID
	}
	item.FragmentKeys = slices.Clone(keys)
	item.PromptTemplate = template
	item.UpdatedAt = now
	b.items[item.ID] = item

	saved := item
	saved.FragmentKeys = slices.Clone(item.FragmentKeys)
	return &saved, nil
}

// DeleteTrainingItem removes an item and its saved annotations.
func (b *Backend) DeleteTrainingItem(_ context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[id]; !ok {
		return fmt.Errorf("training item %d: %w", id, domain.ErrNotFound)
	}
	delete(b.items, id)
	delete(b.sets, id)
	return nil
}

// SubmitGenerationJob queues a job. It completes on its first status poll.
func (b *Backend) SubmitGenerationJob(_ context.Context, req domain.GenerationRequest) (string, error) {
	if len(req.Prompts) == 0 {
		return "", fmt.Errorf("%w: no knowledge points", domain.ErrSubmission)
	}
	if strings.TrimSpace(req.Model.Model) == "" {
		return "", fmt.Errorf("%w: model is required", domain.ErrSubmission)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.pending[id] = domain.GenerationRequest{
		Prompts: slices.Clone(req.Prompts),
		Model:   req.Model,
	}
	b.generations = append(b.generations, domain.GenerationJob{
		ID:        id,
		Status:    domain.GenerationPending,
		CreatedAt: b.now(),
	})
	return id, nil
}

// GetGenerationJobStatus completes a pending job and returns it.
func (b *Backend) GetGenerationJobStatus(_ context.Context, jobID string) (*domain.GenerationJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := slices.IndexFunc(b.generations, func(j domain.GenerationJob) bool { return j.ID == jobID })
	if idx < 0 {
		return nil, fmt.Errorf("generation job %s: %w", jobID, domain.ErrNotFound)
	}

	job := &b.generations[idx]
	if req, ok := b.pending[jobID]; ok {
		delete(b.pending, jobID)
		n := req.Model.NormalisedCandidateCount()
		annotations := make([]domain.Annotation, 0, len(req.Prompts)*n)
		for _, prompt := range req.Prompts {
			annotations = append(annotations, b.generateFunc(prompt, n)...)
		}
		job.Status = domain.GenerationCompleted
		job.Progress = 100
		job.Annotations = annotations
	}

	out := *job
	out.Annotations = domain.CloneAnnotations(job.Annotations)
	return &out, nil
}

// ListRecentGenerationJobs returns up to limit jobs, newest first, without annotations.
func (b *Backend) ListRecentGenerationJobs(_ context.Context, limit int) ([]domain.GenerationJob, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	jobs := make([]domain.GenerationJob, 0, len(b.generations))
	for i := len(b.generations) - 1; i >= 0; i-- {
		if limit > 0 && len(jobs) == limit {
			break
		}
		job := b.generations[i]
		job.Annotations = nil
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// SaveTrainingSet replaces the saved annotations of a scope. Entries
// without an instruction or response are dropped.
func (b *Backend) SaveTrainingSet(_ context.Context, annotations []domain.Annotation, trainingItemID *int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	scope := scopeKey(trainingItemID)
	if scope != 0 {
		if _, ok := b.items[scope]; !ok {
			return 0, fmt.Errorf("training item %d: %w", scope, domain.ErrNotFound)
		}
	}

	kept := make([]domain.Annotation, 0, len(annotations))
	for _, a := range domain.CloneAnnotations(annotations) {
		a.Instruction = strings.TrimSpace(a.Instruction)
		a.Response = strings.TrimSpace(a.Response)
		if !a.IsComplete() {
			continue
		}
		if a.ID == 0 {
			b.nextAnnoID++
			a.ID = b.nextAnnoID
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = b.now()
		}
		if !a.HasScore() {
			a.Score = 0
		}
		a.TrainingItemID = nil
		if trainingItemID != nil {
			id := *trainingItemID
			a.TrainingItemID = &id
		}
		kept = append(kept, a)
	}
	b.sets[scope] = kept
	return len(kept), nil
}

// LoadTrainingSet returns the saved annotations of a scope. The
// unscoped set includes every scope.
func (b *Backend) LoadTrainingSet(_ context.Context, trainingItemID *int64) ([]domain.Annotation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if trainingItemID != nil {
		return domain.CloneAnnotations(b.sets[*trainingItemID]), nil
	}

	scopes := make([]int64, 0, len(b.sets))
	for scope := range b.sets {
		scopes = append(scopes, scope)
	}
	slices.Sort(scopes)

	var all []domain.Annotation
	for _, scope := range scopes {
		all = append(all, b.sets[scope]...)
	}
	return domain.CloneAnnotations(all), nil
}

func scopeKey(trainingItemID *int64) int64 {
	if trainingItemID == nil {
		return 0
	}
	return *trainingItemID
}

// EstimateFineTuningCost prices a job at a flat per-token rate.
func (b *Backend) EstimateFineTuningCost(_ context.Context, datasetSize int, model, platform string) (*domain.CostEstimate, error) {
	if datasetSize < 1 {
		return nil, fmt.Errorf("%w: dataset size must be positive", domain.ErrSubmission)
	}
	tokens := float64(datasetSize * tokensPerAnnotation)
	return &domain.CostEstimate{
		DatasetSize:      datasetSize,
		Model:            model,
		Platform:         platform,
		EstimatedCostUSD: tokens / 1000 * costPer1KTokens,
	}, nil
}

// SubmitFineTuningJob creates a submitted job and marks the annotations
// as used by it in every saved scope.
func (b *Backend) SubmitFineTuningJob(
	_ context.Context,
	annotations []domain.Annotation,
	platform, model string,
	format domain.TrainingFormat,
) (*domain.FineTuningJob, error) {
	if len(annotations) == 0 {
		return nil, fmt.Errorf("%w: no annotations", domain.ErrSubmission)
	}
	if !format.IsValid() {
		return nil, fmt.Errorf("%w: format %q", domain.ErrSubmission, format)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	cost := float64(len(annotations)*tokensPerAnnotation) / 1000 * costPer1KTokens
	job := domain.FineTuningJob{
		ID:        fmt.Sprintf("%s_%s", platform, uuid.NewString()[:8]),
		Platform:  platform,
		Model:     model,
		Status:    "submitted",
		CostUSD:   &cost,
		CreatedAt: now,
	}
	b.runs = append(b.runs, &fineTuningRun{
		job: job,
		logs: []domain.JobLogEntry{{
			Timestamp: now,
			Message:   fmt.Sprintf("Submitted %d annotations in %s format", len(annotations), format),
			Status:    job.Status,
		}},
	})

	link := domain.LinkedJob{JobID: job.ID, UsedAt: now, JobStatus: job.Status, Platform: platform, Model: model}
	for scope := range b.sets {
		set := b.sets[scope]
		for i := range set {
			if !containsAnnotation(annotations, set[i]) {
				continue
			}
			set[i].Finetuned = true
			set[i].FinetunedCount++
			set[i].LinkedJobs = append(set[i].LinkedJobs, link)
		}
	}

	out := job
	return &out, nil
}

// containsAnnotation matches by id, or by content for unsaved annotations.
func containsAnnotation(batch []domain.Annotation, a domain.Annotation) bool {
	for _, c := range batch {
		if c.ID != 0 && c.ID == a.ID {
			return true
		}
		if c.ID == 0 && strings.TrimSpace(c.Instruction) == a.Instruction &&
			strings.TrimSpace(c.Response) == a.Response {
			return true
		}
	}
	return false
}

// ListFineTuningJobs returns all jobs, newest first.
func (b *Backend) ListFineTuningJobs(_ context.Context) ([]domain.FineTuningJob, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	jobs := make([]domain.FineTuningJob, 0, len(b.runs))
	for i := len(b.runs) - 1; i >= 0; i-- {
		jobs = append(jobs, b.runs[i].job)
	}
	return jobs, nil
}

// GetFineTuningJobStatus advances a job by one step and returns its status.
func (b *Backend) GetFineTuningJobStatus(_ context.Context, jobID string) (*domain.JobStatusDetail, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	run := b.findRun(jobID)
	if run == nil {
		return nil, fmt.Errorf("fine-tuning job %s: %w", jobID, domain.ErrNotFound)
	}

	if run.job.IsActive() {
		run.job.Progress = min(run.job.Progress+progressPerPoll, 100)
		run.job.Status = "running"
		message := fmt.Sprintf("Training %.0f%% complete", run.job.Progress)
		if run.job.Progress >= 100 {
			run.job.Status = "completed"
			message = "Training completed"
		}
		progress := run.job.Progress
		run.logs = append(run.logs, domain.JobLogEntry{
			Timestamp: b.now(),
			Message:   message,
			Status:    run.job.Status,
			Progress:  &progress,
		})
	}

	detail := &domain.JobStatusDetail{
		JobID:    run.job.ID,
		Status:   run.job.Status,
		Progress: run.job.Progress,
	}
	if run.job.IsActive() {
		remaining := (100 - run.job.Progress) / progressPerPoll * domain.JobAutoRefreshInterval.Seconds()
		detail.EstimatedSecondsRemaining = &remaining
	}
	if run.job.CostUSD != nil {
		detail.CostTracking = map[string]any{"estimated_cost_usd": *run.job.CostUSD}
	}
	return detail, nil
}

// GetFineTuningJobLogs returns the newest limit log entries, oldest first.
func (b *Backend) GetFineTuningJobLogs(_ context.Context, jobID string, limit int) ([]domain.JobLogEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	run := b.findRun(jobID)
	if run == nil {
		return nil, fmt.Errorf("fine-tuning job %s: %w", jobID, domain.ErrNotFound)
	}
	logs := run.logs
	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	return slices.Clone(logs), nil
}

// findRun returns the run for jobID. Callers hold b.mu.
func (b *Backend) findRun(jobID string) *fineTuningRun {
	for _, run := range b.runs {
		if run.job.ID == jobID {
			return run
		}
	}
	return nil
}

// echoAnnotations is the default generator: one instruction/response
// pair per candidate, derived from the knowledge point in the prompt.
func echoAnnotations(prompt string, n int) []domain.Annotation {
	content := promptContent(prompt)
	subject, _, _ := strings.Cut(content, "\n")
	if r := []rune(subject); len(r) > 60 {
		subject = string(r[:60])
	}

	out := make([]domain.Annotation, n)
	for i := range out {
		out[i] = domain.Annotation{
			Instruction: fmt.Sprintf("Explain the following (%d): %s", i+1, subject),
			Response:    content,
		}
	}
	return out
}

// promptContent recovers the fragment text from a rendered prompt: the last
// paragraph, minus a leading label line such as "Knowledge Point:".
func promptContent(prompt string) string {
	content := strings.TrimSpace(prompt)
	if idx := strings.LastIndex(content, "\n\n"); idx >= 0 {
		content = strings.TrimSpace(content[idx+2:])
	}
	if label, rest, ok := strings.Cut(content, "\n"); ok && strings.HasSuffix(strings.TrimSpace(label), ":") {
		if rest = strings.TrimSpace(rest); rest != "" {
			return rest
		}
	}
	return content
}
