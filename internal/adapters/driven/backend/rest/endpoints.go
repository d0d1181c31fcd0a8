package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// Fragments.

// ListFragments returns one page of the fragment corpus.
func (c *Client) ListFragments(ctx context.Context, page, pageSize int, minWeight float64) (*domain.FragmentPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if minWeight > 0 {
		q.Set("min_weight", strconv.FormatFloat(minWeight, 'f', -1, 64))
	}

	var resp fragmentPageResponse
	if err := c.do(ctx, http.MethodGet, "/documents/knowledge-points", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("list fragments: %w", err)
	}

	out := &domain.FragmentPage{
		Items: make([]domain.Fragment, len(resp.KnowledgePoints)),
		Total: resp.Total,
	}
	for i := range resp.KnowledgePoints {
		out.Items[i] = resp.KnowledgePoints[i].toDomain()
	}
	return out, nil
}

// UpdateFragmentWeight sets a fragment's weight.
func (c *Client) UpdateFragmentWeight(ctx context.Context, id int64, weight float64) error {
	path := fmt.Sprintf("/documents/knowledge-points/%d", id)
	body := map[string]float64{"weight": weight}
	if err := c.do(ctx, http.MethodPatch, path, nil, body, nil); err != nil {
		return fmt.Errorf("update fragment %d weight: %w", id, err)
	}
	return nil
}

// SetFragmentExcluded soft-deletes or restores a fragment.
func (c *Client) SetFragmentExcluded(ctx context.Context, id int64, excluded bool) error {
	path := fmt.Sprintf("/documents/knowledge-points/%d/excluded", id)
	body := map[string]bool{"excluded": excluded}
	if err := c.do(ctx, http.MethodPatch, path, nil, body, nil); err != nil {
		return fmt.Errorf("set fragment %d excluded: %w", id, err)
	}
	return nil
}

// Training items.

// ListTrainingItems returns every training item.
func (c *Client) ListTrainingItems(ctx context.Context) ([]domain.TrainingItem, error) {
	var resp trainingItemsResponse
	if err := c.do(ctx, http.MethodGet, "/training-items", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list training items: %w", err)
	}
	items := make([]domain.TrainingItem, len(resp.Items))
	for i := range resp.Items {
		items[i] = resp.Items[i].toDomain()
	}
	return items, nil
}

// SaveTrainingItem creates an item or overwrites the one with the same name.
func (c *Client) SaveTrainingItem(ctx context.Context, name string, keys []domain.FragmentKey, template string) (*domain.TrainingItem, error) {
	req := saveTrainingItemRequest{
		Name:               name,
		KnowledgePointKeys: make([]string, len(keys)),
		PromptTemplate:     template,
	}
	for i, k := range keys {
		req.KnowledgePointKeys[i] = string(k)
	}

	var resp trainingItemDTO
	if err := c.do(ctx, http.MethodPost, "/training-items", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("save training item %q: %w", name, err)
	}
	item := resp.toDomain()
	return &item, nil
}

// DeleteTrainingItem removes an item.
func (c *Client) DeleteTrainingItem(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/training-items/%d", id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("delete training item %d: %w", id, err)
	}
	return nil
}

// Generation jobs.

// SubmitGenerationJob starts an annotation generation job.
func (c *Client) SubmitGenerationJob(ctx context.Context, req domain.GenerationRequest) (string, error) {
	body := submitGenerationRequest{
		KnowledgePoints: req.Prompts,
		Platform:        req.Model.Platform,
		Model:           req.Model.Model,
		APIKey:          req.Model.APIKey,
		BaseURL:         req.Model.BaseURL,
		CandidateCount:  req.Model.NormalisedCandidateCount(),
	}

	var resp submitGenerationResponse
	if err := c.do(ctx, http.MethodPost, "/annotations/jobs", nil, body, &resp); err != nil {
		return "", fmt.Errorf("submit generation job: %w", err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("submit generation job: %w: empty job id", domain.ErrSubmission)
	}
	return resp.JobID, nil
}

// GetGenerationJobStatus returns a job's state, with annotations once completed.
func (c *Client) GetGenerationJobStatus(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	var resp generationJobDTO
	path := "/annotations/jobs/" + url.PathEscape(jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get generation job %s: %w", jobID, err)
	}
	if resp.JobID == "" && resp.ID == "" {
		resp.JobID = jobID
	}
	job := resp.toDomain()
	return &job, nil
}

// ListRecentGenerationJobs returns up to limit jobs, newest first.
func (c *Client) ListRecentGenerationJobs(ctx context.Context, limit int) ([]domain.GenerationJob, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp generationJobsResponse
	if err := c.do(ctx, http.MethodGet, "/annotations/jobs", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("list generation jobs: %w", err)
	}
	jobs := make([]domain.GenerationJob, len(resp.Jobs))
	for i := range resp.Jobs {
		jobs[i] = resp.Jobs[i].toDomain()
	}
	return jobs, nil
}

// Training set.

// SaveTrainingSet writes annotations, optionally scoped to a training item.
func (c *Client) SaveTrainingSet(ctx context.Context, annotations []domain.Annotation, trainingItemID *int64) (int, error) {
	req := saveTrainingSetRequest{
		Annotations:    annotationsFromDomain(annotations),
		TrainingItemID: trainingItemID,
	}
	var resp saveTrainingSetResponse
	if err := c.do(ctx, http.MethodPost, "/training-set", nil, req, &resp); err != nil {
		return 0, fmt.Errorf("save training set: %w", err)
	}
	return resp.Count, nil
}

// LoadTrainingSet reads annotations, optionally scoped to a training item.
func (c *Client) LoadTrainingSet(ctx context.Context, trainingItemID *int64) ([]domain.Annotation, error) {
	q := url.Values{}
	if trainingItemID != nil {
		q.Set("training_item_id", strconv.FormatInt(*trainingItemID, 10))
	}
	var resp trainingSetResponse
	if err := c.do(ctx, http.MethodGet, "/training-set", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("load training set: %w", err)
	}
	return annotationsToDomain(resp.Annotations), nil
}

// Fine-tuning.

// EstimateFineTuningCost prices a prospective job.
func (c *Client) EstimateFineTuningCost(ctx context.Context, datasetSize int, model, platform string) (*domain.CostEstimate, error) {
	req := estimateRequest{DatasetSize: datasetSize, Model: model, Platform: platform}
	var resp estimateResponse
	if err := c.do(ctx, http.MethodPost, "/finetuning/estimate", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("estimate fine-tuning cost: %w", err)
	}
	return &domain.CostEstimate{
		DatasetSize:      datasetSize,
		Model:            model,
		Platform:         platform,
		EstimatedCostUSD: resp.EstimatedCostUSD,
	}, nil
}

// SubmitFineTuningJob submits annotations as one fine-tuning job.
func (c *Client) SubmitFineTuningJob(
	ctx context.Context,
	annotations []domain.Annotation,
	platform, model string,
	format domain.TrainingFormat,
) (*domain.FineTuningJob, error) {
	req := submitFineTuningRequest{
		TrainingData: trainingData{
			Annotations: annotationsFromDomain(annotations),
			FormatType:  format.String(),
		},
		Platform: platform,
		Model:    model,
	}
	var resp fineTuningJobDTO
	if err := c.do(ctx, http.MethodPost, "/finetuning/submit", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("submit fine-tuning job: %w", err)
	}
	job := resp.toDomain()
	if job.Platform == "" {
		job.Platform = platform
	}
	if job.Model == "" {
		job.Model = model
	}
	return &job, nil
}

// ListFineTuningJobs returns every fine-tuning job.
func (c *Client) ListFineTuningJobs(ctx context.Context) ([]domain.FineTuningJob, error) {
	var resp []fineTuningJobDTO
	if err := c.do(ctx, http.MethodGet, "/finetuning/jobs", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list fine-tuning jobs: %w", err)
	}
	jobs := make([]domain.FineTuningJob, len(resp))
	for i := range resp {
		jobs[i] = resp[i].toDomain()
	}
	return jobs, nil
}

// GetFineTuningJobStatus returns a job's detailed status.
func (c *Client) GetFineTuningJobStatus(ctx context.Context, jobID string) (*domain.JobStatusDetail, error) {
	path := "/finetuning/jobs/" + url.PathEscape(jobID) + "/status"
	var resp jobStatusDTO
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get fine-tuning job %s status: %w", jobID, err)
	}
	if resp.JobID == "" {
		resp.JobID = jobID
	}
	return &domain.JobStatusDetail{
		JobID:                     resp.JobID,
		Status:                    resp.Status,
		Progress:                  resp.Progress,
		EstimatedSecondsRemaining: resp.EstimatedTimeRemaining,
		CostTracking:              resp.CostTracking,
	}, nil
}

// GetFineTuningJobLogs returns up to limit log entries of a job.
func (c *Client) GetFineTuningJobLogs(ctx context.Context, jobID string, limit int) ([]domain.JobLogEntry, error) {
	path := "/finetuning/jobs/" + url.PathEscape(jobID) + "/logs"
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []jobLogDTO
	if err := c.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return nil, fmt.Errorf("get fine-tuning job %s logs: %w", jobID, err)
	}
	logs := make([]domain.JobLogEntry, len(resp))
	for i := range resp {
		logs[i] = resp[i].toDomain()
	}
	return logs, nil
}
