package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// defaultLimit caps list tools when the caller gives no limit.
const defaultLimit = 50

// ListFragmentsInput is the input schema for the list_fragments tool.
type ListFragmentsInput struct {
	Content      string  `json:"content,omitempty" jsonschema:"substring of the content or document name"`
	Keywords     string  `json:"keywords,omitempty" jsonschema:"space or comma separated keywords, all must match"`
	MinWeight    float64 `json:"min_weight,omitempty" jsonschema:"only fragments with at least this weight (0-5)"`
	Order        string  `json:"order,omitempty" jsonschema:"'document' or 'weight', empty keeps backend order"`
	SelectedOnly bool    `json:"selected_only,omitempty" jsonschema:"only return selected fragments"`
	Limit        int     `json:"limit,omitempty" jsonschema:"maximum number of fragments to return (default 50)"`
}

// ListFragmentsOutput is the output schema for the list_fragments tool.
type ListFragmentsOutput struct {
	Fragments []FragmentOutput `json:"fragments"`
	Matched   int              `json:"matched"`
	Total     int              `json:"total"`
	Selected  int              `json:"selected"`
}

// FragmentOutput represents a single fragment.
type FragmentOutput struct {
	Key          string   `json:"key"`
	DocumentName string   `json:"document_name"`
	Weight       float64  `json:"weight"`
	Keywords     []string `json:"keywords,omitempty"`
	Content      string   `json:"content"`
	Selected     bool     `json:"selected"`
}

// TrainingItemsOutput is the output schema for the list_training_items tool.
type TrainingItemsOutput struct {
	Items  []TrainingItemOutput `json:"items"`
	Active string               `json:"active,omitempty"`
}

// TrainingItemOutput represents a saved training item.
type TrainingItemOutput struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	FragmentCount  int       `json:"fragment_count"`
	ResolvedCount  int       `json:"resolved_count"`
	PromptTemplate string    `json:"prompt_template"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DatasetInput scopes dataset tools to a training item.
type DatasetInput struct {
	TrainingItemID *int64 `json:"training_item_id,omitempty" jsonschema:"training item id, omit for every saved annotation"`
}

// DatasetStatsOutput is the output schema for the dataset_stats tool.
type DatasetStatsOutput struct {
	Total        int     `json:"total"`
	Scored       int     `json:"scored"`
	AverageScore float64 `json:"average_score"`
	Tuned        int     `json:"tuned"`
	Untuned      int     `json:"untuned"`
}

// ListAnnotationsInput is the input schema for the list_annotations tool.
type ListAnnotationsInput struct {
	TrainingItemID *int64 `json:"training_item_id,omitempty" jsonschema:"training item id, omit for every saved annotation"`
	UntunedOnly    bool   `json:"untuned_only,omitempty" jsonschema:"only annotations not yet used for fine-tuning"`
	MinScore       int    `json:"min_score,omitempty" jsonschema:"drop annotations scored below this (1-5), unscored ones too"`
	Limit          int    `json:"limit,omitempty" jsonschema:"maximum number of annotations to return (default 50)"`
}

// ListAnnotationsOutput is the output schema for the list_annotations tool.
type ListAnnotationsOutput struct {
	Annotations []AnnotationOutput `json:"annotations"`
	Count       int                `json:"count"`
}

// AnnotationOutput represents a saved annotation.
type AnnotationOutput struct {
	ID             int64  `json:"id"`
	Instruction    string `json:"instruction"`
	Response       string `json:"response"`
	Score          int    `json:"score,omitempty"`
	FinetunedCount int    `json:"finetuned_count"`
}

// GenerationStatusOutput is the output schema for the generation_status tool.
type GenerationStatusOutput struct {
	State       string         `json:"state"`
	JobID       string         `json:"job_id,omitempty"`
	Progress    float64        `json:"progress,omitempty"`
	LastOutcome *OutcomeOutput `json:"last_outcome,omitempty"`
}

// OutcomeOutput describes how the last generation job ended.
type OutcomeOutput struct {
	JobID           string    `json:"job_id"`
	Status          string    `json:"status"`
	AnnotationCount int       `json:"annotation_count"`
	Error           string    `json:"error,omitempty"`
	FinishedAt      time.Time `json:"finished_at"`
}

// ListJobsOutput is the output schema for the list_finetuning_jobs tool.
type ListJobsOutput struct {
	Jobs   []JobOutput `json:"jobs"`
	Active int         `json:"active"`
}

// JobOutput represents a fine-tuning job.
type JobOutput struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Model     string    `json:"model"`
	Status    string    `json:"status"`
	Progress  float64   `json:"progress"`
	CostUSD   *float64  `json:"cost_usd,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GetJobInput is the input schema for the get_finetuning_job tool.
type GetJobInput struct {
	JobID string `json:"job_id" jsonschema:"the fine-tuning job id"`
}

// JobDetailOutput is the output schema for the get_finetuning_job tool.
type JobDetailOutput struct {
	JobID                     string         `json:"job_id"`
	Status                    string         `json:"status"`
	Progress                  float64        `json:"progress"`
	EstimatedSecondsRemaining *float64       `json:"estimated_seconds_remaining,omitempty"`
	CostTracking              map[string]any `json:"cost_tracking,omitempty"`
	Logs                      []LogOutput    `json:"logs"`
}

// LogOutput is a single job log line.
type LogOutput struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Status    string    `json:"status,omitempty"`
}

// registerTools registers tool handlers for the configured ports.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_fragments",
		Description: "List knowledge fragments, optionally filtered and ordered",
	}, s.handleListFragments)

	if s.ports.Items != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "list_training_items",
			Description: "List saved training items (named fragment selections with a prompt template)",
		}, s.handleListTrainingItems)
	}

	if s.ports.Dataset != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "dataset_stats",
			Description: "Summarise a saved annotation set",
		}, s.handleDatasetStats)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "list_annotations",
			Description: "List saved instruction/response annotations",
		}, s.handleListAnnotations)
	}

	if s.ports.Generation != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "generation_status",
			Description: "Report the annotation generation job being tracked and how the last one ended",
		}, s.handleGenerationStatus)
	}

	if s.ports.Monitor != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "list_finetuning_jobs",
			Description: "List fine-tuning jobs submitted to the backend",
		}, s.handleListJobs)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "get_finetuning_job",
			Description: "Fetch the status, cost tracking and logs of a fine-tuning job",
		}, s.handleGetJob)
	}
}

func (s *Server) handleListFragments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListFragmentsInput,
) (*mcp.CallToolResult, ListFragmentsOutput, error) {
	frags := s.ports.Fragments
	if err := frags.Refresh(ctx); err != nil {
		return nil, ListFragmentsOutput{}, fmt.Errorf("loading fragments: %w", err)
	}
	if err := frags.SetOrder(domain.FragmentOrder(input.Order)); err != nil {
		return nil, ListFragmentsOutput{}, err
	}
	frags.SetFilter(domain.FragmentFilter{
		MinWeight: input.MinWeight,
		Content:   input.Content,
		Keywords:  input.Keywords,
	})

	matched := frags.Filtered()
	if input.SelectedOnly {
		kept := make([]domain.Fragment, 0, len(matched))
		for i := range matched {
			if frags.IsSelected(matched[i].Key()) {
				kept = append(kept, matched[i])
			}
		}
		matched = kept
	}

	output := ListFragmentsOutput{
		Matched:  len(matched),
		Total:    len(frags.Fragments()),
		Selected: len(frags.Selection()),
	}
	matched = matched[:min(len(matched), limitOrDefault(input.Limit))]
	output.Fragments = make([]FragmentOutput, len(matched))
	for i := range matched {
		output.Fragments[i] = FragmentOutput{
			Key:          string(matched[i].Key()),
			DocumentName: matched[i].DocumentName,
			Weight:       matched[i].Weight,
			Keywords:     matched[i].Keywords,
			Content:      matched[i].Content,
			Selected:     frags.IsSelected(matched[i].Key()),
		}
	}
	return nil, output, nil
}

func (s *Server) handleListTrainingItems(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, TrainingItemsOutput, error) {
	if s.ports.Items == nil {
		return nil, TrainingItemsOutput{}, ErrServiceUnavailable
	}
	items, err := s.loadItems(ctx)
	if err != nil {
		return nil, TrainingItemsOutput{}, err
	}

	output := TrainingItemsOutput{Items: items}
	if active := s.ports.Items.Active(); active != nil {
		output.Active = active.Name
	}
	return nil, output, nil
}

// loadItems refreshes the corpus and item list so resolved counts are current.
func (s *Server) loadItems(ctx context.Context) ([]TrainingItemOutput, error) {
	if err := s.ports.Fragments.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("loading fragments: %w", err)
	}
	if err := s.ports.Items.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("loading training items: %w", err)
	}

	items := s.ports.Items.Items()
	out := make([]TrainingItemOutput, len(items))
	for i := range items {
		out[i] = TrainingItemOutput{
			ID:             items[i].ID,
			Name:           items[i].Name,
			FragmentCount:  len(items[i].FragmentKeys),
			ResolvedCount:  len(s.ports.Items.ResolveKeys(items[i])),
			PromptTemplate: items[i].PromptTemplate,
			UpdatedAt:      items[i].UpdatedAt,
		}
	}
	return out, nil
}

func (s *Server) handleDatasetStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DatasetInput,
) (*mcp.CallToolResult, DatasetStatsOutput, error) {
	if err := s.loadDataset(ctx, input.TrainingItemID); err != nil {
		return nil, DatasetStatsOutput{}, err
	}
	stats := s.ports.Dataset.Stats()
	return nil, DatasetStatsOutput{
		Total:        stats.Total,
		Scored:       stats.Scored,
		AverageScore: stats.AverageScore,
		Tuned:        stats.Tuned,
		Untuned:      stats.Untuned,
	}, nil
}

func (s *Server) handleListAnnotations(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListAnnotationsInput,
) (*mcp.CallToolResult, ListAnnotationsOutput, error) {
	if err := s.loadDataset(ctx, input.TrainingItemID); err != nil {
		return nil, ListAnnotationsOutput{}, err
	}

	source := s.ports.Dataset.Annotations()
	if input.UntunedOnly {
		source = s.ports.Dataset.Untuned()
	}

	limit := limitOrDefault(input.Limit)
	output := ListAnnotationsOutput{Annotations: []AnnotationOutput{}}
	for i := range source {
		a := source[i]
		if input.MinScore > 0 && (!a.HasScore() || a.Score < input.MinScore) {
			continue
		}
		output.Count++
		if len(output.Annotations) < limit {
			output.Annotations = append(output.Annotations, AnnotationOutput{
				ID:             a.ID,
				Instruction:    a.Instruction,
				Response:       a.Response,
				Score:          a.Score,
				FinetunedCount: a.FinetunedCount,
			})
		}
	}
	return nil, output, nil
}

func (s *Server) loadDataset(ctx context.Context, trainingItemID *int64) error {
	if s.ports.Dataset == nil {
		return ErrServiceUnavailable
	}
	if err := s.ports.Dataset.Load(ctx, trainingItemID); err != nil {
		return fmt.Errorf("loading annotations: %w", err)
	}
	return nil
}

func (s *Server) handleGenerationStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, GenerationStatusOutput, error) {
	gen := s.ports.Generation
	if gen == nil {
		return nil, GenerationStatusOutput{}, ErrServiceUnavailable
	}

	output := GenerationStatusOutput{State: string(gen.State())}
	if job := gen.Job(); job != nil {
		output.JobID = job.ID
		output.Progress = job.Progress
	}
	if outcome := gen.LastOutcome(); outcome != nil {
		output.LastOutcome = &OutcomeOutput{
			JobID:           outcome.JobID,
			Status:          string(outcome.Status),
			AnnotationCount: outcome.AnnotationCount,
			Error:           outcome.ErrorMessage,
			FinishedAt:      outcome.FinishedAt,
		}
	}
	return nil, output, nil
}

func (s *Server) handleListJobs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, ListJobsOutput, error) {
	if s.ports.Monitor == nil {
		return nil, ListJobsOutput{}, ErrServiceUnavailable
	}
	if err := s.ports.Monitor.Refresh(ctx); err != nil {
		return nil, ListJobsOutput{}, fmt.Errorf("listing jobs: %w", err)
	}

	jobs := s.ports.Monitor.Jobs()
	output := ListJobsOutput{Jobs: make([]JobOutput, len(jobs))}
	for i := range jobs {
		if jobs[i].IsActive() {
			output.Active++
		}
		output.Jobs[i] = JobOutput{
			ID:        jobs[i].ID,
			Platform:  jobs[i].Platform,
			Model:     jobs[i].Model,
			Status:    jobs[i].Status,
			Progress:  jobs[i].Progress,
			CostUSD:   jobs[i].CostUSD,
			CreatedAt: jobs[i].CreatedAt,
		}
	}
	return nil, output, nil
}

func (s *Server) handleGetJob(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetJobInput,
) (*mcp.CallToolResult, JobDetailOutput, error) {
	detail, err := s.jobDetail(ctx, input.JobID)
	if err != nil {
		return nil, JobDetailOutput{}, err
	}

	st := detail.Status
	output := JobDetailOutput{
		JobID:                     st.JobID,
		Status:                    st.Status,
		Progress:                  st.Progress,
		EstimatedSecondsRemaining: st.EstimatedSecondsRemaining,
		CostTracking:              st.CostTracking,
		Logs:                      make([]LogOutput, len(detail.Logs)),
	}
	for i, entry := range detail.Logs {
		output.Logs[i] = LogOutput{Timestamp: entry.Timestamp, Message: entry.Message, Status: entry.Status}
	}
	return nil, output, nil
}

// jobDetail expands jobID on the monitor and returns what it fetched.
func (s *Server) jobDetail(ctx context.Context, jobID string) (*domain.JobDetail, error) {
	if s.ports.Monitor == nil {
		return nil, ErrServiceUnavailable
	}
	if jobID == "" {
		return nil, fmt.Errorf("%w: job_id is required", domain.ErrInvalidInput)
	}
	if err := s.ports.Monitor.Expand(ctx, jobID); err != nil {
		return nil, fmt.Errorf("fetching job %s: %w", jobID, err)
	}
	detail := s.ports.Monitor.Detail()
	if detail == nil {
		return nil, fmt.Errorf("fetching job %s: %w", jobID, domain.ErrNotFound)
	}
	return detail, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}
