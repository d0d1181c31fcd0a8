package rest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// timeLayouts are the timestamp shapes the backend emits. Naive
// timestamps are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// wireTime decodes backend timestamps, with or without a zone.
type wireTime struct {
	time.Time
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

// Fragments.

type fragmentDTO struct {
	ID           int64    `json:"id"`
	Content      string   `json:"content"`
	DocumentID   int64    `json:"document_id"`
	DocumentName string   `json:"document_name"`
	ChunkIndex   int      `json:"chunk_index"`
	Weight       float64  `json:"weight"`
	Excluded     bool     `json:"excluded"`
	IsManual     bool     `json:"is_manual"`
	Keywords     []string `json:"keywords"`
}

func (d fragmentDTO) toDomain() domain.Fragment {
	return domain.Fragment{
		ID:           d.ID,
		DocumentID:   d.DocumentID,
		ChunkIndex:   d.ChunkIndex,
		Content:      d.Content,
		Weight:       d.Weight,
		DocumentName: d.DocumentName,
		Keywords:     d.Keywords,
		Excluded:     d.Excluded,
		IsManual:     d.IsManual,
	}
}

type fragmentPageResponse struct {
	KnowledgePoints []fragmentDTO `json:"knowledge_points"`
	Total           int           `json:"total"`
}

// Training items.

type trainingItemDTO struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	KnowledgePointKeys []string `json:"knowledge_point_keys"`
	PromptTemplate     string   `json:"prompt_template"`
	CreatedAt          wireTime `json:"created_at"`
	UpdatedAt          wireTime `json:"updated_at"`
}

func (d trainingItemDTO) toDomain() domain.TrainingItem {
	keys := make([]domain.FragmentKey, len(d.KnowledgePointKeys))
	for i, k := range d.KnowledgePointKeys {
		keys[i] = domain.FragmentKey(k)
	}
	return domain.TrainingItem{
		ID:             d.ID,
		Name:           d.Name,
		FragmentKeys:   keys,
		PromptTemplate: d.PromptTemplate,
		CreatedAt:      d.CreatedAt.Time,
		UpdatedAt:      d.UpdatedAt.Time,
	}
}

type trainingItemsResponse struct {
	Items []trainingItemDTO `json:"items"`
}

type saveTrainingItemRequest struct {
	Name               string   `json:"name"`
	KnowledgePointKeys []string `json:"knowledge_point_keys"`
	PromptTemplate     string   `json:"prompt_template"`
}

// Annotations.

type linkedJobDTO struct {
	JobID       string   `json:"job_id"`
	UsedAt      wireTime `json:"used_at"`
	JobStatus   string   `json:"job_status"`
	JobPlatform string   `json:"job_platform"`
	JobModel    string   `json:"job_model"`
}

type annotationDTO struct {
	ID             int64          `json:"id,omitempty"`
	Instruction    string         `json:"instruction"`
	Response       string         `json:"response"`
	Score          *int           `json:"score,omitempty"`
	TrainingItemID *int64         `json:"training_item_id,omitempty"`
	CreatedAt      *wireTime      `json:"created_at,omitempty"`
	Finetuned      bool           `json:"finetuned,omitempty"`
	FinetunedCount int            `json:"finetuned_count,omitempty"`
	LinkedJobs     []linkedJobDTO `json:"linked_jobs,omitempty"`
}

func annotationFromDomain(a domain.Annotation) annotationDTO {
	d := annotationDTO{
		ID:             a.ID,
		Instruction:    a.Instruction,
		Response:       a.Response,
		TrainingItemID: a.TrainingItemID,
	}
	if a.HasScore() {
		score := a.Score
		d.Score = &score
	}
	return d
}

func (d annotationDTO) toDomain() domain.Annotation {
	a := domain.Annotation{
		ID:             d.ID,
		Instruction:    d.Instruction,
		Response:       d.Response,
		TrainingItemID: d.TrainingItemID,
		FinetunedCount: d.FinetunedCount,
	}
	if d.Score != nil {
		a.Score = domain.ClampScore(*d.Score)
	}
	if d.CreatedAt != nil {
		a.CreatedAt = d.CreatedAt.Time
	}
	for _, lj := range d.LinkedJobs {
		a.LinkedJobs = append(a.LinkedJobs, domain.LinkedJob{
			JobID:     lj.JobID,
			UsedAt:    lj.UsedAt.Time,
			JobStatus: lj.JobStatus,
			Platform:  lj.JobPlatform,
			Model:     lj.JobModel,
		})
	}
	// Older backends omit the flag but still report links.
	a.Finetuned = d.Finetuned || d.FinetunedCount > 0 || len(d.LinkedJobs) > 0
	if a.FinetunedCount == 0 {
		a.FinetunedCount = len(d.LinkedJobs)
	}
	return a
}

func annotationsToDomain(in []annotationDTO) []domain.Annotation {
	out := make([]domain.Annotation, len(in))
	for i := range in {
		out[i] = in[i].toDomain()
	}
	return out
}

func annotationsFromDomain(in []domain.Annotation) []annotationDTO {
	out := make([]annotationDTO, len(in))
	for i := range in {
		out[i] = annotationFromDomain(in[i])
	}
	return out
}

type saveTrainingSetRequest struct {
	Annotations    []annotationDTO `json:"annotations"`
	TrainingItemID *int64          `json:"training_item_id,omitempty"`
}

type saveTrainingSetResponse struct {
	Count int `json:"count"`
}

type trainingSetResponse struct {
	Annotations []annotationDTO `json:"annotations"`
	Count       int             `json:"count"`
}

// Generation jobs.

type submitGenerationRequest struct {
	KnowledgePoints []string `json:"knowledge_points"`
	Platform        string   `json:"platform,omitempty"`
	Model           string   `json:"model"`
	APIKey          string   `json:"api_key,omitempty"`
	BaseURL         string   `json:"base_url,omitempty"`
	CandidateCount  int      `json:"candidate_count"`
}

type submitGenerationResponse struct {
	JobID string `json:"job_id"`
}

type generationJobDTO struct {
	JobID       string          `json:"job_id"`
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Progress    float64         `json:"progress"`
	Annotations []annotationDTO `json:"annotations"`
	Error       string          `json:"error"`
	CreatedAt   wireTime        `json:"created_at"`
}

func (d generationJobDTO) toDomain() domain.GenerationJob {
	id := d.JobID
	if id == "" {
		id = d.ID
	}
	job := domain.GenerationJob{
		ID:           id,
		Status:       domain.ParseGenerationStatus(d.Status),
		Progress:     d.Progress,
		ErrorMessage: d.Error,
		CreatedAt:    d.CreatedAt.Time,
	}
	if job.Status == domain.GenerationCompleted {
		job.Annotations = annotationsToDomain(d.Annotations)
	}
	return job
}

type generationJobsResponse struct {
	Jobs []generationJobDTO `json:"jobs"`
}

// Fine-tuning.

type estimateRequest struct {
	DatasetSize int    `json:"dataset_size"`
	Model       string `json:"model"`
	Platform    string `json:"platform"`
}

type estimateResponse struct {
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	DatasetSize      int     `json:"dataset_size"`
	Model            string  `json:"model"`
	Platform         string  `json:"platform"`
}

type trainingData struct {
	Annotations []annotationDTO `json:"annotations"`
	FormatType  string          `json:"format_type"`
}

type submitFineTuningRequest struct {
	TrainingData trainingData `json:"training_data"`
	Platform     string       `json:"platform"`
	Model        string       `json:"model"`
}

type fineTuningJobDTO struct {
	ID        string   `json:"id"`
	JobID     string   `json:"job_id"`
	Platform  string   `json:"platform"`
	Model     string   `json:"model"`
	Status    string   `json:"status"`
	Progress  float64  `json:"progress"`
	CostUSD   *float64 `json:"costUsd"`
	CreatedAt wireTime `json:"createdAt"`
}

func (d fineTuningJobDTO) toDomain() domain.FineTuningJob {
	id := d.ID
	if id == "" {
		id = d.JobID
	}
	return domain.FineTuningJob{
		ID:        id,
		Platform:  d.Platform,
		Model:     d.Model,
		Status:    d.Status,
		Progress:  d.Progress,
		CostUSD:   d.CostUSD,
		CreatedAt: d.CreatedAt.Time,
	}
}

type jobStatusDTO struct {
	JobID                  string         `json:"job_id"`
	Status                 string         `json:"status"`
	Progress               float64        `json:"progress"`
	EstimatedTimeRemaining *float64       `json:"estimated_time_remaining"`
	CostTracking           map[string]any `json:"cost_tracking"`
}

type jobLogDTO struct {
	Timestamp wireTime        `json:"timestamp"`
	JobID     string          `json:"job_id"`
	Progress  *float64        `json:"progress"`
	Status    string          `json:"status"`
	Details   json.RawMessage `json:"details"`
}

func (d jobLogDTO) toDomain() domain.JobLogEntry {
	return domain.JobLogEntry{
		Timestamp: d.Timestamp.Time,
		Message:   logMessage(d.Details),
		Status:    d.Status,
		Progress:  d.Progress,
	}
}

// logMessage flattens the free-form details of a log entry. A "message"
// field wins; other objects are rendered compactly.
func logMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj map[string]any
	if json.Unmarshal(raw, &obj) == nil {
		if len(obj) == 0 {
			return ""
		}
		if msg, ok := obj["message"].(string); ok {
			return msg
		}
	}
	return string(raw)
}
