package domain

import (
	"strings"
	"time"
)

// GenerationStatus is the backend-reported status of a generation job.
type GenerationStatus string

// Generation job statuses.
const (
	GenerationPending   GenerationStatus = "pending"
	GenerationRunning   GenerationStatus = "running"
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// IsActive returns true if the job has not reached a terminal state.
func (s GenerationStatus) IsActive() bool {
	return s == GenerationPending || s == GenerationRunning
}

// IsTerminal returns true if the job is completed or failed.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationCompleted || s == GenerationFailed
}

// ParseGenerationStatus normalises a backend status string.
// "failure" and "error" are accepted as aliases for failed.
func ParseGenerationStatus(s string) GenerationStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "queued", "submitted":
		return GenerationPending
	case "running", "in_progress":
		return GenerationRunning
	case "completed", "complete", "succeeded", "success":
		return GenerationCompleted
	case "failed", "failure", "error", "cancelled":
		return GenerationFailed
	default:
		return GenerationStatus(strings.ToLower(strings.TrimSpace(s)))
	}
}

// GenerationJob is an asynchronous backend task that turns fragments into annotations.
type GenerationJob struct {
	ID           string
	Status       GenerationStatus
	Progress     float64
	Annotations  []Annotation
	ErrorMessage string
	CreatedAt    time.Time
}

// GenerationState is the local controller state.
type GenerationState string

// Controller states. Completed and Failed are reported as outcomes;
// the controller itself always settles back to Idle.
const (
	StateIdle       GenerationState = "idle"
	StateSubmitting GenerationState = "submitting"
	StatePolling    GenerationState = "polling"
)

// GenerationOutcome describes how the last tracked job ended.
type GenerationOutcome struct {
	JobID           string
	Status          GenerationStatus
	AnnotationCount int
	ErrorMessage    string
	FinishedAt      time.Time
}

// Candidate count bounds per fragment.
const (
	MinCandidateCount = 1
	MaxCandidateCount = 10
)

// ModelConfig is the model and credential context for generation.
type ModelConfig struct {
	// Platform selects the provider; the backend resolves a stored key for it
	// when APIKey is empty.
	Platform string

	// Model is the provider model name.
	Model string

	// APIKey is an explicit provider key.
	APIKey string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// CandidateCount is the number of candidate pairs per fragment, in [1,10].
	CandidateCount int
}

// IsConfigured returns true if a model and some credential context are set.
func (c ModelConfig) IsConfigured() bool {
	if strings.TrimSpace(c.Model) == "" {
		return false
	}
	return strings.TrimSpace(c.APIKey) != "" || strings.TrimSpace(c.Platform) != ""
}

// NormalisedCandidateCount clamps CandidateCount into [1,10].
func (c ModelConfig) NormalisedCandidateCount() int {
	if c.CandidateCount < MinCandidateCount {
		return MinCandidateCount
	}
	if c.CandidateCount > MaxCandidateCount {
		return MaxCandidateCount
	}
	return c.CandidateCount
}

// GenerationRequest is submitted to the backend to start a generation job.
type GenerationRequest struct {
	Prompts []string
	Model   ModelConfig
}
