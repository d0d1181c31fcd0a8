package domain

import (
	"math"
	"strings"
	"time"
)

// TrainingFormat is the dataset format sent with a fine-tuning job.
type TrainingFormat string

// Supported training formats.
const (
	FormatSFT TrainingFormat = "sft"
	FormatDPO TrainingFormat = "dpo"
)

// IsValid returns true if the format is recognised.
func (f TrainingFormat) IsValid() bool {
	return f == FormatSFT || f == FormatDPO
}

// String returns the string representation.
func (f TrainingFormat) String() string {
	return string(f)
}

// FineTuningJob is an asynchronous backend task that trains a model on a
// submitted annotation subset.
type FineTuningJob struct {
	ID        string
	Platform  string
	Model     string
	Status    string
	Progress  float64
	CostUSD   *float64
	CreatedAt time.Time
}

// IsActive returns true for jobs still queued or running.
func (j FineTuningJob) IsActive() bool {
	switch strings.ToLower(j.Status) {
	case "submitted", "pending", "queued", "running":
		return true
	default:
		return false
	}
}

// JobStatusDetail is the expanded status of a fine-tuning job.
type JobStatusDetail struct {
	JobID    string
	Status   string
	Progress float64

	// EstimatedSecondsRemaining is nil when the backend cannot estimate.
	EstimatedSecondsRemaining *float64

	// CostTracking is backend-defined cost information.
	CostTracking map[string]any
}

// JobLogEntry is a single progress log line of a fine-tuning job.
type JobLogEntry struct {
	Timestamp time.Time
	Message   string
	Status    string
	Progress  *float64
}

// JobDetail bundles the lazily fetched status and logs for an expanded job.
type JobDetail struct {
	Status JobStatusDetail
	Logs   []JobLogEntry
}

// CostEstimate is a derived fine-tuning cost estimate. It is never persisted.
type CostEstimate struct {
	DatasetSize      int
	Model            string
	Platform         string
	EstimatedCostUSD float64
}

// ClampProgress forces a progress percentage into [0,100].
func ClampProgress(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ClampDatasetSize forces a requested submission size into [1, max(1, untuned)].
func ClampDatasetSize(requested, untuned int) int {
	upper := untuned
	if upper < 1 {
		upper = 1
	}
	if requested < 1 {
		return 1
	}
	if requested > upper {
		return upper
	}
	return requested
}
