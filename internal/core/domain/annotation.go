package domain

import (
	"strings"
	"time"
)

// Score bounds for annotations. A zero score means unset.
const (
	MinScore = 1
	MaxScore = 5
)

// ClampScore forces a score into [MinScore, MaxScore].
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Annotation is a generated instruction/response pair.
type Annotation struct {
	// ID is the backend identifier. Zero for annotations not yet saved.
	ID int64

	// Instruction is the prompt side of the pair.
	Instruction string

	// Response is the completion side of the pair.
	Response string

	// Score is a rating in [1,5], or zero when unset.
	Score int

	// TrainingItemID scopes the annotation to a training item, if any.
	TrainingItemID *int64

	// Finetuned is true once a fine-tuning job has been recorded as using it.
	Finetuned bool

	// FinetunedCount is the number of jobs that used this annotation.
	FinetunedCount int

	// LinkedJobs lists the fine-tuning jobs that used this annotation, newest first.
	LinkedJobs []LinkedJob

	// CreatedAt is when the annotation was saved.
	CreatedAt time.Time
}

// HasScore returns true if the annotation has been scored.
func (a Annotation) HasScore() bool {
	return a.Score >= MinScore && a.Score <= MaxScore
}

// IsComplete returns true if both sides of the pair are non-blank.
func (a Annotation) IsComplete() bool {
	return strings.TrimSpace(a.Instruction) != "" && strings.TrimSpace(a.Response) != ""
}

// LinkedJob records a fine-tuning job that consumed an annotation.
type LinkedJob struct {
	JobID     string
	UsedAt    time.Time
	JobStatus string
	Platform  string
	Model     string
}

// Partition splits annotations into tuned and untuned subsets,
// preserving the relative order of each.
func Partition(annotations []Annotation) (tuned, untuned []Annotation) {
	tuned = make([]Annotation, 0)
	untuned = make([]Annotation, 0, len(annotations))
	for i := range annotations {
		if annotations[i].Finetuned {
			tuned = append(tuned, annotations[i])
		} else {
			untuned = append(untuned, annotations[i])
		}
	}
	return tuned, untuned
}

// DatasetStats summarises an annotation dataset.
type DatasetStats struct {
	Total        int
	Scored       int
	AverageScore float64
	Tuned        int
	Untuned      int
}

// ComputeStats summarises annotations.
func ComputeStats(annotations []Annotation) DatasetStats {
	stats := DatasetStats{Total: len(annotations)}
	sum := 0
	for i := range annotations {
		if annotations[i].HasScore() {
			stats.Scored++
			sum += annotations[i].Score
		}
		if annotations[i].Finetuned {
			stats.Tuned++
		} else {
			stats.Untuned++
		}
	}
	if stats.Scored > 0 {
		stats.AverageScore = float64(sum) / float64(stats.Scored)
	}
	return stats
}

// CloneAnnotations returns a deep copy of annotations.
func CloneAnnotations(src []Annotation) []Annotation {
	out := make([]Annotation, len(src))
	for i := range src {
		out[i] = src[i]
		if src[i].TrainingItemID != nil {
			id := *src[i].TrainingItemID
			out[i].TrainingItemID = &id
		}
		if src[i].LinkedJobs != nil {
			out[i].LinkedJobs = append([]LinkedJob(nil), src[i].LinkedJobs...)
		}
	}
	return out
}

// EditDraft is a short-lived edit session for one annotation.
// Version pins the dataset revision the draft was opened against.
type EditDraft struct {
	Index       int
	Instruction string
	Response    string
	Version     uint64
}

// ExportFormat selects the record shape written by a dataset export.
type ExportFormat string

// Export formats.
const (
	// ExportRaw writes {"instruction","response","score"} records.
	ExportRaw ExportFormat = "raw"

	// ExportSFT writes chat-style {"messages":[...]} records.
	ExportSFT ExportFormat = "sft"
)

// IsValid returns true if the export format is recognised.
func (f ExportFormat) IsValid() bool {
	return f == ExportRaw || f == ExportSFT
}

// ExportOptions controls a dataset export.
type ExportOptions struct {
	// Format is the record shape. Empty means ExportRaw.
	Format ExportFormat

	// MinScore drops scored annotations below it. Zero disables the filter;
	// unscored annotations are dropped when it is set.
	MinScore int

	// UntunedOnly restricts the export to the untuned partition.
	UntunedOnly bool
}
