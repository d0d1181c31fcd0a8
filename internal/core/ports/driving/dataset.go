package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// DatasetService owns the working annotation list.
type DatasetService interface {
	// Annotations returns a copy of the working list.
	Annotations() []domain.Annotation

	// Len returns the number of annotations.
	Len() int

	// Replace swaps the working list wholesale.
	Replace(annotations []domain.Annotation)

	// SetScore sets the score at index, clamped to [1,5].
	SetScore(index, score int) error

	// BeginScoreDrag starts a drag-paint gesture at index.
	BeginScoreDrag(index, score int) (ScoreGesture, error)

	// BeginEdit opens an edit draft for index.
	BeginEdit(index int) (*domain.EditDraft, error)

	// CommitEdit applies a draft. Empty instructions are rejected.
	CommitEdit(draft domain.EditDraft) error

	// Save writes the full list, optionally scoped to a training item.
	// Returns the number stored by the backend.
	Save(ctx context.Context, trainingItemID *int64) (int, error)

	// Load replaces the list with the saved set, optionally scoped to a training item.
	Load(ctx context.Context, trainingItemID *int64) error

	// Reload repeats the last Load or Save scope.
	Reload(ctx context.Context) error

	// Scope returns the training item id of the last Load or Save.
	Scope() *int64

	// Export writes the list as newline-delimited JSON records.
	// Returns the number of records written.
	Export(w io.Writer, opts domain.ExportOptions) (int, error)

	// Untuned returns the annotations not yet used for fine-tuning, in list order.
	Untuned() []domain.Annotation

	// Tuned returns the annotations already used for fine-tuning, in list order.
	Tuned() []domain.Annotation

	// Stats summarises the list.
	Stats() domain.DatasetStats
}

// ScoreGesture is a drag-paint scoring session.
type ScoreGesture interface {
	// Enter paints score at index while the gesture is active.
	Enter(index, score int)

	// End finishes the gesture. Later Enter calls are ignored.
	End()

	// Active reports whether the gesture is still in progress.
	Active() bool
}
