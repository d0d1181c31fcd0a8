package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
	"github.com/custodia-labs/privatetune/internal/logger"
)

// Verify interface compliance.
var _ driving.DatasetService = (*AnnotationDataset)(nil)

// AnnotationDataset owns the working annotation list.
// Score and edit mutations are local until Save is called.
type AnnotationDataset struct {
	backend driven.TrainingSetBackend
	bus     *EventBus

	mu    sync.RWMutex
	items []domain.Annotation
	scope *int64

	// version bumps whenever the list is swapped, invalidating drafts and drags.
	version uint64

	// loadSeq bumps on every Load and Replace so older loads are dropped.
	loadSeq uint64
}

// NewAnnotationDataset creates an empty dataset.
func NewAnnotationDataset(backend driven.TrainingSetBackend, bus *EventBus) *AnnotationDataset {
	return &AnnotationDataset{
		backend: backend,
		bus:     bus,
		items:   []domain.Annotation{},
		version: 1,
	}
}

// Annotations returns a copy of the working list.
func (d *AnnotationDataset) Annotations() []domain.Annotation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return domain.CloneAnnotations(d.items)
}

// Len returns the number of annotations.
func (d *AnnotationDataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.items)
}

// Replace swaps the working list wholesale.
func (d *AnnotationDataset) Replace(annotations []domain.Annotation) {
	d.mu.Lock()
	d.loadSeq++
	d.swap(annotations)
	d.mu.Unlock()
	d.bus.Emit(domain.EventDatasetChanged)
}

// swap installs a new list. Callers hold d.mu.
func (d *AnnotationDataset) swap(annotations []domain.Annotation) {
	d.items = domain.CloneAnnotations(annotations)
	for i := range d.items {
		if d.items[i].Score != 0 {
			d.items[i].Score = domain.ClampScore(d.items[i].Score)
		}
	}
	d.version++
}

// SetScore sets the score at index, clamped to [1,5].
func (d *AnnotationDataset) SetScore(index, score int) error {
	return d.setScore(index, score, 0)
}

// setScore applies a score. A non-zero version must match the current list.
func (d *AnnotationDataset) setScore(index, score int, version uint64) error {
	d.mu.Lock()
	if version != 0 && version != d.version {
		d.mu.Unlock()
		return domain.ErrStaleEdit
	}
	if index < 0 || index >= len(d.items) {
		d.mu.Unlock()
		return domain.ErrIndexOutOfRange
	}
	score = domain.ClampScore(score)
	if d.items[index].Score == score {
		d.mu.Unlock()
		return nil
	}
	d.items[index].Score = score
	d.mu.Unlock()

	d.bus.Emit(domain.EventDatasetChanged)
	return nil
}

// BeginScoreDrag scores index and starts a drag-paint gesture.
func (d *AnnotationDataset) BeginScoreDrag(index, score int) (driving.ScoreGesture, error) {
	if err := d.SetScore(index, score); err != nil {
		return nil, err
	}
	d.mu.RLock()
	version := d.version
	d.mu.RUnlock()
	return &scoreDrag{dataset: d, version: version, active: true}, nil
}

// scoreDrag paints scores across rows until End is called.
type scoreDrag struct {
	dataset *AnnotationDataset
	version uint64

	mu     sync.Mutex
	active bool
}

func (g *scoreDrag) Enter(index, score int) {
	g.mu.Lock()
	active := g.active
	g.mu.Unlock()
	if !active {
		return
	}
	if err := g.dataset.setScore(index, score, g.version); err != nil {
		logger.Debug("dataset: drag paint at %d ignored: %v", index, err)
	}
}

func (g *scoreDrag) End() {
	g.mu.Lock()
	g.active = false
	g.mu.Unlock()
}

func (g *scoreDrag) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// BeginEdit opens an edit draft for index.
func (d *AnnotationDataset) BeginEdit(index int) (*domain.EditDraft, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if index < 0 || index >= len(d.items) {
		return nil, domain.ErrIndexOutOfRange
	}
	return &domain.EditDraft{
		Index:       index,
		Instruction: d.items[index].Instruction,
		Response:    d.items[index].Response,
		Version:     d.version,
	}, nil
}

// CommitEdit applies a draft in place.
func (d *AnnotationDataset) CommitEdit(draft domain.EditDraft) error {
	if strings.TrimSpace(draft.Instruction) == "" {
		return domain.ErrEmptyInstruction
	}

	d.mu.Lock()
	if draft.Version != d.version {
		d.mu.Unlock()
		return domain.ErrStaleEdit
	}
	if draft.Index < 0 || draft.Index >= len(d.items) {
		d.mu.Unlock()
		return domain.ErrIndexOutOfRange
	}
	d.items[draft.Index].Instruction = draft.Instruction
	d.items[draft.Index].Response = draft.Response
	d.mu.Unlock()

	d.bus.Emit(domain.EventDatasetChanged)
	return nil
}

// Save writes the full list, optionally scoped to a training item.
func (d *AnnotationDataset) Save(ctx context.Context, trainingItemID *int64) (int, error) {
	if d.backend == nil {
		return 0, domain.ErrNotImplemented
	}

	snapshot := d.Annotations()
	count, err := d.backend.SaveTrainingSet(ctx, snapshot, trainingItemID)
	if err != nil {
		return 0, fmt.Errorf("save training set: %w", err)
	}
	logger.Debug("dataset: saved %d of %d annotations", count, len(snapshot))

	d.mu.Lock()
	d.scope = copyID(trainingItemID)
	d.mu.Unlock()
	return count, nil
}

// Load replaces the list with the saved set.
// A Load superseded by a newer Load or Replace is dropped.
func (d *AnnotationDataset) Load(ctx context.Context, trainingItemID *int64) error {
	if d.backend == nil {
		return domain.ErrNotImplemented
	}

	d.mu.Lock()
	d.loadSeq++
	seq := d.loadSeq
	d.mu.Unlock()

	annotations, err := d.backend.LoadTrainingSet(ctx, trainingItemID)
	if err != nil {
		return fmt.Errorf("load training set: %w", err)
	}

	d.mu.Lock()
	if seq != d.loadSeq {
		d.mu.Unlock()
		logger.Debug("dataset: dropping stale load")
		return nil
	}
	d.swap(annotations)
	d.scope = copyID(trainingItemID)
	d.mu.Unlock()

	d.bus.Emit(domain.EventDatasetChanged)
	return nil
}

// Reload repeats the last Load or Save scope.
func (d *AnnotationDataset) Reload(ctx context.Context) error {
	return d.Load(ctx, d.Scope())
}

// Scope returns the training item id of the last Load or Save.
func (d *AnnotationDataset) Scope() *int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyID(d.scope)
}

type rawRecord struct {
	Instruction string `json:"instruction"`
	Response    string `json:"response"`
	Score       *int   `json:"score"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type sftRecord struct {
	Messages []chatMessage `json:"messages"`
}

// Export writes the list as newline-delimited JSON records.
func (d *AnnotationDataset) Export(w io.Writer, opts domain.ExportOptions) (int, error) {
	format := opts.Format
	if format == "" {
		format = domain.ExportRaw
	}
	if !format.IsValid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidFormat, format)
	}

	items := d.Annotations()
	if opts.UntunedOnly {
		_, items = domain.Partition(items)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	written := 0
	for i := range items {
		a := items[i]
		if !a.IsComplete() {
			continue
		}
		if opts.MinScore > 0 && (!a.HasScore() || a.Score < opts.MinScore) {
			continue
		}

		var record any
		switch format {
		case domain.ExportSFT:
			record = sftRecord{Messages: []chatMessage{
				{Role: "user", Content: a.Instruction},
				{Role: "assistant", Content: a.Response},
			}}
		default:
			r := rawRecord{Instruction: a.Instruction, Response: a.Response}
			if a.HasScore() {
				score := a.Score
				r.Score = &score
			}
			record = r
		}

		if err := enc.Encode(record); err != nil {
			return written, fmt.Errorf("write record %d: %w", i, err)
		}
		written++
	}
	return written, nil
}

// Untuned returns the annotations not yet used for fine-tuning.
func (d *AnnotationDataset) Untuned() []domain.Annotation {
	_, untuned := domain.Partition(d.Annotations())
	return untuned
}

// Tuned returns the annotations already used for fine-tuning.
func (d *AnnotationDataset) Tuned() []domain.Annotation {
	tuned, _ := domain.Partition(d.Annotations())
	return tuned
}

// Stats summarises the list.
func (d *AnnotationDataset) Stats() domain.DatasetStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return domain.ComputeStats(d.items)
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
