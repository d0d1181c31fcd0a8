package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
	"github.com/custodia-labs/privatetune/internal/logger"
)

// Verify interface compliance.
var _ driving.TrainingItemService = (*TrainingItemRegistry)(nil)

// TemplateHolder receives the prompt template restored by an activation.
type TemplateHolder interface {
	SetTemplate(template string)
}

// TrainingItemRegistry persists named selection/template checkpoints.
type TrainingItemRegistry struct {
	backend   driven.TrainingItemBackend
	fragments driving.FragmentService
	dataset   driving.DatasetService
	templates TemplateHolder
	bus       *EventBus

	mu       sync.RWMutex
	items    []domain.TrainingItem
	activeID *int64
}

// NewTrainingItemRegistry creates a registry.
func NewTrainingItemRegistry(
	backend driven.TrainingItemBackend,
	fragments driving.FragmentService,
	dataset driving.DatasetService,
	templates TemplateHolder,
	bus *EventBus,
) *TrainingItemRegistry {
	return &TrainingItemRegistry{
		backend:   backend,
		fragments: fragments,
		dataset:   dataset,
		templates: templates,
		bus:       bus,
	}
}

// Refresh reloads the item list from the backend.
func (r *TrainingItemRegistry) Refresh(ctx context.Context) error {
	if r.backend == nil {
		return domain.ErrNotImplemented
	}

	items, err := r.backend.ListTrainingItems(ctx)
	if err != nil {
		return fmt.Errorf("list training items: %w", err)
	}

	r.mu.Lock()
	r.items = items
	if r.activeID != nil && r.indexOf(*r.activeID) < 0 {
		r.activeID = nil
	}
	r.mu.Unlock()

	r.bus.Emit(domain.EventTrainingItems)
	return nil
}

// Items returns the known items.
func (r *TrainingItemRegistry) Items() []domain.TrainingItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.TrainingItem, len(r.items))
	copy(out, r.items)
	return out
}

// Save validates and persists an item, then makes it the active one.
func (r *TrainingItemRegistry) Save(
	ctx context.Context,
	name string,
	keys []domain.FragmentKey,
	template string,
) (*domain.TrainingItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrEmptyName
	}
	keys = domain.DedupeKeys(keys)
	if len(keys) == 0 {
		return nil, domain.ErrEmptySelection
	}
	if strings.TrimSpace(template) == "" {
		return nil, domain.ErrEmptyTemplate
	}
	if r.backend == nil {
		return nil, domain.ErrNotImplemented
	}

	item, err := r.backend.SaveTrainingItem(ctx, name, keys, template)
	if err != nil {
		r.bus.Notify("Failed to save training item", err)
		return nil, fmt.Errorf("save training item %q: %w", name, err)
	}

	r.mu.Lock()
	if i := r.indexOf(item.ID); i >= 0 {
		r.items[i] = *item
	} else {
		r.items = append(r.items, *item)
	}
	id := item.ID
	r.activeID = &id
	r.mu.Unlock()

	logger.Debug("training items: saved %q (%d keys)", name, len(keys))
	r.bus.Emit(domain.EventTrainingItems)
	r.bus.Emit(domain.EventActiveItemChanged)
	return item, nil
}

// Activate restores the item's selection and template, then loads the
// annotations saved for it into the dataset.
func (r *TrainingItemRegistry) Activate(ctx context.Context, id int64) error {
	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("training item %d: %w", id, domain.ErrNotFound)
	}
	item := r.items[i]
	r.activeID = &id
	r.mu.Unlock()

	r.fragments.SetSelection(item.FragmentKeys)
	if r.templates != nil {
		r.templates.SetTemplate(item.PromptTemplate)
	}
	r.bus.Emit(domain.EventActiveItemChanged)

	if r.dataset == nil {
		return nil
	}
	if err := r.dataset.Load(ctx, &id); err != nil {
		return fmt.Errorf("activate %q: %w", item.Name, err)
	}
	return nil
}

// Delete removes an item. The active reference is cleared if it pointed at it.
func (r *TrainingItemRegistry) Delete(ctx context.Context, id int64) error {
	if r.backend == nil {
		return domain.ErrNotImplemented
	}
	if err := r.backend.DeleteTrainingItem(ctx, id); err != nil {
		return fmt.Errorf("delete training item %d: %w", id, err)
	}

	r.mu.Lock()
	if i := r.indexOf(id); i >= 0 {
		r.items = append(r.items[:i], r.items[i+1:]...)
	}
	wasActive := r.activeID != nil && *r.activeID == id
	if wasActive {
		r.activeID = nil
	}
	r.mu.Unlock()

	r.bus.Emit(domain.EventTrainingItems)
	if wasActive {
		r.bus.Emit(domain.EventActiveItemChanged)
	}
	return nil
}

// Active returns the active item, or nil.
func (r *TrainingItemRegistry) Active() *domain.TrainingItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeID == nil {
		return nil
	}
	i := r.indexOf(*r.activeID)
	if i < 0 {
		return nil
	}
	item := r.items[i]
	return &item
}

// ResolveKeys returns the item's keys that are present in the corpus.
func (r *TrainingItemRegistry) ResolveKeys(item domain.TrainingItem) []domain.FragmentKey {
	frags := r.fragments.Lookup(item.FragmentKeys)
	keys := make([]domain.FragmentKey, len(frags))
	for i := range frags {
		keys[i] = frags[i].Key()
	}
	return keys
}

// indexOf returns the position of id in r.items, or -1. Callers hold r.mu.
func (r *TrainingItemRegistry) indexOf(id int64) int {
	for i := range r.items {
		if r.items[i].ID == id {
			return i
		}
	}
	return -1
}
