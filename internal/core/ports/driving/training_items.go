package driving

import (
	"context"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// TrainingItemService is the registry of named selection/template checkpoints.
type TrainingItemService interface {
	// Refresh reloads the item list from the backend.
	Refresh(ctx context.Context) error

	// Items returns the known items.
	Items() []domain.TrainingItem

	// Save validates and persists an item, then makes it the active one.
	Save(ctx context.Context, name string, keys []domain.FragmentKey, template string) (*domain.TrainingItem, error)

	// Activate restores the item's selection and template and loads its
	// saved annotations into the dataset.
	Activate(ctx context.Context, id int64) error

	// Delete removes an item. Deleting the active item clears the active
	// reference but leaves selection and template untouched.
	Delete(ctx context.Context, id int64) error

	// Active returns the active item, or nil.
	Active() *domain.TrainingItem

	// ResolveKeys returns the item's keys that are present in the corpus.
	ResolveKeys(item domain.TrainingItem) []domain.FragmentKey
}
