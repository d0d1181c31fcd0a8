package driving

import (
	"context"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// FragmentService owns the fragment corpus, the filtered view and the selection.
type FragmentService interface {
	// Refresh fetches every page of the corpus and replaces it.
	// The selection is intersected with the keys still present.
	Refresh(ctx context.Context) error

	// Fragments returns the full corpus in backend order.
	Fragments() []domain.Fragment

	// Filter returns the active filter.
	Filter() domain.FragmentFilter

	// SetFilter replaces the active filter.
	SetFilter(filter domain.FragmentFilter)

	// Order returns the ordering of the filtered view.
	Order() domain.FragmentOrder

	// SetOrder changes the ordering of the filtered view.
	SetOrder(order domain.FragmentOrder) error

	// Filtered returns the fragments matching the active filter, in view order.
	Filtered() []domain.Fragment

	// Selection returns the selected keys, sorted.
	Selection() []domain.FragmentKey

	// IsSelected reports whether key is selected.
	IsSelected(key domain.FragmentKey) bool

	// Select adds keys present in the corpus to the selection.
	Select(keys ...domain.FragmentKey)

	// Deselect removes keys from the selection.
	Deselect(keys ...domain.FragmentKey)

	// Toggle flips the selection state of key.
	Toggle(key domain.FragmentKey)

	// SelectAllFiltered adds every fragment of the filtered view to the selection.
	SelectAllFiltered()

	// ClearSelection empties the selection.
	ClearSelection()

	// SetSelection replaces the selection. Keys not in the corpus are dropped.
	SetSelection(keys []domain.FragmentKey)

	// Lookup returns the fragments for keys that are present, in corpus order.
	Lookup(keys []domain.FragmentKey) []domain.Fragment

	// UpdateWeight sets a fragment's weight. The corpus is updated before
	// the remote call and is not rolled back on failure.
	UpdateWeight(ctx context.Context, key domain.FragmentKey, weight float64) error

	// Exclude soft-deletes a fragment and removes it from corpus and selection.
	Exclude(ctx context.Context, key domain.FragmentKey) error

	// BeginWeightDrag starts a weight slider gesture for key.
	BeginWeightDrag(key domain.FragmentKey) (WeightGesture, error)
}

// WeightGesture is a weight slider drag. Only End touches the corpus.
type WeightGesture interface {
	// Move updates the pending weight, clamped to [1,5].
	Move(weight float64)

	// Value returns the pending weight.
	Value() float64

	// End commits the pending weight. Calling End more than once is a no-op.
	End(ctx context.Context) error

	// Cancel discards the gesture.
	Cancel()
}
