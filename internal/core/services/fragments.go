package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
	"github.com/custodia-labs/privatetune/internal/logger"
)

// Verify interface compliance.
var _ driving.FragmentService = (*FragmentEngine)(nil)

// DefaultFragmentPageSize is the page size used when accumulating the corpus.
const DefaultFragmentPageSize = 100

// FragmentEngine holds the fragment corpus and derives the filtered view
// and selection from it.
type FragmentEngine struct {
	backend  driven.FragmentBackend
	bus      *EventBus
	pageSize int

	mu         sync.RWMutex
	corpus     []domain.Fragment
	index      map[domain.FragmentKey]int
	filter     domain.FragmentFilter
	order      domain.FragmentOrder
	selection  map[domain.FragmentKey]struct{}
	refreshSeq uint64
}

// NewFragmentEngine creates a fragment engine with an empty corpus.
func NewFragmentEngine(backend driven.FragmentBackend, bus *EventBus) *FragmentEngine {
	return &FragmentEngine{
		backend:   backend,
		bus:       bus,
		pageSize:  DefaultFragmentPageSize,
		index:     make(map[domain.FragmentKey]int),
		order:     domain.OrderByDocument,
		selection: make(map[domain.FragmentKey]struct{}),
	}
}

// Refresh fetches every page of the corpus and replaces it.
func (e *FragmentEngine) Refresh(ctx context.Context) error {
	if e.backend == nil {
		return domain.ErrNotImplemented
	}

	e.mu.Lock()
	e.refreshSeq++
	seq := e.refreshSeq
	e.mu.Unlock()

	var all []domain.Fragment
	for page := 1; ; page++ {
		result, err := e.backend.ListFragments(ctx, page, e.pageSize, 0)
		if err != nil {
			return fmt.Errorf("list fragments page %d: %w", page, err)
		}
		all = append(all, result.Items...)
		if len(result.Items) == 0 || len(all) >= result.Total {
			break
		}
	}
	logger.Debug("fragments: fetched %d fragments", len(all))

	e.mu.Lock()
	if seq != e.refreshSeq {
		e.mu.Unlock()
		logger.Debug("fragments: dropping stale refresh")
		return nil
	}

	e.corpus = e.corpus[:0]
	for i := range all {
		if !all[i].Excluded {
			e.corpus = append(e.corpus, all[i])
		}
	}
	e.reindex()
	dropped := e.pruneSelection()
	e.mu.Unlock()

	e.bus.Emit(domain.EventFragmentsChanged)
	if dropped > 0 {
		logger.Debug("fragments: %d selected keys no longer present", dropped)
		e.bus.Emit(domain.EventSelectionChanged)
	}
	return nil
}

// reindex rebuilds the key index. Callers hold e.mu.
func (e *FragmentEngine) reindex() {
	e.index = make(map[domain.FragmentKey]int, len(e.corpus))
	for i := range e.corpus {
		e.index[e.corpus[i].Key()] = i
	}
}

// pruneSelection drops selected keys that are not in the corpus. Callers hold e.mu.
func (e *FragmentEngine) pruneSelection() int {
	dropped := 0
	for key := range e.selection {
		if _, ok := e.index[key]; !ok {
			delete(e.selection, key)
			dropped++
		}
	}
	return dropped
}

// Fragments returns the full corpus.
func (e *FragmentEngine) Fragments() []domain.Fragment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Fragment, len(e.corpus))
	copy(out, e.corpus)
	return out
}

// Filter returns the active filter.
func (e *FragmentEngine) Filter() domain.FragmentFilter {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filter
}

// SetFilter replaces the active filter.
func (e *FragmentEngine) SetFilter(filter domain.FragmentFilter) {
	e.mu.Lock()
	e.filter = filter
	e.mu.Unlock()
	e.bus.Emit(domain.EventFragmentsChanged)
}

// Order returns the ordering of the filtered view.
func (e *FragmentEngine) Order() domain.FragmentOrder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.order
}

// SetOrder changes the ordering of the filtered view.
func (e *FragmentEngine) SetOrder(order domain.FragmentOrder) error {
	if !order.IsValid() {
		return fmt.Errorf("%w: ordering %q", domain.ErrInvalidInput, order)
	}
	e.mu.Lock()
	e.order = order
	e.mu.Unlock()
	e.bus.Emit(domain.EventFragmentsChanged)
	return nil
}

// Filtered returns the fragments matching the active filter.
func (e *FragmentEngine) Filtered() []domain.Fragment {
	e.mu.RLock()
	out := make([]domain.Fragment, 0, len(e.corpus))
	for i := range e.corpus {
		if e.filter.Matches(e.corpus[i]) {
			out = append(out, e.corpus[i])
		}
	}
	order := e.order
	e.mu.RUnlock()

	domain.SortFragments(out, order)
	return out
}

// Selection returns the selected keys, sorted.
func (e *FragmentEngine) Selection() []domain.FragmentKey {
	e.mu.RLock()
	keys := make([]domain.FragmentKey, 0, len(e.selection))
	for key := range e.selection {
		keys = append(keys, key)
	}
	e.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// IsSelected reports whether key is selected.
func (e *FragmentEngine) IsSelected(key domain.FragmentKey) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.selection[key]
	return ok
}

// Select adds keys present in the corpus to the selection.
func (e *FragmentEngine) Select(keys ...domain.FragmentKey) {
	e.mutateSelection(func() bool {
		changed := false
		for _, key := range keys {
			if _, ok := e.index[key]; !ok {
				continue
			}
			if _, ok := e.selection[key]; !ok {
				e.selection[key] = struct{}{}
				changed = true
			}
		}
		return changed
	})
}

// Deselect removes keys from the selection.
func (e *FragmentEngine) Deselect(keys ...domain.FragmentKey) {
	e.mutateSelection(func() bool {
		changed := false
		for _, key := range keys {
			if _, ok := e.selection[key]; ok {
				delete(e.selection, key)
				changed = true
			}
		}
		return changed
	})
}

// Toggle flips the selection state of key.
func (e *FragmentEngine) Toggle(key domain.FragmentKey) {
	e.mutateSelection(func() bool {
		if _, ok := e.selection[key]; ok {
			delete(e.selection, key)
			return true
		}
		if _, ok := e.index[key]; !ok {
			return false
		}
		e.selection[key] = struct{}{}
		return true
	})
}

// SelectAllFiltered adds every fragment of the filtered view to the selection.
func (e *FragmentEngine) SelectAllFiltered() {
	filtered := e.Filtered()
	keys := make([]domain.FragmentKey, len(filtered))
	for i := range filtered {
		keys[i] = filtered[i].Key()
	}
	e.Select(keys...)
}

// ClearSelection empties the selection.
func (e *FragmentEngine) ClearSelection() {
	e.mutateSelection(func() bool {
		if len(e.selection) == 0 {
			return false
		}
		e.selection = make(map[domain.FragmentKey]struct{})
		return true
	})
}

// SetSelection replaces the selection. Keys not in the corpus are dropped.
func (e *FragmentEngine) SetSelection(keys []domain.FragmentKey) {
	e.mutateSelection(func() bool {
		e.selection = make(map[domain.FragmentKey]struct{}, len(keys))
		for _, key := range keys {
			if _, ok := e.index[key]; ok {
				e.selection[key] = struct{}{}
			}
		}
		return true
	})
}

func (e *FragmentEngine) mutateSelection(fn func() bool) {
	e.mu.Lock()
	changed := fn()
	e.mu.Unlock()
	if changed {
		e.bus.Emit(domain.EventSelectionChanged)
	}
}

// Lookup returns the fragments for keys that are present, in corpus order.
func (e *FragmentEngine) Lookup(keys []domain.FragmentKey) []domain.Fragment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	positions := make([]int, 0, len(keys))
	seen := make(map[int]struct{}, len(keys))
	for _, key := range keys {
		i, ok := e.index[key]
		if !ok {
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		positions = append(positions, i)
	}
	sort.Ints(positions)

	out := make([]domain.Fragment, len(positions))
	for n, i := range positions {
		out[n] = e.corpus[i]
	}
	return out
}

// UpdateWeight sets a fragment's weight locally, then on the backend.
// A backend failure is returned but the local weight is kept.
func (e *FragmentEngine) UpdateWeight(ctx context.Context, key domain.FragmentKey, weight float64) error {
	if weight < 1 || weight > domain.MaxFragmentWeight {
		return domain.ErrWeightOutOfRange
	}
	if e.backend == nil {
		return domain.ErrNotImplemented
	}

	e.mu.Lock()
	i, ok := e.index[key]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("fragment %s: %w", key, domain.ErrNotFound)
	}
	e.corpus[i].Weight = weight
	id := e.corpus[i].ID
	e.mu.Unlock()
	e.bus.Emit(domain.EventFragmentsChanged)

	if err := e.backend.UpdateFragmentWeight(ctx, id, weight); err != nil {
		logger.Warn("fragments: weight update for %s failed: %v", key, err)
		return fmt.Errorf("update weight of %s: %w", key, err)
	}
	return nil
}

// Exclude soft-deletes a fragment and removes it from corpus and selection.
func (e *FragmentEngine) Exclude(ctx context.Context, key domain.FragmentKey) error {
	if e.backend == nil {
		return domain.ErrNotImplemented
	}

	e.mu.Lock()
	i, ok := e.index[key]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("fragment %s: %w", key, domain.ErrNotFound)
	}
	id := e.corpus[i].ID
	e.corpus = append(e.corpus[:i], e.corpus[i+1:]...)
	e.reindex()
	_, wasSelected := e.selection[key]
	delete(e.selection, key)
	e.mu.Unlock()

	e.bus.Emit(domain.EventFragmentsChanged)
	if wasSelected {
		e.bus.Emit(domain.EventSelectionChanged)
	}

	if err := e.backend.SetFragmentExcluded(ctx, id, true); err != nil {
		logger.Warn("fragments: exclude %s failed: %v", key, err)
		return fmt.Errorf("exclude %s: %w", key, err)
	}
	return nil
}

// BeginWeightDrag starts a weight slider gesture for key.
func (e *FragmentEngine) BeginWeightDrag(key domain.FragmentKey) (driving.WeightGesture, error) {
	e.mu.RLock()
	i, ok := e.index[key]
	var weight float64
	if ok {
		weight = e.corpus[i].Weight
	}
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("fragment %s: %w", key, domain.ErrNotFound)
	}
	return &weightDrag{engine: e, key: key, value: clampWeight(weight)}, nil
}

// weightDrag is a single slider gesture. Intermediate values never reach the corpus.
type weightDrag struct {
	engine *FragmentEngine
	key    domain.FragmentKey

	mu    sync.Mutex
	value float64
	ended bool
}

func (d *weightDrag) Move(weight float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ended {
		d.value = clampWeight(weight)
	}
}

func (d *weightDrag) Value() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

func (d *weightDrag) End(ctx context.Context) error {
	d.mu.Lock()
	if d.ended {
		d.mu.Unlock()
		return nil
	}
	d.ended = true
	value := d.value
	d.mu.Unlock()
	return d.engine.UpdateWeight(ctx, d.key, value)
}

func (d *weightDrag) Cancel() {
	d.mu.Lock()
	d.ended = true
	d.mu.Unlock()
}

func clampWeight(w float64) float64 {
	if w < 1 {
		return 1
	}
	if w > domain.MaxFragmentWeight {
		return domain.MaxFragmentWeight
	}
	return w
}
