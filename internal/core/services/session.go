package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
	"github.com/custodia-labs/privatetune/internal/logger"
)

// SessionKeeper persists selection, active item, template and last
// generation job locally and restores them on startup.
type SessionKeeper struct {
	store      driven.SessionStore
	fragments  driving.FragmentService
	registry   driving.TrainingItemService
	generation driving.GenerationService
	clock      driven.Clock
	bus        *EventBus

	mu          sync.Mutex
	session     domain.Session
	unsubscribe func()
	outcomes    driven.OutcomeStore
	recorded    string
}

// outcomeHistoryLimit bounds the local generation history.
const outcomeHistoryLimit = 200

// NewSessionKeeper creates a session keeper. A nil store disables persistence.
func NewSessionKeeper(
	store driven.SessionStore,
	fragments driving.FragmentService,
	registry driving.TrainingItemService,
	generation driving.GenerationService,
	clock driven.Clock,
	bus *EventBus,
) *SessionKeeper {
	return &SessionKeeper{
		store:      store,
		fragments:  fragments,
		registry:   registry,
		generation: generation,
		clock:      clock,
		bus:        bus,
		session:    domain.Session{ID: uuid.New().String()},
	}
}

// KeepHistory records every finished generation job in store while tracking.
func (k *SessionKeeper) KeepHistory(store driven.OutcomeStore) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.outcomes = store
}

// History returns recorded generation outcomes, newest first.
func (k *SessionKeeper) History(ctx context.Context, limit int) ([]domain.GenerationOutcome, error) {
	k.mu.Lock()
	store := k.outcomes
	k.mu.Unlock()
	if store == nil {
		return nil, domain.ErrNotImplemented
	}
	return store.ListOutcomes(ctx, limit)
}

// Restore loads the saved session and applies it. The corpus and the
// training item list should be loaded first so keys and ids resolve.
func (k *SessionKeeper) Restore(ctx context.Context) error {
	if k.store == nil {
		return nil
	}

	saved, err := k.store.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if saved == nil {
		logger.Debug("session: nothing to restore")
		return nil
	}

	k.mu.Lock()
	k.session = *saved
	k.mu.Unlock()

	if saved.ActiveItemID != nil {
		if err := k.registry.Activate(ctx, *saved.ActiveItemID); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("restore active item: %w", err)
			}
			logger.Debug("session: active item %d no longer exists", *saved.ActiveItemID)
		}
	}

	// The saved selection and template are newer than the item's.
	k.fragments.SetSelection(saved.Selection)
	if saved.Template != "" {
		k.generation.SetTemplate(saved.Template)
	}

	logger.Debug("session: restored %s (%d selected)", saved.ID, len(saved.Selection))
	return nil
}

// Track subscribes to core events and saves the session whenever it
// changes. Finished generation jobs are recorded when history is kept.
func (k *SessionKeeper) Track() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.unsubscribe != nil || (k.store == nil && k.outcomes == nil) {
		return
	}
	k.unsubscribe = k.bus.Subscribe(func(ev domain.Event) {
		switch ev.Kind {
		case domain.EventSelectionChanged, domain.EventActiveItemChanged, domain.EventGenerationChanged:
			ctx := context.Background()
			if err := k.Save(ctx); err != nil {
				logger.Warn("session: save failed: %v", err)
			}
			if ev.Kind == domain.EventGenerationChanged {
				if err := k.recordOutcome(ctx); err != nil {
					logger.Warn("session: record outcome failed: %v", err)
				}
			}
		}
	})
}

// recordOutcome stores the last generation outcome once.
func (k *SessionKeeper) recordOutcome(ctx context.Context) error {
	outcome := k.generation.LastOutcome()
	if outcome == nil {
		return nil
	}

	k.mu.Lock()
	store := k.outcomes
	if store == nil || outcome.JobID == k.recorded {
		k.mu.Unlock()
		return nil
	}
	k.recorded = outcome.JobID
	k.mu.Unlock()

	if err := store.RecordOutcome(ctx, outcome); err != nil {
		return err
	}
	return store.PruneOutcomes(ctx, outcomeHistoryLimit)
}

// Close stops tracking.
func (k *SessionKeeper) Close() {
	k.mu.Lock()
	unsubscribe := k.unsubscribe
	k.unsubscribe = nil
	k.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Snapshot returns the current session state as it would be saved.
func (k *SessionKeeper) Snapshot() domain.Session {
	k.mu.Lock()
	s := k.session
	k.mu.Unlock()

	s.Selection = k.fragments.Selection()
	s.Template = k.generation.Template()
	s.ActiveItemID = nil
	if item := k.registry.Active(); item != nil {
		id := item.ID
		s.ActiveItemID = &id
	}
	if job := k.generation.Job(); job != nil {
		s.LastGenerationJobID = job.ID
	}
	return s
}

// Save writes the current session if it differs from the last one saved.
func (k *SessionKeeper) Save(ctx context.Context) error {
	if k.store == nil {
		return nil
	}

	next := k.Snapshot()

	k.mu.Lock()
	if sameSession(k.session, next) && !k.session.UpdatedAt.IsZero() {
		k.mu.Unlock()
		return nil
	}
	next.UpdatedAt = k.clock.Now()
	k.session = next
	k.mu.Unlock()

	return k.store.SaveSession(ctx, &next)
}

func sameSession(a, b domain.Session) bool {
	if a.Template != b.Template || a.LastGenerationJobID != b.LastGenerationJobID {
		return false
	}
	if (a.ActiveItemID == nil) != (b.ActiveItemID == nil) {
		return false
	}
	if a.ActiveItemID != nil && *a.ActiveItemID != *b.ActiveItemID {
		return false
	}
	return slices.Equal(a.Selection, b.Selection)
}
