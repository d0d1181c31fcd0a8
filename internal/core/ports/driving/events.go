package driving

import "github.com/custodia-labs/privatetune/internal/core/domain"

// EventSource lets adapters observe core state changes.
type EventSource interface {
	// Subscribe registers fn for every event. The returned func unsubscribes.
	// fn is called synchronously and must not block.
	Subscribe(fn func(domain.Event)) (unsubscribe func())
}
