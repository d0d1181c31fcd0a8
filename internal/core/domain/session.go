package domain

import "time"

// Session is the locally persisted working state restored on restart.
type Session struct {
	// ID is a random session identifier.
	ID string

	// ActiveItemID is the active training item, if any.
	ActiveItemID *int64

	// Selection is the selected fragment keys.
	Selection []FragmentKey

	// Template is the current prompt template.
	Template string

	// LastGenerationJobID is the last generation job tracked by this client.
	LastGenerationJobID string

	// UpdatedAt is when the session was last written.
	UpdatedAt time.Time
}
