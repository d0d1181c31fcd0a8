package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates a required collaborator was not provided.
	ErrNotImplemented = errors.New("not implemented")

	// Error categories. Every failure surfaced by the core wraps exactly one of these.

	// ErrValidation indicates a locally detected precondition failure.
	// Nothing was mutated and no remote call was issued.
	ErrValidation = errors.New("validation failed")

	// ErrTransient indicates a network or backend hiccup that is safe to retry.
	// Polling and auto-refresh loops swallow it and try again on the next tick.
	ErrTransient = errors.New("transient remote error")

	// ErrSubmission indicates the backend rejected a generate, submit or save request.
	ErrSubmission = errors.New("submission rejected")

	// ErrJobFailed indicates a job reached its terminal failed state.
	ErrJobFailed = errors.New("job failed")

	// Validation errors.

	// ErrEmptyName indicates a training item name is blank.
	ErrEmptyName = validation("name is required")

	// ErrEmptySelection indicates no fragments could be resolved for an operation.
	ErrEmptySelection = validation("no fragments selected")

	// ErrEmptyInstruction indicates an edit would leave an annotation without an instruction.
	ErrEmptyInstruction = validation("instruction is required")

	// ErrEmptyTemplate indicates a training item has no prompt template.
	ErrEmptyTemplate = validation("prompt template is required")

	// ErrModelNotConfigured indicates no model or credential context is set.
	ErrModelNotConfigured = validation("model not configured")

	// ErrNoUntunedAnnotations indicates there is nothing left to submit for fine-tuning.
	ErrNoUntunedAnnotations = validation("no untuned annotations available")

	// ErrIndexOutOfRange indicates an annotation index outside the dataset.
	ErrIndexOutOfRange = validation("annotation index out of range")

	// ErrWeightOutOfRange indicates a fragment weight outside [1,5].
	ErrWeightOutOfRange = validation("weight must be between 1 and 5")

	// ErrGenerationInProgress indicates a generation job is already being tracked.
	ErrGenerationInProgress = validation("generation already in progress")

	// ErrStaleEdit indicates the dataset changed after an edit session was opened.
	ErrStaleEdit = validation("dataset changed since edit began")

	// ErrInvalidFormat indicates an unknown training or export format.
	ErrInvalidFormat = validation("unknown format")
)

// validationError is a named validation failure that also matches ErrValidation.
type validationError struct {
	msg string
}

func validation(msg string) error {
	return &validationError{msg: msg}
}

func (e *validationError) Error() string {
	return e.msg
}

// Is reports whether target is the ErrValidation category.
func (e *validationError) Is(target error) bool {
	return target == ErrValidation
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsTransient reports whether err is a retryable remote failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
