// Package domain defines the core business entities for privatetune.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Fragment: A weighted, keyword-tagged excerpt used as generation input
//   - TrainingItem: A named fragment selection plus prompt template
//   - Annotation: A generated instruction/response pair
//   - GenerationJob / FineTuningJob: Remote asynchronous tasks
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
