// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Backend: the remote fragment, training item, generation, training set
//     and fine-tuning capability surface
//   - ConfigStore: Application configuration
//   - Clock: Time source for recurring tasks
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SessionStore: Local session persistence. Without it, selection and
//     active item are not restored on restart.
//   - OutcomeStore: History of finished generation jobs
//   - TemplateStore: Named prompt templates beyond the built-in ones
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
