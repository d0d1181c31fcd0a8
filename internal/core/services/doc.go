// Package services implements the driving port interfaces.
// Services contain the orchestration logic and call driven ports
// (adapters) for everything remote or persistent.
//
// Each service owns its state behind a mutex and never calls another
// service while holding it. Remote calls happen outside the lock; results
// are applied only if a per-service sequence token is still current, which
// is how stale responses are discarded. Polling and auto-refresh run as
// RecurringTasks driven by a driven.Clock. State changes are announced on
// the EventBus.
package services
