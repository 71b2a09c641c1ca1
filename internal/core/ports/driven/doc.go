// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - FileLister: Lists and fetches files from the watched storage location
//   - Extractor: Turns raw bytes of one content type into text
//   - ExtractorRegistry: Selects the appropriate extractor
//   - DocumentStore, VersionStore, ChangeStore, RunStore: Persistence
//   - ExplanationDispatcher: Launches background explanation tasks
//   - ConfigStore: Application configuration
//   - SchedulerStore: Scheduler state and history
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Language model. Without it, explanations are deterministic only.
//   - TokenProvider: OAuth access. Without it, the source is treated as unauthenticated-capable.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
