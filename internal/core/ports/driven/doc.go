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
//   - ContentRepository: File and text item persistence with atomic status changes
//   - EmbeddingStore: Chunk persistence and the corpus dimension
//   - UsageStore: Daily usage rollups
//   - SchedulerStore: Background task state
//   - ConfigStore: Application configuration
//   - Normaliser / NormaliserRegistry: Text extraction for file items
//   - PostProcessor: Chunking of extracted text
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, search and processing are disabled.
//   - VectorIndex: Approximate nearest neighbour candidates. Without it, search scans the store.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
