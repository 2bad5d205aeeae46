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
//   - IndexStore: Chunked persistence of the frame index
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VisionService: Ranking, yes/no relevance and description calls. Without
//     it, semantic and filter strategies fall back to keyword search.
//   - RelevanceCache: Memoised yes/no answers. Without it, every filter run
//     asks again.
//   - SchedulerStore: Rebuild history. Without it, history is not recorded.
//   - PromptStore: Customisable prompts. Without it, built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
