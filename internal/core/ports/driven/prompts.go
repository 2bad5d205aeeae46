package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptSmartSearch asks for the subset of frame descriptions matching a
	// query. The template expects {query} and {images} placeholders.
	PromptSmartSearch = "smart_search"

	// PromptYesNo asks whether a single frame image matches a query.
	// The template expects a {query} placeholder.
	PromptYesNo = "yes_no"

	// PromptImageDescription asks for a description of a frame image.
	// This prompt has no placeholders.
	PromptImageDescription = "image_description"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
