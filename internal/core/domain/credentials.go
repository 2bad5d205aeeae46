package domain

import "time"

// Credential is an API key together with the identifier used for bookkeeping.
// The ID is issued when the key is first configured and never contains any
// part of the secret, so it is safe to log.
type Credential struct {
	// ID is the opaque, log-safe identifier.
	ID string

	// Secret is the bearer token sent to the external API.
	Secret string
}

// IsZero reports whether the credential is unset.
func (c Credential) IsZero() bool {
	return c.ID == "" && c.Secret == ""
}

// CredentialUsage is a snapshot of per-credential call bookkeeping.
type CredentialUsage struct {
	// ID identifies the credential.
	ID string

	// LastUse is when the credential last completed a call. Zero if never used.
	LastUse time.Time

	// NextAllowed is the earliest time the credential may be used again.
	NextAllowed time.Time

	// Counts holds completed calls per task kind.
	Counts map[TaskKind]int

	// Total is the number of completed calls across all kinds.
	Total int
}

// TaskKind tags a unit of dispatched work.
type TaskKind string

// Task kinds routed through the dispatcher.
const (
	// TaskKindDescribe generates a description for a single frame.
	TaskKindDescribe TaskKind = "describe"

	// TaskKindRank asks for the relevant subset of an index chunk.
	TaskKindRank TaskKind = "rank"

	// TaskKindRelevance asks a yes/no relevance question about one frame.
	TaskKindRelevance TaskKind = "relevance"
)

// String returns the string representation.
func (k TaskKind) String() string {
	return string(k)
}
