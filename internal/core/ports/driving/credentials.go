package driving

import "github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"

// CredentialGovernor exposes the credential set and its usage bookkeeping.
type CredentialGovernor interface {
	// Refresh replaces the credential set. Secrets already known keep their
	// ID and history.
	Refresh(secrets []string)

	// Usage returns per-credential bookkeeping in configuration order.
	Usage() []domain.CredentialUsage

	// Len returns the number of configured credentials.
	Len() int
}
