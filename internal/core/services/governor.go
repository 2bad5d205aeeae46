package services

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driving"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// Verify interface compliance.
var _ driving.CredentialGovernor = (*Governor)(nil)

const (
	// NoCredentialBackoff is the wait returned with ErrNoCredentials.
	NoCredentialBackoff = 10 * time.Second

	// DefaultRateLimitBackoff applies when a 429 carried no Retry-After.
	DefaultRateLimitBackoff = 60 * time.Second
)

// Selection is the credential chosen for the next call and how long the
// caller must wait before using it.
type Selection struct {
	Credential domain.Credential
	Wait       time.Duration
}

// GovernorOption configures a Governor.
type GovernorOption func(*Governor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) GovernorOption {
	return func(g *Governor) {
		g.now = now
	}
}

// credentialState is the bookkeeping for one configured secret.
type credentialState struct {
	cred    domain.Credential
	limiter *rate.Limiter
	lastUse time.Time
	claimed time.Time
	retryAt time.Time
	counts  map[domain.TaskKind]int
	total   int
}

// Governor selects which credential carries the next API call so that no
// credential is used more often than once per interval.
//
// Each credential has a token bucket of size one refilled once per interval.
// Select claims the token of the credential it returns, so consecutive
// selections spread across credentials before any is reused.
type Governor struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	order    []*credentialState
	bySecret map[string]*credentialState
	byID     map[string]*credentialState
}

// NewGovernor creates a governor over secrets, in configuration order.
func NewGovernor(secrets []string, interval time.Duration, opts ...GovernorOption) *Governor {
	g := &Governor{
		interval: interval,
		now:      time.Now,
		bySecret: make(map[string]*credentialState),
		byID:     make(map[string]*credentialState),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.Refresh(secrets)
	return g
}

// Select returns the credential whose next permitted call is earliest.
// Ties go to the credential used or claimed longest ago, never-used first,
// then to configuration order. The returned credential's slot is claimed.
//
// With no credentials configured it returns ErrNoCredentials and a
// Selection whose Wait is NoCredentialBackoff.
func (g *Governor) Select() (Selection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.order) == 0 {
		return Selection{Wait: NoCredentialBackoff}, domain.ErrNoCredentials
	}

	now := g.now()
	var best *credentialState
	var bestWait time.Duration
	for _, s := range g.order {
		wait := g.waitAt(s, now)
		if best == nil || wait < bestWait || (wait == bestWait && usedBefore(s, best)) {
			best, bestWait = s, wait
		}
	}

	wait := best.limiter.ReserveN(now, 1).DelayFrom(now)
	best.claimed = now
	if backoff := best.retryAt.Sub(now); backoff > wait {
		wait = backoff
	}

	logger.Debug("governor: selected %s (wait %s)", best.cred.ID, wait)
	return Selection{Credential: best.cred, Wait: wait}, nil
}

// usedBefore reports whether a was last touched before b. Never touched
// sorts first.
func usedBefore(a, b *credentialState) bool {
	ta, tb := a.touched(), b.touched()
	switch {
	case ta.IsZero() && !tb.IsZero():
		return true
	case tb.IsZero():
		return false
	default:
		return ta.Before(tb)
	}
}

// touched is the later of the last use and the last claim.
func (s *credentialState) touched() time.Time {
	if s.claimed.After(s.lastUse) {
		return s.claimed
	}
	return s.lastUse
}

// waitAt is how long from now until s may be used, without claiming it.
// Caller must hold g.mu.
func (g *Governor) waitAt(s *credentialState, now time.Time) time.Duration {
	var wait time.Duration
	if limit := s.limiter.Limit(); limit != rate.Inf && limit > 0 {
		if tokens := s.limiter.TokensAt(now); tokens < 1 {
			wait = time.Duration((1 - tokens) / float64(limit) * float64(time.Second))
		}
	}
	if backoff := s.retryAt.Sub(now); backoff > wait {
		wait = backoff
	}
	return wait
}

// RecordUse notes a completed call of kind on the credential with id.
// Unknown ids are ignored, since the credential may have been removed while
// the call was in flight.
func (g *Governor) RecordUse(id string, kind domain.TaskKind) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.byID[id]
	if !ok {
		return
	}
	s.lastUse = g.now()
	s.counts[kind]++
	s.total++
}

// RecordRateLimited backs the credential off for retryAfter after the API
// rejected a call on rate grounds.
func (g *Governor) RecordRateLimited(id string, retryAfter time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.byID[id]
	if !ok {
		return
	}
	if retryAfter <= 0 {
		retryAfter = DefaultRateLimitBackoff
	}
	s.retryAt = g.now().Add(retryAfter)
	logger.Warn("governor: %s rate limited, backing off %s", id, retryAfter)
}

// Refresh replaces the credential set. Blank and duplicate secrets are
// ignored. Secrets already known keep their ID and history; removed secrets
// lose theirs.
func (g *Governor) Refresh(secrets []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	order := make([]*credentialState, 0, len(secrets))
	bySecret := make(map[string]*credentialState, len(secrets))
	byID := make(map[string]*credentialState, len(secrets))
	added := 0

	for _, secret := range secrets {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			continue
		}
		if _, dup := bySecret[secret]; dup {
			continue
		}
		s, ok := g.bySecret[secret]
		if !ok {
			s = &credentialState{
				cred:    domain.Credential{ID: g.newID(byID), Secret: secret},
				limiter: rate.NewLimiter(g.limit(), 1),
				counts:  make(map[domain.TaskKind]int),
			}
			added++
		}
		order = append(order, s)
		bySecret[secret] = s
		byID[s.cred.ID] = s
	}

	removed := len(g.order) - (len(order) - added)
	g.order, g.bySecret, g.byID = order, bySecret, byID

	if added > 0 || removed > 0 {
		logger.Info("governor: %d credential(s) configured (%d added, %d removed)", len(order), added, removed)
	}
}

// newID issues an identifier unique among current and pending credentials.
// Caller must hold g.mu.
func (g *Governor) newID(pending map[string]*credentialState) string {
	for {
		id := "cred-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if _, taken := g.byID[id]; taken {
			continue
		}
		if _, taken := pending[id]; taken {
			continue
		}
		return id
	}
}

func (g *Governor) limit() rate.Limit {
	if g.interval <= 0 {
		return rate.Inf
	}
	return rate.Every(g.interval)
}

// Usage returns per-credential bookkeeping in configuration order.
func (g *Governor) Usage() []domain.CredentialUsage {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	usage := make([]domain.CredentialUsage, 0, len(g.order))
	for _, s := range g.order {
		counts := make(map[domain.TaskKind]int, len(s.counts))
		for k, v := range s.counts {
			counts[k] = v
		}
		usage = append(usage, domain.CredentialUsage{
			ID:          s.cred.ID,
			LastUse:     s.lastUse,
			NextAllowed: now.Add(g.waitAt(s, now)),
			Counts:      counts,
			Total:       s.total,
		})
	}
	return usage
}

// Len returns the number of configured credentials.
func (g *Governor) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}

// Credentials returns the configured credentials in order.
func (g *Governor) Credentials() []domain.Credential {
	g.mu.Lock()
	defer g.mu.Unlock()

	creds := make([]domain.Credential, len(g.order))
	for i, s := range g.order {
		creds[i] = s.cred
	}
	return creds
}
