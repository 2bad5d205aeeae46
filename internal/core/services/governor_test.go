package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGovernor_SelectFreshCredentials(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor([]string{"secret-x", "secret-y", "secret-z"}, time.Second, WithClock(clock.Now))

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		sel, err := g.Select()
		require.NoError(t, err)
		assert.Zero(t, sel.Wait)
		seen[sel.Credential.ID] = true
	}

	assert.Len(t, seen, 3, "K selections over K credentials must be distinct")
}

func TestGovernor_SelectPrefersConfigOrderOnTie(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor([]string{"secret-x", "secret-y"}, time.Second, WithClock(clock.Now))

	sel, err := g.Select()
	require.NoError(t, err)
	assert.Equal(t, "secret-x", sel.Credential.Secret)
}

func TestGovernor_Scenario_EarliestPermittedCall(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor([]string{"secret-x", "secret-y"}, time.Second, WithClock(clock.Now))

	// X used at t=0.
	sel, err := g.Select()
	require.NoError(t, err)
	require.Equal(t, "secret-x", sel.Credential.Secret)
	g.RecordUse(sel.Credential.ID, domain.TaskKindRank)

	clock.Advance(200 * time.Millisecond)

	sel, err = g.Select()
	require.NoError(t, err)
	assert.Equal(t, "secret-y", sel.Credential.Secret)
	assert.Zero(t, sel.Wait)

	sel, err = g.Select()
	require.NoError(t, err)
	assert.Equal(t, "secret-x", sel.Credential.Secret)
	assert.InDelta(t, float64(800*time.Millisecond), float64(sel.Wait), float64(time.Millisecond))
}

func TestGovernor_TieBrokenByOldestUse(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor([]string{"secret-x", "secret-y"}, time.Second, WithClock(clock.Now))
	creds := g.Credentials()

	_, _ = g.Select()
	_, _ = g.Select()
	g.RecordUse(creds[1].ID, domain.TaskKindRank)
	clock.Advance(100 * time.Millisecond)
	g.RecordUse(creds[0].ID, domain.TaskKindRank)

	// Both buckets full again; y was used longest ago.
	clock.Advance(5 * time.Second)

	sel, err := g.Select()
	require.NoError(t, err)
	assert.Equal(t, creds[1].ID, sel.Credential.ID)
	assert.Zero(t, sel.Wait)
}

func TestGovernor_NoCredentials(t *testing.T) {
	g := NewGovernor(nil, time.Second)

	sel, err := g.Select()

	assert.ErrorIs(t, err, domain.ErrNoCredentials)
	assert.Equal(t, NoCredentialBackoff, sel.Wait)
	assert.True(t, sel.Credential.IsZero())
}

func TestGovernor_ZeroIntervalNeverWaits(t *testing.T) {
	g := NewGovernor([]string{"only"}, 0)

	for i := 0; i < 5; i++ {
		sel, err := g.Select()
		require.NoError(t, err)
		assert.Zero(t, sel.Wait)
	}
}

func TestGovernor_RecordUse(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor([]string{"secret-x"}, time.Second, WithClock(clock.Now))
	id := g.Credentials()[0].ID

	g.RecordUse(id, domain.TaskKindRank)
	g.RecordUse(id, domain.TaskKindRelevance)
	g.RecordUse(id, domain.TaskKindRelevance)
	g.RecordUse("cred-unknown", domain.TaskKindRank)

	usage := g.Usage()
	require.Len(t, usage, 1)
	assert.Equal(t, id, usage[0].ID)
	assert.Equal(t, 3, usage[0].Total)
	assert.Equal(t, 1, usage[0].Counts[domain.TaskKindRank])
	assert.Equal(t, 2, usage[0].Counts[domain.TaskKindRelevance])
	assert.Equal(t, clock.Now(), usage[0].LastUse)
}

func TestGovernor_RecordRateLimited(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor([]string{"secret-x", "secret-y"}, time.Second, WithClock(clock.Now))
	creds := g.Credentials()

	g.RecordRateLimited(creds[0].ID, 30*time.Second)

	sel, err := g.Select()
	require.NoError(t, err)
	assert.Equal(t, creds[1].ID, sel.Credential.ID)

	// y's next slot (1s) still beats x's backoff.
	sel, err = g.Select()
	require.NoError(t, err)
	assert.Equal(t, creds[1].ID, sel.Credential.ID)
	assert.InDelta(t, float64(time.Second), float64(sel.Wait), float64(time.Millisecond))

	usage := g.Usage()
	assert.Equal(t, clock.Now().Add(30*time.Second), usage[0].NextAllowed)
}

func TestGovernor_RecordRateLimitedDefaultBackoff(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor([]string{"secret-x"}, time.Second, WithClock(clock.Now))
	id := g.Credentials()[0].ID

	g.RecordRateLimited(id, 0)

	usage := g.Usage()
	assert.Equal(t, clock.Now().Add(DefaultRateLimitBackoff), usage[0].NextAllowed)
}

func TestGovernor_Refresh(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor([]string{"keep", "drop"}, time.Second, WithClock(clock.Now))
	before := g.Credentials()
	g.RecordUse(before[0].ID, domain.TaskKindDescribe)

	g.Refresh([]string{"new", "keep", " ", "keep"})

	after := g.Credentials()
	require.Len(t, after, 2)
	assert.Equal(t, "new", after[0].Secret)
	assert.Equal(t, before[0].ID, after[1].ID, "kept secret keeps its ID")
	assert.NotEqual(t, before[1].ID, after[0].ID)

	usage := g.Usage()
	assert.Zero(t, usage[0].Total, "new secret starts with no history")
	assert.Equal(t, 1, usage[1].Total, "kept secret keeps its history")
}

func TestGovernor_IDsDoNotLeakSecrets(t *testing.T) {
	g := NewGovernor([]string{"sk-abcdef1234567890"}, time.Second)
	id := g.Credentials()[0].ID

	assert.Regexp(t, `^cred-[0-9a-f]{8}$`, id)
	assert.NotContains(t, id, "sk-a")
}

func TestGovernor_ConcurrentSelect(t *testing.T) {
	g := NewGovernor([]string{"a", "b", "c"}, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sel, err := g.Select()
			if err == nil {
				g.RecordUse(sel.Credential.ID, domain.TaskKindRank)
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, u := range g.Usage() {
		total += u.Total
	}
	assert.Equal(t, 20, total)
}
