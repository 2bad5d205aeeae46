package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/adapters/driven/storage/memory"
)

// failingConfigStore fails every Load.
type failingConfigStore struct {
	*memory.ConfigStore
}

func (failingConfigStore) Load() error {
	return errors.New("config.toml: parse error")
}

func TestCredentialSync_Sync(t *testing.T) {
	config := memory.NewConfigStore()
	require.NoError(t, config.Set(ConfigKeyAPIKeys, []string{"key-a", "key-b"}))
	g := NewGovernor(nil, time.Second)
	s := NewCredentialSync(config, g, 0)

	require.NoError(t, s.Sync())
	assert.Equal(t, 2, g.Len())
	idA := g.Credentials()[0].ID

	require.NoError(t, config.Set(ConfigKeyAPIKeys, []any{"key-a"}))
	require.NoError(t, s.Sync())
	require.Equal(t, 1, g.Len())
	assert.Equal(t, idA, g.Credentials()[0].ID, "kept keys keep their ID")
}

func TestCredentialSync_GrowsWorkerPool(t *testing.T) {
	config := memory.NewConfigStore()
	require.NoError(t, config.Set(ConfigKeyAPIKeys, []string{"key-a"}))
	g := NewGovernor([]string{"key-a"}, 0)
	d := NewDispatcher(g)
	d.Start(0)
	defer d.Stop()
	s := NewCredentialSync(config, g, 0, WithWorkerPool(d))

	require.NoError(t, config.Set(ConfigKeyAPIKeys, []string{"key-a", "key-b", "key-c"}))
	require.NoError(t, s.Sync())

	assert.Equal(t, 3, d.Status().Workers)
}

func TestCredentialSync_LoadFailureKeepsKeys(t *testing.T) {
	g := NewGovernor([]string{"key-a"}, time.Second)
	s := NewCredentialSync(failingConfigStore{memory.NewConfigStore()}, g, 0)

	assert.Error(t, s.Sync())
	assert.Equal(t, 1, g.Len())
}

func TestCredentialSync_Run(t *testing.T) {
	config := memory.NewConfigStore()
	g := NewGovernor(nil, time.Second)
	s := NewCredentialSync(config, g, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx)
	}()

	require.NoError(t, config.Set(ConfigKeyAPIKeys, []string{"key-a", "key-b", "key-c"}))
	require.Eventually(t, func() bool { return g.Len() == 3 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("sync loop did not stop")
	}
}
