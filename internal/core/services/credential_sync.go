package services

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driven"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driving"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// Verify interface compliance.
var _ driving.CredentialSync = (*CredentialSync)(nil)

// ConfigKeyAPIKeys is the configuration key holding the ordered API keys.
const ConfigKeyAPIKeys = "api.keys"

// CredentialSync keeps the Governor's credential set in step with the
// configuration file.
type CredentialSync struct {
	config   driven.ConfigStore
	governor *Governor
	pool     *Dispatcher
	interval time.Duration
}

// CredentialSyncOption configures a CredentialSync.
type CredentialSyncOption func(*CredentialSync)

// WithWorkerPool grows d's worker pool after each refresh so that newly
// added keys get their own worker.
func WithWorkerPool(d *Dispatcher) CredentialSyncOption {
	return func(s *CredentialSync) {
		s.pool = d
	}
}

// NewCredentialSync creates a sync over config. A non-positive interval
// disables periodic syncs; file notifications still apply.
func NewCredentialSync(config driven.ConfigStore, governor *Governor, interval time.Duration, opts ...CredentialSyncOption) *CredentialSync {
	s := &CredentialSync{
		config:   config,
		governor: governor,
		interval: interval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync reloads the configuration and refreshes the Governor. On a load
// failure the current credential set is kept.
func (s *CredentialSync) Sync() error {
	if err := s.config.Load(); err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	before := s.governor.Len()
	s.governor.Refresh(s.config.GetStringSlice(ConfigKeyAPIKeys))
	if after := s.governor.Len(); after != before {
		logger.Info("credentials: %d key(s) configured (was %d)", after, before)
	}
	if s.pool != nil {
		s.pool.SyncWorkers()
	}
	return nil
}

// Run syncs every interval and whenever the configuration file is written,
// until ctx is cancelled.
func (s *CredentialSync) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if path := s.config.Path(); filepath.IsAbs(path) {
		watcher, err := watchConfigDir(path)
		if err != nil {
			logger.Warn("credentials: config notifications unavailable: %v", err)
		} else {
			defer watcher.Close()
			events = watcher.Events
			errs = watcher.Errors
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			s.sync()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) == filepath.Clean(s.config.Path()) &&
				ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				s.sync()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("credentials: watch error: %v", err)
		}
	}
}

func (s *CredentialSync) sync() {
	if err := s.Sync(); err != nil {
		logger.Error("credentials: %v", err)
	}
}

// watchConfigDir watches the directory holding path. Editors and the TOML
// store replace the file rather than writing it in place.
func watchConfigDir(path string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	return watcher, nil
}
