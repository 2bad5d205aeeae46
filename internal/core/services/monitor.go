package services

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driving"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// Verify interface compliance.
var _ driving.ChangeMonitor = (*ChangeMonitor)(nil)

// treeSnapshot maps each relevant file to its modification time.
type treeSnapshot map[string]time.Time

// MonitorOption configures a ChangeMonitor.
type MonitorOption func(*ChangeMonitor)

// WithMonitorClock replaces time.Now for recency checks.
func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *ChangeMonitor) {
		m.now = now
	}
}

// ChangeMonitor polls the media tree and rebuilds the index when frames or
// descriptions are added, removed or recently modified.
//
// A modification only triggers when its time differs from the one recorded
// at the previous scan, so a single change leads to a single rebuild.
type ChangeMonitor struct {
	index    *IndexService
	settings domain.MonitorSettings
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	state   domain.MonitorState
	last    treeSnapshot

	scanMu sync.Mutex
}

// NewChangeMonitor creates a monitor over the index service's media root.
func NewChangeMonitor(index *IndexService, settings domain.MonitorSettings, opts ...MonitorOption) *ChangeMonitor {
	if settings.Interval <= 0 {
		settings.Interval = domain.DefaultAppSettings().Monitor.Interval
	}
	m := &ChangeMonitor{
		index:    index,
		settings: settings,
		now:      time.Now,
		state:    domain.MonitorIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *ChangeMonitor) setState(s domain.MonitorState) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()
	if prev != s {
		logger.Debug("monitor: %s -> %s", prev, s)
	}
}

// Prime records the current tree as the baseline without rebuilding.
func (m *ChangeMonitor) Prime() error {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	snap, err := m.snapshot()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.last = snap
	m.mu.Unlock()
	return nil
}

// ScanOnce compares the tree with the previous scan and rebuilds the index
// if it changed. The first scan without a baseline only records one.
func (m *ChangeMonitor) ScanOnce(ctx context.Context) (bool, error) {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	m.setState(domain.MonitorScanning)
	defer m.setState(domain.MonitorIdle)

	curr, err := m.snapshot()
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	prev := m.last
	m.mu.Unlock()

	if prev == nil {
		m.mu.Lock()
		m.last = curr
		m.mu.Unlock()
		return false, nil
	}

	reason := m.changeReason(prev, curr)
	if reason == "" {
		return false, nil
	}
	logger.Info("monitor: %s, rebuilding index", reason)

	m.setState(domain.MonitorRebuilding)
	n, err := m.index.Rebuild(ctx)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	m.last = curr
	m.mu.Unlock()
	logger.Info("monitor: index rebuilt with %d entries", n)
	return true, nil
}

// changeReason describes why curr differs from prev, or returns "".
func (m *ChangeMonitor) changeReason(prev, curr treeSnapshot) string {
	if len(prev) != len(curr) {
		return "file set changed"
	}
	for path := range curr {
		if _, ok := prev[path]; !ok {
			return "file set changed"
		}
	}

	now := m.now()
	for path, mtime := range curr {
		if mtime.Equal(prev[path]) {
			continue
		}
		if now.Sub(mtime) <= m.settings.RecencyWindow {
			return "modified " + filepath.Base(path)
		}
	}
	return ""
}

// snapshot lists frames and description files under the media root.
func (m *ChangeMonitor) snapshot() (treeSnapshot, error) {
	root := m.index.Root()
	snap := make(treeSnapshot)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			logger.Debug("monitor: skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !m.relevant(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		snap[path] = info.ModTime()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (m *ChangeMonitor) relevant(name string) bool {
	return m.index.Builder().IsFrame(name) || strings.HasSuffix(strings.ToLower(name), DescriptionSuffix)
}

// Start runs the scan loop. Blocks until ctx is cancelled or Stop is called.
func (m *ChangeMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	if err := m.Prime(); err != nil {
		logger.Warn("monitor: initial scan failed: %v", err)
	}

	var watcher *fsnotify.Watcher
	var events <-chan fsnotify.Event
	if m.settings.Watch {
		w, err := m.watch()
		if err != nil {
			logger.Warn("monitor: filesystem notifications unavailable, polling only: %v", err)
		} else {
			watcher = w
			defer watcher.Close()
			events = watcher.Events
			go m.drainErrors(watcher, stopCh)
		}
	}

	ticker := time.NewTicker(m.settings.Interval)
	defer ticker.Stop()

	logger.Info("monitor: watching %s every %s", m.index.Root(), m.settings.Interval)
	for {
		select {
		case <-ctx.Done():
			m.markStopped()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			m.scan(ctx)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = watcher.Add(ev.Name)
				}
			}
			if m.relevant(filepath.Base(ev.Name)) {
				m.scan(ctx)
			}
		}
	}
}

func (m *ChangeMonitor) scan(ctx context.Context) {
	if _, err := m.ScanOnce(ctx); err != nil {
		logger.Error("monitor: scan failed: %v", err)
	}
}

// watch subscribes to every directory under the root. fsnotify is not
// recursive; directories created later are added as their events arrive.
func (m *ChangeMonitor) watch() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	root := m.index.Root()
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if addErr := watcher.Add(path); addErr != nil {
			logger.Debug("monitor: cannot watch %s: %v", path, addErr)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, err
	}
	return watcher, nil
}

func (m *ChangeMonitor) drainErrors(watcher *fsnotify.Watcher, stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("monitor: watch error: %v", err)
		}
	}
}

func (m *ChangeMonitor) markStopped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.running = false
		close(m.stopCh)
	}
}

// Stop ends the loop after the current scan and waits for it to return.
func (m *ChangeMonitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}
