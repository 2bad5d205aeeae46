package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driven"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/fileutil"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

const (
	lockFile      = ".index.lock"
	lockRetry     = 50 * time.Millisecond
	chunkPattern  = "index_%03d.json"
	dirPerm       = 0755
	chunkFilePerm = 0644
)

var chunkName = regexp.MustCompile(`^index_(\d+)\.json$`)

// IndexStore persists the index as numbered chunk files in a directory.
// Each call takes its own file lock so concurrent readers release
// independently.
type IndexStore struct {
	dir      string
	lockPath string
	mu       sync.RWMutex
}

// NewIndexStore creates a store over dir, creating it if needed.
func NewIndexStore(dir string) (*IndexStore, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &IndexStore{
		dir:      dir,
		lockPath: filepath.Join(dir, lockFile),
	}, nil
}

// Dir returns the chunk directory.
func (s *IndexStore) Dir() string {
	return s.dir
}

// Persist writes idx as chunks in sorted key order, then removes chunk files
// beyond the new count.
func (s *IndexStore) Persist(ctx context.Context, idx domain.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.writeLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	chunks := idx.Split(domain.IndexChunkSize)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("encode chunk %d: %w", i, err)
		}
		if err := fileutil.WriteAtomic(filepath.Join(s.dir, fmt.Sprintf(chunkPattern, i)), data, chunkFilePerm); err != nil {
			return fmt.Errorf("write chunk %d: %w", i, err)
		}
	}

	existing, err := s.chunkFiles()
	if err != nil {
		return err
	}
	for _, cf := range existing {
		if cf.ordinal < len(chunks) {
			continue
		}
		if err := os.Remove(cf.path); err != nil && !os.IsNotExist(err) {
			logger.Warn("index store: failed to remove stale %s: %v", filepath.Base(cf.path), err)
		}
	}

	logger.Debug("index store: persisted %d entries in %d chunk(s)", len(idx), len(chunks))
	return nil
}

// Load merges every readable chunk. Corrupt chunks are logged and skipped.
func (s *IndexStore) Load(ctx context.Context) (domain.Index, error) {
	chunks, err := s.Chunks(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(domain.Index)
	for _, chunk := range chunks {
		for k, v := range chunk {
			idx[k] = v
		}
	}
	return idx, nil
}

// Chunks returns each readable chunk in ordinal order.
func (s *IndexStore) Chunks(ctx context.Context) ([]domain.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unlock, err := s.readLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	files, err := s.chunkFiles()
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Index, 0, len(files))
	for _, cf := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := readChunk(cf.path)
		if err != nil {
			logger.Error("index store: skipping %s: %v", filepath.Base(cf.path), err)
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// HasIndex reports whether at least one chunk file exists.
func (s *IndexStore) HasIndex() bool {
	files, err := s.chunkFiles()
	return err == nil && len(files) > 0
}

// readLock takes a shared lock on the chunk directory.
func (s *IndexStore) readLock(ctx context.Context) (func(), error) {
	fl := flock.New(s.lockPath)
	if _, err := fl.TryRLockContext(ctx, lockRetry); err != nil {
		return nil, fmt.Errorf("lock index dir: %w", err)
	}
	return func() { _ = fl.Unlock() }, nil
}

// writeLock takes an exclusive lock on the chunk directory.
func (s *IndexStore) writeLock(ctx context.Context) (func(), error) {
	fl := flock.New(s.lockPath)
	if _, err := fl.TryLockContext(ctx, lockRetry); err != nil {
		return nil, fmt.Errorf("lock index dir: %w", err)
	}
	return func() { _ = fl.Unlock() }, nil
}

type chunkFile struct {
	ordinal int
	path    string
}

// chunkFiles lists index_NNN.json files by ordinal.
func (s *IndexStore) chunkFiles() ([]chunkFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	var files []chunkFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := chunkName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, chunkFile{ordinal: n, path: filepath.Join(s.dir, e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ordinal < files[j].ordinal })
	return files, nil
}

func readChunk(path string) (domain.Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var chunk domain.Index
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if chunk == nil {
		chunk = domain.Index{}
	}
	return chunk, nil
}
