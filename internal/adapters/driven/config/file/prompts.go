package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driven"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore reads prompt templates from <dir>/<name>.txt.
//
// Missing files are seeded from the built-in templates on first Load. A file
// is read again whenever its modification time changes, so edits reach a
// long-running watch without a restart. A known prompt whose file is missing,
// empty or lacks a required placeholder resolves to the built-in template.
type PromptStore struct {
	dir string

	mu      sync.Mutex
	seeded  bool
	entries map[string]promptEntry
}

type promptEntry struct {
	text    string
	modTime time.Time
}

//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var builtinPrompts = map[string]string{
	driven.PromptSmartSearch: `Ответь на вопрос: {query}. Найди все релевантные изображения из списка {images}. Возвращай только список имен файлов, которые соответствуют запросу.`,

	driven.PromptYesNo: `Ты — мультимодальная система. Посмотри на стопкадр и реши, соответствует ли он поисковому запросу «{query}». Ответь только «да» или только «нет».`,

	driven.PromptImageDescription: `Опиши что изображено на этом кадре. Ответ должен быть подробным, но не слишком длинным (до 200 символов).`,
}

// requiredPlaceholders lists the template variables a prompt must keep.
var requiredPlaceholders = map[string][]string{
	driven.PromptSmartSearch: {"{query}", "{images}"},
	driven.PromptYesNo:       {"{query}"},
}

const promptReadme = `vpp prompts
===========

Each .txt file here is sent to the vision/language API.

  smart_search.txt       picks the matching frames out of an index chunk
  yes_no.txt             asks whether one frame matches a query
  image_description.txt  describes a frame for the index

Placeholders:

  {query}   the search query (smart_search, yes_no)
  {images}  one "file: description" line per frame (smart_search)

A prompt that drops a placeholder is ignored in favour of the built-in one.
Delete a file to restore its default. Edits apply on the next request.
`

// DefaultPrompt returns the built-in template for name.
func DefaultPrompt(name string) (string, bool) {
	prompt, ok := builtinPrompts[name]
	return prompt, ok
}

// NewPromptStore creates a prompt store over dir, ~/.vpp/prompts when empty.
// No I/O happens until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		base, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "prompts")
	}
	return &PromptStore{
		dir:     dir,
		entries: make(map[string]promptEntry),
	}, nil
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Load returns the template for name. Unknown names must have a file.
func (s *PromptStore) Load(name string) (string, error) {
	builtin, known := builtinPrompts[name]

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.seed(); err != nil {
		if known {
			logger.Debug("prompts: %v; using built-in %s", err, name)
			return builtin, nil
		}
		return "", err
	}

	path := s.path(name)
	info, err := os.Stat(path)
	if err != nil {
		delete(s.entries, name)
		if known {
			return builtin, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}
	if e, ok := s.entries[name]; ok && e.modTime.Equal(info.ModTime()) {
		return e.text, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if known {
			return builtin, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	text := strings.TrimSpace(string(data))
	if known {
		if text == "" {
			logger.Warn("prompts: %s is empty, using the built-in template", path)
			text = builtin
		} else if missing := missingPlaceholders(name, text); len(missing) > 0 {
			logger.Warn("prompts: %s lacks %s, using the built-in template", path, strings.Join(missing, ", "))
			text = builtin
		}
	}

	s.entries[name] = promptEntry{text: text, modTime: info.ModTime()}
	return text, nil
}

// Reload forgets every cached template.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.entries = make(map[string]promptEntry)
	s.mu.Unlock()
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

// seed creates the directory, the default prompt files and the README.
// Existing files are left alone. A failure is retried on the next Load.
func (s *PromptStore) seed() error {
	if s.seeded {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}

	names := make([]string, 0, len(builtinPrompts))
	for name := range builtinPrompts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := createExclusive(s.path(name), builtinPrompts[name]); err != nil {
			return fmt.Errorf("create default prompt %q: %w", name, err)
		}
	}
	if err := createExclusive(filepath.Join(s.dir, "README.txt"), promptReadme); err != nil {
		return fmt.Errorf("create prompt readme: %w", err)
	}

	s.seeded = true
	return nil
}

// createExclusive writes content to path unless the file already exists.
func createExclusive(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	_, werr := f.WriteString(content)
	return errors.Join(werr, f.Close())
}

func missingPlaceholders(name, text string) []string {
	var missing []string
	for _, p := range requiredPlaceholders[name] {
		if !strings.Contains(text, p) {
			missing = append(missing, p)
		}
	}
	return missing
}
