package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/analysis"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

const (
	// LocationsFile is the per-directory mapping from frame to source video.
	LocationsFile = "descriptions_loc.json"

	// DescriptionSuffix is appended to a frame's stem to name its description file.
	DescriptionSuffix = "_pixtral.json"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// IndexBuilder walks a media tree and assembles the searchable index.
type IndexBuilder struct {
	exts []string
}

// NewIndexBuilder creates a builder recognising frames by extension.
// Extensions are matched case-insensitively; empty means ".webp".
func NewIndexBuilder(exts []string) *IndexBuilder {
	normalised := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalised = append(normalised, ext)
	}
	if len(normalised) == 0 {
		normalised = []string{".webp"}
	}
	return &IndexBuilder{exts: normalised}
}

// IsFrame reports whether name is a frame file.
func (b *IndexBuilder) IsFrame(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range b.exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// DescriptionPath returns the description file path for a frame path.
func DescriptionPath(framePath string) string {
	dir, name := filepath.Split(framePath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(dir, stem+DescriptionSuffix)
}

// Build walks root and returns an entry for every frame with text. A
// missing root is created and yields an empty index. Unreadable files are
// logged and skipped.
func (b *IndexBuilder) Build(ctx context.Context, root string) (domain.Index, error) {
	idx := make(domain.Index)

	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		logger.Warn("index: media root %s does not exist, creating it", root)
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("create media root: %w", err)
		}
		return idx, nil
	}

	locations := make(map[string]map[string]domain.FrameLocation)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("index: skipping %s: %v", path, err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !b.IsFrame(d.Name()) {
			return nil
		}

		dir := filepath.Dir(path)
		locs, ok := locations[dir]
		if !ok {
			locs = loadLocations(dir)
			locations[dir] = locs
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			logger.Warn("index: skipping %s: %v", path, err)
			return nil
		}
		key := filepath.ToSlash(rel)

		text := frameText(path, locs)
		if strings.TrimSpace(text) == "" {
			logger.Debug("index: %s has no text, skipped", key)
			return nil
		}
		idx[key] = domain.IndexEntry{Text: text, Tokens: analysis.Normalize(text)}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk media root: %w", err)
	}

	logger.Info("index: built %d entries from %s", len(idx), root)
	return idx, nil
}

// frameText joins the frame stem, the source video name and the description.
func frameText(path string, locs map[string]domain.FrameLocation) string {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := []string{stem}

	loc, ok := locs[stem]
	if !ok {
		loc, ok = locs[name]
	}
	if ok && loc.Source != "" {
		parts = append(parts, sourceBase(loc.Source))
	}

	if desc := loadDescription(DescriptionPath(path)); desc != "" {
		parts = append(parts, desc)
	}
	return strings.Join(parts, " ")
}

// sourceBase returns the file name of a source path written on any platform.
func sourceBase(source string) string {
	source = strings.ReplaceAll(source, `\`, "/")
	if i := strings.LastIndex(source, "/"); i >= 0 {
		return source[i+1:]
	}
	return source
}

func loadLocations(dir string) map[string]domain.FrameLocation {
	path := filepath.Join(dir, LocationsFile)
	data, err := ReadTextFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Error("index: read %s: %v", path, err)
		}
		return nil
	}

	var locs map[string]domain.FrameLocation
	if err := json.Unmarshal(data, &locs); err != nil {
		logger.Error("index: parse %s: %v", path, err)
		return nil
	}
	return locs
}

func loadDescription(path string) string {
	data, err := ReadTextFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Error("index: read %s: %v", path, err)
		}
		return ""
	}

	var desc domain.FrameDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		logger.Error("index: parse %s: %v", path, err)
		return ""
	}
	return strings.TrimSpace(desc.Content())
}

// ReadTextFile reads a file as UTF-8 text. A leading byte order mark is
// dropped; content that is not valid UTF-8 is decoded as Windows-1251.
func ReadTextFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeText(raw)
}

// DecodeText converts raw file content to UTF-8.
func DecodeText(raw []byte) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return raw, nil
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode windows-1251: %w", err)
	}
	return decoded, nil
}
