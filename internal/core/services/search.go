package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/analysis"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driven"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driving"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// Verify interface compliance.
var _ driving.SearchService = (*SearchService)(nil)

// Keyword scores for one (query term, token) pair.
const (
	scoreExact  = 3
	scorePrefix = 2
	scoreFuzzy  = 1
)

// SearchConfig holds the settings a SearchService reads at construction.
type SearchConfig struct {
	Settings domain.SearchSettings

	// MediaRoot resolves index keys to image files for the per-item filter.
	MediaRoot string

	// TaskTimeout bounds each wait on a dispatched task. Zero waits on ctx.
	TaskTimeout time.Duration
}

// SearchService ranks the current index snapshot against a query.
//
// The keyword strategy is local. The semantic and filter strategies fan out
// through the Dispatcher, one shard per configured credential, and degrade
// to keyword search when no vision service is wired.
type SearchService struct {
	index      driving.IndexService
	dispatcher *Dispatcher
	governor   *Governor
	vision     driven.VisionService
	cache      driven.RelevanceCache

	settings    domain.SearchSettings
	synonyms    analysis.Synonyms
	root        string
	taskTimeout time.Duration
}

// NewSearchService creates a search service. dispatcher, governor, vision
// and cache may be nil; the LLM strategies then fall back to keyword search.
func NewSearchService(
	index driving.IndexService,
	dispatcher *Dispatcher,
	governor *Governor,
	vision driven.VisionService,
	cache driven.RelevanceCache,
	cfg SearchConfig,
) *SearchService {
	settings := cfg.Settings
	if settings.Mode == "" {
		settings.Mode = domain.SearchModeKeyword
	}
	return &SearchService{
		index:       index,
		dispatcher:  dispatcher,
		governor:    governor,
		vision:      vision,
		cache:       cache,
		settings:    settings,
		synonyms:    analysis.NewSynonyms(settings.Synonyms),
		root:        cfg.MediaRoot,
		taskTimeout: cfg.TaskTimeout,
	}
}

// Search ranks frames with the strategy in opts.Mode, or the configured
// default. Strategy failures shrink the result; they are not returned.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	mode, err := s.effectiveMode(opts)
	if err != nil {
		return nil, err
	}
	logger.Info("Effective search mode: %s", mode.Description())

	snapshot := s.index.Snapshot()

	var results []domain.SearchResult
	switch mode {
	case domain.SearchModeSemantic:
		results = s.pathsToResults(snapshot, s.semanticSearch(ctx, query))

	case domain.SearchModeFilter:
		candidates := opts.Candidates
		if candidates == nil {
			candidates = resultPaths(s.keywordSearch(snapshot, query))
		}
		results = s.pathsToResults(snapshot, s.filterSearch(ctx, query, candidates))

	case domain.SearchModeSmart:
		ranked := s.semanticSearch(ctx, query)
		results = s.pathsToResults(snapshot, s.filterSearch(ctx, query, ranked))

	default:
		results = s.keywordSearch(snapshot, query)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results = applyPagination(results, opts.Offset, opts.Limit)
	logger.Info("Final results: %d", len(results))
	return results, nil
}

// effectiveMode resolves the requested mode, degrading LLM strategies to
// keyword search when the vision service is not wired.
func (s *SearchService) effectiveMode(opts domain.SearchOptions) (domain.SearchMode, error) {
	mode := opts.Mode
	if mode == "" {
		mode = s.settings.Mode
	}
	if !mode.IsValid() {
		return "", fmt.Errorf("search mode %q: %w", mode, domain.ErrInvalidInput)
	}
	if mode.RequiresLLM() && (s.vision == nil || s.dispatcher == nil || s.governor == nil) {
		logger.Warn("%s search needs the vision API, using keyword search: %v", mode, domain.ErrLLMUnavailable)
		return domain.SearchModeKeyword, nil
	}
	return mode, nil
}

// ClearRelevanceCache drops every recorded yes/no answer.
func (s *SearchService) ClearRelevanceCache() error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Clear(); err != nil {
		return fmt.Errorf("clear relevance cache: %w", err)
	}
	return nil
}

// keywordSearch scores every entry against the expanded query terms. A blank
// query returns every key in sorted order.
func (s *SearchService) keywordSearch(snapshot domain.Index, query string) []domain.SearchResult {
	keys := snapshot.Keys()

	if strings.TrimSpace(query) == "" {
		logger.Debug("Empty query, returning all %d entries", len(keys))
		results := make([]domain.SearchResult, 0, len(keys))
		for _, k := range keys {
			results = append(results, domain.SearchResult{Path: k, Text: snapshot[k].Text})
		}
		return results
	}

	terms := s.synonyms.Expand(analysis.Normalize(query))
	logger.Debug("Query terms: %v", terms)
	if len(terms) == 0 {
		return []domain.SearchResult{}
	}

	results := make([]domain.SearchResult, 0)
	for _, k := range keys {
		entry := snapshot[k]
		score := s.score(terms, entry.Tokens)
		if score < s.settings.MinScore || score == 0 {
			continue
		}
		results = append(results, domain.SearchResult{Path: k, Text: entry.Text, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	logger.Debug("Keyword matches: %d", len(results))
	return results
}

// score sums, over every (term, token) pair, the highest tier that applies.
func (s *SearchService) score(terms, tokens []string) int {
	total := 0
	for _, term := range terms {
		for _, tok := range tokens {
			switch {
			case term == tok:
				total += scoreExact
			case strings.HasPrefix(tok, term) || strings.HasPrefix(term, tok):
				total += scorePrefix
			case analysis.Ratio(term, tok) >= s.settings.FuzzyThreshold:
				total += scoreFuzzy
			}
		}
	}
	return total
}

// semanticSearch asks the ranking model which frames of each chunk match.
// Chunks pair one-to-one with credentials; extra chunks are not searched.
func (s *SearchService) semanticSearch(ctx context.Context, query string) []string {
	chunks, err := s.index.Chunks(ctx)
	if err != nil {
		logger.Warn("semantic search: cannot read index chunks: %v", err)
		return nil
	}
	if len(chunks) == 0 {
		return nil
	}

	k := s.governor.Len()
	if k == 0 {
		logger.Warn("semantic search: %v", domain.ErrNoCredentials)
		return nil
	}
	if len(chunks) > k {
		logger.Warn("semantic search: %d chunk(s) but %d key(s), skipping %d chunk(s)",
			len(chunks), k, len(chunks)-k)
		chunks = chunks[:k]
	}

	pending := make([]*Pending, len(chunks))
	for i, chunk := range chunks {
		if i > 0 && !sleepCtx(ctx, s.settings.StaggerDelay) {
			break
		}
		frames := chunkFrames(chunk)
		p, err := s.dispatcher.Submit(domain.TaskKindRank, func(ctx context.Context, cred domain.Credential) (any, error) {
			return s.vision.RankFrames(ctx, cred.Secret, query, frames)
		})
		if err != nil {
			logger.Warn("semantic search: chunk %d not dispatched: %v", i, err)
			continue
		}
		pending[i] = p
	}

	seen := make(map[string]struct{})
	var out []string
	for i, p := range pending {
		if p == nil {
			continue
		}
		res, err := p.Wait(ctx, s.taskTimeout)
		if err != nil {
			logger.Warn("semantic search: chunk %d failed: %v", i, err)
			continue
		}
		names, _ := res.([]string)
		for _, key := range matchNames(chunks[i], names) {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
		}
	}
	logger.Debug("Semantic matches: %d", len(out))
	return out
}

// chunkFrames lists a chunk's (path, text) pairs in key order.
func chunkFrames(chunk domain.Index) []domain.FrameText {
	keys := chunk.Keys()
	frames := make([]domain.FrameText, 0, len(keys))
	for _, k := range keys {
		frames = append(frames, domain.FrameText{Path: k, Text: chunk[k].Text})
	}
	return frames
}

// matchNames maps reply names onto chunk keys. A name matches a key exactly,
// or by base name when that base name is unique within the chunk. Names that
// match nothing are dropped.
func matchNames(chunk domain.Index, names []string) []string {
	byBase := make(map[string]string, len(chunk))
	ambiguous := make(map[string]bool)
	for k := range chunk {
		base := path.Base(k)
		if _, ok := byBase[base]; ok {
			ambiguous[base] = true
		}
		byBase[base] = k
	}

	var keys []string
	for _, name := range names {
		name = strings.TrimSpace(filepath.ToSlash(name))
		if _, ok := chunk[name]; ok {
			keys = append(keys, name)
			continue
		}
		base := path.Base(name)
		if k, ok := byBase[base]; ok && !ambiguous[base] {
			keys = append(keys, k)
		}
	}
	return keys
}

// filterSearch keeps the candidates the vision model judges relevant, in
// input order. Candidates are dealt round-robin into one shard per
// credential; shards run concurrently, each one sequentially.
func (s *SearchService) filterSearch(ctx context.Context, query string, candidates []string) []string {
	if len(candidates) == 0 {
		return nil
	}
	k := s.governor.Len()
	if k == 0 {
		logger.Warn("filter search: %v", domain.ErrNoCredentials)
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	var (
		mu       sync.Mutex
		relevant = make(map[string]bool, len(candidates))
		wg       sync.WaitGroup
	)
	for i := 0; i < k; i++ {
		var shard []string
		for j := i; j < len(candidates); j += k {
			shard = append(shard, candidates[j])
		}

		wg.Add(1)
		go func(i int, shard []string) {
			defer wg.Done()
			if !sleepCtx(ctx, time.Duration(i)*s.settings.StaggerDelay) {
				return
			}
			for _, p := range shard {
				if ctx.Err() != nil {
					return
				}
				if s.judge(ctx, query, p) {
					mu.Lock()
					relevant[p] = true
					mu.Unlock()
				}
			}
		}(i, shard)
	}
	wg.Wait()

	if s.cache != nil {
		if err := s.cache.Save(); err != nil {
			logger.Error("filter search: failed to save relevance cache: %v", err)
		}
	}

	out := make([]string, 0, len(relevant))
	for _, p := range candidates {
		if relevant[p] {
			out = append(out, p)
			delete(relevant, p)
		}
	}
	logger.Debug("Filter matches: %d of %d", len(out), len(candidates))
	return out
}

// judge answers one candidate from the cache, the filesystem or the vision
// model, recording the answer. Failed calls count as "no" and are not recorded.
func (s *SearchService) judge(ctx context.Context, query, rel string) bool {
	if s.cache != nil {
		if answer, ok := s.cache.Get(query, rel); ok {
			return answer
		}
	}

	image := filepath.Join(s.root, filepath.FromSlash(rel))
	if _, err := os.Stat(image); err != nil {
		logger.Debug("filter search: %s missing, recording no", rel)
		s.record(query, rel, false)
		return false
	}

	p, err := s.dispatcher.Submit(domain.TaskKindRelevance, func(ctx context.Context, cred domain.Credential) (any, error) {
		return s.vision.JudgeFrame(ctx, cred.Secret, image, query)
	})
	if err != nil {
		logger.Warn("filter search: %s not dispatched: %v", rel, err)
		return false
	}
	res, err := p.Wait(ctx, s.taskTimeout)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("filter search: %s failed: %v", rel, err)
		}
		return false
	}
	answer, _ := res.(bool)
	s.record(query, rel, answer)
	return answer
}

func (s *SearchService) record(query, rel string, answer bool) {
	if s.cache != nil {
		s.cache.Put(query, rel, answer)
	}
}

// pathsToResults attaches display text. Paths absent from the snapshot are
// returned with empty text.
func (s *SearchService) pathsToResults(snapshot domain.Index, paths []string) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, len(paths))
	for _, p := range paths {
		results = append(results, domain.SearchResult{Path: p, Text: snapshot[p].Text})
	}
	return results
}

func resultPaths(results []domain.SearchResult) []string {
	paths := make([]string, 0, len(results))
	for _, r := range results {
		paths = append(paths, r.Path)
	}
	return paths
}

// applyPagination applies offset and limit to results. A zero limit keeps
// everything after offset.
func applyPagination(results []domain.SearchResult, offset, limit int) []domain.SearchResult {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []domain.SearchResult{}
	}
	results = results[offset:]
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}

// sleepCtx waits for d or until ctx is done. Reports whether d elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
