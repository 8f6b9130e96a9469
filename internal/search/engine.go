// Package search composes lexical and vector catalog queries (and,
// optionally, the local skill overlay) into a single ranked, paginated
// response (the search engine, C7).
package search

import (
	"context"
	"strconv"
	"time"

	"github.com/smith-horn/skillsmith/internal/audit"
	"github.com/smith-horn/skillsmith/internal/catalog"
	"github.com/smith-horn/skillsmith/internal/embedding"
	"github.com/smith-horn/skillsmith/internal/localoverlay"
	"github.com/smith-horn/skillsmith/internal/logging"
	"github.com/smith-horn/skillsmith/internal/skill"
)

// Config configures the engine's fusion and deadline behavior.
type Config struct {
	RRFk           int
	RRFAlpha       float64
	DefaultLimit   int
	MaxLimit       int
	EnableLocal    bool
	Deadline       time.Duration
}

// DefaultConfig mirrors config.SearchConfig's defaults.
func DefaultConfig() Config {
	return Config{
		RRFk:         60,
		RRFAlpha:     1.0,
		DefaultLimit: 20,
		MaxLimit:     100,
		EnableLocal:  true,
		Deadline:     500 * time.Millisecond,
	}
}

// Engine is the hybrid search engine. Overlay and Embedder are optional:
// a nil Overlay disables local-skill merging, a nil Embedder disables the
// vector leg of hybrid search (lexical-only results, not degraded).
type Engine struct {
	Catalog *catalog.Store
	Overlay *localoverlay.Overlay
	Embedder embedding.EmbeddingEngine
	Audit   *audit.Log
	cfg     Config
}

// New constructs a search engine.
func New(cat *catalog.Store, overlay *localoverlay.Overlay, embedder embedding.EmbeddingEngine, auditLog *audit.Log, cfg Config) *Engine {
	if cfg.RRFk <= 0 {
		cfg.RRFk = 60
	}
	if cfg.RRFAlpha == 0 {
		cfg.RRFAlpha = 1.0
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 500 * time.Millisecond
	}
	return &Engine{Catalog: cat, Overlay: overlay, Embedder: embedder, Audit: auditLog, cfg: cfg}
}

// Response is the result of one Search call.
type Response struct {
	Results  []skill.SearchResult
	Total    int
	Timing   time.Duration
	Degraded bool
}

// Search validates q, executes the appropriate mode (filter-only or hybrid
// lexical+vector), merges in local-overlay results when enabled, paginates,
// and records telemetry when callerID is non-empty.
func (e *Engine) Search(ctx context.Context, q skill.Query, callerID string) (*Response, error) {
	start := time.Now()
	logging.Get(logging.CategorySearch).Debugw("search requested", "text_length", len(q.Text), "category", q.Filters.Category)

	if q.Text == "" && q.Filters.Empty() {
		return nil, skill.ErrEmptyQuery
	}
	if err := validateFilters(q.Filters); err != nil {
		return nil, err
	}

	// A negative limit means "unset, use the configured default"; an
	// explicit limit of 0 means "return nothing" (§8: limit=0 returns an
	// empty list with a well-defined total), so the two must not collapse
	// to the same branch.
	limit := q.Limit
	if limit < 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}

	var (
		registryResults []skill.SearchResult
		degraded        bool
		err             error
	)
	if q.Text == "" {
		registryResults, err = e.filterOnly(ctx, q.Filters)
	} else {
		registryResults, degraded, err = e.hybrid(ctx, q.Text, q.Filters)
	}
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "search: "+err.Error())
	}

	merged := registryResults
	if e.cfg.EnableLocal && e.Overlay != nil {
		merged = mergeLocal(registryResults, e.Overlay.Skills(), q.Filters)
	}

	total := len(merged)
	merged = paginateResults(merged, limit, q.Offset)

	resp := &Response{Results: merged, Total: total, Timing: time.Since(start), Degraded: degraded}

	if callerID != "" && e.Audit != nil {
		_, _ = e.Audit.Append(callerID, audit.EventType("skill_search"), map[string]string{
			"query_length": strconv.Itoa(len(q.Text)),
			"category":     q.Filters.Category,
			"trust_tier":   string(q.Filters.TrustTier),
			"result_count": strconv.Itoa(total),
			"latency_ms":   strconv.Itoa(int(resp.Timing.Milliseconds())),
		})
	}

	return resp, nil
}

func (e *Engine) filterOnly(ctx context.Context, filters skill.Filters) ([]skill.SearchResult, error) {
	skills, err := e.Catalog.FilterBrowse(ctx, filters, e.cfg.MaxLimit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]skill.SearchResult, 0, len(skills))
	for _, sk := range skills {
		out = append(out, toSearchResult(sk, float64(sk.QualityScore), skill.SourceRegistry))
	}
	return out, nil
}

func (e *Engine) hybrid(ctx context.Context, text string, filters skill.Filters) ([]skill.SearchResult, bool, error) {
	deadlineCtx, cancel := context.WithTimeout(ctx, e.cfg.Deadline)
	defer cancel()

	lexCh := make(chan lexResult, 1)
	go func() {
		res, err := e.Catalog.LexicalSearch(ctx, text, filters, e.cfg.MaxLimit, 0)
		lexCh <- lexResult{res, err}
	}()

	var vecResults []catalog.RankedResult
	degraded := false
	if e.Embedder != nil {
		vecCh := make(chan lexResult, 1)
		go func() {
			qvec, err := e.Embedder.Embed(deadlineCtx, text)
			if err != nil {
				vecCh <- lexResult{nil, err}
				return
			}
			res, err := e.Catalog.VectorSearch(deadlineCtx, qvec, filters, e.cfg.MaxLimit)
			vecCh <- lexResult{res, err}
		}()
		select {
		case v := <-vecCh:
			if v.err == nil {
				vecResults = v.res
			} else {
				degraded = true
			}
		case <-deadlineCtx.Done():
			degraded = true
		}
	}

	lex := <-lexCh
	if lex.err != nil {
		return nil, false, lex.err
	}

	fused := reciprocalRankFusion(lex.res, vecResults, e.cfg.RRFk, e.cfg.RRFAlpha)
	out := make([]skill.SearchResult, 0, len(fused))
	for _, f := range fused {
		out = append(out, toSearchResult(f.skill, f.score, skill.SourceRegistry))
	}
	return out, degraded, nil
}

type lexResult struct {
	res []catalog.RankedResult
	err error
}

func toSearchResult(sk *skill.Skill, score float64, source skill.ResultSource) skill.SearchResult {
	return skill.SearchResult{
		SkillID:       sk.ID(),
		Name:          sk.Name,
		Description:   sk.Description,
		Author:        sk.Author,
		TrustTier:     sk.TrustTier,
		Score:         score,
		Source:        source,
		Compatibility: sk.Compatibility,
		Repository:    sk.RepositoryURL,
	}
}

// paginateResults slices items to [offset, offset+limit). limit is assumed
// already resolved (non-negative) by the caller; limit == 0 returns an
// empty, non-nil slice rather than "uncapped".
func paginateResults(items []skill.SearchResult, limit, offset int) []skill.SearchResult {
	if limit == 0 {
		return []skill.SearchResult{}
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

