// Package syncer implements the manual full/differential sync operations
// and the optional session-scoped background poller that keeps the catalog
// fresh from upstream (C9). It lives under internal/sync to match the
// persisted sync/state.json layout; the package itself is named syncer so
// callers can still import the standard library's sync package unaliased.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smith-horn/skillsmith/internal/fetch"
	"github.com/smith-horn/skillsmith/internal/ingest"
	"github.com/smith-horn/skillsmith/internal/logging"
)

const defaultPollInterval = 60 * time.Second

// CandidateSource is the subset of *fetch.Client the scheduler depends on,
// narrowed to an interface so tests can substitute a fake candidate feed.
type CandidateSource interface {
	SearchCandidates(ctx context.Context, filters fetch.SearchFilters, cursor fetch.Cursor) (fetch.SearchPage, error)
}

// Ingester is the subset of *ingest.Pipeline the scheduler depends on.
type Ingester interface {
	IngestBatch(ctx context.Context, candidates []fetch.Candidate) (*ingest.BatchResult, error)
}

// Config configures a Scheduler.
type Config struct {
	StateDir     string // directory holding sync/state.json
	Filters      fetch.SearchFilters
	PollInterval time.Duration // background poll cadence, default 60s
	Frequency    Frequency     // how often a due differential sync runs in the background, default daily
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Frequency == "" {
		c.Frequency = FrequencyDaily
	}
	return c
}

// Scheduler runs manual full/differential syncs and an optional background
// poller, a ticker loop started and stopped through stop/done channels.
type Scheduler struct {
	cfg      Config
	source   CandidateSource
	ingester Ingester

	mu    sync.Mutex
	state State

	workerStop chan struct{}
	workerDone chan struct{}
}

// New constructs a Scheduler, loading any existing checkpoint from
// cfg.StateDir/state.json.
func New(cfg Config, source CandidateSource, ingester Ingester) (*Scheduler, error) {
	cfg = cfg.withDefaults()
	state, err := loadState(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	if cfg.Frequency != "" {
		state.Frequency = cfg.Frequency
	}
	return &Scheduler{cfg: cfg, source: source, ingester: ingester, state: state}, nil
}

// FullSync iterates every upstream search query from the beginning,
// streaming each page's candidates through the ingestion pipeline and
// revalidating everything the catalog already knows about.
func (s *Scheduler) FullSync(ctx context.Context) (Result, error) {
	return s.run(ctx, "full", fetch.Cursor{})
}

// DifferentialSync resumes from the last persisted cursor, streaming only
// the remainder of the candidate sweep through the ingestion pipeline; the
// pipeline's content-hash comparison is what actually determines which
// candidates are unchanged.
func (s *Scheduler) DifferentialSync(ctx context.Context) (Result, error) {
	s.mu.Lock()
	cursor := s.state.Cursor
	s.mu.Unlock()
	return s.run(ctx, "differential", cursor)
}

func (s *Scheduler) run(ctx context.Context, mode string, cursor fetch.Cursor) (Result, error) {
	log := logging.Get(logging.CategorySync)
	start := time.Now()
	result := Result{Mode: mode, StartedAt: start.UTC()}

	for {
		page, err := s.source.SearchCandidates(ctx, s.cfg.Filters, cursor)
		if err != nil {
			return result, fmt.Errorf("%s sync: search candidates: %w", mode, err)
		}

		if len(page.Candidates) > 0 {
			batch, err := s.ingester.IngestBatch(ctx, page.Candidates)
			if err != nil {
				return result, fmt.Errorf("%s sync: ingest batch: %w", mode, err)
			}
			result.Added += batch.Added
			result.Updated += batch.Updated
			result.Unchanged += batch.Unchanged
			result.Errors += batch.Errors
		}

		cursor = page.NextCursor
		s.mu.Lock()
		s.state.Cursor = cursor
		if err := s.state.save(s.cfg.StateDir); err != nil {
			s.mu.Unlock()
			return result, fmt.Errorf("%s sync: persist checkpoint: %w", mode, err)
		}
		s.mu.Unlock()

		if page.Done {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	result.DurationMS = time.Since(start).Milliseconds()

	s.mu.Lock()
	s.state.LastSyncAt = time.Now().UTC()
	s.state.Cursor = fetch.Cursor{} // next run (manual or background) starts a fresh sweep
	s.state.recordResult(result)
	saveErr := s.state.save(s.cfg.StateDir)
	s.mu.Unlock()
	if saveErr != nil {
		return result, fmt.Errorf("%s sync: persist final state: %w", mode, saveErr)
	}

	log.Infow("sync completed", "mode", mode, "added", result.Added, "updated", result.Updated,
		"unchanged", result.Unchanged, "errors", result.Errors, "duration_ms", result.DurationMS)
	return result, nil
}

// History returns the bounded list of past sync results, oldest first.
func (s *Scheduler) History() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.state.History))
	copy(out, s.state.History)
	return out
}

// LastSyncAt returns the timestamp of the last completed sync, the zero
// time if none has run yet.
func (s *Scheduler) LastSyncAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastSyncAt
}

// due reports whether a background differential sync should run now, given
// the configured frequency and the last completed sync.
func (s *Scheduler) due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.LastSyncAt.IsZero() {
		return true
	}
	return now.Sub(s.state.LastSyncAt) >= s.state.Frequency.duration()
}

// StartBackground starts the session-scoped polling loop if not already
// running. The loop checks every PollInterval whether a differential sync
// is due and runs one if so; it is a no-op if already started.
func (s *Scheduler) StartBackground() {
	s.mu.Lock()
	if s.workerStop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.workerStop = stop
	s.workerDone = done
	s.mu.Unlock()

	go s.runBackground(stop, done)
}

// StopBackground stops the polling loop, waiting briefly for the current
// tick (if any) to finish. Safe to call even if never started.
func (s *Scheduler) StopBackground() {
	s.mu.Lock()
	stop := s.workerStop
	done := s.workerDone
	s.workerStop = nil
	s.workerDone = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *Scheduler) runBackground(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	log := logging.Get(logging.CategorySync)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.due(time.Now()) {
				continue
			}
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				select {
				case <-stop:
					cancel()
				case <-ctx.Done():
				}
			}()
			if _, err := s.DifferentialSync(ctx); err != nil {
				log.Warnw("background differential sync failed", "error", err)
			}
			cancel()
		}
	}
}
