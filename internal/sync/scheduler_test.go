package syncer

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smith-horn/skillsmith/internal/fetch"
	"github.com/smith-horn/skillsmith/internal/ingest"
)

// fakeSource serves a fixed, ordered sequence of pages regardless of the
// cursor passed in, recording every cursor it was called with.
type fakeSource struct {
	mu      sync.Mutex
	pages   []fetch.SearchPage
	calls   int
	cursors []fetch.Cursor
}

func (f *fakeSource) SearchCandidates(ctx context.Context, filters fetch.SearchFilters, cursor fetch.Cursor) (fetch.SearchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors = append(f.cursors, cursor)
	if f.calls >= len(f.pages) {
		return fetch.SearchPage{Done: true}, nil
	}
	page := f.pages[f.calls]
	f.calls++
	return page, nil
}

// fakeIngester reports a fixed outcome per call and counts invocations.
type fakeIngester struct {
	mu      sync.Mutex
	result  ingest.BatchResult
	batches [][]fetch.Candidate
}

func (f *fakeIngester) IngestBatch(ctx context.Context, candidates []fetch.Candidate) (*ingest.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, candidates)
	r := f.result
	return &r, nil
}

func (f *fakeIngester) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func TestFullSyncPagesUntilDoneAndAggregatesCounts(t *testing.T) {
	dir := t.TempDir()
	source := &fakeSource{pages: []fetch.SearchPage{
		{Candidates: []fetch.Candidate{{RepoID: "acme/a", Path: "SKILL.md"}}, NextCursor: fetch.Cursor{QueryIndex: 0, Page: 2}},
		{Candidates: []fetch.Candidate{{RepoID: "acme/b", Path: "SKILL.md"}}, NextCursor: fetch.Cursor{QueryIndex: 1, Page: 1}, Done: true},
	}}
	ingester := &fakeIngester{result: ingest.BatchResult{Added: 1}}

	sched, err := New(Config{StateDir: dir}, source, ingester)
	require.NoError(t, err)

	result, err := sched.FullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "full", result.Mode)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 2, ingester.callCount())
	assert.False(t, sched.LastSyncAt().IsZero())

	reloaded, err := New(Config{StateDir: dir}, source, ingester)
	require.NoError(t, err)
	assert.Equal(t, fetch.Cursor{}, reloaded.state.Cursor, "a completed sweep resets the checkpoint for the next run")
}

func TestDifferentialSyncResumesFromPersistedCursor(t *testing.T) {
	dir := t.TempDir()
	seeded := State{Cursor: fetch.Cursor{QueryIndex: 2, Page: 5}, Frequency: FrequencyDaily}
	require.NoError(t, seeded.save(dir))

	source := &fakeSource{pages: []fetch.SearchPage{{Done: true}}}
	ingester := &fakeIngester{}

	sched, err := New(Config{StateDir: dir}, source, ingester)
	require.NoError(t, err)

	_, err = sched.DifferentialSync(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, source.cursors)
	assert.Equal(t, fetch.Cursor{QueryIndex: 2, Page: 5}, source.cursors[0])
}

func TestHistoryIsBoundedAndPersists(t *testing.T) {
	dir := t.TempDir()
	source := &fakeSource{pages: []fetch.SearchPage{{Done: true}}}
	ingester := &fakeIngester{}

	sched, err := New(Config{StateDir: dir}, source, ingester)
	require.NoError(t, err)

	for i := 0; i < maxHistoryEntries+5; i++ {
		source.calls = 0
		_, err := sched.FullSync(context.Background())
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, len(sched.History()), maxHistoryEntries)

	reloaded, err := New(Config{StateDir: dir}, source, ingester)
	require.NoError(t, err)
	assert.Equal(t, len(sched.History()), len(reloaded.History()))
}

func TestBackgroundSyncRunsWhenDue(t *testing.T) {
	dir := t.TempDir()
	source := &fakeSource{pages: []fetch.SearchPage{{Done: true}}}
	ingester := &fakeIngester{}

	sched, err := New(Config{StateDir: dir, PollInterval: 20 * time.Millisecond}, source, ingester)
	require.NoError(t, err)

	sched.StartBackground()
	defer sched.StopBackground()

	require.Eventually(t, func() bool {
		return ingester.callCount() > 0
	}, time.Second, 10*time.Millisecond)
}

func TestBackgroundSyncSkipsWhenNotDue(t *testing.T) {
	dir := t.TempDir()
	fresh := State{LastSyncAt: time.Now().UTC(), Frequency: FrequencyDaily}
	require.NoError(t, fresh.save(dir))

	source := &fakeSource{pages: []fetch.SearchPage{{Done: true}}}
	ingester := &fakeIngester{}

	sched, err := New(Config{StateDir: dir, PollInterval: 10 * time.Millisecond}, source, ingester)
	require.NoError(t, err)

	sched.StartBackground()
	time.Sleep(80 * time.Millisecond)
	sched.StopBackground()

	assert.Equal(t, 0, ingester.callCount())
}

func TestLoadStateDefaultsWhenMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "sync")
	state, err := loadState(dir)
	require.NoError(t, err)
	assert.Equal(t, FrequencyDaily, state.Frequency)
	assert.True(t, state.LastSyncAt.IsZero())
}
