package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smith-horn/skillsmith/internal/fetch"
)

// maxHistoryEntries bounds how many past sync runs state.json retains.
const maxHistoryEntries = 50

// Frequency names how often a due background differential sync runs.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

func (f Frequency) duration() time.Duration {
	if f == FrequencyWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// Result is one completed sync run's outcome.
type Result struct {
	Mode       string    `json:"mode"`
	Added      int       `json:"added"`
	Updated    int       `json:"updated"`
	Unchanged  int       `json:"unchanged"`
	Errors     int       `json:"errors"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// State is the persisted checkpoint at sync/state.json: the resumable
// cursor, the last completed sync timestamp, the configured frequency, and
// a bounded run history.
type State struct {
	Cursor     fetch.Cursor `json:"cursor"`
	LastSyncAt time.Time    `json:"last_sync_at"`
	Frequency  Frequency    `json:"frequency"`
	History    []Result     `json:"history"`
}

func statePath(dir string) string {
	return filepath.Join(dir, "state.json")
}

// loadState reads sync/state.json, returning a default State (daily
// frequency, zero cursor, no history) rather than an error when the file
// has never been created.
func loadState(dir string) (State, error) {
	raw, err := os.ReadFile(statePath(dir))
	if os.IsNotExist(err) {
		return State{Frequency: FrequencyDaily}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read sync state: %w", err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("parse sync state: %w", err)
	}
	return s, nil
}

// save atomically persists state to sync/state.json (write-to-temp then
// rename, so a crash mid-write never leaves a truncated checkpoint).
func (s State) save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sync state dir: %w", err)
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}
	tmp := statePath(dir) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	return os.Rename(tmp, statePath(dir))
}

func (s *State) recordResult(r Result) {
	s.History = append(s.History, r)
	if len(s.History) > maxHistoryEntries {
		s.History = s.History[len(s.History)-maxHistoryEntries:]
	}
}
