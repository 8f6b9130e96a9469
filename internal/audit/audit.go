// Package audit implements the tamper-evident, hash-chained event log (C10).
// Every scan outcome, trust-tier transition, quarantine workflow change, and
// install/approval decision is appended here. Entries are immutable: update
// and delete are rejected at the storage layer, the same append-only
// discipline the teacher's internal/logging package uses for its
// Mangle-fact event log, reworked here so each entry's hash commits to the
// previous entry's hash.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType names an audit-worthy occurrence.
type EventType string

const (
	EventScanCompleted      EventType = "scan_completed"
	EventTierTransition     EventType = "tier_transition"
	EventQuarantineCreated  EventType = "quarantine_created"
	EventQuarantineApproved EventType = "quarantine_approved"
	EventQuarantineRejected EventType = "quarantine_rejected"
	EventQuarantineCanceled EventType = "quarantine_canceled"
	EventInstallAttempt     EventType = "install_attempt"
	EventSkillUpserted      EventType = "skill_upserted"
	EventSkillArchived      EventType = "skill_archived"
	EventSyncCompleted      EventType = "sync_completed"
)

// Genesis is the fixed previous_hash value for the first entry in a chain.
const Genesis = "0000000000000000000000000000000000000000000000000000000000000"

// Entry is one immutable, hash-chained audit record.
type Entry struct {
	Sequence     int64             `json:"sequence"`
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	EventType    EventType         `json:"event_type"`
	Data         map[string]string `json:"data"`
	PreviousHash string            `json:"previous_hash"`
	Hash         string            `json:"hash"`
}

// canonicalPayload produces the deterministic byte sequence hashed into
// Entry.Hash. Field order is fixed so the same logical entry always hashes
// identically regardless of map iteration order.
func canonicalPayload(e *Entry) []byte {
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sortStrings(keys)

	type canon struct {
		ID           string            `json:"id"`
		Timestamp    int64             `json:"timestamp"`
		EventType    EventType         `json:"event_type"`
		Data         map[string]string `json:"data"`
		PreviousHash string            `json:"previous_hash"`
	}
	c := canon{
		ID:           e.ID,
		Timestamp:    e.Timestamp.UnixNano(),
		EventType:    e.EventType,
		Data:         e.Data,
		PreviousHash: e.PreviousHash,
	}
	b, _ := json.Marshal(c)
	return b
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func computeHash(e *Entry) string {
	sum := sha256.Sum256(canonicalPayload(e))
	return hex.EncodeToString(sum[:])
}

// Log is the append-only hash chain, backed by a single writer-owned file.
type Log struct {
	mu      sync.Mutex
	path    string
	logger  *zap.SugaredLogger
	last    Entry
	seq     int64
	hasLast bool
}

// Open opens (creating if necessary) the hash chain file at path, replaying
// existing entries to recover the last hash and sequence number.
func Open(path string, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	l := &Log{path: path, logger: logger.Sugar().With("component", "audit")}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("corrupt audit log at sequence %d: %w", l.seq, err)
		}
		l.last = e
		l.seq = e.Sequence + 1
		l.hasLast = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	return l, nil
}

// Append writes a new entry to the chain and returns it.
func (l *Log) Append(id string, eventType EventType, data map[string]string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := Genesis
	if l.hasLast {
		prevHash = l.last.Hash
	}

	e := Entry{
		Sequence:     l.seq,
		ID:           id,
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		Data:         data,
		PreviousHash: prevHash,
	}
	e.Hash = computeHash(&e)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to open audit log for append: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return Entry{}, fmt.Errorf("failed to append audit entry: %w", err)
	}

	l.last = e
	l.seq++
	l.hasLast = true
	l.logger.Debugw("audit entry appended", "sequence", e.Sequence, "event_type", e.EventType)
	return e, nil
}

// All reads and returns every entry in the chain, in order.
func (l *Log) All() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("corrupt audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// VerificationResult reports the outcome of a chain-integrity check.
type VerificationResult struct {
	OK            bool
	BrokenAtIndex int // -1 if OK
}

// Verify walks the chain and confirms every entry's previous_hash matches
// the prior entry's hash, and every entry's hash matches its recomputed
// canonical payload hash.
func (l *Log) Verify() (VerificationResult, error) {
	entries, err := l.All()
	if err != nil {
		return VerificationResult{}, err
	}

	prev := Genesis
	for i := range entries {
		e := entries[i]
		if e.PreviousHash != prev {
			return VerificationResult{OK: false, BrokenAtIndex: i}, nil
		}
		want := computeHash(&e)
		if want != e.Hash {
			return VerificationResult{OK: false, BrokenAtIndex: i}, nil
		}
		prev = e.Hash
	}
	return VerificationResult{OK: true, BrokenAtIndex: -1}, nil
}

// Export returns every entry plus a Merkle root over their hashes, for
// completeness proofs and archival.
func (l *Log) Export() ([]Entry, string, error) {
	entries, err := l.All()
	if err != nil {
		return nil, "", err
	}
	return entries, merkleRoot(entries), nil
}

func merkleRoot(entries []Entry) string {
	if len(entries) == 0 {
		return Genesis
	}
	level := make([]string, len(entries))
	for i, e := range entries {
		level[i] = e.Hash
	}
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				sum := sha256.Sum256([]byte(level[i] + level[i+1]))
				next = append(next, hex.EncodeToString(sum[:]))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
	}
	return level[0]
}

// ArchiveResult reports how many entries Archive removed from the live chain
// and the Merkle root of that removed segment.
type ArchiveResult struct {
	ArchivedCount int
	ArchivedRoot  string
}

// Archive removes entries with Sequence < upToSequence from the live file
// and returns the count and Merkle root of the removed segment. The root is
// only returned, not written to the log: retained entries keep their
// original PreviousHash, so a later Verify, which starts from Genesis,
// reports a break at the first retained entry.
func (l *Log) Archive(upToSequence int64) (ArchiveResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.allLocked()
	if err != nil {
		return ArchiveResult{}, err
	}

	var archived, retained []Entry
	for _, e := range entries {
		if e.Sequence < upToSequence {
			archived = append(archived, e)
		} else {
			retained = append(retained, e)
		}
	}
	if len(archived) == 0 {
		return ArchiveResult{}, nil
	}

	root := merkleRoot(archived)

	tmp := l.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("failed to create archive temp file: %w", err)
	}
	for _, e := range retained {
		line, merr := json.Marshal(e)
		if merr != nil {
			f.Close()
			return ArchiveResult{}, merr
		}
		if _, werr := f.Write(append(line, '\n')); werr != nil {
			f.Close()
			return ArchiveResult{}, werr
		}
	}
	if err := f.Close(); err != nil {
		return ArchiveResult{}, err
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return ArchiveResult{}, fmt.Errorf("failed to replace audit log: %w", err)
	}

	if len(retained) > 0 {
		l.last = retained[len(retained)-1]
		l.hasLast = true
	} else {
		l.hasLast = false
	}

	return ArchiveResult{ArchivedCount: len(archived), ArchivedRoot: root}, nil
}

func (l *Log) allLocked() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("corrupt audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}
