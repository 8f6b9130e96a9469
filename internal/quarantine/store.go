// Package quarantine implements the review-queue state machine for
// potentially malicious skills (C4): pending -> approved/rejected/canceled,
// backed by sqlite so workflows and approvals survive process restart.
package quarantine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/google/uuid"

	"github.com/smith-horn/skillsmith/internal/logging"
	"github.com/smith-horn/skillsmith/internal/skill"
)

// Capability gates approval operations. Multi-approval-required
// transitions (critical severity) require CapReviewElevated; single-
// approval transitions only need CapReviewBasic.
type Capability string

const (
	CapReviewBasic    Capability = "review:basic"
	CapReviewElevated Capability = "review:elevated"
)

// Reviewer carries the identity and granted capabilities performing an
// approval/rejection operation.
type Reviewer struct {
	ID           string
	Capabilities map[Capability]bool
}

func (r Reviewer) has(cap Capability) bool {
	return r.Capabilities[cap]
}

// Filter narrows a List call.
type Filter struct {
	Status skill.QuarantineStatus // empty matches all
	SkillID string
}

// Store is the sqlite-backed quarantine review queue.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating schema if necessary) the quarantine store at path.
// Use ":memory:" for an ephemeral in-process store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open quarantine store: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline matches the catalog's

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS quarantine_entries (
			id TEXT PRIMARY KEY,
			skill_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			severity TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			required_approvals INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_quarantine_skill_id ON quarantine_entries(skill_id);
		CREATE INDEX IF NOT EXISTS idx_quarantine_status ON quarantine_entries(status);

		CREATE TABLE IF NOT EXISTS quarantine_approvals (
			entry_id TEXT NOT NULL,
			reviewer_id TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			note TEXT,
			PRIMARY KEY (entry_id, reviewer_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize quarantine schema: %w", err)
	}
	return nil
}

// Create inserts a new pending entry. Idempotent on skill_id while a
// non-terminal entry already exists for it: the existing entry is
// returned instead of creating a duplicate.
func (s *Store) Create(ctx context.Context, skillID, reason string, severity skill.Severity) (*skill.QuarantineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getActiveLocked(ctx, skillID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	entry := &skill.QuarantineEntry{
		ID:                uuid.NewString(),
		SkillID:           skillID,
		Reason:            reason,
		Severity:          severity,
		Status:            skill.QuarantinePending,
		CreatedAt:         time.Now().UTC(),
		RequiredApprovals: skill.RequiredApprovalsFor(severity),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quarantine_entries (id, skill_id, reason, severity, status, created_at, required_approvals) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SkillID, entry.Reason, string(entry.Severity), string(entry.Status), entry.CreatedAt, entry.RequiredApprovals,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create quarantine entry: %w", err)
	}

	logging.Get(logging.CategoryQuarantine).Infow("quarantine entry created", "entry_id", entry.ID, "skill_id", skillID, "severity", severity)
	return entry, nil
}

func (s *Store) getActiveLocked(ctx context.Context, skillID string) (*skill.QuarantineEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM quarantine_entries WHERE skill_id = ? AND status = ?`, skillID, string(skill.QuarantinePending))
	if err != nil {
		return nil, fmt.Errorf("failed to query active quarantine entries: %w", err)
	}
	defer rows.Close()

	var id string
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
	} else {
		return nil, nil
	}
	rows.Close()
	return s.getLocked(ctx, id)
}

// Get retrieves a single entry by ID, including its approvals.
func (s *Store) Get(ctx context.Context, entryID string) (*skill.QuarantineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, entryID)
}

func (s *Store) getLocked(ctx context.Context, entryID string) (*skill.QuarantineEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, skill_id, reason, severity, status, created_at, required_approvals FROM quarantine_entries WHERE id = ?`, entryID)

	var entry skill.QuarantineEntry
	var severity, status string
	if err := row.Scan(&entry.ID, &entry.SkillID, &entry.Reason, &severity, &status, &entry.CreatedAt, &entry.RequiredApprovals); err != nil {
		if err == sql.ErrNoRows {
			return nil, skill.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quarantine entry: %w", err)
	}
	entry.Severity = skill.Severity(severity)
	entry.Status = skill.QuarantineStatus(status)

	approvals, err := s.approvalsLocked(ctx, entryID)
	if err != nil {
		return nil, err
	}
	entry.Approvals = approvals
	return &entry, nil
}

func (s *Store) approvalsLocked(ctx context.Context, entryID string) ([]skill.Approval, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT reviewer_id, timestamp, note FROM quarantine_approvals WHERE entry_id = ? ORDER BY timestamp ASC`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	var approvals []skill.Approval
	for rows.Next() {
		var a skill.Approval
		var note sql.NullString
		if err := rows.Scan(&a.ReviewerID, &a.Timestamp, &note); err != nil {
			return nil, err
		}
		a.Note = note.String
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

// AddApproval records reviewer's approval. Fails with ErrTerminalState if
// the entry is no longer pending, or ErrAlreadyApproved if reviewer
// already approved it. Advances the entry to approved once the required
// distinct-reviewer count is reached. Critical-severity entries (required
// approvals > 1) require CapReviewElevated; others require CapReviewBasic.
func (s *Store) AddApproval(ctx context.Context, entryID string, reviewer Reviewer, note string) (*skill.QuarantineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.getLocked(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.IsTerminal() {
		return nil, skill.ErrTerminalState
	}
	if entry.HasApprovalFrom(reviewer.ID) {
		return nil, skill.ErrAlreadyApproved
	}

	requiredCap := CapReviewBasic
	if entry.RequiredApprovals > 1 {
		requiredCap = CapReviewElevated
	}
	if !reviewer.has(requiredCap) {
		return nil, skill.NewError(skill.KindInsufficientTrust, "reviewer lacks required capability", "required", string(requiredCap))
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO quarantine_approvals (entry_id, reviewer_id, timestamp, note) VALUES (?, ?, ?, ?)`,
		entryID, reviewer.ID, now, note,
	); err != nil {
		return nil, fmt.Errorf("failed to record approval: %w", err)
	}

	entry.Approvals = append(entry.Approvals, skill.Approval{ReviewerID: reviewer.ID, Timestamp: now, Note: note})

	if len(entry.Approvals) >= entry.RequiredApprovals {
		entry.Status = skill.QuarantineApproved
		if _, err := s.db.ExecContext(ctx, `UPDATE quarantine_entries SET status = ? WHERE id = ?`, string(entry.Status), entryID); err != nil {
			return nil, fmt.Errorf("failed to advance quarantine entry: %w", err)
		}
		logging.Get(logging.CategoryQuarantine).Infow("quarantine entry approved", "entry_id", entryID)
	}

	return entry, nil
}

// Reject transitions a pending entry to rejected.
func (s *Store) Reject(ctx context.Context, entryID string, reviewer Reviewer, reason string) (*skill.QuarantineEntry, error) {
	return s.transition(ctx, entryID, reviewer, skill.QuarantineRejected, reason)
}

// Cancel transitions a pending entry to canceled.
func (s *Store) Cancel(ctx context.Context, entryID string, reviewer Reviewer, reason string) (*skill.QuarantineEntry, error) {
	return s.transition(ctx, entryID, reviewer, skill.QuarantineCanceled, reason)
}

func (s *Store) transition(ctx context.Context, entryID string, reviewer Reviewer, to skill.QuarantineStatus, reason string) (*skill.QuarantineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.getLocked(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.IsTerminal() {
		return nil, skill.ErrTerminalState
	}
	if !reviewer.has(CapReviewBasic) {
		return nil, skill.NewError(skill.KindInsufficientTrust, "reviewer lacks required capability", "required", string(CapReviewBasic))
	}

	entry.Status = to
	if _, err := s.db.ExecContext(ctx, `UPDATE quarantine_entries SET status = ? WHERE id = ?`, string(to), entryID); err != nil {
		return nil, fmt.Errorf("failed to transition quarantine entry: %w", err)
	}
	logging.Get(logging.CategoryQuarantine).Infow("quarantine entry transitioned", "entry_id", entryID, "to", to, "reviewer", reviewer.ID, "reason", reason)
	return entry, nil
}

// List returns entries matching filter, most recently created first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*skill.QuarantineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id FROM quarantine_entries WHERE 1=1`
	var args []interface{}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SkillID != "" {
		query += ` AND skill_id = ?`
		args = append(args, filter.SkillID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarantine entries: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	entries := make([]*skill.QuarantineEntry, 0, len(ids))
	for _, id := range ids {
		e, err := s.getLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// IsQuarantined reports whether skillID has a non-terminal (pending) entry.
func (s *Store) IsQuarantined(ctx context.Context, skillID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.getActiveLocked(ctx, skillID)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
