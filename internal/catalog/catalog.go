// Package catalog is the authoritative store for skills, versions,
// embeddings and the local lexical index (the catalog store, C6).
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smith-horn/skillsmith/internal/logging"
	"github.com/smith-horn/skillsmith/internal/skill"
)

// Store is the sqlite-backed catalog. Writes are serialized through a
// single connection (SetMaxOpenConns(1)) so the skill-level upsert
// transaction never interleaves with another writer; reads use a
// separate read pool so browse/search never blocks on ingest.
type Store struct {
	mu    sync.Mutex
	write *sql.DB
	read  *sql.DB
}

const schemaVersion = 1

// Open opens (or creates) the catalog at path. Pass ":memory:" for an
// in-process store; note that sqlite's :memory: databases are
// per-connection, so the write and read handles share one pooled
// in-memory DB via a shared cache for that mode.
func Open(path string) (*Store, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}

	write, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "open catalog write handle: "+err.Error())
	}
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite3", dsn)
	if err != nil {
		write.Close()
		return nil, skill.NewError(skill.KindStorage, "open catalog read handle: "+err.Error())
	}

	s := &Store{write: write, read: read}
	if err := s.initSchema(); err != nil {
		write.Close()
		read.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	werr := s.write.Close()
	rerr := s.read.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (version INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS skills (
			skill_id TEXT PRIMARY KEY,
			author TEXT NOT NULL,
			name TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			category TEXT NOT NULL DEFAULT '',
			roles TEXT NOT NULL DEFAULT '[]',
			trigger_phrases TEXT NOT NULL DEFAULT '[]',
			upstream_id TEXT NOT NULL DEFAULT '',
			upstream_rev TEXT NOT NULL DEFAULT '',
			size_bytes INTEGER NOT NULL DEFAULT 0,
			language TEXT NOT NULL DEFAULT '',
			version TEXT NOT NULL DEFAULT '',
			compat_ides TEXT NOT NULL DEFAULT '[]',
			compat_llms TEXT NOT NULL DEFAULT '[]',
			repository_url TEXT NOT NULL DEFAULT '',
			stars INTEGER NOT NULL DEFAULT 0,
			forks INTEGER NOT NULL DEFAULT 0,
			watchers INTEGER NOT NULL DEFAULT 0,
			last_updated DATETIME,
			contributor_count INTEGER NOT NULL DEFAULT 0,
			license TEXT NOT NULL DEFAULT '',
			open_issue_count INTEGER NOT NULL DEFAULT 0,
			recent_commit_count INTEGER NOT NULL DEFAULT 0,
			quality_score INTEGER NOT NULL DEFAULT 0,
			pop_score REAL NOT NULL DEFAULT 0,
			activity_score REAL NOT NULL DEFAULT 0,
			doc_score REAL NOT NULL DEFAULT 0,
			trust_score REAL NOT NULL DEFAULT 0,
			trust_tier TEXT NOT NULL DEFAULT 'unknown',
			scan_status TEXT NOT NULL DEFAULT 'safe',
			risk_score REAL NOT NULL DEFAULT 0,
			last_scan_at DATETIME,
			embedding_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			archived INTEGER NOT NULL DEFAULT 0,
			archived_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_skills_category ON skills(category)`,
		`CREATE INDEX IF NOT EXISTS idx_skills_tier ON skills(trust_tier)`,
		`CREATE INDEX IF NOT EXISTS idx_skills_archived ON skills(archived)`,
		`CREATE INDEX IF NOT EXISTS idx_skills_quality ON skills(quality_score)`,
		`CREATE TABLE IF NOT EXISTS skill_versions (
			skill_id TEXT NOT NULL,
			version_label TEXT NOT NULL,
			upstream_revision TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			indexed_at DATETIME NOT NULL,
			PRIMARY KEY (skill_id, version_label)
		)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			skill_id TEXT PRIMARY KEY,
			dim INTEGER NOT NULL,
			vector BLOB NOT NULL,
			model_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS lexical_postings (
			skill_id TEXT NOT NULL,
			field TEXT NOT NULL,
			term TEXT NOT NULL,
			tf INTEGER NOT NULL,
			doc_len INTEGER NOT NULL,
			PRIMARY KEY (skill_id, field, term)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_term ON lexical_postings(field, term)`,
		`CREATE TABLE IF NOT EXISTS categories (
			name TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS category_skills (
			category TEXT NOT NULL,
			skill_id TEXT NOT NULL,
			PRIMARY KEY (category, skill_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.write.Exec(stmt); err != nil {
			return skill.NewError(skill.KindStorage, "init schema: "+err.Error())
		}
	}

	var count int
	if err := s.write.QueryRow(`SELECT COUNT(*) FROM schema_meta`).Scan(&count); err != nil {
		return skill.NewError(skill.KindStorage, "read schema_meta: "+err.Error())
	}
	if count == 0 {
		if _, err := s.write.Exec(`INSERT INTO schema_meta (version) VALUES (?)`, schemaVersion); err != nil {
			return skill.NewError(skill.KindStorage, "seed schema_meta: "+err.Error())
		}
	}
	return nil
}

// UpsertInput bundles a skill record with its optional new version and
// embedding for one atomic transaction.
type UpsertInput struct {
	Skill     skill.Skill
	Version   *VersionRecord
	Embedding []float32
	ModelID   string
}

// VersionRecord is one row of the skill_versions history.
type VersionRecord struct {
	VersionLabel     string
	UpstreamRevision string
	ContentHash      string
	IndexedAt        time.Time
}

// UpsertSkill atomically writes the skill row, an optional version
// history row, an optional embedding, and the lexical postings derived
// from name/description/author.
func (s *Store) UpsertSkill(ctx context.Context, in UpsertInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sk := in.Skill
	id := sk.ID()
	now := time.Now().UTC()
	if sk.CreatedAt.IsZero() {
		sk.CreatedAt = now
	}
	sk.UpdatedAt = now

	tags, err := json.Marshal(sk.Tags)
	if err != nil {
		return skill.NewError(skill.KindStorage, "marshal tags: "+err.Error())
	}
	ides, _ := json.Marshal(sk.Compatibility.IDEs)
	llms, _ := json.Marshal(sk.Compatibility.LLMs)
	roles, _ := json.Marshal(sk.Roles)
	triggers, _ := json.Marshal(sk.TriggerPhrases)

	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return skill.NewError(skill.KindStorage, "begin tx: "+err.Error())
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO skills (
			skill_id, author, name, content_hash, description, tags, category,
			roles, trigger_phrases,
			upstream_id, upstream_rev, size_bytes, language, version,
			compat_ides, compat_llms, repository_url,
			stars, forks, watchers, last_updated, contributor_count, license,
			open_issue_count, recent_commit_count,
			quality_score, pop_score, activity_score, doc_score, trust_score,
			trust_tier, scan_status, risk_score, last_scan_at, embedding_id,
			created_at, updated_at, archived, archived_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(skill_id) DO UPDATE SET
			author=excluded.author, name=excluded.name, content_hash=excluded.content_hash,
			description=excluded.description, tags=excluded.tags, category=excluded.category,
			roles=excluded.roles, trigger_phrases=excluded.trigger_phrases,
			upstream_id=excluded.upstream_id, upstream_rev=excluded.upstream_rev,
			size_bytes=excluded.size_bytes, language=excluded.language, version=excluded.version,
			compat_ides=excluded.compat_ides, compat_llms=excluded.compat_llms,
			repository_url=excluded.repository_url,
			stars=excluded.stars, forks=excluded.forks, watchers=excluded.watchers,
			last_updated=excluded.last_updated, contributor_count=excluded.contributor_count,
			license=excluded.license, open_issue_count=excluded.open_issue_count,
			recent_commit_count=excluded.recent_commit_count,
			quality_score=excluded.quality_score, pop_score=excluded.pop_score,
			activity_score=excluded.activity_score, doc_score=excluded.doc_score,
			trust_score=excluded.trust_score, trust_tier=excluded.trust_tier,
			scan_status=excluded.scan_status, risk_score=excluded.risk_score,
			last_scan_at=excluded.last_scan_at, embedding_id=excluded.embedding_id,
			updated_at=excluded.updated_at, archived=excluded.archived, archived_at=excluded.archived_at
	`,
		id, sk.Author, sk.Name, sk.ContentHash, sk.Description, string(tags), sk.Category,
		string(roles), string(triggers),
		sk.UpstreamID, sk.UpstreamRev, sk.SizeBytes, sk.Language, sk.Version,
		string(ides), string(llms), sk.RepositoryURL,
		sk.Signals.Stars, sk.Signals.Forks, sk.Signals.Watchers, timeOrNil(sk.Signals.LastUpdated), sk.Signals.ContributorCount, sk.Signals.License,
		sk.Signals.OpenIssueCount, sk.Signals.RecentCommitCount,
		sk.QualityScore, sk.SubScores.Popularity, sk.SubScores.Activity, sk.SubScores.Documentation, sk.SubScores.Trust,
		string(sk.TrustTier), string(sk.ScanStatus), sk.RiskScore, timeOrNil(sk.LastScanAt), sk.EmbeddingID,
		sk.CreatedAt, sk.UpdatedAt, boolToInt(sk.Archived), timeOrNil(sk.ArchivedAt),
	)
	if err != nil {
		return skill.NewError(skill.KindStorage, "upsert skill: "+err.Error())
	}

	if sk.Category != "" {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`, sk.Category); err != nil {
			return skill.NewError(skill.KindStorage, "upsert category: "+err.Error())
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO category_skills (category, skill_id) VALUES (?,?)`, sk.Category, id); err != nil {
			return skill.NewError(skill.KindStorage, "link category: "+err.Error())
		}
	}

	if in.Version != nil {
		v := in.Version
		_, err = tx.ExecContext(ctx, `
			INSERT INTO skill_versions (skill_id, version_label, upstream_revision, content_hash, indexed_at)
			VALUES (?,?,?,?,?)
			ON CONFLICT(skill_id, version_label) DO UPDATE SET
				upstream_revision=excluded.upstream_revision, content_hash=excluded.content_hash, indexed_at=excluded.indexed_at
		`, id, v.VersionLabel, v.UpstreamRevision, v.ContentHash, v.IndexedAt)
		if err != nil {
			return skill.NewError(skill.KindStorage, "upsert version: "+err.Error())
		}
	}

	if len(in.Embedding) > 0 {
		blob := encodeVector(in.Embedding)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO embeddings (skill_id, dim, vector, model_id) VALUES (?,?,?,?)
			ON CONFLICT(skill_id) DO UPDATE SET dim=excluded.dim, vector=excluded.vector, model_id=excluded.model_id
		`, id, len(in.Embedding), blob, in.ModelID)
		if err != nil {
			return skill.NewError(skill.KindStorage, "upsert embedding: "+err.Error())
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM lexical_postings WHERE skill_id = ?`, id); err != nil {
		return skill.NewError(skill.KindStorage, "clear postings: "+err.Error())
	}
	for field, text := range map[string]string{
		fieldName:        sk.Name,
		fieldDescription: sk.Description,
		fieldAuthor:      sk.Author,
	} {
		postings, docLen := tokenPostings(text)
		for term, tf := range postings {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO lexical_postings (skill_id, field, term, tf, doc_len) VALUES (?,?,?,?,?)
			`, id, field, term, tf, docLen); err != nil {
				return skill.NewError(skill.KindStorage, "insert posting: "+err.Error())
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return skill.NewError(skill.KindStorage, "commit upsert: "+err.Error())
	}
	logging.Get(logging.CategoryCatalog).Debugw("upserted skill", "skill_id", id)
	return nil
}

// GetSkill fetches one skill by (author, name) id. Returns skill.ErrNotFound
// when absent.
func (s *Store) GetSkill(ctx context.Context, skillID string) (*skill.Skill, error) {
	row := s.read.QueryRowContext(ctx, skillsSelectColumns+` FROM skills WHERE skill_id = ?`, skillID)
	sk, err := scanSkill(row)
	if err != nil {
		return nil, err
	}
	return sk, nil
}

// DeleteSkill soft-deletes (archives) a skill so it stops surfacing in
// search/browse while its history is retained.
func (s *Store) DeleteSkill(ctx context.Context, skillID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.write.ExecContext(ctx, `UPDATE skills SET archived = 1, archived_at = ?, updated_at = ? WHERE skill_id = ?`,
		time.Now().UTC(), time.Now().UTC(), skillID)
	if err != nil {
		return skill.NewError(skill.KindStorage, "delete skill: "+err.Error())
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return skill.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

