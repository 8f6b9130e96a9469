package catalog

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/smith-horn/skillsmith/internal/skill"
)

const fieldName = "name"
const fieldDescription = "description"
const fieldAuthor = "author"

const skillsSelectColumns = `SELECT
	skill_id, author, name, content_hash, description, tags, category,
	roles, trigger_phrases,
	upstream_id, upstream_rev, size_bytes, language, version,
	compat_ides, compat_llms, repository_url,
	stars, forks, watchers, last_updated, contributor_count, license,
	open_issue_count, recent_commit_count,
	quality_score, pop_score, activity_score, doc_score, trust_score,
	trust_tier, scan_status, risk_score, last_scan_at, embedding_id,
	created_at, updated_at, archived, archived_at`

// rowScanner abstracts *sql.Row and *sql.Rows so scanSkill works for both a
// single-row GetSkill and a multi-row list query.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSkill(row rowScanner) (*skill.Skill, error) {
	var (
		sk                                     skill.Skill
		skillID                                string
		tags, ides, llms, roles, triggers       string
		lastUpdated, lastScanAt, archivedAt     sql.NullTime
		archived                                int
	)
	err := row.Scan(
		&skillID, &sk.Author, &sk.Name, &sk.ContentHash, &sk.Description, &tags, &sk.Category,
		&roles, &triggers,
		&sk.UpstreamID, &sk.UpstreamRev, &sk.SizeBytes, &sk.Language, &sk.Version,
		&ides, &llms, &sk.RepositoryURL,
		&sk.Signals.Stars, &sk.Signals.Forks, &sk.Signals.Watchers, &lastUpdated, &sk.Signals.ContributorCount, &sk.Signals.License,
		&sk.Signals.OpenIssueCount, &sk.Signals.RecentCommitCount,
		&sk.QualityScore, &sk.SubScores.Popularity, &sk.SubScores.Activity, &sk.SubScores.Documentation, &sk.SubScores.Trust,
		&sk.TrustTier, &sk.ScanStatus, &sk.RiskScore, &lastScanAt, &sk.EmbeddingID,
		&sk.CreatedAt, &sk.UpdatedAt, &archived, &archivedAt,
	)
	if err == sql.ErrNoRows {
		return nil, skill.ErrNotFound
	}
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "scan skill row: "+err.Error())
	}

	_ = json.Unmarshal([]byte(tags), &sk.Tags)
	_ = json.Unmarshal([]byte(ides), &sk.Compatibility.IDEs)
	_ = json.Unmarshal([]byte(llms), &sk.Compatibility.LLMs)
	_ = json.Unmarshal([]byte(roles), &sk.Roles)
	_ = json.Unmarshal([]byte(triggers), &sk.TriggerPhrases)
	sk.Signals.LastUpdated = lastUpdated.Time
	sk.LastScanAt = lastScanAt.Time
	sk.ArchivedAt = archivedAt.Time
	sk.Archived = archived != 0

	return &sk, nil
}

// encodeVector serializes a float32 embedding as little-endian bytes, the
// same wire shape the teacher's vector store used for its embedding BLOBs.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
