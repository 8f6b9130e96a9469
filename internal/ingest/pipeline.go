// Package ingest wires the per-candidate ingestion sequence —
// fetch (C1) -> validate (C2) -> scan (C3) -> quarantine-or-score (C4/C5)
// -> catalog upsert (C6) -> audit append (C10) — behind a bounded worker
// pool, so a batch of candidates (from a manual or scheduled sync) can be
// processed concurrently while honoring the catalog's single-writer
// discipline.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smith-horn/skillsmith/internal/audit"
	"github.com/smith-horn/skillsmith/internal/catalog"
	"github.com/smith-horn/skillsmith/internal/embedding"
	"github.com/smith-horn/skillsmith/internal/fetch"
	"github.com/smith-horn/skillsmith/internal/logging"
	"github.com/smith-horn/skillsmith/internal/quarantine"
	"github.com/smith-horn/skillsmith/internal/scanner"
	"github.com/smith-horn/skillsmith/internal/scoring"
	"github.com/smith-horn/skillsmith/internal/skill"
	"github.com/smith-horn/skillsmith/internal/validator"
)

// defaultConcurrency is the worker-pool size when Config.Concurrency is
// unset, the midpoint of the spec's "4-8 workers" default range.
const defaultConcurrency = 6

// Fetcher is the subset of *fetch.Client the pipeline depends on, narrowed
// to an interface so tests can substitute a fake document source.
type Fetcher interface {
	FetchDocument(ctx context.Context, repoID, path, revision string) ([]byte, fetch.DocumentMetadata, error)
}

// Config configures a Pipeline. Fetch, Catalog, and Quarantine are
// required; Audit and Embedder are optional (a nil Audit simply skips
// telemetry, a nil Embedder skips embedding generation).
type Config struct {
	Fetch       Fetcher
	Catalog     *catalog.Store
	Quarantine  *quarantine.Store
	Audit       *audit.Log
	Embedder    embedding.EmbeddingEngine
	Validator   validator.Options
	Scanner     scanner.Config
	Concurrency int

	RecognizedLicenses []string
	RecognizedTopics   []string
}

// Pipeline runs the ingestion sequence for individual candidates and
// batches.
type Pipeline struct {
	cfg Config
}

// New constructs a Pipeline, defaulting Concurrency when unset.
func New(cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Pipeline{cfg: cfg}
}

// Outcome classifies what happened to one candidate.
type Outcome string

const (
	OutcomeAdded       Outcome = "added"
	OutcomeUpdated     Outcome = "updated"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeQuarantined Outcome = "quarantined"
	OutcomeError       Outcome = "error"
)

// CandidateResult is the outcome of ingesting one candidate.
type CandidateResult struct {
	Candidate fetch.Candidate
	SkillID   string
	Outcome   Outcome
	Err       error
}

// BatchResult aggregates a batch's outcomes into the spec's
// {added, updated, unchanged, errors} history shape.
type BatchResult struct {
	Added     int
	Updated   int
	Unchanged int
	Errors    int
	Results   []CandidateResult
}

// IngestBatch runs IngestOne over every candidate through a bounded
// worker pool (Config.Concurrency workers), aggregating outcome counts.
// Results are collected in candidate order; the worker pool only bounds
// concurrency, not catalog write ordering, which the catalog itself
// serializes.
func (p *Pipeline) IngestBatch(ctx context.Context, candidates []fetch.Candidate) (*BatchResult, error) {
	results := make([]CandidateResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	var mu sync.Mutex
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			res := p.IngestOne(gctx, c)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // per-candidate errors are captured in CandidateResult, not propagated

	batch := &BatchResult{Results: results}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeAdded:
			batch.Added++
		case OutcomeUpdated, OutcomeQuarantined:
			batch.Updated++
		case OutcomeUnchanged:
			batch.Unchanged++
		case OutcomeError:
			batch.Errors++
		}
	}
	return batch, nil
}

// IngestOne runs the full validate -> scan -> score/quarantine -> upsert
// -> audit sequence for one candidate, totally ordered within the
// candidate's skill id per the concurrency model.
func (p *Pipeline) IngestOne(ctx context.Context, c fetch.Candidate) CandidateResult {
	log := logging.Get(logging.CategorySync)
	result := CandidateResult{Candidate: c}

	author, name, ok := splitRepoID(c.RepoID)
	if !ok {
		result.Outcome = OutcomeError
		result.Err = fmt.Errorf("candidate repo id %q is not owner/repo", c.RepoID)
		return result
	}
	skillID := author + "/" + name
	result.SkillID = skillID

	existing, err := p.cfg.Catalog.GetSkill(ctx, skillID)
	if err != nil && err != skill.ErrNotFound {
		result.Outcome = OutcomeError
		result.Err = err
		return result
	}

	content, meta, err := p.cfg.Fetch.FetchDocument(ctx, c.RepoID, c.Path, "")
	if err != nil {
		log.Warnw("fetch failed", "skill_id", skillID, "error", err)
		result.Outcome = OutcomeError
		result.Err = err
		return result
	}

	// A candidate is sized against its current tier's limit (Unknown, the
	// least permissive non-Local tier, for one never before seen) per
	// spec's max_content_bytes(tier) policy violation.
	sizeTier := skill.TierUnknown
	if existing != nil {
		sizeTier = existing.TrustTier
	}
	validatorOpts := p.cfg.Validator
	validatorOpts.MaxContentBytes = skill.DefaultTierConfigs()[sizeTier].MaxContentBytes

	validated, err := validator.Validate(content, validatorOpts)
	if err != nil {
		log.Infow("validation rejected candidate", "skill_id", skillID, "error", err)
		result.Outcome = OutcomeError
		result.Err = err
		return result
	}

	scanResult := scanner.Scan(validated.Body, p.cfg.Scanner)

	if existing != nil && existing.ContentHash == scanResult.SkillContentHash {
		result.Outcome = OutcomeUnchanged
		return result
	}

	sk := skill.Skill{
		Author:         author,
		Name:           name,
		ContentHash:    scanResult.SkillContentHash,
		Description:    validated.Description,
		Tags:           validated.Tags,
		Category:       validated.Category,
		Roles:          validated.Roles,
		TriggerPhrases: validated.TriggerPhrases,
		UpstreamID:     meta.Repository,
		UpstreamRev:    meta.UpstreamRevision,
		SizeBytes:      int64(len(content)),
		RepositoryURL:  "https://github.com/" + meta.Repository,
		Signals: skill.Signals{
			Stars:             meta.Signals.Stars,
			Forks:             meta.Signals.Forks,
			Watchers:          meta.Signals.Watchers,
			LastUpdated:       meta.Signals.LastUpdated,
			ContributorCount:  meta.Signals.ContributorCount,
			License:           meta.Signals.License,
			OpenIssueCount:    meta.Signals.OpenIssueCount,
			RecentCommitCount: meta.Signals.RecentCommitCount,
		},
		ScanStatus: scanResultStatus(scanResult.Recommendation),
		RiskScore:  scanResult.RiskScore,
		LastScanAt: scanResult.Timestamp,
	}

	if scanResult.Recommendation == skill.RecommendQuarantine {
		severity := maxSeverity(scanResult.Findings)
		reason := quarantineReason(scanResult)
		if p.cfg.Quarantine != nil {
			if _, err := p.cfg.Quarantine.Create(ctx, skillID, reason, severity); err != nil {
				result.Outcome = OutcomeError
				result.Err = err
				return result
			}
		}
		sk.TrustTier = skill.TierUnknown
		result.Outcome = OutcomeQuarantined
	} else {
		elig := scoring.Eligibility{HasValidStructure: validated.HasFrontmatter}
		tier := scoring.AssignTier(elig)
		if scoring.DowngradeOnFailedScan(tier, scanResult.RiskScore) {
			tier = skill.TierUnknown
		}
		sub, total := scoring.Composite(scoring.Input{
			Signals:            sk.Signals,
			Description:        validated.Description,
			BodyLength:         len(validated.Body),
			HasExamples:        strings.Contains(strings.ToLower(validated.Body), "example"),
			License:            meta.Signals.License,
			Topics:             validated.Tags,
			RecognizedLicenses: p.cfg.RecognizedLicenses,
			RecognizedTopics:   p.cfg.RecognizedTopics,
			Now:                time.Now().UTC(),
		})
		sk.SubScores = sub
		sk.QualityScore = total
		sk.TrustTier = tier

		if existing == nil {
			result.Outcome = OutcomeAdded
		} else {
			result.Outcome = OutcomeUpdated
		}
	}

	var vec []float32
	modelID := ""
	if p.cfg.Embedder != nil {
		embedText := validated.Name + "\n" + validated.Description
		if v, err := p.cfg.Embedder.Embed(ctx, embedText); err != nil {
			log.Warnw("embedding generation failed, indexing without vector", "skill_id", skillID, "error", err)
		} else {
			vec = v
			modelID = p.cfg.Embedder.Name()
		}
	}

	if err := p.cfg.Catalog.UpsertSkill(ctx, catalog.UpsertInput{
		Skill:     sk,
		Embedding: vec,
		ModelID:   modelID,
		Version: &catalog.VersionRecord{
			VersionLabel:     meta.UpstreamRevision,
			UpstreamRevision: meta.UpstreamRevision,
			ContentHash:      scanResult.SkillContentHash,
			IndexedAt:        time.Now().UTC(),
		},
	}); err != nil {
		result.Outcome = OutcomeError
		result.Err = err
		return result
	}

	if p.cfg.Audit != nil {
		eventType := audit.EventSkillUpserted
		if result.Outcome == OutcomeQuarantined {
			eventType = audit.EventQuarantineCreated
		}
		_, _ = p.cfg.Audit.Append(skillID, eventType, map[string]string{
			"quality_score": fmt.Sprintf("%d", sk.QualityScore),
			"trust_tier":    string(sk.TrustTier),
			"scan_status":   string(sk.ScanStatus),
			"risk_score":    fmt.Sprintf("%.2f", sk.RiskScore),
		})
	}

	return result
}

func splitRepoID(repoID string) (author, name string, ok bool) {
	parts := strings.SplitN(repoID, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func scanResultStatus(rec skill.Recommendation) skill.ScanStatus {
	switch rec {
	case skill.RecommendQuarantine:
		return skill.ScanQuarantine
	case skill.RecommendReview:
		return skill.ScanReview
	default:
		return skill.ScanSafe
	}
}

func quarantineReason(res skill.ScanResult) string {
	if len(res.Findings) == 0 {
		return fmt.Sprintf("risk score %.1f exceeds tier threshold", res.RiskScore)
	}
	return fmt.Sprintf("%s finding in category %s", res.Findings[0].Severity, res.Findings[0].Category)
}

var severityRank = map[skill.Severity]int{
	skill.SeverityLow:      0,
	skill.SeverityMedium:   1,
	skill.SeverityHigh:     2,
	skill.SeverityCritical: 3,
}

func maxSeverity(findings []skill.Finding) skill.Severity {
	max := skill.SeverityLow
	for _, f := range findings {
		if severityRank[f.Severity] > severityRank[max] {
			max = f.Severity
		}
	}
	return max
}

