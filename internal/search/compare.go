package search

import (
	"context"
	"fmt"
	"time"

	"github.com/smith-horn/skillsmith/internal/skill"
)

// CompareResult is the output of a two-skill comparison.
type CompareResult struct {
	A              *skill.Skill
	B              *skill.Skill
	Differences    []string
	Winner         string // "a", "b", or "tie"
	Recommendation string
	Timing         time.Duration
}

// Compare fetches skillA and skillB and produces a diff over sub-scores,
// trust tier, and scan status, picking a winner by composite score then the
// same tiebreakers as ranked search (popularity, then recency, then id).
func (e *Engine) Compare(ctx context.Context, skillA, skillB string) (*CompareResult, error) {
	start := time.Now()
	if skillA == skillB {
		return nil, skill.NewError(skill.KindIdenticalIDs, "skill_a and skill_b must differ")
	}

	a, err := e.Catalog.GetSkill(ctx, skillA)
	if err != nil {
		return nil, err
	}
	b, err := e.Catalog.GetSkill(ctx, skillB)
	if err != nil {
		return nil, err
	}

	var diffs []string
	if a.TrustTier != b.TrustTier {
		diffs = append(diffs, fmt.Sprintf("trust_tier: %s vs %s", a.TrustTier, b.TrustTier))
	}
	if a.ScanStatus != b.ScanStatus {
		diffs = append(diffs, fmt.Sprintf("scan_status: %s vs %s", a.ScanStatus, b.ScanStatus))
	}
	if a.QualityScore != b.QualityScore {
		diffs = append(diffs, fmt.Sprintf("quality_score: %d vs %d", a.QualityScore, b.QualityScore))
	}
	if a.SubScores != b.SubScores {
		diffs = append(diffs, fmt.Sprintf("sub_scores: %+v vs %+v", a.SubScores, b.SubScores))
	}

	winner := pickWinner(a, b)
	recommendation := fmt.Sprintf("prefer %s", winner)
	if winner == "tie" {
		recommendation = "either is a reasonable choice"
	}

	return &CompareResult{
		A: a, B: b, Differences: diffs, Winner: winner,
		Recommendation: recommendation, Timing: time.Since(start),
	}, nil
}

func pickWinner(a, b *skill.Skill) string {
	if a.QualityScore != b.QualityScore {
		if a.QualityScore > b.QualityScore {
			return "a"
		}
		return "b"
	}
	if a.SubScores.Popularity != b.SubScores.Popularity {
		if a.SubScores.Popularity > b.SubScores.Popularity {
			return "a"
		}
		return "b"
	}
	if !a.Signals.LastUpdated.Equal(b.Signals.LastUpdated) {
		if a.Signals.LastUpdated.After(b.Signals.LastUpdated) {
			return "a"
		}
		return "b"
	}
	if a.ID() != b.ID() {
		if a.ID() < b.ID() {
			return "a"
		}
		return "b"
	}
	return "tie"
}
