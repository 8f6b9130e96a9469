// Package scoring implements the composite quality score and trust-tier
// assignment ladder (C5).
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/smith-horn/skillsmith/internal/skill"
)

// Input carries everything the composite formula needs for one skill.
type Input struct {
	Signals         skill.Signals
	Description     string
	BodyLength      int
	HasReadme       bool
	HasExamples     bool
	License         string
	VerifiedPublisher bool
	Topics          []string
	RecognizedLicenses []string
	RecognizedTopics   []string
	Now             time.Time
}

// Popularity computes the popularity sub-score (max 30).
func Popularity(s skill.Signals) float64 {
	return 15*math.Min(1, math.Log10(float64(s.Stars+1))/4) +
		10*math.Min(1, math.Log10(float64(s.Forks+1))/4) +
		5*math.Min(1, math.Log10(float64(s.Watchers+1))/4)
}

// Activity computes the activity sub-score (max 25): recency decay plus
// issue/commit health plus a contributor-count bucket.
func Activity(s skill.Signals, now time.Time) float64 {
	score := 0.0

	if !s.LastUpdated.IsZero() {
		days := now.Sub(s.LastUpdated).Hours() / 24
		switch {
		case days <= 30:
			score += 10
		case days <= 90:
			score += 8
		case days <= 180:
			score += 5
		default:
			score += 2
		}
	}

	switch {
	case s.OpenIssueCount == 0:
		score += 8
	case s.OpenIssueCount <= 5:
		score += 6
	case s.OpenIssueCount <= 20:
		score += 3
	default:
		score += 1
	}

	switch {
	case s.RecentCommitCount >= 10:
		score += 4
	case s.RecentCommitCount >= 1:
		score += 2
	}

	switch {
	case s.ContributorCount >= 10:
		score += 3
	case s.ContributorCount >= 3:
		score += 2
	case s.ContributorCount >= 1:
		score += 1
	}

	return math.Min(score, 25)
}

// Documentation computes the documentation sub-score (max 25).
func Documentation(in Input) float64 {
	score := 0.0

	switch {
	case in.BodyLength >= 1000:
		score += 10
	case in.BodyLength >= 400:
		score += 7
	case in.BodyLength >= 150:
		score += 4
	default:
		score += 1
	}

	if in.HasReadme {
		score += 5
	}

	desc := strings.TrimSpace(in.Description)
	if len(desc) >= 20 {
		score += 5
		if strings.ContainsAny(desc, ".!?") {
			score += 2
		}
	}
	if in.HasExamples {
		score += 3
	}

	return math.Min(score, 25)
}

// Trust computes the trust sub-score (max 20).
func Trust(in Input) float64 {
	score := 0.0
	if isRecognized(in.License, in.RecognizedLicenses) {
		score += 8
	}
	if in.VerifiedPublisher {
		score += 7
	}
	for _, t := range in.Topics {
		if isRecognized(t, in.RecognizedTopics) {
			score += 5
			break
		}
	}
	return math.Min(score, 20)
}

func isRecognized(value string, allowlist []string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	for _, a := range allowlist {
		if strings.ToLower(a) == v {
			return true
		}
	}
	return false
}

// Composite computes the four sub-scores and the clamped [0,100] integer
// composite score.
func Composite(in Input) (skill.SubScores, int) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	sub := skill.SubScores{
		Popularity:    Popularity(in.Signals),
		Activity:      Activity(in.Signals, now),
		Documentation: Documentation(in),
		Trust:         Trust(in),
	}
	total := int(math.Round(sub.Popularity + sub.Activity + sub.Documentation + sub.Trust))
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return sub, total
}

// Eligibility declares which tiers a skill qualifies for on grounds the
// scoring engine itself cannot establish (out-of-band publisher
// verification, operator curation, structural completeness). AssignTier
// walks the ladder from most to least trusted and returns the first one
// the skill is eligible for; the composite quality score does not gate
// tier assignment, only the per-tier risk threshold does (see
// DowngradeOnFailedScan and skill.DefaultTierConfigs).
type Eligibility struct {
	PublisherVerified bool // eligible for Verified: publisher identity confirmed out-of-band
	OperatorCurated   bool // eligible for Curated: third-party publisher reviewed by operators
	HasValidStructure bool // eligible for Community: license + README + valid structure
}

// AssignTier returns the most-trusted tier the skill is eligible for.
// Experimental (minimal metadata) is the floor for any indexed item. This
// ladder never returns Unknown: callers assign it to ad-hoc direct-URL items
// and to skills that DowngradeOnFailedScan demotes.
func AssignTier(elig Eligibility) skill.TrustTier {
	switch {
	case elig.PublisherVerified:
		return skill.TierVerified
	case elig.OperatorCurated:
		return skill.TierCurated
	case elig.HasValidStructure:
		return skill.TierCommunity
	default:
		return skill.TierExperimental
	}
}

// DowngradeOnFailedScan reports whether a scan result with the given risk
// score should downgrade tier to Unknown: the tier fails when its risk
// score reaches or exceeds the tier's own threshold (skill.TierConfig.RiskThreshold).
func DowngradeOnFailedScan(tier skill.TrustTier, riskScore float64) bool {
	cfg, ok := skill.DefaultTierConfigs()[tier]
	if !ok {
		return false
	}
	return riskScore >= cfg.RiskThreshold
}

// Candidate is a scored item subject to tie-breaking in ranked output.
type Candidate struct {
	SkillID     string
	Score       int
	Popularity  float64
	LastUpdated time.Time
}

// SortByScoreDesc orders candidates by score descending; ties are broken by
// higher popularity, then newer last-updated, then lexical skill id.
func SortByScoreDesc(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Popularity != b.Popularity {
			return a.Popularity > b.Popularity
		}
		if !a.LastUpdated.Equal(b.LastUpdated) {
			return a.LastUpdated.After(b.LastUpdated)
		}
		return a.SkillID < b.SkillID
	})
}
