package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/smith-horn/skillsmith/internal/skill"
)

func TestPopularityClampedAtMax(t *testing.T) {
	p := Popularity(skill.Signals{Stars: 1_000_000, Forks: 1_000_000, Watchers: 1_000_000})
	assert.InDelta(t, 30, p, 0.5)
}

func TestPopularityZeroSignals(t *testing.T) {
	p := Popularity(skill.Signals{})
	assert.Zero(t, p)
}

func TestActivityRecentUpdateScoresHighest(t *testing.T) {
	now := time.Now()
	recent := Activity(skill.Signals{LastUpdated: now.Add(-5 * 24 * time.Hour)}, now)
	old := Activity(skill.Signals{LastUpdated: now.Add(-400 * 24 * time.Hour)}, now)
	assert.Greater(t, recent, old)
}

func TestDocumentationRewardsLengthReadmeAndDescription(t *testing.T) {
	thin := Documentation(Input{BodyLength: 50, Description: "short"})
	rich := Documentation(Input{
		BodyLength:  1200,
		HasReadme:   true,
		Description: "A thorough description of what this skill accomplishes.",
		HasExamples: true,
	})
	assert.Greater(t, rich, thin)
	assert.LessOrEqual(t, rich, 25.0)
}

func TestTrustAwardsLicensePublisherAndTopic(t *testing.T) {
	in := Input{
		License:            "MIT",
		VerifiedPublisher:  true,
		Topics:             []string{"agent-skill"},
		RecognizedLicenses: []string{"mit", "apache-2.0"},
		RecognizedTopics:   []string{"agent-skill"},
	}
	assert.Equal(t, 20.0, Trust(in))
}

func TestTrustUnrecognizedLicenseScoresZeroForThatComponent(t *testing.T) {
	in := Input{License: "Some-Custom-License", RecognizedLicenses: []string{"mit"}}
	assert.Zero(t, Trust(in))
}

func TestCompositeClampedToRange(t *testing.T) {
	in := Input{
		Signals:            skill.Signals{Stars: 10000, Forks: 5000, Watchers: 2000, LastUpdated: time.Now(), ContributorCount: 50},
		Description:        "A complete and well-written description with punctuation.",
		BodyLength:         2000,
		HasReadme:          true,
		HasExamples:        true,
		License:            "mit",
		VerifiedPublisher:  true,
		Topics:             []string{"agent-skill"},
		RecognizedLicenses: []string{"mit"},
		RecognizedTopics:   []string{"agent-skill"},
		Now:                time.Now(),
	}
	_, total := Composite(in)
	assert.GreaterOrEqual(t, total, 0)
	assert.LessOrEqual(t, total, 100)
}

func TestAssignTierFollowsLadder(t *testing.T) {
	assert.Equal(t, skill.TierVerified, AssignTier(Eligibility{PublisherVerified: true, OperatorCurated: true}))
	assert.Equal(t, skill.TierCurated, AssignTier(Eligibility{OperatorCurated: true}))
	assert.Equal(t, skill.TierCommunity, AssignTier(Eligibility{HasValidStructure: true}))
	assert.Equal(t, skill.TierExperimental, AssignTier(Eligibility{}))
}

func TestDowngradeOnFailedScan(t *testing.T) {
	assert.True(t, DowngradeOnFailedScan(skill.TierCommunity, 45))
	assert.False(t, DowngradeOnFailedScan(skill.TierCommunity, 10))
	assert.False(t, DowngradeOnFailedScan(skill.TierLocal, 1000), "local has no threshold")
}

func TestSortByScoreDescTieBreaksOnPopularityThenRecencyThenID(t *testing.T) {
	now := time.Now()
	candidates := []Candidate{
		{SkillID: "b/skill", Score: 50, Popularity: 10, LastUpdated: now},
		{SkillID: "a/skill", Score: 50, Popularity: 10, LastUpdated: now},
		{SkillID: "c/skill", Score: 50, Popularity: 20, LastUpdated: now},
		{SkillID: "d/skill", Score: 90, Popularity: 1, LastUpdated: now},
	}
	SortByScoreDesc(candidates)
	assert.Equal(t, "d/skill", candidates[0].SkillID)
	assert.Equal(t, "c/skill", candidates[1].SkillID)
	assert.Equal(t, "a/skill", candidates[2].SkillID, "equal score+popularity+time ties break lexically")
	assert.Equal(t, "b/skill", candidates[3].SkillID)
}
