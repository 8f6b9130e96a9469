package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smith-horn/skillsmith/internal/skill"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSkill(author, name string) skill.Skill {
	return skill.Skill{
		Author:       author,
		Name:         name,
		ContentHash:  "deadbeef",
		Description:  "A skill that automates code review comments for pull requests.",
		Tags:         []string{"review", "automation"},
		Category:     "Code Review",
		QualityScore: 70,
		TrustTier:    skill.TierCommunity,
		ScanStatus:   skill.ScanSafe,
		Signals:      skill.Signals{Stars: 100, LastUpdated: time.Now()},
	}
}

func TestUpsertAndGetSkillRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sk := sampleSkill("acme", "pr-reviewer")
	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: sk}))

	got, err := s.GetSkill(ctx, "acme/pr-reviewer")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Author)
	assert.Equal(t, []string{"review", "automation"}, got.Tags)
	assert.Equal(t, "Code Review", got.Category)
}

func TestUpsertIsIdempotentAndOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sk := sampleSkill("acme", "pr-reviewer")
	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: sk}))

	sk.QualityScore = 90
	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: sk}))

	got, err := s.GetSkill(ctx, "acme/pr-reviewer")
	require.NoError(t, err)
	assert.Equal(t, 90, got.QualityScore)
}

func TestGetSkillNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSkill(context.Background(), "nobody/nothing")
	assert.ErrorIs(t, err, skill.ErrNotFound)
}

func TestDeleteSkillSoftArchives(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: sampleSkill("acme", "pr-reviewer")}))

	require.NoError(t, s.DeleteSkill(ctx, "acme/pr-reviewer"))

	got, err := s.GetSkill(ctx, "acme/pr-reviewer")
	require.NoError(t, err, "archived skills are still retrievable by id")
	assert.True(t, got.Archived)

	results, err := s.FilterBrowse(ctx, skill.Filters{}, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, results, "archived skills are excluded from browse")
}

func TestFilterBrowseOrdersByQualityScoreDesc(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	low := sampleSkill("acme", "low")
	low.QualityScore = 20
	high := sampleSkill("acme", "high")
	high.QualityScore = 95

	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: low}))
	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: high}))

	results, err := s.FilterBrowse(ctx, skill.Filters{}, 20, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "acme/high", results[0].ID())
	assert.Equal(t, "acme/low", results[1].ID())
}

func TestFilterBrowseExcludesQuarantinedSkills(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	quarantined := sampleSkill("acme", "risky")
	quarantined.ScanStatus = skill.ScanQuarantine
	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: quarantined}))

	results, err := s.FilterBrowse(ctx, skill.Filters{}, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFilterBrowseAppliesMinScoreAndCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := sampleSkill("acme", "a")
	a.QualityScore = 30
	a.Category = "Testing"
	b := sampleSkill("acme", "b")
	b.QualityScore = 80
	b.Category = "Code Review"

	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: a}))
	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: b}))

	results, err := s.FilterBrowse(ctx, skill.Filters{MinScore: 50}, 20, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "acme/b", results[0].ID())

	results, err = s.FilterBrowse(ctx, skill.Filters{Category: "testing"}, 20, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "acme/a", results[0].ID())
}

func TestLexicalSearchRanksNameMatchAboveDescriptionOnlyMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	named := sampleSkill("acme", "reviewer")
	named.Description = "Handles generic repository maintenance tasks."
	other := sampleSkill("acme", "formatter")
	other.Description = "A reviewer of code style and formatting conventions."

	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: named}))
	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: other}))

	results, err := s.LexicalSearch(ctx, "reviewer", skill.Filters{}, 20, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "acme/reviewer", results[0].Skill.ID(), "name-field match should outrank description-only match")
}

func TestLexicalSearchEmptyQueryReturnsNil(t *testing.T) {
	s := newTestStore(t)
	results, err := s.LexicalSearch(context.Background(), "", skill.Filters{}, 20, 0)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestVectorSearchFallsBackToGoCosine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := sampleSkill("acme", "a")
	b := sampleSkill("acme", "b")
	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: a, Embedding: []float32{1, 0, 0}, ModelID: "test"}))
	require.NoError(t, s.UpsertSkill(ctx, UpsertInput{Skill: b, Embedding: []float32{0, 1, 0}, ModelID: "test"}))

	results, err := s.VectorSearch(ctx, []float32{1, 0, 0}, skill.Filters{}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "acme/a", results[0].Skill.ID())
}

func TestUpsertWithVersionRecordsHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sk := sampleSkill("acme", "pr-reviewer")
	err := s.UpsertSkill(ctx, UpsertInput{
		Skill: sk,
		Version: &VersionRecord{
			VersionLabel:     "v1",
			UpstreamRevision: "abc123",
			ContentHash:      sk.ContentHash,
			IndexedAt:        time.Now(),
		},
	})
	require.NoError(t, err)

	var count int
	row := s.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM skill_versions WHERE skill_id = ?`, "acme/pr-reviewer")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}
