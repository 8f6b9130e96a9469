package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smith-horn/skillsmith/internal/catalog"
	"github.com/smith-horn/skillsmith/internal/localoverlay"
	"github.com/smith-horn/skillsmith/internal/skill"
	"github.com/smith-horn/skillsmith/internal/validator"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}
func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }
func (f *fakeEmbedder) Name() string    { return "fake" }

func newTestCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSkill(t *testing.T, c *catalog.Store, author, name string, quality int, vec []float32) {
	t.Helper()
	sk := skill.Skill{
		Author: author, Name: name, ContentHash: "h",
		Description:  "A skill for testing search behavior end to end.",
		QualityScore: quality,
		TrustTier:    skill.TierCommunity,
		ScanStatus:   skill.ScanSafe,
	}
	in := catalog.UpsertInput{Skill: sk}
	if vec != nil {
		in.Embedding = vec
		in.ModelID = "test"
	}
	require.NoError(t, c.UpsertSkill(context.Background(), in))
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	e := New(newTestCatalog(t), nil, nil, nil, DefaultConfig())
	_, err := e.Search(context.Background(), skill.Query{}, "")
	assert.ErrorIs(t, err, skill.ErrEmptyQuery)
}

func TestSearchInvalidFilterRejected(t *testing.T) {
	e := New(newTestCatalog(t), nil, nil, nil, DefaultConfig())
	_, err := e.Search(context.Background(), skill.Query{Filters: skill.Filters{MinScore: 200}}, "")
	assert.ErrorIs(t, err, skill.ErrInvalidFilter)
}

func TestFilterOnlySearchOrdersByScore(t *testing.T) {
	c := newTestCatalog(t)
	seedSkill(t, c, "acme", "low", 10, nil)
	seedSkill(t, c, "acme", "high", 90, nil)

	e := New(c, nil, nil, nil, DefaultConfig())
	resp, err := e.Search(context.Background(), skill.Query{Filters: skill.Filters{SafeOnly: true}, Limit: 10}, "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "acme/high", resp.Results[0].SkillID)
}

func TestFilterOnlySearchWithExplicitZeroLimitReturnsEmpty(t *testing.T) {
	c := newTestCatalog(t)
	seedSkill(t, c, "acme", "low", 10, nil)
	seedSkill(t, c, "acme", "high", 90, nil)

	e := New(c, nil, nil, nil, DefaultConfig())
	resp, err := e.Search(context.Background(), skill.Query{Filters: skill.Filters{SafeOnly: true}, Limit: 0}, "")
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 2, resp.Total, "total reflects the full match count even though Results is empty")
}

func TestFilterOnlySearchWithUnsetLimitUsesDefault(t *testing.T) {
	c := newTestCatalog(t)
	seedSkill(t, c, "acme", "low", 10, nil)
	seedSkill(t, c, "acme", "high", 90, nil)

	e := New(c, nil, nil, nil, DefaultConfig())
	resp, err := e.Search(context.Background(), skill.Query{Filters: skill.Filters{SafeOnly: true}, Limit: -1}, "")
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestHybridSearchMergesLexicalAndVectorLegs(t *testing.T) {
	c := newTestCatalog(t)
	seedSkill(t, c, "acme", "reviewer", 50, []float32{1, 0, 0})
	seedSkill(t, c, "acme", "unrelated", 50, []float32{0, 1, 0})

	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	e := New(c, nil, embedder, nil, DefaultConfig())

	resp, err := e.Search(context.Background(), skill.Query{Text: "reviewer", Limit: 10}, "")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "acme/reviewer", resp.Results[0].SkillID)
	assert.False(t, resp.Degraded)
}

func TestHybridSearchDegradesWhenEmbedderFails(t *testing.T) {
	c := newTestCatalog(t)
	seedSkill(t, c, "acme", "reviewer", 50, nil)

	embedder := &fakeEmbedder{err: assert.AnError}
	e := New(c, nil, embedder, nil, DefaultConfig())

	resp, err := e.Search(context.Background(), skill.Query{Text: "reviewer", Limit: 10}, "")
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.Results, "lexical leg alone still returns results")
}

func TestLocalOverlayMergeRegistryWinsOnCollision(t *testing.T) {
	c := newTestCatalog(t)
	seedSkill(t, c, "acme", "reviewer", 50, nil)

	dir := t.TempDir()
	require.NoError(t, writeLocalSkill(filepath.Join(dir, "reviewer"), "acme", "reviewer"))
	require.NoError(t, writeLocalSkill(filepath.Join(dir, "linter"), "acme", "linter"))

	overlay, err := localoverlay.New(dir, validator.Options{})
	require.NoError(t, err)
	require.NoError(t, overlay.Start(context.Background()))
	t.Cleanup(overlay.Stop)

	cfg := DefaultConfig()
	e := New(c, overlay, nil, nil, cfg)
	resp, err := e.Search(context.Background(), skill.Query{Filters: skill.Filters{SafeOnly: true}, Limit: 10}, "")
	require.NoError(t, err)

	registryCount := 0
	localCount := 0
	for _, r := range resp.Results {
		switch r.SkillID {
		case "acme/reviewer":
			registryCount++
			assert.Equal(t, skill.SourceRegistry, r.Source, "registry item must win the collision")
		case "acme/linter":
			localCount++
			assert.Equal(t, skill.SourceLocal, r.Source)
		}
	}
	assert.Equal(t, 1, registryCount)
	assert.Equal(t, 1, localCount, "non-colliding local skill should be merged in")
}

func TestCompareRejectsIdenticalIDs(t *testing.T) {
	c := newTestCatalog(t)
	e := New(c, nil, nil, nil, DefaultConfig())
	_, err := e.Compare(context.Background(), "acme/a", "acme/a")
	assert.ErrorIs(t, err, skill.NewError(skill.KindIdenticalIDs, ""))
}

func TestComparePicksHigherQualityWinner(t *testing.T) {
	c := newTestCatalog(t)
	seedSkill(t, c, "acme", "a", 40, nil)
	seedSkill(t, c, "acme", "b", 80, nil)

	e := New(c, nil, nil, nil, DefaultConfig())
	result, err := e.Compare(context.Background(), "acme/a", "acme/b")
	require.NoError(t, err)
	assert.Equal(t, "b", result.Winner)
	assert.NotEmpty(t, result.Differences)
}

func writeLocalSkill(dir, author, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	body := "---\nname: " + name + "\nauthor: " + author + "\ndescription: A locally authored variant of this skill for overlay testing.\n---\n\n# " + name + "\n\nBody content padded out for minimum length requirements here.\n"
	return os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(body), 0o644)
}
