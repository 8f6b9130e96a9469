// Package recommend proposes a bounded set of skills for a caller's project
// context: a description, an installed-skill set, an optional role, and a
// declared stack (the recommendation engine, C8).
package recommend

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/smith-horn/skillsmith/internal/catalog"
	"github.com/smith-horn/skillsmith/internal/localoverlay"
	"github.com/smith-horn/skillsmith/internal/logging"
	"github.com/smith-horn/skillsmith/internal/search"
	"github.com/smith-horn/skillsmith/internal/skill"
)

// roleBonus is added when the caller's role matches one of the skill's
// declared roles; the match is preferred, not mandatory, so non-matching
// skills are still eligible.
const roleBonus = 30

// jaccardThreshold is the trigger-phrase overlap at or above which a
// candidate is excluded for looking too similar to an already-installed skill.
const jaccardThreshold = 0.5

// stackBonus is added per stack keyword (framework, language, or
// dependency token) found in a candidate's name, description, or tags.
const stackBonus = 10

// maxStackBonus bounds the cumulative stack-keyword bonus so a skill that
// happens to mention many stack tokens can't swamp the base score.
const maxStackBonus = 30

// Config bounds the recommender's output.
type Config struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultConfig returns the spec's default/bound (5 default, 20 max).
func DefaultConfig() Config {
	return Config{DefaultLimit: 5, MaxLimit: 20}
}

// Engine computes contextual recommendations over the catalog, local
// overlay, and (optionally) a hybrid search engine for description-based
// candidate discovery.
type Engine struct {
	Catalog *catalog.Store
	Overlay *localoverlay.Overlay
	Search  *search.Engine
	cfg     Config
}

// New constructs a recommendation engine. Search may be nil, in which case
// candidates come only from filter-browse and the local overlay.
func New(cat *catalog.Store, overlay *localoverlay.Overlay, searchEngine *search.Engine, cfg Config) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 5
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 20
	}
	return &Engine{Catalog: cat, Overlay: overlay, Search: searchEngine, cfg: cfg}
}

// Response is the output of one Recommend call.
type Response struct {
	Recommendations      []skill.RecommendationItem
	CandidatesConsidered  int
	OverlapFiltered       int
	RoleFiltered          int
	Degraded              bool
	Timing                time.Duration
}

// Recommend scores candidate skills against ctx and returns the top-ranked
// subset, bounded by limit (0 means the engine default).
func (e *Engine) Recommend(ctx context.Context, rctx skill.RecommendationContext, limit int) (*Response, error) {
	start := time.Now()
	logging.Get(logging.CategoryRecommend).Debugw("recommend requested", "role", rctx.Role, "installed_count", len(rctx.InstalledSkills))

	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}

	candidates, degraded, err := e.candidates(ctx, rctx)
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "recommend: "+err.Error())
	}

	installedTriggers := e.installedTriggerSets(ctx, rctx.InstalledSkills)

	var (
		scored         []scoredCandidate
		overlapFiltered int
		roleFiltered   int
	)
	for _, sk := range candidates {
		if rctx.InstalledSkills[sk.ID()] {
			overlapFiltered++
			continue
		}
		if overlapsInstalled(sk.TriggerPhrases, installedTriggers) {
			overlapFiltered++
			continue
		}

		score := float64(sk.QualityScore)
		reasons := []string{"composite score " + scoreLabel(sk.QualityScore)}

		roleMatched := rctx.Role != "" && containsFold(sk.Roles, rctx.Role)
		if roleMatched {
			score += roleBonus
			reasons = append(reasons, "matches role "+rctx.Role)
		} else if rctx.Role != "" {
			roleFiltered++
		}

		bonus := stackKeywordBonus(sk, rctx.Stack)
		if bonus > 0 {
			score += bonus
			reasons = append(reasons, "matches project stack")
		}

		scored = append(scored, scoredCandidate{skill: sk, score: score, reason: strings.Join(reasons, "; "), roleMatched: roleMatched})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].skill.ID() < scored[j].skill.ID()
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}

	items := make([]skill.RecommendationItem, 0, len(scored))
	for _, c := range scored {
		item := skill.RecommendationItem{
			SkillID:      c.skill.ID(),
			Reason:       c.reason,
			QualityScore: c.skill.QualityScore,
		}
		if c.roleMatched {
			item.Roles = c.skill.Roles
		}
		items = append(items, item)
	}

	return &Response{
		Recommendations:     items,
		CandidatesConsidered: len(candidates),
		OverlapFiltered:      overlapFiltered,
		RoleFiltered:         roleFiltered,
		Degraded:             degraded,
		Timing:               time.Since(start),
	}, nil
}

type scoredCandidate struct {
	skill       *skill.Skill
	score       float64
	reason      string
	roleMatched bool
}

// candidates gathers the union of: a hybrid search over the project
// description (if both present), a safe-only filter browse, and the local
// overlay, deduped by skill id. The filter browse applies no trust-tier
// floor.
func (e *Engine) candidates(ctx context.Context, rctx skill.RecommendationContext) ([]*skill.Skill, bool, error) {
	seen := make(map[string]bool)
	var out []*skill.Skill
	degraded := false

	add := func(sk *skill.Skill) {
		id := sk.ID()
		if seen[id] {
			return
		}
		seen[id] = true
		out = append(out, sk)
	}

	if rctx.ProjectDescription != "" && e.Search != nil {
		resp, err := e.Search.Search(ctx, skill.Query{Text: rctx.ProjectDescription, Limit: 50}, "")
		if err != nil {
			degraded = true
		} else {
			degraded = degraded || resp.Degraded
			for _, r := range resp.Results {
				sk, err := e.Catalog.GetSkill(ctx, r.SkillID)
				if err == nil {
					add(sk)
				}
			}
		}
	}

	browsed, err := e.Catalog.FilterBrowse(ctx, skill.Filters{SafeOnly: true}, 100, 0)
	if err != nil {
		degraded = true
	} else {
		for _, sk := range browsed {
			add(sk)
		}
	}

	if e.Overlay != nil {
		for _, sk := range e.Overlay.Skills() {
			local := sk
			add(&local)
		}
	}

	return out, degraded, nil
}

// installedTriggerSets resolves the trigger-phrase token sets for every
// installed skill id, used for Jaccard overlap exclusion.
func (e *Engine) installedTriggerSets(ctx context.Context, installed map[string]bool) []map[string]bool {
	var sets []map[string]bool
	for id := range installed {
		sk, err := e.Catalog.GetSkill(ctx, id)
		if err != nil {
			continue
		}
		sets = append(sets, tokenSet(sk.TriggerPhrases))
	}
	return sets
}

// overlapsInstalled reports whether candidate's trigger phrases have a
// Jaccard similarity at or above jaccardThreshold with any installed
// skill's trigger phrases.
func overlapsInstalled(candidate []string, installed []map[string]bool) bool {
	if len(candidate) == 0 || len(installed) == 0 {
		return false
	}
	candidateSet := tokenSet(candidate)
	for _, other := range installed {
		if jaccard(candidateSet, other) >= jaccardThreshold {
			return true
		}
	}
	return false
}

func tokenSet(phrases []string) map[string]bool {
	set := make(map[string]bool)
	for _, p := range phrases {
		set[strings.ToLower(strings.TrimSpace(p))] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

// stackKeywordBonus awards stackBonus per distinct stack token (framework,
// language, or dependency) found in the skill's name, description, or
// tags, capped at maxStackBonus.
func stackKeywordBonus(sk *skill.Skill, stack skill.Stack) float64 {
	haystack := strings.ToLower(sk.Name + " " + sk.Description + " " + strings.Join(sk.Tags, " "))
	tokens := append(append(append([]string{}, stack.Frameworks...), stack.Languages...), stack.Dependencies...)

	matched := 0
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		if strings.Contains(haystack, tok) {
			matched++
		}
	}
	bonus := float64(matched) * stackBonus
	if bonus > maxStackBonus {
		bonus = maxStackBonus
	}
	return bonus
}

func scoreLabel(score int) string {
	switch {
	case score >= 80:
		return "excellent"
	case score >= 60:
		return "good"
	case score >= 40:
		return "fair"
	default:
		return "low"
	}
}
