package search

import (
	"sort"
	"strings"

	"github.com/smith-horn/skillsmith/internal/catalog"
	"github.com/smith-horn/skillsmith/internal/skill"
)

type fusedItem struct {
	skill *skill.Skill
	score float64
}

// reciprocalRankFusion merges lexical and vector rankings:
// combined_rank(item) = 1/(k+lex_rank) + alpha * 1/(k+vec_rank).
// An item missing from one leg simply contributes 0 for that leg. Ties are
// broken by composite quality score, then by skill id.
func reciprocalRankFusion(lex, vec []catalog.RankedResult, k int, alpha float64) []fusedItem {
	scores := make(map[string]float64)
	skills := make(map[string]*skill.Skill)

	for _, r := range lex {
		id := r.Skill.ID()
		scores[id] += 1.0 / float64(k+r.Rank)
		skills[id] = r.Skill
	}
	for _, r := range vec {
		id := r.Skill.ID()
		scores[id] += alpha * 1.0/float64(k+r.Rank)
		if skills[id] == nil {
			skills[id] = r.Skill
		}
	}

	out := make([]fusedItem, 0, len(scores))
	for id, sc := range scores {
		out = append(out, fusedItem{skill: skills[id], score: sc})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].skill.QualityScore != out[j].skill.QualityScore {
			return out[i].skill.QualityScore > out[j].skill.QualityScore
		}
		return out[i].skill.ID() < out[j].skill.ID()
	})
	return out
}

// mergeLocal appends local-overlay skills matching filters that don't
// collide with a registry result on (author, name) or skill_id; the
// registry item always wins a collision.
func mergeLocal(registry []skill.SearchResult, local []skill.Skill, filters skill.Filters) []skill.SearchResult {
	seen := make(map[string]bool, len(registry))
	for _, r := range registry {
		seen[strings.ToLower(r.SkillID)] = true
		seen[strings.ToLower(r.Author+"/"+r.Name)] = true
	}

	out := append([]skill.SearchResult{}, registry...)
	for _, sk := range local {
		id := strings.ToLower(sk.ID())
		if seen[id] {
			continue
		}
		if !localMatchesFilters(sk, filters) {
			continue
		}
		out = append(out, skill.SearchResult{
			SkillID:       sk.ID(),
			Name:          sk.Name,
			Description:   sk.Description,
			Author:        sk.Author,
			TrustTier:     skill.TierLocal,
			Score:         float64(sk.QualityScore),
			Source:        skill.SourceLocal,
			Compatibility: sk.Compatibility,
		})
	}
	return out
}

func localMatchesFilters(sk skill.Skill, f skill.Filters) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, sk.Category) {
		return false
	}
	if f.TrustTier != "" && f.TrustTier != skill.TierLocal {
		return false
	}
	if f.MinScore > 0 && sk.QualityScore < f.MinScore {
		return false
	}
	if f.MaxRisk > 0 && sk.RiskScore > f.MaxRisk {
		return false
	}
	if !sk.Compatibility.Intersects(f.Compatibility) {
		return false
	}
	return true
}
