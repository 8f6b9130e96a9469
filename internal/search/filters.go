package search

import (
	"github.com/smith-horn/skillsmith/internal/skill"
)

func validateFilters(f skill.Filters) error {
	if f.MinScore < 0 || f.MinScore > 100 {
		return skill.NewError(skill.KindInvalidFilter, "min_score must be within [0,100]")
	}
	if f.MaxRisk < 0 || f.MaxRisk > 100 {
		return skill.NewError(skill.KindInvalidFilter, "max_risk must be within [0,100]")
	}
	if f.TrustTier != "" && !f.TrustTier.Valid() {
		return skill.NewError(skill.KindInvalidFilter, "trust_tier must be a known tier")
	}
	return nil
}
