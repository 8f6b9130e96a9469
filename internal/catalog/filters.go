package catalog

import (
	"context"
	"strings"

	"github.com/smith-horn/skillsmith/internal/skill"
)

// buildFilterWhere translates skill.Filters into a SQL WHERE fragment (no
// leading "AND"/"WHERE") plus its bind args. Compatibility filtering is
// intentionally left to the Go-side matchesCompatibility pass since it needs
// set-intersection semantics over a JSON column.
func buildFilterWhere(f skill.Filters) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.Category != "" {
		clauses = append(clauses, "LOWER(category) = LOWER(?)")
		args = append(args, f.Category)
	}
	if f.TrustTier != "" {
		clauses = append(clauses, "trust_tier = ?")
		args = append(args, string(f.TrustTier))
	}
	if f.MinScore > 0 {
		clauses = append(clauses, "quality_score >= ?")
		args = append(args, f.MinScore)
	}
	if f.MaxRisk > 0 {
		clauses = append(clauses, "risk_score <= ?")
		args = append(args, f.MaxRisk)
	}
	if f.SafeOnly {
		clauses = append(clauses, "scan_status = 'safe'")
	}

	return strings.Join(clauses, " AND "), args
}

func matchesCompatibility(sk *skill.Skill, want skill.Compatibility) bool {
	return sk.Compatibility.Intersects(want)
}

// FilterBrowse lists skills matching filters, ordered by composite quality
// score descending (ties broken by skill id), paginated.
func (s *Store) FilterBrowse(ctx context.Context, filters skill.Filters, limit, offset int) ([]*skill.Skill, error) {
	where, args := buildFilterWhere(filters)
	q := skillsSelectColumns + ` FROM skills WHERE archived = 0 AND scan_status != 'quarantine'`
	if where != "" {
		q += " AND " + where
	}
	q += " ORDER BY quality_score DESC, skill_id ASC"

	rows, err := s.read.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "filter browse: "+err.Error())
	}
	defer rows.Close()

	var out []*skill.Skill
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		if !matchesCompatibility(sk, filters.Compatibility) {
			continue
		}
		out = append(out, sk)
	}
	return paginateSkills(out, limit, offset), nil
}

func paginateSkills(items []*skill.Skill, limit, offset int) []*skill.Skill {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
