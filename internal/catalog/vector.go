package catalog

import (
	"context"

	"github.com/smith-horn/skillsmith/internal/embedding"
	"github.com/smith-horn/skillsmith/internal/skill"
)

// VectorSearch returns the k nearest skills to queryVector by cosine
// similarity, restricted to skills matching filters. It first tries the
// SQL-side vec_distance_cosine function (available when built with the
// sqlite_vec cgo extension, see init_vec.go); on any failure — most commonly
// "no such function" in a build without that extension — it falls back to
// brute-force Go cosine ranking via internal/embedding, which always works.
func (s *Store) VectorSearch(ctx context.Context, queryVector []float32, filters skill.Filters, k int) ([]RankedResult, error) {
	where, args := buildFilterWhere(filters)
	eligible, err := s.eligibleSkillIDs(ctx, where, args)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	if results, err := s.vectorSearchSQL(ctx, queryVector, eligible, k); err == nil {
		return s.hydrateAndFilterCompat(ctx, results, filters)
	}

	results, err := s.vectorSearchGo(ctx, queryVector, eligible, k)
	if err != nil {
		return nil, err
	}
	return s.hydrateAndFilterCompat(ctx, results, filters)
}

func (s *Store) vectorSearchSQL(ctx context.Context, query []float32, eligible map[string]bool, k int) ([]RankedResult, error) {
	blob := encodeVector(query)
	rows, err := s.read.QueryContext(ctx, `
		SELECT skill_id, vec_distance_cosine(vector, ?) AS dist FROM embeddings
		WHERE dim = ? ORDER BY dist ASC LIMIT ?
	`, blob, len(query), k*4)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RankedResult
	for rows.Next() {
		var skillID string
		var dist float64
		if err := rows.Scan(&skillID, &dist); err != nil {
			return nil, err
		}
		if !eligible[skillID] {
			continue
		}
		out = append(out, RankedResult{Skill: &skill.Skill{Author: idAuthor(skillID), Name: idName(skillID)}, Score: 1 - dist})
		if len(out) >= k {
			break
		}
	}
	if len(out) == 0 {
		return nil, errNoSQLVectorSupport
	}
	return out, nil
}

var errNoSQLVectorSupport = skill.NewError(skill.KindStorage, "sql-side vector search unavailable")

func (s *Store) vectorSearchGo(ctx context.Context, query []float32, eligible map[string]bool, k int) ([]RankedResult, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT skill_id, vector FROM embeddings WHERE dim = ?`, len(query))
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "load embeddings: "+err.Error())
	}
	defer rows.Close()

	var ids []string
	var corpus [][]float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, skill.NewError(skill.KindStorage, "scan embedding: "+err.Error())
		}
		if !eligible[id] {
			continue
		}
		ids = append(ids, id)
		corpus = append(corpus, decodeVector(blob))
	}
	if len(corpus) == 0 {
		return nil, nil
	}

	top, err := embedding.FindTopK(query, corpus, k)
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "vector search: "+err.Error())
	}

	out := make([]RankedResult, 0, len(top))
	for _, t := range top {
		id := ids[t.Index]
		out = append(out, RankedResult{Skill: &skill.Skill{Author: idAuthor(id), Name: idName(id)}, Score: t.Similarity})
	}
	return out, nil
}

func (s *Store) hydrateAndFilterCompat(ctx context.Context, results []RankedResult, filters skill.Filters) ([]RankedResult, error) {
	out := make([]RankedResult, 0, len(results))
	for i, r := range results {
		full, err := s.GetSkill(ctx, r.Skill.ID())
		if err != nil {
			continue
		}
		if !matchesCompatibility(full, filters.Compatibility) {
			continue
		}
		r.Skill = full
		r.Rank = i + 1
		out = append(out, r)
	}
	return out, nil
}
