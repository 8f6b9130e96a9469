package catalog

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/smith-horn/skillsmith/internal/skill"
)

// fieldWeight mirrors the spec's "name weight A, description weight B,
// author weight C" ordering (A > B > C).
var fieldWeight = map[string]float64{
	fieldName:        3.0,
	fieldDescription: 1.5,
	fieldAuthor:      1.0,
}

const bm25K1 = 1.2
const bm25B = 0.75

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func tokenPostings(text string) (map[string]int, int) {
	tokens := tokenize(text)
	postings := make(map[string]int, len(tokens))
	for _, t := range tokens {
		postings[t]++
	}
	return postings, len(tokens)
}

// RankedResult is one lexical or vector hit with its field rank and the
// underlying skill.
type RankedResult struct {
	Skill *skill.Skill
	Score float64
	Rank  int // 1-based rank within this ranking, used for RRF fusion
}

// LexicalSearch runs weighted BM25 ranking across the name/description/author
// fields, restricted to skills matching filters and never including
// quarantined or archived skills.
func (s *Store) LexicalSearch(ctx context.Context, query string, filters skill.Filters, limit, offset int) ([]RankedResult, error) {
	terms := uniqueTerms(tokenize(query))
	if len(terms) == 0 {
		return nil, nil
	}

	where, args := buildFilterWhere(filters)
	eligible, err := s.eligibleSkillIDs(ctx, where, args)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	docLens := make(map[string]map[string]int) // skill_id -> field -> doc_len
	tfs := make(map[string]map[string]map[string]int) // field -> term -> skill_id -> tf
	dfs := make(map[string]map[string]int)            // field -> term -> df (corpus-wide)
	sumLen := make(map[string]int)
	nDocs := make(map[string]int)

	for field := range fieldWeight {
		tfs[field] = make(map[string]map[string]int)
		dfs[field] = make(map[string]int)
		for _, term := range terms {
			tfs[field][term] = make(map[string]int)
		}

		placeholders := strings.Repeat("?,", len(terms))
		placeholders = placeholders[:len(placeholders)-1]
		qargs := make([]interface{}, 0, len(terms)+1)
		qargs = append(qargs, field)
		for _, t := range terms {
			qargs = append(qargs, t)
		}
		rows, err := s.read.QueryContext(ctx, `
			SELECT skill_id, term, tf, doc_len FROM lexical_postings
			WHERE field = ? AND term IN (`+placeholders+`)
		`, qargs...)
		if err != nil {
			return nil, skill.NewError(skill.KindStorage, "lexical query: "+err.Error())
		}
		seenDocForTerm := make(map[string]map[string]bool)
		for rows.Next() {
			var skillID, term string
			var tf, docLen int
			if err := rows.Scan(&skillID, &term, &tf, &docLen); err != nil {
				rows.Close()
				return nil, skill.NewError(skill.KindStorage, "scan posting: "+err.Error())
			}
			if seenDocForTerm[term] == nil {
				seenDocForTerm[term] = make(map[string]bool)
			}
			if !seenDocForTerm[term][skillID] {
				seenDocForTerm[term][skillID] = true
				dfs[field][term]++
			}
			if !eligible[skillID] {
				continue
			}
			tfs[field][term][skillID] = tf
			if docLens[skillID] == nil {
				docLens[skillID] = make(map[string]int)
			}
			docLens[skillID][field] = docLen
		}
		rows.Close()

		sumLen[field], nDocs[field] = s.fieldCorpusStats(ctx, field)
	}

	scores := make(map[string]float64)
	for field, weight := range fieldWeight {
		n := nDocs[field]
		if n == 0 {
			continue
		}
		avgdl := float64(sumLen[field]) / float64(n)
		if avgdl == 0 {
			avgdl = 1
		}
		for _, term := range terms {
			df := dfs[field][term]
			if df == 0 {
				continue
			}
			idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
			for skillID, tf := range tfs[field][term] {
				dl := float64(docLens[skillID][field])
				denom := float64(tf) + bm25K1*(1-bm25B+bm25B*dl/avgdl)
				if denom == 0 {
					continue
				}
				scores[skillID] += weight * idf * (float64(tf) * (bm25K1 + 1)) / denom
			}
		}
	}

	ranked := make([]RankedResult, 0, len(scores))
	for id, sc := range scores {
		ranked = append(ranked, RankedResult{Score: sc, Skill: &skill.Skill{Author: idAuthor(id), Name: idName(id)}})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Skill.ID() < ranked[j].Skill.ID()
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	ranked = paginate(ranked, limit, offset)

	for i, r := range ranked {
		full, err := s.GetSkill(ctx, r.Skill.ID())
		if err != nil {
			continue
		}
		ranked[i].Skill = full
	}
	return ranked, nil
}

func (s *Store) fieldCorpusStats(ctx context.Context, field string) (sumLen int, nDocs int) {
	row := s.read.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(doc_len), 0), COUNT(*) FROM (
			SELECT DISTINCT skill_id, doc_len FROM lexical_postings WHERE field = ?
		)
	`, field)
	_ = row.Scan(&sumLen, &nDocs)
	return
}

func (s *Store) eligibleSkillIDs(ctx context.Context, where string, args []interface{}) (map[string]bool, error) {
	q := `SELECT skill_id FROM skills WHERE archived = 0 AND scan_status != 'quarantine'`
	if where != "" {
		q += " AND " + where
	}
	rows, err := s.read.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "eligible ids: "+err.Error())
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, skill.NewError(skill.KindStorage, "scan eligible id: "+err.Error())
		}
		out[id] = true
	}
	return out, nil
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func paginate(items []RankedResult, limit, offset int) []RankedResult {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func idAuthor(id string) string {
	parts := strings.SplitN(id, "/", 2)
	if len(parts) == 2 {
		return parts[0]
	}
	return id
}

func idName(id string) string {
	parts := strings.SplitN(id, "/", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}
