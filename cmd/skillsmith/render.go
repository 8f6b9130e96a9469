package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/smith-horn/skillsmith/internal/recommend"
	"github.com/smith-horn/skillsmith/internal/search"
	"github.com/smith-horn/skillsmith/internal/skill"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	tierColor   = map[skill.TrustTier]lipgloss.Color{
		skill.TierVerified:     lipgloss.Color("#8BC34A"),
		skill.TierCurated:      lipgloss.Color("#4db6ac"),
		skill.TierCommunity:    lipgloss.Color("#2196F3"),
		skill.TierExperimental: lipgloss.Color("#FFC107"),
		skill.TierUnknown:      lipgloss.Color("#e53935"),
		skill.TierLocal:        lipgloss.Color("#101F38"),
	}
)

func renderTier(t skill.TrustTier) string {
	c, ok := tierColor[t]
	if !ok {
		c = lipgloss.Color("#e53935")
	}
	return lipgloss.NewStyle().Foreground(c).Render(string(t))
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderSearchResponse(resp *search.Response) error {
	if jsonOutput {
		return printJSON(resp)
	}
	if len(resp.Results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%-28s %-10s %6s %-8s  %s", "SKILL ID", "TIER", "SCORE", "SOURCE", "DESCRIPTION")))
	for _, r := range resp.Results {
		fmt.Printf("%-28s %-19s %6.1f %-8s  %s\n", r.SkillID, renderTier(r.TrustTier), r.Score, r.Source, truncate(r.Description, 60))
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("%d of %d results in %s", len(resp.Results), resp.Total, resp.Timing)))
	if resp.Degraded {
		fmt.Println(dimStyle.Render("(degraded: vector search unavailable, lexical-only results)"))
	}
	return nil
}

func renderRecommendResponse(resp *recommend.Response) error {
	if jsonOutput {
		return printJSON(resp)
	}
	if len(resp.Recommendations) == 0 {
		fmt.Println("No recommendations.")
		return nil
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%-28s %6s  %s", "SKILL ID", "SCORE", "REASON")))
	for _, r := range resp.Recommendations {
		fmt.Printf("%-28s %6d  %s\n", r.SkillID, r.QualityScore, r.Reason)
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("considered %d, overlap-filtered %d, role-filtered %d, in %s",
		resp.CandidatesConsidered, resp.OverlapFiltered, resp.RoleFiltered, resp.Timing)))
	return nil
}

func renderCompareResult(res *search.CompareResult) error {
	if jsonOutput {
		return printJSON(res)
	}
	fmt.Printf("%s  vs  %s\n", res.A.ID(), res.B.ID())
	fmt.Println(headerStyle.Render("DIFFERENCES"))
	if len(res.Differences) == 0 {
		fmt.Println("  (none)")
	}
	for _, d := range res.Differences {
		fmt.Printf("  - %s\n", d)
	}
	fmt.Printf("Winner: %s\n", res.Winner)
	fmt.Println(res.Recommendation)
	return nil
}

func renderSkillList(skills []*skill.Skill) error {
	if jsonOutput {
		return printJSON(skills)
	}
	if len(skills) == 0 {
		fmt.Println("No skills.")
		return nil
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%-28s %-19s %6s  %s", "SKILL ID", "TIER", "SCORE", "SCAN STATUS")))
	for _, s := range skills {
		fmt.Printf("%-28s %-19s %6d  %s\n", s.ID(), renderTier(s.TrustTier), s.QualityScore, s.ScanStatus)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
