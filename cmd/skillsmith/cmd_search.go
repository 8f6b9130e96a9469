package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smith-horn/skillsmith/internal/skill"
)

var (
	searchCategory string
	searchTier     string
	searchMinScore int
	searchMaxRisk  float64
	searchSafeOnly bool
	searchIDEs     []string
	searchLLMs     []string
	searchLimit    int
	searchOffset   int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Hybrid lexical+vector search over the skill catalog",
	Long: `Searches the catalog by free text, filters, or both.

A filter-only search (no positional query) is valid as long as at least one
of --tier, --category, --min-score, --max-risk, --safe-only, --ide, or --llm
is set.`,
	Args: cobra.ArbitraryArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "filter by category")
	searchCmd.Flags().StringVar(&searchTier, "tier", "", "filter by trust tier (verified|curated|community|experimental|unknown|local)")
	searchCmd.Flags().IntVar(&searchMinScore, "min-score", 0, "minimum quality score (0-100)")
	searchCmd.Flags().Float64Var(&searchMaxRisk, "max-risk", 0, "maximum scanner risk score")
	searchCmd.Flags().BoolVar(&searchSafeOnly, "safe-only", false, "exclude anything not scan-safe")
	searchCmd.Flags().StringArrayVar(&searchIDEs, "ide", nil, "required IDE compatibility (repeatable)")
	searchCmd.Flags().StringArrayVar(&searchLLMs, "llm", nil, "required LLM compatibility (repeatable)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", -1, "max results, 0 for none (default: config search.default_limit)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "result offset for pagination")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	ov := buildOverlay(cfg)
	defer stopOverlay(ov)

	embedder := buildEmbedder(cfg, logger)
	auditLog, err := openAuditLog(cfg, logger)
	if err != nil {
		return err
	}

	engine := buildSearchEngine(cat, ov, embedder, auditLog, cfg)

	q := skill.Query{
		Text: strings.TrimSpace(strings.Join(args, " ")),
		Filters: skill.Filters{
			Category:  searchCategory,
			TrustTier: skill.TrustTier(searchTier),
			MinScore:  searchMinScore,
			MaxRisk:   searchMaxRisk,
			SafeOnly:  searchSafeOnly,
			Compatibility: skill.Compatibility{
				IDEs: searchIDEs,
				LLMs: searchLLMs,
			},
		},
		Limit:  searchLimit,
		Offset: searchOffset,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := engine.Search(ctx, q, "cli")
	if err != nil {
		return err
	}
	return renderSearchResponse(resp)
}
