package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/smith-horn/skillsmith/internal/skill"
)

var (
	recommendRole         string
	recommendDescription  string
	recommendFrameworks   []string
	recommendLanguages    []string
	recommendDependencies []string
	recommendInstalled    []string
	recommendLimit        int
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend skills for a project context",
	Long: `Scores candidate skills against a declared project context (role,
stack, description, already-installed skills) and returns a bounded,
ranked list.`,
	Args: cobra.NoArgs,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringVar(&recommendRole, "role", "", "caller's agent role, e.g. backend, reviewer")
	recommendCmd.Flags().StringVar(&recommendDescription, "description", "", "free-text project description")
	recommendCmd.Flags().StringArrayVar(&recommendFrameworks, "framework", nil, "declared framework (repeatable)")
	recommendCmd.Flags().StringArrayVar(&recommendLanguages, "language", nil, "declared language (repeatable)")
	recommendCmd.Flags().StringArrayVar(&recommendDependencies, "dependency", nil, "declared dependency (repeatable)")
	recommendCmd.Flags().StringArrayVar(&recommendInstalled, "installed", nil, "already-installed skill id (repeatable)")
	recommendCmd.Flags().IntVar(&recommendLimit, "limit", 0, "max recommendations (default 5, max 20)")
}

func runRecommend(cmd *cobra.Command, args []string) error {
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
	searchEngine := buildSearchEngine(cat, ov, embedder, auditLog, cfg)
	recommendEngine := buildRecommendEngine(cat, ov, searchEngine, cfg)

	installed := make(map[string]bool, len(recommendInstalled))
	for _, id := range recommendInstalled {
		installed[id] = true
	}

	rctx := skill.RecommendationContext{
		ProjectDescription: recommendDescription,
		InstalledSkills:    installed,
		Role:               recommendRole,
		Stack: skill.Stack{
			Frameworks:   recommendFrameworks,
			Languages:    recommendLanguages,
			Dependencies: recommendDependencies,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := recommendEngine.Recommend(ctx, rctx, recommendLimit)
	if err != nil {
		return err
	}
	return renderRecommendResponse(resp)
}
