package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/smith-horn/skillsmith/internal/skill"
)

var (
	listCategory string
	listTier     string
	listMinScore int
	listMaxRisk  float64
	listSafeOnly bool
	listLimit    int
	listOffset   int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Browse the catalog (no ranking, filters only)",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listCategory, "category", "", "filter by category")
	listCmd.Flags().StringVar(&listTier, "tier", "", "filter by trust tier")
	listCmd.Flags().IntVar(&listMinScore, "min-score", 0, "minimum quality score")
	listCmd.Flags().Float64Var(&listMaxRisk, "max-risk", 0, "maximum scanner risk score")
	listCmd.Flags().BoolVar(&listSafeOnly, "safe-only", false, "exclude anything not scan-safe")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "max rows")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "row offset")
}

func runList(cmd *cobra.Command, args []string) error {
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

	filters := skill.Filters{
		Category:  listCategory,
		TrustTier: skill.TrustTier(listTier),
		MinScore:  listMinScore,
		MaxRisk:   listMaxRisk,
		SafeOnly:  listSafeOnly,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	skills, err := cat.FilterBrowse(ctx, filters, listLimit, listOffset)
	if err != nil {
		return skill.NewError(skill.KindStorage, "list: "+err.Error())
	}
	return renderSkillList(skills)
}
