package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/smith-horn/skillsmith/internal/skill"
)

var compareCmd = &cobra.Command{
	Use:   "compare <skill_a> <skill_b>",
	Short: "Compare two catalog skills and pick a winner",
	Args:  cobra.ArbitraryArgs,
	RunE:  runCompare,
}

func runCompare(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return skill.NewError(skill.KindInvalidInput, "compare requires exactly two skill ids")
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := engine.Compare(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return renderCompareResult(res)
}
