package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smith-horn/skillsmith/internal/skill"
)

var removeCmd = &cobra.Command{
	Use:   "remove <skill_id>",
	Short: "Remove a skill from the catalog",
	Args:  cobra.ArbitraryArgs,
	RunE:  runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return skill.NewError(skill.KindInvalidInput, "remove requires exactly one skill id")
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

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := cat.DeleteSkill(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", args[0])
	return nil
}
