package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/smith-horn/skillsmith/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the catalog base directory and config file",
	Long: `Creates the persisted-state directory layout (catalog/, quarantine/,
audit/, sync/ under the catalog base directory), writes a default
config.yaml if one doesn't already exist, and materializes the catalog
database so it's ready for a first sync.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if catalogDir != "" {
		cfg.CatalogDir = catalogDir
	}

	path := configPath
	if path == "" {
		path = filepath.Join(cfg.CatalogDir, "config.yaml")
	}

	for _, dir := range []string{
		cfg.CatalogDir,
		filepath.Dir(cfg.CatalogPath("v1")),
		filepath.Dir(cfg.QuarantinePath()),
		filepath.Dir(cfg.AuditPath()),
		filepath.Dir(cfg.SyncStatePath()),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) || initForce {
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("wrote %s\n", path)
	} else {
		fmt.Printf("config already exists at %s (use --force to overwrite)\n", path)
	}

	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	q, err := openQuarantineStore(cfg)
	if err != nil {
		return err
	}
	defer q.Close()

	fmt.Printf("catalog ready at %s\n", cfg.CatalogDir)
	return nil
}
