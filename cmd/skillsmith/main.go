// Package main implements the skillsmith CLI - registry discovery,
// validation, and sync for agent skill documents.
//
// This file is the entry point and command registration hub. Command
// implementations live in the cmd_*.go files; app.go builds the shared
// dependencies (catalog, quarantine, audit, search, recommend, sync,
// ingest) each command opens on demand.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smith-horn/skillsmith/internal/skill"
)

var (
	verbose    bool
	configPath string
	catalogDir string
	jsonOutput bool
	timeout    time.Duration
)

// Exit codes per the CLI surface: 0 success, 1 generic error, 2 invalid
// args, 3 quarantined, 4 upstream unavailable.
const (
	exitOK                  = 0
	exitGeneric             = 1
	exitInvalidArgs         = 2
	exitQuarantined         = 3
	exitUpstreamUnavailable = 4
)

var rootCmd = &cobra.Command{
	Use:   "skillsmith",
	Short: "skillsmith - discover, validate, and sync agent skill documents",
	Long: `skillsmith indexes agent "skill" documents (Markdown with YAML
frontmatter) published across public repositories: it fetches and scans
candidates, scores and trust-tiers them, and serves hybrid search,
contextual recommendation, and comparison over the resulting catalog.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: <catalog-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&catalogDir, "catalog-dir", "", "override the catalog base directory (or set CATALOG_DIR)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of tables")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "operation timeout")

	rootCmd.AddCommand(
		searchCmd,
		recommendCmd,
		validateCmd,
		compareCmd,
		syncCmd,
		listCmd,
		removeCmd,
		initCmd,
		publishCmd,
	)
}

// exitCodeFor maps a structured skill.Error's kind to the CLI's exit code
// taxonomy; anything else (I/O errors, cobra argument errors) is generic.
func exitCodeFor(err error) int {
	var serr *skill.Error
	if !errors.As(err, &serr) {
		return exitGeneric
	}
	switch serr.Kind {
	case skill.KindEmptyQuery, skill.KindInvalidFilter, skill.KindInvalidInput, skill.KindIdenticalIDs:
		return exitInvalidArgs
	case skill.KindQuarantined:
		return exitQuarantined
	case skill.KindUpstreamUnavailable, skill.KindRateLimited, skill.KindBlockedHost:
		return exitUpstreamUnavailable
	default:
		return exitGeneric
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorHint(err))
		os.Exit(exitCodeFor(err))
	}
}
