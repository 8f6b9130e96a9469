package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/smith-horn/skillsmith/internal/fetch"
	"github.com/smith-horn/skillsmith/internal/ingest"
	"github.com/smith-horn/skillsmith/internal/skill"
	"github.com/smith-horn/skillsmith/internal/validator"
)

var publishAuthor string

var publishCmd = &cobra.Command{
	Use:   "publish <path>",
	Short: "Validate, scan, score, and catalog a local skill document",
	Long: `Runs a local SKILL.md (or a directory containing one) through the
same validate -> scan -> score/quarantine -> catalog sequence a synced
upstream candidate goes through, so a locally authored skill becomes a
first-class, scanned catalog entry rather than only a local-overlay result.`,
	Args: cobra.ArbitraryArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishAuthor, "author", "", "skill author/owner (falls back to frontmatter 'author')")
}

func runPublish(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return skill.NewError(skill.KindInvalidInput, "publish requires exactly one path")
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

	content, sourcePath, err := readSkillFile(args[0])
	if err != nil {
		return fmt.Errorf("read skill document: %w", err)
	}

	opts := validatorOptions(cfg, false)
	pre, err := validator.Validate(content, opts)
	if err != nil {
		return fmt.Errorf("publish: document fails validation: %w", err)
	}

	author := publishAuthor
	if author == "" {
		author = pre.Author
	}
	if author == "" || pre.Name == "" {
		return skill.NewError(skill.KindInvalidInput, "publish requires an author (--author or frontmatter 'author') and a frontmatter 'name'")
	}
	skillID := author + "/" + pre.Name

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

	auditLog, err := openAuditLog(cfg, logger)
	if err != nil {
		return err
	}
	embedder := buildEmbedder(cfg, logger)

	fetcher := localFileFetcher{
		content: content,
		meta: fetch.DocumentMetadata{
			UpstreamRevision: "local",
			Repository:       skillID,
			Path:             sourcePath,
		},
	}
	pipeline := buildIngestPipeline(fetcher, cat, q, auditLog, embedder, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result := pipeline.IngestOne(ctx, fetch.Candidate{RepoID: skillID, Path: sourcePath})
	if result.Err != nil {
		return fmt.Errorf("publish %s: %w", skillID, result.Err)
	}

	if jsonOutput {
		return printJSON(result)
	}
	fmt.Printf("%s: %s\n", skillID, result.Outcome)
	if result.Outcome == ingest.OutcomeQuarantined {
		return skill.NewError(skill.KindQuarantined, "publish: "+skillID+" was quarantined by the scanner", "skill_id", skillID)
	}
	return nil
}

// localFileFetcher adapts already-read local file content to the
// ingest.Fetcher interface, so publish can reuse the exact same
// validate->scan->score->upsert sequence a synced candidate goes through.
type localFileFetcher struct {
	content []byte
	meta    fetch.DocumentMetadata
}

func (f localFileFetcher) FetchDocument(ctx context.Context, repoID, path, revision string) ([]byte, fetch.DocumentMetadata, error) {
	return f.content, f.meta, nil
}

// readSkillFile resolves path to a skill document's bytes: path itself if
// it's a file, or <path>/SKILL.md if path is a directory (the local-overlay
// convention).
func readSkillFile(path string) ([]byte, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if info.IsDir() {
		path = filepath.Join(path, "SKILL.md")
	}
	content, err := os.ReadFile(path)
	return content, path, err
}
