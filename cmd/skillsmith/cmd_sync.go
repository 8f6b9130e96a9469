package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smith-horn/skillsmith/internal/fetch"
	syncer "github.com/smith-horn/skillsmith/internal/sync"
)

var (
	syncForce      bool
	syncDryRun     bool
	syncTopics     []string
	syncFilePattern string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the catalog from upstream",
	Long: `Runs a differential sync by default, resuming from the last
persisted cursor. --force restarts a full sweep from the beginning.
--dry-run only counts upstream candidates without fetching, scanning, or
writing anything to the catalog.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "run a full sync instead of differential")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "count upstream candidates without ingesting")
	syncCmd.Flags().StringArrayVar(&syncTopics, "topic", nil, "candidate search topic (default: config scoring.recognized_topics)")
	syncCmd.Flags().StringVar(&syncFilePattern, "filename-pattern", "SKILL.md", "candidate filename to search for")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	topics := syncTopics
	if len(topics) == 0 {
		topics = cfg.Scoring.RecognizedTopics
	}
	filters := fetch.SearchFilters{Topics: topics, FilenamePattern: syncFilePattern}
	fetchClient := buildFetchClient(cfg)

	if syncDryRun {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		total, err := countCandidates(ctx, fetchClient, filters)
		if err != nil {
			return err
		}
		fmt.Printf("dry run: %d candidates found upstream (mode=%s), nothing ingested\n", total, syncMode())
		return nil
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

	auditLog, err := openAuditLog(cfg, logger)
	if err != nil {
		return err
	}
	embedder := buildEmbedder(cfg, logger)

	pipeline := buildIngestPipeline(fetchClient, cat, q, auditLog, embedder, cfg)
	scheduler, err := buildScheduler(cfg, schedulerSource{fetchClient, filters}, pipeline)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var (
		result syncer.Result
		syncErr error
	)
	if syncForce {
		result, syncErr = scheduler.FullSync(ctx)
	} else {
		result, syncErr = scheduler.DifferentialSync(ctx)
	}
	if syncErr != nil {
		return syncErr
	}

	if jsonOutput {
		return printJSON(result)
	}
	fmt.Printf("%s sync: added=%d updated=%d unchanged=%d errors=%d duration=%dms\n",
		result.Mode, result.Added, result.Updated, result.Unchanged, result.Errors, result.DurationMS)
	return nil
}

func syncMode() string {
	if syncForce {
		return "full"
	}
	return "differential"
}

// schedulerSource adapts a *fetch.Client plus a fixed filter set to the
// syncer.CandidateSource interface (the scheduler owns the cursor, the
// filters are fixed per invocation).
type schedulerSource struct {
	client  *fetch.Client
	filters fetch.SearchFilters
}

func (s schedulerSource) SearchCandidates(ctx context.Context, _ fetch.SearchFilters, cursor fetch.Cursor) (fetch.SearchPage, error) {
	return s.client.SearchCandidates(ctx, s.filters, cursor)
}

func countCandidates(ctx context.Context, client *fetch.Client, filters fetch.SearchFilters) (int, error) {
	total := 0
	cursor := fetch.Cursor{}
	for {
		page, err := client.SearchCandidates(ctx, filters, cursor)
		if err != nil {
			return total, err
		}
		total += len(page.Candidates)
		if page.Done {
			return total, nil
		}
		cursor = page.NextCursor
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
