package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/smith-horn/skillsmith/internal/audit"
	"github.com/smith-horn/skillsmith/internal/catalog"
	"github.com/smith-horn/skillsmith/internal/config"
	"github.com/smith-horn/skillsmith/internal/embedding"
	"github.com/smith-horn/skillsmith/internal/fetch"
	"github.com/smith-horn/skillsmith/internal/ingest"
	"github.com/smith-horn/skillsmith/internal/localoverlay"
	"github.com/smith-horn/skillsmith/internal/logging"
	"github.com/smith-horn/skillsmith/internal/quarantine"
	"github.com/smith-horn/skillsmith/internal/recommend"
	"github.com/smith-horn/skillsmith/internal/scanner"
	"github.com/smith-horn/skillsmith/internal/search"
	"github.com/smith-horn/skillsmith/internal/skill"
	syncer "github.com/smith-horn/skillsmith/internal/sync"
	"github.com/smith-horn/skillsmith/internal/validator"
)

// loadAppConfig builds the process-wide config snapshot: defaults, then the
// config file (explicit --config, else <catalog-dir>/config.yaml), then
// environment overrides, then the --catalog-dir flag, which wins over both.
func loadAppConfig() (*config.Config, error) {
	path := configPath
	probe := config.DefaultConfig()
	if catalogDir != "" {
		probe.CatalogDir = catalogDir
	}
	if path == "" {
		path = probe.CatalogDir + "/config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if catalogDir != "" {
		cfg.CatalogDir = catalogDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildLogger constructs the application logger and registers it with the
// package-level categorized loggers every internal component calls through
// logging.Get.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON, Verbose: verbose})
	if err != nil {
		return nil, err
	}
	logging.Init(logger)
	return logger, nil
}

func openCatalog(cfg *config.Config) (*catalog.Store, error) {
	path := cfg.CatalogPath("v1")
	store, err := catalog.Open(path)
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "open catalog: "+err.Error())
	}
	return store, nil
}

func openQuarantineStore(cfg *config.Config) (*quarantine.Store, error) {
	store, err := quarantine.Open(cfg.QuarantinePath())
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "open quarantine store: "+err.Error())
	}
	return store, nil
}

func openAuditLog(cfg *config.Config, logger *zap.Logger) (*audit.Log, error) {
	al, err := audit.Open(cfg.AuditPath(), logger)
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "open audit log: "+err.Error())
	}
	return al, nil
}

// buildEmbedder constructs the configured embedding backend. A construction
// failure (e.g. an unknown provider, or genai without an API key) is not
// fatal to the CLI: callers get a nil engine and fall back to lexical-only
// search, matching search.Engine's own "nil Embedder disables the vector
// leg" contract. The Ollama server is not contacted here, so an unreachable
// server surfaces later as an Embed error and a degraded search.
func buildEmbedder(cfg *config.Config, logger *zap.Logger) embedding.EmbeddingEngine {
	eng, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		Dimensions:     cfg.Embedding.Dimensions,
	})
	if err != nil {
		logger.Sugar().Warnw("embedding engine unavailable, continuing without vector search", "error", err)
		return nil
	}
	return eng
}

func validatorOptions(cfg *config.Config, strictOverride bool) validator.Options {
	return validator.Options{
		MinContentLength: cfg.Validation.MinContentLength,
		Strict:           cfg.Validation.Strict || strictOverride,
	}
}

// buildOverlay constructs the local skill overlay and starts its watch loop
// unless local-overlay merging is disabled or no path is configured. The
// caller must call Stop() (a nil-safe no-op when overlay is nil) when done.
func buildOverlay(cfg *config.Config) *localoverlay.Overlay {
	if !cfg.Search.EnableLocal || cfg.Search.LocalOverlayPath == "" {
		return nil
	}
	ov, err := localoverlay.New(cfg.Search.LocalOverlayPath, validatorOptions(cfg, false))
	if err != nil {
		logging.Get(logging.CategoryOverlay).Warnw("local overlay unavailable", "error", err)
		return nil
	}
	if err := ov.Start(context.Background()); err != nil {
		logging.Get(logging.CategoryOverlay).Warnw("local overlay start failed", "error", err)
	}
	return ov
}

func stopOverlay(ov *localoverlay.Overlay) {
	if ov != nil {
		ov.Stop()
	}
}

func buildSearchEngine(cat *catalog.Store, ov *localoverlay.Overlay, embedder embedding.EmbeddingEngine, auditLog *audit.Log, cfg *config.Config) *search.Engine {
	return search.New(cat, ov, embedder, auditLog, search.Config{
		RRFk:         cfg.Search.RRFk,
		RRFAlpha:     cfg.Search.RRFAlpha,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		EnableLocal:  cfg.Search.EnableLocal,
	})
}

func buildRecommendEngine(cat *catalog.Store, ov *localoverlay.Overlay, searchEngine *search.Engine, cfg *config.Config) *recommend.Engine {
	return recommend.New(cat, ov, searchEngine, recommend.DefaultConfig())
}

func buildFetchClient(cfg *config.Config) *fetch.Client {
	return fetch.New(fetch.Config{
		RequestTimeout:  cfg.GetFetchTimeout(),
		MaxRetries:      cfg.Fetch.MaxRetries,
		RateLimitMargin: cfg.Fetch.RateLimitMargin,
		AllowedHosts:    cfg.Fetch.AllowedURLHosts,
		Credentials: fetch.Credentials{
			AppID:             cfg.Fetch.AppID,
			AppInstallationID: cfg.Fetch.AppInstallationID,
			AppPrivateKeyPath: cfg.Fetch.AppPrivateKeyPath,
			StaticToken:       cfg.Fetch.Token,
		},
	})
}

func buildIngestPipeline(fetcher ingest.Fetcher, cat *catalog.Store, q *quarantine.Store, auditLog *audit.Log, embedder embedding.EmbeddingEngine, cfg *config.Config) *ingest.Pipeline {
	return ingest.New(ingest.Config{
		Fetch:              fetcher,
		Catalog:            cat,
		Quarantine:         q,
		Audit:              auditLog,
		Embedder:           embedder,
		Validator:          validatorOptions(cfg, false),
		Scanner:            scanner.Config{ScannerVersion: cfg.Scanner.ScannerVersion},
		Concurrency:        cfg.Sync.Workers,
		RecognizedLicenses: cfg.Scoring.RecognizedLicenses,
		RecognizedTopics:   cfg.Scoring.RecognizedTopics,
	})
}

func buildScheduler(cfg *config.Config, source syncer.CandidateSource, ingester syncer.Ingester) (*syncer.Scheduler, error) {
	freq := syncer.FrequencyDaily
	if cfg.Sync.Frequency == "weekly" {
		freq = syncer.FrequencyWeekly
	}
	sched, err := syncer.New(syncer.Config{
		StateDir:  filepath.Dir(cfg.SyncStatePath()),
		Frequency: freq,
	}, source, ingester)
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "open sync scheduler: "+err.Error())
	}
	return sched, nil
}

// errorHint renders err for stderr, appending a short remediation hint for
// the structured error kinds that have an obvious one.
func errorHint(err error) string {
	var serr *skill.Error
	if !errors.As(err, &serr) {
		return err.Error()
	}
	hint := remediationHint(serr.Kind)
	if hint == "" {
		return serr.Error()
	}
	return fmt.Sprintf("%s (%s)", serr.Error(), hint)
}

func remediationHint(kind skill.Kind) string {
	switch kind {
	case skill.KindRateLimited, skill.KindUpstreamUnavailable:
		return "set an upstream auth token to raise the rate limit and retry"
	case skill.KindQuarantined:
		return "review the quarantine entry before this skill can be searched or installed"
	case skill.KindEmptyQuery:
		return "pass a query or at least one filter flag"
	case skill.KindIdenticalIDs:
		return "skill_a and skill_b must be different skill ids"
	default:
		return ""
	}
}
