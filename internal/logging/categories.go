// Package logging also exposes a lightweight categorized logging facade on
// top of the zap logger built by New(). Components call logging.Get(category)
// for a category-scoped SugaredLogger, the same shape as the teacher's
// per-category logging helpers, but backed by a single real zap.Logger
// instead of per-category log files.
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Category names a subsystem for log scoping and filtering.
type Category string

const (
	CategoryBoot       Category = "boot"
	CategoryFetch      Category = "fetch"
	CategoryValidator  Category = "validator"
	CategoryScanner    Category = "scanner"
	CategoryQuarantine Category = "quarantine"
	CategoryScoring    Category = "scoring"
	CategoryCatalog    Category = "catalog"
	CategorySearch     Category = "search"
	CategoryRecommend  Category = "recommend"
	CategorySync       Category = "sync"
	CategoryAudit      Category = "audit"
	CategoryEmbedding  Category = "embedding"
	CategoryStore      Category = "store"
	CategoryOverlay    Category = "overlay"
	CategoryCLI        Category = "cli"
)

var (
	mu      sync.RWMutex
	base    *zap.Logger = zap.NewNop()
)

// Init wires the process-wide base logger used by category loggers. Call
// once at startup; safe to call again on reconfigure (atomic swap).
func Init(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		base = logger
	}
}

// Get returns a sugared logger scoped to category.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	l := base
	mu.RUnlock()
	return l.Sugar().With("category", string(category))
}

// Timer measures and logs the duration of an operation at Debug level.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing op within category.
func StartTimer(category Category, op string) *Timer {
	return &Timer{category: category, op: op, start: time.Now()}
}

// Stop logs the elapsed duration.
func (t *Timer) Stop() {
	Get(t.category).Debugw("timing", "op", t.op, "elapsed", time.Since(t.start))
}

func logf(category Category, format string, args ...interface{}) {
	Get(category).Infof(format, args...)
}

// Embedding logs under CategoryEmbedding. It is the one per-category
// facade helper with live callers (internal/embedding); the rest of the
// teacher's per-category Xxx/XxxDebug functions went unused once call sites
// switched to Get(cat).Xxx and were removed.
func Embedding(format string, args ...interface{}) { logf(CategoryEmbedding, format, args...) }
