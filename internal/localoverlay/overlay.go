// Package localoverlay discovers and live-reloads skills from the user's
// local skill directory (one subdirectory per skill, each containing a
// SKILL.md), so they can be merged into search/recommend results without a
// round trip through the catalog.
package localoverlay

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/smith-horn/skillsmith/internal/logging"
	"github.com/smith-horn/skillsmith/internal/skill"
	"github.com/smith-horn/skillsmith/internal/validator"
)

const skillFilename = "SKILL.md"

// Overlay watches a local directory tree for SKILL.md files and keeps an
// in-memory, thread-safe snapshot of the skills it finds.
type Overlay struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	dir         string
	validateOpt validator.Options
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	skills map[string]skill.Skill // keyed by directory path
}

// New creates an overlay rooted at dir. dir need not exist yet; Start
// creates it and begins watching once available.
func New(dir string, opts validator.Options) (*Overlay, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, skill.NewError(skill.KindStorage, "create overlay watcher: "+err.Error())
	}
	return &Overlay{
		watcher:     watcher,
		dir:         dir,
		validateOpt: opts,
		debounceMap: make(map[string]time.Time),
		debounceDur: 300 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		skills:      make(map[string]skill.Skill),
	}, nil
}

// Start performs an initial full scan and begins watching dir (non-blocking;
// the watch loop runs in a goroutine until ctx is canceled or Stop is
// called).
func (o *Overlay) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = true
	o.mu.Unlock()

	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		logging.Get(logging.CategoryOverlay).Warnw("create overlay dir failed, continuing", "dir", o.dir, "error", err)
	}

	o.loadAll()

	if err := o.watcher.Add(o.dir); err != nil {
		logging.Get(logging.CategoryOverlay).Warnw("initial overlay watch failed", "dir", o.dir, "error", err)
	}
	for _, dir := range o.skillDirs() {
		_ = o.watcher.Add(dir)
	}

	go o.run(ctx)
	return nil
}

// Stop halts the watch loop and releases the underlying fsnotify watcher.
func (o *Overlay) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	o.mu.Unlock()

	close(o.stopCh)
	<-o.doneCh
	_ = o.watcher.Close()
}

// Skills returns a snapshot of every currently indexed local skill.
func (o *Overlay) Skills() []skill.Skill {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]skill.Skill, 0, len(o.skills))
	for _, s := range o.skills {
		out = append(out, s)
	}
	return out
}

func (o *Overlay) run(ctx context.Context) {
	defer close(o.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case event, ok := <-o.watcher.Events:
			if !ok {
				return
			}
			o.handleEvent(event)
		case _, ok := <-o.watcher.Errors:
			if !ok {
				return
			}
		case <-ticker.C:
			o.processDebounced()
		}
	}
}

func (o *Overlay) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, skillFilename) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() && (event.Op&fsnotify.Create != 0) {
			_ = o.watcher.Add(event.Name)
		}
		return
	}
	o.mu.Lock()
	o.debounceMap[event.Name] = time.Now()
	o.mu.Unlock()
}

func (o *Overlay) processDebounced() {
	o.mu.Lock()
	now := time.Now()
	var due []string
	for path, at := range o.debounceMap {
		if now.Sub(at) >= o.debounceDur {
			due = append(due, path)
			delete(o.debounceMap, path)
		}
	}
	o.mu.Unlock()

	for _, path := range due {
		o.reload(filepath.Dir(path))
	}
}

// loadAll walks the overlay directory once and indexes every SKILL.md it
// finds.
func (o *Overlay) loadAll() {
	for _, dir := range o.skillDirs() {
		o.reload(dir)
	}
}

func (o *Overlay) skillDirs() []string {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(o.dir, e.Name()))
		}
	}
	return dirs
}

// reload re-parses the SKILL.md under skillDir and updates (or removes) the
// in-memory entry for it.
func (o *Overlay) reload(skillDir string) {
	path := filepath.Join(skillDir, skillFilename)
	content, err := os.ReadFile(path)
	if err != nil {
		o.mu.Lock()
		delete(o.skills, skillDir)
		o.mu.Unlock()
		return
	}

	validated, err := validator.Validate(content, o.validateOpt)
	if err != nil {
		logging.Get(logging.CategoryOverlay).Warnw("local skill failed validation", "path", path, "error", err)
		o.mu.Lock()
		delete(o.skills, skillDir)
		o.mu.Unlock()
		return
	}

	name := validated.Name
	if name == "" {
		name = filepath.Base(skillDir)
	}

	sk := skill.Skill{
		Author:         validated.Author,
		Name:           name,
		Description:    validated.Description,
		Tags:           validated.Tags,
		Category:       validated.Category,
		Roles:          validated.Roles,
		TriggerPhrases: validated.TriggerPhrases,
		SizeBytes:      int64(len(content)),
		TrustTier:      skill.TierLocal,
		ScanStatus:     skill.ScanSafe,
		UpdatedAt:      time.Now().UTC(),
	}

	o.mu.Lock()
	o.skills[skillDir] = sk
	o.mu.Unlock()
}
