// Package catalog serves the current audience taxonomy snapshot and swaps
// it when the tree file changes.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/audienced/internal/logging"
	"github.com/fyrsmithlabs/audienced/internal/metrics"
	"github.com/fyrsmithlabs/audienced/pkg/labels"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
)

// ErrWatcherFailed indicates the filesystem watcher could not start.
var ErrWatcherFailed = errors.New("failed to initialize taxonomy watcher")

// Snapshot is one immutable taxonomy generation with everything derived
// from it. Handlers take a snapshot once per request so a reload mid-request
// never mixes two trees.
type Snapshot struct {
	Tree     *taxonomy.Tree
	Index    *taxonomy.Index
	Engine   *selection.Engine
	Labels   *labels.Maps
	Version  string
	Source   string
	LoadedAt time.Time
}

// NewSnapshot derives index, engine and label maps from tree. A nil tree is
// treated as empty.
func NewSnapshot(tree *taxonomy.Tree, policy selection.Policy, version, source string) *Snapshot {
	if tree == nil {
		tree = &taxonomy.Tree{}
	}
	idx := taxonomy.NewIndex(tree)
	return &Snapshot{
		Tree:     tree,
		Index:    idx,
		Engine:   selection.NewEngineFromIndex(idx, selection.WithPolicy(policy)),
		Labels:   labels.BuildMaps(tree),
		Version:  version,
		Source:   source,
		LoadedAt: time.Now().UTC(),
	}
}

// Counts returns nodes per level keyed by level name.
func (s *Snapshot) Counts() map[string]int {
	out := make(map[string]int, len(taxonomy.Levels))
	for level, n := range s.Tree.Count() {
		out[level.String()] = n
	}
	return out
}

// Catalog holds the current Snapshot.
type Catalog struct {
	path     string
	policy   selection.Policy
	debounce time.Duration
	logger   *logging.Logger
	metrics  *metrics.Metrics

	current atomic.Pointer[Snapshot]

	mu        sync.Mutex
	listeners []func(*Snapshot)
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithPolicy sets the engine policy of every snapshot.
func WithPolicy(p selection.Policy) Option {
	return func(c *Catalog) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// WithDebounce sets how long Watch waits for writes to settle.
func WithDebounce(d time.Duration) Option {
	return func(c *Catalog) { c.debounce = d }
}

func newCatalog(path string, opts []Option) *Catalog {
	c := &Catalog{
		path:     path,
		debounce: 250 * time.Millisecond,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open loads the tree at path. An empty path serves an empty tree, which
// makes every toggle a no-op.
func Open(ctx context.Context, path string, opts ...Option) (*Catalog, error) {
	c := newCatalog(path, opts)
	if path == "" {
		c.current.Store(NewSnapshot(nil, c.policy, "empty", ""))
		c.logger.Warn(ctx, "no taxonomy path configured, serving empty tree")
		return c, nil
	}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewStatic serves a fixed tree. Reload and Watch are no-ops.
func NewStatic(tree *taxonomy.Tree, opts ...Option) *Catalog {
	c := newCatalog("", opts)
	c.current.Store(NewSnapshot(tree, c.policy, contentVersion([]byte(tree.String())), "static"))
	return c
}

// Current returns the active snapshot. Never nil.
func (c *Catalog) Current() *Snapshot {
	return c.current.Load()
}

// Path returns the watched file, or "".
func (c *Catalog) Path() string {
	return c.path
}

// OnReload registers fn to run after every successful swap.
func (c *Catalog) OnReload(fn func(*Snapshot)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Reload re-reads the tree file. On failure the previous snapshot stays
// active and the error is returned. An unchanged file keeps the current
// snapshot.
func (c *Catalog) Reload(ctx context.Context) error {
	if c.path == "" {
		return nil
	}

	snap, err := c.load()
	if err != nil {
		c.metrics.ObserveReload(err, nil)
		c.logger.Error(ctx, "taxonomy reload failed", zap.String("path", c.path), zap.Error(err))
		return err
	}

	if cur := c.current.Load(); cur != nil && cur.Version == snap.Version {
		c.logger.Debug(ctx, "taxonomy unchanged", zap.String("version", snap.Version))
		return nil
	}

	if verr := snap.Tree.Validate(); verr != nil {
		c.logger.Warn(ctx, "taxonomy has invalid nodes", zap.Error(verr))
	}

	c.current.Store(snap)
	c.metrics.ObserveReload(nil, snap.Counts())
	c.logger.Info(ctx, "taxonomy loaded",
		zap.String("path", c.path),
		zap.String("version", snap.Version),
		zap.Int("identities", snap.Tree.Len()),
	)

	c.mu.Lock()
	listeners := append([]func(*Snapshot){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
	return nil
}

func (c *Catalog) load() (*Snapshot, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, taxonomy.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	if len(data) > taxonomy.MaxFileSize {
		return nil, fmt.Errorf("taxonomy file too large (max %d bytes)", taxonomy.MaxFileSize)
	}

	tree, err := taxonomy.DecodeFormat(bytes.NewReader(data), filepath.Ext(c.path))
	if err != nil {
		return nil, err
	}
	return NewSnapshot(tree, c.policy, contentVersion(data), c.path), nil
}

// contentVersion is a name-based UUID of the file content, so identical
// bytes always yield the same version.
func contentVersion(data []byte) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, data).String()
}

// Watch reloads the tree whenever its file is written, renamed over or
// recreated, until ctx is done. The parent directory is watched so editors
// that replace the file atomically are seen.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	defer watcher.Close()

	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("%w: watch %s: %v", ErrWatcherFailed, dir, err)
	}
	target := filepath.Clean(c.path)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(c.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn(ctx, "taxonomy watcher error", zap.Error(err))

		case <-timer.C:
			// Reload logs its own failures; keep serving the last good tree.
			_ = c.Reload(ctx)
		}
	}
}
