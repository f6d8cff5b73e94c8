package collector

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/exception"
	"github.com/helmcode/errfriendly/pkg/inspector"
	"github.com/helmcode/errfriendly/pkg/model"
	"github.com/helmcode/errfriendly/pkg/patterns"
)

var skippedDirs = map[string]bool{
	".git": true, ".hg": true, ".venv": true, "venv": true, "node_modules": true,
	"__pycache__": true, ".mypy_cache": true, ".pytest_cache": true, "vendor": true,
	"site-packages": true, "dist": true, "build": true,
}

var sourceExts = map[string]bool{".py": true, ".pyw": true, ".go": true}

// Collector builds one ErrorContext per exception.
type Collector struct {
	store     *config.Store
	inspector *inspector.Inspector
	detector  *patterns.Detector
	diffs     DiffSource
	logger    *zap.Logger
	// noFS keeps the collector off the local disk: no imports, project
	// files or recent changes.
	noFS      bool
}

// Option customizes a Collector.
type Option func(*Collector)

// WithDiffSource replaces the git-based recent-change source.
func WithDiffSource(d DiffSource) Option {
	return func(c *Collector) { c.diffs = d }
}

// WithoutFilesystem stops the collector from reading anything on disk.
// Frames then carry only the source lines they were captured with.
func WithoutFilesystem() Option {
	return func(c *Collector) { c.noFS = true }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

func New(store *config.Store, insp *inspector.Inspector, detector *patterns.Detector, opts ...Option) *Collector {
	c := &Collector{
		store:     store,
		inspector: insp,
		detector:  detector,
		diffs:     GitDiff{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect builds the context of exc. It never panics; whatever could not be
// gathered is left empty.
func (c *Collector) Collect(ctx context.Context, exc exception.Exception) *model.ErrorContext {
	var (
		category, message string
		frames            []exception.Frame
		runtimeVersion    = "unknown"
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Debug("exception handle panicked during collection", zap.Any("panic", r))
			}
		}()
		category = exc.Category()
		message = exc.Message()
		runtimeVersion = exception.RuntimeOf(exc)
		frames = exc.Traceback()
	}()
	return c.CollectFrames(ctx, category, message, runtimeVersion, frames)
}

// CollectFrames builds a context from already captured data. frames are
// ordered from the outermost call to the failure site.
func (c *Collector) CollectFrames(ctx context.Context, category, message, runtimeVersion string, frames []exception.Frame) (ectx *model.ErrorContext) {
	cfg := c.store.Load()
	ectx = &model.ErrorContext{
		Category:       category,
		Message:        message,
		Frames:         []model.FrameInfo{},
		RuntimeVersion: runtimeVersion,
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("context collection cut short", zap.Any("panic", r))
		}
	}()

	tags := map[string]struct{}{}
	for _, t := range c.detector.Detect(patterns.Input{Category: category, Message: message}) {
		tags[t] = struct{}{}
	}

	// Most recent first.
	for i := len(frames) - 1; i >= 0 && len(ectx.Frames) < cfg.Context.MaxFrames; i-- {
		info := c.inspector.Inspect(frames[i])
		ectx.Frames = append(ectx.Frames, info)
		for _, t := range c.detector.Detect(patterns.Input{Category: category, Message: message, Frame: info}) {
			tags[t] = struct{}{}
		}
	}
	ectx.Patterns = sortedKeys(tags)

	top, ok := ectx.FailureFrame()
	if !ok {
		return ectx
	}
	ectx.CodeSnippet = top.Snippet
	ectx.Locals = top.Locals

	if c.noFS || top.File == "" || strings.HasPrefix(top.File, "<") {
		return ectx
	}
	ectx.Imports = scanImports(ctx, top.File, cfg.Context.MaxImports)
	if cfg.Privacy.IncludeProjectFiles {
		root := cfg.Context.ProjectRoot
		if root == "" {
			root = filepath.Dir(top.File)
		}
		ectx.ProjectFiles = projectFiles(root, cfg.Context.MaxProjectFiles)
	}
	if cfg.Context.IncludeRecentChanges && c.diffs != nil {
		raw, err := c.diffs.FileDiff(ctx, top.File)
		if err != nil {
			c.logger.Debug("recent changes unavailable", zap.String("file", top.File), zap.Error(err))
		} else {
			ectx.RecentChanges = recentChanges(raw, top.Line, cfg.Context.MaxChangeLength)
		}
	}
	return ectx
}

// projectFiles lists up to max source files under root, relative to root,
// as a structure hint.
func projectFiles(root string, max int) []string {
	if max <= 0 {
		return nil
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil
	}
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && (skippedDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExts[filepath.Ext(path)] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		if len(files) >= max {
			return filepath.SkipAll
		}
		return nil
	})
	sort.Strings(files)
	return files
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
