package chain

import (
	"context"

	"go.uber.org/zap"

	"github.com/helmcode/errfriendly/pkg/collector"
	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/exception"
	"github.com/helmcode/errfriendly/pkg/inspector"
	"github.com/helmcode/errfriendly/pkg/model"
	"github.com/helmcode/errfriendly/pkg/patterns"
)

// Analyzer walks exception chains.
type Analyzer struct {
	store     *config.Store
	inspector *inspector.Inspector
	detector  *patterns.Detector
	collector *collector.Collector
	logger    *zap.Logger
}

func NewAnalyzer(store *config.Store, insp *inspector.Inspector, detector *patterns.Detector, coll *collector.Collector, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		store:     store,
		inspector: insp,
		detector:  detector,
		collector: coll,
		logger:    logger,
	}
}

// Analyze builds the chain that ends at exc. It never panics: a handle that
// cannot be walked yields a depth-1 chain marked Incomplete.
func (a *Analyzer) Analyze(exc exception.Exception) (c *Chain) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Debug("chain walk failed, degrading to a single link", zap.Any("panic", r))
			c = a.finish([]Link{a.bareLink(exc)}, false, true)
		}
	}()
	if exc == nil {
		return a.finish([]Link{{Category: "UnknownError"}}, false, true)
	}

	cfg := a.store.Load()
	maxDepth := cfg.Chain.MaxDepth
	if !cfg.Chain.Enabled {
		maxDepth = 1
	}

	var (
		links     []Link
		visited   []exception.Exception
		truncated bool
	)
	for cur := exc; cur != nil; {
		if contains(visited, cur) {
			truncated = true
			break
		}
		if len(links) >= maxDepth {
			truncated = cfg.Chain.Enabled
			break
		}
		visited = append(visited, cur)

		next, edge := follow(cur)
		links = append(links, Link{
			Index:    len(links),
			Category: cur.Category(),
			Message:  cur.Message(),
			Frames:   append([]exception.Frame(nil), cur.Traceback()...),
			Edge:     edge,
			runtime:  exception.RuntimeOf(cur),
		})
		cur = next
	}
	// The walk stopped early: the last kept link has nothing behind it here.
	links[len(links)-1].Edge = EdgeNone
	return a.finish(links, truncated, false)
}

// follow returns the next older exception: the explicit cause, else the
// implicit context unless it was suppressed.
func follow(exc exception.Exception) (exception.Exception, Edge) {
	if cause := exc.Cause(); cause != nil {
		return cause, EdgeCause
	}
	if exc.SuppressContext() {
		return nil, EdgeNone
	}
	if ctx := exc.Context(); ctx != nil {
		return ctx, EdgeContext
	}
	return nil, EdgeNone
}

func contains(seen []exception.Exception, exc exception.Exception) bool {
	for _, s := range seen {
		if same(s, exc) {
			return true
		}
	}
	return false
}

// same compares handles by identity; non-comparable handles never match
// and are stopped by the depth bound instead.
func same(a, b exception.Exception) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

func (a *Analyzer) bareLink(exc exception.Exception) Link {
	link := Link{Category: "UnknownError"}
	if exc == nil {
		return link
	}
	func() {
		defer func() { _ = recover() }()
		link.Category = exc.Category()
		link.Message = exc.Message()
	}()
	return link
}

func (a *Analyzer) finish(links []Link, truncated, incomplete bool) *Chain {
	for i := range links {
		links[i].Index = i
		links[i].Tags = a.tags(&links[i])
		links[i].Cleanup = hasTag(links[i].Tags, patterns.CleanupFailure)
	}
	c := &Chain{
		Links:      links,
		Truncated:  truncated,
		Incomplete: incomplete,
		contexts:   make([]lazyContext, len(links)),
	}
	c.Type = classify(links, truncated)
	c.FixPriority = fixPriority(links)
	if a.collector != nil {
		coll := a.collector
		c.collect = func(ctx context.Context, l *Link) *model.ErrorContext {
			return coll.CollectFrames(ctx, l.Category, l.Message, l.runtime, l.Frames)
		}
	}
	return c
}

func (a *Analyzer) tags(l *Link) (tags []string) {
	defer func() {
		if recover() != nil {
			tags = nil
		}
	}()
	in := patterns.Input{Category: l.Category, Message: l.Message}
	if len(l.Frames) > 0 && a.inspector != nil {
		in.Frame = a.inspector.Inspect(l.Frames[len(l.Frames)-1])
	}
	if a.detector == nil {
		return nil
	}
	return a.detector.Detect(in)
}

func classify(links []Link, truncated bool) Type {
	if truncated {
		return Cascade
	}
	if len(links) == 1 {
		return Simple
	}
	allCause, implicit := true, false
	for _, l := range links[:len(links)-1] {
		if l.Edge != EdgeCause {
			allCause = false
		}
		if l.Edge == EdgeContext {
			implicit = true
		}
	}
	if allCause {
		return Wrapper
	}
	if implicit {
		for _, l := range links[:len(links)-1] {
			if l.Edge == EdgeContext && l.Cleanup {
				return Cleanup
			}
		}
	}
	return Cascade
}

// fixPriority ranks links root first. Cleanup links other than the root go
// last, keeping their relative order.
func fixPriority(links []Link) []int {
	root := len(links) - 1
	order := make([]int, 0, len(links))
	var deferred []int
	for i := root; i >= 0; i-- {
		if i != root && links[i].Cleanup {
			deferred = append(deferred, i)
			continue
		}
		order = append(order, i)
	}
	return append(order, deferred...)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
