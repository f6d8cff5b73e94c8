// Package pipeline turns an exception into a Report: chain analysis, an
// optional AI explanation and the static explanation that is always there.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helmcode/errfriendly/pkg/analyzer"
	"github.com/helmcode/errfriendly/pkg/cache"
	"github.com/helmcode/errfriendly/pkg/chain"
	"github.com/helmcode/errfriendly/pkg/collector"
	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/exception"
	"github.com/helmcode/errfriendly/pkg/inspector"
	"github.com/helmcode/errfriendly/pkg/llm"
	"github.com/helmcode/errfriendly/pkg/messages"
	"github.com/helmcode/errfriendly/pkg/metrics"
	"github.com/helmcode/errfriendly/pkg/model"
	"github.com/helmcode/errfriendly/pkg/patterns"
)

// Report is the outcome of explaining one exception.
type Report struct {
	ID          string               `json:"id" yaml:"id"`
	CreatedAt   time.Time            `json:"created_at" yaml:"created_at"`
	Category    string               `json:"category" yaml:"category"`
	Message     string               `json:"message" yaml:"message"`
	Chain       *chain.Chain         `json:"chain" yaml:"chain"`
	Narrative   string               `json:"narrative" yaml:"narrative"`
	FixStrategy string               `json:"fix_strategy" yaml:"fix_strategy"`
	Static      string               `json:"static" yaml:"static"`
	AI          *model.AIExplanation `json:"ai,omitempty" yaml:"ai,omitempty"`
	// Source is where the primary explanation came from: ai, cache or static.
	Source      string   `json:"source" yaml:"source"`
	Diagnostics []string `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	store   *config.Store
	chains  *chain.Analyzer
	ai      *analyzer.Analyzer
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

type options struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	selector analyzer.BackendSelector
	reader   inspector.SourceReader
	diffs    collector.DiffSource
	detector *patterns.Detector
	noFS     bool
}

// Option configures New.
type Option func(*options)

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithSelector replaces the llm.Factory used to pick the backend.
func WithSelector(s analyzer.BackendSelector) Option { return func(o *options) { o.selector = s } }

// WithSourceReader replaces the filesystem reader used for snippets.
func WithSourceReader(r inspector.SourceReader) Option { return func(o *options) { o.reader = r } }

func WithDiffSource(d collector.DiffSource) Option { return func(o *options) { o.diffs = d } }

// WithoutFilesystem keeps the pipeline off the local disk. Reports that
// come from other hosts name paths that mean nothing here, or worse, name
// files here that must not reach a backend.
func WithoutFilesystem() Option { return func(o *options) { o.noFS = true } }

// WithDetector replaces the built-in pattern detector.
func WithDetector(d *patterns.Detector) Option { return func(o *options) { o.detector = d } }

// New wires every component around store.
func New(store *config.Store, opts ...Option) *Pipeline {
	o := options{
		logger: zap.NewNop(),
		reader: inspector.FileReader{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.selector == nil {
		o.selector = llm.NewFactory()
	}
	if o.detector == nil {
		o.detector = patterns.NewDetector()
	}

	reader := o.reader
	collOpts := []collector.Option{collector.WithLogger(o.logger)}
	if o.diffs != nil {
		collOpts = append(collOpts, collector.WithDiffSource(o.diffs))
	}
	if o.noFS {
		reader = nil
		collOpts = append(collOpts, collector.WithoutFilesystem())
	}
	insp := inspector.New(store, reader)
	coll := collector.New(store, insp, o.detector, collOpts...)

	aiOpts := []analyzer.Option{analyzer.WithLogger(o.logger)}
	if o.metrics != nil {
		aiOpts = append(aiOpts, analyzer.WithObserver(o.metrics))
	}

	return &Pipeline{
		store:   store,
		chains:  chain.NewAnalyzer(store, insp, o.detector, coll, o.logger),
		ai:      analyzer.New(store, cache.New(store), cache.NewRateLimiter(store), o.selector, aiOpts...),
		metrics: o.metrics,
		logger:  o.logger,
		now:     time.Now,
	}
}

// Explain never fails and never panics. The returned report always carries
// the static explanation; the AI explanation is added when it is enabled
// and trusted.
func (p *Pipeline) Explain(ctx context.Context, exc exception.Exception) (r *Report) {
	r = &Report{
		ID:        uuid.NewString(),
		CreatedAt: p.now(),
		Category:  "UnknownError",
		Source:    metrics.SourceStatic,
	}
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Debug("explanation pipeline panicked", zap.Any("panic", rec))
			p.diagnose(r, fmt.Sprintf("pipeline: recovered from panic: %v", rec))
			r.AI = nil
			r.Source = metrics.SourceStatic
		}
		if r.Static == "" {
			r.Static = messages.Lookup(r.Category, r.Message)
		}
		p.metrics.Explanation(r.Source)
	}()

	c := p.chains.Analyze(exc)
	primary := c.Primary()
	r.Chain = c
	r.Category, r.Message = primary.Category, primary.Message
	r.Static = messages.Lookup(primary.Category, primary.Message)
	r.Narrative = chain.Narrative(c)
	r.FixStrategy = chain.FixStrategy(c)
	p.metrics.Chain(string(c.Type), c.Depth())

	var narrative string
	if c.Depth() > 1 {
		narrative = r.Narrative
	}
	ectx := c.Context(ctx, 0)
	expl, err := p.ai.Explain(ctx, ectx, narrative)
	if err != nil {
		p.logger.Debug("falling back to static explanation",
			zap.String("category", r.Category), zap.Error(err))
		p.diagnose(r, "ai: "+err.Error())
		return r
	}
	r.AI = expl
	r.Source = metrics.SourceAI
	if expl.Cached {
		r.Source = metrics.SourceCache
	}
	return r
}

// ExplainError explains a Go error.
func (p *Pipeline) ExplainError(ctx context.Context, err error) *Report {
	rec := exception.FromError(err)
	if rec == nil {
		return p.Explain(ctx, nil)
	}
	return p.Explain(ctx, rec)
}

// diagnose records d on the report in debug mode.
func (p *Pipeline) diagnose(r *Report, d string) {
	if p.store.Load().Debug {
		r.Diagnostics = append(r.Diagnostics, d)
	}
}
