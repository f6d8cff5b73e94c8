package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/helmcode/errfriendly/pkg/cache"
	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/llm"
	"github.com/helmcode/errfriendly/pkg/model"
	"github.com/helmcode/errfriendly/pkg/parser"
	"github.com/helmcode/errfriendly/pkg/prompts"
)

var (
	ErrDisabled      = errors.New("ai explanations disabled")
	ErrUnavailable   = errors.New("ai backend unavailable")
	ErrRateLimited   = errors.New("ai request rate limit reached")
	ErrTimeout       = errors.New("ai backend timed out")
	ErrLowConfidence = errors.New("ai explanation below confidence threshold")
)

// BackendSelector resolves the backend configured in cfg.
type BackendSelector interface {
	Select(cfg *config.Config) (llm.Backend, error)
}

// Observer is notified of every outcome of Explain. All methods may be
// called concurrently.
type Observer interface {
	BackendFailure(backend string, kind llm.ErrorKind)
	RateLimited()
}

// Analyzer asks the configured backend to explain an error context.
type Analyzer struct {
	store    *config.Store
	cache    *cache.Cache
	limiter  *cache.RateLimiter
	selector BackendSelector
	logger   *zap.Logger
	observer Observer
	tracer   trace.Tracer
}

// Option configures an Analyzer.
type Option func(*Analyzer)

func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(a *Analyzer) { a.observer = o }
}

func WithTracer(t trace.Tracer) Option {
	return func(a *Analyzer) {
		if t != nil {
			a.tracer = t
		}
	}
}

func New(store *config.Store, c *cache.Cache, limiter *cache.RateLimiter, selector BackendSelector, opts ...Option) *Analyzer {
	a := &Analyzer{
		store:    store,
		cache:    c,
		limiter:  limiter,
		selector: selector,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("github.com/helmcode/errfriendly/pkg/analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Explain returns an explanation of ectx. narrative may be empty. Errors are
// one of the package sentinels, a *llm.BackendError or a parser error; the
// backend is called at most once.
func (a *Analyzer) Explain(ctx context.Context, ectx *model.ErrorContext, narrative string) (*model.AIExplanation, error) {
	cfg := a.store.Load()
	if !cfg.AI.Enabled || cfg.AI.Backend == config.BackendNone {
		return nil, ErrDisabled
	}
	if ectx == nil {
		return nil, fmt.Errorf("%w: no error context", ErrUnavailable)
	}

	key := cache.Key(ectx)
	if e, ok := a.cache.Get(key); ok {
		a.logger.Debug("explanation served from cache", zap.String("category", ectx.Category))
		e.Cached = true
		return e, nil
	}

	backend, err := a.selector.Select(cfg)
	if err != nil {
		return nil, fmt.Errorf("select backend: %w", err)
	}
	if backend == nil || !backend.IsAvailable() {
		return nil, ErrUnavailable
	}

	if !a.limiter.TryAcquire() {
		if a.observer != nil {
			a.observer.RateLimited()
		}
		return nil, ErrRateLimited
	}

	prompt, err := prompts.BuildExplainPrompt(ectx, narrative)
	if err != nil {
		return nil, err
	}
	system := prompts.SystemPrompt(cfg.AI.ExplainDepth)

	raw, err := a.generate(ctx, backend, prompt, system, cfg.AI.Timeout)
	if err != nil {
		a.reportFailure(backend.Name(), err)
		return nil, err
	}

	expl, err := parser.ParseExplanation(raw)
	if err != nil {
		a.reportFailure(backend.Name(), &llm.BackendError{Backend: backend.Name(), Kind: llm.KindResponse, Err: err})
		return nil, err
	}
	expl.Backend = backend.Name()

	if expl.Confidence < cfg.AI.Threshold {
		a.logger.Debug("discarding low confidence explanation",
			zap.String("backend", backend.Name()),
			zap.Float64("confidence", expl.Confidence),
			zap.Float64("threshold", cfg.AI.Threshold))
		return nil, ErrLowConfidence
	}
	a.cache.Put(key, expl)
	return expl, nil
}

type result struct {
	text string
	err  error
}

// generate runs one backend call under timeout. A call that outlives the
// timeout is abandoned; its goroutine exits once the backend returns.
func (a *Analyzer) generate(ctx context.Context, backend llm.Backend, prompt, system string, timeout time.Duration) (string, error) {
	ctx, span := a.tracer.Start(ctx, "llm.generate", trace.WithAttributes(
		attribute.String("llm.backend", backend.Name()),
		attribute.Int("llm.prompt_bytes", len(prompt)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		text, err := backend.Generate(ctx, prompt, system)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				r.err = fmt.Errorf("%w: %v", ErrTimeout, r.err)
			}
			span.RecordError(r.err)
			span.SetStatus(codes.Error, r.err.Error())
			return "", r.err
		}
		span.SetAttributes(attribute.Int("llm.response_bytes", len(r.text)))
		return r.text, nil
	case <-ctx.Done():
		err := ErrTimeout
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
}

func (a *Analyzer) reportFailure(backend string, err error) {
	kind := llm.KindResponse
	var be *llm.BackendError
	switch {
	case errors.As(err, &be):
		kind = be.Kind
	case errors.Is(err, ErrTimeout):
		kind = llm.KindNetwork
	}
	a.logger.Debug("ai backend failed",
		zap.String("backend", backend),
		zap.String("kind", string(kind)),
		zap.Error(err))
	if a.observer != nil {
		a.observer.BackendFailure(backend, kind)
	}
}
