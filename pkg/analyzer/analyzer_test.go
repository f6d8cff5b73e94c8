package analyzer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/helmcode/errfriendly/pkg/cache"
	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/llm"
	"github.com/helmcode/errfriendly/pkg/model"
	"github.com/helmcode/errfriendly/pkg/parser"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const confidentAnswer = `{"what_happened":"xs is empty","root_cause":"average() got []","confidence":0.9,
"fixes":{"quick":"guard len(xs)","robust":"return None for empty input","preventive":"test the empty case"}}`

type fakeBackend struct {
	answer    string
	err       error
	block     bool
	available bool
	calls     atomic.Int32
	prompts   chan string
}

func (f *fakeBackend) Name() string      { return "fake" }
func (f *fakeBackend) IsAvailable() bool { return f.available }

func (f *fakeBackend) Generate(ctx context.Context, prompt, system string) (string, error) {
	f.calls.Add(1)
	if f.prompts != nil {
		f.prompts <- system
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.answer, f.err
}

type fakeSelector struct {
	backend llm.Backend
	err     error
}

func (s fakeSelector) Select(*config.Config) (llm.Backend, error) { return s.backend, s.err }

type recordingObserver struct {
	mu          sync.Mutex
	failures    []llm.ErrorKind
	rateLimited int
}

func (o *recordingObserver) BackendFailure(_ string, kind llm.ErrorKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, kind)
}

func (o *recordingObserver) RateLimited() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rateLimited++
}

type fixture struct {
	store    *config.Store
	cache    *cache.Cache
	backend  *fakeBackend
	observer *recordingObserver
	analyzer *Analyzer
}

func newFixture(t *testing.T, backend *fakeBackend, mutate func(*config.Config)) *fixture {
	t.Helper()
	store := config.MustStore(nil)
	require.NoError(t, store.Update(func(cfg *config.Config) {
		cfg.AI.Enabled = true
		cfg.AI.Backend = config.BackendClaude
		if mutate != nil {
			mutate(cfg)
		}
	}))
	f := &fixture{
		store:    store,
		cache:    cache.New(store),
		backend:  backend,
		observer: &recordingObserver{},
	}
	f.analyzer = New(store, f.cache, cache.NewRateLimiter(store), fakeSelector{backend: backend}, WithObserver(f.observer))
	return f
}

func errorContext(category string) *model.ErrorContext {
	return &model.ErrorContext{
		Category: category,
		Message:  "division by zero",
		Frames:   []model.FrameInfo{{File: "stats.py", Line: 4, Function: "average"}},
	}
}

func TestExplain_Success(t *testing.T) {
	f := newFixture(t, &fakeBackend{answer: confidentAnswer, available: true}, nil)

	expl, err := f.analyzer.Explain(context.Background(), errorContext("ZeroDivisionError"), "")
	require.NoError(t, err)
	assert.Equal(t, "xs is empty", expl.WhatHappened)
	assert.Equal(t, "fake", expl.Backend)
	assert.False(t, expl.Cached)
	assert.Equal(t, 1, f.cache.Len())
}

func TestExplain_CacheHitSkipsBackend(t *testing.T) {
	f := newFixture(t, &fakeBackend{answer: confidentAnswer, available: true}, nil)
	ctx := context.Background()

	_, err := f.analyzer.Explain(ctx, errorContext("ZeroDivisionError"), "")
	require.NoError(t, err)

	// Cached answers are served even once the backend goes away.
	f.backend.available = false
	hit, err := f.analyzer.Explain(ctx, errorContext("ZeroDivisionError"), "")
	require.NoError(t, err)
	assert.True(t, hit.Cached)
	assert.Equal(t, int32(1), f.backend.calls.Load())

	again, _ := f.analyzer.Explain(ctx, errorContext("ZeroDivisionError"), "")
	assert.True(t, again.Cached)
	assert.NotSame(t, hit, again)
}

func TestExplain_ReturnedExplanationIsNotTheCachedOne(t *testing.T) {
	answer := `{"what_happened":"xs is empty","root_cause":"average() got []","confidence":0.9,
"fixes":{"quick":"q","robust":"r","preventive":"p"},"references":["https://docs.python.org/3/"]}`
	f := newFixture(t, &fakeBackend{answer: answer, available: true}, nil)
	ctx := context.Background()

	first, err := f.analyzer.Explain(ctx, errorContext("ZeroDivisionError"), "")
	require.NoError(t, err)
	first.Cached = true
	first.WhatHappened = "edited by caller"
	first.References[0] = "edited by caller"

	hit, err := f.analyzer.Explain(ctx, errorContext("ZeroDivisionError"), "")
	require.NoError(t, err)
	assert.True(t, hit.Cached)
	assert.Equal(t, "xs is empty", hit.WhatHappened)
	assert.Equal(t, []string{"https://docs.python.org/3/"}, hit.References)

	hit.References[0] = "edited again"
	again, _ := f.analyzer.Explain(ctx, errorContext("ZeroDivisionError"), "")
	assert.Equal(t, []string{"https://docs.python.org/3/"}, again.References)
}

func TestExplain_Disabled(t *testing.T) {
	backend := &fakeBackend{answer: confidentAnswer, available: true}
	f := newFixture(t, backend, func(cfg *config.Config) { cfg.AI.Enabled = false })

	_, err := f.analyzer.Explain(context.Background(), errorContext("KeyError"), "")
	assert.ErrorIs(t, err, ErrDisabled)

	require.NoError(t, f.store.Update(func(cfg *config.Config) {
		cfg.AI.Enabled = true
		cfg.AI.Backend = config.BackendNone
	}))
	_, err = f.analyzer.Explain(context.Background(), errorContext("KeyError"), "")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Zero(t, backend.calls.Load())
}

func TestExplain_Unavailable(t *testing.T) {
	f := newFixture(t, &fakeBackend{available: false}, nil)

	_, err := f.analyzer.Explain(context.Background(), errorContext("KeyError"), "")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, f.backend.calls.Load())

	_, err = f.analyzer.Explain(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExplain_SelectorError(t *testing.T) {
	store := config.MustStore(nil)
	require.NoError(t, store.Update(func(cfg *config.Config) {
		cfg.AI.Enabled = true
		cfg.AI.Backend = config.BackendOpenAI
	}))
	a := New(store, cache.New(store), cache.NewRateLimiter(store), fakeSelector{err: config.ErrInvalid})

	_, err := a.Explain(context.Background(), errorContext("KeyError"), "")
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.Contains(t, err.Error(), "select backend")
}

func TestExplain_RateLimited(t *testing.T) {
	f := newFixture(t, &fakeBackend{answer: confidentAnswer, available: true}, func(cfg *config.Config) {
		cfg.AI.MaxRequestsPerMinute = 1
	})
	ctx := context.Background()

	_, err := f.analyzer.Explain(ctx, errorContext("ZeroDivisionError"), "")
	require.NoError(t, err)
	_, err = f.analyzer.Explain(ctx, errorContext("ValueError"), "")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(1), f.backend.calls.Load())
	assert.Equal(t, 1, f.observer.rateLimited)

	// Cache hits do not count against the limit.
	_, err = f.analyzer.Explain(ctx, errorContext("ZeroDivisionError"), "")
	assert.NoError(t, err)
}

func TestExplain_Timeout(t *testing.T) {
	f := newFixture(t, &fakeBackend{block: true, available: true}, func(cfg *config.Config) {
		cfg.AI.Timeout = 20 * time.Millisecond
	})

	start := time.Now()
	expl, err := f.analyzer.Explain(context.Background(), errorContext("KeyError"), "")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Nil(t, expl)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Zero(t, f.cache.Len())
	assert.Equal(t, []llm.ErrorKind{llm.KindNetwork}, f.observer.failures)
}

func TestExplain_MalformedAnswer(t *testing.T) {
	f := newFixture(t, &fakeBackend{answer: "Sorry, I cannot help with that.", available: true}, nil)

	_, err := f.analyzer.Explain(context.Background(), errorContext("KeyError"), "")
	assert.ErrorIs(t, err, parser.ErrMalformed)
	assert.Zero(t, f.cache.Len())
	assert.Equal(t, []llm.ErrorKind{llm.KindResponse}, f.observer.failures)
}

func TestExplain_BackendError(t *testing.T) {
	backendErr := &llm.BackendError{Backend: "fake", Kind: llm.KindAuth, StatusCode: 401, Err: errors.New("bad key")}
	f := newFixture(t, &fakeBackend{err: backendErr, available: true}, nil)

	_, err := f.analyzer.Explain(context.Background(), errorContext("KeyError"), "")
	var be *llm.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, llm.KindAuth, be.Kind)
	assert.Equal(t, []llm.ErrorKind{llm.KindAuth}, f.observer.failures)
}

func TestExplain_LowConfidenceIsDiscarded(t *testing.T) {
	answer := `{"what_happened":"w","root_cause":"r","confidence":0.3,"fixes":{"quick":"q","robust":"r","preventive":"p"}}`
	f := newFixture(t, &fakeBackend{answer: answer, available: true}, nil)

	_, err := f.analyzer.Explain(context.Background(), errorContext("KeyError"), "")
	assert.ErrorIs(t, err, ErrLowConfidence)
	assert.Zero(t, f.cache.Len())
	assert.Empty(t, f.observer.failures)
}

func TestExplain_DepthSelectsSystemPrompt(t *testing.T) {
	backend := &fakeBackend{answer: confidentAnswer, available: true, prompts: make(chan string, 2)}
	f := newFixture(t, backend, func(cfg *config.Config) { cfg.AI.ExplainDepth = config.DepthBeginner })

	_, err := f.analyzer.Explain(context.Background(), errorContext("KeyError"), "")
	require.NoError(t, err)
	require.NoError(t, f.store.Update(func(cfg *config.Config) { cfg.AI.ExplainDepth = config.DepthExpert }))
	_, err = f.analyzer.Explain(context.Background(), errorContext("ValueError"), "")
	require.NoError(t, err)

	beginner, expert := <-backend.prompts, <-backend.prompts
	assert.Contains(t, beginner, "new to programming")
	assert.Contains(t, expert, "expert")
}
