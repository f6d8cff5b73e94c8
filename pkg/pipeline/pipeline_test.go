package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmcode/errfriendly/pkg/chain"
	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/exception"
	"github.com/helmcode/errfriendly/pkg/llm"
	"github.com/helmcode/errfriendly/pkg/messages"
	"github.com/helmcode/errfriendly/pkg/metrics"
)

const zeroDivision = `Traceback (most recent call last):
  File "/app/stats.py", line 10, in <module>
    print(average([]))
  File "/app/stats.py", line 4, in average
    return sum(xs) / len(xs)
ZeroDivisionError: division by zero
`

const cascade = `Traceback (most recent call last):
  File "/app/users.py", line 8, in lookup
    return users[name]
KeyError: 'bob'

During handling of the above exception, another exception occurred:

Traceback (most recent call last):
  File "/app/users.py", line 12, in handler
    raise ValueError("unknown user")
ValueError: unknown user
`

const answer = `{"what_happened":"average() divided by len([])","root_cause":"the list is empty","confidence":0.85,
"fixes":{"quick":"return 0 for empty lists","robust":"raise a clear ValueError","preventive":"test empty input"}}`

type stubBackend struct {
	mu      sync.Mutex
	answer  string
	block   bool
	calls   int
	prompts []string
}

func (b *stubBackend) Name() string      { return "stub" }
func (b *stubBackend) IsAvailable() bool { return true }

func (b *stubBackend) Generate(ctx context.Context, prompt, _ string) (string, error) {
	b.mu.Lock()
	b.calls++
	b.prompts = append(b.prompts, prompt)
	b.mu.Unlock()
	if b.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return b.answer, nil
}

func (b *stubBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type stubSelector struct{ backend llm.Backend }

func (s stubSelector) Select(*config.Config) (llm.Backend, error) { return s.backend, nil }

func aiStore(t *testing.T, mutate func(*config.Config)) *config.Store {
	t.Helper()
	store := config.MustStore(nil)
	require.NoError(t, store.Update(func(cfg *config.Config) {
		cfg.AI.Enabled = true
		cfg.AI.Backend = config.BackendClaude
		if mutate != nil {
			mutate(cfg)
		}
	}))
	return store
}

func parse(t *testing.T, text string) *exception.Record {
	t.Helper()
	rec, err := exception.ParseTraceback(text)
	require.NoError(t, err)
	return rec
}

func TestExplain_StaticOnly(t *testing.T) {
	p := New(config.MustStore(nil))

	r := p.Explain(context.Background(), parse(t, zeroDivision))

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "ZeroDivisionError", r.Category)
	assert.Equal(t, "division by zero", r.Message)
	assert.Equal(t, chain.Simple, r.Chain.Type)
	assert.Equal(t, metrics.SourceStatic, r.Source)
	assert.Nil(t, r.AI)
	assert.Contains(t, r.Static, messages.Banner)
	assert.Contains(t, r.Static, messages.FixHeading)
	assert.Empty(t, r.Diagnostics)
}

func TestExplain_AIThenCache(t *testing.T) {
	backend := &stubBackend{answer: answer}
	m := metrics.New()
	p := New(aiStore(t, nil), WithSelector(stubSelector{backend}), WithMetrics(m))

	first := p.Explain(context.Background(), parse(t, zeroDivision))
	require.NotNil(t, first.AI)
	assert.Equal(t, metrics.SourceAI, first.Source)
	assert.Equal(t, "stub", first.AI.Backend)
	assert.Contains(t, first.Static, messages.Banner, "the static explanation is always present")

	second := p.Explain(context.Background(), parse(t, zeroDivision))
	assert.Equal(t, metrics.SourceCache, second.Source)
	assert.True(t, second.AI.Cached)
	assert.Equal(t, 1, backend.callCount())
	assert.NotEqual(t, first.ID, second.ID)

	assert.NotContains(t, backend.prompts[0], "part of a chain")
}

func TestExplain_BackendTimeoutFallsBack(t *testing.T) {
	backend := &stubBackend{block: true}
	p := New(aiStore(t, func(cfg *config.Config) {
		cfg.AI.Timeout = 20 * time.Millisecond
		cfg.Debug = true
	}), WithSelector(stubSelector{backend}))

	r := p.Explain(context.Background(), parse(t, zeroDivision))
	assert.Equal(t, metrics.SourceStatic, r.Source)
	assert.Nil(t, r.AI)
	assert.Contains(t, r.Static, messages.Banner)
	require.Len(t, r.Diagnostics, 1)
	assert.True(t, strings.HasPrefix(r.Diagnostics[0], "ai: "))

	// Nothing was cached, so the backend is tried again.
	p.Explain(context.Background(), parse(t, zeroDivision))
	assert.Equal(t, 2, backend.callCount())
}

func TestExplain_ChainNarrativeReachesBackend(t *testing.T) {
	backend := &stubBackend{answer: answer}
	p := New(aiStore(t, nil), WithSelector(stubSelector{backend}))

	r := p.Explain(context.Background(), parse(t, cascade))
	assert.Equal(t, chain.Cascade, r.Chain.Type)
	assert.Equal(t, "ValueError", r.Category)
	assert.Contains(t, r.Narrative, "(1) First, KeyError occurred")
	assert.Contains(t, r.FixStrategy, "Start with (1) KeyError")

	require.Len(t, backend.prompts, 1)
	assert.Contains(t, backend.prompts[0], "Exception: ValueError")
	assert.Contains(t, backend.prompts[0], "This exception is part of a chain")
}

func TestExplain_NilException(t *testing.T) {
	r := New(config.MustStore(nil)).Explain(context.Background(), nil)
	assert.Equal(t, "UnknownError", r.Category)
	assert.Contains(t, r.Static, messages.Banner)
	assert.Equal(t, metrics.SourceStatic, r.Source)
}

func TestExplainError(t *testing.T) {
	p := New(config.MustStore(nil))
	r := p.ExplainError(context.Background(), fmt.Errorf("open config: %w", errors.New("permission denied")))

	assert.Equal(t, "fmt.wrapError", r.Category)
	assert.Equal(t, 2, r.Chain.Depth())
	assert.Equal(t, chain.Wrapper, r.Chain.Type)

	assert.Equal(t, "UnknownError", p.ExplainError(context.Background(), nil).Category)
}
