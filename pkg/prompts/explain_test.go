package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/model"
)

func sampleContext() *model.ErrorContext {
	return &model.ErrorContext{
		Category: "ZeroDivisionError",
		Message:  "division by zero",
		Frames: []model.FrameInfo{
			{File: "stats.py", Line: 4, Function: "average"},
			{File: "main.py", Line: 10, Function: "<module>"},
		},
		CodeSnippet: []model.SourceLine{
			{Number: 3, Text: "def average(xs):"},
			{Number: 4, Text: "    return sum(xs) / len(xs)", Failing: true},
		},
		Locals:         map[string]string{"xs": "[]"},
		Patterns:       []string{"empty-sequence-division"},
		Imports:        []string{"import math"},
		RuntimeVersion: "3.12.1",
	}
}

func TestBuildExplainPrompt(t *testing.T) {
	prompt, err := BuildExplainPrompt(sampleContext(), "")
	require.NoError(t, err)

	assert.Contains(t, prompt, "Exception: ZeroDivisionError")
	assert.Contains(t, prompt, "Runtime: 3.12.1")
	assert.Contains(t, prompt, ">    4 |     return sum(xs) / len(xs)")
	assert.Contains(t, prompt, "     3 | def average(xs):")
	assert.Contains(t, prompt, `"xs": "[]"`)
	assert.Contains(t, prompt, "Detected patterns: empty-sequence-division")
	assert.Contains(t, prompt, `"what_happened"`)
	assert.NotContains(t, prompt, "part of a chain")
	assert.Less(t, strings.Index(prompt, "stats.py:4"), strings.Index(prompt, "main.py:10"))
}

func TestBuildExplainPrompt_SparseContext(t *testing.T) {
	prompt, err := BuildExplainPrompt(&model.ErrorContext{Category: "KeyError"}, "Exception Chain (cascade, depth 2):")
	require.NoError(t, err)

	assert.Contains(t, prompt, "Message: (none)")
	assert.Contains(t, prompt, "(source not available)")
	assert.Contains(t, prompt, "(none captured)")
	assert.Contains(t, prompt, "This exception is part of a chain:\nException Chain (cascade, depth 2):")
}

func TestSystemPrompt_DepthOnlyChangesSystemPrompt(t *testing.T) {
	beginner := SystemPrompt(config.DepthBeginner)
	expert := SystemPrompt(config.DepthExpert)

	assert.NotEqual(t, beginner, expert)
	assert.True(t, strings.HasPrefix(beginner, systemBase))
	assert.Equal(t, SystemPrompt(config.DepthIntermediate), SystemPrompt("unknown"))
	assert.Contains(t, expert, "terse")
}
