package formatter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/helmcode/errfriendly/pkg/chain"
	"github.com/helmcode/errfriendly/pkg/model"
	"github.com/helmcode/errfriendly/pkg/pipeline"
)

func init() {
	color.NoColor = true
}

func staticReport() *pipeline.Report {
	return &pipeline.Report{
		ID:       "r-1",
		Category: "KeyError",
		Message:  "'port'",
		Chain:    &chain.Chain{Links: []chain.Link{{Category: "KeyError", Message: "'port'"}}, Type: chain.Simple, FixPriority: []int{0}},
		Static:   "FRIENDLY ERROR EXPLANATION\nKeyError: A dictionary key was not found",
		Source:   "static",
	}
}

func aiReport() *pipeline.Report {
	r := staticReport()
	r.Chain = &chain.Chain{
		Links: []chain.Link{
			{Index: 0, Category: "ConfigError", Edge: chain.EdgeCause},
			{Index: 1, Category: "KeyError"},
		},
		Type:        chain.Wrapper,
		FixPriority: []int{1, 0},
	}
	r.Narrative = "Exception Chain (wrapper, depth 2):\n(1) First, KeyError occurred"
	r.FixStrategy = "Fix Strategy:\n  Start with (1) KeyError."
	r.AI = &model.AIExplanation{
		WhatHappened: "The settings dict has no port entry.",
		RootCause:    "settings.yaml omits port.",
		Confidence:   0.8,
		Fixes:        model.Fixes{Quick: "cfg.get('port', 8080)", Robust: "validate config", Preventive: "schema test"},
		References:   []string{"https://docs.python.org/3/library/stdtypes.html#dict.get"},
		Backend:      "claude",
		Cached:       true,
	}
	r.Source = "cache"
	r.Diagnostics = []string{"ai: served from cache"}
	return r
}

func TestDisplayReport_HumanStatic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DisplayReport(&buf, staticReport(), FormatHuman))

	out := buf.String()
	assert.Contains(t, out, "FRIENDLY ERROR EXPLANATION")
	assert.Contains(t, out, "explained from static text")
	assert.NotContains(t, out, "EXCEPTION CHAIN")
	assert.NotContains(t, out, "ROOT CAUSE")
}

func TestDisplayReport_HumanAI(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DisplayReport(&buf, aiReport(), ""))

	out := buf.String()
	assert.Contains(t, out, "💡 KeyError: 'port'")
	assert.Contains(t, out, "🔎 ROOT CAUSE:")
	assert.Contains(t, out, "   Robust:     validate config")
	assert.Contains(t, out, "1. https://docs.python.org/3/library/stdtypes.html#dict.get")
	assert.Contains(t, out, "🔗 EXCEPTION CHAIN:")
	assert.Contains(t, out, "   Fix Strategy:")
	assert.Contains(t, out, "debug: ai: served from cache")
	assert.Contains(t, out, "explained by claude (confidence 80%, cached)")
	assert.NotContains(t, out, "FRIENDLY ERROR EXPLANATION")
}

func TestDisplayReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DisplayReport(&buf, aiReport(), FormatJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "cache", decoded["source"])
	links := decoded["chain"].(map[string]any)["links"].([]any)
	assert.Equal(t, "cause", links[0].(map[string]any)["edge"])
	assert.Equal(t, true, decoded["ai"].(map[string]any)["cached"])
}

func TestDisplayReport_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DisplayReport(&buf, staticReport(), FormatYAML))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "KeyError", decoded["category"])
	assert.NotContains(t, buf.String(), "ai:")
}

func TestDisplayReport_UnsupportedFormat(t *testing.T) {
	err := DisplayReport(&bytes.Buffer{}, staticReport(), "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestWrapText(t *testing.T) {
	out := wrapText(strings.Repeat("word ", 30), 20, "  ")
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(line), 20)
		assert.True(t, strings.HasPrefix(line, "  "))
	}
	assert.Equal(t, "  a\n\n  b", wrapText("a\n\nb", 20, "  "))
}
