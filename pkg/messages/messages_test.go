package messages

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFind(t *testing.T) {
	tests := []struct {
		name     string
		category string
		message  string
		want     string
	}{
		{name: "plain entry", category: "ZeroDivisionError", message: "division by zero", want: entries["ZeroDivisionError"].Title},
		{name: "message variant", category: "TypeError", message: "'NoneType' object is not subscriptable", want: "You tried to index into a value that does not support it"},
		{name: "variant falls back to entry", category: "TypeError", message: "unsupported operand type(s)", want: entries["TypeError"].Title},
		{name: "module prefix stripped", category: "json.decoder.KeyError", message: "'x'", want: entries["KeyError"].Title},
		{name: "go runtime error kept whole", category: "runtime.Error", message: "index out of range [3] with length 3", want: entries["runtime.Error"].Title},
		{name: "unknown category", category: "pkg.WeirdError", message: "boom", want: generic.Title},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Find(tt.category, tt.message).Title)
		})
	}
}

func TestLookup(t *testing.T) {
	out := Lookup("ZeroDivisionError", "division by zero")

	lines := strings.Split(out, "\n")
	assert.Equal(t, rule, lines[0])
	assert.Equal(t, Banner, lines[1])
	assert.Equal(t, rule, lines[len(lines)-1])
	assert.Contains(t, out, "ZeroDivisionError: "+entries["ZeroDivisionError"].Title)
	assert.Contains(t, out, "Message: division by zero")
	assert.Contains(t, out, FixHeading)
	assert.Contains(t, out, "  1. ")
}

func TestLookup_EveryEntryHasFixes(t *testing.T) {
	for category, e := range entries {
		assert.NotEmpty(t, e.Fixes, category)
		assert.Contains(t, Lookup(category, ""), FixHeading, category)
	}
	assert.NotContains(t, Lookup("SomethingError", ""), "Message:")
}
