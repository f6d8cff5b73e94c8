package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/model"
)

const systemBase = `You explain runtime exceptions to developers. Answer only with a single JSON object, no prose around it.`

var depthInstructions = map[string]string{
	config.DepthBeginner: `The reader is new to programming. Use plain words, avoid jargon, define any technical term you must use, and keep each field short and encouraging.`,
	config.DepthIntermediate: `The reader is a working developer. Be direct and concrete, name the language feature involved, and keep each field to a few sentences.`,
	config.DepthExpert: `The reader is an expert. Be terse and precise, use exact terminology, mention runtime internals when they matter, and skip basics.`,
}

// SystemPrompt returns the system prompt for the given explanation depth.
func SystemPrompt(depth string) string {
	instr, ok := depthInstructions[depth]
	if !ok {
		instr = depthInstructions[config.DepthIntermediate]
	}
	return systemBase + "\n" + instr
}

// BuildExplainPrompt builds the user prompt for one error context. narrative
// is the exception-chain narrative and may be empty.
func BuildExplainPrompt(ectx *model.ErrorContext, narrative string) (string, error) {
	locals := "(none captured)"
	if len(ectx.Locals) > 0 {
		localsJSON, err := json.MarshalIndent(ectx.Locals, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal locals: %w", err)
		}
		locals = string(localsJSON)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "An unhandled exception was raised.\n\nException: %s\nMessage: %s\nRuntime: %s\n",
		ectx.Category, orNone(ectx.Message), orNone(ectx.RuntimeVersion))

	if len(ectx.Frames) > 0 {
		b.WriteString("\nStack (most recent call first):\n")
		for _, f := range ectx.Frames {
			fmt.Fprintf(&b, "  %s:%d in %s\n", f.File, f.Line, orNone(f.Function))
		}
	}

	b.WriteString("\nCode at the failure site:\n")
	if len(ectx.CodeSnippet) == 0 {
		b.WriteString("  (source not available)\n")
	}
	for _, l := range ectx.CodeSnippet {
		marker := "  "
		if l.Failing {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%4d | %s\n", marker, l.Number, l.Text)
	}

	fmt.Fprintf(&b, "\nLocal variables at the failure site:\n%s\n", locals)

	if len(ectx.Patterns) > 0 {
		tags := append([]string(nil), ectx.Patterns...)
		sort.Strings(tags)
		fmt.Fprintf(&b, "\nDetected patterns: %s\n", strings.Join(tags, ", "))
	}
	if len(ectx.Imports) > 0 {
		fmt.Fprintf(&b, "\nImports of the failing module:\n  %s\n", strings.Join(ectx.Imports, "\n  "))
	}
	if len(ectx.ProjectFiles) > 0 {
		fmt.Fprintf(&b, "\nProject files: %s\n", strings.Join(ectx.ProjectFiles, ", "))
	}
	if ectx.RecentChanges != "" {
		fmt.Fprintf(&b, "\nRecent uncommitted changes to the failing file:\n%s\n", ectx.RecentChanges)
	}
	if narrative != "" {
		fmt.Fprintf(&b, "\nThis exception is part of a chain:\n%s\n", narrative)
	}

	b.WriteString(`
Respond in JSON format with this structure:
{
  "what_happened": "what the exception means in this specific code",
  "root_cause": "why it happened here, pointing at the responsible line or value",
  "confidence": 0.0,
  "fixes": {
    "quick": "smallest change that stops the crash",
    "robust": "a fix that handles the underlying condition properly",
    "preventive": "how to keep this class of error from coming back"
  },
  "references": ["documentation links or topics worth reading"]
}

confidence is your certainty between 0 and 1. Every field except references is required.`)
	return b.String(), nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
