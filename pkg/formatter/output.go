package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/helmcode/errfriendly/pkg/pipeline"
)

// Output formats.
const (
	FormatHuman = "human"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// DisplayReport writes the report to w in the given format
func DisplayReport(w io.Writer, report *pipeline.Report, format string) error {
	switch format {
	case FormatJSON:
		return displayJSON(w, report)
	case FormatYAML:
		return displayYAML(w, report)
	case FormatHuman, "":
		displayHuman(w, report)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, json, yaml)", format)
	}
}

func displayJSON(w io.Writer, report *pipeline.Report) error {
	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

func displayYAML(w io.Writer, report *pipeline.Report) error {
	output, err := yaml.Marshal(report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, string(output))
	return err
}

func displayHuman(w io.Writer, report *pipeline.Report) {
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)

	fmt.Fprintln(w)

	if report.AI == nil {
		fmt.Fprintln(w, report.Static)
	} else {
		ai := report.AI
		red.Fprintf(w, "💡 %s: %s\n", report.Category, report.Message)
		fmt.Fprintln(w, wrapText(ai.WhatHappened, 80, "   "))
		fmt.Fprintln(w)

		yellow.Fprintln(w, "🔎 ROOT CAUSE:")
		fmt.Fprintln(w, wrapText(ai.RootCause, 80, "   "))
		fmt.Fprintln(w)

		green.Fprintln(w, "🚀 HOW TO FIX IT:")
		fmt.Fprintf(w, "   Quick:      %s\n", color.GreenString(ai.Fixes.Quick))
		fmt.Fprintf(w, "   Robust:     %s\n", ai.Fixes.Robust)
		fmt.Fprintf(w, "   Preventive: %s\n", ai.Fixes.Preventive)
		fmt.Fprintln(w)

		if len(ai.References) > 0 {
			cyan.Fprintln(w, "📚 REFERENCES:")
			for i, ref := range ai.References {
				fmt.Fprintf(w, "   %d. %s\n", i+1, ref)
			}
			fmt.Fprintln(w)
		}
	}

	if report.Chain != nil && report.Chain.Depth() > 1 {
		fmt.Fprintln(w)
		cyan.Fprintln(w, "🔗 EXCEPTION CHAIN:")
		fmt.Fprintln(w, indent(report.Narrative, "   "))
		fmt.Fprintln(w)
		fmt.Fprintln(w, indent(report.FixStrategy, "   "))
	}

	if len(report.Diagnostics) > 0 {
		fmt.Fprintln(w)
		for _, d := range report.Diagnostics {
			fmt.Fprintf(w, "   %s\n", color.HiBlackString("debug: "+d))
		}
	}

	fmt.Fprintln(w, strings.Repeat("─", 80))
	footer := "explained from static text"
	if report.AI != nil {
		footer = fmt.Sprintf("explained by %s (confidence %.0f%%", report.AI.Backend, report.AI.Confidence*100)
		if report.AI.Cached {
			footer += ", cached"
		}
		footer += ")"
	}
	fmt.Fprintf(w, "💡 %s\n", color.HiBlackString(footer))
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

func wrapText(text string, width int, indent string) string {
	var result strings.Builder
	lines := strings.Split(text, "\n")

	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}

		currentLine := indent
		for _, word := range words {
			if len(currentLine)+len(word)+1 > width {
				result.WriteString(currentLine + "\n")
				currentLine = indent + word
			} else if currentLine == indent {
				currentLine += word
			} else {
				currentLine += " " + word
			}
		}

		if currentLine != indent {
			result.WriteString(currentLine + "\n")
		}
	}

	return strings.TrimSuffix(result.String(), "\n")
}
