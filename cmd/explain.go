package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/exception"
	"github.com/helmcode/errfriendly/pkg/formatter"
	"github.com/helmcode/errfriendly/pkg/pipeline"
)

// Input kinds of the explain command.
const (
	InputAuto = "auto"
	InputText = "text"
	InputJSON = "json"
)

var (
	inputKind  string
	explainAll bool
)

func NewExplainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain [FILE]",
		Short: "Explain a Python traceback or an exception record",
		Long: `Read a traceback (or a JSON exception record) from FILE or stdin and explain it.

Examples:
  # Explain the traceback in a log file
  errfriendly explain app.log

  # Pipe a crashing script straight in
  python app.py 2>&1 | errfriendly explain

  # Use a specific backend and expert-level explanations
  errfriendly explain crash.txt --backend claude --depth expert

  # Machine-readable output without AI
  errfriendly explain record.json --input json --no-ai -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExplain,
	}

	cmd.Flags().StringVar(&inputKind, "input", InputAuto, "Input kind (auto, text, json)")
	cmd.Flags().BoolVar(&explainAll, "all", false, "Explain every traceback found, not only the last one")

	return cmd
}

func runExplain(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	excs, err := decodeInput(data, inputKind)
	if err != nil {
		return err
	}
	if !explainAll && len(excs) > 1 {
		excs = excs[len(excs)-1:]
	}

	store, err := loadStore(cmd)
	if err != nil {
		return err
	}
	p := newPipeline(store, nil)
	return explainAndDisplay(cmd.Context(), cmd.OutOrStdout(), store, p, excs)
}

func explainAndDisplay(ctx context.Context, w io.Writer, store *config.Store, p *pipeline.Pipeline, excs []exception.Exception) error {
	if ctx == nil {
		ctx = context.Background()
	}
	format := store.Load().Output.Format
	for _, exc := range excs {
		var report *pipeline.Report
		if aiActive(store) {
			s := newSpinner(" Asking " + store.Load().AI.Backend + " for an explanation...")
			s.Start()
			report = p.Explain(ctx, exc)
			s.Stop()
		} else {
			report = p.Explain(ctx, exc)
		}
		if err := formatter.DisplayReport(w, report, format); err != nil {
			return err
		}
	}
	return nil
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return data, nil
}

// decodeInput turns raw input into exception handles, oldest first.
func decodeInput(data []byte, kind string) ([]exception.Exception, error) {
	if kind == InputAuto {
		kind = InputText
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
			kind = InputJSON
		}
	}
	switch kind {
	case InputJSON:
		rec, err := exception.DecodeRecord(data)
		if err != nil {
			return nil, err
		}
		return []exception.Exception{rec}, nil
	case InputText:
		recs := exception.ParseTracebacks(string(data))
		if len(recs) == 0 {
			return nil, exception.ErrNoTraceback
		}
		out := make([]exception.Exception, len(recs))
		for i, r := range recs {
			out[i] = r
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported input kind: %s (supported: auto, text, json)", kind)
	}
}
