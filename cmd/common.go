package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/metrics"
	"github.com/helmcode/errfriendly/pkg/pipeline"
)

// DefaultConfigFile is read from the working directory when present.
const DefaultConfigFile = "errfriendly.yaml"

var (
	configPath   string
	llmProvider  string
	llmModel     string
	explainDepth string
	outputFormat string
	aiTimeout    time.Duration
	noAI         bool
	debugMode    bool
	verbose      bool

	logger = zap.NewNop()
)

// AddGlobalFlags registers the flags shared by every subcommand and the
// logger lifecycle on root.
func AddGlobalFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", DefaultConfigFile, "Path to the configuration file")
	pf.StringVar(&llmProvider, "backend", "", "AI backend (none, claude, openai, gemini, ollama)")
	pf.StringVar(&llmModel, "model", "", "LLM model to use (overrides default)")
	pf.StringVar(&explainDepth, "depth", "", "Explanation depth (beginner, intermediate, expert)")
	pf.StringVarP(&outputFormat, "output", "o", "", "Output format (human, json, yaml)")
	pf.DurationVar(&aiTimeout, "timeout", 0, "Timeout of one AI call (e.g. 10s)")
	pf.BoolVar(&noAI, "no-ai", false, "Only show the static explanation")
	pf.BoolVar(&debugMode, "debug", false, "Attach diagnostics to reports")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// loadStore reads the configuration file and applies command-line
// overrides on top of it.
func loadStore(cmd *cobra.Command) (*config.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.AI.Backend = llmProvider
		cfg.AI.Enabled = llmProvider != config.BackendNone
	}
	if llmModel != "" {
		cfg.AI.Model = llmModel
	}
	if explainDepth != "" {
		cfg.AI.ExplainDepth = explainDepth
	}
	if outputFormat != "" {
		cfg.Output.Format = outputFormat
	}
	if aiTimeout > 0 {
		cfg.AI.Timeout = aiTimeout
	}
	if noAI {
		cfg.AI.Enabled = false
	}
	if debugMode {
		cfg.Debug = true
	}
	return config.NewStore(cfg)
}

func newPipeline(store *config.Store, m *metrics.Metrics, opts ...pipeline.Option) *pipeline.Pipeline {
	opts = append([]pipeline.Option{pipeline.WithLogger(logger), pipeline.WithMetrics(m)}, opts...)
	return pipeline.New(store, opts...)
}

// aiActive reports whether explaining will contact a backend.
func aiActive(store *config.Store) bool {
	cfg := store.Load()
	return cfg.AI.Enabled && cfg.AI.Backend != config.BackendNone
}

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	return s
}

func printSuccess(msg string) {
	green := color.New(color.FgGreen)
	green.Fprintf(os.Stderr, "✓ %s\n", msg)
}

func printWarning(msg string) {
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(os.Stderr, "! %s\n", msg)
}
