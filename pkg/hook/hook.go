// Package hook holds the single process-wide explanation handler. Go has no
// global unhandled-exception callback, so the handler runs where the program
// defers Guard, usually at the top of main and of long-lived goroutines.
package hook

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/helmcode/errfriendly/pkg/exception"
	"github.com/helmcode/errfriendly/pkg/formatter"
	"github.com/helmcode/errfriendly/pkg/pipeline"
)

// Explainer produces reports. *pipeline.Pipeline implements it.
type Explainer interface {
	Explain(ctx context.Context, exc exception.Exception) *pipeline.Report
}

// Options control what the installed handler prints.
type Options struct {
	// ShowOriginalTraceback prints the panic value and stack before the
	// explanation.
	ShowOriginalTraceback bool
	// LogFile, when set, receives a copy of every report in JSON.
	LogFile string
	// Output defaults to os.Stderr.
	Output io.Writer
	// Format is a formatter format; defaults to human.
	Format string
	// Timeout bounds the whole explanation. Zero means no extra bound.
	Timeout time.Duration
}

type state struct {
	explainer Explainer
	opts      Options
}

var (
	mu        sync.Mutex
	installed *state

	// exit terminates the process after a panic was explained.
	exit = os.Exit
)

// Install makes e the process-wide handler, replacing any earlier one.
func Install(e Explainer, opts Options) {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatHuman
	}
	mu.Lock()
	defer mu.Unlock()
	installed = &state{explainer: e, opts: opts}
}

// Uninstall removes the handler. Guard then lets panics propagate as usual.
func Uninstall() {
	mu.Lock()
	defer mu.Unlock()
	installed = nil
}

func IsInstalled() bool {
	mu.Lock()
	defer mu.Unlock()
	return installed != nil
}

func current() *state {
	mu.Lock()
	defer mu.Unlock()
	return installed
}

// Guard explains a panic in the calling goroutine and exits with status 2,
// the status of an unrecovered panic. It must be called directly by defer.
// Without an installed handler the panic continues.
func Guard() {
	r := recover()
	if r == nil {
		return
	}
	s := current()
	if s == nil {
		panic(r)
	}
	stack := debug.Stack()
	if s.opts.ShowOriginalTraceback {
		fmt.Fprintf(s.opts.Output, "panic: %v\n\n%s\n", r, stack)
	}
	s.report(exception.FromPanic(r, stack))
	exit(2)
}

// Handle explains err with the installed handler and reports whether it did.
// It does nothing for a nil error or when no handler is installed.
func Handle(err error) bool {
	if err == nil {
		return false
	}
	s := current()
	if s == nil {
		return false
	}
	if s.opts.ShowOriginalTraceback {
		fmt.Fprintf(s.opts.Output, "error: %+v\n", err)
	}
	s.report(exception.FromError(err))
	return true
}

func (s *state) report(exc exception.Exception) {
	ctx := context.Background()
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	report := s.explainer.Explain(ctx, exc)
	if err := formatter.DisplayReport(s.opts.Output, report, s.opts.Format); err != nil {
		fmt.Fprintln(s.opts.Output, report.Static)
	}
	if s.opts.LogFile != "" {
		if err := appendLog(s.opts.LogFile, report); err != nil {
			fmt.Fprintf(s.opts.Output, "errfriendly: could not write log file: %v\n", err)
		}
	}
}

func appendLog(path string, report *pipeline.Report) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := formatter.DisplayReport(f, report, formatter.FormatJSON); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
