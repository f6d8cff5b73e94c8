package exception

import (
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// FromError converts a Go error into a Record. Each unwrap step becomes an
// explicit cause; for errors.Join and multi-%w errors the first joined error
// is followed. Stacks recorded by github.com/pkg/errors are carried over as
// frames, and its internal withStack layers are folded into the link that
// carries the message instead of showing up as links of their own.
func FromError(err error) *Record {
	if err == nil {
		return nil
	}
	var (
		head, prev *Record
		pending    []Frame
		seen       = 0
	)
	for e := err; e != nil && seen < 64; e = unwrapOnce(e) {
		seen++
		if pkgErrorsType(e) == "withStack" {
			if pending == nil {
				pending = stackFrames(e)
			}
			continue
		}
		rec := &Record{
			Type:    errorCategory(e),
			Msg:     e.Error(),
			Runtime: runtime.Version(),
			Frames:  stackFrames(e),
		}
		if len(rec.Frames) == 0 {
			rec.Frames = pending
		}
		pending = nil
		if head == nil {
			head = rec
		} else {
			prev.CauseRec = rec
			prev.Suppressed = true
		}
		prev = rec
	}
	if head == nil {
		// Nothing but stack layers within the step bound.
		head = &Record{Type: errorCategory(err), Msg: err.Error(), Runtime: runtime.Version(), Frames: pending}
	}
	return head
}

func unwrapOnce(err error) error {
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return u.Unwrap()
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if e != nil {
				return e
			}
		}
	}
	return nil
}

// pkgErrorsType returns the unexported type name of a github.com/pkg/errors
// value, or "".
func pkgErrorsType(err error) string {
	t := reflect.TypeOf(err)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() != "github.com/pkg/errors" {
		return ""
	}
	return t.Name()
}

// FromPanic converts a recovered panic value and the output of
// runtime/debug.Stack into a Record. If the value is an error, its wrap
// chain becomes the explicit cause chain.
func FromPanic(recovered any, stack []byte) *Record {
	var rec *Record
	if err, ok := recovered.(error); ok {
		rec = FromError(err)
	} else {
		rec = &Record{Type: "panic", Msg: fmt.Sprint(recovered), Runtime: runtime.Version()}
	}
	if rec == nil {
		rec = &Record{Type: "panic", Msg: "nil", Runtime: runtime.Version()}
	}
	if frames := ParseGoStack(string(stack)); len(frames) > 0 {
		rec.Frames = frames
	}
	return rec
}

func errorCategory(err error) string {
	if _, ok := err.(runtime.Error); ok {
		return "runtime.Error"
	}
	switch pkgErrorsType(err) {
	case "fundamental":
		return "errors.New"
	case "withMessage":
		return "errors.Wrap"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

func stackFrames(err error) []Frame {
	st, ok := err.(stackTracer)
	if !ok {
		return nil
	}
	trace := st.StackTrace()
	frames := make([]Frame, 0, len(trace))
	// pkg/errors orders frames innermost first.
	for i := len(trace) - 1; i >= 0; i-- {
		f := trace[i]
		file := strings.TrimSpace(fmt.Sprintf("%+s", f))
		if idx := strings.LastIndex(file, "\n\t"); idx >= 0 {
			file = file[idx+2:]
		}
		line, _ := strconv.Atoi(fmt.Sprintf("%d", f))
		frames = append(frames, Frame{
			File:     file,
			Line:     line,
			Function: fmt.Sprintf("%n", f),
		})
	}
	return frames
}

var goStackLocation = regexp.MustCompile(`^\t(.+\.go):(\d+)(?: \+0x[0-9a-f]+)?$`)

// ParseGoStack parses one goroutine dump (runtime/debug.Stack output) into
// frames ordered from the outermost call to the panic site. Runtime and
// debug frames are dropped.
func ParseGoStack(stack string) []Frame {
	lines := strings.Split(stack, "\n")
	var innermostFirst []Frame
	for i := 0; i+1 < len(lines); i++ {
		fn := lines[i]
		m := goStackLocation.FindStringSubmatch(lines[i+1])
		if m == nil || strings.HasPrefix(fn, "\t") || strings.HasPrefix(fn, "goroutine ") || strings.HasPrefix(fn, "created by ") {
			continue
		}
		i++
		if idx := strings.LastIndex(fn, "("); idx > 0 {
			fn = fn[:idx]
		}
		if strings.HasPrefix(fn, "runtime.") || strings.HasPrefix(fn, "runtime/debug.") || fn == "panic" {
			continue
		}
		n, _ := strconv.Atoi(m[2])
		innermostFirst = append(innermostFirst, Frame{File: m[1], Line: n, Function: fn})
	}
	frames := make([]Frame, 0, len(innermostFirst))
	for i := len(innermostFirst) - 1; i >= 0; i-- {
		frames = append(frames, innermostFirst[i])
	}
	return frames
}
