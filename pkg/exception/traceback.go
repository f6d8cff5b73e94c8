package exception

import (
	"bufio"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

const (
	tracebackHeader  = "Traceback (most recent call last):"
	causeSeparator   = "The above exception was the direct cause of the following exception:"
	contextSeparator = "During handling of the above exception, another exception occurred:"
)

// ErrNoTraceback is returned when the text holds no recognizable exception.
var ErrNoTraceback = errors.New("no traceback found")

var (
	frameLine     = regexp.MustCompile(`^\s+File "([^"]+)", line (\d+)(?:, in (.+))?$`)
	exceptionLine = regexp.MustCompile(`^([A-Za-z_][\w.]*)(?::\s?(.*))?$`)
	caretLine     = regexp.MustCompile(`^\s*[\^~]+\s*$`)
	repeatedLine  = regexp.MustCompile(`^\s*\[Previous line repeated \d+ more times?\]$`)
	// logLine matches lines a logger wrote after the traceback: timestamps,
	// level markers, logfmt, klog headers and JSON records.
	logLine = regexp.MustCompile(`^(?:\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}` +
		`|\d{2}:\d{2}:\d{2}` +
		`|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec) [ \d]\d \d{2}:\d{2}` +
		`|\[?(?i:TRACE|DEBUG|INFO|WARN|WARNING|ERROR|CRITICAL|FATAL)\]?[\s:]` +
		`|(?:time|ts|level|lvl)=` +
		`|[IWEF]\d{4} \d{2}:\d{2}` +
		`|\{")`)
)

type edge int

const (
	edgeNone edge = iota
	edgeCause
	edgeContext
)

type segment struct {
	link   edge // how this segment relates to the one before it
	frames []Frame
	rec    *Record
}

// ParseTraceback parses Python traceback text and returns the primary
// (last raised) exception of the last traceback group found in text.
func ParseTraceback(text string) (*Record, error) {
	all := ParseTracebacks(text)
	if len(all) == 0 {
		return nil, ErrNoTraceback
	}
	return all[len(all)-1], nil
}

// ParseTracebacks returns the primary exception of every traceback group in
// text, in order of appearance. Groups joined by the chaining separators
// become one linked Record.
func ParseTracebacks(text string) []*Record {
	var (
		groups  [][]*segment
		current []*segment
		seg     *segment
		pending = edgeNone
		lastRec *Record
	)

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
		}
		current = nil
	}
	startSegment := func() {
		if pending == edgeNone {
			flush()
		}
		seg = &segment{link: pending}
		current = append(current, seg)
		pending = edgeNone
		lastRec = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == tracebackHeader:
			startSegment()
			continue
		case trimmed == causeSeparator:
			pending = edgeCause
			seg, lastRec = nil, nil
			continue
		case trimmed == contextSeparator:
			pending = edgeContext
			seg, lastRec = nil, nil
			continue
		case trimmed == "":
			lastRec = nil
			continue
		}

		if m := frameLine.FindStringSubmatch(line); m != nil && seg != nil && seg.rec == nil {
			n, _ := strconv.Atoi(m[2])
			seg.frames = append(seg.frames, Frame{File: m[1], Line: n, Function: m[3]})
			continue
		}
		if line != trimmed {
			// Indented: source line of the previous frame, or noise.
			if seg == nil || seg.rec != nil || len(seg.frames) == 0 {
				continue
			}
			if caretLine.MatchString(line) || repeatedLine.MatchString(line) {
				continue
			}
			f := &seg.frames[len(seg.frames)-1]
			if len(f.Source) == 0 {
				f.Source = []string{trimmed}
				f.SourceStart = f.Line
			}
			continue
		}

		if lastRec != nil && logLine.MatchString(line) {
			lastRec = nil
		}
		if lastRec != nil {
			// Continuation of a multi-line exception message.
			lastRec.Msg += "\n" + line
			continue
		}
		m := exceptionLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if seg == nil || seg.rec != nil {
			if pending == edgeNone {
				// A bare "Type: message" line outside any traceback.
				continue
			}
			startSegment()
		}
		seg.rec = &Record{Type: m[1], Msg: m[2], Frames: seg.frames}
		lastRec = seg.rec
	}
	flush()

	var out []*Record
	for _, g := range groups {
		if rec := link(g); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// link chains the segments of one group and returns the newest exception.
func link(group []*segment) *Record {
	var prev *Record
	for _, s := range group {
		if s.rec == nil {
			continue
		}
		if prev != nil {
			switch s.link {
			case edgeCause:
				s.rec.CauseRec = prev
				s.rec.Suppressed = true
			case edgeContext:
				s.rec.ContextRec = prev
			}
		}
		prev = s.rec
	}
	return prev
}
