package inspector

import (
	"bufio"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/exception"
	"github.com/helmcode/errfriendly/pkg/model"
)

// Placeholders substituted for values that cannot be shown.
const (
	Unrepresentable = "<unrepresentable>"
	Redacted        = "<redacted>"
)

// maxSourceBytes bounds how much of a file is read for a snippet.
const maxSourceBytes = 2 << 20

// SourceReader returns the lines of a file. Implementations must not fail
// loudly: a missing file is reported as an error and the snippet is skipped.
type SourceReader interface {
	ReadLines(path string) ([]string, error)
}

// FileReader reads source files from the local filesystem.
type FileReader struct{}

func (FileReader) ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		lines []string
		read  int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		read += len(scanner.Bytes()) + 1
		if read > maxSourceBytes {
			break
		}
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// Inspector turns captured frames into bounded FrameInfo values.
type Inspector struct {
	store  *config.Store
	reader SourceReader
}

// New returns an Inspector. A nil reader disables reading files from disk.
func New(store *config.Store, reader SourceReader) *Inspector {
	return &Inspector{store: store, reader: reader}
}

// Inspect never fails; anything it cannot read is left out.
func (i *Inspector) Inspect(frame exception.Frame) model.FrameInfo {
	cfg := i.store.Load()
	return model.FrameInfo{
		File:     frame.File,
		Line:     frame.Line,
		Function: frame.Function,
		Locals:   i.locals(cfg, frame.Locals),
		Snippet:  i.snippet(cfg, frame),
	}
}

func (i *Inspector) snippet(cfg *config.Config, frame exception.Frame) []model.SourceLine {
	if frame.Line <= 0 {
		return nil
	}
	window := cfg.Context.MaxLines
	lines, start := frame.Source, frame.SourceStart
	if start <= 0 {
		start = frame.Line
	}
	if len(lines) < window && i.reader != nil && frame.File != "" && !strings.HasPrefix(frame.File, "<") {
		if fileLines, err := i.reader.ReadLines(frame.File); err == nil && frame.Line <= len(fileLines) {
			lines, start = fileLines, 1
		}
	}
	return Window(lines, start, frame.Line, window)
}

// Window returns at most size lines of src centered on line. src[0] is line
// number first. The window is clipped at both ends of src.
func Window(src []string, first, line, size int) []model.SourceLine {
	if len(src) == 0 || size <= 0 || line < first || line >= first+len(src) {
		return nil
	}
	lo := line - (size-1)/2
	hi := lo + size - 1
	if lo < first {
		hi += first - lo
		lo = first
	}
	if last := first + len(src) - 1; hi > last {
		lo -= hi - last
		hi = last
		if lo < first {
			lo = first
		}
	}
	out := make([]model.SourceLine, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		out = append(out, model.SourceLine{Number: n, Text: src[n-first], Failing: n == line})
	}
	return out
}

func (i *Inspector) locals(cfg *config.Config, vars map[string]any) map[string]string {
	if !cfg.Privacy.IncludeLocals || len(vars) == 0 {
		return nil
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if max := cfg.Context.MaxLocals; max > 0 && len(names) > max {
		names = names[:max]
	}

	redact := redactor(cfg.Privacy.RedactPatterns)
	out := make(map[string]string, len(names))
	for _, name := range names {
		if redact != nil && redact.MatchString(name) {
			out[name] = Redacted
			continue
		}
		out[name] = StringifyN(vars[name], cfg.Context.MaxValueLength)
	}
	return out
}

func redactor(patterns []string) *regexp.Regexp {
	if len(patterns) == 0 {
		return nil
	}
	re, err := regexp.Compile("(?i)(" + strings.Join(patterns, "|") + ")")
	if err != nil {
		return nil
	}
	return re
}

// Truncate bounds s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-3]) + "..."
}
