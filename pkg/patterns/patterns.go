package patterns

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/helmcode/errfriendly/pkg/model"
)

// Built-in tags.
const (
	NoneSubscript         = "none-subscript"
	NoneAttribute         = "none-attribute"
	NotCallable           = "not-callable"
	OffByOne              = "off-by-one"
	TypeConfusion         = "type-confusion"
	MissingKey            = "missing-key"
	EmptySequenceDivision = "empty-sequence-division"
	UnicodeLookalike      = "unicode-lookalike"
	IntParse              = "int-parse"
	MissingModule         = "missing-module"
	MissingFile           = "missing-file"
	UndefinedName         = "undefined-name"
	RecursionLimit        = "recursion-limit"
	CleanupFailure        = "cleanup-failure"
	NilDereference        = "nil-dereference"
)

// Input is what a rule sees.
type Input struct {
	Category string
	Message  string
	Frame    model.FrameInfo
}

// Rule is a pure predicate that tags one failure pattern.
type Rule struct {
	Tag   string
	Match func(Input) bool
}

// Detector runs every registered rule and unions the matching tags.
type Detector struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewDetector returns a Detector loaded with the built-in rules.
func NewDetector() *Detector {
	return &Detector{rules: builtin()}
}

// Register adds a rule. Rules have no precedence over each other.
func (d *Detector) Register(r Rule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rules = append(d.rules, r)
}

// Detect returns the sorted set of tags whose rule matched.
func (d *Detector) Detect(in Input) []string {
	d.mu.RLock()
	rules := d.rules
	d.mu.RUnlock()

	set := make(map[string]struct{})
	for _, r := range rules {
		if safeMatch(r, in) {
			set[r.Tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func safeMatch(r Rule, in Input) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return r.Match(in)
}

// BaseCategory strips a module path: "json.decoder.JSONDecodeError" becomes
// "JSONDecodeError".
func BaseCategory(category string) string {
	if i := strings.LastIndex(category, "."); i >= 0 && i < len(category)-1 {
		return category[i+1:]
	}
	return category
}

// Failing returns the text of the failing line of the frame snippet.
func Failing(f model.FrameInfo) string {
	for _, l := range f.Snippet {
		if l.Failing {
			return strings.TrimSpace(l.Text)
		}
	}
	return ""
}

var (
	offByOneCode  = regexp.MustCompile(`(\[\s*len\([^)]*\)\s*\]|range\([^)]*len\([^)]*\)\s*\+\s*1\)|<=\s*len\()`)
	typeMismatch  = regexp.MustCompile(`(unsupported operand type|can only concatenate|must be str, not|must be (real )?number|not supported between instances|can't multiply sequence|expected \w+, got \w+)`)
	divisionByLen = regexp.MustCompile(`/\s*len\(`)
	cleanupFuncs  = map[string]bool{
		"__exit__": true, "__aexit__": true, "__del__": true, "close": true, "aclose": true,
		"cleanup": true, "teardown": true, "tearDown": true, "release": true, "dispose": true,
		"shutdown": true, "Close": true, "Shutdown": true, "Release": true,
	}
)

func builtin() []Rule {
	return []Rule{
		{Tag: NoneSubscript, Match: func(in Input) bool {
			return strings.Contains(in.Message, "'NoneType' object is not subscriptable")
		}},
		{Tag: NoneAttribute, Match: func(in Input) bool {
			return strings.Contains(in.Message, "'NoneType' object has no attribute")
		}},
		{Tag: NotCallable, Match: func(in Input) bool {
			return strings.Contains(in.Message, "object is not callable")
		}},
		{Tag: OffByOne, Match: func(in Input) bool {
			if BaseCategory(in.Category) != "IndexError" && !strings.Contains(in.Message, "index out of range") {
				return false
			}
			return offByOneCode.MatchString(Failing(in.Frame)) || strings.Contains(in.Message, "out of range [")
		}},
		{Tag: TypeConfusion, Match: func(in Input) bool {
			return BaseCategory(in.Category) == "TypeError" && typeMismatch.MatchString(in.Message)
		}},
		{Tag: MissingKey, Match: func(in Input) bool {
			return BaseCategory(in.Category) == "KeyError"
		}},
		{Tag: EmptySequenceDivision, Match: func(in Input) bool {
			return BaseCategory(in.Category) == "ZeroDivisionError" && divisionByLen.MatchString(Failing(in.Frame))
		}},
		{Tag: UnicodeLookalike, Match: func(in Input) bool {
			if BaseCategory(in.Category) != "KeyError" && BaseCategory(in.Category) != "NameError" && BaseCategory(in.Category) != "AttributeError" {
				return false
			}
			return mixedScripts(in.Message) || mixedScripts(Failing(in.Frame))
		}},
		{Tag: IntParse, Match: func(in Input) bool {
			return strings.Contains(in.Message, "invalid literal for int()") || strings.Contains(in.Message, "strconv.Atoi")
		}},
		{Tag: MissingModule, Match: func(in Input) bool {
			c := BaseCategory(in.Category)
			return c == "ModuleNotFoundError" || (c == "ImportError" && strings.Contains(in.Message, "No module named"))
		}},
		{Tag: MissingFile, Match: func(in Input) bool {
			return BaseCategory(in.Category) == "FileNotFoundError" || strings.Contains(in.Message, "no such file or directory")
		}},
		{Tag: UndefinedName, Match: func(in Input) bool {
			return BaseCategory(in.Category) == "NameError" && strings.Contains(in.Message, "is not defined")
		}},
		{Tag: RecursionLimit, Match: func(in Input) bool {
			return BaseCategory(in.Category) == "RecursionError" || strings.Contains(in.Message, "maximum recursion depth")
		}},
		{Tag: CleanupFailure, Match: func(in Input) bool {
			fn := in.Frame.Function
			if i := strings.LastIndex(fn, "."); i >= 0 {
				fn = fn[i+1:]
			}
			if cleanupFuncs[fn] {
				return true
			}
			switch BaseCategory(in.Category) {
			case "ResourceWarning", "BrokenPipeError":
				return true
			}
			return false
		}},
		{Tag: NilDereference, Match: func(in Input) bool {
			return strings.Contains(in.Message, "nil pointer dereference")
		}},
	}
}

// mixedScripts reports whether s has a word mixing Latin letters with
// look-alike letters from another script.
func mixedScripts(s string) bool {
	for _, word := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) && r != '_' }) {
		var latin, other bool
		for _, r := range word {
			switch {
			case unicode.In(r, unicode.Latin):
				latin = true
			case unicode.In(r, unicode.Cyrillic, unicode.Greek):
				other = true
			}
		}
		if latin && other {
			return true
		}
	}
	return false
}
