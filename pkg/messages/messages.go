// Package messages holds the static explanations shown when no AI
// explanation is available.
package messages

import (
	"fmt"
	"strings"
)

const (
	Banner     = "FRIENDLY ERROR EXPLANATION"
	FixHeading = "How to fix it:"
	rule       = "============================================================"
)

// Entry is a canned explanation for one kind of error.
type Entry struct {
	Title       string
	Explanation string
	Fixes       []string
}

type variant struct {
	contains string
	entry    Entry
}

var variants = map[string][]variant{
	"TypeError": {
		{"not subscriptable", Entry{
			Title:       "You tried to index into a value that does not support it",
			Explanation: "The code used [] on a value that cannot be indexed. When the value is None, a function or lookup that was expected to return a list, dict or string returned None instead.",
			Fixes: []string{
				"Print or log the value just before the failing line to see what it really is.",
				"If it can be None, check for it first: if value is not None: ...",
				"Make sure the function that produced the value returns something on every path.",
			},
		}},
		{"not callable", Entry{
			Title:       "You tried to call something that is not callable",
			Explanation: "The code used () on a value that is not a function, such as a number, a string or None. This often happens when a variable shadows a function with the same name.",
			Fixes: []string{
				"Check that the name really refers to a function at this point.",
				"Look for an assignment that reused the function's name for data.",
				"Remove accidental parentheses after a value that is not a function.",
			},
		}},
	},
}

var entries = map[string]Entry{
	"TypeError": {
		Title:       "An operation received a value of the wrong type",
		Explanation: "A value of one type was used where another type was required, for example adding a string to a number.",
		Fixes: []string{
			"Check the types of the values involved on the failing line.",
			"Convert values explicitly, for example str(n) or int(s).",
		},
	},
	"ValueError": {
		Title:       "A value had the right type but an invalid content",
		Explanation: "The function accepted the type of the argument but not its value, like int(\"abc\") or unpacking the wrong number of items.",
		Fixes: []string{
			"Validate input before converting it, for example with str.isdigit().",
			"Wrap the conversion in try/except ValueError and handle bad input.",
		},
	},
	"KeyError": {
		Title:       "A dictionary key was not found",
		Explanation: "The code looked up a key that is not in the dictionary. Keys are matched exactly, including case and look-alike characters.",
		Fixes: []string{
			"Use dict.get(key, default) when the key may be missing.",
			"Check membership first: if key in mapping: ...",
			"Print mapping.keys() to compare the available keys with the one requested.",
		},
	},
	"IndexError": {
		Title:       "A sequence index was out of range",
		Explanation: "The code asked for a position that does not exist. Indexes start at 0, so the last valid index of a list is len(list) - 1.",
		Fixes: []string{
			"Check the length before indexing: if i < len(items): ...",
			"Iterate with for item in items instead of managing indexes by hand.",
			"Look for an off-by-one error in loop bounds.",
		},
	},
	"AttributeError": {
		Title:       "An object does not have the attribute you asked for",
		Explanation: "The code accessed an attribute or method that does not exist on the object. The object may be of a different type than expected, or None.",
		Fixes: []string{
			"Check the spelling of the attribute name.",
			"Use type(obj) or dir(obj) to see what the object really provides.",
			"If the object can be None, check for it before using it.",
		},
	},
	"ZeroDivisionError": {
		Title:       "A number was divided by zero",
		Explanation: "Division or modulo by zero is undefined. The divisor is often a count or length that turned out to be zero, such as the length of an empty list.",
		Fixes: []string{
			"Check the divisor before dividing: if total != 0: ...",
			"Handle the empty case explicitly when dividing by len(...).",
		},
	},
	"ModuleNotFoundError": {
		Title:       "A module could not be found",
		Explanation: "The import statement names a module that is not installed in the current environment or is misspelled.",
		Fixes: []string{
			"Install the package with pip install <package> in the active environment.",
			"Check that the right virtual environment is active.",
			"Check the spelling of the module name.",
		},
	},
	"ImportError": {
		Title:       "Something could not be imported",
		Explanation: "The module was found but the requested name could not be imported from it, or the module failed while loading.",
		Fixes: []string{
			"Check that the name exists in the installed version of the module.",
			"Look for circular imports between your own modules.",
		},
	},
	"FileNotFoundError": {
		Title:       "A file or directory does not exist",
		Explanation: "The path given to open or a similar call does not point to an existing file. Relative paths are resolved from the current working directory, not from the script's location.",
		Fixes: []string{
			"Print the absolute path with os.path.abspath(path) to see where it points.",
			"Check os.path.exists(path) before opening the file.",
			"Build paths relative to the script with pathlib.Path(__file__).parent.",
		},
	},
	"NameError": {
		Title:       "A name is used before it is defined",
		Explanation: "The code refers to a variable or function that does not exist in the current scope. It may be misspelled or defined later.",
		Fixes: []string{
			"Check the spelling, including upper and lower case.",
			"Define or import the name before using it.",
		},
	},
	"RecursionError": {
		Title:       "The maximum recursion depth was exceeded",
		Explanation: "A function called itself, directly or indirectly, too many times. Usually the base case that stops the recursion is missing or never reached.",
		Fixes: []string{
			"Check that the recursive function has a base case that is reached.",
			"Rewrite deep recursion as a loop.",
		},
	},
	"runtime.Error": {
		Title:       "The Go runtime detected an invalid operation",
		Explanation: "The program performed an operation the Go runtime does not allow, such as a nil pointer dereference, an index out of range or a division by zero.",
		Fixes: []string{
			"Read the panic message and the first frame in your own code.",
			"Check pointers and maps for nil before using them.",
			"Check slice bounds before indexing.",
		},
	},
	"panic": {
		Title:       "The program panicked",
		Explanation: "A panic was raised and not recovered, which stops the goroutine and the program.",
		Fixes: []string{
			"Find the panic call in the first frame of your own code.",
			"Return an error instead of panicking for conditions callers can handle.",
		},
	},
}

var generic = Entry{
	Title:       "An unexpected error occurred",
	Explanation: "The program raised an error of a kind without a specific explanation here. The message and the last frame of the traceback point at what went wrong.",
	Fixes: []string{
		"Read the error message carefully; it usually names the problem.",
		"Start from the last frame of the traceback, which is where the error happened.",
		"Search the documentation for the error type.",
	},
}

// Find returns the entry for category and message. It always returns an
// entry, falling back to a generic one.
func Find(category, message string) Entry {
	base := category
	if i := strings.LastIndex(base, "."); i >= 0 && base != "runtime.Error" {
		base = base[i+1:]
	}
	for _, v := range variants[base] {
		if strings.Contains(message, v.contains) {
			return v.entry
		}
	}
	if e, ok := entries[base]; ok {
		return e
	}
	return generic
}

// Lookup renders the static explanation for category and message.
func Lookup(category, message string) string {
	return Render(category, message, Find(category, message))
}

// Render formats e under the explanation banner.
func Render(category, message string, e Entry) string {
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString(Banner + "\n")
	b.WriteString(rule + "\n\n")
	fmt.Fprintf(&b, "%s: %s\n", category, e.Title)
	if message != "" {
		fmt.Fprintf(&b, "Message: %s\n", message)
	}
	fmt.Fprintf(&b, "\n%s\n\n%s\n", e.Explanation, FixHeading)
	for i, fix := range e.Fixes {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, fix)
	}
	b.WriteString(rule)
	return b.String()
}
