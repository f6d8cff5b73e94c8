package exception

// Frame is one captured stack frame. Source holds lines captured at raise
// time (SourceStart is the line number of Source[0]); it may be empty, in
// which case the inspector reads the file itself.
type Frame struct {
	File        string         `json:"file" yaml:"file"`
	Line        int            `json:"line" yaml:"line"`
	Function    string         `json:"function" yaml:"function"`
	Source      []string       `json:"source,omitempty" yaml:"source,omitempty"`
	SourceStart int            `json:"source_start,omitempty" yaml:"source_start,omitempty"`
	Locals      map[string]any `json:"locals,omitempty" yaml:"locals,omitempty"`
}

// Exception is the opaque handle the analyzer walks.
type Exception interface {
	Category() string
	Message() string
	// Cause is the explicit "raised from" exception, or nil.
	Cause() Exception
	// Context is the exception being handled when this one was raised, or nil.
	Context() Exception
	// SuppressContext reports whether Context was explicitly suppressed.
	SuppressContext() bool
	// Traceback returns frames ordered from the outermost call to the failure site.
	Traceback() []Frame
}

// RuntimeInfo is implemented by handles that know which runtime produced them.
type RuntimeInfo interface {
	RuntimeVersion() string
}

// RuntimeOf returns the runtime version of exc, or "unknown".
func RuntimeOf(exc Exception) string {
	if ri, ok := exc.(RuntimeInfo); ok {
		if v := ri.RuntimeVersion(); v != "" {
			return v
		}
	}
	return "unknown"
}
