package model

// SourceLine is one line of a source snippet.
type SourceLine struct {
	Number  int    `json:"number" yaml:"number"`
	Text    string `json:"text" yaml:"text"`
	Failing bool   `json:"failing,omitempty" yaml:"failing,omitempty"`
}

// FrameInfo is the bounded, stringified view of one stack frame.
type FrameInfo struct {
	File     string            `json:"file" yaml:"file"`
	Line     int               `json:"line" yaml:"line"`
	Function string            `json:"function" yaml:"function"`
	Locals   map[string]string `json:"locals,omitempty" yaml:"locals,omitempty"`
	Snippet  []SourceLine      `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// ErrorContext is everything collected about one exception. It holds only
// copies and strings, never live runtime values.
type ErrorContext struct {
	Category       string            `json:"category" yaml:"category"`
	Message        string            `json:"message" yaml:"message"`
	Frames         []FrameInfo       `json:"frames" yaml:"frames"`
	CodeSnippet    []SourceLine      `json:"code_snippet,omitempty" yaml:"code_snippet,omitempty"`
	Locals         map[string]string `json:"locals,omitempty" yaml:"locals,omitempty"`
	Imports        []string          `json:"imports,omitempty" yaml:"imports,omitempty"`
	ProjectFiles   []string          `json:"project_files,omitempty" yaml:"project_files,omitempty"`
	RecentChanges  string            `json:"recent_changes,omitempty" yaml:"recent_changes,omitempty"`
	Patterns       []string          `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	RuntimeVersion string            `json:"runtime_version" yaml:"runtime_version"`
}

// FailureFrame returns the most recent frame, if any.
func (c *ErrorContext) FailureFrame() (FrameInfo, bool) {
	if c == nil || len(c.Frames) == 0 {
		return FrameInfo{}, false
	}
	return c.Frames[0], true
}

// Fixes holds the three fix variants of an explanation.
type Fixes struct {
	Quick      string `json:"quick" yaml:"quick"`
	Robust     string `json:"robust" yaml:"robust"`
	Preventive string `json:"preventive" yaml:"preventive"`
}

// AIExplanation is a parsed backend answer.
type AIExplanation struct {
	WhatHappened string   `json:"what_happened" yaml:"what_happened"`
	RootCause    string   `json:"root_cause" yaml:"root_cause"`
	Confidence   float64  `json:"confidence" yaml:"confidence"`
	Fixes        Fixes    `json:"fixes" yaml:"fixes"`
	References   []string `json:"references,omitempty" yaml:"references,omitempty"`
	Backend      string   `json:"backend,omitempty" yaml:"backend,omitempty"`
	Cached       bool     `json:"cached,omitempty" yaml:"cached,omitempty"`
}

// Clone returns a copy of e that shares no memory with it.
func (e *AIExplanation) Clone() *AIExplanation {
	if e == nil {
		return nil
	}
	c := *e
	if e.References != nil {
		c.References = append([]string(nil), e.References...)
	}
	return &c
}
