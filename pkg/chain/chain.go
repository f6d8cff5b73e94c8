package chain

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/helmcode/errfriendly/pkg/exception"
	"github.com/helmcode/errfriendly/pkg/model"
)

// Type is the topology of a chain.
type Type string

const (
	Simple  Type = "simple"
	Wrapper Type = "wrapper"
	Cascade Type = "cascade"
	Cleanup Type = "cleanup"
)

// Edge is how a link leads to the next, older link.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeCause
	EdgeContext
)

func (e Edge) String() string {
	switch e {
	case EdgeCause:
		return "cause"
	case EdgeContext:
		return "context"
	default:
		return "none"
	}
}

func (e Edge) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *Edge) UnmarshalText(text []byte) error {
	switch string(text) {
	case "cause":
		*e = EdgeCause
	case "context":
		*e = EdgeContext
	case "none", "":
		*e = EdgeNone
	default:
		return fmt.Errorf("unknown chain edge %q", text)
	}
	return nil
}

// Link is one exception of a chain. Index 0 is the primary exception.
type Link struct {
	Index    int               `json:"index" yaml:"index"`
	Category string            `json:"category" yaml:"category"`
	Message  string            `json:"message" yaml:"message"`
	Frames   []exception.Frame `json:"-" yaml:"-"`
	// Edge leads to link Index+1; EdgeNone on the root.
	Edge    Edge     `json:"edge" yaml:"edge"`
	Tags    []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Cleanup bool     `json:"cleanup,omitempty" yaml:"cleanup,omitempty"`
	runtime string
}

// Location returns "file:line in function" of the failure site, or "".
func (l *Link) Location() string {
	if len(l.Frames) == 0 {
		return ""
	}
	f := l.Frames[len(l.Frames)-1]
	loc := f.File
	if f.Line > 0 {
		loc += ":" + strconv.Itoa(f.Line)
	}
	if f.Function != "" {
		loc += " in " + f.Function
	}
	return loc
}

// Chain is the analysis of one exception and everything behind it.
type Chain struct {
	Links       []Link `json:"links" yaml:"links"`
	Type        Type   `json:"type" yaml:"type"`
	FixPriority []int  `json:"fix_priority" yaml:"fix_priority"`
	// Truncated is set when a cycle or the depth bound ended the walk.
	Truncated bool `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	// Incomplete is set when the exception could not be fully read.
	Incomplete bool `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`

	contexts []lazyContext
	collect  func(ctx context.Context, l *Link) *model.ErrorContext
}

type lazyContext struct {
	once sync.Once
	ctx  *model.ErrorContext
}

func (c *Chain) Depth() int { return len(c.Links) }

// Primary is the last raised exception.
func (c *Chain) Primary() *Link { return &c.Links[0] }

// RootCause is the oldest exception.
func (c *Chain) RootCause() *Link { return &c.Links[len(c.Links)-1] }

// Context returns the ErrorContext of link i, collecting it on first use.
func (c *Chain) Context(ctx context.Context, i int) *model.ErrorContext {
	if i < 0 || i >= len(c.Links) || c.collect == nil {
		return nil
	}
	lc := &c.contexts[i]
	lc.once.Do(func() {
		lc.ctx = c.collect(ctx, &c.Links[i])
	})
	return lc.ctx
}
