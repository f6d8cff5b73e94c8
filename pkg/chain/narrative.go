package chain

import (
	"fmt"
	"strings"

	"github.com/helmcode/errfriendly/pkg/inspector"
)

const maxNarrativeMessage = 200

// Narrative traces the chain from its root to the primary exception as a
// numbered list, one entry per link.
func Narrative(c *Chain) string {
	var b strings.Builder
	n := c.Depth()
	fmt.Fprintf(&b, "Exception Chain (%s, depth %d):\n", c.Type, n)
	for k := n - 1; k >= 0; k-- {
		l := &c.Links[k]
		num := number(c, k)
		what := describe(l)
		switch {
		case k == n-1:
			fmt.Fprintf(&b, "(%d) First, %s occurred%s\n", num, l.Category, what)
		case l.Edge == EdgeCause:
			fmt.Fprintf(&b, "-> (%d) which caused %s%s\n", num, l.Category, what)
		case l.Edge == EdgeContext && l.Cleanup:
			fmt.Fprintf(&b, "-> (%d) then, during cleanup, %s was raised%s\n", num, l.Category, what)
		default:
			fmt.Fprintf(&b, "-> (%d) and while handling it, %s was raised%s\n", num, l.Category, what)
		}
		if loc := l.Location(); loc != "" {
			fmt.Fprintf(&b, "    at %s\n", loc)
		}
	}
	if c.Truncated {
		b.WriteString("    [chain truncated: cycle or depth limit reached]\n")
	}
	if c.Incomplete {
		b.WriteString("    [chain incomplete: exception data could not be fully read]\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FixStrategy tells the reader where to start: the root cause first, then
// the remaining links in fix-priority order.
func FixStrategy(c *Chain) string {
	var b strings.Builder
	b.WriteString("Fix Strategy:\n")
	root := c.Depth() - 1
	for _, i := range c.FixPriority {
		l := &c.Links[i]
		num := number(c, i)
		switch {
		case i == root:
			fmt.Fprintf(&b, "  Start with (%d) %s%s. This is the root cause; fix it first.\n", num, l.Category, where(l))
		case l.Edge == EdgeCause:
			fmt.Fprintf(&b, "  (%d) %s only wraps the error before it. It is a passthrough and not actionable on its own.\n", num, l.Category)
		case l.Cleanup:
			fmt.Fprintf(&b, "  (%d) %s was raised during cleanup. It is noise around the real problem; look at it last.\n", num, l.Category)
		default:
			fmt.Fprintf(&b, "  (%d) %s was raised while handling the earlier error. Revisit it once the root cause is fixed.\n", num, l.Category)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Render joins the narrative and the fix strategy.
func Render(c *Chain) string {
	return Narrative(c) + "\n\n" + FixStrategy(c)
}

// number maps a link index to its position in the narrative (root is 1).
func number(c *Chain, index int) int {
	return c.Depth() - index
}

func describe(l *Link) string {
	msg := l.Message
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return ""
	}
	return ": " + inspector.Truncate(msg, maxNarrativeMessage)
}

func where(l *Link) string {
	if loc := l.Location(); loc != "" {
		return " at " + loc
	}
	return ""
}
