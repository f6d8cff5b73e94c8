package collector

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/helmcode/errfriendly/pkg/inspector"
)

const gitDiffTimeout = 2 * time.Second

// DiffSource returns the uncommitted diff of one file.
type DiffSource interface {
	FileDiff(ctx context.Context, path string) ([]byte, error)
}

// GitDiff runs git in the file's directory.
type GitDiff struct{}

func (GitDiff) FileDiff(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, gitDiffTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "-C", filepath.Dir(path), "diff", "--no-color", "-U2", "HEAD", "--", filepath.Base(path))
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}
	return out, nil
}

// recentChanges renders the hunks of raw closest to line, bounded to max
// characters.
func recentChanges(raw []byte, line, max int) string {
	if len(raw) == 0 {
		return ""
	}
	files, err := diff.ParseMultiFileDiff(raw)
	if err != nil {
		return ""
	}
	var hunks []*diff.Hunk
	for _, f := range files {
		hunks = append(hunks, f.Hunks...)
	}
	sort.SliceStable(hunks, func(i, j int) bool {
		return hunkDistance(hunks[i], line) < hunkDistance(hunks[j], line)
	})

	var b strings.Builder
	for _, h := range hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.OrigStartLine, h.OrigLines, h.NewStartLine, h.NewLines)
		b.Write(h.Body)
		if b.Len() >= max {
			break
		}
	}
	return inspector.Truncate(strings.TrimRight(b.String(), "\n"), max)
}

func hunkDistance(h *diff.Hunk, line int) int32 {
	l := int32(line)
	start, end := h.NewStartLine, h.NewStartLine+h.NewLines
	switch {
	case l < start:
		return start - l
	case l > end:
		return l - end
	default:
		return 0
	}
}
