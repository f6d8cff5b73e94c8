package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmcode/errfriendly/pkg/exception"
	"github.com/helmcode/errfriendly/pkg/messages"
)

const crash = `Traceback (most recent call last):
  File "app.py", line 2, in <module>
    1 / 0
ZeroDivisionError: division by zero
`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	root := &cobra.Command{Use: "errfriendly"}
	AddGlobalFlags(root)
	root.AddCommand(NewExplainCmd(), NewLookupCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestExplainCommand_Stdin(t *testing.T) {
	out, err := run(t, crash, "explain", "--no-ai")
	require.NoError(t, err)
	assert.Contains(t, out, messages.Banner)
	assert.Contains(t, out, "ZeroDivisionError")
}

func TestExplainCommand_JSONOutput(t *testing.T) {
	out, err := run(t, `{"type":"KeyError","message":"'port'"}`, "explain", "-o", "json")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "KeyError", report["category"])
	assert.Equal(t, "static", report["source"])
}

func TestExplainCommand_NoTraceback(t *testing.T) {
	_, err := run(t, "everything is fine\n", "explain")
	assert.ErrorIs(t, err, exception.ErrNoTraceback)
}

func TestLookupCommand(t *testing.T) {
	out, err := run(t, "", "lookup", "TypeError", "'NoneType'", "object", "is", "not", "subscriptable")
	require.NoError(t, err)
	assert.Contains(t, out, "You tried to index into a value that does not support it")
}

func TestDecodeInput(t *testing.T) {
	excs, err := decodeInput([]byte(crash+crash), InputAuto)
	require.NoError(t, err)
	assert.Len(t, excs, 2)

	excs, err = decodeInput([]byte("  {\"type\":\"ValueError\"}"), InputAuto)
	require.NoError(t, err)
	assert.Equal(t, "ValueError", excs[0].Category())

	_, err = decodeInput([]byte(crash), "xml")
	assert.ErrorContains(t, err, "unsupported input kind")
}
