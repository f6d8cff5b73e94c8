package hook

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/formatter"
	"github.com/helmcode/errfriendly/pkg/messages"
	"github.com/helmcode/errfriendly/pkg/pipeline"
)

func install(t *testing.T, opts Options) (*bytes.Buffer, *int) {
	t.Helper()
	var buf bytes.Buffer
	opts.Output = &buf
	Install(pipeline.New(config.MustStore(nil)), opts)

	code := -1
	exit = func(c int) { code = c }
	t.Cleanup(func() {
		Uninstall()
		exit = os.Exit
	})
	return &buf, &code
}

func TestGuard_ExplainsPanic(t *testing.T) {
	out, code := install(t, Options{ShowOriginalTraceback: true})

	func() {
		defer Guard()
		var m map[string]int
		m["boom"]++
	}()

	assert.Equal(t, 2, *code)
	assert.Contains(t, out.String(), "panic: assignment to entry in nil map")
	assert.Contains(t, out.String(), messages.Banner)
	assert.Contains(t, out.String(), "runtime.Error")
}

func TestGuard_HidesTracebackWhenAsked(t *testing.T) {
	out, code := install(t, Options{})

	func() {
		defer Guard()
		panic("config missing")
	}()

	assert.Equal(t, 2, *code)
	assert.False(t, strings.HasPrefix(strings.TrimSpace(out.String()), "panic:"))
	assert.Contains(t, out.String(), "config missing")
}

func TestGuard_WithoutHandlerRepanics(t *testing.T) {
	Uninstall()
	assert.False(t, IsInstalled())
	assert.PanicsWithValue(t, "boom", func() {
		defer Guard()
		panic("boom")
	})
}

func TestGuard_NoPanic(t *testing.T) {
	out, code := install(t, Options{})
	func() { defer Guard() }()
	assert.Equal(t, -1, *code)
	assert.Empty(t, out.String())
}

func TestHandle(t *testing.T) {
	assert.False(t, Handle(errors.New("no handler yet")))

	logFile := filepath.Join(t.TempDir(), "errors.log")
	out, _ := install(t, Options{LogFile: logFile, Format: formatter.FormatJSON})
	assert.True(t, IsInstalled())

	assert.False(t, Handle(nil))
	assert.True(t, Handle(errors.New("disk full")))

	var report pipeline.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "disk full", report.Message)

	logged, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logged), `"message": "disk full"`)
}
