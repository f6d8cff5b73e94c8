package exception

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notFoundError struct{ key string }

func (e *notFoundError) Error() string { return "not found: " + e.key }

func TestFromError_WrapChainBecomesCauses(t *testing.T) {
	base := &notFoundError{key: "user"}
	err := fmt.Errorf("load profile: %w", base)

	rec := FromError(err)
	require.NotNil(t, rec)
	assert.Equal(t, "fmt.wrapError", rec.Category())
	assert.Equal(t, "load profile: not found: user", rec.Message())
	assert.True(t, rec.SuppressContext())
	assert.Equal(t, runtime.Version(), rec.RuntimeVersion())

	cause := rec.Cause()
	require.NotNil(t, cause)
	assert.Equal(t, "exception.notFoundError", cause.Category())
	assert.Nil(t, cause.Cause())
}

func TestFromError_Nil(t *testing.T) {
	assert.Nil(t, FromError(nil))
}

func TestFromError_RuntimeError(t *testing.T) {
	var rtErr error
	func() {
		defer func() { rtErr = recover().(error) }()
		var s []int
		_ = s[3]
	}()
	rec := FromError(rtErr)
	assert.Equal(t, "runtime.Error", rec.Category())
	assert.Contains(t, rec.Message(), "index out of range")
}

func TestFromError_PkgErrorsStack(t *testing.T) {
	err := pkgerrors.New("boom")
	rec := FromError(err)
	require.NotEmpty(t, rec.Frames)

	last := rec.Frames[len(rec.Frames)-1]
	assert.True(t, strings.HasSuffix(last.File, "goerror_test.go"), last.File)
	assert.Equal(t, "TestFromError_PkgErrorsStack", last.Function)
	assert.Positive(t, last.Line)
}

func TestFromError_PkgErrorsWrapFoldsStackLayers(t *testing.T) {
	err := pkgerrors.Wrap(pkgerrors.New("connection refused"), "load config")

	rec := FromError(err)
	require.NotNil(t, rec)
	assert.Equal(t, "errors.Wrap", rec.Category())
	assert.Equal(t, "load config: connection refused", rec.Message())
	require.NotEmpty(t, rec.Frames, "the stack recorded by Wrap is kept")
	assert.Equal(t, "TestFromError_PkgErrorsWrapFoldsStackLayers", rec.Frames[len(rec.Frames)-1].Function)

	cause := rec.CauseRec
	require.NotNil(t, cause)
	assert.Equal(t, "errors.New", cause.Category())
	assert.Equal(t, "connection refused", cause.Message())
	assert.NotEmpty(t, cause.Frames)
	assert.Nil(t, cause.CauseRec)
}

func TestFromError_WithStackOnPlainError(t *testing.T) {
	err := pkgerrors.WithStack(&notFoundError{key: "user"})

	rec := FromError(err)
	require.NotNil(t, rec)
	assert.Equal(t, "exception.notFoundError", rec.Category())
	assert.Equal(t, "not found: user", rec.Message())
	assert.NotEmpty(t, rec.Frames)
	assert.Nil(t, rec.CauseRec)
}

func TestFromError_JoinFollowsFirstError(t *testing.T) {
	first := &notFoundError{key: "user"}
	err := errors.Join(first, errors.New("cache offline"))

	rec := FromError(err)
	require.NotNil(t, rec)
	assert.Equal(t, "errors.joinError", rec.Category())
	assert.Equal(t, "not found: user\ncache offline", rec.Message())

	cause := rec.CauseRec
	require.NotNil(t, cause)
	assert.Equal(t, "exception.notFoundError", cause.Category())
	assert.Equal(t, "not found: user", cause.Message())
}

func TestFromError_MultipleWrapVerbs(t *testing.T) {
	err := fmt.Errorf("save: %w and %w", errors.New("disk full"), errors.New("quota"))

	rec := FromError(err)
	require.NotNil(t, rec.CauseRec)
	assert.Equal(t, "disk full", rec.CauseRec.Message())
}

func TestFromPanic_NonError(t *testing.T) {
	var (
		recovered any
		stack     []byte
	)
	func() {
		defer func() {
			recovered = recover()
			stack = debug.Stack()
		}()
		panic("unreachable state")
	}()

	rec := FromPanic(recovered, stack)
	assert.Equal(t, "panic", rec.Category())
	assert.Equal(t, "unreachable state", rec.Message())
	require.NotEmpty(t, rec.Frames)
	for _, f := range rec.Frames {
		assert.False(t, strings.HasPrefix(f.Function, "runtime."), f.Function)
	}
}

func TestFromPanic_Error(t *testing.T) {
	rec := FromPanic(errors.New("bad"), nil)
	assert.Equal(t, "errors.errorString", rec.Category())
	assert.Equal(t, "bad", rec.Message())
}

func TestParseGoStack(t *testing.T) {
	stack := `goroutine 1 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
main.divide(0x1, 0x0)
	/src/app/main.go:14 +0x1d
panic({0x4a5c20?, 0x5a83d0?})
	/usr/local/go/src/runtime/panic.go:792 +0x132
main.run(...)
	/src/app/main.go:9
main.main()
	/src/app/main.go:5 +0x25
created by main.start in goroutine 1
	/src/app/main.go:20 +0x3a
`
	frames := ParseGoStack(stack)
	require.Len(t, frames, 3)
	assert.Equal(t, Frame{File: "/src/app/main.go", Line: 5, Function: "main.main"}, frames[0])
	assert.Equal(t, Frame{File: "/src/app/main.go", Line: 9, Function: "main.run"}, frames[1])
	assert.Equal(t, Frame{File: "/src/app/main.go", Line: 14, Function: "main.divide"}, frames[2])
}
