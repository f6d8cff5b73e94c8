package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Backend is one explanation provider.
type Backend interface {
	Name() string
	// IsAvailable reports whether Generate can be called, i.e. whether the
	// backend's credential or endpoint is resolved.
	IsAvailable() bool
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// ErrorKind classifies a backend failure.
type ErrorKind string

const (
	KindNetwork  ErrorKind = "network"
	KindAuth     ErrorKind = "auth"
	KindQuota    ErrorKind = "quota"
	KindResponse ErrorKind = "response"
)

// BackendError is returned by every backend on failure.
type BackendError struct {
	Backend    string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s error (status %d): %v", e.Backend, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ErrUnavailable is returned when Generate is called on a backend whose
// credential is missing.
var ErrUnavailable = errors.New("backend not available")

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		return KindQuota
	case status >= 500:
		return KindNetwork
	default:
		return KindResponse
	}
}

func statusError(backend string, status int, body []byte) *BackendError {
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &BackendError{
		Backend:    backend,
		Kind:       KindForStatus(status),
		StatusCode: status,
		Err:        errors.New(msg),
	}
}

func networkError(backend string, err error) *BackendError {
	return &BackendError{Backend: backend, Kind: KindNetwork, Err: err}
}

func responseError(backend string, err error) *BackendError {
	return &BackendError{Backend: backend, Kind: KindResponse, Err: err}
}

// None is the backend used when AI explanations are off.
type None struct{}

func (None) Name() string      { return "none" }
func (None) IsAvailable() bool { return false }
func (None) Generate(context.Context, string, string) (string, error) {
	return "", &BackendError{Backend: "none", Kind: KindAuth, Err: ErrUnavailable}
}
