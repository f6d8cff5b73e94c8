package exception

import (
	"encoding/json"
	"fmt"
)

// Record is a serializable exception report, the form emitted by runtime
// hooks and accepted by the HTTP collector.
type Record struct {
	Type       string  `json:"type" yaml:"type"`
	Msg        string  `json:"message" yaml:"message"`
	Runtime    string  `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	Suppressed bool    `json:"suppress_context,omitempty" yaml:"suppress_context,omitempty"`
	CauseRec   *Record `json:"cause,omitempty" yaml:"cause,omitempty"`
	ContextRec *Record `json:"context,omitempty" yaml:"context,omitempty"`
	Frames     []Frame `json:"frames,omitempty" yaml:"frames,omitempty"`
}

func (r *Record) Category() string { return r.Type }

func (r *Record) Message() string { return r.Msg }

func (r *Record) Cause() Exception {
	if r.CauseRec == nil {
		return nil
	}
	return r.CauseRec
}

func (r *Record) Context() Exception {
	if r.ContextRec == nil {
		return nil
	}
	return r.ContextRec
}

func (r *Record) SuppressContext() bool { return r.Suppressed }

func (r *Record) Traceback() []Frame { return r.Frames }

func (r *Record) RuntimeVersion() string { return r.Runtime }

// DecodeRecord parses a JSON exception record.
func DecodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode exception record: %w", err)
	}
	if rec.Type == "" {
		return nil, fmt.Errorf("decode exception record: missing type")
	}
	return &rec, nil
}
