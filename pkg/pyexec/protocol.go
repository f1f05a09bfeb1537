package pyexec

import (
	"encoding/json"
	"fmt"
)

// request is one line sent to the driver. Fields not used by an op
// stay empty and are omitted from the wire.
type request struct {
	Op       string         `json:"op"`
	ID       string         `json:"id,omitempty"`
	Scope    string         `json:"scope,omitempty"`
	Source   string         `json:"source,omitempty"`
	Filename string         `json:"filename,omitempty"`
	Name     string         `json:"name,omitempty"`
	Bindings map[string]any `json:"bindings,omitempty"`
}

// response is one line read back. Exactly one of the success fields or
// Error is meaningful, keyed by the op that was sent.
type response struct {
	OK     bool            `json:"ok"`
	Stdout string          `json:"stdout"`
	Value  json.RawMessage `json:"value"`
	Error  *wireError      `json:"error"`
}

type wireError struct {
	Kind      string  `json:"kind"`
	Line      int     `json:"line"`
	Msg       string  `json:"msg"`
	Full      string  `json:"full"`
	Traceback []Frame `json:"traceback"`
}

// asError converts a wire error into the typed error for its kind.
func (w *wireError) asError() error {
	switch w.Kind {
	case "compile":
		return &CompileError{Line: w.Line, Message: w.Msg, Full: w.Full}
	case "runtime":
		return &RuntimeError{Message: w.Msg, Traceback: w.Traceback}
	default:
		return fmt.Errorf("python driver: %s", w.Msg)
	}
}
