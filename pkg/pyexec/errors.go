package pyexec

import "fmt"

// CompileError reports the interpreter rejecting a block's source.
// Line is 1-based in the compiled source, which by construction equals
// the host file line.
type CompileError struct {
	Line    int
	Message string // short reason, e.g. "invalid syntax"
	Full    string // complete interpreter text, e.g. "SyntaxError: invalid syntax"
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Frame is one traceback entry, outermost call first.
type Frame struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// RuntimeError reports an exception escaping a block.
type RuntimeError struct {
	Message   string
	Traceback []Frame
}

func (e *RuntimeError) Error() string {
	return e.Message
}
