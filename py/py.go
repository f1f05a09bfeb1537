// Package py runs embedded Python blocks from generated code.
//
// pyrite gen turns each /*python*/ block into a *Block value plus a
// typed wrapper function in a sibling _pyrite.go file. User code calls
// the wrapper with a Context; globals set by one run are visible to
// the next run in the same Context, and Get pulls them back out as
// JSON-decoded Go values.
package py

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pyrite-lang/pyrite/pkg/pyexec"
)

// Block is one embedded Python block. Generated files declare these;
// they are not usually written by hand.
type Block struct {
	// Name is the fence name.
	Name string

	// File is the host source file the block came from. Compile
	// errors and traceback frames report this path.
	File string

	// Source is the reconstructed Python text, padded with leading
	// newlines so its line numbers equal host line numbers.
	Source string

	// Params are the placeholder names Run binds values to, in the
	// order the generated wrapper passes them.
	Params []string
}

// Var binds a placeholder name to a value, for callers invoking
// blocks without their generated wrappers.
type Var struct {
	Name  string
	Value any
}

// Main is the shared default context, the embedded equivalent of the
// interpreter's __main__ namespace. Methods on a nil *Context operate
// on Main.
var Main = &Context{}

// Context owns one persistent Python global namespace. The zero value
// is ready to use and runs blocks under the process-wide default
// runtime.
//
// A Context is safe for concurrent use; runs serialize on the
// underlying interpreter.
type Context struct {
	// Runtime chooses the interpreter this context runs under. Nil
	// means the package-wide default ("python3").
	Runtime *pyexec.Runtime

	once  sync.Once
	scope string
}

var scopeCounter atomic.Int64

var (
	defaultOnce sync.Once
	defaultRT   *pyexec.Runtime
)

func defaultRuntime() *pyexec.Runtime {
	defaultOnce.Do(func() {
		defaultRT = pyexec.NewRuntime("")
	})
	return defaultRT
}

func (c *Context) init() {
	c.once.Do(func() {
		c.scope = fmt.Sprintf("ctx%d", scopeCounter.Add(1))
	})
}

func (c *Context) runtime() *pyexec.Runtime {
	if c.Runtime != nil {
		return c.Runtime
	}
	return defaultRuntime()
}

// Run compiles and executes the block with values bound to its
// parameters in declaration order, and returns whatever the block
// printed to stdout. Failed compiles come back as
// *pyexec.CompileError, escaped exceptions as *pyexec.RuntimeError.
func (c *Context) Run(ctx context.Context, b *Block, values ...any) (string, error) {
	if len(values) != len(b.Params) {
		return "", fmt.Errorf("block %s expects %d values, got %d", b.Name, len(b.Params), len(values))
	}

	vars := make([]Var, len(values))
	for i, v := range values {
		vars[i] = Var{Name: b.Params[i], Value: v}
	}
	return c.RunVars(ctx, b, vars...)
}

// RunVars is Run with explicit name bindings. Names not among the
// block's parameters become plain globals in the context's namespace.
func (c *Context) RunVars(ctx context.Context, b *Block, vars ...Var) (string, error) {
	if c == nil {
		c = Main
	}
	c.init()

	sess, err := c.runtime().Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer sess.Close()

	// Units do not survive an interpreter restart, so every run
	// compiles fresh under the same session hold that executes it.
	unit, err := sess.Compile(ctx, b.Source, b.File)
	if err != nil {
		return "", err
	}

	bindings := make(map[string]any, len(vars))
	for _, v := range vars {
		bindings[v.Name] = v.Value
	}

	out, err := sess.Execute(ctx, unit, c.scope, bindings)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// Get decodes the named global from this context into dst, which must
// be a pointer. Values cross the interpreter boundary as JSON, so the
// usual encoding/json conversion rules apply.
func (c *Context) Get(ctx context.Context, name string, dst any) error {
	if c == nil {
		c = Main
	}
	c.init()

	sess, err := c.runtime().Acquire(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	raw, err := sess.Get(ctx, c.scope, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}

// Reset drops every global in this context.
func (c *Context) Reset(ctx context.Context) error {
	if c == nil {
		c = Main
	}
	c.init()

	sess, err := c.runtime().Acquire(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	return sess.Reset(ctx, c.scope)
}

// Run executes the block in a fresh throwaway context.
func Run(ctx context.Context, b *Block, values ...any) (string, error) {
	return (&Context{}).Run(ctx, b, values...)
}
