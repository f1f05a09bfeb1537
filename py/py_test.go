package py

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrite-lang/pyrite/pkg/pyexec"
)

// fakeInterpreter writes a shell script that ignores its arguments and
// answers driver requests by op, so blocks run without python on the
// test machine.
func fakeInterpreter(t *testing.T) *pyexec.Runtime {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreter needs a unix shell")
	}

	script := `#!/bin/sh
while IFS= read -r req; do
  case "$req" in
    *'"op":"compile"'*) printf '%s\n' '{"ok":true}' ;;
    *'"op":"exec"'*)    printf '%s\n' '{"ok":true,"stdout":"ran\n"}' ;;
    *'"op":"get"'*)     printf '%s\n' '{"ok":true,"value":[1,2,3]}' ;;
    *'"op":"reset"'*)   printf '%s\n' '{"ok":true}' ;;
    *)                  printf '%s\n' '{"ok":false,"error":{"kind":"protocol","msg":"unknown op"}}' ;;
  esac
done`

	path := filepath.Join(t.TempDir(), "fakepy")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))

	rt := pyexec.NewRuntime(path)
	t.Cleanup(func() { rt.Close() })
	return rt
}

var demoBlock = &Block{
	Name:   "demo",
	File:   "app/main.go",
	Source: "\n\nprint(_RUST_n)",
	Params: []string{"_RUST_n"},
}

func TestContextRun(t *testing.T) {
	c := &Context{Runtime: fakeInterpreter(t)}

	out, err := c.Run(context.Background(), demoBlock, 5)
	require.NoError(t, err)
	assert.Equal(t, "ran\n", out)
}

func TestRun_ValueCountMismatch(t *testing.T) {
	c := &Context{Runtime: fakeInterpreter(t)}

	_, err := c.Run(context.Background(), demoBlock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 1 values, got 0")
}

func TestRunVars_ExtraGlobals(t *testing.T) {
	c := &Context{Runtime: fakeInterpreter(t)}

	out, err := c.RunVars(context.Background(), demoBlock,
		Var{Name: "_RUST_n", Value: 5},
		Var{Name: "limit", Value: 10},
	)
	require.NoError(t, err)
	assert.Equal(t, "ran\n", out)
}

func TestNilContextRunsOnMain(t *testing.T) {
	rt := fakeInterpreter(t)
	Main.Runtime = rt
	defer func() { Main.Runtime = nil }()

	var c *Context
	out, err := c.Run(context.Background(), demoBlock, 5)
	require.NoError(t, err)
	assert.Equal(t, "ran\n", out)
}

func TestContextGet(t *testing.T) {
	c := &Context{Runtime: fakeInterpreter(t)}

	var got []int
	require.NoError(t, c.Get(context.Background(), "xs", &got))
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestContextGet_DecodeMismatch(t *testing.T) {
	c := &Context{Runtime: fakeInterpreter(t)}

	var got string
	err := c.Get(context.Background(), "xs", &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding xs")
}

func TestContextReset(t *testing.T) {
	c := &Context{Runtime: fakeInterpreter(t)}
	require.NoError(t, c.Reset(context.Background()))
}

func TestRun_CompileErrorPassthrough(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreter needs a unix shell")
	}
	script := `#!/bin/sh
while IFS= read -r req; do
  printf '%s\n' '{"ok":false,"error":{"kind":"compile","line":3,"msg":"invalid syntax","full":"SyntaxError: invalid syntax"}}'
done`
	path := filepath.Join(t.TempDir(), "fakepy")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	rt := pyexec.NewRuntime(path)
	defer rt.Close()

	c := &Context{Runtime: rt}
	_, err := c.Run(context.Background(), demoBlock, 5)
	require.Error(t, err)

	var ce *pyexec.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 3, ce.Line)
}

func TestContextsGetDistinctScopes(t *testing.T) {
	a, b := &Context{}, &Context{}
	a.init()
	b.init()
	assert.NotEqual(t, a.scope, b.scope)
	assert.NotEmpty(t, a.scope)
}
