package pyrite

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrite-lang/pyrite/pkg/rule"
)

// fakePython writes a shell script that answers the driver protocol
// with canned responses, so tests need no real interpreter.
func fakePython(t *testing.T, compileResp, execResp string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreter is a shell script")
	}
	path := filepath.Join(t.TempDir(), "python")
	script := `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
  *'"op":"compile"'*) printf '%s\n' '` + compileResp + `' ;;
  *'"op":"exec"'*) printf '%s\n' '` + execResp + `' ;;
  *) printf '%s\n' '{"ok":true}' ;;
  esac
done
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func okPython(t *testing.T) string {
	t.Helper()
	return fakePython(t, `{"ok":true}`, `{"ok":true,"stdout":""}`)
}

func newTool(t *testing.T, opts ...Option) *Tool {
	t.Helper()
	tool, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { tool.Close() })
	return tool
}

func writeHost(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const greetHost = `package demo

/*python greet
print("hi")
*/
`

func TestGenerate_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "demo.go", greetHost)

	tool := newTool(t, WithPython(okPython(t)))
	res, err := tool.Generate(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 1, res.Blocks)
	assert.Empty(t, res.Diagnostics)
	require.Equal(t, []string{filepath.Join(dir, "demo_pyrite.go")}, res.Written)

	out, err := os.ReadFile(res.Written[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), "package demo")
	assert.Contains(t, string(out), "func greet(ctx context.Context, pyctx *py.Context) (string, error)")
}

func TestGenerate_CaptureParams(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "calc.go", `package demo

/*python calc
print('total + 'amount)
*/
`)

	tool := newTool(t, WithPython(okPython(t)))
	res, err := tool.Generate(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, res.Written, 1)

	out, err := os.ReadFile(res.Written[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), "amount any, total any")
	assert.Contains(t, string(out), "return pyctx.Run(ctx, calcBlock, amount, total)")
}

func TestCheck_WritesNothing(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "demo.go", greetHost)

	tool := newTool(t, WithPython(okPython(t)))
	res, err := tool.Check(context.Background(), dir)
	require.NoError(t, err)

	assert.Empty(t, res.Written)
	assert.Equal(t, 1, res.Blocks)
	_, err = os.Stat(filepath.Join(dir, "demo_pyrite.go"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerate_CompileErrorDiagnostic(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "bad.go", `package demo

/*python bad
1 +
*/
`)

	python := fakePython(t,
		`{"ok":false,"error":{"kind":"compile","line":4,"msg":"invalid syntax","full":"SyntaxError: invalid syntax"}}`,
		`{"ok":true,"stdout":""}`)
	tool := newTool(t, WithPython(python))
	res, err := tool.Generate(context.Background(), dir)
	require.NoError(t, err)

	assert.Empty(t, res.Written)
	require.Equal(t, 1, res.Errors())
	d := res.Diagnostics[0]
	assert.True(t, strings.HasPrefix(d.Message, "python: "), "message %q", d.Message)
	assert.Equal(t, filepath.Join(dir, "bad.go"), d.File)
	require.NotNil(t, d.Anchor)
	assert.Equal(t, 4, d.Anchor.First.Start.Line)
	assert.Contains(t, res.Sources, d.File)
}

func TestGenerate_LintWarningStillWrites(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "risky.go", `package demo

/*python risky
try:
    f()
except:
    pass
*/
`)

	tool := newTool(t, WithPython(okPython(t)))
	res, err := tool.Generate(context.Background(), dir)
	require.NoError(t, err)

	assert.Len(t, res.Written, 1)
	require.Equal(t, 1, res.Warnings())
	assert.Equal(t, "py.bare-except", res.Diagnostics[0].Rule)
}

func TestGenerate_LintErrorBlocksEmission(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "shell.go", `package demo

/*python shell
os.system("rm -rf /tmp/x")
*/
`)

	rules := []*Rule{{
		ID:       "py.os-system",
		Name:     "os.system call",
		Pattern:  `os\.system`,
		Severity: rule.SeverityError,
		Keywords: []string{"os.system"},
	}}
	tool := newTool(t, WithPython(okPython(t)), WithRules(rules))
	res, err := tool.Generate(context.Background(), dir)
	require.NoError(t, err)

	assert.Empty(t, res.Written)
	assert.Equal(t, 1, res.Errors())
	assert.Equal(t, "py.os-system", res.Diagnostics[0].Rule)
}

func TestGenerate_CacheHits(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "demo.go", greetHost)
	dbPath := filepath.Join(t.TempDir(), "pyrite.db")

	python := okPython(t)
	first := newTool(t, WithPython(python), WithCache(dbPath))
	res, err := first.Generate(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CacheHits)
	require.NoError(t, first.Close())

	second := newTool(t, WithPython(python), WithCache(dbPath))
	res, err = second.Generate(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CacheHits)
	assert.Len(t, res.Written, 1)
}

func TestGenerate_CTOutputInjected(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "meta.go", `package demo

/*ctpython
print("const answer = 42")
*/
`)

	python := fakePython(t, `{"ok":true}`, `{"ok":true,"stdout":"const answer = 42\n"}`)
	tool := newTool(t, WithPython(python))
	res, err := tool.Generate(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, res.Written, 1)

	out, err := os.ReadFile(res.Written[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), "const answer = 42")
}

func TestGenerate_CTBadOutputDiagnostic(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "meta.go", `package demo

/*ctpython
print("if true {")
*/
`)

	python := fakePython(t, `{"ok":true}`, `{"ok":true,"stdout":"if true {\n"}`)
	tool := newTool(t, WithPython(python))
	res, err := tool.Generate(context.Background(), dir)
	require.NoError(t, err)

	assert.Empty(t, res.Written)
	require.Equal(t, 1, res.Errors())
	assert.Contains(t, res.Diagnostics[0].Message, "generated code does not parse")
}

func TestGenerate_CTDisabled(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "meta.go", `package demo

/*ctpython
print("const x = 1")
*/
`)

	tool := newTool(t, WithPython(okPython(t)), WithCT(false))
	res, err := tool.Generate(context.Background(), dir)
	require.NoError(t, err)

	assert.Empty(t, res.Written)
	require.Equal(t, 1, res.Errors())
	assert.Contains(t, res.Diagnostics[0].Message, "compile-time execution is disabled")
}

func TestGenerate_NoBlocksSkipsInterpreter(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "plain.go", "package demo\n\nvar x = 1\n")

	// The interpreter path is bogus; a run with no blocks must never
	// try to start it.
	tool := newTool(t, WithPython(filepath.Join(dir, "no-such-python")))
	res, err := tool.Generate(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Files)
	assert.Equal(t, 0, res.Blocks)
	assert.Empty(t, res.Written)
}

func TestGenerate_MalformedFenceDiagnostic(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "anon.go", "package demo\n\n/*python*/\nvar x = 1\n")

	tool := newTool(t, WithPython(okPython(t)))
	res, err := tool.Generate(context.Background(), dir)
	require.NoError(t, err)

	require.Equal(t, 1, res.Errors())
	assert.Contains(t, res.Diagnostics[0].Message, "requires a name")
}

func TestGenerate_DiagnosticsOrderedByFileThenLine(t *testing.T) {
	dir := t.TempDir()
	writeHost(t, dir, "b.go", `package demo

/*python late
try:
    f()
except:
    pass
*/
`)
	writeHost(t, dir, "a.go", `package demo

/*python early
x = eval("1")
*/
`)

	tool := newTool(t, WithPython(okPython(t)))
	res, err := tool.Generate(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, filepath.Join(dir, "a.go"), res.Diagnostics[0].File)
	assert.Equal(t, filepath.Join(dir, "b.go"), res.Diagnostics[1].File)
}

func TestTool_Rules(t *testing.T) {
	tool := newTool(t)
	assert.Equal(t, tool.RuleCount(), len(tool.Rules()))
	assert.Greater(t, tool.RuleCount(), 0)
}

func TestVersion(t *testing.T) {
	v, c := Version()
	assert.Equal(t, "dev", v)
	assert.Equal(t, "unknown", c)
}
