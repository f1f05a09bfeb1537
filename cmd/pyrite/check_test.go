package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bareExceptHost = `package demo

/*python risky
try:
    f()
except:
    pass
*/
`

func resetCheckFlags() {
	checkFormat = "human"
	checkRuleFiles = nil
	checkFailOn = "error"
	verbose = false
	quiet = false
	colorMode = "never"
}

func TestRunCheck_JSON(t *testing.T) {
	dir := t.TempDir()
	writeHostFile(t, dir, "risky.go", bareExceptHost)

	resetCheckFlags()
	checkFormat = "json"
	writeHostFile(t, dir, ".pyrite.yaml", "python: "+fakePython(t)+"\n")

	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := runCheck(cmd, []string{dir})
	require.NoError(t, err)

	var report struct {
		Files       int `json:"files"`
		Blocks      int `json:"blocks"`
		Errors      int `json:"errors"`
		Warnings    int `json:"warnings"`
		Diagnostics []struct {
			Rule string `json:"rule"`
		} `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 1, report.Blocks)
	assert.Equal(t, 0, report.Errors)
	assert.Equal(t, 1, report.Warnings)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "py.bare-except", report.Diagnostics[0].Rule)

	// Summary stays off stdout so the JSON is parseable as-is.
	assert.Contains(t, errOut.String(), "Check complete")
}

func TestRunCheck_FailOnWarning(t *testing.T) {
	dir := t.TempDir()
	writeHostFile(t, dir, "risky.go", bareExceptHost)
	writeHostFile(t, dir, ".pyrite.yaml", "python: "+fakePython(t)+"\n")

	resetCheckFlags()
	checkFailOn = "warning"

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	err := runCheck(cmd, []string{dir})
	assert.ErrorIs(t, err, errDiagnostics)
}

func TestRunCheck_WarningsPassByDefault(t *testing.T) {
	dir := t.TempDir()
	writeHostFile(t, dir, "risky.go", bareExceptHost)
	writeHostFile(t, dir, ".pyrite.yaml", "python: "+fakePython(t)+"\n")

	resetCheckFlags()

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	err := runCheck(cmd, []string{dir})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "py.bare-except")
}

func TestRunCheck_SARIF(t *testing.T) {
	dir := t.TempDir()
	writeHostFile(t, dir, "risky.go", bareExceptHost)
	writeHostFile(t, dir, ".pyrite.yaml", "python: "+fakePython(t)+"\n")

	resetCheckFlags()
	checkFormat = "sarif"

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	err := runCheck(cmd, []string{dir})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "sarif-schema-2.1.0")
	assert.Contains(t, output, `"pyrite"`)
	assert.Contains(t, output, "py.bare-except")
}

func TestRunCheck_UnknownFormat(t *testing.T) {
	resetCheckFlags()
	checkFormat = "xml"

	cmd := &cobra.Command{}
	err := runCheck(cmd, []string{t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRunCheck_UnknownFailOn(t *testing.T) {
	resetCheckFlags()
	checkFailOn = "fatal"

	cmd := &cobra.Command{}
	err := runCheck(cmd, []string{t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fail-on level")
}
