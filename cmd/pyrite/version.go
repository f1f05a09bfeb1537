package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/pyrite-lang/pyrite"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	v, commit := pyrite.Version()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pyrite v%s\n", v)
	fmt.Fprintf(out, "Commit: %s\n", commit)
	fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return nil
}
