package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyrite-lang/pyrite"
)

var (
	genCheckOnly   bool
	genCT          bool
	genIncremental bool
	genPython      string
	genSuffix      string
)

var genCmd = &cobra.Command{
	Use:   "gen [targets...]",
	Short: "Generate Go siblings for files containing python blocks",
	Long: `Scan the targets (directories or files, default ".") for python
blocks, validate each block against the interpreter, and write a
<file>_pyrite.go sibling per host file. Files with error diagnostics
are reported and skipped.`,
	RunE: runGen,
}

func init() {
	genCmd.Flags().BoolVar(&genCheckOnly, "check-only", false, "Validate blocks without writing files")
	genCmd.Flags().BoolVar(&genCT, "ct", true, "Execute ctpython blocks during generation")
	genCmd.Flags().BoolVar(&genIncremental, "incremental", false, "Cache compile results and skip unchanged blocks")
	genCmd.Flags().StringVar(&genPython, "python", "", "Interpreter binary (default python3 from PATH)")
	genCmd.Flags().StringVar(&genSuffix, "suffix", "", "Generated file suffix (default _pyrite.go)")
}

func runGen(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions(args, genPython, genSuffix, genIncremental, nil)
	if err != nil {
		return err
	}
	opts = append(opts, pyrite.WithCT(genCT))

	tool, err := pyrite.New(opts...)
	if err != nil {
		return err
	}
	defer tool.Close()

	ctx := cmd.Context()
	var res *pyrite.Result
	if genCheckOnly {
		res, err = tool.Check(ctx, args...)
	} else {
		res, err = tool.Generate(ctx, args...)
	}
	if err != nil {
		return err
	}

	renderHuman(cmd.OutOrStdout(), res)

	if verbose {
		for _, path := range res.Written {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		}
	}
	if !quiet {
		out := cmd.OutOrStdout()
		if genIncremental {
			fmt.Fprintf(out, "Generation complete: %d blocks in %d files, %d written, %d diagnostics (%d cached)\n",
				res.Blocks, res.Files, len(res.Written), len(res.Diagnostics), res.CacheHits)
		} else {
			fmt.Fprintf(out, "Generation complete: %d blocks in %d files, %d written, %d diagnostics\n",
				res.Blocks, res.Files, len(res.Written), len(res.Diagnostics))
		}
	}

	if res.Errors() > 0 {
		return errDiagnostics
	}
	return nil
}
