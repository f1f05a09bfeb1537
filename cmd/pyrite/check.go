package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyrite-lang/pyrite"
)

var (
	checkFormat    string
	checkRuleFiles []string
	checkFailOn    string
)

var checkCmd = &cobra.Command{
	Use:   "check [targets...]",
	Short: "Validate python blocks without writing files",
	Long: `Run the full generation pipeline over the targets, compile
validation and lint included, and report diagnostics without writing
any generated files.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkFormat, "format", "human", "Output format: human, json, sarif")
	checkCmd.Flags().StringArrayVar(&checkRuleFiles, "rules", nil, "Extra lint rule YAML files")
	checkCmd.Flags().StringVar(&checkFailOn, "fail-on", "error", "Lowest severity that fails the run: error, warning")
}

func runCheck(cmd *cobra.Command, args []string) error {
	switch checkFailOn {
	case "error", "warning":
	default:
		return fmt.Errorf("unknown fail-on level: %s", checkFailOn)
	}

	opts, err := buildOptions(args, "", "", false, checkRuleFiles)
	if err != nil {
		return err
	}

	tool, err := pyrite.New(opts...)
	if err != nil {
		return err
	}
	defer tool.Close()

	res, err := tool.Check(cmd.Context(), args...)
	if err != nil {
		return err
	}

	// JSON and SARIF keep stdout pure; the summary moves to stderr.
	switch checkFormat {
	case "human":
		renderHuman(cmd.OutOrStdout(), res)
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Check complete: %d blocks in %d files, %d errors, %d warnings\n",
				res.Blocks, res.Files, res.Errors(), res.Warnings())
		}
	case "json":
		if err := renderJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Check complete: %d blocks in %d files, %d errors, %d warnings\n",
				res.Blocks, res.Files, res.Errors(), res.Warnings())
		}
	case "sarif":
		if err := renderSARIF(cmd.OutOrStdout(), res, tool.Rules()); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown output format: %s", checkFormat)
	}

	failed := res.Errors() > 0
	if checkFailOn == "warning" && len(res.Diagnostics) > 0 {
		failed = true
	}
	if failed {
		return errDiagnostics
	}
	return nil
}
