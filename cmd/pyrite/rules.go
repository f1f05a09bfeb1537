package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pyrite-lang/pyrite/pkg/rule"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List built-in lint rules",
	Long:  "Display the built-in lint rules run over every python block",
	RunE:  runRules,
}

func runRules(cmd *cobra.Command, args []string) error {
	loader := rule.NewLoader()
	rules, err := loader.LoadBuiltin()
	if err != nil {
		return fmt.Errorf("loading builtin rules: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tSeverity\tName\n")
	fmt.Fprintf(w, "--\t--------\t----\n")
	for _, r := range rules {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Severity, r.Name)
	}
	return nil
}
