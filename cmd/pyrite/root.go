package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pyrite-lang/pyrite"
	"github.com/pyrite-lang/pyrite/pkg/config"
)

var (
	verbose   bool
	quiet     bool
	colorMode string
)

// commandRan distinguishes usage errors (exit 2) from run failures
// (exit 1): cobra rejects bad flags and arguments before any RunE
// starts.
var commandRan bool

// errDiagnostics signals a run that completed but found problems.
var errDiagnostics = errors.New("diagnostics reported")

var rootCmd = &cobra.Command{
	Use:   "pyrite",
	Short: "Pyrite - inline Python for Go",
	Long: `Pyrite turns python blocks embedded in Go comments into generated Go code.

A named block generates a typed wrapper function in a sibling
<file>_pyrite.go; 'x inside a block captures the host variable x as a
wrapper parameter. An unnamed /*ctpython*/ block runs during
generation and its stdout is spliced into the generated file as Go
declarations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		commandRan = true
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "Colorize output: auto, always, never")

	// Add subcommands
	rootCmd.AddCommand(genCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// =============================================================================
// HELPERS
// =============================================================================

// colorEnabled resolves the --color tri-state. Auto means a terminal
// on stdout and no NO_COLOR in the environment.
func colorEnabled() bool {
	switch colorMode {
	case "always":
		return true
	case "never":
		return false
	}
	if color.NoColor {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

const defaultCachePath = ".pyrite.db"

// buildOptions merges .pyrite.yaml with command-line flags; flags win.
func buildOptions(targets []string, python, suffix string, incremental bool, ruleFiles []string) ([]pyrite.Option, error) {
	cfg, err := loadConfig(targets)
	if err != nil {
		return nil, err
	}

	if python == "" {
		python = cfg.Python
	}
	if suffix == "" {
		suffix = cfg.Suffix
	}

	var opts []pyrite.Option
	if python != "" {
		opts = append(opts, pyrite.WithPython(python))
	}
	if suffix != "" {
		opts = append(opts, pyrite.WithSuffix(suffix))
	}
	if len(cfg.Exclude) > 0 {
		opts = append(opts, pyrite.WithExclude(cfg.Exclude...))
	}
	if len(cfg.Rules) > 0 {
		opts = append(opts, pyrite.WithRuleFiles(cfg.Rules...))
	}
	if len(ruleFiles) > 0 {
		opts = append(opts, pyrite.WithRuleFiles(ruleFiles...))
	}
	if incremental {
		path := cfg.Cache
		if path == "" {
			path = defaultCachePath
		}
		opts = append(opts, pyrite.WithCache(path))
	}
	return opts, nil
}

// loadConfig finds the config governing the run: the first target's
// directory, else the working directory.
func loadConfig(targets []string) (*config.Config, error) {
	dir := "."
	if len(targets) > 0 {
		dir = targets[0]
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			dir = filepath.Dir(dir)
		}
	}
	return config.LoadDir(dir)
}
