// Package pyrite generates Go code from python blocks embedded in Go
// source files.
//
// A block is a comment fence in any Go file:
//
//	/*python greet
//	print("hello,", 'name)
//	*/
//
// Generating over the tree emits a sibling <file>_pyrite.go with a
// typed wrapper per named block; `'name` captures the host variable
// name and becomes a wrapper parameter.
//
// # Basic Usage
//
//	tool, err := pyrite.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tool.Close()
//
//	res, err := tool.Generate(ctx, ".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range res.Diagnostics {
//	    fmt.Println(d)
//	}
//
// # Check Without Writing
//
// Check runs the same pipeline, compile validation and lint included,
// but writes nothing:
//
//	res, err := tool.Check(ctx, "./service")
//
// # Custom Interpreter and Cache
//
//	tool, err := pyrite.New(
//	    pyrite.WithPython("/usr/bin/python3.12"),
//	    pyrite.WithCache(".pyrite.db"),
//	)
package pyrite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/pyrite-lang/pyrite/pkg/cache"
	"github.com/pyrite-lang/pyrite/pkg/diag"
	"github.com/pyrite-lang/pyrite/pkg/enum"
	"github.com/pyrite-lang/pyrite/pkg/extract"
	"github.com/pyrite-lang/pyrite/pkg/gen"
	"github.com/pyrite-lang/pyrite/pkg/lexer"
	"github.com/pyrite-lang/pyrite/pkg/lint"
	"github.com/pyrite-lang/pyrite/pkg/pyexec"
	"github.com/pyrite-lang/pyrite/pkg/pysrc"
	"github.com/pyrite-lang/pyrite/pkg/rule"
	"github.com/pyrite-lang/pyrite/pkg/token"
)

// Re-export the types callers handle, so most users can import just
// "github.com/pyrite-lang/pyrite" without subpackages.
type (
	// Diagnostic is a single anchored failure or lint finding.
	Diagnostic = diag.Diagnostic

	// Rule defines one lint pattern over block source.
	Rule = rule.Rule

	// Severity ranks a diagnostic.
	Severity = diag.Severity
)

// Re-export severity levels.
const (
	SeverityError   = diag.SeverityError
	SeverityWarning = diag.SeverityWarning
)

// Tool runs the generation pipeline: enumerate Go files, extract
// python blocks, validate them against a real interpreter, lint them,
// and emit the generated siblings.
type Tool struct {
	scanner *extract.Scanner
	engine  *lint.Engine
	runtime *pyexec.Runtime
	cache   *cache.Cache
	rules   []*Rule
	config  *toolConfig
	mu      sync.Mutex
}

// toolConfig holds tool configuration.
type toolConfig struct {
	python    string
	suffix    string
	cachePath string
	exclude   []string
	ruleFiles []string
	rules     []*Rule
	ct        bool
}

// Option configures a Tool.
type Option func(*toolConfig)

// WithPython sets the interpreter binary blocks compile and run under.
// Default is python3 from PATH.
func WithPython(path string) Option {
	return func(c *toolConfig) {
		c.python = path
	}
}

// WithSuffix sets the generated file suffix. Default is _pyrite.go.
// Files carrying the suffix are never scanned as inputs.
func WithSuffix(suffix string) Option {
	return func(c *toolConfig) {
		if suffix != "" {
			c.suffix = suffix
		}
	}
}

// WithExclude adds gitignore-style patterns skipped during
// enumeration, on top of .gitignore entries.
func WithExclude(patterns ...string) Option {
	return func(c *toolConfig) {
		c.exclude = append(c.exclude, patterns...)
	}
}

// WithRuleFiles loads extra lint rule YAML files alongside the
// built-in rules.
func WithRuleFiles(paths ...string) Option {
	return func(c *toolConfig) {
		c.ruleFiles = append(c.ruleFiles, paths...)
	}
}

// WithRules uses custom lint rules instead of the built-in set.
func WithRules(rules []*Rule) Option {
	return func(c *toolConfig) {
		c.rules = rules
	}
}

// WithCache enables the block result cache at the given SQLite path,
// so unchanged blocks skip interpreter round-trips on repeat runs.
func WithCache(path string) Option {
	return func(c *toolConfig) {
		c.cachePath = path
	}
}

// WithCT controls whether ctpython blocks execute during generation.
// Default is true; when disabled, each ctpython block fails with a
// diagnostic instead of running.
func WithCT(enabled bool) Option {
	return func(c *toolConfig) {
		c.ct = enabled
	}
}

// New creates a Tool with the given options.
//
// By default the tool:
//   - runs blocks under python3 from PATH
//   - writes <file>_pyrite.go siblings
//   - lints with the built-in rules
//   - executes ctpython blocks
//   - does not cache (enable with WithCache)
func New(opts ...Option) (*Tool, error) {
	config := &toolConfig{
		suffix: enum.GeneratedSuffix,
		ct:     true,
	}
	for _, opt := range opts {
		opt(config)
	}

	rules := config.rules
	if rules == nil {
		loader := rule.NewLoader()
		builtin, err := loader.LoadBuiltin()
		if err != nil {
			return nil, fmt.Errorf("loading builtin rules: %w", err)
		}
		rules = builtin
	}
	if len(config.ruleFiles) > 0 {
		loader := rule.NewLoader()
		for _, path := range config.ruleFiles {
			extra, err := loader.LoadRuleFile(path)
			if err != nil {
				return nil, err
			}
			rules = append(rules, extra...)
		}
	}

	engine, err := lint.NewEngine(rules)
	if err != nil {
		return nil, fmt.Errorf("compiling lint rules: %w", err)
	}

	t := &Tool{
		scanner: extract.NewScanner(),
		engine:  engine,
		runtime: pyexec.NewRuntime(config.python),
		rules:   rules,
		config:  config,
	}

	if config.cachePath != "" {
		c, err := cache.Open(config.cachePath)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		t.cache = c
	}
	return t, nil
}

// Result is the outcome of one Generate or Check run.
type Result struct {
	// Files counts scanned files that contain blocks.
	Files int

	// Blocks counts blocks processed across all files.
	Blocks int

	// CacheHits counts blocks whose compile check was satisfied from
	// the cache.
	CacheHits int

	// Written lists generated file paths, in input order. Check runs
	// leave it empty.
	Written []string

	// Diagnostics holds every failure and lint finding, ordered by
	// file then line.
	Diagnostics []*Diagnostic

	// Sources maps host paths to their content, for rendering
	// diagnostics with source excerpts.
	Sources map[string][]byte
}

// Errors counts error-severity diagnostics.
func (r *Result) Errors() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Warnings counts warning-severity diagnostics.
func (r *Result) Warnings() int {
	return len(r.Diagnostics) - r.Errors()
}

// Generate runs the pipeline over the targets (directories or single
// files; default ".") and writes generated siblings for every file
// whose blocks all pass. Files with error diagnostics are skipped;
// the diagnostics land in the Result rather than the error return,
// which is reserved for environmental failures.
func (t *Tool) Generate(ctx context.Context, targets ...string) (*Result, error) {
	return t.run(ctx, targets, true)
}

// Check runs the same pipeline as Generate, compile validation and
// ctpython execution included, but writes nothing.
func (t *Tool) Check(ctx context.Context, targets ...string) (*Result, error) {
	return t.run(ctx, targets, false)
}

// Close releases the interpreter and the cache.
func (t *Tool) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.runtime.Close()
	if t.cache != nil {
		if cerr := t.cache.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Rules returns a copy of the loaded lint rules.
func (t *Tool) Rules() []*Rule {
	rules := make([]*Rule, len(t.rules))
	copy(rules, t.rules)
	return rules
}

// RuleCount returns the number of lint rules loaded.
func (t *Tool) RuleCount() int {
	return len(t.rules)
}

func (t *Tool) run(ctx context.Context, targets []string, write bool) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(targets) == 0 {
		targets = []string{"."}
	}

	res := &Result{Sources: make(map[string][]byte)}
	work, err := t.collect(ctx, targets, res)
	if err != nil {
		return nil, err
	}

	r := &runner{tool: t, res: res, write: write}
	defer r.close()

	for _, fw := range work {
		res.Sources[fw.path] = fw.src
		if err := r.file(ctx, fw); err != nil {
			return nil, err
		}
	}

	sortDiagnostics(res.Diagnostics)
	return res, nil
}

// fileWork is one scanned file holding at least one block.
type fileWork struct {
	path   string
	src    []byte
	blocks []extract.Block
}

// collect enumerates the targets and extracts blocks. The enumerator
// invokes the callback concurrently; results are ordered by path
// afterwards so runs are deterministic. Unscannable files become
// diagnostics, not run failures.
func (t *Tool) collect(ctx context.Context, targets []string, res *Result) ([]*fileWork, error) {
	var mu sync.Mutex
	var work []*fileWork
	seen := make(map[string]bool)

	for _, target := range targets {
		en := enum.New(enum.Config{
			Root:    target,
			Exclude: t.config.exclude,
			Suffix:  t.config.suffix,
		})
		err := en.Enumerate(ctx, func(path string, content []byte) error {
			if !t.scanner.HasBlocks(content) {
				return nil
			}
			blocks, err := t.scanner.Scan(path, content)
			if err != nil {
				mu.Lock()
				res.Diagnostics = append(res.Diagnostics, asDiagnostic(err, path))
				res.Sources[path] = content
				mu.Unlock()
				return nil
			}
			if len(blocks) == 0 {
				return nil
			}
			mu.Lock()
			if !seen[path] {
				seen[path] = true
				work = append(work, &fileWork{path: path, src: content, blocks: blocks})
			}
			mu.Unlock()
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(work, func(i, j int) bool { return work[i].path < work[j].path })
	return work, nil
}

// runner carries one run's mutable state: the lazily acquired
// interpreter session and the accumulating result.
type runner struct {
	tool    *Tool
	sess    *pyexec.Session
	res     *Result
	write   bool
	ctScope int
}

func (r *runner) close() {
	if r.sess != nil {
		r.sess.Close()
	}
}

// session acquires the interpreter on first use, so runs that compile
// nothing never spawn a subprocess.
func (r *runner) session(ctx context.Context) (*pyexec.Session, error) {
	if r.sess == nil {
		sess, err := r.tool.runtime.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("starting python: %w", err)
		}
		r.sess = sess
	}
	return r.sess, nil
}

// file processes one host file's blocks and, when every block passed
// and no error diagnostics were raised, emits its generated sibling.
func (r *runner) file(ctx context.Context, fw *fileWork) error {
	r.res.Files++
	before := len(r.res.Diagnostics)

	inputs := make([]gen.Input, 0, len(fw.blocks))
	usable := true
	for _, b := range fw.blocks {
		in, ok, err := r.block(ctx, b)
		if err != nil {
			return err
		}
		if !ok {
			usable = false
			continue
		}
		inputs = append(inputs, in)
	}
	for _, d := range r.res.Diagnostics[before:] {
		if d.Severity == SeverityError {
			usable = false
		}
	}
	if !usable || len(inputs) == 0 {
		return nil
	}

	pkg, err := gen.PackageName(fw.path, fw.src)
	if err != nil {
		return err
	}
	src, err := gen.Emit(pkg, inputs)
	if err != nil {
		var d *Diagnostic
		if errors.As(err, &d) {
			r.add(d)
			return nil
		}
		return err
	}

	out := gen.OutputPath(fw.path, r.tool.config.suffix)
	if r.write {
		if err := os.WriteFile(out, src, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		r.res.Written = append(r.res.Written, out)
	}
	return nil
}

// block runs one block through lex, reconstruction, lint, and the
// interpreter. ok reports whether the block contributes to the
// generated file; failures become diagnostics, and only environmental
// problems surface as errors.
func (r *runner) block(ctx context.Context, b extract.Block) (gen.Input, bool, error) {
	r.res.Blocks++

	start := token.Point{Line: b.ContentLine, Column: b.ContentColumn}
	tokens, err := lexer.Lex(b.Content, start)
	if err != nil {
		r.report(err, b)
		return gen.Input{}, false, nil
	}

	source, caps, err := pysrc.Reconstruct(tokens)
	if err != nil {
		r.report(err, b)
		return gen.Input{}, false, nil
	}

	lints, err := r.tool.engine.Check(b.File, tokens, source)
	if err != nil {
		return gen.Input{}, false, err
	}
	for _, d := range lints {
		if d.Anchor == nil {
			d.Anchor = fenceAnchor(b)
		}
		r.add(d)
	}

	if b.Mode == extract.ModeCompileTime {
		if caps.Len() > 0 {
			first := caps.Bindings()[0].Ident
			a := &diag.Anchor{First: first.Span, Last: first.Span}
			r.add(diag.Embedded(b.File, a, "compile-time blocks cannot capture host variables"))
			return gen.Input{}, false, nil
		}
		if !r.tool.config.ct {
			r.add(diag.Embedded(b.File, fenceAnchor(b), "compile-time execution is disabled"))
			return gen.Input{}, false, nil
		}
		stdout, ok, err := r.executeCT(ctx, b, source, tokens)
		if err != nil || !ok {
			return gen.Input{}, false, err
		}
		return gen.Input{Block: b, CT: stdout}, true, nil
	}

	ok, err := r.compileChecked(ctx, b, source, tokens)
	if err != nil || !ok {
		return gen.Input{}, false, err
	}
	return gen.Input{Block: b, Source: source, Params: caps.Names()}, true, nil
}

// compileChecked validates a runtime block's source against the
// interpreter, short-circuiting through the cache when an identical
// block already compiled cleanly. Failed entries are recompiled so
// diagnostics keep their exact anchors.
func (r *runner) compileChecked(ctx context.Context, b extract.Block, source string, tokens []token.Token) (bool, error) {
	key := cache.Key(b.File, b.Mode.String(), source)
	if c := r.tool.cache; c != nil {
		entry, err := c.Lookup(key)
		if err != nil {
			return false, err
		}
		if entry != nil && entry.Status == cache.StatusOK {
			r.res.CacheHits++
			return true, nil
		}
	}

	sess, err := r.session(ctx)
	if err != nil {
		return false, err
	}
	_, err = sess.Compile(ctx, source, b.File)
	if err != nil {
		var ce *pyexec.CompileError
		if !errors.As(err, &ce) {
			return false, err
		}
		d := diag.FromCompileError(tokens, b.File, ce.Line, ce.Message, ce.Full)
		if d.Anchor == nil {
			d.Anchor = fenceAnchor(b)
		}
		r.add(d)
		return false, r.store(key, b, cache.StatusFailed, d.Message)
	}
	return true, r.store(key, b, cache.StatusOK, "")
}

// executeCT compiles and runs a ctpython block, returning its stdout.
// Each block gets a fresh interpreter scope.
func (r *runner) executeCT(ctx context.Context, b extract.Block, source string, tokens []token.Token) (string, bool, error) {
	sess, err := r.session(ctx)
	if err != nil {
		return "", false, err
	}

	unit, err := sess.Compile(ctx, source, b.File)
	if err != nil {
		var ce *pyexec.CompileError
		if !errors.As(err, &ce) {
			return "", false, err
		}
		d := diag.FromCompileError(tokens, b.File, ce.Line, ce.Message, ce.Full)
		if d.Anchor == nil {
			d.Anchor = fenceAnchor(b)
		}
		r.add(d)
		return "", false, nil
	}

	r.ctScope++
	out, err := sess.Execute(ctx, unit, fmt.Sprintf("ct%d", r.ctScope), nil)
	if err != nil {
		var re *pyexec.RuntimeError
		if !errors.As(err, &re) {
			return "", false, err
		}
		frames := make([]diag.Frame, len(re.Traceback))
		for i, f := range re.Traceback {
			frames[i] = diag.Frame{File: f.File, Line: f.Line}
		}
		d := diag.FromTraceback(tokens, b.File, frames, re.Message)
		if d.Anchor == nil {
			d.Anchor = fenceAnchor(b)
		}
		r.add(d)
		return "", false, nil
	}
	return out.Stdout, true, nil
}

// store records a compile outcome when caching is enabled.
func (r *runner) store(key string, b extract.Block, status, message string) error {
	c := r.tool.cache
	if c == nil {
		return nil
	}
	return c.Store(&cache.Entry{
		Hash:    key,
		File:    b.File,
		Name:    b.Name,
		Mode:    b.Mode.String(),
		Status:  status,
		Message: message,
	})
}

func (r *runner) add(d *Diagnostic) {
	r.res.Diagnostics = append(r.res.Diagnostics, d)
}

// report records a pipeline failure, stamping the host file and
// falling back to the fence anchor when the producer had no better
// position.
func (r *runner) report(err error, b extract.Block) {
	d := asDiagnostic(err, b.File)
	if d.Anchor == nil {
		d.Anchor = fenceAnchor(b)
	}
	r.add(d)
}

// asDiagnostic coerces a pipeline error into a diagnostic for path.
func asDiagnostic(err error, path string) *Diagnostic {
	var d *Diagnostic
	if !errors.As(err, &d) {
		return diag.New(path, nil, err.Error())
	}
	if d.File == "" {
		d.File = path
	}
	return d
}

// fenceAnchor points at the opening marker of a block, for failures
// with no better position.
func fenceAnchor(b extract.Block) *diag.Anchor {
	header := token.Span{
		Start: b.Fence.Start,
		End:   token.Point{Line: b.Fence.Start.Line, Column: b.Fence.Start.Column + 1},
	}
	return &diag.Anchor{First: header, Last: header}
}

func sortDiagnostics(diags []*Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].File != diags[j].File {
			return diags[i].File < diags[j].File
		}
		return diagLine(diags[i]) < diagLine(diags[j])
	})
}

func diagLine(d *Diagnostic) int {
	if d.Anchor == nil {
		return 0
	}
	return d.Anchor.First.Start.Line
}
