// Package enum walks directory trees for the Go source files a run
// operates on. It honors .gitignore, skips directories the go tool
// itself ignores, and never yields previously generated output.
package enum

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// GeneratedSuffix is the filename suffix of emitted files. Enumeration
// always skips them, so a previous run's output is never re-scanned.
const GeneratedSuffix = "_pyrite.go"

// Config controls which files an enumeration yields.
type Config struct {
	// Root is the directory to walk, or a single Go file.
	Root string

	// Exclude holds gitignore-style patterns, relative to Root,
	// removed from the walk in addition to .gitignore entries.
	Exclude []string

	// Suffix overrides the generated-output suffix skipped during the
	// walk. Empty means GeneratedSuffix.
	Suffix string
}

// Enumerator finds Go source files under a root.
type Enumerator struct {
	config Config
}

// New creates an enumerator for the configured root.
func New(config Config) *Enumerator {
	return &Enumerator{config: config}
}

// Enumerate yields each eligible Go file to the callback.
// Phase 1 walks the tree and collects paths sequentially; phase 2
// reads files on runtime.NumCPU() goroutines, so the callback may run
// concurrently and callers aggregate behind their own lock.
func (e *Enumerator) Enumerate(ctx context.Context, callback func(path string, content []byte) error) error {
	info, err := os.Stat(e.config.Root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if !eligible(info.Name(), e.generatedSuffix()) {
			return nil
		}
		return processFile(ctx, e.config.Root, callback)
	}

	ignore := e.ignoreMatcher()

	// Phase 1: walk and collect eligible file paths.
	var files []string
	err = filepath.Walk(e.config.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		name := info.Name()
		if info.IsDir() {
			if path != e.config.Root && skipDir(name) {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if !eligible(name, e.generatedSuffix()) {
			return nil
		}

		if ignore != nil {
			relPath, err := filepath.Rel(e.config.Root, path)
			if err != nil {
				return err
			}
			if ignore.MatchesPath(relPath) {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return err
	}

	// Phase 2: read and process files in parallel.
	numReaders := runtime.NumCPU()
	if numReaders < 1 {
		numReaders = 1
	}

	origCtx := ctx
	g, ctx := errgroup.WithContext(ctx)
	pathsCh := make(chan string, numReaders*2)

	g.Go(func() error {
		defer close(pathsCh)
		for _, f := range files {
			select {
			case pathsCh <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < numReaders; i++ {
		g.Go(func() error {
			for f := range pathsCh {
				if err := processFile(ctx, f, callback); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// If the caller's context was cancelled but all goroutines finished
	// before noticing, propagate the cancellation.
	if origCtx.Err() != nil {
		return origCtx.Err()
	}
	return nil
}

// ignoreMatcher merges the root's .gitignore (when present) with the
// configured exclude patterns into one matcher.
func (e *Enumerator) ignoreMatcher() *gitignore.GitIgnore {
	var lines []string
	if data, err := os.ReadFile(filepath.Join(e.config.Root, ".gitignore")); err == nil {
		lines = append(lines, strings.Split(string(data), "\n")...)
	}
	lines = append(lines, e.config.Exclude...)
	if len(lines) == 0 {
		return nil
	}
	return gitignore.CompileIgnoreLines(lines...)
}

func processFile(ctx context.Context, path string, callback func(path string, content []byte) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return callback(path, content)
}

func (e *Enumerator) generatedSuffix() string {
	if e.config.Suffix != "" {
		return e.config.Suffix
	}
	return GeneratedSuffix
}

// eligible reports whether a filename is a Go source file this tool
// processes. Generated output and names the go tool ignores are not.
func eligible(name, generated string) bool {
	if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, generated) {
		return false
	}
	return !isHidden(name) && !strings.HasPrefix(name, "_")
}

// skipDir reports whether a directory's contents are never built:
// hidden and underscore-prefixed directories, vendor, and testdata.
func skipDir(name string) bool {
	return isHidden(name) || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata"
}

// isHidden checks if a filename is hidden (starts with .).
// The special entries "." and ".." are NOT considered hidden.
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
