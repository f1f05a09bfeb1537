// Package gen assembles the generated sibling file for a host source
// file: a *py.Block value plus a typed wrapper per runtime block, and
// the re-parsed declarations a compile-time block printed.
package gen

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/scanner"
	gotoken "go/token"
	"sort"
	"strings"

	"github.com/pyrite-lang/pyrite/pkg/diag"
	"github.com/pyrite-lang/pyrite/pkg/extract"
	"github.com/pyrite-lang/pyrite/pkg/pysrc"
)

// pyImportPath is the runtime support package generated wrappers call.
const pyImportPath = "github.com/pyrite-lang/pyrite/py"

// Input is one block prepared for emission. Runtime blocks carry the
// reconstructed source and parameter names; compile-time blocks carry
// the stdout their execution produced.
type Input struct {
	Block  extract.Block
	Source string
	Params []string
	CT     string
}

// OutputPath is the sibling file written for a host path, e.g.
// app/main.go with suffix _pyrite.go becomes app/main_pyrite.go.
func OutputPath(hostPath, suffix string) string {
	return strings.TrimSuffix(hostPath, ".go") + suffix
}

// PackageName reads the package clause from host file content.
func PackageName(path string, content []byte) (string, error) {
	fset := gotoken.NewFileSet()
	f, err := parser.ParseFile(fset, path, content, parser.PackageClauseOnly)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	return f.Name.Name, nil
}

// Emit renders the generated file for one host file's blocks, in
// document order, formatted with go/format. A compile-time block
// whose output is not valid Go declarations fails with a diagnostic
// anchored at its fence.
func Emit(pkgName string, inputs []Input) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no blocks to emit")
	}
	host := inputs[0].Block.File

	var body []string
	var ctImports []string
	seen := make(map[string]bool)
	needPy := false

	for _, in := range inputs {
		switch in.Block.Mode {
		case extract.ModeCompileTime:
			imports, decls, err := splitCT(in.CT)
			if err != nil {
				a := diag.Anchor{First: in.Block.Fence, Last: in.Block.Fence}
				return nil, diag.Embedded(host, &a, "generated code does not parse: "+parseMsg(err))
			}
			for _, imp := range imports {
				if !seen[imp] {
					seen[imp] = true
					ctImports = append(ctImports, imp)
				}
			}
			if decls = strings.TrimSpace(decls); decls != "" {
				body = append(body, decls)
			}
		default:
			needPy = true
			body = append(body, blockDecl(in), wrapper(in))
		}
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "// Code generated by pyrite; DO NOT EDIT.\n//\n// Source: %s\n\n", host)
	fmt.Fprintf(&out, "package %s\n\n", pkgName)
	if block := importBlock(needPy, ctImports); block != "" {
		out.WriteString(block)
		out.WriteString("\n\n")
	}
	out.WriteString(strings.Join(body, "\n\n"))
	out.WriteString("\n")

	formatted, err := format.Source(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting generated code for %s: %w", host, err)
	}
	return formatted, nil
}

func blockDecl(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "var %sBlock = &py.Block{\n", in.Block.Name)
	fmt.Fprintf(&b, "Name: %q,\n", in.Block.Name)
	fmt.Fprintf(&b, "File: %q,\n", in.Block.File)
	fmt.Fprintf(&b, "Source: %q,\n", in.Source)
	if len(in.Params) > 0 {
		fmt.Fprintf(&b, "Params: %#v,\n", in.Params)
	}
	b.WriteString("}")
	return b.String()
}

func wrapper(in Input) string {
	params := make([]string, len(in.Params))
	args := make([]string, len(in.Params))
	for i, p := range in.Params {
		n := paramName(p)
		params[i] = n + " any"
		args[i] = n
	}

	sig := "ctx context.Context, pyctx *py.Context"
	if len(params) > 0 {
		sig += ", " + strings.Join(params, ", ")
	}
	call := "ctx, " + in.Block.Name + "Block"
	if len(args) > 0 {
		call += ", " + strings.Join(args, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// %s runs the python block %q from %s. A nil pyctx runs on py.Main.\n",
		in.Block.Name, in.Block.Name, in.Block.File)
	fmt.Fprintf(&b, "func %s(%s) (string, error) {\n", in.Block.Name, sig)
	fmt.Fprintf(&b, "return pyctx.Run(%s)\n}", call)
	return b.String()
}

// paramName maps a capture placeholder to the wrapper parameter name.
// Names that would collide with the fixed parameters or a Go keyword
// get a trailing underscore.
func paramName(placeholder string) string {
	name := strings.TrimPrefix(placeholder, pysrc.CapturePrefix)
	if gotoken.IsKeyword(name) || name == "ctx" || name == "pyctx" {
		name += "_"
	}
	return name
}

// splitCT parses a compile-time block's stdout as top-level Go
// declarations, returning its import specs separately so they can be
// hoisted into the generated file's import block.
func splitCT(output string) (imports []string, decls string, err error) {
	const header = "package p\n"
	src := header + output

	fset := gotoken.NewFileSet()
	f, err := parser.ParseFile(fset, "", src, 0)
	if err != nil {
		return nil, "", err
	}

	var cuts [][2]int
	for _, d := range f.Decls {
		g, ok := d.(*ast.GenDecl)
		if !ok || g.Tok != gotoken.IMPORT {
			continue
		}
		for _, spec := range g.Specs {
			s := spec.(*ast.ImportSpec)
			txt := s.Path.Value
			if s.Name != nil {
				txt = s.Name.Name + " " + txt
			}
			imports = append(imports, txt)
		}
		cuts = append(cuts, [2]int{
			fset.Position(d.Pos()).Offset,
			fset.Position(d.End()).Offset,
		})
	}

	buf := []byte(src)
	for i := len(cuts) - 1; i >= 0; i-- {
		buf = append(buf[:cuts[i][0]], buf[cuts[i][1]:]...)
	}
	return imports, string(buf[len(header):]), nil
}

// importBlock renders the merged import declaration, standard library
// first.
func importBlock(needPy bool, ctImports []string) string {
	var std, other []string
	if needPy {
		std = append(std, `"context"`)
		other = append(other, fmt.Sprintf("%q", pyImportPath))
	}
	for _, spec := range ctImports {
		if isStdSpec(spec) {
			std = append(std, spec)
		} else {
			other = append(other, spec)
		}
	}
	std = dedupeSorted(std)
	other = dedupeSorted(other)

	if len(std)+len(other) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("import (\n")
	for _, s := range std {
		b.WriteString(s + "\n")
	}
	if len(std) > 0 && len(other) > 0 {
		b.WriteString("\n")
	}
	for _, s := range other {
		b.WriteString(s + "\n")
	}
	b.WriteString(")")
	return b.String()
}

// isStdSpec reports whether an import spec names a standard library
// package: no dot in the first path element.
func isStdSpec(spec string) bool {
	fields := strings.Fields(spec)
	path := strings.Trim(fields[len(fields)-1], `"`)
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".")
}

func dedupeSorted(specs []string) []string {
	sort.Strings(specs)
	out := specs[:0]
	for i, s := range specs {
		if i == 0 || specs[i-1] != s {
			out = append(out, s)
		}
	}
	return out
}

// parseMsg extracts the first parse error's bare message.
func parseMsg(err error) string {
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return list[0].Msg
	}
	return err.Error()
}
