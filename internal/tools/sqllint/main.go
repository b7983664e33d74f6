// Command sqllint checks that every inline SQL statement starts with a unique
// "--sql <uuid>" audit marker. SQLRunner logs that marker for each statement it
// executes, so a missing or reused marker makes log lines untraceable.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// A statement starts with a DML/DDL keyword once an optional comment line is skipped.
	statementPattern = regexp.MustCompile(`(?is)^\s*(--[^\n]*\n\s*)?(select|insert|update|delete|with|create|alter|drop)\b`)
	markerPattern    = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	pos     token.Position
	name    string
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.pos.Filename, v.pos.Line, v.message, v.name)
}

// linter accumulates violations across files. owners maps each marker to the
// constant that first used it.
type linter struct {
	fset       *token.FileSet
	owners     map[string]string
	violations []violation
	statements int
}

func newLinter() *linter {
	return &linter{fset: token.NewFileSet(), owners: map[string]string{}}
}

func main() {
	verbose := flag.Bool("v", false, "print the number of statements checked")
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"internal/sqlinline"}
	}

	l := newLinter()
	for _, target := range targets {
		if err := l.lintPath(target); err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(2)
		}
	}
	if *verbose {
		fmt.Printf("sqllint: %d statements checked\n", l.statements)
	}
	if len(l.violations) == 0 {
		return
	}
	sort.Slice(l.violations, func(i, j int) bool {
		a, b := l.violations[i].pos, l.violations[j].pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.Line < b.Line
	})
	fmt.Fprintln(os.Stderr, "sqllint: SQL audit marker violations")
	for _, v := range l.violations {
		fmt.Fprintln(os.Stderr, "  "+v.String())
	}
	os.Exit(1)
}

func (l *linter) lintPath(target string) error {
	return filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != target && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		return l.lintFile(path)
	})
}

func (l *linter) lintFile(path string) error {
	file, err := parser.ParseFile(l.fset, path, nil, 0)
	if err != nil {
		return err
	}
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || (gen.Tok != token.CONST && gen.Tok != token.VAR) {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, value := range vs.Values {
				lit, ok := value.(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING {
					continue
				}
				name := "_"
				if i < len(vs.Names) {
					name = vs.Names[i].Name
				}
				l.check(name, lit)
			}
		}
	}
	return nil
}

func (l *linter) check(name string, lit *ast.BasicLit) {
	text, err := strconv.Unquote(lit.Value)
	if err != nil || !statementPattern.MatchString(text) {
		return
	}
	l.statements++
	pos := l.fset.Position(lit.Pos())
	marker := firstLine(text)
	if !markerPattern.MatchString(marker) {
		l.violations = append(l.violations, violation{pos: pos, name: name, message: "missing or invalid --sql <uuid> marker"})
		return
	}
	if owner, dup := l.owners[marker]; dup {
		l.violations = append(l.violations, violation{pos: pos, name: name, message: "marker already used by " + owner})
		return
	}
	l.owners[marker] = fmt.Sprintf("%s at %s:%d", name, pos.Filename, pos.Line)
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
