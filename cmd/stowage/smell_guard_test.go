package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

const defaultMaxCmdConstructorLines = 100

// Only these files may touch the database or media directory directly; every
// other command goes through the HTTP client.
var localStorageFiles = map[string]bool{
	"srv.go":     true,
	"migrate.go": true,
}

var localStorageImports = []string{
	"stowage/internal/store",
	"stowage/internal/mediastore",
	"stowage/internal/repository",
	"stowage/internal/worker",
}

func TestCommandSourceSmells(t *testing.T) {
	maxLines := maxCmdConstructorLines()
	fset := token.NewFileSet()

	for _, path := range commandSourceFiles(t) {
		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly|parser.SkipObjectResolution)
		if err != nil {
			t.Fatalf("parse imports %s: %v", path, err)
		}
		name := filepath.Base(path)
		if !localStorageFiles[name] {
			for _, imp := range file.Imports {
				importPath, _ := strconv.Unquote(imp.Path.Value)
				for _, banned := range localStorageImports {
					if importPath == banned {
						t.Errorf("%s imports %s; client commands must use the API", name, importPath)
					}
				}
			}
		}

		full, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
		if err != nil {
			t.Fatalf("parse %s: %v", path, err)
		}
		for _, decl := range full.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Body == nil || !strings.HasPrefix(fn.Name.Name, "new") || !strings.HasSuffix(fn.Name.Name, "Cmd") {
				continue
			}
			length := fset.Position(fn.Body.Rbrace).Line - fset.Position(fn.Body.Lbrace).Line + 1
			if length > maxLines {
				t.Errorf("constructor %s in %s is too large: %d lines (max %d)", fn.Name.Name, name, length, maxLines)
			}
		}
	}
}

func commandSourceFiles(t *testing.T) []string {
	t.Helper()
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(self), "*.go"))
	if err != nil {
		t.Fatalf("glob sources: %v", err)
	}
	files := matches[:0]
	for _, path := range matches {
		if !strings.HasSuffix(path, "_test.go") {
			files = append(files, path)
		}
	}
	return files
}

func maxCmdConstructorLines() int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(os.Getenv("STOWAGE_MAX_CMD_CONSTRUCTOR_LINES"))); err == nil && parsed > 0 {
		return parsed
	}
	return defaultMaxCmdConstructorLines
}
