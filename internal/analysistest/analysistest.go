// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package analysistest contains the helpers shared by the tests of the resolution engines: loading annotated test
// programs, type-checking and building inline sources, and collecting the expected values of annotated calls.
package analysistest

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/capscan/capscan/analysis"
	"github.com/capscan/capscan/analysis/config"
	"github.com/capscan/capscan/internal/funcutil"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
	"golang.org/x/tools/go/types/typeutil"
)

// LoadTest loads the program in the directory dir, looking for a main.go and a config.yaml. If additional files
// are specified as extraFiles, the program will be loaded using those files too.
func LoadTest(t *testing.T, dir string, extraFiles []string) (analysis.LoadedProgram, *config.Config) {
	// Load config; in command, should be set using some flag
	configFile := filepath.Join(dir, "config.yaml")
	config.SetGlobalConfig(configFile)
	files := []string{filepath.Join(dir, "./main.go")}
	for _, extraFile := range extraFiles {
		files = append(files, filepath.Join(dir, extraFile))
	}

	prog, err := analysis.LoadProgram(nil, "", ssa.BuilderMode(0), files)
	if err != nil {
		t.Fatalf("error loading packages: %v", err)
	}
	cfg, err := config.LoadGlobal()
	if err != nil {
		t.Fatalf("error loading global config: %v", err)
	}
	return prog, cfg
}

// A Package is a single-file package built from source, with its syntax, type information and SSA form.
type Package struct {
	Fset  *token.FileSet
	File  *ast.File
	Types *types.Package
	Info  *types.Info
	SSA   *ssa.Package
}

// Build parses, type-checks and builds the SSA form of src as the package "p".
func Build(t *testing.T, src string) *Package {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("could not parse source: %v", err)
	}
	pkg := types.NewPackage("p", "p")
	tc := &types.Config{Importer: importer.Default()}
	ssaPkg, info, err := ssautil.BuildPackage(tc, fset, pkg, []*ast.File{f}, ssa.BuilderMode(0))
	if err != nil {
		t.Fatalf("could not build package: %v", err)
	}
	return &Package{Fset: fset, File: f, Types: pkg, Info: info, SSA: ssaPkg}
}

// ValuesRegex matches annotations of the form "@Values(gps, network)". Values are separated by commas; an empty
// annotation "@Values()" expects no value.
var ValuesRegex = regexp.MustCompile(`//.*@Values\(([^)]*)\)`)

// LPos is a position without column
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// RemoveColumn drops the column of the position
func RemoveColumn(pos token.Position) LPos {
	return LPos{Line: pos.Line, Filename: pos.Filename}
}

// GetExpectedValues collects the @Values annotations of the files, mapping each annotated line to the values
// expected, in order.
func GetExpectedValues(fset *token.FileSet, files []*ast.File) map[LPos][]string {
	expected := map[LPos][]string{}
	for _, f := range files {
		for _, c := range f.Comments {
			for _, c1 := range c.List {
				a := ValuesRegex.FindStringSubmatch(c1.Text)
				if len(a) <= 1 {
					continue
				}
				values := []string{}
				if strings.TrimSpace(a[1]) != "" {
					values = funcutil.Map(strings.Split(a[1], ","), strings.TrimSpace)
				}
				expected[RemoveColumn(fset.Position(c1.Pos()))] = values
			}
		}
	}
	return expected
}

// A CallSite is a call found in the test sources
type CallSite struct {
	Call *ast.CallExpr
	Pos  LPos
}

// FindCalls returns the calls to the functions named name, in source order.
func FindCalls(fset *token.FileSet, files []*ast.File, info *types.Info, name string) []CallSite {
	var sites []CallSite
	ins := inspector.New(files)
	ins.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		if fn := typeutil.Callee(info, call); fn != nil && fn.Name() == name {
			sites = append(sites, CallSite{Call: call, Pos: RemoveColumn(fset.Position(call.Pos()))})
		}
	})
	return sites
}
