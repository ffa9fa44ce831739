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

package analysis

import (
	"fmt"
	"go/ast"
	"go/token"
	"os"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// PkgLoadMode is the default loading mode in the analyses. We load syntax and type information for the initial
// packages, which both resolution engines need.
const PkgLoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedExportFile |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedTypesSizes |
	packages.NeedModule

// LoadedProgram represents a loaded program.
type LoadedProgram struct {
	// Program is the SSA version of the program.
	Program *ssa.Program
	// Packages is the list of the initial packages, with their syntax and type information.
	Packages []*packages.Package
	// SSAPackages is the SSA version of each initial package, in the same order as Packages.
	SSAPackages []*ssa.Package
	// Directives is a map from the directive's position in the program to the relevant directive comment.
	Directives Directives
}

// LoadProgram loads a program on platform "platform" using the buildmode provided and the args.
// To understand how to specify the args, look at the documentation of packages.Load.
func LoadProgram(config *packages.Config,
	platform string,
	buildmode ssa.BuilderMode,
	args []string) (LoadedProgram, error) {

	fset := token.NewFileSet()
	if config == nil {
		config = &packages.Config{
			Mode:  PkgLoadMode,
			Tests: false,
			Fset:  fset,
		}
	}

	if platform != "" {
		config.Env = append(os.Environ(), fmt.Sprintf("GOOS=%s", platform))
	}

	// load, parse and type check the given packages
	initialPackages, err := packages.Load(config, args...)
	if err != nil {
		return LoadedProgram{}, fmt.Errorf("failed to load packages: %v", err)
	}

	if len(initialPackages) == 0 {
		return LoadedProgram{}, fmt.Errorf("no packages")
	}

	if packages.PrintErrors(initialPackages) > 0 {
		return LoadedProgram{}, fmt.Errorf("errors found, exiting")
	}

	// Construct SSA for all the packages we have loaded
	program, ssaPackages := ssautil.AllPackages(initialPackages, buildmode)

	for i, p := range ssaPackages {
		if p == nil {
			return LoadedProgram{}, fmt.Errorf("cannot build SSA for package %s", initialPackages[i])
		}
	}

	// Build SSA for entire program
	program.Build()

	directives := findDirectives(initialPackages)

	return LoadedProgram{
		Program:     program,
		Packages:    initialPackages,
		SSAPackages: ssaPackages,
		Directives:  directives,
	}, nil
}

// SortedPackages returns the indexes of the initial packages sorted by package path.
func (p LoadedProgram) SortedPackages() []int {
	idx := make([]int, len(p.Packages))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		return p.Packages[idx[i]].PkgPath < p.Packages[idx[j]].PkgPath
	})
	return idx
}

// Directives represents a map of directive position to directive.
type Directives map[DirectivePos]Directive

// Directive represents an instruction to capscan in the source code being analyzed.
// It is a comment in the form: `//capscan:x`, where x is a valid DirectiveKind.
type Directive struct {
	Kind    DirectiveKind
	Comment *ast.Comment
}

// DirectivePos represents the position of a directive within a program.
type DirectivePos struct {
	Filename string
	Line     int
}

// NewDirectivePos creates a DirectivePos from a token.Position.
func NewDirectivePos(pos token.Position) DirectivePos {
	return DirectivePos{
		Filename: pos.Filename,
		Line:     pos.Line,
	}
}

// DirectiveKind represents the kind of directive.
type DirectiveKind string

const (
	// DirectiveIgnore represents a directive for capscan to ignore the findings of a particular line.
	DirectiveIgnore DirectiveKind = "ignore"
)

// NewDirective returns the directive for c and true if c is a valid
// directive comment.
func NewDirective(c *ast.Comment) (Directive, bool) {
	_, after, found := strings.Cut(c.Text, "capscan:")
	if !found {
		return Directive{}, false
	}

	switch k := DirectiveKind(strings.TrimSpace(after)); k {
	case DirectiveIgnore:
		return Directive{Kind: k, Comment: c}, true
	default:
		return Directive{}, false
	}
}

// Ignored returns true if the line of pos carries an ignore directive.
func (d Directives) Ignored(pos token.Position) bool {
	dir, ok := d[NewDirectivePos(pos)]
	return ok && dir.Kind == DirectiveIgnore
}

// FindDirectives returns all the directives in the files.
func FindDirectives(fset *token.FileSet, files []*ast.File) Directives {
	res := make(Directives)
	for _, f := range files {
		for _, group := range f.Comments {
			for _, c := range group.List {
				pos := fset.Position(c.Pos())
				if !pos.IsValid() {
					continue
				}

				d, ok := NewDirective(c)
				if !ok {
					continue
				}

				res[NewDirectivePos(pos)] = d
			}
		}
	}
	return res
}

// findDirectives returns all the directives in pkgs.
func findDirectives(pkgs []*packages.Package) Directives {
	res := make(Directives)
	for _, pkg := range pkgs {
		for pos, d := range FindDirectives(pkg.Fset, pkg.Syntax) {
			res[pos] = d
		}
	}
	return res
}
