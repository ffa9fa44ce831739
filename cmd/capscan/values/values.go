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

// Package values implements the front-end printing the string values that may flow into call arguments.
package values

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"os"
	"regexp"
	"sort"

	"github.com/capscan/capscan/analysis"
	"github.com/capscan/capscan/analysis/bytecode"
	"github.com/capscan/capscan/analysis/capcheck"
	"github.com/capscan/capscan/analysis/config"
	"github.com/capscan/capscan/analysis/strflow"
	"github.com/capscan/capscan/analysis/strflow/astflow"
	"github.com/capscan/capscan/analysis/strflow/stackflow"
	"github.com/capscan/capscan/cmd/capscan/tools"
	"github.com/capscan/capscan/internal/formatutil"
	"github.com/capscan/capscan/internal/funcutil"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// Usage of the values sub-command
const Usage = ` Print the string values that may flow into an argument of the matching calls.
Usage:
  capscan values [options] <package path(s)>
Examples:
  % capscan values -call '^net\.Dial$' ./...
  % capscan values -call 'Getenv' -arg 0 -engine graph ./cmd/server
`

// Flags represents the parsed flags of the values sub-command.
type Flags struct {
	tools.CommonFlags
	Call  *regexp.Regexp
	Arg   int
	Graph bool
}

// NewFlags returns the parsed flags of the values sub-command with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("values")
	call := flags.FlagSet.String("call", "", "regex matching the callee, in the form package.(Receiver).Method")
	arg := flags.FlagSet.Int("arg", -1, "argument position, receiver excluded (default: first string parameter)")
	engine := flags.FlagSet.String("engine", "tree", "resolution engine: tree or graph")
	common, err := flags.Parse(args, Usage)
	if err != nil {
		return Flags{}, err
	}
	if *call == "" {
		return Flags{}, fmt.Errorf("values requires a -call regex")
	}
	re, err := regexp.Compile(*call)
	if err != nil {
		return Flags{}, fmt.Errorf("invalid -call regex: %v", err)
	}
	if *engine != "tree" && *engine != "graph" {
		return Flags{}, fmt.Errorf("unknown engine %q", *engine)
	}
	return Flags{CommonFlags: common, Call: re, Arg: *arg, Graph: *engine == "graph"}, nil
}

// A Result is the resolution of one call argument
type Result struct {
	Pos    token.Position
	Callee config.CodeIdentifier
	Arg    int
	Values strflow.CandidateSet
}

// Run prints the values of the arguments of the matching calls.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.CommonFlags)
	if err != nil {
		return err
	}
	logger := config.NewLogGroup(cfg)
	program, err := tools.LoadProgram(flags.CommonFlags)
	if err != nil {
		return err
	}
	perPackage := funcutil.MapParallel(program.SortedPackages(), func(i int) []Result {
		if flags.Graph {
			return resolveUnit(flags, program, bytecode.Lower(program.SSAPackages[i]), cfg, logger)
		}
		pkg := program.Packages[i]
		fe := astflow.Frontend{Fset: pkg.Fset, Files: pkg.Syntax, Info: pkg.TypesInfo}
		return resolveSyntax(flags, fe, cfg, logger)
	}, flags.Parallel)
	for _, results := range perPackage {
		for _, r := range results {
			if analysis.IsExcluded(r.Pos.Filename, flags.Exclude) {
				continue
			}
			fmt.Fprintf(os.Stdout, "%s: %s arg %d: %s\n", formatutil.Faint(r.Pos.String()),
				formatutil.Cyan(r.Callee.String()), r.Arg, formatutil.Sanitize(r.Values.String()))
		}
	}
	return nil
}

// argument returns the argument to resolve, or false when the call has no string parameter to resolve
func argument(arg int, numParams int, isString func(int) bool) (int, bool) {
	rule := config.Rule{}
	if arg >= 0 {
		rule.Argument = &arg
	}
	return rule.ArgumentPosition(isString, numParams)
}

func resolveSyntax(flags Flags, fe astflow.Frontend, cfg *config.Config, logger *config.LogGroup) []Result {
	r := astflow.NewResolver(fe, astflow.OptionsFromConfig(cfg, logger))
	var results []Result
	inspector.New(fe.Files).Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		fn, ok := typeutil.Callee(fe.Info, call).(*types.Func)
		if !ok {
			return
		}
		callee := capcheck.FuncIdentifier(fn)
		if !flags.Call.MatchString(callee.String()) {
			return
		}
		params := fn.Type().(*types.Signature).Params()
		arg, ok := argument(flags.Arg, params.Len(), func(i int) bool {
			return bytecode.TypeName(params.At(i).Type()) == bytecode.StringType
		})
		if !ok {
			return
		}
		results = append(results, Result{
			Pos:    fe.Fset.Position(call.Pos()),
			Callee: callee,
			Arg:    arg,
			Values: r.ResolvePossibleStringValues(call, arg),
		})
	})
	return results
}

func resolveUnit(flags Flags, program analysis.LoadedProgram, unit *bytecode.Unit, cfg *config.Config,
	logger *config.LogGroup) []Result {
	r := stackflow.NewResolver(unit, stackflow.OptionsFromConfig(cfg, logger))
	var results []Result
	for _, m := range unit.Methods {
		for _, i := range m.Invokes() {
			in := m.Code[i]
			callee := capcheck.InvokeIdentifier(in)
			if !flags.Call.MatchString(callee.String()) {
				continue
			}
			arg, ok := argument(flags.Arg, len(in.Desc.Params), in.Desc.IsString)
			if !ok {
				continue
			}
			results = append(results, Result{
				Pos:    program.Program.Fset.Position(in.Pos),
				Callee: callee,
				Arg:    arg,
				Values: r.ResolvePossibleStringValues(m, i, arg),
			})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Pos.Filename != results[j].Pos.Filename {
			return results[i].Pos.Filename < results[j].Pos.Filename
		}
		return results[i].Pos.Line < results[j].Pos.Line
	})
	return results
}
