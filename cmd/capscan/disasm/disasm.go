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

// Package disasm implements the front-end printing the instruction listings the graph engine resolves values on.
package disasm

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/capscan/capscan/analysis"
	"github.com/capscan/capscan/analysis/bytecode"
	"github.com/capscan/capscan/cmd/capscan/tools"
	"github.com/capscan/capscan/internal/formatutil"
)

// Usage of the disasm sub-command
const Usage = ` Print the instruction listing of the packages, as lowered from their SSA form.
Usage:
  capscan disasm [options] <package path(s)>
Examples:
  % capscan disasm ./internal/dial
  % capscan disasm -method 'Dial' -cfg ./internal/dial
`

// Flags represents the parsed flags of the disasm sub-command.
type Flags struct {
	tools.CommonFlags
	Method *regexp.Regexp
	CFG    bool
	Stats  bool
}

// NewFlags returns the parsed flags of the disasm sub-command with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("disasm")
	method := flags.FlagSet.String("method", "", "regex filtering the methods printed, in the form Owner.Name")
	withCFG := flags.FlagSet.Bool("cfg", false, "print the basic blocks, loops, cycles and graph statistics of each method")
	stats := flags.FlagSet.Bool("stats", false, "print statistics about the SSA form of each package instead")
	common, err := flags.Parse(args, Usage)
	if err != nil {
		return Flags{}, err
	}
	re, err := regexp.Compile(*method)
	if err != nil {
		return Flags{}, fmt.Errorf("invalid -method regex: %v", err)
	}
	return Flags{CommonFlags: common, Method: re, CFG: *withCFG, Stats: *stats}, nil
}

// Run prints the lowered packages.
func Run(flags Flags) error {
	program, err := tools.LoadProgram(flags.CommonFlags)
	if err != nil {
		return err
	}
	for _, i := range program.SortedPackages() {
		pkg := program.SSAPackages[i]
		if flags.Stats {
			r := analysis.SSAStatistics(program.Program.Fset, bytecode.PackageFunctions(pkg), flags.Exclude)
			fmt.Printf("%s: %d functions (%d non-empty), %d blocks, %d instructions, %d calls, %d phis\n",
				formatutil.Bold(pkg.Pkg.Path()), r.NumberOfFunctions, r.NumberOfNonemptyFunctions, r.NumberOfBlocks,
				r.NumberOfInstructions, r.NumberOfCalls, r.NumberOfPhis)
			continue
		}
		unit := bytecode.Lower(pkg)
		if err := Print(os.Stdout, unit, flags.Method, flags.CFG); err != nil {
			return err
		}
	}
	return nil
}

// Print writes the methods of unit matching filter. With withCFG, each method is followed by its control-flow graph.
func Print(w io.Writer, unit *bytecode.Unit, filter *regexp.Regexp, withCFG bool) error {
	selected := bytecode.NewUnit(unit.Name)
	for _, m := range unit.Methods {
		if filter == nil || filter.MatchString(m.Key()) {
			selected.Add(m)
		}
	}
	if !withCFG {
		return selected.Write(w)
	}
	fmt.Fprintf(w, ".unit %s\n", selected.Name)
	for _, m := range selected.Methods {
		if err := bytecode.NewUnit("", m).Write(w); err != nil {
			return err
		}
		cfg, err := bytecode.BuildCFG(m)
		if err != nil {
			fmt.Fprintf(w, "; %s\n", formatutil.Red(err.Error()))
			continue
		}
		for _, b := range cfg.Blocks {
			fmt.Fprintf(w, "; block %d [%d,%d) succs %v\n", b.Index, b.Start, b.End, b.Succs)
		}
		if loops := cfg.Loops(); len(loops) > 0 {
			fmt.Fprintf(w, "; loops %v\n", loops)
		}
		if cycles := cfg.Cycles(); len(cycles) > 0 {
			fmt.Fprintf(w, "; cycles %v\n", cycles)
		}
		stats := cfg.Stats()
		fmt.Fprintf(w, "; %d blocks, %d edges, %d unreachable\n", len(cfg.Blocks), stats.Size, unreachable(cfg))
	}
	return nil
}

func unreachable(cfg *bytecode.CFG) int {
	n := 0
	for _, b := range cfg.Blocks {
		if !cfg.Reachable(b.Index) {
			n++
		}
	}
	return n
}
