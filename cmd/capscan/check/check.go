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

// Package check implements the front-end of the capability checker.
package check

import (
	"fmt"
	"go/token"
	"log"
	"os"
	"sort"
	"time"

	"github.com/capscan/capscan/analysis"
	"github.com/capscan/capscan/analysis/bytecode"
	"github.com/capscan/capscan/analysis/capcheck"
	"github.com/capscan/capscan/analysis/config"
	"github.com/capscan/capscan/analysis/strflow/astflow"
	"github.com/capscan/capscan/cmd/capscan/tools"
	"github.com/capscan/capscan/internal/formatutil"
	"github.com/capscan/capscan/internal/funcutil"
)

// Usage of the check sub-command
const Usage = ` Report the calls requiring capabilities the manifest does not declare.
Usage:
  capscan check [options] <package path(s)>
Examples:
  % capscan check -config config.yaml ./...
  % capscan check -engine graph ./cmd/server
`

// Engines accepted by the -engine flag
const (
	EngineTree  = "tree"
	EngineGraph = "graph"
	EngineBoth  = "both"
)

// Flags represents the parsed flags of the check sub-command.
type Flags struct {
	tools.CommonFlags
	Engine string
}

// NewFlags returns the parsed flags of the check sub-command with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("check")
	engine := flags.FlagSet.String("engine", EngineTree, "resolution engine: tree, graph or both")
	common, err := flags.Parse(args, Usage)
	if err != nil {
		return Flags{}, err
	}
	switch *engine {
	case EngineTree, EngineGraph, EngineBoth:
	default:
		return Flags{}, fmt.Errorf("unknown engine %q", *engine)
	}
	return Flags{CommonFlags: common, Engine: *engine}, nil
}

// Run runs the checker and returns the number of findings reported.
func Run(flags Flags) (int, error) {
	cfg, err := tools.LoadConfig(flags.CommonFlags)
	if err != nil {
		return 0, err
	}
	manifest, err := cfg.LoadManifest()
	if err != nil {
		return 0, err
	}
	logger := config.NewLogGroup(cfg)
	logger.Infof(formatutil.Faint("capscan check - " + analysis.Version))
	logger.Infof(formatutil.Faint("Reading sources"))

	program, err := tools.LoadProgram(flags.CommonFlags)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	checker := capcheck.NewChecker(cfg, manifest, logger)
	perPackage := funcutil.MapParallel(program.SortedPackages(), func(i int) []capcheck.Finding {
		var findings []capcheck.Finding
		pkg := program.Packages[i]
		if flags.Engine != EngineGraph {
			findings = append(findings,
				checker.CheckSyntax(astflow.Frontend{Fset: pkg.Fset, Files: pkg.Syntax, Info: pkg.TypesInfo})...)
		}
		if flags.Engine != EngineTree {
			findings = append(findings, checker.CheckUnit(bytecode.Lower(program.SSAPackages[i]))...)
		}
		return findings
	}, flags.Parallel)
	logger.Infof("Checked %d packages in %3.4f s", len(perPackage), time.Since(start).Seconds())

	n := Report(log.New(os.Stdout, "", 0), program, perPackage, flags.Exclude)
	if n == 0 {
		logger.Infof("RESULT:\n\t\t%s", formatutil.Green("No undeclared capability ✓")) // safe %s
	} else {
		logger.Errorf("RESULT:\n\t\t%s", formatutil.Red(fmt.Sprintf("%d undeclared capabilities", n))) // safe %s
	}
	return n, nil
}

// Report prints the findings that are neither ignored by a directive nor in an excluded file, sorted by position, and
// returns their number.
func Report(out *log.Logger, program analysis.LoadedProgram, perPackage [][]capcheck.Finding, exclude []string) int {
	type line struct {
		pos     token.Position
		finding capcheck.Finding
	}
	var lines []line
	for _, findings := range perPackage {
		for _, f := range findings {
			pos := program.Program.Fset.Position(f.Pos)
			if program.Directives.Ignored(pos) || analysis.IsExcluded(pos.Filename, exclude) {
				continue
			}
			lines = append(lines, line{pos, f})
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].pos.Filename != lines[j].pos.Filename {
			return lines[i].pos.Filename < lines[j].pos.Filename
		}
		return lines[i].pos.Line < lines[j].pos.Line
	})
	for _, l := range lines {
		out.Printf("%s: %s %s\n", formatutil.Faint(l.pos.String()), formatutil.Red("["+l.finding.Issue.ID+"]"),
			formatutil.Sanitize(l.finding.Message()))
		out.Printf("\t%s\n", l.finding.Issue.Title)
	}
	return len(lines)
}
