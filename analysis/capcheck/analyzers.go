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

package capcheck

import (
	"fmt"
	"sync"

	"github.com/capscan/capscan/analysis"
	"github.com/capscan/capscan/analysis/bytecode"
	"github.com/capscan/capscan/analysis/config"
	"github.com/capscan/capscan/analysis/strflow/astflow"
	goanalysis "golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/analysis/passes/inspect"
)

// TreeAnalyzer reports undeclared capabilities using the syntax-tree resolver
var TreeAnalyzer = &goanalysis.Analyzer{
	Name:     "capcheck",
	Doc:      "reports calls requiring capabilities the manifest does not declare",
	Run:      runTree,
	Requires: []*goanalysis.Analyzer{inspect.Analyzer},
}

// GraphAnalyzer reports undeclared capabilities using the instruction-graph resolver on the lowered SSA form of the
// package
var GraphAnalyzer = &goanalysis.Analyzer{
	Name:     "capcheckssa",
	Doc:      "reports calls requiring capabilities the manifest does not declare, resolving arguments on lowered SSA",
	Run:      runGraph,
	Requires: []*goanalysis.Analyzer{buildssa.Analyzer},
}

var (
	configFile string
	loadOnce   sync.Once
	loaded     *Checker
	loadErr    error
)

func init() {
	for _, a := range []*goanalysis.Analyzer{TreeAnalyzer, GraphAnalyzer} {
		a.Flags.StringVar(&configFile, "config", "", "config file with the rules and the manifest path")
	}
}

// checker loads the config once per process. Both analyzers share the flag value.
func checker() (*Checker, error) {
	loadOnce.Do(func() {
		cfg := config.NewDefault()
		if configFile != "" {
			cfg, loadErr = config.Load(configFile)
			if loadErr != nil {
				return
			}
		}
		manifest, err := cfg.LoadManifest()
		if err != nil {
			loadErr = err
			return
		}
		logger := config.NewLogGroup(cfg)
		loaded = NewChecker(cfg, manifest, logger)
	})
	return loaded, loadErr
}

func runTree(pass *goanalysis.Pass) (interface{}, error) {
	c, err := checker()
	if err != nil {
		return nil, fmt.Errorf("capcheck: %w", err)
	}
	findings := c.CheckSyntax(astflow.Frontend{Fset: pass.Fset, Files: pass.Files, Info: pass.TypesInfo})
	report(pass, findings)
	return nil, nil
}

func runGraph(pass *goanalysis.Pass) (interface{}, error) {
	c, err := checker()
	if err != nil {
		return nil, fmt.Errorf("capcheck: %w", err)
	}
	ssaInfo := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)
	findings := c.CheckUnit(bytecode.Lower(ssaInfo.Pkg))
	report(pass, findings)
	return nil, nil
}

func report(pass *goanalysis.Pass, findings []Finding) {
	directives := analysis.FindDirectives(pass.Fset, pass.Files)
	for _, f := range findings {
		if directives.Ignored(pass.Fset.Position(f.Pos)) {
			continue
		}
		pass.Reportf(f.Pos, "%s", f.Message())
	}
}
